package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/models"
	"github.com/use-agent/quizwalker/walker"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Screenshot.Dir = t.TempDir()
	cfg.Preflight.Enabled = false
	cfg.Walker.ShutdownDelay = 0
	return cfg
}

// recordingOpener fails every Open and remembers the context it was given.
type recordingOpener struct {
	ctx context.Context
}

func (o *recordingOpener) Open(ctx context.Context) (walker.Session, error) {
	o.ctx = ctx
	return nil, models.NewWalkError(models.ErrCodeBrowserCrash, "failed to launch browser", errors.New("no chrome"))
}

func TestRun_AppliesTimeoutAndJobDir(t *testing.T) {
	cfg := testConfig(t)
	opener := &recordingOpener{}
	r := New(cfg, opener, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, err := r.Run(context.Background(), "run-abc", models.RunRequest{
		QuizURL: "http://quiz.test/index.html",
		Timeout: 30,
	})
	if code := models.CodeOf(err); code != models.ErrCodeBrowserCrash {
		t.Fatalf("code = %q, want %q", code, models.ErrCodeBrowserCrash)
	}
	if report.QuizURL != "http://quiz.test/index.html" {
		t.Errorf("quiz url = %q", report.QuizURL)
	}

	deadline, ok := opener.ctx.Deadline()
	if !ok {
		t.Fatal("run context has no deadline")
	}
	if left := time.Until(deadline); left > 30*time.Second || left < 25*time.Second {
		t.Errorf("deadline in %v, want ~30s", left)
	}

	if fi, err := os.Stat(filepath.Join(cfg.Screenshot.Dir, "run-abc")); err != nil || !fi.IsDir() {
		t.Errorf("job screenshot dir not created: %v", err)
	}
}

func TestRun_DefaultsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Walker.RunTimeout = 0
	opener := &recordingOpener{}
	r := New(cfg, opener, slog.New(slog.NewTextHandler(io.Discard, nil)))

	report, _ := r.Run(context.Background(), "", models.RunRequest{})
	if report.QuizURL != cfg.Walker.QuizURL {
		t.Errorf("quiz url = %q, want configured %q", report.QuizURL, cfg.Walker.QuizURL)
	}
	if _, ok := opener.ctx.Deadline(); ok {
		t.Error("unexpected deadline without run timeout")
	}
}

func TestNew_PreflightToggle(t *testing.T) {
	cfg := testConfig(t)
	if New(cfg, &recordingOpener{}, nil).checker != nil {
		t.Error("checker built with preflight disabled")
	}
	cfg.Preflight.Enabled = true
	if New(cfg, &recordingOpener{}, nil).checker == nil {
		t.Error("checker missing with preflight enabled")
	}
}
