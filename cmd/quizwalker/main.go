// Command quizwalker walks a quiz page once: it opens the page in a
// browser, answers every question with a fixed choice, submits, and records
// screenshots and the page's results payload. Configuration comes from
// QUIZWALKER_* environment variables.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/use-agent/quizwalker/browser"
	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/logging"
	"github.com/use-agent/quizwalker/models"
	"github.com/use-agent/quizwalker/runner"
	"github.com/use-agent/quizwalker/walker"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	closeLog, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	slog.Info("quizwalker starting",
		"url", cfg.Walker.QuizURL,
		"headless", cfg.Browser.Headless,
		"screenshots", cfg.Screenshot.Dir,
		"log", cfg.Log.File,
	)

	// ── 3. Interrupts cancel the walk ───────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 4. Walk ─────────────────────────────────────────────────────
	lc := browser.NewLauncher(cfg.Browser, slog.Default())
	run(ctx, runner.New(cfg, sessionOpener(lc), slog.Default()))
}

// sessionOpener adapts the launcher to walker.Opener. The explicit nil
// check keeps a failed launch from turning into a non-nil interface.
func sessionOpener(lc *browser.Launcher) walker.Opener {
	return walker.OpenerFunc(func(ctx context.Context) (walker.Session, error) {
		s, err := lc.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// run performs one walk. Failures, including panics, are logged and never
// change the exit status.
func run(ctx context.Context, r *runner.Runner) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("automation failed",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
		}
	}()

	report, err := r.Run(ctx, "", models.RunRequest{})
	if err != nil {
		slog.Error("automation failed",
			"code", models.CodeOf(err),
			"error", err,
			"stack", string(debug.Stack()),
		)
	}
	if report == nil {
		return
	}

	slog.Info("automation finished",
		"status", report.Status,
		"questions", len(report.Questions),
		"screenshots", len(report.Screenshots),
		"duration_ms", report.DurationMs,
		"detailed_results", report.DetailedResults != "",
	)
}
