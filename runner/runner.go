// Package runner turns a run request into one configured walk: it applies
// per-run overrides, prepares the screenshot directory, runs the advisory
// preflight and executes the walker under the run deadline.
package runner

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/models"
	"github.com/use-agent/quizwalker/preflight"
	"github.com/use-agent/quizwalker/screenshot"
	"github.com/use-agent/quizwalker/walker"
)

// Runner executes walks with a shared configuration and session opener.
// It is safe for concurrent use as long as the opener is.
type Runner struct {
	cfg    *config.Config
	opener walker.Opener
	log    *slog.Logger

	// checker is nil when preflight is disabled.
	checker *preflight.Checker
}

// New creates a Runner. A nil logger falls back to slog.Default().
func New(cfg *config.Config, opener walker.Opener, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{cfg: cfg, opener: opener, log: logger}
	if cfg.Preflight.Enabled {
		r.checker = preflight.New(cfg.Preflight, cfg.Browser.Proxy, cfg.Walker.Selectors, logger)
	}
	return r
}

// Run walks req.QuizURL. jobID, when set, scopes the logger and places
// screenshots under <dir>/<jobID>. An empty QuizURL falls back to the
// configured one; a zero Timeout falls back to the configured run timeout.
func (r *Runner) Run(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error) {
	logger := r.log
	if jobID != "" {
		logger = logger.With("job_id", jobID)
	}

	wcfg := r.cfg.Walker
	if req.QuizURL != "" {
		wcfg.QuizURL = req.QuizURL
	}
	if req.MaxIterations > 0 {
		wcfg.MaxIterations = req.MaxIterations
	}

	timeout := wcfg.RunTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// ── 1. Preflight (advisory) ───────────────────────────────────────
	if r.checker != nil {
		if _, err := r.checker.Check(ctx, wcfg.QuizURL); err != nil {
			logger.Warn("preflight check failed, continuing", "url", wcfg.QuizURL, "error", err)
		}
	}

	// ── 2. Screenshot directory ───────────────────────────────────────
	dir := r.cfg.Screenshot.Dir
	if jobID != "" {
		dir = filepath.Join(dir, jobID)
	}
	shots, err := screenshot.NewStore(dir, logger)
	if err != nil {
		now := time.Now().Unix()
		return &models.RunReport{
			QuizURL:     wcfg.QuizURL,
			Status:      models.StatusFailed,
			Questions:   []models.QuestionRecord{},
			Screenshots: []string{},
			StartedAt:   now,
			FinishedAt:  now,
			Error:       models.DetailOf(err),
		}, err
	}

	// ── 3. Walk ───────────────────────────────────────────────────────
	return walker.New(wcfg, r.opener, shots, logger).Run(ctx)
}
