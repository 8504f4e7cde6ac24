package walker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/extract"
	"github.com/use-agent/quizwalker/models"
	"github.com/use-agent/quizwalker/screenshot"
	"github.com/use-agent/quizwalker/simhash"
)

// Walker walks one quiz page from landing to results.
// A Walker may run several times, but each Run owns its own Session.
type Walker struct {
	cfg     config.WalkerConfig
	opener  Opener
	shots   *screenshot.Store
	conv    *extract.Converter
	results *extract.ResultExtractor
	log     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Walker. A nil logger falls back to slog.Default().
func New(cfg config.WalkerConfig, opener Opener, shots *screenshot.Store, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		cfg:     cfg,
		opener:  opener,
		shots:   shots,
		conv:    extract.NewConverter(),
		results: extract.NewResultExtractor(cfg.Selectors.ResultMarker),
		log:     logger,
		sleep:   sleepCtx,
		now:     time.Now,
	}
}

// Run performs the walk and returns its report. The report is non-nil even
// when err is non-nil; err is a *models.WalkError for every failure the
// walker classifies.
//
// Lifecycle:
//
//  1. Open session              - exclusive browser for this run
//  2. DEFER: shutdown           - settle, close exactly once, on every path
//  3. Landing                   - navigate, settle, title/URL, landing.png
//  4. Start                     - click start (fatal if missing), after_start.png
//  5. Traverse                  - question loop until options vanish or results show
//  6. Results (best-effort)     - console payload + summary panel
func (w *Walker) Run(ctx context.Context) (report *models.RunReport, err error) {
	started := w.now()
	report = &models.RunReport{
		QuizURL:     w.cfg.QuizURL,
		Status:      models.StatusFailed,
		Questions:   []models.QuestionRecord{},
		Screenshots: []string{},
		StartedAt:   started.Unix(),
	}
	defer func() {
		finished := w.now()
		report.FinishedAt = finished.Unix()
		report.DurationMs = finished.Sub(started).Milliseconds()
		if err != nil {
			report.Status = models.StatusFailed
			report.Error = models.DetailOf(err)
		}
	}()

	// ── 1. Open session ───────────────────────────────────────────────
	sess, err := w.opener.Open(ctx)
	if err != nil {
		return report, err
	}

	// ── 2. Shutdown runs on every exit path ──────────────────────────
	defer w.shutdown(ctx, sess)

	// ── 3-4. Landing and start gesture ───────────────────────────────
	if err := w.start(ctx, sess, report); err != nil {
		return report, err
	}

	// ── 5. Traverse ───────────────────────────────────────────────────
	status, err := w.traverse(ctx, sess, report)
	if err != nil {
		return report, err
	}
	report.Status = status

	// ── 6. Results extraction (best-effort) ──────────────────────────
	w.collectResults(ctx, sess, report)
	return report, nil
}

func (w *Walker) start(ctx context.Context, sess Session, report *models.RunReport) error {
	sel := w.cfg.Selectors

	w.log.Info("opening quiz URL", "url", w.cfg.QuizURL)
	if err := sess.Navigate(ctx, w.cfg.QuizURL); err != nil {
		return err
	}
	if err := w.pause(ctx, w.cfg.StartSettle); err != nil {
		return err
	}

	title, finalURL, err := sess.PageInfo(ctx)
	if err != nil {
		return err
	}
	report.PageTitle = title
	report.FinalURL = finalURL
	w.log.Info("page loaded", "title", title, "url", finalURL)

	if err := w.capture(ctx, sess, report, screenshot.Landing); err != nil {
		return err
	}

	// A missing start button means the page is not the quiz we expect.
	if err := w.bounded(ctx, func(c context.Context) error {
		return sess.Click(c, sel.StartButton)
	}); err != nil {
		return err
	}
	w.log.Info("clicked start", "selector", sel.StartButton)

	if err := w.pause(ctx, w.cfg.StartSettle); err != nil {
		return err
	}
	return w.capture(ctx, sess, report, screenshot.AfterStart)
}

// traverse runs the question loop. It returns StatusCompleted when the
// results panel shows and StatusNoOptions when a question has no options.
func (w *Walker) traverse(ctx context.Context, sess Session, report *models.RunReport) (models.RunStatus, error) {
	sel := w.cfg.Selectors

	var lastFP uint64
	repeats := 0

	for iteration := 1; ; iteration++ {
		if w.cfg.MaxIterations > 0 && iteration > w.cfg.MaxIterations {
			w.log.Error("results never appeared, giving up",
				"iterations", w.cfg.MaxIterations,
			)
			return models.StatusFailed, models.NewWalkError(
				models.ErrCodeLoopExhausted,
				fmt.Sprintf("results not displayed after %d iterations", w.cfg.MaxIterations),
				nil,
			)
		}

		// ── a. Let the question render ───────────────────────────────
		if err := w.pause(ctx, w.cfg.QuestionSettle); err != nil {
			return models.StatusFailed, err
		}
		if err := w.bounded(ctx, func(c context.Context) error {
			return sess.WaitVisible(c, sel.QuestionText)
		}); err != nil {
			return models.StatusFailed, err
		}

		// ── b. Read question ─────────────────────────────────────────
		text, err := sess.Text(ctx, sel.QuestionText)
		if err != nil {
			return models.StatusFailed, err
		}
		w.log.Info("question displayed", "iteration", iteration, "text", text)

		if err := w.capture(ctx, sess, report, w.shots.Timestamped("question")); err != nil {
			return models.StatusFailed, err
		}

		// ── c. Options ───────────────────────────────────────────────
		labels, err := sess.OptionLabels(ctx, sel.Options)
		if err != nil {
			return models.StatusFailed, err
		}
		if len(labels) == 0 {
			w.log.Error("no options found", "iteration", iteration, "selector", sel.Options)
			return models.StatusNoOptions, nil
		}

		idx := SelectOption(len(labels))
		if err := w.bounded(ctx, func(c context.Context) error {
			return sess.ClickNth(c, sel.Options, idx)
		}); err != nil {
			return models.StatusFailed, err
		}
		w.log.Info("selected option", "index", idx, "label", labels[idx])

		if err := w.capture(ctx, sess, report, w.shots.Timestamped("selected")); err != nil {
			return models.StatusFailed, err
		}

		// ── d. Advance ───────────────────────────────────────────────
		advance, err := w.advance(ctx, sess)
		if err != nil {
			return models.StatusFailed, err
		}

		obs := models.QuestionObservation{Text: text, Options: labels}
		report.Questions = append(report.Questions, models.QuestionRecord{
			Iteration:     iteration,
			Observation:   obs,
			SelectedIndex: idx,
			Advance:       advance,
		})

		// ── e. Terminal check ────────────────────────────────────────
		hidden, err := sess.HasClass(ctx, sel.Results, sel.HiddenClass)
		if err != nil {
			return models.StatusFailed, err
		}
		if !hidden {
			w.log.Info("results displayed", "questions", len(report.Questions))
			if err := w.capture(ctx, sess, report, screenshot.Results); err != nil {
				return models.StatusFailed, err
			}
			return models.StatusCompleted, nil
		}

		fp := simhash.Observation(obs)
		if iteration > 1 && fp == lastFP {
			repeats++
		} else {
			repeats = 1
		}
		lastFP = fp
		if w.cfg.StallThreshold > 0 && repeats == w.cfg.StallThreshold {
			w.log.Warn("question has not changed, page may be stuck",
				"repeats", repeats,
				"text", text,
			)
		}
	}
}

// advance clicks Next, or Submit when Next is unavailable. Failing to do
// either is logged and swallowed so the caller still runs the terminal check;
// only context cancellation escapes.
func (w *Walker) advance(ctx context.Context, sess Session) (string, error) {
	sel := w.cfg.Selectors

	clicked, err := sess.ClickIfPresent(ctx, sel.NextButton)
	if err != nil {
		if ctxErr := interrupted(ctx); ctxErr != nil {
			return models.AdvanceNone, ctxErr
		}
		w.log.Info("next click failed; attempting submit", "error", err)
	}
	if clicked {
		w.log.Info("clicked next")
		return models.AdvanceNext, w.pause(ctx, w.cfg.AdvanceSettle)
	}
	if err == nil {
		w.log.Info("next not available; attempting submit")
	}

	clicked, err = sess.ClickIfPresent(ctx, sel.SubmitButton)
	if err != nil {
		if ctxErr := interrupted(ctx); ctxErr != nil {
			return models.AdvanceNone, ctxErr
		}
	}
	if clicked {
		w.log.Info("clicked submit")
		return models.AdvanceSubmit, w.pause(ctx, w.cfg.SubmitSettle)
	}

	if err == nil {
		err = errors.New("neither next nor submit is available")
	}
	w.log.Error("failed to navigate forward", "error", err)
	return models.AdvanceNone, nil
}

// collectResults logs the page's DETAILED_RESULTS console payload and the
// results summary. Nothing here fails the run.
func (w *Walker) collectResults(ctx context.Context, sess Session, report *models.RunReport) {
	sel := w.cfg.Selectors

	if report.Status == models.StatusCompleted {
		if html, err := sess.InnerHTML(ctx, sel.Summary); err != nil {
			w.log.Info("could not read results summary", "error", err)
		} else if md, err := w.conv.SummaryMarkdown(html, quizDomain(w.cfg.QuizURL)); err != nil {
			w.log.Info("could not convert results summary", "error", err)
		} else if md != "" {
			report.Summary = md
			w.log.Info("results summary", "markdown", md)
		}
	}

	messages, err := sess.ConsoleMessages()
	if err != nil {
		w.log.Info("could not fetch browser logs", "error", err)
		return
	}
	for _, msg := range messages {
		if !w.results.Match(msg) {
			continue
		}
		w.log.Info("found results marker in console", "marker", w.results.Marker())
		if payload, ok := w.results.Extract(msg); ok {
			report.DetailedResults = payload
			w.log.Info("extracted JSON", "json", payload)
		}
	}
}

// shutdown waits the configured delay and closes the session. It runs
// even when ctx is already cancelled.
func (w *Walker) shutdown(ctx context.Context, sess Session) {
	_ = w.sleep(context.WithoutCancel(ctx), w.cfg.ShutdownDelay)
	if err := sess.Close(); err != nil {
		w.log.Warn("driver close failed", "error", err)
		return
	}
	w.log.Info("driver closed")
}

func (w *Walker) capture(ctx context.Context, sess Session, report *models.RunReport, name string) error {
	png, err := sess.Screenshot(ctx)
	if err != nil {
		return err
	}
	path, err := w.shots.Save(name, png)
	if err != nil {
		return err
	}
	report.Screenshots = append(report.Screenshots, path)
	return nil
}

// bounded runs fn with the element timeout applied.
func (w *Walker) bounded(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, w.cfg.ElementTimeout)
	defer cancel()
	return fn(c)
}

func (w *Walker) pause(ctx context.Context, d time.Duration) error {
	if err := w.sleep(ctx, d); err != nil {
		return interrupted(ctx)
	}
	return nil
}

// interrupted converts a finished ctx into a WalkError, or returns nil.
func interrupted(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewWalkError(models.ErrCodeTimeout, "walk deadline exceeded", err)
	default:
		return models.NewWalkError(models.ErrCodeCanceled, "walk canceled", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func quizDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
