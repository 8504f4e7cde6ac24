package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/models"
	"github.com/use-agent/quizwalker/runstore"
	"github.com/use-agent/quizwalker/webhook"
)

// Runner performs one walk. jobID scopes logs and artifacts.
type Runner interface {
	Run(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error)
}

// RunService schedules API runs in the background with bounded concurrency.
type RunService struct {
	runner   Runner
	store    *runstore.Store
	notifier *webhook.Notifier
	hook     config.WebhookConfig
	log      *slog.Logger

	sem    chan struct{}
	active atomic.Int32
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunService creates a RunService allowing maxConcurrent walks at once.
func NewRunService(runner Runner, store *runstore.Store, notifier *webhook.Notifier, cfg *config.Config, logger *slog.Logger) *RunService {
	if logger == nil {
		logger = slog.Default()
	}
	maxConcurrent := cfg.Server.MaxConcurrentRuns
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunService{
		runner:   runner,
		store:    store,
		notifier: notifier,
		hook:     cfg.Webhook,
		log:      logger,
		sem:      make(chan struct{}, maxConcurrent),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Stats reports run slot usage.
func (s *RunService) Stats() models.RunnerStats {
	return models.RunnerStats{
		MaxConcurrent: cap(s.sem),
		ActiveRuns:    int(s.active.Load()),
	}
}

// Store returns the job store backing the service.
func (s *RunService) Store() *runstore.Store { return s.store }

// Submit queues a walk for req and returns the created job together with a
// channel closed once the job reaches a terminal state.
func (s *RunService) Submit(req models.RunRequest) (*models.RunJob, <-chan struct{}) {
	job := s.store.Create(req.QuizURL)
	done := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.execute(job.ID, req)
	}()

	return job, done
}

// Shutdown waits for in-flight runs until ctx ends, then cancels them and
// waits for them to unwind.
func (s *RunService) Shutdown(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-finished
		return ctx.Err()
	}
}

// execute runs one job: wait for a slot, walk, record, notify.
func (s *RunService) execute(id string, req models.RunRequest) {
	// ── 1. Acquire a run slot ─────────────────────────────────────────
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		s.finish(id, req, nil, models.NewWalkError(models.ErrCodeCanceled, "server shutting down", s.ctx.Err()))
		return
	}
	defer func() { <-s.sem }()

	s.active.Add(1)
	defer s.active.Add(-1)

	s.store.Update(id, func(j *models.RunJob) { j.Status = models.JobRunning })
	s.log.Info("run started", "id", id, "url", req.QuizURL)

	// ── 2. Walk ───────────────────────────────────────────────────────
	report, err := s.runner.Run(s.ctx, id, req)

	// ── 3. Record + notify ────────────────────────────────────────────
	s.finish(id, req, report, err)
}

func (s *RunService) finish(id string, req models.RunRequest, report *models.RunReport, err error) {
	s.store.Update(id, func(j *models.RunJob) {
		j.Report = report
		if err != nil {
			j.Status = models.JobFailed
			j.Error = models.DetailOf(err)
			return
		}
		j.Status = models.JobCompleted
	})

	job, _ := s.store.Get(id)
	s.log.Info("run finished",
		"id", id,
		"status", job.Status,
		"error_code", errorCode(job.Error),
	)

	url, secret := req.WebhookURL, req.WebhookSecret
	if url == "" {
		url, secret = s.hook.URL, s.hook.Secret
	}
	if url != "" && s.notifier != nil {
		s.notifier.DeliverAsync(url, secret, webhook.NewRunEvent(job))
	}
}

func errorCode(d *models.ErrorDetail) string {
	if d == nil {
		return ""
	}
	return d.Code
}

// PostRun returns a handler for POST /api/v1/runs.
//
// The run executes in the background and the job id is returned with 202.
// With "wait": true the handler holds the response until the run ends and
// maps a failed run's error code to the HTTP status.
func PostRun(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, &models.ErrorDetail{
				Code:    models.ErrCodeInvalidInput,
				Message: "invalid request: " + err.Error(),
			})
			return
		}
		req.Defaults()

		job, done := svc.Submit(req)

		if !req.Wait {
			c.JSON(http.StatusAccepted, models.RunResponse{
				Success: true,
				ID:      job.ID,
				Status:  job.Status,
			})
			return
		}

		select {
		case <-done:
		case <-c.Request.Context().Done():
			// Client went away; the run continues and stays queryable.
			return
		}

		final, _ := svc.Store().Get(job.ID)
		if final.Status == models.JobFailed {
			c.JSON(mapErrorToStatus(errorCode(final.Error)), models.RunStatusResponse{
				Success: false,
				Job:     final,
				Error:   final.Error,
			})
			return
		}
		c.JSON(http.StatusOK, models.RunStatusResponse{Success: true, Job: final})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(svc *RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := svc.Store().Get(c.Param("id"))
		if !ok {
			respondError(c, &models.ErrorDetail{
				Code:    models.ErrCodeNotFound,
				Message: "run not found",
			})
			return
		}
		c.JSON(http.StatusOK, models.RunStatusResponse{Success: true, Job: job})
	}
}
