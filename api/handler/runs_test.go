package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/models"
	"github.com/use-agent/quizwalker/runstore"
	"github.com/use-agent/quizwalker/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type runnerFunc func(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error)

func (f runnerFunc) Run(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error) {
	return f(ctx, jobID, req)
}

func completedRunner() Runner {
	return runnerFunc(func(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error) {
		return &models.RunReport{QuizURL: req.QuizURL, Status: models.StatusCompleted}, nil
	})
}

func newTestService(t *testing.T, r Runner, maxRuns int) *RunService {
	t.Helper()
	cfg := config.Load()
	cfg.Server.MaxConcurrentRuns = maxRuns
	cfg.Webhook = config.WebhookConfig{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := runstore.New(0)
	t.Cleanup(store.Stop)
	svc := NewRunService(r, store, webhook.NewNotifier(logger), cfg, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func newTestEngine(svc *RunService) *gin.Engine {
	r := gin.New()
	r.POST("/runs", PostRun(svc))
	r.GET("/runs/:id", GetRun(svc))
	r.GET("/health", Health(svc, time.Now()))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitForStatus(t *testing.T, store *runstore.Store, id, want string) *models.RunJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := store.Get(id); ok && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %q", id, want)
	return nil
}

func TestPostRun_Async(t *testing.T) {
	svc := newTestService(t, completedRunner(), 2)
	r := newTestEngine(svc)

	w := doJSON(r, http.MethodPost, "/runs", `{"quiz_url":"http://localhost:8000/index.html"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.ID == "" || resp.Status != models.JobQueued {
		t.Errorf("resp = %+v", resp)
	}

	job := waitForStatus(t, svc.Store(), resp.ID, models.JobCompleted)
	if job.Report == nil || job.Report.Status != models.StatusCompleted {
		t.Errorf("report = %+v", job.Report)
	}

	w = doJSON(r, http.MethodGet, "/runs/"+resp.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
	var status models.RunStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Job == nil || status.Job.ID != resp.ID {
		t.Errorf("GET job = %+v", status.Job)
	}
}

func TestPostRun_WaitCompleted(t *testing.T) {
	svc := newTestService(t, completedRunner(), 1)
	r := newTestEngine(svc)

	w := doJSON(r, http.MethodPost, "/runs", `{"quiz_url":"http://localhost:8000/index.html","wait":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp models.RunStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Job.Status != models.JobCompleted {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPostRun_WaitFailedMapsStatus(t *testing.T) {
	failing := runnerFunc(func(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error) {
		err := models.NewWalkError(models.ErrCodeElementNotFound, "element did not appear: #startBtn", nil)
		return &models.RunReport{Status: models.StatusFailed, Error: err.ToDetail()}, err
	})
	svc := newTestService(t, failing, 1)
	r := newTestEngine(svc)

	w := doJSON(r, http.MethodPost, "/runs", `{"quiz_url":"http://localhost:8000/index.html","wait":true}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var resp models.RunStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != models.ErrCodeElementNotFound {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPostRun_InvalidInput(t *testing.T) {
	svc := newTestService(t, completedRunner(), 1)
	r := newTestEngine(svc)

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{}`},
		{"not a url", `{"quiz_url":"not a url"}`},
		{"timeout too large", `{"quiz_url":"http://x.test/","timeout":9999}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/runs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if n := svc.Store().Len(); n != 0 {
		t.Errorf("jobs created for invalid input: %d", n)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	svc := newTestService(t, completedRunner(), 1)
	w := doJSON(newTestEngine(svc), http.MethodGet, "/runs/run-missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRunService_BoundedConcurrency(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 4)
	blocking := runnerFunc(func(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error) {
		started <- jobID
		<-release
		return &models.RunReport{Status: models.StatusCompleted}, nil
	})
	svc := newTestService(t, blocking, 1)

	first, _ := svc.Submit(models.RunRequest{QuizURL: "http://a.test/"})
	second, secondDone := svc.Submit(models.RunRequest{QuizURL: "http://b.test/"})

	got := <-started
	select {
	case other := <-started:
		t.Fatalf("two runs started concurrently: %s and %s", got, other)
	case <-time.After(50 * time.Millisecond):
	}

	if stats := svc.Stats(); stats.ActiveRuns != 1 || stats.MaxConcurrent != 1 {
		t.Errorf("stats = %+v", stats)
	}

	w := doJSON(newTestEngine(svc), http.MethodGet, "/health", "")
	if !strings.Contains(w.Body.String(), `"degraded"`) {
		t.Errorf("health = %s, want degraded", w.Body.String())
	}

	close(release)
	<-secondDone
	waitForStatus(t, svc.Store(), first.ID, models.JobCompleted)
	waitForStatus(t, svc.Store(), second.ID, models.JobCompleted)
}

func TestRunService_Webhook(t *testing.T) {
	received := make(chan webhook.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if got, want := r.Header.Get(webhook.SignatureHeader), webhook.Sign("k", body); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
		var ev webhook.Event
		_ = json.Unmarshal(body, &ev)
		received <- ev
	}))
	defer hook.Close()

	svc := newTestService(t, completedRunner(), 1)
	svc.Submit(models.RunRequest{
		QuizURL:       "http://a.test/",
		WebhookURL:    hook.URL,
		WebhookSecret: "k",
	})

	select {
	case ev := <-received:
		if ev.Type != webhook.EventRunCompleted {
			t.Errorf("event type = %q", ev.Type)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestRunService_ShutdownCancelsRuns(t *testing.T) {
	waiting := runnerFunc(func(ctx context.Context, jobID string, req models.RunRequest) (*models.RunReport, error) {
		<-ctx.Done()
		return &models.RunReport{Status: models.StatusFailed},
			models.NewWalkError(models.ErrCodeCanceled, "walk canceled", ctx.Err())
	})
	svc := newTestService(t, waiting, 1)
	job, done := svc.Submit(models.RunRequest{QuizURL: "http://a.test/"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := svc.Shutdown(ctx); err == nil {
		t.Error("Shutdown() = nil, want deadline error")
	}
	<-done

	final, _ := svc.Store().Get(job.ID)
	if final.Status != models.JobFailed || final.Error.Code != models.ErrCodeCanceled {
		t.Errorf("job = %+v", final)
	}
}

func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeElementNotFound, http.StatusBadGateway},
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeNotFound, http.StatusNotFound},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{models.ErrCodeLoopExhausted, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapErrorToStatus(tt.code); got != tt.want {
			t.Errorf("mapErrorToStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

