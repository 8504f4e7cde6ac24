package runstore

import (
	"strings"
	"testing"
	"time"

	"github.com/use-agent/quizwalker/models"
)

func TestCreateGet(t *testing.T) {
	s := New(0)
	defer s.Stop()

	job := s.Create("http://localhost:8000/index.html")
	if !strings.HasPrefix(job.ID, "run-") {
		t.Errorf("id = %q, want run- prefix", job.ID)
	}
	if job.Status != models.JobQueued {
		t.Errorf("status = %q, want queued", job.Status)
	}

	got, ok := s.Get(job.ID)
	if !ok {
		t.Fatal("job not found")
	}
	if got.QuizURL != job.QuizURL {
		t.Errorf("quiz url = %q", got.QuizURL)
	}

	if _, ok := s.Get("run-missing"); ok {
		t.Error("unexpected hit for unknown id")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(0)
	defer s.Stop()

	job := s.Create("http://example.com")
	got, _ := s.Get(job.ID)
	got.Status = models.JobFailed

	again, _ := s.Get(job.ID)
	if again.Status != models.JobQueued {
		t.Errorf("store was mutated through a copy: %q", again.Status)
	}
}

func TestUpdate(t *testing.T) {
	s := New(0)
	defer s.Stop()
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	job := s.Create("http://example.com")
	clock = clock.Add(time.Minute)

	ok := s.Update(job.ID, func(j *models.RunJob) {
		j.Status = models.JobCompleted
		j.Report = &models.RunReport{Status: models.StatusCompleted}
	})
	if !ok {
		t.Fatal("Update() = false")
	}

	got, _ := s.Get(job.ID)
	if got.Status != models.JobCompleted || got.Report == nil {
		t.Errorf("job = %+v", got)
	}
	if got.UpdatedAt != clock.Unix() {
		t.Errorf("updated_at = %d, want %d", got.UpdatedAt, clock.Unix())
	}

	if s.Update("run-missing", func(*models.RunJob) {}) {
		t.Error("Update() on unknown id = true")
	}
}

func TestEvictExpired(t *testing.T) {
	s := New(0)
	defer s.Stop()
	s.ttl = time.Hour
	clock := time.Unix(10_000, 0)
	s.now = func() time.Time { return clock }

	done := s.Create("http://example.com/done")
	s.Update(done.ID, func(j *models.RunJob) { j.Status = models.JobCompleted })
	running := s.Create("http://example.com/running")
	s.Update(running.ID, func(j *models.RunJob) { j.Status = models.JobRunning })

	clock = clock.Add(2 * time.Hour)
	fresh := s.Create("http://example.com/fresh")
	s.Update(fresh.ID, func(j *models.RunJob) { j.Status = models.JobFailed })

	if n := s.evictExpired(); n != 1 {
		t.Errorf("evicted = %d, want 1", n)
	}
	if _, ok := s.Get(done.ID); ok {
		t.Error("expired finished job survived")
	}
	if _, ok := s.Get(running.ID); !ok {
		t.Error("running job was evicted")
	}
	if _, ok := s.Get(fresh.ID); !ok {
		t.Error("fresh job was evicted")
	}
}

func TestCleanupInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{time.Hour, 5 * time.Minute},
		{4 * time.Minute, time.Minute},
		{time.Second, time.Second},
	}
	for _, tt := range tests {
		if got := cleanupInterval(tt.ttl); got != tt.want {
			t.Errorf("cleanupInterval(%v) = %v, want %v", tt.ttl, got, tt.want)
		}
	}
}

func TestStopIdempotent(t *testing.T) {
	s := New(time.Minute)
	s.Stop()
	s.Stop()
}
