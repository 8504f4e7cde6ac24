// Package runstore keeps API-submitted walk jobs in memory until they expire.
package runstore

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/quizwalker/models"
)

// Store is an in-memory job table. It is safe for concurrent use.
// Get returns copies, so callers never observe a job mid-update.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.RunJob
	ttl  time.Duration
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Store. Finished jobs last updated more than ttl ago are
// evicted by a background goroutine until Stop is called.
// A ttl <= 0 disables eviction.
func New(ttl time.Duration) *Store {
	s := &Store{
		jobs: make(map[string]*models.RunJob),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if ttl > 0 {
		go s.cleanupLoop(cleanupInterval(ttl))
	}
	return s
}

// cleanupInterval sweeps a few times per ttl, at most every 5 minutes.
func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// Create registers a queued job for quizURL and returns a copy of it.
func (s *Store) Create(quizURL string) *models.RunJob {
	now := s.now().Unix()
	job := &models.RunJob{
		ID:        "run-" + randomID(),
		Status:    models.JobQueued,
		QuizURL:   quizURL,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	cp := *job
	return &cp
}

// Get returns a copy of the job with id.
func (s *Store) Get(id string) (*models.RunJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// Update applies fn to the stored job under the write lock and bumps
// UpdatedAt. It reports whether the job exists.
func (s *Store) Update(id string, fn func(job *models.RunJob)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	fn(job)
	job.UpdatedAt = s.now().Unix()
	return true
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stop:
			return
		}
	}
}

// evictExpired drops finished jobs older than ttl. Queued and running jobs
// are kept regardless of age.
func (s *Store) evictExpired() int {
	cutoff := s.now().Add(-s.ttl).Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, job := range s.jobs {
		if !finished(job.Status) {
			continue
		}
		if job.UpdatedAt < cutoff {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}

func finished(status string) bool {
	return status == models.JobCompleted || status == models.JobFailed
}

// randomID generates a short random hex string for job IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
