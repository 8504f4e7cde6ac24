package screenshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/quizwalker/models"
)

// Fixed screenshot names written once per successful run.
const (
	Landing    = "landing.png"
	AfterStart = "after_start.png"
	Results    = "results.png"
)

// Store writes PNG screenshots into a single directory.
type Store struct {
	dir string
	now func() time.Time
	log *slog.Logger
}

// NewStore creates dir if it is absent and returns a Store writing into it.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, models.NewWalkError(models.ErrCodeScreenshot, "failed to create screenshot dir", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, now: time.Now, log: logger}, nil
}

// SetClock replaces the clock used for timestamped names.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Dir returns the directory screenshots are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes data to <dir>/<name> and returns the written path.
func (s *Store) Save(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", models.NewWalkError(models.ErrCodeScreenshot, "failed to write "+name, err)
	}
	s.log.Info("saved screenshot", "path", path)
	return path, nil
}

// Timestamped returns "<prefix>_<unix seconds>.png". Names have
// seconds resolution, so two captures in the same second share a file.
func (s *Store) Timestamped(prefix string) string {
	return fmt.Sprintf("%s_%d.png", prefix, s.now().Unix())
}
