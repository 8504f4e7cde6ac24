package screenshot

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "shots")
	s, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("dir %s was not created: %v", dir, err)
	}
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}

	// Existing directory is fine.
	if _, err := NewStore(dir, nil); err != nil {
		t.Errorf("NewStore on existing dir: %v", err)
	}
}

func TestSave(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	png := []byte("\x89PNG fake")

	path, err := s.Save(Landing, png)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "landing.png" {
		t.Errorf("path = %q", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Errorf("content mismatch: %q", got)
	}
}

func TestTimestamped(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.SetClock(func() time.Time { return time.Unix(1700000000, 999_000_000) })

	if got := s.Timestamped("question"); got != "question_1700000000.png" {
		t.Errorf("Timestamped = %q", got)
	}
	// Same second, same name: later captures overwrite earlier ones.
	if a, b := s.Timestamped("selected"), s.Timestamped("selected"); a != b {
		t.Errorf("names within one second differ: %q vs %q", a, b)
	}
}
