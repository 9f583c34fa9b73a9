// Package transcript persists finished transcriptions as plain text files
// so a session's results survive daemon restarts.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/plates-app/plates-speech/internal/stt"
)

// Store writes one file per transcription under a fixed directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating transcript directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the result to a timestamped file and returns its path. The
// filename carries the capture time so entries sort chronologically.
func (s *Store) Save(res *stt.Result, capturedAt time.Time) (string, error) {
	name := fmt.Sprintf("transcript_%s.txt", capturedAt.Format("2006-01-02_150405.000"))
	path := filepath.Join(s.dir, name)

	var body string
	if res.Language != "" {
		body = fmt.Sprintf("# %s (%s)\n\n%s\n", capturedAt.Format(time.RFC3339), res.Language, res.Text)
	} else {
		body = fmt.Sprintf("# %s\n\n%s\n", capturedAt.Format(time.RFC3339), res.Text)
	}

	if err := atomicWrite(path, []byte(body)); err != nil {
		return "", err
	}
	return path, nil
}

// atomicWrite writes data to path atomically using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing transcript: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing transcript: %w", err)
	}
	tmpFile = nil // prevent defer cleanup

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming transcript: %w", err)
	}
	return nil
}
