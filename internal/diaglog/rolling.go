package diaglog

import (
	"fmt"
	"os"
	"sync"
)

// rollingWriter appends NDJSON lines to a single file with a hard size cap.
// When an entry would push the file past the cap, the file is reset to zero
// and the entry starts a fresh window, so the log always holds the most
// recent activity and never grows unbounded on long daemon runs.
type rollingWriter struct {
	mu   sync.Mutex
	file *os.File
	used int64
	cap  int64
}

func newRollingWriter(path string, capBytes int64) (*rollingWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening diagnostic log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("sizing diagnostic log: %w", err)
	}
	return &rollingWriter{file: file, used: info.Size(), cap: capBytes}, nil
}

func (w *rollingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.used+int64(len(p)) > w.cap {
		if err := w.file.Truncate(0); err != nil {
			return 0, err
		}
		if _, err := w.file.Seek(0, 0); err != nil {
			return 0, err
		}
		w.used = 0
	}

	n, err := w.file.Write(p)
	w.used += int64(n)
	if err != nil {
		return n, err
	}
	// Sync per entry so the log survives a crash mid-session.
	_ = w.file.Sync()
	return n, nil
}

func (w *rollingWriter) close() error {
	_ = w.file.Sync()
	return w.file.Close()
}
