package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// StatusSnapshot is the daemon state published for frontends to poll.
type StatusSnapshot struct {
	Mode         string    `json:"mode"`                    // requested mode: online/offline/auto
	Recording    bool      `json:"recording"`               // capture cycle in progress
	LastBackend  string    `json:"last_backend,omitempty"`  // backend that served the last transcription
	LastText     string    `json:"last_text,omitempty"`     // last successful transcription
	LastLanguage string    `json:"last_language,omitempty"` // language reported with it
	LastError    string    `json:"last_error,omitempty"`    // last failure, cleared on success
	Timestamp    time.Time `json:"timestamp"`               // snapshot time
}

// StatusPath returns the file the daemon publishes its state to.
func StatusPath() string {
	return filepath.Join(cacheDir(), "speech-status.json")
}

// WriteStatus persists the snapshot atomically so readers never observe a
// partially written file.
func WriteStatus(status *StatusSnapshot) error {
	if err := os.MkdirAll(cacheDir(), 0755); err != nil {
		return err
	}
	return atomicWriteJSON(StatusPath(), status)
}

// ReadStatus loads the last published snapshot.
func ReadStatus() (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath())
	if err != nil {
		return nil, err
	}
	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename.
func atomicWriteJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Ensure cleanup on error
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent defer cleanup

	return os.Rename(tmpPath, path)
}
