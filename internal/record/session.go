// Package record owns the recording session lifecycle: a guarded
// Idle/Recording state machine that materializes each start/stop cycle
// into exactly one audio clip on disk.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/plates-app/plates-speech/internal/stt"
)

// Source abstracts the actual audio capture mechanism. The real microphone
// pipeline lives in the host application; the session only guarantees the
// state transitions and ownership of the captured buffer.
type Source interface {
	// Begin starts accumulating audio.
	Begin() error
	// End stops accumulating and returns everything captured since Begin.
	End() ([]byte, error)
}

// Session tracks whether a recording is in progress and produces a clip per
// completed cycle. The recording flag is the only mutable state; the mutex
// is held for the read-modify-write of the flag only, never across capture
// or file I/O, so concurrent callers of unrelated operations are not
// blocked behind a slow stop.
type Session struct {
	mu        sync.Mutex
	recording bool

	dir    string
	source Source
	now    func() time.Time // test hook
}

// NewSession creates a session writing clips under dir. Clips are named by
// capture timestamp so cycles never collide on storage.
func NewSession(dir string, source Source) *Session {
	return &Session{dir: dir, source: source, now: time.Now}
}

// Start transitions Idle -> Recording. Calling it while already recording
// fails with a state error and leaves the session recording.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return &stt.Error{Kind: stt.KindState, Msg: "already recording"}
	}
	s.recording = true
	s.mu.Unlock()

	if err := s.source.Begin(); err != nil {
		s.mu.Lock()
		s.recording = false
		s.mu.Unlock()
		return &stt.Error{Kind: stt.KindIO, Msg: "begin audio capture", Err: err}
	}
	return nil
}

// Stop transitions Recording -> Idle and materializes the captured audio
// into a clip. Calling it while idle fails with a state error and never
// produces a clip.
func (s *Session) Stop() (stt.Clip, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return stt.Clip{}, &stt.Error{Kind: stt.KindState, Msg: "not recording"}
	}
	s.recording = false
	s.mu.Unlock()

	data, err := s.source.End()
	if err != nil {
		return stt.Clip{}, &stt.Error{Kind: stt.KindIO, Msg: "end audio capture", Err: err}
	}

	capturedAt := s.now()
	path := filepath.Join(s.dir, clipFilename(capturedAt))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return stt.Clip{}, &stt.Error{Kind: stt.KindIO, Msg: "write audio file", Err: err}
	}

	return stt.Clip{Path: path, Data: data, CapturedAt: capturedAt}, nil
}

// Recording reports whether a cycle is in progress.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// clipFilename derives a unique wav filename from the capture timestamp.
// The nanosecond suffix keeps two stops within the same second apart.
func clipFilename(t time.Time) string {
	return fmt.Sprintf("recording_%d_%09d.wav", t.Unix(), t.Nanosecond())
}
