// Package speech wires the recording session, connectivity probe, and
// transcription backends into one coordinator. It owns the transcription
// mode and decides, per call, which backend handles a clip.
package speech

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plates-app/plates-speech/internal/diaglog"
	"github.com/plates-app/plates-speech/internal/record"
	"github.com/plates-app/plates-speech/internal/stt"
	"github.com/plates-app/plates-speech/internal/transcript"
)

// Options names the collaborators a Service needs. Store and Diag are
// optional; nil disables transcript history / diagnostics respectively.
type Options struct {
	Session *record.Session
	Probe   stt.Probe
	Online  stt.Backend
	Offline stt.Backend
	Store   *transcript.Store
	Diag    *diaglog.Logger
	Log     zerolog.Logger
}

// Service coordinates recording and transcription. The mode is the only
// mutable state; its mutex is never held across recording or backend calls,
// so a slow transcription does not block mode reads or changes.
type Service struct {
	modeMu sync.RWMutex
	mode   stt.Mode

	lastMu      sync.Mutex
	lastBackend string

	session *record.Session
	probe   stt.Probe
	online  stt.Backend
	offline stt.Backend
	store   *transcript.Store
	diag    *diaglog.Logger
	log     zerolog.Logger
}

// New builds a Service starting in automatic mode.
func New(opts Options) *Service {
	return &Service{
		mode:    stt.ModeAuto,
		session: opts.Session,
		probe:   opts.Probe,
		online:  opts.Online,
		offline: opts.Offline,
		store:   opts.Store,
		diag:    opts.Diag,
		log:     opts.Log,
	}
}

// SetMode records the requested transcription mode. The change takes effect
// on the next transcription; a call already in flight keeps the backend it
// resolved at its start.
func (s *Service) SetMode(m stt.Mode) {
	s.modeMu.Lock()
	prev := s.mode
	s.mode = m
	s.modeMu.Unlock()

	if prev != m {
		s.log.Info().Str("from", string(prev)).Str("to", string(m)).Msg("transcription mode changed")
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentService,
			Event:     diaglog.EventModeChanged,
			Payload:   map[string]interface{}{"from": string(prev), "to": string(m)},
		})
	}
}

// Mode returns the currently requested mode.
func (s *Service) Mode() stt.Mode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// Recording reports whether a capture cycle is in progress.
func (s *Service) Recording() bool {
	return s.session.Recording()
}

// LastBackend returns the name of the backend the most recent
// transcription was routed to, or "" before the first one.
func (s *Service) LastBackend() string {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastBackend
}

// StartRecording begins a capture cycle. A second start while recording
// fails with a state error and leaves the cycle running.
func (s *Service) StartRecording() error {
	if err := s.session.Start(); err != nil {
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentService,
			Event:     diaglog.EventRecordingRejected,
			Reason:    err.Error(),
		})
		return err
	}
	s.log.Info().Msg("recording started")
	s.diag.Log(diaglog.LogEntry{Component: diaglog.ComponentService, Event: diaglog.EventRecordingStart})
	return nil
}

// StopRecording ends the capture cycle and immediately transcribes the
// resulting clip. Stopping while idle fails with a state error and runs no
// transcription.
func (s *Service) StopRecording(ctx context.Context) (*stt.Result, error) {
	clip, err := s.session.Stop()
	if err != nil {
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentService,
			Event:     diaglog.EventRecordingRejected,
			Reason:    err.Error(),
		})
		return nil, err
	}
	s.log.Info().Str("clip", clip.Path).Int("bytes", len(clip.Data)).Msg("recording stopped")
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentService,
		Event:     diaglog.EventRecordingStop,
		Payload:   map[string]interface{}{"path": clip.Path, "bytes": len(clip.Data)},
	})
	return s.TranscribeClip(ctx, clip)
}

// Transcribe reads an existing audio file and transcribes it. A file that
// cannot be read fails with an IO error before any backend is consulted.
func (s *Service) Transcribe(ctx context.Context, path string) (*stt.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &stt.Error{Kind: stt.KindIO, Msg: "read audio file", Err: err}
	}
	return s.TranscribeClip(ctx, stt.Clip{Path: path, Data: data, CapturedAt: time.Now()})
}

// TranscribeClip resolves the effective mode with a fresh probe, runs the
// selected backend, and persists a successful result when a store is
// configured.
func (s *Service) TranscribeClip(ctx context.Context, clip stt.Clip) (*stt.Result, error) {
	requestID := uuid.NewString()
	mode := s.Mode()
	effective := stt.Resolve(ctx, mode, s.probe)

	backend := s.offline
	if effective == stt.EffectiveOnline {
		backend = s.online
	}
	s.lastMu.Lock()
	s.lastBackend = backend.Name()
	s.lastMu.Unlock()

	s.log.Info().
		Str("request_id", requestID).
		Str("mode", string(mode)).
		Str("effective", string(effective)).
		Str("backend", backend.Name()).
		Msg("transcription started")
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentService,
		Event:     diaglog.EventTranscribeStart,
		RequestID: requestID,
		Payload: map[string]interface{}{
			"mode":      string(mode),
			"effective": string(effective),
			"backend":   backend.Name(),
			"clip":      clip.Path,
		},
	})

	res, err := backend.Transcribe(ctx, clip)
	if err != nil {
		s.log.Error().Str("request_id", requestID).Str("backend", backend.Name()).Err(err).Msg("transcription failed")
		s.diag.Log(diaglog.LogEntry{
			Component: diaglog.ComponentService,
			Event:     diaglog.EventTranscribeFailed,
			RequestID: requestID,
			Reason:    err.Error(),
		})
		return nil, err
	}

	s.log.Info().Str("request_id", requestID).Int("chars", len(res.Text)).Msg("transcription done")
	s.diag.Log(diaglog.LogEntry{
		Component: diaglog.ComponentService,
		Event:     diaglog.EventTranscribeDone,
		RequestID: requestID,
		Payload:   map[string]interface{}{"chars": len(res.Text), "language": res.Language},
	})

	if s.store != nil {
		if _, saveErr := s.store.Save(res, clip.CapturedAt); saveErr != nil {
			// History is best-effort; the transcription result still stands.
			s.log.Warn().Err(saveErr).Msg("transcript history write failed")
		}
	}

	return res, nil
}
