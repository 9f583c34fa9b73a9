// Package localstt implements the offline transcription backend. Offline
// is deliberately non-absolute: when connectivity happens to be available
// at call time the backend prefers the remote REST fallback, and only runs
// the local engine when the network truly is not there. That preference is
// documented policy, not a bug.
package localstt

import (
	"context"
	"sync"

	"github.com/plates-app/plates-speech/internal/diaglog"
	"github.com/plates-app/plates-speech/internal/stt"
)

// BackendName identifies this backend in errors and diagnostics.
const BackendName = "local_stt"

// Engine is the local, self-contained transcription path. Engine internals
// (model loading, inference) are pluggable; the backend only relies on the
// contract shape.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, clip stt.Clip) (*stt.Result, error)
}

// Backend chooses between the remote fallback and the local engine with a
// fresh connectivity probe on every call. The probe here is independent of
// whatever decision routed the call to this backend in the first place.
type Backend struct {
	probe  stt.Probe
	remote stt.Backend
	engine Engine

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// Compile-time interface check.
var _ stt.Backend = (*Backend)(nil)

// New creates the offline backend. remote may be nil to disable the
// network fallback entirely (then every call runs the engine).
func New(probe stt.Probe, remote stt.Backend, engine Engine) *Backend {
	return &Backend{probe: probe, remote: remote, engine: engine}
}

// SetLogger injects a diaglog.Logger for decision tracing.
func (b *Backend) SetLogger(l *diaglog.Logger) {
	b.loggerMu.Lock()
	b.logger = l
	b.loggerMu.Unlock()
}

func (b *Backend) log(entry diaglog.LogEntry) {
	b.loggerMu.RLock()
	l := b.logger
	b.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentLocalSTT
	}
	l.Log(entry)
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return BackendName }

// Transcribe delegates to the remote fallback when reachable, otherwise
// runs the local engine. Errors from whichever path ran propagate
// unchanged.
func (b *Backend) Transcribe(ctx context.Context, clip stt.Clip) (*stt.Result, error) {
	if b.remote != nil && b.probe != nil && b.probe.Online(ctx) {
		b.log(diaglog.LogEntry{Event: diaglog.EventProbeResult, Reason: "online, delegating to remote fallback"})
		return b.remote.Transcribe(ctx, clip)
	}
	b.log(diaglog.LogEntry{Event: diaglog.EventProbeResult, Reason: "offline, running local engine"})
	return b.engine.Transcribe(ctx, clip)
}
