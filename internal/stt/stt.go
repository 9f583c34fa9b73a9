// Package stt defines the speech-to-text domain: transcription modes,
// audio clips, the backend contract, and the mode resolution policy
// shared by the orchestrating service and every backend variant.
package stt

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mode is the user-configured transcription mode.
type Mode string

const (
	ModeOnline  Mode = "online"  // always use the streaming online backend
	ModeOffline Mode = "offline" // always use the offline backend
	ModeAuto    Mode = "auto"    // probe connectivity and pick per call
)

// ParseMode converts a string (e.g., from an IPC command or env var) into a
// Mode. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOnline:
		return ModeOnline, nil
	case ModeOffline:
		return ModeOffline, nil
	case ModeAuto, "automatic":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown transcription mode %q", s)
	}
}

// EffectiveMode is the concrete backend choice derived from a configured
// Mode plus live connectivity. Auto never survives resolution.
type EffectiveMode string

const (
	EffectiveOnline  EffectiveMode = "online"
	EffectiveOffline EffectiveMode = "offline"
)

// Result is a completed transcription. It is a plain value with no identity
// beyond its fields.
type Result struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Clip is a single captured audio buffer produced by one start/stop cycle.
// Once materialized it is read-only; ownership passes from the recording
// session to whichever backend transcribes it.
type Clip struct {
	Path       string
	Data       []byte
	CapturedAt time.Time
}

// Backend transcribes one clip into one result. Implementations are
// terminal on error; any fallback between backends is explicit policy in
// the offline backend, never a resilience retry.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, clip Clip) (*Result, error)
}

// Probe answers whether connectivity is currently available. Probes are
// never cached: connectivity can change between a decision and the
// transfer it gated, so callers re-probe whenever freshness matters.
type Probe interface {
	Online(ctx context.Context) bool
}

// Resolve maps the configured mode and live connectivity onto one concrete
// backend choice. It runs fresh on every transcription call so that a mode
// change or a connectivity change is reflected immediately; nothing is
// remembered from session start.
func Resolve(ctx context.Context, mode Mode, probe Probe) EffectiveMode {
	switch mode {
	case ModeOnline:
		return EffectiveOnline
	case ModeOffline:
		return EffectiveOffline
	default:
		if probe != nil && probe.Online(ctx) {
			return EffectiveOnline
		}
		return EffectiveOffline
	}
}
