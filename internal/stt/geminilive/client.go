// Package geminilive implements the streaming online transcription
// backend. One clip is one session: connect, send the configuration
// message, send a single complete audio turn, then collect text fragments
// until the server closes the stream or the response deadline passes.
package geminilive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plates-app/plates-speech/internal/diaglog"
	"github.com/plates-app/plates-speech/internal/stt"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com/v1beta/models"
	defaultModel    = "gemini-2.0-flash-live-001"
	defaultLanguage = "en"

	// defaultResponseDeadline bounds the whole receive loop; exceeding it is
	// a controlled cancellation, not a hang.
	defaultResponseDeadline = 10 * time.Second

	// systemInstruction primes the remote model for transcription rather
	// than translation or completion.
	systemInstruction = "You are a speech-to-text transcription service. Transcribe the audio accurately."
)

// BackendName identifies this backend in errors and diagnostics.
const BackendName = "gemini_live"

// Config controls the streaming session.
type Config struct {
	APIKey           string
	Endpoint         string // base ws(s) URL up to the models collection
	Model            string
	Language         string // language code attached to results
	ResponseDeadline time.Duration
}

// Backend is an stt.Backend speaking the Gemini Live websocket protocol.
type Backend struct {
	cfg    Config
	dialer *websocket.Dialer

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// Compile-time interface check.
var _ stt.Backend = (*Backend)(nil)

// New creates a streaming backend. Zero config fields take defaults.
func New(cfg Config) *Backend {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.ResponseDeadline <= 0 {
		cfg.ResponseDeadline = defaultResponseDeadline
	}
	return &Backend{cfg: cfg, dialer: websocket.DefaultDialer}
}

// SetLogger injects a diaglog.Logger for protocol tracing.
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
		entry.Component = diaglog.ComponentGeminiLive
	}
	l.Log(entry)
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return BackendName }

// ── wire format ──────────────────────────────────────────────────────────────

type setupMessage struct {
	Config setupConfig `json:"config"`
}

type setupConfig struct {
	ResponseModalities []string `json:"response_modalities"`
	SystemInstruction  content  `json:"system_instruction"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type turnMessage struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []turn `json:"turns"`
	TurnComplete bool   `json:"turnComplete"`
}

type turn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// serverMessage is what the remote sends back. The error field is terminal
// and authoritative.
type serverMessage struct {
	Text  *string `json:"text"`
	Error *string `json:"error"`
}

// ── transcription ────────────────────────────────────────────────────────────

// Transcribe runs one full streaming session for clip. The connection is
// always closed best-effort on the way out; teardown failures never
// override the primary result or error.
func (b *Backend) Transcribe(ctx context.Context, clip stt.Clip) (*stt.Result, error) {
	if strings.TrimSpace(b.cfg.APIKey) == "" {
		return nil, &stt.Error{Kind: stt.KindConfiguration, Backend: BackendName, Msg: "GEMINI_API_KEY is not configured"}
	}

	wsURL, err := b.sessionURL()
	if err != nil {
		return nil, &stt.Error{Kind: stt.KindConfiguration, Backend: BackendName, Msg: "invalid endpoint", Err: err}
	}

	conn, resp, err := b.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "connect to streaming endpoint", Err: err}
	}
	b.log(diaglog.LogEntry{Event: diaglog.EventWSConnect, Payload: map[string]interface{}{"model": b.cfg.Model}})

	// Best-effort close on every exit path.
	done := make(chan struct{})
	defer func() {
		close(done)
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
		b.log(diaglog.LogEntry{Event: diaglog.EventWSClose})
	}()

	// Unblock the read loop if the caller gives up first.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	setup := setupMessage{Config: setupConfig{
		ResponseModalities: []string{"TEXT"},
		SystemInstruction:  content{Parts: []part{{Text: systemInstruction}}},
	}}
	if err := conn.WriteJSON(setup); err != nil {
		return nil, &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "send configuration", Err: err}
	}
	b.log(diaglog.LogEntry{Event: diaglog.EventWSSend, Reason: "setup"})

	// Exactly one turn per clip; no incremental audio streaming.
	audio := turnMessage{ClientContent: clientContent{
		Turns: []turn{{
			Role: "user",
			Parts: []part{{InlineData: &inlineData{
				MIMEType: "audio/wav",
				Data:     base64.StdEncoding.EncodeToString(clip.Data),
			}}},
		}},
		TurnComplete: true,
	}}
	if err := conn.WriteJSON(audio); err != nil {
		return nil, &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "send audio turn", Err: err}
	}
	b.log(diaglog.LogEntry{Event: diaglog.EventWSSend, Reason: "turn", Payload: map[string]interface{}{"bytes": len(clip.Data)}})

	deadline := time.Now().Add(b.cfg.ResponseDeadline)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	text, err := b.collect(ctx, conn)
	if err != nil {
		return nil, err
	}
	return &stt.Result{Text: text, Language: b.cfg.Language}, nil
}

// collect accumulates text fragments in arrival order until a terminal
// close frame, an error-bearing message, or the read deadline.
func (b *Backend) collect(ctx context.Context, conn *websocket.Conn) (string, error) {
	var transcript strings.Builder

	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				break // terminal close frame
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return "", &stt.Error{Kind: stt.KindTimeout, Backend: BackendName,
					Msg: fmt.Sprintf("no terminal message within %s", b.cfg.ResponseDeadline)}
			}
			if ctx.Err() != nil {
				kind := stt.KindConnection
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					kind = stt.KindTimeout
				}
				return "", &stt.Error{Kind: kind, Backend: BackendName, Msg: "session cancelled", Err: ctx.Err()}
			}
			return "", &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "read server message", Err: err}
		}

		if msgType != websocket.TextMessage {
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			return "", &stt.Error{Kind: stt.KindProtocol, Backend: BackendName, Msg: "malformed server message", Err: err}
		}
		b.log(diaglog.LogEntry{Event: diaglog.EventWSRecv})

		// An error field is terminal and authoritative: abort immediately
		// and discard any partial accumulation.
		if msg.Error != nil {
			return "", &stt.Error{Kind: stt.KindProtocol, Backend: BackendName, Msg: *msg.Error}
		}
		if msg.Text != nil {
			transcript.WriteString(*msg.Text)
		}
	}

	if transcript.Len() == 0 {
		return "", &stt.Error{Kind: stt.KindProtocol, Backend: BackendName, Msg: "no transcription produced"}
	}
	return transcript.String(), nil
}

// sessionURL builds the streaming URL with the API key as a query
// parameter, normalising http(s) schemes to ws(s) so tests can point at an
// httptest server.
func (b *Backend) sessionURL() (string, error) {
	base := strings.TrimRight(strings.TrimSpace(b.cfg.Endpoint), "/")
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base + "/" + b.cfg.Model + ":streamGenerateContent")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", b.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
