// Package whisperapi implements the REST fallback transcription backend:
// a single-shot multipart upload of the clip bytes to a remote Whisper
// transcription endpoint. There are no retries here; escalation between
// backends is policy owned by the offline backend.
package whisperapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/plates-app/plates-speech/internal/diaglog"
	"github.com/plates-app/plates-speech/internal/stt"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "whisper-1"
	defaultLanguage = "en"
	defaultTimeout  = 60 // seconds
)

// BackendName identifies this backend in errors and diagnostics.
const BackendName = "whisper_api"

// Config configures the remote Whisper client.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

// Client is an stt.Backend that posts clips to the transcriptions endpoint.
type Client struct {
	cfg    Config
	client *http.Client

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// Compile-time interface check.
var _ stt.Backend = (*Client)(nil)

// NewClient creates a remote Whisper client. Zero config fields take
// defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// SetLogger injects a diaglog.Logger for request tracing.
func (c *Client) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Client) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentWhisperAPI
	}
	l.Log(entry)
}

// Name returns the backend identifier.
func (c *Client) Name() string { return BackendName }

// transcriptionResponse mirrors the JSON shape returned by the endpoint.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the clip bytes with fixed model and language fields
// and parses the single-shot response.
func (c *Client) Transcribe(ctx context.Context, clip stt.Clip) (*stt.Result, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, &stt.Error{Kind: stt.KindConfiguration, Backend: BackendName, Msg: "OPENAI_API_KEY is not configured"}
	}

	// Build multipart body through a pipe so the request streams instead of
	// buffering a second copy of the audio.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()

		part, err := writer.CreateFormFile("file", clipFilename(clip))
		if err != nil {
			errCh <- fmt.Errorf("create form file: %w", err)
			return
		}
		if _, err := part.Write(clip.Data); err != nil {
			errCh <- fmt.Errorf("write audio data: %w", err)
			return
		}
		_ = writer.WriteField("model", c.cfg.Model)
		_ = writer.WriteField("language", c.cfg.Language)

		errCh <- writer.Close()
	}()

	url := c.cfg.BaseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return nil, &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "create request", Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	c.log(diaglog.LogEntry{Event: diaglog.EventTranscribeStart, Payload: map[string]interface{}{"bytes": len(clip.Data)}})

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &stt.Error{Kind: stt.KindTimeout, Backend: BackendName, Msg: "request deadline exceeded", Err: err}
		}
		return nil, &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "http request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &stt.Error{Kind: stt.KindConnection, Backend: BackendName, Msg: "read response body", Err: err}
	}

	// Classify the response before consulting the writer goroutine: a
	// server rejecting a large upload may stop draining the body, which
	// fails the pipe writes, but the non-2xx status is the real story.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &stt.Error{
			Kind:    stt.KindConnection,
			Backend: BackendName,
			Msg:     fmt.Sprintf("http %d: %s", resp.StatusCode, truncate(body, 200)),
		}
	}

	// A 2xx means the body was fully sent; any writer error left here is a
	// genuine local failure.
	if writeErr := <-errCh; writeErr != nil {
		return nil, &stt.Error{Kind: stt.KindIO, Backend: BackendName, Msg: "multipart write", Err: writeErr}
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &stt.Error{Kind: stt.KindProtocol, Backend: BackendName, Msg: "decode response", Err: err}
	}

	c.log(diaglog.LogEntry{Event: diaglog.EventTranscribeDone})
	return &stt.Result{Text: parsed.Text, Language: c.cfg.Language}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func clipFilename(clip stt.Clip) string {
	if clip.Path == "" {
		return "clip.wav"
	}
	return filepath.Base(clip.Path)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// truncate returns the first n bytes of body as a string.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
