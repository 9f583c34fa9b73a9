package localstt

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/plates-app/plates-speech/internal/stt"
)

// CLIConfig configures the whisper CLI engine.
type CLIConfig struct {
	BinaryPath     string // path to whisper-cpp or faster-whisper CLI
	ModelPath      string // path to .bin model file
	Language       string // language hint; "" = auto-detect
	Threads        int    // CPU threads (0 = auto)
	TimeoutSeconds int    // default 300
}

// CLIEngine shells out to a whisper CLI binary for fully local
// transcription.
type CLIEngine struct {
	cfg CLIConfig
}

// Compile-time interface check.
var _ Engine = (*CLIEngine)(nil)

// NewCLIEngine creates a whisper CLI engine with the given config.
func NewCLIEngine(cfg CLIConfig) *CLIEngine {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &CLIEngine{cfg: cfg}
}

// Name returns the engine identifier.
func (e *CLIEngine) Name() string { return "whisper_cli" }

// whisperSegment is one segment of the CLI's JSON output.
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// whisperOutput is the CLI's JSON stdout shape.
type whisperOutput struct {
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

// Transcribe invokes the whisper CLI subprocess on the clip's file and
// joins the segment texts into one result string.
func (e *CLIEngine) Transcribe(ctx context.Context, clip stt.Clip) (*stt.Result, error) {
	if _, err := os.Stat(e.cfg.BinaryPath); err != nil {
		return nil, &stt.Error{Kind: stt.KindConfiguration, Backend: BackendName,
			Msg: "whisper binary not found at " + e.cfg.BinaryPath, Err: err}
	}

	cmd := exec.Command(e.cfg.BinaryPath, e.buildArgs(clip.Path)...)

	// Process group so a timeout kills the entire tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return nil, &stt.Error{Kind: stt.KindIO, Backend: BackendName, Msg: "start whisper subprocess", Err: err}
	}

	var mu sync.Mutex
	var killed bool
	kill := func() {
		mu.Lock()
		killed = true
		mu.Unlock()
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	timer := time.AfterFunc(time.Duration(e.cfg.TimeoutSeconds)*time.Second, kill)
	stop := context.AfterFunc(ctx, kill)

	err := cmd.Wait()
	timer.Stop()
	stop()

	if err != nil {
		mu.Lock()
		wasKilled := killed
		mu.Unlock()
		if wasKilled {
			if ctx.Err() != nil {
				return nil, &stt.Error{Kind: stt.KindTimeout, Backend: BackendName, Msg: "local transcription cancelled", Err: ctx.Err()}
			}
			return nil, &stt.Error{Kind: stt.KindTimeout, Backend: BackendName,
				Msg: "local transcription timed out after " + strconv.Itoa(e.cfg.TimeoutSeconds) + "s"}
		}
		return nil, &stt.Error{Kind: stt.KindIO, Backend: BackendName, Msg: "whisper subprocess failed", Err: err}
	}

	var output whisperOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, &stt.Error{Kind: stt.KindProtocol, Backend: BackendName, Msg: "parse whisper JSON output", Err: err}
	}

	var parts []string
	for _, seg := range output.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}

	language := output.Language
	if language == "" {
		language = e.cfg.Language
	}
	return &stt.Result{Text: strings.Join(parts, " "), Language: language}, nil
}

// buildArgs constructs the CLI arguments for the whisper binary.
func (e *CLIEngine) buildArgs(audioPath string) []string {
	var args []string
	if e.cfg.ModelPath != "" {
		args = append(args, "--model", e.cfg.ModelPath)
	}
	args = append(args, "--output-json")
	if e.cfg.Language != "" {
		args = append(args, "--language", e.cfg.Language)
	}
	if e.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(e.cfg.Threads))
	}
	args = append(args, audioPath)
	return args
}
