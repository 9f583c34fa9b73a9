// Package config resolves runtime configuration from the environment. A
// .env file in the working directory is honoured when present, matching
// how the desktop app ships credentials during development.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/plates-app/plates-speech/internal/stt"
)

// Config is the explicit configuration struct handed to initialization.
// Required credentials are enumerated here; everything else has defaults.
type Config struct {
	Gemini  GeminiConfig
	Whisper WhisperConfig
	Engine  EngineConfig
	Probe   ProbeConfig
	Audio   AudioConfig
	Store   StoreConfig
}

type GeminiConfig struct {
	APIKey           string
	Endpoint         string
	Model            string
	ResponseDeadline time.Duration
}

type WhisperConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Language       string
	TimeoutSeconds int
}

type EngineConfig struct {
	BinaryPath     string
	ModelPath      string
	Threads        int
	TimeoutSeconds int
}

type ProbeConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type AudioConfig struct {
	TempDir string
}

type StoreConfig struct {
	Dir     string
	Enabled bool
}

// Load resolves configuration from the environment plus an optional .env
// file. Missing required credentials fail with one configuration error
// naming every absent variable.
func Load() (Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is normal

	var missing []string
	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if geminiKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	openaiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if openaiKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return Config{}, &stt.Error{
			Kind: stt.KindConfiguration,
			Msg:  "missing required environment variables: " + strings.Join(missing, ", "),
		}
	}

	tempDir := envOrDefault("PLATES_AUDIO_DIR", filepath.Join(os.TempDir(), "plates_audio"))
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return Config{}, &stt.Error{Kind: stt.KindIO, Msg: "create audio temp directory", Err: err}
	}

	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:           geminiKey,
			Endpoint:         envOrDefault("PLATES_GEMINI_ENDPOINT", "wss://generativelanguage.googleapis.com/v1beta/models"),
			Model:            envOrDefault("PLATES_GEMINI_MODEL", "gemini-2.0-flash-live-001"),
			ResponseDeadline: time.Duration(envOrDefaultInt("PLATES_STREAM_DEADLINE_MS", 10000)) * time.Millisecond,
		},
		Whisper: WhisperConfig{
			APIKey:         openaiKey,
			BaseURL:        envOrDefault("PLATES_WHISPER_BASE", "https://api.openai.com/v1"),
			Model:          envOrDefault("PLATES_WHISPER_MODEL", "whisper-1"),
			Language:       envOrDefault("PLATES_LANGUAGE", "en"),
			TimeoutSeconds: envOrDefaultInt("PLATES_WHISPER_TIMEOUT_S", 60),
		},
		Engine: EngineConfig{
			BinaryPath:     envOrDefault("PLATES_WHISPER_CLI", "whisper-cli"),
			ModelPath:      strings.TrimSpace(os.Getenv("PLATES_WHISPER_MODEL_PATH")),
			Threads:        envOrDefaultInt("PLATES_WHISPER_THREADS", 0),
			TimeoutSeconds: envOrDefaultInt("PLATES_ENGINE_TIMEOUT_S", 300),
		},
		Probe: ProbeConfig{
			Endpoint: envOrDefault("PLATES_PROBE_ENDPOINT", "http://connectivitycheck.gstatic.com/generate_204"),
			Timeout:  time.Duration(envOrDefaultInt("PLATES_PROBE_TIMEOUT_MS", 2000)) * time.Millisecond,
		},
		Audio: AudioConfig{TempDir: tempDir},
		Store: StoreConfig{
			Dir:     envOrDefault("PLATES_TRANSCRIPT_DIR", defaultTranscriptDir()),
			Enabled: envOrDefaultBool("PLATES_TRANSCRIPT_HISTORY", true),
		},
	}

	if cfg.Gemini.ResponseDeadline <= 0 {
		cfg.Gemini.ResponseDeadline = 10 * time.Second
	}
	if cfg.Probe.Timeout <= 0 {
		cfg.Probe.Timeout = 2 * time.Second
	}

	return cfg, nil
}

func defaultTranscriptDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "plates_transcripts")
	}
	return filepath.Join(home, ".local", "share", "plates", "transcripts")
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
