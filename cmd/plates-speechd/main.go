// Command plates-speechd is the speech capture and transcription daemon.
// Frontends drive it through a dropped command file and read its state
// back from an atomically published status snapshot.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/plates-app/plates-speech/internal/config"
	"github.com/plates-app/plates-speech/internal/diaglog"
	"github.com/plates-app/plates-speech/internal/ipc"
	"github.com/plates-app/plates-speech/internal/netprobe"
	"github.com/plates-app/plates-speech/internal/pidfile"
	"github.com/plates-app/plates-speech/internal/record"
	"github.com/plates-app/plates-speech/internal/speech"
	"github.com/plates-app/plates-speech/internal/stt"
	"github.com/plates-app/plates-speech/internal/stt/geminilive"
	"github.com/plates-app/plates-speech/internal/stt/localstt"
	"github.com/plates-app/plates-speech/internal/stt/whisperapi"
	"github.com/plates-app/plates-speech/internal/transcript"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

const appName = "plates-speechd"

func main() {
	// --export-diag: bundle the debug log and exit.
	if len(os.Args) > 1 && os.Args[1] == "--export-diag" {
		exportDiag()
		return
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("app", appName).Logger()

	log.Info().Str("version", Version).Int("pid", os.Getpid()).Msg("starting")

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}

	pf, err := pidfile.New(pidfile.Path(appName))
	if err != nil {
		log.Error().Err(err).Msg("another instance may already be running")
		os.Exit(1)
	}
	defer pf.Remove()

	diag, err := diaglog.New(debugLogPath())
	if err != nil {
		log.Warn().Err(err).Msg("diagnostic log unavailable, continuing without")
		diag = diaglog.NewNoOp()
	}
	defer diag.Close()

	probe := netprobe.New(cfg.Probe.Endpoint, cfg.Probe.Timeout)

	online := geminilive.New(geminilive.Config{
		APIKey:           cfg.Gemini.APIKey,
		Endpoint:         cfg.Gemini.Endpoint,
		Model:            cfg.Gemini.Model,
		Language:         cfg.Whisper.Language,
		ResponseDeadline: cfg.Gemini.ResponseDeadline,
	})
	online.SetLogger(diag)

	remote := whisperapi.NewClient(whisperapi.Config{
		APIKey:         cfg.Whisper.APIKey,
		BaseURL:        cfg.Whisper.BaseURL,
		Model:          cfg.Whisper.Model,
		Language:       cfg.Whisper.Language,
		TimeoutSeconds: cfg.Whisper.TimeoutSeconds,
	})
	remote.SetLogger(diag)

	engine := localstt.NewCLIEngine(localstt.CLIConfig{
		BinaryPath:     cfg.Engine.BinaryPath,
		ModelPath:      cfg.Engine.ModelPath,
		Language:       cfg.Whisper.Language,
		Threads:        cfg.Engine.Threads,
		TimeoutSeconds: cfg.Engine.TimeoutSeconds,
	})
	offline := localstt.New(probe, remote, engine)
	offline.SetLogger(diag)

	var store *transcript.Store
	if cfg.Store.Enabled {
		store, err = transcript.NewStore(cfg.Store.Dir)
		if err != nil {
			log.Warn().Err(err).Msg("transcript history unavailable, continuing without")
		}
	}

	svc := speech.New(speech.Options{
		Session: record.NewSession(cfg.Audio.TempDir, record.NewCannedSource()),
		Probe:   probe,
		Online:  online,
		Offline: offline,
		Store:   store,
		Diag:    diag,
		Log:     log,
	})

	diag.Log(diaglog.LogEntry{Component: diaglog.ComponentDaemon, Event: "startup", Payload: map[string]interface{}{"version": Version}})

	d := &daemon{svc: svc, log: log, quit: make(chan struct{})}
	d.publishStatus()

	go d.watchCommands()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-d.quit:
		log.Info().Msg("quit command received, shutting down")
	}

	diag.Log(diaglog.LogEntry{Component: diaglog.ComponentDaemon, Event: "shutdown"})
}

type daemon struct {
	svc  *speech.Service
	log  zerolog.Logger
	quit chan struct{}
}

// watchCommands reacts to command file writes via fsnotify, with a polling
// ticker as belt and braces for filesystems where events are unreliable.
func (d *daemon) watchCommands() {
	cmdPath := ipc.CommandPath()
	cmdDir := filepath.Dir(cmdPath)
	if err := os.MkdirAll(cmdDir, 0755); err != nil {
		d.log.Error().Err(err).Msg("cannot create command directory")
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.log.Warn().Err(err).Msg("fsnotify unavailable, falling back to polling")
		d.pollCommands(cmdPath)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(cmdDir); err != nil {
		d.log.Warn().Err(err).Msg("cannot watch command directory, falling back to polling")
		d.pollCommands(cmdPath)
		return
	}

	d.log.Info().Str("path", cmdPath).Msg("command watcher started (fsnotify)")

	pollTicker := time.NewTicker(1 * time.Second)
	defer pollTicker.Stop()

	lastCheck := time.Now()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				d.pollCommands(cmdPath)
				return
			}
			if event.Name == cmdPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				// Small delay so we read the completed write.
				time.Sleep(50 * time.Millisecond)
				d.consumeCommand()
				lastCheck = time.Now()
			}

		case <-pollTicker.C:
			if info, err := os.Stat(cmdPath); err == nil && info.ModTime().After(lastCheck) {
				time.Sleep(50 * time.Millisecond)
				d.consumeCommand()
				lastCheck = time.Now()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				d.pollCommands(cmdPath)
				return
			}
			d.log.Warn().Err(err).Msg("command watcher error")
		}
	}
}

// pollCommands is the pure polling fallback.
func (d *daemon) pollCommands(cmdPath string) {
	d.log.Info().Str("path", cmdPath).Msg("command watcher started (polling, 1s)")

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastCheck := time.Now()
	for range ticker.C {
		info, err := os.Stat(cmdPath)
		if err != nil {
			continue
		}
		if info.ModTime().After(lastCheck) {
			time.Sleep(50 * time.Millisecond)
			d.consumeCommand()
			lastCheck = time.Now()
		}
	}
}

func (d *daemon) consumeCommand() {
	cmd, ok, err := ipc.ReadCommand()
	if err != nil {
		d.log.Warn().Err(err).Msg("reading command file")
		return
	}
	if !ok {
		return
	}
	d.handleCommand(cmd)
}

func (d *daemon) handleCommand(cmd ipc.Command) {
	d.log.Info().Str("verb", string(cmd.Verb)).Str("arg", cmd.Arg).Msg("command received")

	switch cmd.Verb {
	case ipc.VerbStart:
		if err := d.svc.StartRecording(); err != nil {
			d.publishError(err)
			return
		}
		d.publishStatus()

	case ipc.VerbStop:
		res, err := d.svc.StopRecording(context.Background())
		if err != nil {
			d.publishError(err)
			return
		}
		d.publishResult(res)

	case ipc.VerbOnline:
		d.svc.SetMode(stt.ModeOnline)
		d.publishStatus()

	case ipc.VerbOffline:
		d.svc.SetMode(stt.ModeOffline)
		d.publishStatus()

	case ipc.VerbAuto:
		d.svc.SetMode(stt.ModeAuto)
		d.publishStatus()

	case ipc.VerbTranscribe:
		res, err := d.svc.Transcribe(context.Background(), cmd.Arg)
		if err != nil {
			d.publishError(err)
			return
		}
		d.publishResult(res)

	case ipc.VerbQuit:
		close(d.quit)
	}
}

func (d *daemon) publishStatus() {
	d.writeStatus(func(*ipc.StatusSnapshot) {})
}

func (d *daemon) publishResult(res *stt.Result) {
	d.writeStatus(func(s *ipc.StatusSnapshot) {
		s.LastText = res.Text
		s.LastLanguage = res.Language
		s.LastBackend = d.svc.LastBackend()
	})
}

func (d *daemon) publishError(err error) {
	var serr *stt.Error
	d.writeStatus(func(s *ipc.StatusSnapshot) {
		s.LastError = err.Error()
		if errors.As(err, &serr) {
			s.LastBackend = serr.Backend
		}
	})
}

func (d *daemon) writeStatus(fill func(*ipc.StatusSnapshot)) {
	status := &ipc.StatusSnapshot{
		Mode:      string(d.svc.Mode()),
		Recording: d.svc.Recording(),
		Timestamp: time.Now(),
	}
	fill(status)

	// Preserve last-result fields across unrelated updates.
	if prev, err := ipc.ReadStatus(); err == nil {
		if status.LastText == "" && status.LastError == "" {
			status.LastText = prev.LastText
			status.LastLanguage = prev.LastLanguage
			status.LastBackend = prev.LastBackend
			status.LastError = prev.LastError
		}
	}

	if err := ipc.WriteStatus(status); err != nil {
		d.log.Warn().Err(err).Msg("writing status snapshot")
	}
}

func debugLogPath() string {
	if p := os.Getenv("PLATES_LOG_PATH"); p != "" {
		return p
	}
	return "/tmp/plates-speech-debug.log"
}

func exportDiag() {
	diaglog.Version = Version
	path, n, err := diaglog.Export(debugLogPath(), ".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "hint: run with PLATES_DEBUG_SPEECH=true to enable logging")
			os.Exit(1)
		}
		os.Exit(2)
	}
	fmt.Printf("Wrote: %s (%d lines)\n", path, n)
}
