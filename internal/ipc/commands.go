// Package ipc is the file-based control surface between the speech daemon
// and whatever frontend drives it. Commands go through a single dropped
// file; daemon state comes back as an atomically written JSON snapshot.
package ipc

import (
	"os"
	"path/filepath"
	"strings"
)

// Verb is the action part of a command.
type Verb string

const (
	VerbStart      Verb = "start"      // Start a recording cycle
	VerbStop       Verb = "stop"       // Stop recording and transcribe
	VerbOnline     Verb = "online"     // Force streaming transcription
	VerbOffline    Verb = "offline"    // Force offline transcription
	VerbAuto       Verb = "auto"       // Probe connectivity per call
	VerbTranscribe Verb = "transcribe" // Transcribe an existing file (takes a path)
	VerbQuit       Verb = "quit"       // Shut the daemon down
)

// Command is a parsed control message. Arg is set for verbs that take one
// (currently only transcribe).
type Command struct {
	Verb Verb
	Arg  string
}

func cacheDir() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "plates")
}

// CommandPath returns the file watched for incoming commands.
func CommandPath() string {
	return filepath.Join(cacheDir(), "speech-cmd.txt")
}

// WriteCommand drops a command for the daemon to pick up.
func WriteCommand(cmd Command) error {
	if err := os.MkdirAll(cacheDir(), 0755); err != nil {
		return err
	}
	line := string(cmd.Verb)
	if cmd.Arg != "" {
		line += " " + cmd.Arg
	}
	return os.WriteFile(CommandPath(), []byte(line), 0644)
}

// ReadCommand reads and clears the command file. A missing or empty file
// means no command is pending; unrecognised content is discarded.
func ReadCommand() (Command, bool, error) {
	data, err := os.ReadFile(CommandPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Command{}, false, nil
		}
		return Command{}, false, err
	}

	// Clear immediately so a command never runs twice. An already-empty
	// file is left alone: rewriting it would fire the daemon's own file
	// watcher and loop the read/clear cycle.
	if len(data) > 0 {
		if err := os.WriteFile(CommandPath(), []byte(""), 0644); err != nil {
			return Command{}, false, err
		}
	}

	return parseCommand(string(data))
}

func parseCommand(raw string) (Command, bool, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return Command{}, false, nil
	}

	verb, arg, _ := strings.Cut(line, " ")
	cmd := Command{Verb: Verb(verb), Arg: strings.TrimSpace(arg)}

	switch cmd.Verb {
	case VerbStart, VerbStop, VerbOnline, VerbOffline, VerbAuto, VerbQuit:
		cmd.Arg = ""
		return cmd, true, nil
	case VerbTranscribe:
		if cmd.Arg == "" {
			return Command{}, false, nil // transcribe without a path is meaningless
		}
		return cmd, true, nil
	default:
		return Command{}, false, nil
	}
}
