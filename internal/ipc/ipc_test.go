package ipc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCommandRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := WriteCommand(Command{Verb: VerbStart}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	cmd, ok, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if !ok || cmd.Verb != VerbStart {
		t.Errorf("got %+v ok=%v, want start", cmd, ok)
	}

	// Second read must find nothing: commands fire once.
	_, ok, err = ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if ok {
		t.Error("command should be cleared after the first read")
	}
}

func TestReadCommandEmptyFileNotRewritten(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := WriteCommand(Command{Verb: VerbStop}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if _, _, err := ReadCommand(); err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}

	// The first read cleared the file; further reads must not touch it,
	// or a watcher on the file would see its own clears as new commands.
	before, err := os.Stat(CommandPath())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok, err := ReadCommand(); err != nil || ok {
		t.Fatalf("ReadCommand on empty file = ok=%v err=%v", ok, err)
	}
	after, err := os.Stat(CommandPath())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("empty command file was rewritten")
	}
}

func TestCommandWithArgument(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if err := WriteCommand(Command{Verb: VerbTranscribe, Arg: "/tmp/take.wav"}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	cmd, ok, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if !ok || cmd.Verb != VerbTranscribe || cmd.Arg != "/tmp/take.wav" {
		t.Errorf("got %+v ok=%v", cmd, ok)
	}
}

func TestReadCommandNoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, ok, err := ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand: %v", err)
	}
	if ok {
		t.Error("missing file should mean no pending command")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		raw  string
		want Command
		ok   bool
	}{
		{"start", Command{Verb: VerbStart}, true},
		{"  stop\n", Command{Verb: VerbStop}, true},
		{"online", Command{Verb: VerbOnline}, true},
		{"offline", Command{Verb: VerbOffline}, true},
		{"auto", Command{Verb: VerbAuto}, true},
		{"quit", Command{Verb: VerbQuit}, true},
		{"transcribe /a/b.wav", Command{Verb: VerbTranscribe, Arg: "/a/b.wav"}, true},
		{"transcribe", Command{}, false},
		{"start now", Command{Verb: VerbStart}, true}, // stray arg on bare verb ignored
		{"reboot", Command{}, false},
		{"", Command{}, false},
		{"   ", Command{}, false},
	}
	for _, tt := range tests {
		cmd, ok, err := parseCommand(tt.raw)
		if err != nil {
			t.Errorf("parseCommand(%q): %v", tt.raw, err)
			continue
		}
		if ok != tt.ok || cmd != tt.want {
			t.Errorf("parseCommand(%q) = %+v ok=%v, want %+v ok=%v", tt.raw, cmd, ok, tt.want, tt.ok)
		}
	}
}

func TestStatusRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	in := &StatusSnapshot{
		Mode:        "auto",
		Recording:   true,
		LastBackend: "gemini_live",
		LastText:    "hello",
		Timestamp:   time.Now().UTC().Truncate(time.Second),
	}
	if err := WriteStatus(in); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	out, err := ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if out.Mode != in.Mode || out.Recording != in.Recording || out.LastBackend != in.LastBackend || out.LastText != in.LastText {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("timestamp %v != %v", out.Timestamp, in.Timestamp)
	}

	// Atomic write leaves no temp files behind.
	entries, err := os.ReadDir(filepath.Dir(StatusPath()))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "speech-status.json" {
			t.Errorf("unexpected file %s", e.Name())
		}
	}
}

func TestReadStatusMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := ReadStatus(); err == nil {
		t.Error("expected error for missing status file")
	}
}
