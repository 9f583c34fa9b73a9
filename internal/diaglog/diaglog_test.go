package diaglog

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLogWritesNDJSON(t *testing.T) {
	t.Setenv("PLATES_DEBUG_SPEECH", "true")

	tmp := t.TempDir() + "/test.ndjson"
	l, err := New(tmp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	entries := []LogEntry{
		{Component: ComponentGeminiLive, Event: EventWSConnect},
		{Component: ComponentService, Event: EventTranscribeStart, Reason: "online", RequestID: "abc123"},
		{Component: ComponentSession, Event: EventRecordingStop},
	}
	for _, e := range entries {
		l.Log(e)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(tmp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []map[string]interface{}
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line: %v -> %s", err, scanner.Text())
		}
		lines = append(lines, m)
	}
	if len(lines) != len(entries) {
		t.Fatalf("want %d lines, got %d", len(entries), len(lines))
	}
	if lines[0]["component"] != ComponentGeminiLive {
		t.Errorf("component mismatch: %v", lines[0]["component"])
	}
	if lines[1]["request_id"] != "abc123" {
		t.Errorf("request_id mismatch: %v", lines[1]["request_id"])
	}
	if lines[0]["ts"] == nil {
		t.Error("ts field missing")
	}
}

func TestRollingTruncatesAtCap(t *testing.T) {
	t.Setenv("PLATES_DEBUG_SPEECH", "true")

	tmp := t.TempDir() + "/roll.ndjson"
	const maxSize = 1024
	rw, err := newRollingWriter(tmp, maxSize)
	if err != nil {
		t.Fatalf("newRollingWriter: %v", err)
	}
	defer rw.close()

	chunk := []byte(strings.Repeat("x", 512) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	info, err := os.Stat(tmp)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() > maxSize {
		t.Errorf("file size %d exceeds maxSize %d", info.Size(), maxSize)
	}
}

func TestRedactSensitiveFields(t *testing.T) {
	input := map[string]interface{}{
		"api_key":       "AIzaSy-something",
		"key":           "k",
		"token":         "tok",
		"authorization": "Bearer sk-xyz",
		"password":      "hunter2",
		"secret":        "s3cr3t",
		"data":          "bW9jay1hdWRpbw==",
		"safe_field":    "keep-me",
		"nested": map[string]interface{}{
			"api_key": "nested-key",
			"ok":      "value",
		},
	}

	out := Redact(input).(map[string]interface{})
	for _, k := range []string{"api_key", "key", "token", "authorization", "password", "secret", "data"} {
		if out[k] != "[REDACTED]" {
			t.Errorf("key %q: want [REDACTED], got %v", k, out[k])
		}
	}
	if out["safe_field"] != "keep-me" {
		t.Errorf("safe_field should be preserved")
	}
	nested := out["nested"].(map[string]interface{})
	if nested["api_key"] != "[REDACTED]" {
		t.Error("nested api_key not redacted")
	}
	if nested["ok"] != "value" {
		t.Error("nested ok field should be preserved")
	}
}

func TestNoOpWhenDisabled(t *testing.T) {
	os.Unsetenv("PLATES_DEBUG_SPEECH")

	tmp := t.TempDir() + "/noop.ndjson"
	l, err := New(tmp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Log(LogEntry{Component: ComponentGeminiLive, Event: EventWSConnect})
	_ = l.Close()

	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("log file should not exist when debug disabled")
	}
}
