package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestNewWritesToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	logger, err := New(dir, LevelDebug)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	entries := decodeLines(t, string(content))
	if len(entries) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(entries))
	}
	if entries[0]["level"] != "DEBUG" || entries[0]["key"] != "value" {
		t.Errorf("unexpected first entry %v", entries[0])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn)
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown")

	entries := decodeLines(t, buf.String())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at WARN, got %d", len(entries))
	}
}

func TestWithAddsPersistentAttributes(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, LevelInfo)
	child := base.WithComponent("party").WithSession("party", "p-1").With("user", "L")
	child.Info("joined")
	base.Info("plain")

	entries := decodeLines(t, buf.String())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first["component"] != "party" || first["session_kind"] != "party" || first["session_id"] != "p-1" || first["user"] != "L" {
		t.Errorf("missing attributes: %v", first)
	}
	if _, ok := entries[1]["session_id"]; ok {
		t.Errorf("parent logger picked up child attributes: %v", entries[1])
	}
	if base.With() != base {
		t.Errorf("With without args should return the receiver")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{
		"debug":  LevelDebug,
		" WARN ": LevelWarn,
		"error":  LevelError,
		"info":   LevelInfo,
		"bogus":  LevelInfo,
		"":       LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
	if len(ValidLevels()) != 4 {
		t.Errorf("expected 4 valid levels")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Error("discarded")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
