package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_NoFileReturnsNilWriter(t *testing.T) {
	writer, err := Init(Config{Level: "info"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if writer != nil {
		t.Fatalf("writer without LOG_FILE should be nil, got %+v", writer)
	}
	// Shutdown defers close the writer unconditionally.
	if err := writer.Close(); err != nil {
		t.Fatalf("Close on nil writer: %v", err)
	}
}

func TestInit_FileLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writer, err := Init(Config{Level: "info", File: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if writer == nil {
		t.Fatal("writer with LOG_FILE should be non-nil")
	}

	slog.Info("hello", "k", "v")
	if err := writer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing record: %q", data)
	}
}

func TestNewHandler_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler("json", &buf, slog.LevelInfo))
	logger.Info("hello", "k", "v")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("json format did not produce JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "hello" || record["k"] != "v" {
		t.Errorf("record = %v", record)
	}

	buf.Reset()
	logger = slog.New(newHandler("", &buf, slog.LevelInfo))
	logger.Info("hello")
	if json.Unmarshal(buf.Bytes(), &map[string]any{}) == nil {
		t.Errorf("default format should be text, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for raw, want := range tests {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	writer, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer writer.Close()
	writer.maxSize = 32

	line := []byte(strings.Repeat("x", 20) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected a rotated backup: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat live file: %v", err)
	}
	if info.Size() > 32 {
		t.Errorf("live file not truncated on rotation: %d bytes", info.Size())
	}
}
