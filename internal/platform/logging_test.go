package platform

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogConfig{Level: slog.LevelInfo, Format: LogFormatJSON})

	logger.Debug("hidden")
	logger.Info("http", "route", "/health")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "http" || entry["route"] != "/health" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LogConfig{Level: slog.LevelDebug, Format: LogFormatText})

	logger.Debug("visible", "k", "v")
	if out := buf.String(); !strings.Contains(out, "msg=visible") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected text output %q", out)
	}
}

func TestNATSServerLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewNATSServerLogger(NewLogger(&buf, LogConfig{Level: slog.LevelWarn, Format: LogFormatText}))

	logger.Noticef("started %d", 1)
	logger.Warnf("slow consumer %s", "c1")

	out := buf.String()
	if strings.Contains(out, "started") {
		t.Fatalf("notices must log below warn, got %q", out)
	}
	if !strings.Contains(out, "slow consumer c1") || !strings.Contains(out, "component=nats") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(out, "nats_level=warn") {
		t.Fatalf("expected nats severity attribute, got %q", out)
	}
}

func TestNATSServerLoggerFatalKeepsSeverity(t *testing.T) {
	var buf bytes.Buffer
	logger := NewNATSServerLogger(NewLogger(&buf, LogConfig{Level: slog.LevelInfo, Format: LogFormatJSON}))

	logger.Tracef("frame %d", 9)
	logger.Fatalf("jetstream store %s unavailable", "/tmp/js")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the fatal line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "ERROR" || entry["nats_level"] != "fatal" || entry["component"] != "nats" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["msg"] != "jetstream store /tmp/js unavailable" {
		t.Fatalf("unexpected message %v", entry["msg"])
	}
}
