package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerAdapter_prodWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerAdapterWithWriter("prod", &buf)

	log.Info("Job finished", map[string]interface{}{"job": "live"})
	log.Debug("hidden at info level", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	fields, ok := rec["fields"].(map[string]interface{})
	if !ok || fields["job"] != "live" {
		t.Fatalf("missing fields: %v", rec)
	}
}

func TestLoggerAdapter_devIsText(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerAdapterWithWriter("dev", &buf)

	log.Debug("refresh skipped", nil)
	if !strings.Contains(buf.String(), "level=DEBUG") {
		t.Fatalf("expected debug text line, got %q", buf.String())
	}
}
