package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: false}, &buf)
	l.Info().Str("table", "fact_orders").Msg("published")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["table"] != "fact_orders" {
		t.Errorf("Expected table field, got %v", entry["table"])
	}
	if entry["message"] != "published" {
		t.Errorf("Expected message field, got %v", entry["message"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestNewPrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: true}, &buf)
	l.Info().Msg("published")

	out := buf.String()
	if json.Valid(buf.Bytes()) {
		t.Errorf("Expected console output, got JSON: %q", out)
	}
	if !strings.Contains(out, "published") {
		t.Errorf("Expected message in console output, got %q", out)
	}
}

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Pretty: false}, &buf)
	l.Info().Msg("dropped")
	l.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("Expected info event filtered at warn level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("Expected warn event written at warn level")
	}
}

func TestNewBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "shouting", Pretty: false}, &buf)
	l.Debug().Msg("dropped")
	l.Info().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("Expected debug event filtered at fallback info level")
	}
	if !strings.Contains(out, "kept") {
		t.Error("Expected info event written at fallback info level")
	}
}
