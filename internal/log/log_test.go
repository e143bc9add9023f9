package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	saved := Logger
	defer func() { Logger = saved }()

	Logger = NewJSONLogger(&buf, "debug")
	l := WithFactory("factory", "tokens.near")
	l.Info().Str("token_id", "abc").Msg("token created")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["component"] != "factory" {
		t.Errorf("component = %v, want factory", entry["component"])
	}
	if entry["factory"] != "tokens.near" {
		t.Errorf("factory = %v, want tokens.near", entry["factory"])
	}
	if entry["token_id"] != "abc" {
		t.Errorf("token_id = %v, want abc", entry["token_id"])
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, "warn")
	l.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}
	l.Warn().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("warn line not written")
	}
}
