package logging

import (
	"log/slog"
	"testing"
)

func TestRedactor_RedactString(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bearer header", "Authorization: Bearer abc.def-123", "Authorization: Bearer ***"},
		{"openai key", "key sk-proj-abcd1234 rejected", "key sk-*** rejected"},
		{"password", "password=hunter2 ok", "password: *** ok"},
		{"short sk prefix kept", "task-sk-1", "task-sk-1"},
		{"plain", "nothing to hide", "nothing to hide"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.RedactString(tt.input); got != tt.want {
				t.Errorf("RedactString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_RedactAttr(t *testing.T) {
	r := NewRedactor()

	got := r.RedactAttr(slog.Group("upstream",
		slog.String("api_key", "abcdefghijkl"),
		slog.String("name", "acme"),
	))

	attrs := got.Value.Group()
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attrs, got %d", len(attrs))
	}
	if attrs[0].Value.String() != "abcd***" {
		t.Errorf("expected nested key redacted, got %q", attrs[0].Value.String())
	}
	if attrs[1].Value.String() != "acme" {
		t.Errorf("expected name untouched, got %q", attrs[1].Value.String())
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := map[string]string{
		"":             "",
		"short":        "***",
		"sk-123456789": "sk-1***",
	}
	for in, want := range tests {
		if got := RedactAPIKey(in); got != want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}
