package cli

import (
	"bytes"
	"strings"
	"testing"
)

func sampleTable() *Table {
	t := &Table{Headers: []string{"ID", "OWNED BY"}}
	t.AddRow("acme/gpt-4", "acme")
	t.AddRow("beta/llama-3", "beta")
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextFormatter_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "OWNED BY") {
		t.Errorf("header = %q", lines[0])
	}
	// Columns are aligned: the second column starts at the same offset.
	if strings.Index(lines[1], "acme") == strings.Index(lines[2], "beta/") {
		t.Errorf("unexpected alignment:\n%s", buf.String())
	}
	if strings.Index(lines[0], "OWNED") != strings.LastIndex(lines[1], "acme") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestTextFormatter_Value(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, "hello"); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "hello\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := &JSONFormatter{Indent: true}
	if err := f.FormatTo(&buf, map[string]int{"providers": 2}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "{\n  \"providers\": 2\n}\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&CSVFormatter{}).FormatTo(&buf, sampleTable()); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	want := "ID,OWNED BY\nacme/gpt-4,acme\nbeta/llama-3,beta\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}

	if err := (&CSVFormatter{}).FormatTo(&buf, 42); err == nil {
		t.Error("expected error for non-table value")
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, []string{"a"}, sampleTable()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"a"`) {
		t.Errorf("JSON output should use the structured value: %q", buf.String())
	}

	buf.Reset()
	if err := Write(&buf, FormatCSV, nil, sampleTable()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "ID,OWNED BY") {
		t.Errorf("CSV output should use the table: %q", buf.String())
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatCSV).(*CSVFormatter); !ok {
		t.Error("expected CSVFormatter")
	}
	if _, ok := NewFormatter("other").(*TextFormatter); !ok {
		t.Error("expected TextFormatter fallback")
	}
}
