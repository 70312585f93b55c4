package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	NewComponentLogger(logger, "pool").Info("provider discarded",
		String(FieldProvider, "opensubtitles"),
		Int("attempts", 3),
	)
	line := buf.String()
	if !strings.Contains(line, "INFO pool: provider discarded") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "provider=opensubtitles") || !strings.Contains(line, "attempts=3") {
		t.Fatalf("attrs missing: %q", line)
	}
}

func TestConsoleHandlerQuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Format: "console", Output: &buf})
	logger.Info("msg", String("reason", "rate limit hit"))
	if !strings.Contains(buf.String(), `reason="rate limit hit"`) {
		t.Fatalf("value not quoted: %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Level: "warn", Format: "console", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filtering broken: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", Int("n", 1))
	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) || !strings.Contains(out, `"n":1`) {
		t.Fatalf("unexpected json: %q", out)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("xml format accepted")
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing happens")
}
