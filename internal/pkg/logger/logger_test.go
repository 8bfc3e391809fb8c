package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "jo***@example.com",
		"ab@example.com":       "***@example.com",
		"not-an-email":         "***@***",
	}
	for in, want := range cases {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLog_RedactsEmailFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("bounce recorded", "contact_email", "john.doe@example.com", "bounce_type", "soft")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if got := entry["contact_email"]; got != "jo***@example.com" {
		t.Errorf("email not redacted: %v", got)
	}
	if entry["bounce_type"] != "soft" {
		t.Errorf("non-PII field altered: %v", entry["bounce_type"])
	}
}

func TestLog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(INFO)
	}()

	Debug("hidden")
	Info("hidden too")
	Warn("visible")

	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("expected one log line, got: %q", buf.String())
	}
}
