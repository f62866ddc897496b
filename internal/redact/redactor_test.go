package redact

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	r, err := New([]string{`(?i)token\s*[:=]\s*\S+`, `(?i)password\s*[:=]\s*\S+`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := "token=abc123 password:letmein safe=text"
	got := r.Redact(in)
	if got == in {
		t.Fatalf("expected redaction, got %q", got)
	}
	if got != "[REDACTED] [REDACTED] safe=text" {
		t.Fatalf("unexpected redacted text: %q", got)
	}
}

func TestNewInvalidPattern(t *testing.T) {
	if _, err := New([]string{"["}); err == nil {
		t.Fatal("expected invalid regex error")
	}
}

func TestReplaceAttr(t *testing.T) {
	r, err := New([]string{`[0-9a-f]{64,}`})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mac := strings.Repeat("0201", 20)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{ReplaceAttr: r.ReplaceAttr}))
	logger.Info("connect", "macaroon", mac, "error", errors.New("bad macaroon "+mac), "port", 10009)

	out := buf.String()
	if strings.Contains(out, mac) {
		t.Fatalf("macaroon leaked: %s", out)
	}
	if !strings.Contains(out, "port=10009") || strings.Count(out, replacement) != 2 {
		t.Fatalf("unexpected output: %s", out)
	}
}
