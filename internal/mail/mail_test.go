package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestMessage(t *testing.T) {
	msg, err := Message("no-reply@example.com", "ada@example.com", "https://bench.example.com/reset-password.html?token=abc")
	if err != nil {
		t.Fatalf("Expected message to build, got %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("Failed to render message: %v", err)
	}

	rendered := buf.String()
	for _, want := range []string{"Subject: Reset your password", "ada@example.com", "reset-password.html"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("Expected rendered message to contain %q", want)
		}
	}
}

func TestMessage_InvalidAddress(t *testing.T) {
	if _, err := Message("no-reply@example.com", "not an address", "x"); err == nil {
		t.Error("Expected invalid recipient to fail")
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := sender.SendRecovery(context.Background(), "ada@example.com", "https://x/reset?token=t"); err != nil {
		t.Fatalf("Expected log sender to succeed, got %v", err)
	}
	if !strings.Contains(buf.String(), "token=t") {
		t.Errorf("Expected link in log output, got %q", buf.String())
	}
}
