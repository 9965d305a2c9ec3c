package config_test

import (
	"testing"
	"time"

	"bank-accounts/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.ReplyTimeout != 5*time.Second {
		t.Errorf("expected default reply timeout 5s, got %s", cfg.ReplyTimeout)
	}
	if cfg.MailboxSize != 64 {
		t.Errorf("expected default mailbox size 64, got %d", cfg.MailboxSize)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BANK_ADDR", ":9999")
	t.Setenv("BANK_STORE_PATH", "/tmp/test-bank.db")
	t.Setenv("BANK_REPLY_TIMEOUT", "250ms")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %q", cfg.Addr)
	}
	if cfg.StorePath != "/tmp/test-bank.db" {
		t.Errorf("expected overridden store path, got %q", cfg.StorePath)
	}
	if cfg.ReplyTimeout != 250*time.Millisecond {
		t.Errorf("expected reply timeout 250ms, got %s", cfg.ReplyTimeout)
	}
}
