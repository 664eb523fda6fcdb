//go:build !integration

package i18n

import (
	"strings"
	"testing"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: hello\nwelcome_user: hello %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "hello" {
			t.Errorf("wanted 'hello', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Ada"); got != "hello Ada" {
			t.Errorf("wanted 'hello Ada', got '%s'", got)
		}
	})
}

func TestEmbeddedEnglishCoversBotKeys(t *testing.T) {
	tr, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}
	keys := []string{
		"welcome_message", "help_message", "error_generic", "error_rate_limited", "unknown_command",
		"status_header", "status_group_line", "status_no_groups", "status_payout", "status_no_payout",
		"group.registered",
		"access.no_payment", "access.pending", "access.expired", "access.denied",
		"payout.ask_bank", "payout.unknown_bank", "payout.ask_account", "payout.invalid_account",
		"payout.resolve_failed", "payout.saved", "payout.cancelled",
	}
	for _, k := range keys {
		if !tr.Has(k) {
			t.Errorf("missing translation for %q", k)
		}
	}
	if got := tr.T("access.expired", "https://pay.example/g1"); !strings.Contains(got, "https://pay.example/g1") {
		t.Errorf("link not rendered: %q", got)
	}
}

func TestNewTranslatorUnknownLanguage(t *testing.T) {
	if _, err := NewTranslator(LocalesFS, "xx"); err == nil {
		t.Fatal("expected error for missing locale")
	}
}
