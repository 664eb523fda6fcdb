//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/usecase"
)

type payoutHarness struct {
	uc       usecase.PayoutUseCase
	sessions *MockSessionRepo
	accounts *MockPayoutAccountRepo
	resolver *MockResolver
	tm       *MockTxManager
}

func newPayoutHarness() *payoutHarness {
	h := &payoutHarness{
		sessions: NewMockSessionRepo(),
		accounts: NewMockPayoutAccountRepo(),
		resolver: &MockResolver{
			Banks:    []adapter.Bank{{Name: "Guaranty Trust Bank", Code: "058"}, {Name: "Access Bank", Code: "044"}},
			Accounts: map[string]string{"058/0123456789": "ADA LOVELACE"},
		},
		tm: &MockTxManager{},
	}
	h.uc = usecase.NewPayoutUseCase(h.sessions, h.accounts, h.tm, h.resolver, MockTranslator{}, newTestLogger())
	return h
}

func TestPayoutFlow(t *testing.T) {
	ctx := context.Background()
	h := newPayoutHarness()

	reply, err := h.uc.Start(ctx, "9")
	if err != nil || reply != "payout.ask_bank" {
		t.Fatalf("Start = %q, %v", reply, err)
	}

	reply, handled, err := h.uc.HandleInput(ctx, "9", " 058 ")
	if err != nil || !handled || reply != "payout.ask_account" {
		t.Fatalf("bank code: %q handled=%v err=%v", reply, handled, err)
	}
	s, _ := h.sessions.Get(ctx, "9")
	if s.State != model.SessionAwaitingAccountNumber || s.Data["bank_name"] != "Guaranty Trust Bank" {
		t.Fatalf("unexpected session %+v", s)
	}

	reply, handled, err = h.uc.HandleInput(ctx, "9", "0123456789")
	if err != nil || !handled {
		t.Fatalf("account number: handled=%v err=%v", handled, err)
	}
	if reply != "payout.saved|ADA LOVELACE|Guaranty Trust Bank" {
		t.Fatalf("reply = %q", reply)
	}
	acct, err := h.uc.Account(ctx, "9")
	if err != nil || acct.AccountNumber != "0123456789" || acct.BankCode != "058" {
		t.Fatalf("stored account %+v, %v", acct, err)
	}
	if h.tm.Calls != 1 {
		t.Fatalf("account save should run in one transaction, got %d", h.tm.Calls)
	}
	if _, err := h.sessions.Get(ctx, "9"); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("session should be cleared, got %v", err)
	}

	// Without an open conversation, text is not ours.
	if _, handled, _ := h.uc.HandleInput(ctx, "9", "hello"); handled {
		t.Fatal("idle owner input must not be handled")
	}
}

func TestPayoutFlow_BankByName(t *testing.T) {
	ctx := context.Background()
	h := newPayoutHarness()
	_, _ = h.uc.Start(ctx, "9")

	if reply, _, _ := h.uc.HandleInput(ctx, "9", "access bank"); reply != "payout.ask_account" {
		t.Fatalf("reply = %q", reply)
	}
	s, _ := h.sessions.Get(ctx, "9")
	if s.Data["bank_code"] != "044" {
		t.Fatalf("bank code = %q", s.Data["bank_code"])
	}
}

func TestPayoutFlow_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newPayoutHarness()
	_, _ = h.uc.Start(ctx, "9")

	if reply, _, _ := h.uc.HandleInput(ctx, "9", "999"); !strings.HasPrefix(reply, "payout.unknown_bank") {
		t.Fatalf("unknown bank reply = %q", reply)
	}
	_, _, _ = h.uc.HandleInput(ctx, "9", "058")

	if reply, _, _ := h.uc.HandleInput(ctx, "9", "12ab"); reply != "payout.invalid_account" {
		t.Fatalf("invalid account reply = %q", reply)
	}
	if h.resolver.Calls != 0 {
		t.Fatal("malformed numbers must not reach the resolver")
	}

	reply, handled, err := h.uc.HandleInput(ctx, "9", "9999999999")
	if err != nil || !handled || reply != "payout.resolve_failed" {
		t.Fatalf("resolve failure: %q handled=%v err=%v", reply, handled, err)
	}
	s, _ := h.sessions.Get(ctx, "9")
	if s.State != model.SessionAwaitingAccountNumber {
		t.Fatalf("owner should be asked again, state %s", s.State)
	}
	if _, err := h.uc.Account(ctx, "9"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("nothing should be saved, got %v", err)
	}

	if reply, _ := h.uc.Cancel(ctx, "9"); reply != "payout.cancelled" {
		t.Fatalf("cancel reply = %q", reply)
	}
	if _, handled, _ := h.uc.HandleInput(ctx, "9", "0123456789"); handled {
		t.Fatal("cancelled conversation still handling input")
	}
}

func TestPayoutFlow_BankListDown(t *testing.T) {
	ctx := context.Background()
	h := newPayoutHarness()
	h.resolver.BanksErr = errors.New("timeout")
	_, _ = h.uc.Start(ctx, "9")

	if reply, _, err := h.uc.HandleInput(ctx, "9", "058"); err != nil || reply != "payout.ask_account" {
		t.Fatalf("code should be accepted as given: %q %v", reply, err)
	}
}

func TestPayoutFlow_ResolverTransportError(t *testing.T) {
	ctx := context.Background()
	h := newPayoutHarness()
	_, _ = h.uc.Start(ctx, "9")
	_, _, _ = h.uc.HandleInput(ctx, "9", "058")
	h.resolver.Err = errors.New("connection reset")

	if _, _, err := h.uc.HandleInput(ctx, "9", "0123456789"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestPayoutResolveAccount(t *testing.T) {
	ctx := context.Background()
	h := newPayoutHarness()

	if _, err := h.uc.ResolveAccount(ctx, "", "058"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	acct, err := h.uc.ResolveAccount(ctx, "0123456789", "058")
	if err != nil || acct.AccountName != "ADA LOVELACE" {
		t.Fatalf("ResolveAccount = %+v, %v", acct, err)
	}
	if _, err := h.uc.ResolveAccount(ctx, "0000000000", "058"); !errors.Is(err, domain.ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	banks, err := h.uc.ListBanks(ctx)
	if err != nil || len(banks) != 2 {
		t.Fatalf("ListBanks = %v, %v", banks, err)
	}
}
