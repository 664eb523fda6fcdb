package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/domain/ports/repository"
)

// Compile-time check
var _ PayoutUseCase = (*payoutUC)(nil)

var accountNumberRe = regexp.MustCompile(`^\d{10}$`)

const (
	sessionKeyBankCode = "bank_code"
	sessionKeyBankName = "bank_name"
)

type PayoutUseCase interface {
	// Start opens the payout conversation for a group owner and returns the first prompt.
	Start(ctx context.Context, ownerID string) (string, error)
	Cancel(ctx context.Context, ownerID string) (string, error)
	// HandleInput feeds free text into an open conversation. handled is false
	// when the owner has no conversation in progress.
	HandleInput(ctx context.Context, ownerID, text string) (reply string, handled bool, err error)
	Account(ctx context.Context, ownerID string) (*model.PayoutAccount, error)
	ListBanks(ctx context.Context) ([]adapter.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*adapter.ResolvedAccount, error)
}

type payoutUC struct {
	sessions repository.SessionRepository
	accounts repository.PayoutAccountRepository
	tm       repository.TransactionManager
	resolver adapter.AccountResolver
	tr       Translator
	log      *zerolog.Logger
}

func NewPayoutUseCase(sessions repository.SessionRepository, accounts repository.PayoutAccountRepository, tm repository.TransactionManager, resolver adapter.AccountResolver, tr Translator, logger *zerolog.Logger) *payoutUC {
	l := logger.With().Str("component", "PayoutUC").Logger()
	return &payoutUC{sessions: sessions, accounts: accounts, tm: tm, resolver: resolver, tr: tr, log: &l}
}

func (u *payoutUC) Start(ctx context.Context, ownerID string) (string, error) {
	s, err := u.load(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if err := s.Fire(model.SessionEventStartPayout); err != nil {
		return "", err
	}
	if err := u.sessions.Save(ctx, s); err != nil {
		return "", err
	}
	return u.tr.T("payout.ask_bank"), nil
}

func (u *payoutUC) Cancel(ctx context.Context, ownerID string) (string, error) {
	if err := u.sessions.Clear(ctx, ownerID); err != nil {
		return "", err
	}
	return u.tr.T("payout.cancelled"), nil
}

func (u *payoutUC) HandleInput(ctx context.Context, ownerID, text string) (string, bool, error) {
	s, err := u.sessions.Get(ctx, ownerID)
	if errors.Is(err, domain.ErrSessionExpired) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	text = strings.TrimSpace(text)

	switch s.State {
	case model.SessionAwaitingBankCode:
		reply, err := u.takeBankCode(ctx, s, text)
		return reply, true, err
	case model.SessionAwaitingAccountNumber:
		reply, err := u.takeAccountNumber(ctx, s, text)
		return reply, true, err
	}
	return "", false, nil
}

func (u *payoutUC) takeBankCode(ctx context.Context, s *model.BotSession, code string) (string, error) {
	if code == "" {
		return u.tr.T("payout.ask_bank"), nil
	}
	name := ""
	if banks, err := u.resolver.ListBanks(ctx); err == nil {
		for _, b := range banks {
			if b.Code == code || strings.EqualFold(b.Name, code) {
				code, name = b.Code, b.Name
				break
			}
		}
		if name == "" {
			return u.tr.T("payout.unknown_bank", code), nil
		}
	} else {
		u.log.Warn().Err(err).Msg("bank list unavailable; accepting code as given")
	}

	if err := s.Fire(model.SessionEventBankCode); err != nil {
		return "", err
	}
	s.Set(sessionKeyBankCode, code)
	s.Set(sessionKeyBankName, name)
	if err := u.sessions.Save(ctx, s); err != nil {
		return "", err
	}
	return u.tr.T("payout.ask_account"), nil
}

func (u *payoutUC) takeAccountNumber(ctx context.Context, s *model.BotSession, number string) (string, error) {
	if !accountNumberRe.MatchString(number) {
		return u.tr.T("payout.invalid_account"), nil
	}
	bankCode := s.Data[sessionKeyBankCode]
	resolved, err := u.resolver.ResolveAccount(ctx, number, bankCode)
	if errors.Is(err, domain.ErrResolution) {
		if fErr := s.Fire(model.SessionEventResolveFailed); fErr != nil {
			return "", fErr
		}
		if sErr := u.sessions.Save(ctx, s); sErr != nil {
			return "", sErr
		}
		u.log.Info().Err(err).Str("owner_id", s.SubjectID).Str("bank_code", bankCode).Msg("account resolution failed")
		return u.tr.T("payout.resolve_failed"), nil
	}
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	acct := &model.PayoutAccount{
		OwnerID:       s.SubjectID,
		BankCode:      bankCode,
		BankName:      s.Data[sessionKeyBankName],
		AccountNumber: number,
		AccountName:   resolved.AccountName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = u.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if prev, err := u.accounts.FindByOwner(ctx, tx, acct.OwnerID); err == nil {
			acct.CreatedAt = prev.CreatedAt
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return u.accounts.Save(ctx, tx, acct)
	})
	if err != nil {
		return "", err
	}

	if err := s.Fire(model.SessionEventAccountNumber); err != nil {
		return "", err
	}
	if err := u.sessions.Clear(ctx, s.SubjectID); err != nil {
		u.log.Warn().Err(err).Str("owner_id", s.SubjectID).Msg("session not cleared")
	}
	u.log.Info().Str("owner_id", acct.OwnerID).Str("bank_code", bankCode).Msg("payout account saved")
	return u.tr.T("payout.saved", acct.AccountName, acct.BankName), nil
}

func (u *payoutUC) Account(ctx context.Context, ownerID string) (*model.PayoutAccount, error) {
	return u.accounts.FindByOwner(ctx, repository.NoTX, ownerID)
}

func (u *payoutUC) ListBanks(ctx context.Context) ([]adapter.Bank, error) {
	return u.resolver.ListBanks(ctx)
}

func (u *payoutUC) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*adapter.ResolvedAccount, error) {
	if accountNumber == "" || bankCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	return u.resolver.ResolveAccount(ctx, accountNumber, bankCode)
}

func (u *payoutUC) load(ctx context.Context, ownerID string) (*model.BotSession, error) {
	s, err := u.sessions.Get(ctx, ownerID)
	if errors.Is(err, domain.ErrSessionExpired) {
		return model.NewBotSession(ownerID), nil
	}
	return s, err
}
