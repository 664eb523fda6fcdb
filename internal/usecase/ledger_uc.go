package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
	"telegram-group-paywall/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// NewPaymentInput is what checkout records before the processor confirms anything.
type NewPaymentInput struct {
	Reference    string
	SubjectID    string
	GroupID      string
	Amount       decimal.Decimal
	DurationTier model.DurationTier
	ContactEmail string
}

// FallbackKeys are used when an event does not echo our reference back.
type FallbackKeys struct {
	ProcessorRef string
	SubjectID    string
	GroupID      string
	Amount       decimal.Decimal
}

type LedgerUseCase interface {
	CreatePending(ctx context.Context, in NewPaymentInput) (*model.Payment, error)
	FindByReference(ctx context.Context, reference string) (*model.Payment, error)
	// FindByAnyReference accepts either our reference or the processor's.
	FindByAnyReference(ctx context.Context, ref string) (*model.Payment, error)
	FindByFallbackKeys(ctx context.Context, keys FallbackKeys) (*model.Payment, error)
	// MarkPaid and MarkFailed report changed=false when the row had already
	// moved on (including losing a race to a concurrent writer); the stored
	// row is returned in that case.
	MarkPaid(ctx context.Context, p *model.Payment, d model.PaidDetails) (*model.Payment, bool, error)
	MarkFailed(ctx context.Context, p *model.Payment, reason string) (*model.Payment, bool, error)
	// Expire reports changed=false when the row was already expired, here or
	// by a concurrent sweep.
	Expire(ctx context.Context, p *model.Payment) (*model.Payment, bool, error)
	// RecordPaid writes a row directly in the paid state for processor-initiated payments.
	RecordPaid(ctx context.Context, in NewPaymentInput, d model.PaidDetails) (*model.Payment, error)
}

type ledgerUC struct {
	payments repository.PaymentRepository
	groups   repository.GroupRepository
	currency string
	log      *zerolog.Logger
}

func NewLedgerUseCase(payments repository.PaymentRepository, groups repository.GroupRepository, currency string, logger *zerolog.Logger) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{payments: payments, groups: groups, currency: currency, log: &l}
}

func (u *ledgerUC) CreatePending(ctx context.Context, in NewPaymentInput) (*model.Payment, error) {
	p, err := model.NewPendingPayment(in.Reference, in.SubjectID, in.GroupID, in.Amount, in.DurationTier, u.currency, in.ContactEmail)
	if err != nil {
		return nil, err
	}
	if err := u.payments.Insert(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(p.Status))
	u.log.Info().Str("reference", p.Reference).Str("subject_id", p.SubjectID).Str("group_id", p.GroupID).
		Str("amount", p.Amount.String()).Msg("pending payment recorded")
	return p, nil
}

func (u *ledgerUC) FindByReference(ctx context.Context, reference string) (*model.Payment, error) {
	if reference == "" {
		return nil, domain.ErrNotFound
	}
	return u.payments.FindByReference(ctx, repository.NoTX, reference)
}

func (u *ledgerUC) FindByAnyReference(ctx context.Context, ref string) (*model.Payment, error) {
	p, err := u.FindByReference(ctx, ref)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return p, err
	}
	return u.payments.FindByTransactionRef(ctx, repository.NoTX, ref)
}

func (u *ledgerUC) FindByFallbackKeys(ctx context.Context, keys FallbackKeys) (*model.Payment, error) {
	if keys.ProcessorRef != "" {
		p, err := u.payments.FindByTransactionRef(ctx, repository.NoTX, keys.ProcessorRef)
		if err == nil {
			metrics.IncFallbackMatch("processor_ref")
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if keys.SubjectID == "" || keys.GroupID == "" || !keys.Amount.IsPositive() {
		return nil, domain.ErrNotFound
	}
	candidates, err := u.payments.FindOpenByAttributes(ctx, repository.NoTX, keys.SubjectID, keys.GroupID, keys.Amount)
	if err != nil {
		return nil, err
	}
	switch len(candidates) {
	case 0:
		metrics.IncFallbackMatch("miss")
		return nil, domain.ErrNotFound
	case 1:
		metrics.IncFallbackMatch("attributes")
		return candidates[0], nil
	}
	// Known soft spot: concurrent checkouts for the same subject/group/amount
	// cannot be told apart here. Newest wins.
	metrics.IncFallbackMatch("ambiguous")
	u.log.Warn().Err(domain.ErrAmbiguousMatch).
		Str("subject_id", keys.SubjectID).Str("group_id", keys.GroupID).
		Int("candidates", len(candidates)).Str("picked", candidates[0].Reference).
		Msg("fallback match is ambiguous")
	return candidates[0], nil
}

func (u *ledgerUC) MarkPaid(ctx context.Context, p *model.Payment, d model.PaidDetails) (*model.Payment, bool, error) {
	if p == nil {
		return nil, false, domain.ErrInvalidArgument
	}
	if p.Status.IsPaidFamily() {
		return p, false, nil
	}
	next := *p
	next.ApplyPaid(d)
	ok, err := u.payments.MarkPaidIfUnpaid(ctx, repository.NoTX, &next)
	if err != nil {
		return nil, false, fmt.Errorf("mark paid %s: %w", p.Reference, err)
	}
	if !ok {
		// Someone else confirmed it first; return what is stored.
		stored, err := u.payments.FindByReference(ctx, repository.NoTX, p.Reference)
		return stored, false, err
	}
	metrics.IncPayment(string(next.Status))
	metrics.AddPaymentRevenue(next.Currency, next.NetAmount)
	u.addSubscriber(ctx, &next)
	u.log.Info().Str("reference", next.Reference).Str("transaction_ref", next.TransactionRef).
		Time("paid_at", *next.PaidAt).Msg("payment marked paid")
	return &next, true, nil
}

func (u *ledgerUC) MarkFailed(ctx context.Context, p *model.Payment, reason string) (*model.Payment, bool, error) {
	if p == nil {
		return nil, false, domain.ErrInvalidArgument
	}
	next := *p
	if !next.ApplyFailed(reason) {
		return p, false, nil
	}
	ok, err := u.payments.MarkFailedIfOpen(ctx, repository.NoTX, &next)
	if err != nil {
		return nil, false, fmt.Errorf("mark failed %s: %w", p.Reference, err)
	}
	if !ok {
		stored, err := u.payments.FindByReference(ctx, repository.NoTX, p.Reference)
		return stored, false, err
	}
	metrics.IncPayment(string(next.Status))
	u.log.Info().Str("reference", next.Reference).Str("reason", reason).Msg("payment marked failed")
	return &next, true, nil
}

func (u *ledgerUC) Expire(ctx context.Context, p *model.Payment) (*model.Payment, bool, error) {
	if p == nil {
		return nil, false, domain.ErrInvalidArgument
	}
	next := *p
	if !next.Expire() {
		return p, false, nil
	}
	changed, err := u.payments.ExpireIfActive(ctx, repository.NoTX, p.ID)
	if err != nil {
		return nil, false, fmt.Errorf("expire %s: %w", p.Reference, err)
	}
	if !changed {
		u.log.Debug().Str("reference", p.Reference).Msg("already expired by another sweep")
	}
	return &next, changed, nil
}

func (u *ledgerUC) RecordPaid(ctx context.Context, in NewPaymentInput, d model.PaidDetails) (*model.Payment, error) {
	p, err := model.NewPendingPayment(in.Reference, in.SubjectID, in.GroupID, in.Amount, in.DurationTier, u.currency, in.ContactEmail)
	if err != nil {
		return nil, err
	}
	p.ApplyPaid(d)
	if err := u.payments.Insert(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(p.Status))
	metrics.AddPaymentRevenue(p.Currency, p.NetAmount)
	u.addSubscriber(ctx, p)
	u.log.Info().Str("reference", p.Reference).Str("subject_id", p.SubjectID).Str("group_id", p.GroupID).
		Msg("paid payment synthesized from processor event")
	return p, nil
}

// addSubscriber keeps the informational group cache in step; failures only log.
func (u *ledgerUC) addSubscriber(ctx context.Context, p *model.Payment) {
	if u.groups == nil {
		return
	}
	if err := u.groups.AddSubscriber(ctx, repository.NoTX, p.GroupID, p.SubjectID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Err(err).Str("group_id", p.GroupID).Str("subject_id", p.SubjectID).Msg("group subscriber cache not updated")
	}
}

// paidAtOrNow normalizes processor timestamps.
func paidAtOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
