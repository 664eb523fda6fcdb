package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/domain/ports/repository"
	"telegram-group-paywall/internal/infra/metrics"
)

// Compile-time check
var _ ExpiryUseCase = (*expiryUC)(nil)

const expiryPageSize = 200

// ExpiryReport summarizes one sweep.
type ExpiryReport struct {
	Scanned int
	Expired int
	Skipped int
	Errors  int
}

type ExpiryUseCase interface {
	// Sweep expires every active subscription whose expiresAt is before now.
	// Per-row failures are logged and counted, never returned.
	Sweep(ctx context.Context, now time.Time) (ExpiryReport, error)
}

type expiryUC struct {
	payments repository.PaymentRepository
	ledger   LedgerUseCase
	pub      adapter.EventPublisher
	log      *zerolog.Logger
}

func NewExpiryUseCase(payments repository.PaymentRepository, ledger LedgerUseCase, pub adapter.EventPublisher, logger *zerolog.Logger) *expiryUC {
	l := logger.With().Str("component", "ExpiryUC").Logger()
	return &expiryUC{payments: payments, ledger: ledger, pub: pub, log: &l}
}

func (u *expiryUC) Sweep(ctx context.Context, now time.Time) (ExpiryReport, error) {
	var rep ExpiryReport
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		page, err := u.payments.ListActiveSubscriptions(ctx, repository.NoTX, afterID, expiryPageSize)
		if err != nil {
			return rep, err
		}
		for _, p := range page {
			rep.Scanned++
			if !p.IsPastExpiry(now) {
				if p.ExpiresAt == nil || !p.DurationTier.Valid() {
					rep.Skipped++
				}
				continue
			}
			_, changed, err := u.ledger.Expire(ctx, p)
			if err != nil {
				rep.Errors++
				u.log.Error().Err(err).Str("reference", p.Reference).Msg("expire failed")
				continue
			}
			if !changed {
				continue
			}
			rep.Expired++
			u.publish(ctx, p, now)
		}
		if len(page) < expiryPageSize {
			break
		}
		afterID = page[len(page)-1].ID
	}

	if rep.Expired > 0 {
		metrics.IncSubscriptionsExpired(rep.Expired)
		u.log.Info().Int("expired", rep.Expired).Int("scanned", rep.Scanned).Msg("subscriptions expired")
	}
	return rep, nil
}

func (u *expiryUC) publish(ctx context.Context, p *model.Payment, now time.Time) {
	if u.pub == nil {
		return
	}
	err := u.pub.Publish(ctx, adapter.DomainEvent{
		Type:       adapter.EventSubscriptionExpired,
		Reference:  p.Reference,
		SubjectID:  p.SubjectID,
		GroupID:    p.GroupID,
		Attributes: map[string]string{"expires_at": p.ExpiresAt.Format(time.RFC3339)},
		OccurredAt: now.UTC(),
	})
	if err != nil {
		u.log.Warn().Err(err).Str("reference", p.Reference).Msg("expiry event not published")
	}
}
