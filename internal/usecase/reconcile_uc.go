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
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/domain/ports/repository"
	"telegram-group-paywall/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileResult tells the transport what happened to an event. Every result
// is acknowledged to the processor; only errors are retried.
type ReconcileResult struct {
	Outcome model.WebhookOutcome
	Payment *model.Payment
	Message string
}

// VerifyInput is the synchronous fallback used when a webhook is late.
type VerifyInput struct {
	Reference      string
	TransactionRef string
	Status         string
}

type ReconcileUseCase interface {
	// Ingest records the delivery, drops repeated event ids and applies the event.
	Ingest(ctx context.Context, ev model.PaymentEvent) (ReconcileResult, error)
	// Apply maps one normalized event onto the ledger.
	Apply(ctx context.Context, ev model.PaymentEvent) (ReconcileResult, error)
	Verify(ctx context.Context, in VerifyInput) (*model.Payment, error)
}

type reconcileUC struct {
	ledger LedgerUseCase
	events repository.WebhookEventRepository
	pub    adapter.EventPublisher
	log    *zerolog.Logger
}

func NewReconcileUseCase(ledger LedgerUseCase, events repository.WebhookEventRepository, pub adapter.EventPublisher, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{ledger: ledger, events: events, pub: pub, log: &l}
}

func (u *reconcileUC) Ingest(ctx context.Context, ev model.PaymentEvent) (ReconcileResult, error) {
	var stored *model.WebhookEvent
	if u.events != nil {
		rec, fresh, err := u.events.Record(ctx, repository.NoTX, &model.WebhookEvent{
			Processor:      ev.Processor,
			EventID:        ev.EventID,
			EventType:      ev.Name,
			Payload:        ev.Raw,
			SignatureValid: true,
			Outcome:        model.WebhookOutcomeReceived,
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			u.log.Warn().Err(err).Str("event_id", ev.EventID).Msg("webhook event not recorded")
		} else {
			stored = rec
			if !fresh && rec.ProcessedAt != nil && rec.Outcome != model.WebhookOutcomeFailed {
				metrics.IncWebhook(ev.Processor, string(model.WebhookOutcomeDuplicate))
				return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Message: "Event already processed"}, nil
			}
		}
	}

	res, err := u.Apply(ctx, ev)
	if stored != nil {
		outcome, msg := res.Outcome, ""
		if err != nil {
			outcome, msg = model.WebhookOutcomeFailed, err.Error()
		}
		if mErr := u.events.MarkOutcome(ctx, repository.NoTX, stored.ID, outcome, msg); mErr != nil {
			u.log.Warn().Err(mErr).Int64("webhook_event", stored.ID).Msg("webhook outcome not stored")
		}
	}
	if err != nil {
		metrics.IncWebhook(ev.Processor, string(model.WebhookOutcomeFailed))
		return res, err
	}
	metrics.IncWebhook(ev.Processor, string(res.Outcome))
	return res, nil
}

func (u *reconcileUC) Apply(ctx context.Context, ev model.PaymentEvent) (ReconcileResult, error) {
	log := u.log.With().Str("processor", ev.Processor).Str("event", ev.Name).Str("event_id", ev.EventID).Logger()

	if ev.Kind == model.EventKindOther {
		log.Debug().Msg("event not processed")
		return ReconcileResult{Outcome: model.WebhookOutcomeIgnored, Message: "Event not processed"}, nil
	}

	amount, amountErr := decimal.NewFromString(ev.Amount)
	if amountErr != nil {
		amount = decimal.Zero
	}

	p, err := u.resolve(ctx, ev, amount)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ReconcileResult{}, err
	}

	if p == nil {
		if ev.Kind != model.EventKindPaid {
			log.Info().Strs("references", ev.References).Msg("failure event for unknown payment ignored")
			return ReconcileResult{Outcome: model.WebhookOutcomeIgnored, Message: "Payment not found"}, nil
		}
		return u.synthesize(ctx, ev, amount, &log)
	}

	switch ev.Kind {
	case model.EventKindPaid:
		if p.Status.IsPaidFamily() {
			log.Info().Str("reference", p.Reference).Msg("payment already paid")
			return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Payment: p, Message: "Payment already processed"}, nil
		}
		updated, changed, err := u.ledger.MarkPaid(ctx, p, model.PaidDetails{
			ProcessorRef: ev.ProcessorRef,
			Method:       ev.Method,
			PaidAt:       paidAtOrNow(ev.PaidAt),
			Metadata:     ev.Raw,
		})
		if err != nil {
			return ReconcileResult{}, err
		}
		if !changed {
			return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Payment: updated, Message: "Payment already processed"}, nil
		}
		u.publish(ctx, adapter.EventPaymentPaid, updated)
		return ReconcileResult{Outcome: model.WebhookOutcomeProcessed, Payment: updated, Message: "Payment updated"}, nil

	default:
		if p.Status.IsPaidFamily() || p.Status == model.PaymentStatusFailed {
			return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Payment: p, Message: "Payment already final"}, nil
		}
		updated, changed, err := u.ledger.MarkFailed(ctx, p, ev.Reason)
		if err != nil {
			return ReconcileResult{}, err
		}
		if !changed {
			return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Payment: updated, Message: "Payment already final"}, nil
		}
		u.publish(ctx, adapter.EventPaymentFailed, updated)
		return ReconcileResult{Outcome: model.WebhookOutcomeProcessed, Payment: updated, Message: "Payment marked failed"}, nil
	}
}

// resolve walks the lookup chain: caller reference, processor reference,
// then the attribute heuristic.
func (u *reconcileUC) resolve(ctx context.Context, ev model.PaymentEvent, amount decimal.Decimal) (*model.Payment, error) {
	for _, ref := range ev.References {
		p, err := u.ledger.FindByReference(ctx, ref)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return u.ledger.FindByFallbackKeys(ctx, FallbackKeys{
		ProcessorRef: ev.ProcessorRef,
		SubjectID:    ev.SubjectID,
		GroupID:      ev.GroupID,
		Amount:       amount,
	})
}

func (u *reconcileUC) synthesize(ctx context.Context, ev model.PaymentEvent, amount decimal.Decimal, log *zerolog.Logger) (ReconcileResult, error) {
	tier, tierErr := model.ParseDurationTier(ev.DurationTier)
	reference := ev.ProcessorRef
	if len(ev.References) > 0 {
		reference = ev.References[0]
	}
	if ev.SubjectID == "" || ev.GroupID == "" || !model.ValidAmount(amount) || tierErr != nil || reference == "" {
		log.Warn().Strs("references", ev.References).Str("transaction_ref", ev.ProcessorRef).
			Msg("no ledger entry and not enough metadata to create one")
		return ReconcileResult{Outcome: model.WebhookOutcomeIgnored, Message: "Payment not found; insufficient metadata"}, nil
	}

	details := model.PaidDetails{
		ProcessorRef: ev.ProcessorRef,
		Method:       ev.Method,
		PaidAt:       paidAtOrNow(ev.PaidAt),
		Metadata:     ev.Raw,
	}
	p, err := u.ledger.RecordPaid(ctx, NewPaymentInput{
		Reference:    reference,
		SubjectID:    ev.SubjectID,
		GroupID:      ev.GroupID,
		Amount:       amount,
		DurationTier: tier,
		ContactEmail: ev.Email,
	}, details)
	if errors.Is(err, domain.ErrDuplicateReference) {
		// A concurrent delivery created it between our lookup and insert.
		existing, findErr := u.ledger.FindByReference(ctx, reference)
		if findErr != nil {
			return ReconcileResult{}, findErr
		}
		if existing.Status.IsPaidFamily() {
			return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Payment: existing, Message: "Payment already processed"}, nil
		}
		updated, changed, err := u.ledger.MarkPaid(ctx, existing, details)
		if err != nil {
			return ReconcileResult{}, err
		}
		if !changed {
			return ReconcileResult{Outcome: model.WebhookOutcomeDuplicate, Payment: updated, Message: "Payment already processed"}, nil
		}
		u.publish(ctx, adapter.EventPaymentPaid, updated)
		return ReconcileResult{Outcome: model.WebhookOutcomeProcessed, Payment: updated, Message: "Payment updated"}, nil
	}
	if err != nil {
		return ReconcileResult{}, err
	}
	u.publish(ctx, adapter.EventPaymentPaid, p)
	return ReconcileResult{Outcome: model.WebhookOutcomeCreated, Payment: p, Message: "Webhook processed successfully"}, nil
}

func (u *reconcileUC) Verify(ctx context.Context, in VerifyInput) (*model.Payment, error) {
	status, err := model.ParsePaymentStatus(in.Status)
	if err != nil || status.IsOpen() {
		return nil, fmt.Errorf("unsupported verify status %q: %w", in.Status, domain.ErrInvalidArgument)
	}
	ref := in.Reference
	if ref == "" {
		ref = in.TransactionRef
	}
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.ledger.FindByAnyReference(ctx, ref)
	if err != nil {
		return nil, err
	}

	if status.IsPaidFamily() {
		if p.Status.IsPaidFamily() {
			return p, nil
		}
		updated, changed, err := u.ledger.MarkPaid(ctx, p, model.PaidDetails{ProcessorRef: in.TransactionRef, PaidAt: time.Now().UTC()})
		if err != nil {
			return nil, err
		}
		if changed {
			u.publish(ctx, adapter.EventPaymentPaid, updated)
		}
		return updated, nil
	}
	if !p.Status.IsOpen() {
		return p, nil
	}
	updated, changed, err := u.ledger.MarkFailed(ctx, p, "reported failed by verify")
	if err != nil {
		return nil, err
	}
	if changed {
		u.publish(ctx, adapter.EventPaymentFailed, updated)
	}
	return updated, nil
}

func (u *reconcileUC) publish(ctx context.Context, typ string, p *model.Payment) {
	if u.pub == nil || p == nil {
		return
	}
	attrs := map[string]string{"status": string(p.Status)}
	if p.ExpiresAt != nil {
		attrs["expires_at"] = p.ExpiresAt.Format(time.RFC3339)
	}
	ev := adapter.DomainEvent{
		Type:       typ,
		Reference:  p.Reference,
		SubjectID:  p.SubjectID,
		GroupID:    p.GroupID,
		Attributes: attrs,
		OccurredAt: time.Now().UTC(),
	}
	if err := u.pub.Publish(ctx, ev); err != nil {
		u.log.Warn().Err(err).Str("type", typ).Str("reference", p.Reference).Msg("domain event not published")
	}
}
