//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/usecase"
)

type reconcileHarness struct {
	uc       usecase.ReconcileUseCase
	ledger   usecase.LedgerUseCase
	payments *MockPaymentRepo
	events   *MockWebhookEventRepo
	pub      *MockPublisher
}

func newReconcileHarness(t *testing.T) *reconcileHarness {
	t.Helper()
	payments := NewMockPaymentRepo()
	groups := NewMockGroupRepo(&model.Group{GroupID: "-100", OwnerID: "9", IsActive: true})
	ledger := usecase.NewLedgerUseCase(payments, groups, "NGN", newTestLogger())
	events := NewMockWebhookEventRepo()
	pub := &MockPublisher{}
	return &reconcileHarness{
		uc:       usecase.NewReconcileUseCase(ledger, events, pub, newTestLogger()),
		ledger:   ledger,
		payments: payments,
		events:   events,
		pub:      pub,
	}
}

func (h *reconcileHarness) pending(t *testing.T, ref string) *model.Payment {
	t.Helper()
	p, err := h.ledger.CreatePending(context.Background(), pendingInput(ref))
	require.NoError(t, err)
	return p
}

func paidEvent(eventID string, refs ...string) model.PaymentEvent {
	return model.PaymentEvent{
		Processor:    "bani",
		EventID:      eventID,
		Name:         "payin_bank_transfer",
		Kind:         model.EventKindPaid,
		References:   refs,
		ProcessorRef: "bani-" + eventID,
		Amount:       "5000",
		PaidAt:       time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Raw:          []byte(`{"event":"payin_bank_transfer"}`),
	}
}

func TestReconcile_PaidEvent(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")

	res, err := h.uc.Ingest(context.Background(), paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	require.NotNil(t, res.Payment)
	assert.Equal(t, model.PaymentStatusPaid, res.Payment.Status)

	stored := h.payments.Get("ref-1")
	assert.Equal(t, model.PaymentStatusPaid, stored.Status)
	assert.Equal(t, "bani-evt-1", stored.TransactionRef)
	assert.True(t, stored.ExpiresAt.Equal(time.Date(2026, 5, 31, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{adapter.EventPaymentPaid}, h.pub.Types())

	ev := h.events.Get("bani", "evt-1")
	require.NotNil(t, ev)
	assert.Equal(t, model.WebhookOutcomeProcessed, ev.Outcome)
	assert.NotNil(t, ev.ProcessedAt)
}

func TestReconcile_RepeatedPaidEventIsDuplicate(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	ctx := context.Background()

	_, err := h.uc.Ingest(ctx, paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	firstExpiry := *h.payments.Get("ref-1").ExpiresAt

	// Same payment, new delivery id.
	late := paidEvent("evt-2", "ref-1")
	late.PaidAt = late.PaidAt.Add(48 * time.Hour)
	res, err := h.uc.Ingest(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeDuplicate, res.Outcome)
	assert.True(t, h.payments.Get("ref-1").ExpiresAt.Equal(firstExpiry), "expiry must not move")
	assert.Len(t, h.pub.Events, 1)
}

func TestReconcile_RepeatedEventIDShortCircuits(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	ctx := context.Background()

	_, err := h.uc.Ingest(ctx, paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	res, err := h.uc.Ingest(ctx, paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeDuplicate, res.Outcome)
	assert.Nil(t, res.Payment, "short-circuit does not touch the ledger")
}

func TestReconcile_FailedDeliveryIsRetried(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	ctx := context.Background()

	h.payments.MarkPaidErr = domain.ErrOperationFailed
	_, err := h.uc.Ingest(ctx, paidEvent("evt-1", "ref-1"))
	require.ErrorIs(t, err, domain.ErrOperationFailed)
	assert.Equal(t, model.WebhookOutcomeFailed, h.events.Get("bani", "evt-1").Outcome)

	h.payments.MarkPaidErr = nil
	res, err := h.uc.Ingest(ctx, paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, model.PaymentStatusPaid, h.payments.Get("ref-1").Status)
}

func TestReconcile_FailureEvent(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	ctx := context.Background()

	res, err := h.uc.Apply(ctx, model.PaymentEvent{
		Processor: "bani", Name: "payment.failed", Kind: model.EventKindFailed,
		References: []string{"ref-1"}, Reason: "declined",
	})
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	stored := h.payments.Get("ref-1")
	assert.Equal(t, model.PaymentStatusFailed, stored.Status)
	assert.Equal(t, "declined", stored.FailureReason)
	assert.Equal(t, []string{adapter.EventPaymentFailed}, h.pub.Types())

	// A later success overrides the failure.
	res, err = h.uc.Apply(ctx, paidEvent("evt-9", "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, model.PaymentStatusPaid, h.payments.Get("ref-1").Status)
}

func TestReconcile_FailureNeverDowngradesPaid(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	ctx := context.Background()

	_, err := h.uc.Apply(ctx, paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	res, err := h.uc.Apply(ctx, model.PaymentEvent{Processor: "bani", Kind: model.EventKindFailed, References: []string{"ref-1"}})
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeDuplicate, res.Outcome)
	assert.Equal(t, model.PaymentStatusPaid, h.payments.Get("ref-1").Status)
}

func TestReconcile_IgnoredEvents(t *testing.T) {
	h := newReconcileHarness(t)
	ctx := context.Background()

	res, err := h.uc.Ingest(ctx, model.PaymentEvent{Processor: "bani", EventID: "e1", Name: "customer.created", Kind: model.EventKindOther})
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeIgnored, res.Outcome)

	res, err = h.uc.Apply(ctx, model.PaymentEvent{Processor: "bani", Kind: model.EventKindFailed, References: []string{"ghost"}})
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeIgnored, res.Outcome)
	assert.Empty(t, h.pub.Events)
	assert.Zero(t, h.payments.Count())
}

func TestReconcile_FallbackByProcessorRef(t *testing.T) {
	h := newReconcileHarness(t)
	ctx := context.Background()
	p := h.pending(t, "ref-1")
	_, _, err := h.ledger.MarkFailed(ctx, p, "timeout")
	require.NoError(t, err)
	// The failure carried the processor reference.
	stored := h.payments.Get("ref-1")
	stored.TransactionRef = "bani-tx-1"
	h.payments.Seed(stored)

	ev := paidEvent("evt-1")
	ev.ProcessorRef = "bani-tx-1"
	res, err := h.uc.Apply(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, "ref-1", res.Payment.Reference)
}

func TestReconcile_FallbackByAttributes(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")

	ev := paidEvent("evt-1", "not-ours")
	ev.SubjectID, ev.GroupID = "42", "-100"
	res, err := h.uc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	assert.Equal(t, model.PaymentStatusPaid, h.payments.Get("ref-1").Status)
}

func TestReconcile_SynthesizesFromMetadata(t *testing.T) {
	h := newReconcileHarness(t)

	ev := paidEvent("evt-1", "pw_new")
	ev.SubjectID, ev.GroupID, ev.DurationTier = "77", "-100", "biannually"
	res, err := h.uc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeCreated, res.Outcome)

	stored := h.payments.Get("pw_new")
	require.NotNil(t, stored)
	assert.Equal(t, model.PaymentStatusPaid, stored.Status)
	assert.Equal(t, model.DurationBiannual, stored.DurationTier)
	assert.True(t, stored.ExpiresAt.Equal(ev.PaidAt.AddDate(0, 0, 180)))
	assert.Equal(t, []string{adapter.EventPaymentPaid}, h.pub.Types())
}

func TestReconcile_InsufficientMetadata(t *testing.T) {
	h := newReconcileHarness(t)

	ev := paidEvent("evt-1", "pw_unknown")
	ev.SubjectID = "77" // no group, no tier
	res, err := h.uc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeIgnored, res.Outcome)
	assert.Zero(t, h.payments.Count())
}

func TestReconcile_StorageErrorPropagates(t *testing.T) {
	h := newReconcileHarness(t)
	h.payments.FindErr = errors.New("connection refused")

	_, err := h.uc.Ingest(context.Background(), paidEvent("evt-1", "ref-1"))
	require.Error(t, err)
	assert.Equal(t, model.WebhookOutcomeFailed, h.events.Get("bani", "evt-1").Outcome)
}

func TestReconcile_EventStoreDownStillApplies(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	h.events.RecordErr = errors.New("events table locked")

	res, err := h.uc.Ingest(context.Background(), paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
}

func TestReconcile_ConcurrentDeliveriesPublishOnce(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")

	const n = 8
	var wg sync.WaitGroup
	outcomes := make([]model.WebhookOutcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.uc.Apply(context.Background(), paidEvent("evt-1", "ref-1"))
			if err == nil {
				outcomes[i] = res.Outcome
			}
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, o := range outcomes {
		if o == model.WebhookOutcomeProcessed {
			processed++
		} else {
			assert.Equal(t, model.WebhookOutcomeDuplicate, o)
		}
	}
	assert.Equal(t, 1, processed)
	assert.Len(t, h.pub.Events, 1)
}

func TestReconcile_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("paid", func(t *testing.T) {
		h := newReconcileHarness(t)
		h.pending(t, "ref-1")
		p, err := h.uc.Verify(ctx, usecase.VerifyInput{Reference: "ref-1", TransactionRef: "tx-1", Status: "successful"})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, p.Status)
		assert.NotNil(t, p.ExpiresAt)
		assert.Len(t, h.pub.Events, 1)

		// Verify after the webhook already landed changes nothing.
		p, err = h.uc.Verify(ctx, usecase.VerifyInput{TransactionRef: "tx-1", Status: "paid"})
		require.NoError(t, err)
		assert.Equal(t, "ref-1", p.Reference)
		assert.Len(t, h.pub.Events, 1)
	})

	t.Run("failed", func(t *testing.T) {
		h := newReconcileHarness(t)
		h.pending(t, "ref-1")
		p, err := h.uc.Verify(ctx, usecase.VerifyInput{Reference: "ref-1", Status: "failed"})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusFailed, p.Status)
	})

	t.Run("rejects open statuses", func(t *testing.T) {
		h := newReconcileHarness(t)
		_, err := h.uc.Verify(ctx, usecase.VerifyInput{Reference: "ref-1", Status: "pending"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		_, err = h.uc.Verify(ctx, usecase.VerifyInput{Status: "paid"})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("unknown reference", func(t *testing.T) {
		h := newReconcileHarness(t)
		_, err := h.uc.Verify(ctx, usecase.VerifyInput{Reference: "ghost", Status: "paid"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReconcile_PublishFailureIsNotFatal(t *testing.T) {
	h := newReconcileHarness(t)
	h.pending(t, "ref-1")
	h.pub.Err = errors.New("broker down")

	res, err := h.uc.Apply(context.Background(), paidEvent("evt-1", "ref-1"))
	require.NoError(t, err)
	assert.Equal(t, model.WebhookOutcomeProcessed, res.Outcome)
	assert.True(t, decimal.NewFromInt(5000).Equal(res.Payment.Amount))
}
