package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Record(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const ins = `
INSERT INTO webhook_events (processor, event_id, event_type, payload, signature_valid, outcome, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (processor, event_id) DO NOTHING
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, ins, e.Processor, e.EventID, e.EventType, string(e.Payload), e.SignatureValid,
		string(e.Outcome), e.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	var id int64
	err = row.Scan(&id)
	if err == nil {
		out := *e
		out.ID = id
		return &out, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, mapWriteErr(err)
	}

	// Conflict: hand back what is stored.
	const sel = `
SELECT id, processor, event_id, event_type, payload, signature_valid, outcome, processing_error, processed_at, created_at
  FROM webhook_events WHERE processor = $1 AND event_id = $2;`
	row, err = pickRow(ctx, r.pool, tx, sel, e.Processor, e.EventID)
	if err != nil {
		return nil, false, err
	}
	var (
		stored  model.WebhookEvent
		payload string
		outcome string
	)
	if err := row.Scan(&stored.ID, &stored.Processor, &stored.EventID, &stored.EventType, &payload,
		&stored.SignatureValid, &outcome, &stored.ProcessingError, &stored.ProcessedAt, &stored.CreatedAt); err != nil {
		return nil, false, mapReadErr(err)
	}
	stored.Payload = []byte(payload)
	stored.Outcome = model.WebhookOutcome(outcome)
	return &stored, false, nil
}

func (r *webhookEventRepo) MarkOutcome(ctx context.Context, tx repository.Tx, id int64, outcome model.WebhookOutcome, processingErr string) error {
	const q = `UPDATE webhook_events SET outcome = $2, processing_error = $3, processed_at = NOW() WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, string(outcome), processingErr)
	return mapWriteErr(err)
}
