package repository

import (
	"context"

	"telegram-group-paywall/internal/domain/model"
)

// WebhookEventRepository keeps the audit trail of processor deliveries.
type WebhookEventRepository interface {
	// Record stores a delivery. For a (processor, event id) pair seen before it
	// returns the stored row and false.
	Record(ctx context.Context, tx Tx, e *model.WebhookEvent) (*model.WebhookEvent, bool, error)
	MarkOutcome(ctx context.Context, tx Tx, id int64, outcome model.WebhookOutcome, processingErr string) error
}
