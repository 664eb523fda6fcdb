package adapter

import (
	"context"
	"time"
)

const (
	EventPaymentPaid         = "payment.paid"
	EventPaymentFailed       = "payment.failed"
	EventSubscriptionExpired = "subscription.expired"
	EventMembershipRevoked   = "membership.revoked"
)

// DomainEvent is published after a ledger or membership change has been committed.
type DomainEvent struct {
	Type       string            `json:"type"`
	Reference  string            `json:"reference,omitempty"`
	SubjectID  string            `json:"subject_id"`
	GroupID    string            `json:"group_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventPublisher fans ledger changes out to downstream consumers. Publishing is
// best effort: callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, ev DomainEvent) error
}
