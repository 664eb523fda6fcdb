package model

import "time"

type WebhookOutcome string

const (
	WebhookOutcomeReceived  WebhookOutcome = "received"
	WebhookOutcomeProcessed WebhookOutcome = "processed"
	WebhookOutcomeCreated   WebhookOutcome = "created"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
	WebhookOutcomeFailed    WebhookOutcome = "failed"
)

// WebhookEvent is the audit row for one delivery from a processor.
type WebhookEvent struct {
	ID              int64
	Processor       string
	EventID         string
	EventType       string
	Payload         []byte // verbatim request body
	SignatureValid  bool
	Outcome         WebhookOutcome
	ProcessingError string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
}

// EventKind classifies processor event names.
type EventKind int

const (
	EventKindOther EventKind = iota
	EventKindPaid
	EventKindFailed
)

// PaymentEvent is a processor event normalized into ledger terms.
type PaymentEvent struct {
	Processor    string
	EventID      string
	Name         string
	Kind         EventKind
	References   []string // candidate caller references, most specific first
	ProcessorRef string
	SubjectID    string
	GroupID      string
	Amount       string
	DurationTier string
	Method       string
	Email        string
	Reason       string
	PaidAt       time.Time
	Raw          []byte
}
