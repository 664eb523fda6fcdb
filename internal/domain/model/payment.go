package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"    // recorded at checkout, nothing confirmed yet
	PaymentStatusInitiated  PaymentStatus = "initiated"  // processor acknowledged the checkout
	PaymentStatusSuccessful PaymentStatus = "successful" // legacy success value written by older webhook code
	PaymentStatusPaid       PaymentStatus = "paid"       // confirmed by webhook or verify
	PaymentStatusFailed     PaymentStatus = "failed"     // processor reported a failure
)

// IsPaidFamily reports whether the status represents money received.
func (s PaymentStatus) IsPaidFamily() bool {
	return s == PaymentStatusPaid || s == PaymentStatusSuccessful
}

// IsOpen reports whether the status still awaits a processor outcome.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusPending || s == PaymentStatusInitiated
}

func (s PaymentStatus) rank() int {
	switch {
	case s.IsOpen():
		return 0
	case s == PaymentStatusFailed:
		return 1
	case s.IsPaidFamily():
		return 2
	}
	return -1
}

// CanTransitionTo enforces the forward-only status order:
// open -> failed -> paid. Nothing leaves the paid family.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case PaymentStatusPending, PaymentStatusInitiated, PaymentStatusSuccessful, PaymentStatusPaid, PaymentStatusFailed:
		return st, nil
	}
	return "", domain.ErrInvalidArgument
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// CommissionRate is the platform cut taken from every gross amount.
var CommissionRate = decimal.RequireFromString("0.05")

// MoneyScale is the number of decimal places stored for every amount
// (NUMERIC(14,2) in the payments table).
const MoneyScale = 2

// maxAmount is the first value that no longer fits NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

// ValidAmount reports whether amount is positive, has at most MoneyScale
// decimal places and fits the ledger columns.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() &&
		amount.Equal(amount.Round(MoneyScale)) &&
		amount.LessThan(maxAmount)
}

// SplitCommission returns (commission, net) for a gross amount. Commission is
// rounded to MoneyScale so commission+net always equals amount as stored.
func SplitCommission(amount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	commission := amount.Mul(CommissionRate).Round(MoneyScale)
	return commission, amount.Sub(commission)
}

// Payment is one ledger entry: a single payment attempt and its lifecycle.
// Status (processing) and SubscriptionStatus (entitlement) are separate axes.
type Payment struct {
	ID                 string // UUID
	Reference          string // caller-generated idempotency key, unique
	TransactionRef     string // processor-assigned reference, may be empty until confirmed
	SubjectID          string // paying user's chat identity
	GroupID            string // chat being purchased
	Amount             decimal.Decimal
	Commission         decimal.Decimal
	NetAmount          decimal.Decimal
	Currency           string
	DurationTier       DurationTier
	ContactEmail       string
	Status             PaymentStatus
	SubscriptionStatus SubscriptionStatus
	PaymentMethod      string
	FailureReason      string
	PaidAt             *time.Time
	ExpiresAt          *time.Time // always PaidAt + DurationTier offset
	Metadata           []byte     // raw upstream event kept for audit
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewPendingPayment builds the row written when a user starts checkout.
func NewPendingPayment(reference, subjectID, groupID string, amount decimal.Decimal, tier DurationTier, currency, email string) (*Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" || subjectID == "" || groupID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !ValidAmount(amount) || !tier.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	commission, net := SplitCommission(amount)
	return &Payment{
		ID:                 uuid.NewString(),
		Reference:          reference,
		SubjectID:          subjectID,
		GroupID:            groupID,
		Amount:             amount,
		Commission:         commission,
		NetAmount:          net,
		Currency:           currency,
		DurationTier:       tier,
		ContactEmail:       email,
		Status:             PaymentStatusPending,
		SubscriptionStatus: SubscriptionStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// PaidDetails carries what a processor confirmation tells us.
type PaidDetails struct {
	ProcessorRef string
	Method       string
	PaidAt       time.Time
	Metadata     []byte
}

// ApplyPaid moves the payment into the paid state. It returns false when the
// payment was already paid (idempotent no-op).
func (p *Payment) ApplyPaid(d PaidDetails) bool {
	if p.Status.IsPaidFamily() {
		return false
	}
	paidAt := d.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	p.Status = PaymentStatusPaid
	if d.ProcessorRef != "" {
		p.TransactionRef = d.ProcessorRef
	}
	if d.Method != "" {
		p.PaymentMethod = d.Method
	}
	if len(d.Metadata) > 0 {
		p.Metadata = d.Metadata
	}
	p.FailureReason = ""
	p.SetPaidAt(paidAt)
	return true
}

// ApplyFailed records a processor failure. Paid rows are never downgraded.
func (p *Payment) ApplyFailed(reason string) bool {
	if !p.Status.CanTransitionTo(PaymentStatusFailed) {
		return false
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = time.Now().UTC()
	return true
}

// Expire flips the entitlement axis. Returns false if already expired.
func (p *Payment) Expire() bool {
	if p.SubscriptionStatus == SubscriptionStatusExpired {
		return false
	}
	p.SubscriptionStatus = SubscriptionStatusExpired
	p.UpdatedAt = time.Now().UTC()
	return true
}

// SetPaidAt is the only way to change PaidAt; ExpiresAt follows it.
func (p *Payment) SetPaidAt(t time.Time) {
	t = t.UTC()
	p.PaidAt = &t
	p.recomputeExpiry()
}

// SetDurationTier changes the tier and keeps ExpiresAt consistent.
func (p *Payment) SetDurationTier(tier DurationTier) {
	p.DurationTier = tier
	p.recomputeExpiry()
}

func (p *Payment) recomputeExpiry() {
	p.ExpiresAt = nil
	if p.PaidAt != nil {
		if exp, ok := p.DurationTier.ExpiryFrom(*p.PaidAt); ok {
			p.ExpiresAt = &exp
		}
	}
	p.UpdatedAt = time.Now().UTC()
}

// IsEntitled reports whether this row alone grants access at now.
func (p *Payment) IsEntitled(now time.Time) bool {
	return p.Status.IsPaidFamily() &&
		p.SubscriptionStatus == SubscriptionStatusActive &&
		p.ExpiresAt != nil && p.ExpiresAt.After(now)
}

// IsPastExpiry reports whether the sweep should expire this row.
// Rows without a computed expiry are never past it.
func (p *Payment) IsPastExpiry(now time.Time) bool {
	if p.ExpiresAt == nil || !p.DurationTier.Valid() {
		return false
	}
	return now.After(*p.ExpiresAt)
}
