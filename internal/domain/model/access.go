package model

import "time"

// AccessState is the per (subject, group) state derived from ledger rows.
// It is never stored.
type AccessState string

const (
	AccessNoPayment AccessState = "NO_PAYMENT"
	AccessPending   AccessState = "PENDING"
	AccessActive    AccessState = "ACTIVE"
	AccessExpired   AccessState = "EXPIRED"
	AccessDenied    AccessState = "DENIED"
)

// Permits reports whether membership is allowed in this state.
func (s AccessState) Permits() bool { return s == AccessActive }

// AccessPair identifies one subject in one group.
type AccessPair struct {
	SubjectID string
	GroupID   string
}

// DeriveAccessState folds all ledger rows of one pair into a state. Any
// entitled row wins; otherwise the most recently created row decides, so a
// new checkout after an expiry reads as PENDING.
func DeriveAccessState(rows []*Payment, now time.Time) AccessState {
	if len(rows) == 0 {
		return AccessNoPayment
	}
	var latest *Payment
	for _, p := range rows {
		if p.IsEntitled(now) {
			return AccessActive
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	switch {
	case latest.Status.IsOpen():
		return AccessPending
	case latest.Status == PaymentStatusFailed:
		return AccessDenied
	default:
		return AccessExpired
	}
}
