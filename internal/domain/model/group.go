package model

import (
	"time"

	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain"
)

// Group is the denormalized view of a paywalled chat. SubscribedUsers is
// informational only; access decisions always go to the payment ledger.
type Group struct {
	GroupID         string
	OwnerID         string
	Title           string
	Price           decimal.Decimal
	DurationTier    DurationTier
	SubLink         string
	IsActive        bool
	SubscribedUsers []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewGroup registers a chat the bot was promoted in.
func NewGroup(groupID, ownerID, title string) (*Group, error) {
	if groupID == "" || ownerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Group{
		GroupID:   groupID,
		OwnerID:   ownerID,
		Title:     title,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasSubscriber reports whether subjectID is in the cached subscriber set.
func (g *Group) HasSubscriber(subjectID string) bool {
	for _, s := range g.SubscribedUsers {
		if s == subjectID {
			return true
		}
	}
	return false
}

// PayoutAccount is where a group owner's net revenue is settled.
type PayoutAccount struct {
	OwnerID       string
	BankCode      string
	BankName      string
	AccountNumber string // plaintext in memory; encrypted by the repository
	AccountName   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
