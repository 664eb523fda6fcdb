package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain/model"
)

// PaymentFilter narrows ledger listings for reporting.
type PaymentFilter struct {
	Status model.PaymentStatus // empty means any
	Limit  int
	Offset int
}

// PaymentRepository is the ledger port. Every mutation is a single-row,
// conditional update so that concurrent writers can only move a row forward.
type PaymentRepository interface {
	// Insert fails with domain.ErrDuplicateReference when the reference exists.
	Insert(ctx context.Context, tx Tx, p *model.Payment) error
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Payment, error)
	// FindByTransactionRef returns the newest row carrying the processor reference.
	FindByTransactionRef(ctx context.Context, tx Tx, transactionRef string) (*model.Payment, error)
	// FindOpenByAttributes returns pending/initiated rows matching the keys, newest first.
	FindOpenByAttributes(ctx context.Context, tx Tx, subjectID, groupID string, amount decimal.Decimal) ([]*model.Payment, error)
	ListBySubjectAndGroup(ctx context.Context, tx Tx, subjectID, groupID string) ([]*model.Payment, error)

	// MarkPaidIfUnpaid writes the paid fields unless the row is already paid.
	MarkPaidIfUnpaid(ctx context.Context, tx Tx, p *model.Payment) (bool, error)
	// MarkFailedIfOpen writes the failure unless the row left the open states.
	MarkFailedIfOpen(ctx context.Context, tx Tx, p *model.Payment) (bool, error)
	// ExpireIfActive flips subscription_status to expired.
	ExpireIfActive(ctx context.Context, tx Tx, id string) (bool, error)

	// ListActiveSubscriptions pages through subscription_status='active' rows by id.
	ListActiveSubscriptions(ctx context.Context, tx Tx, afterID string, limit int) ([]*model.Payment, error)
	// ListRevocationCandidates returns pairs that have a non-entitled row and no entitled row at now.
	ListRevocationCandidates(ctx context.Context, tx Tx, now time.Time) ([]model.AccessPair, error)

	List(ctx context.Context, tx Tx, f PaymentFilter) ([]*model.Payment, error)
	RevenueByOwnerSince(ctx context.Context, tx Tx, since time.Time) ([]*model.OwnerRevenue, error)
	CountEntitled(ctx context.Context, tx Tx, now time.Time) (int, error)
}
