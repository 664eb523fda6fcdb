package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, reference, transaction_ref, subject_id, group_id, amount, commission, net_amount, currency,
  duration_tier, contact_email, status, subscription_status, payment_method, failure_reason, paid_at, expires_at,
  metadata, created_at, updated_at`

// entitled is the SQL twin of model.Payment.IsEntitled; $1 is "now".
const entitledPredicate = `status IN ('paid','successful') AND subscription_status = 'active' AND expires_at > $1`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	p := new(model.Payment)
	var status, subStatus, tier string
	if err := row.Scan(&p.ID, &p.Reference, &p.TransactionRef, &p.SubjectID, &p.GroupID, &p.Amount, &p.Commission,
		&p.NetAmount, &p.Currency, &tier, &p.ContactEmail, &status, &subStatus, &p.PaymentMethod,
		&p.FailureReason, &p.PaidAt, &p.ExpiresAt, &p.Metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.SubscriptionStatus = model.SubscriptionStatus(subStatus)
	p.DurationTier = model.DurationTier(tier)
	return p, nil
}

func (r *paymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	q := `INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20);`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Reference, p.TransactionRef, p.SubjectID, p.GroupID, p.Amount,
		p.Commission, p.NetAmount, p.Currency, string(p.DurationTier), p.ContactEmail, string(p.Status),
		string(p.SubscriptionStatus), p.PaymentMethod, p.FailureReason, p.PaidAt, p.ExpiresAt, nullableJSON(p.Metadata),
		p.CreatedAt, p.UpdatedAt)
	if err = mapWriteErr(err); errors.Is(err, domain.ErrAlreadyExists) {
		return domain.ErrDuplicateReference
	}
	return err
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, where string, arg interface{}) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + ` ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return p, nil
}

func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Payment, error) {
	return r.findOne(ctx, tx, `reference = $1`, reference)
}

func (r *paymentRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, transactionRef string) (*model.Payment, error) {
	if transactionRef == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, tx, `transaction_ref = $1`, transactionRef)
}

func (r *paymentRepo) FindOpenByAttributes(ctx context.Context, tx repository.Tx, subjectID, groupID string, amount decimal.Decimal) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE subject_id = $1 AND group_id = $2 AND amount = $3 AND status IN ('pending','initiated')
ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, subjectID, groupID, amount)
}

func (r *paymentRepo) ListBySubjectAndGroup(ctx context.Context, tx repository.Tx, subjectID, groupID string) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE subject_id = $1 AND group_id = $2 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, subjectID, groupID)
}

// MarkPaidIfUnpaid never touches a row already in the paid family. Failed rows
// may still be promoted when the processor later reports success.
func (r *paymentRepo) MarkPaidIfUnpaid(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
    UPDATE payments
       SET status = $2,
           transaction_ref = CASE WHEN $3 = '' THEN transaction_ref ELSE $3 END,
           payment_method = CASE WHEN $4 = '' THEN payment_method ELSE $4 END,
           paid_at = $5,
           expires_at = $6,
           metadata = COALESCE($7, metadata),
           failure_reason = '',
           updated_at = NOW()
     WHERE id = $1
       AND status IN ('pending','initiated','failed')`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, string(p.Status), p.TransactionRef, p.PaymentMethod, p.PaidAt,
		p.ExpiresAt, nullableJSON(p.Metadata))
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkFailedIfOpen(ctx context.Context, tx repository.Tx, p *model.Payment) (bool, error) {
	const q = `
    UPDATE payments
       SET status = 'failed',
           failure_reason = $2,
           updated_at = NOW()
     WHERE id = $1
       AND status IN ('pending','initiated')`

	cmd, err := execSQL(ctx, r.pool, tx, q, p.ID, p.FailureReason)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ExpireIfActive(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE payments SET subscription_status = 'expired', updated_at = NOW() WHERE id = $1 AND subscription_status = 'active'`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListActiveSubscriptions(ctx context.Context, tx repository.Tx, afterID string, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 200
	}
	if afterID == "" {
		afterID = "00000000-0000-0000-0000-000000000000"
	}
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE subscription_status = 'active' AND id > $1::uuid
ORDER BY id ASC LIMIT $2;`
	return r.list(ctx, tx, q, afterID, limit)
}

func (r *paymentRepo) ListRevocationCandidates(ctx context.Context, tx repository.Tx, now time.Time) ([]model.AccessPair, error) {
	const q = `
SELECT DISTINCT p.subject_id, p.group_id
  FROM payments p
 WHERE NOT EXISTS (
        SELECT 1 FROM payments e
         WHERE e.subject_id = p.subject_id AND e.group_id = p.group_id
           AND e.` + entitledPredicate + `)
 ORDER BY p.group_id, p.subject_id;`

	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []model.AccessPair
	for rows.Next() {
		var pair model.AccessPair
		if err := rows.Scan(&pair.SubjectID, &pair.GroupID); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}

func (r *paymentRepo) List(ctx context.Context, tx repository.Tx, f repository.PaymentFilter) ([]*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC LIMIT $2 OFFSET $3;`
	return r.list(ctx, tx, q, string(f.Status), f.Limit, f.Offset)
}

func (r *paymentRepo) RevenueByOwnerSince(ctx context.Context, tx repository.Tx, since time.Time) ([]*model.OwnerRevenue, error) {
	const q = `
SELECT g.owner_id, COALESCE(SUM(p.net_amount), 0), ARRAY_AGG(DISTINCT g.group_id)
  FROM payments p
  JOIN groups g ON g.group_id = p.group_id
 WHERE p.status IN ('paid','successful') AND p.paid_at >= $1
 GROUP BY g.owner_id
 ORDER BY 2 DESC;`

	rows, err := queryRows(ctx, r.pool, tx, q, since)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []*model.OwnerRevenue
	for rows.Next() {
		rev := new(model.OwnerRevenue)
		if err := rows.Scan(&rev.OwnerID, &rev.TotalRevenue, &rev.Groups); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (r *paymentRepo) CountEntitled(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM payments WHERE `+entitledPredicate, now)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapReadErr(err)
	}
	return n, nil
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrOperationFailed
	}
	return out, nil
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
