package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
)

var _ repository.PayoutAccountRepository = (*payoutAccountRepo)(nil)

// Cipher seals account numbers bound to their owner.
type Cipher interface {
	Encrypt(plaintext, boundTo string) (string, error)
	Decrypt(ciphertext, boundTo string) (string, error)
}

type payoutAccountRepo struct {
	pool   *pgxpool.Pool
	cipher Cipher
}

func NewPayoutAccountRepo(pool *pgxpool.Pool, cipher Cipher) *payoutAccountRepo {
	return &payoutAccountRepo{pool: pool, cipher: cipher}
}

func (r *payoutAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.PayoutAccount) error {
	enc, err := r.cipher.Encrypt(a.AccountNumber, a.OwnerID)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payout_accounts (owner_id, bank_code, bank_name, account_number_enc, account_name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (owner_id) DO UPDATE SET
  bank_code = EXCLUDED.bank_code, bank_name = EXCLUDED.bank_name,
  account_number_enc = EXCLUDED.account_number_enc, account_name = EXCLUDED.account_name,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q, a.OwnerID, a.BankCode, a.BankName, enc, a.AccountName, a.CreatedAt, a.UpdatedAt)
	return mapWriteErr(err)
}

func (r *payoutAccountRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.PayoutAccount, error) {
	const q = `SELECT owner_id, bank_code, bank_name, account_number_enc, account_name, created_at, updated_at
FROM payout_accounts WHERE owner_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	a := new(model.PayoutAccount)
	var enc string
	if err := row.Scan(&a.OwnerID, &a.BankCode, &a.BankName, &enc, &a.AccountName, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	if a.AccountNumber, err = r.cipher.Decrypt(enc, a.OwnerID); err != nil {
		return nil, err
	}
	return a, nil
}
