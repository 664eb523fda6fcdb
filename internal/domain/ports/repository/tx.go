package repository

import "context"

// Tx is an opaque transaction handle. Repositories accept nil (NoTX) for the
// non-transactional path; the concrete type is defined by the storage backend.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a single storage transaction, committing
// when fn returns nil and rolling back otherwise.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
