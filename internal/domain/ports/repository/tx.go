package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle threaded through repository calls.
// The concrete type is infra-defined (pgx.Tx for Postgres); repositories must
// gracefully accept nil for the non-transactional path.
type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via tx. Keeping the handle opaque stops
// transaction types from leaking into use-case signatures while still letting
// repositories run SELECT ... FOR UPDATE on the tx-bound connection.
//
// All monetary-effect paths run inside WithTx: either every effect commits or
// none does.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
