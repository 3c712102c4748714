package repository

import "context"

// TokenLedger is the token-balance ledger owned by the usage subsystem. The
// engine credits purchases and debits reversals inside its own transactions,
// so both operations take the caller's tx handle.
type TokenLedger interface {
	Credit(ctx context.Context, tx Tx, userID string, tokens int64) error
	// Debit fails with domain.ErrInsufficientTokens when the balance would go
	// negative; the conditional UPDATE is the guard, not a prior read.
	Debit(ctx context.Context, tx Tx, userID string, tokens int64) error
	Balance(ctx context.Context, tx Tx, userID string) (int64, error)
}
