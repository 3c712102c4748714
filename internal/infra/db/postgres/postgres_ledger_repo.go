package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.TokenLedger = (*tokenLedgerRepo)(nil)

type tokenLedgerRepo struct{ pool *pgxpool.Pool }

func NewTokenLedgerRepo(pool *pgxpool.Pool) *tokenLedgerRepo {
	return &tokenLedgerRepo{pool: pool}
}

func (r *tokenLedgerRepo) Credit(ctx context.Context, tx repository.Tx, userID string, tokens int64) error {
	if tokens <= 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO token_balances (user_id, balance, updated_at)
VALUES ($1,$2,NOW())
ON CONFLICT (user_id) DO UPDATE SET
  balance = token_balances.balance + EXCLUDED.balance,
  updated_at = NOW();`
	if _, err := execSQL(ctx, r.pool, tx, q, userID, tokens); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// Debit reverses tokens only when the balance covers them. The conditional
// UPDATE is the guard; a prior read would race.
func (r *tokenLedgerRepo) Debit(ctx context.Context, tx repository.Tx, userID string, tokens int64) error {
	if tokens <= 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
UPDATE token_balances SET balance = balance - $2, updated_at = NOW()
 WHERE user_id=$1 AND balance >= $2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, tokens)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrInsufficientTokens
	}
	return nil
}

func (r *tokenLedgerRepo) Balance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	const q = `SELECT COALESCE((SELECT balance FROM token_balances WHERE user_id=$1), 0);`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var balance int64
	if err := row.Scan(&balance); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return balance, nil
}
