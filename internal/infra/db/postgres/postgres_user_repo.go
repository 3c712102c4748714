package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.UserDirectory = (*userDirectory)(nil)

// userDirectory reads buyer identity from the accounts schema.
type userDirectory struct{ pool *pgxpool.Pool }

func NewUserDirectory(pool *pgxpool.Pool) *userDirectory {
	return &userDirectory{pool: pool}
}

func (r *userDirectory) FindBuyer(ctx context.Context, userID string) (*repository.Buyer, error) {
	const q = `SELECT id, name, email, COALESCE(phone,'') FROM users WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, userID)
	if err != nil {
		return nil, err
	}
	b := &repository.Buyer{}
	if err := row.Scan(&b.ID, &b.Name, &b.Email, &b.Phone); err != nil {
		return nil, mapScanErr(err)
	}
	return b, nil
}
