package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

// planRepo reads the plan catalog. The catalog is owned elsewhere, so there
// are no writes here.
type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, kind, price_krw, token_grant, billing_cycle_days`

func (r *planRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, nil, q, id)
	if err != nil {
		return nil, err
	}
	p := &model.Plan{}
	if err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.PriceKRW, &p.TokenGrant, &p.BillingCycleDays); err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

func (r *planRepo) ListAll(ctx context.Context) ([]*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans ORDER BY price_krw ASC;`
	rows, err := queryRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p := &model.Plan{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.PriceKRW, &p.TokenGrant, &p.BillingCycleDays); err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, p)
	}
	return out, nil
}
