package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, user_id, plan_id, provider, billing_key, status, next_billing_date, failure_count, created_at, updated_at, cancelled_at`

// Save upserts by id. A partial unique index
// (user_id) WHERE status IN ('active','past_due') makes a second live
// subscription for the same user fail with 23505.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  billing_key=EXCLUDED.billing_key,
  status=EXCLUDED.status,
  next_billing_date=EXCLUDED.next_billing_date,
  failure_count=EXCLUDED.failure_count,
  updated_at=EXCLUDED.updated_at,
  cancelled_at=EXCLUDED.cancelled_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		sub.ID, sub.UserID, sub.PlanID, sub.Provider, sub.BillingKey, sub.Status,
		sub.NextBillingDate, sub.FailureCount, sub.CreatedAt, sub.UpdatedAt, sub.CancelledAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindLiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE user_id=$1 AND status IN ('active','past_due')`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) ListDue(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE status='active' AND next_billing_date <= $1
 ORDER BY next_billing_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, asOf, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *subscriptionRepo) ListPastDueOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions
 WHERE status='past_due' AND updated_at < $1
 ORDER BY updated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

func (r *subscriptionRepo) UpdateBillingKey(ctx context.Context, tx repository.Tx, id, billingKey string) error {
	const q = `UPDATE subscriptions SET billing_key=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, billingKey)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT plan_id, COUNT(*) FROM subscriptions WHERE status='active' GROUP BY plan_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var planID string
		var n int
		if err := rows.Scan(&planID, &n); err != nil {
			return nil, mapScanErr(err)
		}
		out[planID] = n
	}
	return out, nil
}

func scanSubscription(row interface{ Scan(...interface{}) error }) (*model.Subscription, error) {
	s := &model.Subscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.Provider, &s.BillingKey, &s.Status,
		&s.NextBillingDate, &s.FailureCount, &s.CreatedAt, &s.UpdatedAt, &s.CancelledAt); err != nil {
		return nil, mapScanErr(err)
	}
	return s, nil
}

func collectSubscriptions(rows interface {
	Next() bool
	Scan(...interface{}) error
}) ([]*model.Subscription, error) {
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
