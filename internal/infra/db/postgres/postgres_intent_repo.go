package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*intentRepo)(nil)

type intentRepo struct{ pool *pgxpool.Pool }

func NewIntentRepo(pool *pgxpool.Pool) *intentRepo {
	return &intentRepo{pool: pool}
}

const intentColumns = `id, merchant_uid, user_id, plan_id, coupon_id, kind, provider, method, base_amount, amount, external_ref, billing_key, status, created_at, expires_at`

func (r *intentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (` + intentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err := execSQL(ctx, r.pool, tx, q,
		in.ID, in.MerchantUID, in.UserID, in.PlanID, in.CouponID, in.Kind, in.Provider,
		in.Method, in.BaseAmount, in.Amount, in.ExternalRef, in.BillingKey, in.Status, in.CreatedAt, in.ExpiresAt)
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

func (r *intentRepo) FindByMerchantUID(ctx context.Context, tx repository.Tx, merchantUID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE merchant_uid=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, merchantUID)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus) error {
	const q = `UPDATE payment_intents SET status=$2 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) SetExternalRef(ctx context.Context, tx repository.Tx, id, ref string) error {
	const q = `UPDATE payment_intents SET external_ref=$2 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, ref)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) ExpireOlderThan(ctx context.Context, tx repository.Tx, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	const q = `
UPDATE payment_intents SET status='expired'
 WHERE id IN (
   SELECT id FROM payment_intents
    WHERE status IN ('created','awaiting_gateway') AND expires_at < $1
    ORDER BY expires_at ASC LIMIT $2
 );`
	cmd, err := execSQL(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *intentRepo) ListAwaitingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + intentColumns + ` FROM payment_intents
 WHERE status='awaiting_gateway' AND created_at < $1 AND expires_at > NOW()
 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

func scanIntent(row interface{ Scan(...interface{}) error }) (*model.PaymentIntent, error) {
	in := &model.PaymentIntent{}
	if err := row.Scan(&in.ID, &in.MerchantUID, &in.UserID, &in.PlanID, &in.CouponID, &in.Kind, &in.Provider,
		&in.Method, &in.BaseAmount, &in.Amount, &in.ExternalRef, &in.BillingKey, &in.Status, &in.CreatedAt, &in.ExpiresAt); err != nil {
		return nil, mapScanErr(err)
	}
	return in, nil
}
