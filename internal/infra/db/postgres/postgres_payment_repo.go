package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, payment_number, external_id, merchant_uid, user_id, plan_id, subscription_id, coupon_id, provider, amount, tokens_purchased, status, paid_at, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.PaymentNumber, p.ExternalID, p.MerchantUID, p.UserID, p.PlanID,
		p.SubscriptionID, p.CouponID, p.Provider, p.Amount, p.TokensPurchased,
		p.Status, p.PaidAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// external_id / merchant_uid / payment_number collision: the
			// duplicate race is resolved here by the database.
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE external_id=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, externalID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByMerchantUID(ctx context.Context, tx repository.Tx, merchantUID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE merchant_uid=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, merchantUID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	// The WHERE clause enforces the ledger's legal transitions; an illegal
	// move changes zero rows.
	const q = `
UPDATE payments SET status=$2, updated_at=NOW()
 WHERE id=$1
   AND ( (status='failed'  AND $2='success')
      OR (status='success' AND $2='refunded')
      OR status=$2 );`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, status)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ExistsForSubscriptionSince(ctx context.Context, tx repository.Tx, subscriptionID string, since time.Time) (bool, error) {
	const q = `SELECT EXISTS(
  SELECT 1 FROM payments
   WHERE subscription_id=$1 AND status='success' AND created_at >= $2
);`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, since)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *paymentRepo) SumByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payments WHERE status='success' AND paid_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanPayment(row interface{ Scan(...interface{}) error }) (*model.Payment, error) {
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.PaymentNumber, &p.ExternalID, &p.MerchantUID, &p.UserID, &p.PlanID,
		&p.SubscriptionID, &p.CouponID, &p.Provider, &p.Amount, &p.TokensPurchased,
		&p.Status, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}
