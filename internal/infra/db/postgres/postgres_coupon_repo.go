package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

const couponColumns = `id, code, discount_type, discount_value, valid_from, valid_to, max_usage, used_count, created_at`

func (r *couponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE code=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

// ConsumeUsage is the global-cap gate. The conditional UPDATE increments
// used_count only while it is still below max_usage (or the coupon is
// uncapped), so concurrent redeemers past the cap change zero rows and get
// domain.ErrCouponExhausted.
func (r *couponRepo) ConsumeUsage(ctx context.Context, tx repository.Tx, couponID string) error {
	const q = `
UPDATE coupons SET used_count = used_count + 1
 WHERE id=$1 AND (max_usage = 0 OR used_count < max_usage);`
	cmd, err := execSQL(ctx, r.pool, tx, q, couponID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		// Either the coupon vanished or the cap is reached; distinguish.
		if _, ferr := r.FindByID(ctx, tx, couponID); ferr != nil {
			return domain.ErrCouponNotFound
		}
		return domain.ErrCouponExhausted
	}
	return nil
}

func (r *couponRepo) HasRedemption(ctx context.Context, tx repository.Tx, userID, couponID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM user_coupons WHERE user_id=$1 AND coupon_id=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, couponID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *couponRepo) SaveRedemption(ctx context.Context, tx repository.Tx, uc *model.UserCoupon) error {
	const q = `
INSERT INTO user_coupons (id, user_id, coupon_id, payment_id, redeemed_at)
VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, uc.ID, uc.UserID, uc.CouponID, uc.PaymentID, uc.RedeemedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// unique (user_id, coupon_id): one redemption per user.
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanCoupon(row interface{ Scan(...interface{}) error }) (*model.Coupon, error) {
	c := &model.Coupon{}
	if err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue,
		&c.ValidFrom, &c.ValidTo, &c.MaxUsage, &c.UsedCount, &c.CreatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return c, nil
}
