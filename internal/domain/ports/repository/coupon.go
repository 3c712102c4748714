package repository

import (
	"context"

	"ai-saas-billing/internal/domain/model"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Coupon, error)
	// ConsumeUsage atomically increments used_count only while it is below
	// max_usage (uncapped coupons always succeed). Returns
	// domain.ErrCouponExhausted when the cap is already reached, so the
	// (N+1)-th concurrent redeemer loses at the database, not in Go.
	ConsumeUsage(ctx context.Context, tx Tx, couponID string) error
	HasRedemption(ctx context.Context, tx Tx, userID, couponID string) (bool, error)
	// SaveRedemption inserts the UserCoupon row; unique (user_id, coupon_id)
	// maps to domain.ErrCouponAlreadyUsed.
	SaveRedemption(ctx context.Context, tx Tx, uc *model.UserCoupon) error
}
