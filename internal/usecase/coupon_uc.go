// File: internal/usecase/coupon_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ CouponUseCase = (*couponUC)(nil)

type CouponUseCase interface {
	// Validate runs the advisory, read-only rule chain for a coupon code and
	// returns the coupon plus the discount it grants on baseAmount. It never
	// mutates usage state, so repeated checks cannot exhaust the cap.
	Validate(ctx context.Context, code, userID string, baseAmount int64) (*model.Coupon, int64, error)
	// Consume applies the deferred side effects inside the caller's
	// reconciliation transaction: bounded used_count increment plus the
	// unique (user, coupon) redemption row.
	Consume(ctx context.Context, tx repository.Tx, couponID, userID string, paymentID *string) error
}

type couponUC struct {
	coupons repository.CouponRepository
	log     *zerolog.Logger
}

func NewCouponUseCase(coupons repository.CouponRepository, logger *zerolog.Logger) *couponUC {
	l := logger.With().Str("component", "CouponUC").Logger()
	return &couponUC{coupons: coupons, log: &l}
}

// Validate checks rules in order; the first failure short-circuits with its
// specific reason: exists -> window -> cap -> prior redemption.
func (u *couponUC) Validate(ctx context.Context, code, userID string, baseAmount int64) (*model.Coupon, int64, error) {
	c, err := u.coupons.FindByCode(ctx, nil, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, domain.ErrCouponNotFound
		}
		return nil, 0, err
	}
	if err := c.CheckUsable(time.Now()); err != nil {
		return nil, 0, err
	}
	used, err := u.coupons.HasRedemption(ctx, nil, userID, c.ID)
	if err != nil {
		return nil, 0, err
	}
	if used {
		return nil, 0, domain.ErrCouponAlreadyUsed
	}
	return c, c.Discount(baseAmount), nil
}

func (u *couponUC) Consume(ctx context.Context, tx repository.Tx, couponID, userID string, paymentID *string) error {
	if err := u.coupons.ConsumeUsage(ctx, tx, couponID); err != nil {
		metrics.IncCouponRedemption("exhausted")
		return err
	}
	uc := &model.UserCoupon{
		ID:         uuid.NewString(),
		UserID:     userID,
		CouponID:   couponID,
		PaymentID:  paymentID,
		RedeemedAt: time.Now(),
	}
	if err := u.coupons.SaveRedemption(ctx, tx, uc); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			metrics.IncCouponRedemption("duplicate")
			return domain.ErrCouponAlreadyUsed
		}
		return err
	}
	metrics.IncCouponRedemption("ok")
	return nil
}
