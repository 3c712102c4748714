package model

import (
	"time"

	"github.com/shopspring/decimal"

	"ai-saas-billing/internal/domain"
)

type DiscountType string

const (
	DiscountTypeRate   DiscountType = "rate"   // percentage off
	DiscountTypeAmount DiscountType = "amount" // fixed amount off
)

// Coupon is a discount rule with a validity window and an optional global
// usage cap. used_count is monotonic and bounded by max_usage; the increment
// happens at reconciliation time, never during advisory validation.
type Coupon struct {
	ID            string // UUID
	Code          string // unique, user-facing
	DiscountType  DiscountType
	DiscountValue int64 // percent for rate (0-100), KRW for amount
	ValidFrom     time.Time
	ValidTo       time.Time
	MaxUsage      int64 // 0 = uncapped
	UsedCount     int64
	CreatedAt     time.Time
}

// UserCoupon records a single redemption; unique (user_id, coupon_id)
// enforces one use per user.
type UserCoupon struct {
	ID         string
	UserID     string
	CouponID   string
	PaymentID  *string
	RedeemedAt time.Time
}

// CheckUsable evaluates the stateless rules in order and short-circuits with a
// specific reason. It never mutates the coupon.
func (c *Coupon) CheckUsable(at time.Time) error {
	if at.Before(c.ValidFrom) {
		return domain.ErrCouponNotStarted
	}
	if at.After(c.ValidTo) {
		return domain.ErrCouponExpired
	}
	if c.MaxUsage > 0 && c.UsedCount >= c.MaxUsage {
		return domain.ErrCouponExhausted
	}
	return nil
}

// Discount computes the discount for a base amount. Rate discounts round down
// so the buyer never pays less than intended; the result never exceeds base.
func (c *Coupon) Discount(base int64) int64 {
	var d int64
	switch c.DiscountType {
	case DiscountTypeRate:
		d = decimal.NewFromInt(base).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Floor().IntPart()
	case DiscountTypeAmount:
		d = c.DiscountValue
	}
	if d > base {
		return base
	}
	if d < 0 {
		return 0
	}
	return d
}
