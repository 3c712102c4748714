package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payment lifecycle errors
	ErrIntentExpired   = errors.New("payment intent expired")
	ErrIntentConsumed  = errors.New("payment intent already reconciled")
	ErrAmountMismatch  = errors.New("gateway amount does not match intent")
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrPaymentNotPaid  = errors.New("gateway reports payment not paid")

	// Coupon validation errors
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponNotStarted  = errors.New("coupon not yet valid")
	ErrCouponExpired     = errors.New("coupon expired")
	ErrCouponExhausted   = errors.New("coupon usage limit exceeded")
	ErrCouponAlreadyUsed = errors.New("coupon already redeemed by user")

	// Subscription errors
	ErrActiveSubscriptionExists = errors.New("user already has an active subscription")
	ErrNoActiveSubscription     = errors.New("no active subscription")
	ErrMissingBillingKey        = errors.New("subscription has no billing key")

	// Refund errors
	ErrRefundNotPending     = errors.New("refund is not pending")
	ErrRefundExists         = errors.New("payment already has a refund request")
	ErrInsufficientTokens   = errors.New("token balance insufficient to reverse")
	ErrPaymentNotRefundable = errors.New("payment is not refundable")
)

// GatewayError is returned by gateway adapters. Transient errors (timeouts,
// 5xx, malformed bodies) may be retried; terminal errors carry the provider's
// decline code verbatim and must be surfaced to the caller.
type GatewayError struct {
	Provider  string
	Transient bool
	Code      string
	Message   string
}

func (e *GatewayError) Error() string {
	kind := "terminal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("gateway %s: %s error (code=%s): %s", e.Provider, kind, e.Code, e.Message)
}

// IsTransientGatewayError reports whether err is a retryable gateway failure.
func IsTransientGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Transient
}

// IsTerminalGatewayError reports whether err is a non-retryable gateway decline.
func IsTerminalGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && !ge.Transient
}
