package model

import (
	"time"

	"ai-saas-billing/internal/domain"
)

type IntentKind string

const (
	IntentKindTokenPlan        IntentKind = "token_plan"
	IntentKindSubscriptionPlan IntentKind = "subscription_plan"
	IntentKindMethodChange     IntentKind = "method_change" // billing-key swap, no monetary effect
)

type IntentStatus string

const (
	IntentStatusCreated         IntentStatus = "created"
	IntentStatusAwaitingGateway IntentStatus = "awaiting_gateway"
	IntentStatusReconciled      IntentStatus = "reconciled"
	IntentStatusExpired         IntentStatus = "expired"
	IntentStatusFailed          IntentStatus = "failed"
	IntentStatusConflict        IntentStatus = "conflict" // amount mismatch, held for manual review
)

// DefaultIntentTTL bounds how long a gateway redirect may take before the
// intent is considered abandoned.
const DefaultIntentTTL = time.Hour

// PaymentIntent is the tentative, time-bounded record created before the
// gateway redirect, keyed by merchant_uid. It is the single durable
// correlation point between initiation and reconciliation; no monetary effect
// happens until the intent is reconciled.
type PaymentIntent struct {
	ID          string // UUID
	MerchantUID string // ULID, globally unique, sent to the gateway
	UserID      string
	PlanID      string
	CouponID    *string
	Kind        IntentKind
	Provider    string // gateway name, e.g. "portone"
	Method      string // card / vbank / phone ...
	BaseAmount  int64   // catalog price
	Amount      int64   // final price after discount, >= 0
	ExternalRef *string // gateway handle issued at prepare time, when the provider has one
	BillingKey  *string
	Status      IntentStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// NewPaymentIntent constructs an intent awaiting the gateway redirect.
func NewPaymentIntent(id, merchantUID, userID, planID string, kind IntentKind, provider, method string, baseAmount, amount int64, couponID *string, ttl time.Duration) (*PaymentIntent, error) {
	if id == "" || merchantUID == "" || userID == "" || provider == "" {
		return nil, domain.ErrInvalidArgument
	}
	if amount < 0 || baseAmount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	now := time.Now()
	return &PaymentIntent{
		ID:          id,
		MerchantUID: merchantUID,
		UserID:      userID,
		PlanID:      planID,
		CouponID:    couponID,
		Kind:        kind,
		Provider:    provider,
		Method:      method,
		BaseAmount:  baseAmount,
		Amount:      amount,
		Status:      IntentStatusAwaitingGateway,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

// Expired reports whether the intent TTL has passed at the given instant.
func (i *PaymentIntent) Expired(at time.Time) bool {
	return at.After(i.ExpiresAt)
}

// Terminal reports whether the intent can never be reconciled again.
func (i *PaymentIntent) Terminal() bool {
	switch i.Status {
	case IntentStatusReconciled, IntentStatusExpired, IntentStatusConflict:
		return true
	}
	return false
}
