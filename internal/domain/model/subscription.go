package model

import (
	"time"

	"ai-saas-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is a user's recurring billing agreement. At most one row per
// user may be in a non-cancelled status (partial unique index in the schema).
type Subscription struct {
	ID              string // UUID
	UserID          string
	PlanID          string
	Provider        string // gateway that issued the billing key
	BillingKey      string // gateway-issued recurring-charge token
	Status          SubscriptionStatus
	NextBillingDate time.Time
	FailureCount    int // consecutive recurring-charge failures
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
}

// NewSubscription activates a subscription starting now; the first paid cycle
// is already covered by the reconciled payment, so the next charge is one
// cycle out.
func NewSubscription(id, userID string, plan *Plan, provider, billingKey string) (*Subscription, error) {
	if id == "" || userID == "" || plan.IsZero() || plan.Kind != PlanKindSubscription {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:              id,
		UserID:          userID,
		PlanID:          plan.ID,
		Provider:        provider,
		BillingKey:      billingKey,
		Status:          SubscriptionStatusActive,
		NextBillingDate: now.AddDate(0, 0, plan.BillingCycleDays),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AdvanceCycle moves the billing date forward by exactly one plan cycle and
// clears the failure counter. Called only after a successful recurring charge.
func (s *Subscription) AdvanceCycle(plan *Plan) {
	s.NextBillingDate = s.NextBillingDate.AddDate(0, 0, plan.BillingCycleDays)
	s.FailureCount = 0
	s.Status = SubscriptionStatusActive
	s.UpdatedAt = time.Now()
}

// RecordFailure increments the consecutive failure counter without touching
// the billing date; once the threshold is reached the subscription goes
// past_due.
func (s *Subscription) RecordFailure(pastDueThreshold int) {
	s.FailureCount++
	if pastDueThreshold > 0 && s.FailureCount >= pastDueThreshold {
		s.Status = SubscriptionStatusPastDue
	}
	s.UpdatedAt = time.Now()
}

// Cancel marks the subscription cancelled.
func (s *Subscription) Cancel() {
	now := time.Now()
	s.Status = SubscriptionStatusCancelled
	s.CancelledAt = &now
	s.UpdatedAt = now
}

// Due reports whether the subscription should be charged at the given instant.
func (s *Subscription) Due(at time.Time) bool {
	return s.Status == SubscriptionStatusActive && !s.NextBillingDate.After(at)
}
