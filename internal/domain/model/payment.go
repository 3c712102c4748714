package model

import (
	"time"

	"ai-saas-billing/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment is the durable ledger row recording a real monetary outcome.
// A success row is immutable except for the terminal transition to refunded.
// Uniqueness of (payment_number, external_id, merchant_uid) is enforced by
// database constraints; duplicate reconciliation attempts resolve to the
// existing row.
type Payment struct {
	ID              string // UUID
	PaymentNumber   string // ULID, unique, human-referenceable
	ExternalID      string // gateway transaction id, unique
	MerchantUID     string // unique, links back to the intent
	UserID          string
	PlanID          string
	SubscriptionID  *string
	CouponID        *string
	Provider        string
	Amount          int64
	TokensPurchased int64
	Status          PaymentStatus
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CanTransition reports whether moving to next is a legal ledger transition.
// Only failed->success (late reconciliation) and success->refunded are allowed.
func (p *Payment) CanTransition(next PaymentStatus) bool {
	switch {
	case p.Status == PaymentStatusFailed && next == PaymentStatusSuccess:
		return true
	case p.Status == PaymentStatusSuccess && next == PaymentStatusRefunded:
		return true
	}
	return false
}

// NewPayment constructs a ledger row from a reconciled intent outcome.
func NewPayment(id, paymentNumber, externalID, merchantUID, userID, planID, provider string, amount, tokens int64, status PaymentStatus, paidAt *time.Time) (*Payment, error) {
	if id == "" || paymentNumber == "" || merchantUID == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if status == PaymentStatusSuccess && externalID == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:              id,
		PaymentNumber:   paymentNumber,
		ExternalID:      externalID,
		MerchantUID:     merchantUID,
		UserID:          userID,
		PlanID:          planID,
		Provider:        provider,
		Amount:          amount,
		TokensPurchased: tokens,
		Status:          status,
		PaidAt:          paidAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
