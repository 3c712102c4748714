package model

import (
	"time"

	"ai-saas-billing/internal/domain"
)

type PlanKind string

const (
	PlanKindToken        PlanKind = "token"        // one-off token pack
	PlanKindSubscription PlanKind = "subscription" // recurring billing
)

// Plan is a purchasable product from the read-only catalog: either a one-off
// token pack or a recurring subscription plan.
type Plan struct {
	ID               string // UUID
	Name             string
	Kind             PlanKind
	PriceKRW         int64 // integer minor units, no floats
	TokenGrant       int64 // tokens credited per purchase / per cycle
	BillingCycleDays int   // 0 for token packs
	CreatedAt        time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, kind PlanKind, priceKRW, tokenGrant int64, billingCycleDays int) (*Plan, error) {
	if id == "" || name == "" || priceKRW <= 0 || tokenGrant < 0 {
		return nil, domain.ErrInvalidArgument
	}
	if kind == PlanKindSubscription && billingCycleDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:               id,
		Name:             name,
		Kind:             kind,
		PriceKRW:         priceKRW,
		TokenGrant:       tokenGrant,
		BillingCycleDays: billingCycleDays,
		CreatedAt:        time.Now(),
	}, nil
}
