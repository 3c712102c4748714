package adapter

import (
	"context"
	"time"

	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

// GatewayRequest is the provider-specific document the frontend hands to the
// gateway SDK. Fields mirrors each provider's field-naming quirks; the engine
// only guarantees MerchantUID and Amount.
type GatewayRequest struct {
	Provider    string            `json:"provider"`
	MerchantUID string            `json:"merchant_uid"`
	Amount      int64             `json:"amount"`
	Fields      map[string]string `json:"fields"`
}

// GatewayPaymentInfo is the canonical shape of a gateway's authoritative view
// of a transaction, re-fetched server-side and never trusted from redirects.
type GatewayPaymentInfo struct {
	ExternalID  string
	MerchantUID string
	Amount      int64
	Paid        bool
	PaidAt      time.Time
	BillingKey  string // present when the purchase issued a recurring token
	FailReason  string
}

// CancelResult reports a confirmed gateway-side cancellation.
type CancelResult struct {
	ExternalID      string
	CancelledAmount int64
	CancelledAt     time.Time
	Receipt         string
}

// ChargeResult reports the outcome of a recurring charge against a billing key.
type ChargeResult struct {
	ExternalID string
	Amount     int64
	PaidAt     time.Time
}

// PaymentGateway is the uniform contract over heterogeneous providers. Each
// implementation owns its own authentication and translates provider quirks
// into the canonical shapes above. Response classification: 5xx/timeout/
// malformed body map to a transient domain.GatewayError, explicit 4xx declines
// to a terminal one with the provider code verbatim.
type PaymentGateway interface {
	Name() string

	Prepare(ctx context.Context, intent *model.PaymentIntent, buyer *repository.Buyer) (*GatewayRequest, error)
	FetchStatus(ctx context.Context, externalID string) (*GatewayPaymentInfo, error)
	Cancel(ctx context.Context, externalID string, amount int64, reason string) (*CancelResult, error)
	ScheduleRecurring(ctx context.Context, billingKey, merchantUID string, amount int64, whenUTC time.Time) (*ChargeResult, error)
}

// GatewayRegistry resolves a provider name to its adapter; the single switch
// point for all per-provider behavior.
type GatewayRegistry interface {
	Resolve(provider string) (PaymentGateway, error)
}
