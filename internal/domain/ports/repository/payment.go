package repository

import (
	"context"
	"time"

	"ai-saas-billing/internal/domain/model"
)

type PaymentRepository interface {
	// Save inserts the ledger row. Unique constraints on payment_number,
	// external_id and merchant_uid surface duplicates as
	// domain.ErrAlreadyExists; duplicate races are resolved by the database,
	// not by application locks.
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByExternalID(ctx context.Context, tx Tx, externalID string) (*model.Payment, error)
	FindByMerchantUID(ctx context.Context, tx Tx, merchantUID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
	// ExistsForSubscriptionSince reports whether a successful payment exists
	// for the subscription inside the current billing window (sweep
	// idempotence guard).
	ExistsForSubscriptionSince(ctx context.Context, tx Tx, subscriptionID string, since time.Time) (bool, error)
	SumByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
