package repository

import (
	"context"
	"time"

	"ai-saas-billing/internal/domain/model"
)

type PaymentIntentRepository interface {
	Save(ctx context.Context, tx Tx, intent *model.PaymentIntent) error
	// FindByMerchantUID locks the row FOR UPDATE when called inside a tx.
	FindByMerchantUID(ctx context.Context, tx Tx, merchantUID string) (*model.PaymentIntent, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.IntentStatus) error
	// SetExternalRef stores the gateway handle issued at prepare time so the
	// stale-intent sweep can re-query the provider later.
	SetExternalRef(ctx context.Context, tx Tx, id, ref string) error
	// ExpireOlderThan marks awaiting intents past their TTL as expired and
	// returns how many rows changed.
	ExpireOlderThan(ctx context.Context, tx Tx, now time.Time, limit int) (int, error)
	// ListAwaitingOlderThan returns stale awaiting intents for the
	// reconciler sweep.
	ListAwaitingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)
}
