package repository

import (
	"context"
	"time"

	"ai-saas-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	// Save upserts. The partial unique index on (user_id) WHERE status IN
	// ('active','past_due') rejects a second live subscription per user with
	// domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindLiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// ListDue returns active subscriptions with next_billing_date <= asOf.
	ListDue(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Subscription, error)
	// ListPastDueOlderThan returns past_due subscriptions whose last update is
	// older than the cutoff, candidates for auto-cancel.
	ListPastDueOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Subscription, error)
	UpdateBillingKey(ctx context.Context, tx Tx, id, billingKey string) error
	CountActiveByPlan(ctx context.Context, tx Tx) (map[string]int, error)
}
