package repository

import (
	"context"

	"ai-saas-billing/internal/domain/model"
)

// PlanRepository is the read-only plan/price catalog owned by another
// subsystem; the engine never writes to it.
type PlanRepository interface {
	FindByID(ctx context.Context, id string) (*model.Plan, error)
	ListAll(ctx context.Context) ([]*model.Plan, error)
}
