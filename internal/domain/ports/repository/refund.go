package repository

import (
	"context"

	"ai-saas-billing/internal/domain/model"
)

type RefundRepository interface {
	// SaveRequest persists the inquiry and pending refund together; callers
	// wrap it in a transaction.
	SaveRequest(ctx context.Context, tx Tx, inq *model.Inquiry, ref *model.Refund) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Refund, error)
	FindByInquiryID(ctx context.Context, tx Tx, inquiryID string) (*model.Refund, error)
	FindPendingByPaymentID(ctx context.Context, tx Tx, paymentID string) (*model.Refund, error)
	Update(ctx context.Context, tx Tx, ref *model.Refund) error
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.Refund, error)
}
