package model

import (
	"time"

	"ai-saas-billing/internal/domain"
)

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// Inquiry is the support ticket a refund request is attached to.
type Inquiry struct {
	ID        string // UUID
	UserID    string
	Title     string
	Body      string
	CreatedAt time.Time
}

// Refund links an inquiry to exactly one ledger payment. It is created
// pending and only ever becomes approved after a confirmed gateway cancel
// plus a successful token reversal.
type Refund struct {
	ID          string // UUID
	InquiryID   string // 1:1
	PaymentID   string
	UserID      string
	Amount      int64
	Reason      string
	Status      RefundStatus
	AdminNote   string
	ProcessedAt *time.Time
	ProcessedBy *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewRefundRequest constructs the pending inquiry/refund pair for a payment.
func NewRefundRequest(inquiryID, refundID, userID string, payment *Payment, title, body string) (*Inquiry, *Refund, error) {
	if inquiryID == "" || refundID == "" || userID == "" || payment == nil {
		return nil, nil, domain.ErrInvalidArgument
	}
	if payment.Status != PaymentStatusSuccess {
		return nil, nil, domain.ErrPaymentNotRefundable
	}
	now := time.Now()
	inq := &Inquiry{
		ID:        inquiryID,
		UserID:    userID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
	}
	ref := &Refund{
		ID:        refundID,
		InquiryID: inquiryID,
		PaymentID: payment.ID,
		UserID:    userID,
		Amount:    payment.Amount,
		Reason:    title,
		Status:    RefundStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return inq, ref, nil
}

// Approve stamps the refund approved by the given admin.
func (r *Refund) Approve(adminID string) error {
	if r.Status != RefundStatusPending {
		return domain.ErrRefundNotPending
	}
	now := time.Now()
	r.Status = RefundStatusApproved
	r.ProcessedAt = &now
	r.ProcessedBy = &adminID
	r.UpdatedAt = now
	return nil
}

// Reject stamps the refund rejected with an admin note.
func (r *Refund) Reject(adminID, note string) error {
	if r.Status != RefundStatusPending {
		return domain.ErrRefundNotPending
	}
	now := time.Now()
	r.Status = RefundStatusRejected
	r.AdminNote = note
	r.ProcessedAt = &now
	r.ProcessedBy = &adminID
	r.UpdatedAt = now
	return nil
}
