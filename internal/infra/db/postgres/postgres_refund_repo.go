package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/repository"
)

var _ repository.RefundRepository = (*refundRepo)(nil)

type refundRepo struct{ pool *pgxpool.Pool }

func NewRefundRepo(pool *pgxpool.Pool) *refundRepo {
	return &refundRepo{pool: pool}
}

const refundColumns = `id, inquiry_id, payment_id, user_id, amount, reason, status, admin_note, processed_at, processed_by, created_at, updated_at`

// SaveRequest writes the inquiry and its pending refund in the caller's
// transaction. The partial unique index on (payment_id) WHERE
// status='pending' rejects a second open refund for the same payment.
func (r *refundRepo) SaveRequest(ctx context.Context, tx repository.Tx, inq *model.Inquiry, ref *model.Refund) error {
	const insInquiry = `
INSERT INTO inquiries (id, user_id, title, body, created_at)
VALUES ($1,$2,$3,$4,$5);`
	if _, err := execSQL(ctx, r.pool, tx, insInquiry, inq.ID, inq.UserID, inq.Title, inq.Body, inq.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}

	const insRefund = `
INSERT INTO refunds (` + refundColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	if _, err := execSQL(ctx, r.pool, tx, insRefund,
		ref.ID, ref.InquiryID, ref.PaymentID, ref.UserID, ref.Amount, ref.Reason,
		ref.Status, ref.AdminNote, ref.ProcessedAt, ref.ProcessedBy, ref.CreatedAt, ref.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRefundExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *refundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) FindByInquiryID(ctx context.Context, tx repository.Tx, inquiryID string) (*model.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE inquiry_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, inquiryID)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) FindPendingByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Refund, error) {
	q := `SELECT ` + refundColumns + ` FROM refunds WHERE payment_id=$1 AND status='pending'`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanRefund(row)
}

func (r *refundRepo) Update(ctx context.Context, tx repository.Tx, ref *model.Refund) error {
	const q = `
UPDATE refunds SET status=$2, admin_note=$3, processed_at=$4, processed_by=$5, updated_at=$6
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q,
		ref.ID, ref.Status, ref.AdminNote, ref.ProcessedAt, ref.ProcessedBy, ref.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *refundRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.Refund, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + refundColumns + ` FROM refunds
 WHERE status='pending' ORDER BY created_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func scanRefund(row interface{ Scan(...interface{}) error }) (*model.Refund, error) {
	ref := &model.Refund{}
	if err := row.Scan(&ref.ID, &ref.InquiryID, &ref.PaymentID, &ref.UserID, &ref.Amount, &ref.Reason,
		&ref.Status, &ref.AdminNote, &ref.ProcessedAt, &ref.ProcessedBy, &ref.CreatedAt, &ref.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	return ref, nil
}
