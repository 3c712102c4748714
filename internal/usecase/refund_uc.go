// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/infra/logging"
	"ai-saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ RefundUseCase = (*refundUC)(nil)

type RefundUseCase interface {
	// Request creates the linked Inquiry + Refund(pending) pair in one
	// transaction and returns both.
	Request(ctx context.Context, userID, paymentID, title, body string) (*model.Inquiry, *model.Refund, error)
	// Approve drives the gateway-side cancel and, only after a confirmed
	// cancel response, reverses the token credit and marks the refund
	// approved. A failed gateway cancel leaves the refund pending for manual
	// retry.
	Approve(ctx context.Context, adminID, refundID string) (*model.Refund, error)
	Reject(ctx context.Context, adminID, refundID, note string) (*model.Refund, error)
	ListPending(ctx context.Context, limit int) ([]*model.Refund, error)
}

type refundUC struct {
	refunds  repository.RefundRepository
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	ledger   repository.TokenLedger
	gateways adapter.GatewayRegistry
	notifier adapter.Notifier
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewRefundUseCase(
	refunds repository.RefundRepository,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	ledger repository.TokenLedger,
	gateways adapter.GatewayRegistry,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *refundUC {
	l := logger.With().Str("component", "RefundUC").Logger()
	return &refundUC{
		refunds:  refunds,
		payments: payments,
		subs:     subs,
		ledger:   ledger,
		gateways: gateways,
		notifier: notifier,
		tm:       tm,
		log:      &l,
	}
}

func (u *refundUC) Request(ctx context.Context, userID, paymentID, title, body string) (*model.Inquiry, *model.Refund, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Request")()
	payment, err := u.payments.FindByID(ctx, nil, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if payment.UserID != userID {
		return nil, nil, domain.ErrNotFound
	}
	if existing, err := u.refunds.FindPendingByPaymentID(ctx, nil, paymentID); err == nil && existing != nil {
		return nil, nil, domain.ErrRefundExists
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	inq, ref, err := model.NewRefundRequest(uuid.NewString(), uuid.NewString(), userID, payment, title, body)
	if err != nil {
		return nil, nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.refunds.SaveRequest(ctx, tx, inq, ref)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.IncRefund("requested")
	u.log.Info().Str("refund_id", ref.ID).Str("payment_id", paymentID).Str("user_id", userID).
		Msg("refund requested")
	return inq, ref, nil
}

func (u *refundUC) Approve(ctx context.Context, adminID, refundID string) (*model.Refund, error) {
	defer logging.TraceDuration(u.log, "RefundUC.Approve")()
	log := logging.With(ctx, u.log)

	ref, err := u.refunds.FindByID(ctx, nil, refundID)
	if err != nil {
		return nil, err
	}
	if ref.Status != model.RefundStatusPending {
		return nil, domain.ErrRefundNotPending
	}
	payment, err := u.payments.FindByID(ctx, nil, ref.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != model.PaymentStatusSuccess {
		return nil, domain.ErrPaymentNotRefundable
	}

	// Balance pre-check before touching the gateway: reversing the credit
	// must not drive the user's balance negative, and we do not want a
	// gateway-side cancel we cannot book.
	balance, err := u.ledger.Balance(ctx, nil, ref.UserID)
	if err != nil {
		return nil, err
	}
	if balance < payment.TokensPurchased {
		log.Error().
			Str("refund_id", refundID).
			Int64("balance", balance).
			Int64("needed", payment.TokensPurchased).
			Msg("refund blocked: token balance insufficient to reverse")
		return nil, domain.ErrInsufficientTokens
	}

	gw, err := u.gateways.Resolve(payment.Provider)
	if err != nil {
		return nil, err
	}

	// Gateway cancel outside the write transaction; a slow or failed external
	// call never holds a database transaction open. Failure leaves the refund
	// pending for manual retry; approved is only ever written after a
	// confirmed cancel response.
	cancel, err := gw.Cancel(ctx, payment.ExternalID, payment.Amount, ref.Reason)
	if err != nil {
		metrics.IncRefund("cancel_failed")
		log.Error().Err(err).Str("refund_id", refundID).Msg("gateway cancel failed, refund stays pending")
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Conditional debit is the hard guard; the pre-check above only
		// avoids pointless gateway cancels.
		if err := u.ledger.Debit(ctx, tx, ref.UserID, payment.TokensPurchased); err != nil {
			return err
		}
		if err := u.payments.UpdateStatus(ctx, tx, payment.ID, model.PaymentStatusRefunded); err != nil {
			return err
		}
		if err := ref.Approve(adminID); err != nil {
			return err
		}
		if err := u.refunds.Update(ctx, tx, ref); err != nil {
			return err
		}
		if payment.SubscriptionID != nil {
			sub, err := u.subs.FindByID(ctx, tx, *payment.SubscriptionID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil
				}
				return err
			}
			if sub.Status != model.SubscriptionStatusCancelled {
				sub.Cancel()
				if err := u.subs.Save(ctx, tx, sub); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientTokens) {
			log.Error().Str("refund_id", refundID).Str("cancel_receipt", cancel.Receipt).
				Msg("gateway cancelled but token reversal failed; refund pending, needs manual review")
		}
		return nil, err
	}

	metrics.IncRefund("approved")
	log.Info().
		Str("refund_id", refundID).
		Str("admin_id", adminID).
		Int64("amount", cancel.CancelledAmount).
		Msg("refund approved")

	u.notify(ctx, ref.UserID, adapter.NotifyRefundApproved, map[string]string{
		"refund_id": ref.ID,
		"amount":    fmt.Sprintf("%d", ref.Amount),
	})
	return ref, nil
}

func (u *refundUC) Reject(ctx context.Context, adminID, refundID, note string) (*model.Refund, error) {
	ref, err := u.refunds.FindByID(ctx, nil, refundID)
	if err != nil {
		return nil, err
	}
	if err := ref.Reject(adminID, note); err != nil {
		return nil, err
	}
	if err := u.refunds.Update(ctx, nil, ref); err != nil {
		return nil, err
	}
	metrics.IncRefund("rejected")
	u.notify(ctx, ref.UserID, adapter.NotifyRefundRejected, map[string]string{
		"refund_id": ref.ID,
		"note":      note,
	})
	return ref, nil
}

func (u *refundUC) ListPending(ctx context.Context, limit int) ([]*model.Refund, error) {
	return u.refunds.ListPending(ctx, nil, limit)
}

func (u *refundUC) notify(ctx context.Context, userID string, kind adapter.NotificationKind, payload map[string]string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, userID, kind, payload); err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).
			Msg("notification dispatch failed")
	}
}
