// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/infra/logging"
	"ai-saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// Reconcile is the single idempotent transition from "gateway reports
	// paid" to "ledger updated". Both the redirect callback and the async
	// webhook funnel through it; replaying a reconciled transaction returns
	// the existing payment as a no-op.
	Reconcile(ctx context.Context, provider, externalID, merchantUID string) (*model.Payment, error)
}

// internal sentinels for transaction control flow
var (
	errLostInsertRace = errors.New("lost ledger insert race")
	errLiveSubExists  = errors.New("live subscription found at reconciliation")
)

type reconcileUC struct {
	intents  repository.PaymentIntentRepository
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	ledger   repository.TokenLedger
	couponUC CouponUseCase
	gateways adapter.GatewayRegistry
	notifier adapter.Notifier
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	intents repository.PaymentIntentRepository,
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	ledger repository.TokenLedger,
	couponUC CouponUseCase,
	gateways adapter.GatewayRegistry,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		intents:  intents,
		payments: payments,
		subs:     subs,
		plans:    plans,
		ledger:   ledger,
		couponUC: couponUC,
		gateways: gateways,
		notifier: notifier,
		tm:       tm,
		log:      &l,
	}
}

func (u *reconcileUC) Reconcile(ctx context.Context, provider, externalID, merchantUID string) (*model.Payment, error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.Reconcile")()
	log := logging.With(ctx, u.log)

	// (1) Existing ledger row for this external id means a duplicate
	// callback; answering success stops gateway retry storms.
	if p, err := u.payments.FindByExternalID(ctx, nil, externalID); err == nil {
		metrics.IncDuplicateCallback()
		log.Debug().Str("external_id", externalID).Msg("duplicate callback, no-op")
		return p, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	gw, err := u.gateways.Resolve(provider)
	if err != nil {
		return nil, err
	}

	// (2) Re-fetch authoritative status. Redirect-supplied status fields are
	// never trusted, and the slow external call happens before any write
	// transaction is opened.
	info, err := gw.FetchStatus(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if info.MerchantUID != "" && info.MerchantUID != merchantUID {
		return nil, fmt.Errorf("merchant_uid mismatch: gateway=%s caller=%s: %w", info.MerchantUID, merchantUID, domain.ErrAmountMismatch)
	}

	// (3) Match the intent.
	intent, err := u.intents.FindByMerchantUID(ctx, nil, merchantUID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncReconciliationConflict("unmatched_intent")
			log.Error().Str("merchant_uid", merchantUID).Str("external_id", externalID).
				Msg("callback without matching intent, held for review")
			return nil, fmt.Errorf("unmatched intent %s: %w", merchantUID, domain.ErrNotFound)
		}
		return nil, err
	}

	switch intent.Status {
	case model.IntentStatusReconciled:
		if p, err := u.payments.FindByMerchantUID(ctx, nil, merchantUID); err == nil {
			metrics.IncDuplicateCallback()
			return p, nil
		}
		return nil, domain.ErrIntentConsumed
	case model.IntentStatusExpired, model.IntentStatusConflict:
		log.Warn().Str("merchant_uid", merchantUID).Str("status", string(intent.Status)).
			Msg("late callback against terminal intent, ignored")
		return nil, domain.ErrIntentExpired
	}

	if intent.Expired(time.Now()) {
		_ = u.intents.UpdateStatus(ctx, nil, intent.ID, model.IntentStatusExpired)
		metrics.IncIntentExpired(1)
		log.Warn().Str("merchant_uid", merchantUID).Msg("late callback against expired intent, ignored")
		return nil, domain.ErrIntentExpired
	}

	if !info.Paid {
		_ = u.intents.UpdateStatus(ctx, nil, intent.ID, model.IntentStatusFailed)
		metrics.IncPayment("failed")
		return nil, fmt.Errorf("gateway reports %q: %w", info.FailReason, domain.ErrPaymentNotPaid)
	}

	if info.Amount != intent.Amount {
		_ = u.intents.UpdateStatus(ctx, nil, intent.ID, model.IntentStatusConflict)
		metrics.IncReconciliationConflict("amount_mismatch")
		log.Error().
			Str("merchant_uid", merchantUID).
			Int64("intent_amount", intent.Amount).
			Int64("gateway_amount", info.Amount).
			Msg("amount mismatch, intent held for review")
		return nil, domain.ErrAmountMismatch
	}

	if intent.Kind == model.IntentKindMethodChange {
		return nil, u.applyMethodChange(ctx, intent, info)
	}

	plan, err := u.plans.FindByID(ctx, intent.PlanID)
	if err != nil {
		return nil, err
	}

	// (4) All four effects in one transaction: ledger row, product effect,
	// coupon consumption, intent expiry. Partial application is the primary
	// correctness hazard.
	var result *model.Payment
	txErr := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.intents.FindByMerchantUID(ctx, tx, merchantUID)
		if err != nil {
			return err
		}
		switch cur.Status {
		case model.IntentStatusAwaitingGateway, model.IntentStatusCreated:
			// proceed
		case model.IntentStatusReconciled:
			return errLostInsertRace
		default:
			return domain.ErrIntentExpired
		}

		paidAt := info.PaidAt
		p, err := model.NewPayment(
			uuid.NewString(), fmt.Sprintf("pay-%s", ulid.Make()),
			info.ExternalID, merchantUID, cur.UserID, cur.PlanID, cur.Provider,
			cur.Amount, plan.TokenGrant, model.PaymentStatusSuccess, &paidAt,
		)
		if err != nil {
			return err
		}
		p.CouponID = cur.CouponID

		switch cur.Kind {
		case model.IntentKindTokenPlan:
			if err := u.ledger.Credit(ctx, tx, cur.UserID, plan.TokenGrant); err != nil {
				return err
			}
		case model.IntentKindSubscriptionPlan:
			if live, err := u.subs.FindLiveByUser(ctx, tx, cur.UserID); err == nil && live != nil {
				return errLiveSubExists
			} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if info.BillingKey == "" {
				return domain.ErrMissingBillingKey
			}
			sub, err := model.NewSubscription(uuid.NewString(), cur.UserID, plan, cur.Provider, info.BillingKey)
			if err != nil {
				return err
			}
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				if errors.Is(err, domain.ErrAlreadyExists) {
					return errLiveSubExists
				}
				return err
			}
			p.SubscriptionID = &sub.ID
			if err := u.ledger.Credit(ctx, tx, cur.UserID, plan.TokenGrant); err != nil {
				return err
			}
		}

		if err := u.payments.Save(ctx, tx, p); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return errLostInsertRace
			}
			return err
		}

		if cur.CouponID != nil {
			if err := u.couponUC.Consume(ctx, tx, *cur.CouponID, cur.UserID, &p.ID); err != nil {
				return err
			}
		}

		if err := u.intents.UpdateStatus(ctx, tx, cur.ID, model.IntentStatusReconciled); err != nil {
			return err
		}
		result = p
		return nil
	})

	switch {
	case txErr == nil:
		// fallthrough to post-commit work below
	case errors.Is(txErr, errLostInsertRace):
		// The other caller (redirect vs webhook) won; its row is the truth.
		if p, err := u.payments.FindByExternalID(ctx, nil, externalID); err == nil {
			metrics.IncDuplicateCallback()
			return p, nil
		}
		if p, err := u.payments.FindByMerchantUID(ctx, nil, merchantUID); err == nil {
			metrics.IncDuplicateCallback()
			return p, nil
		}
		return nil, txErr
	case errors.Is(txErr, errLiveSubExists):
		// Paid money against a user who raced into a second subscription:
		// never auto-resolved, held for manual review.
		_ = u.intents.UpdateStatus(ctx, nil, intent.ID, model.IntentStatusConflict)
		metrics.IncReconciliationConflict("duplicate_subscription")
		log.Error().Str("merchant_uid", merchantUID).Str("user_id", intent.UserID).
			Msg("paid intent conflicts with live subscription, held for review")
		return nil, domain.ErrActiveSubscriptionExists
	case errors.Is(txErr, domain.ErrMissingBillingKey):
		_ = u.intents.UpdateStatus(ctx, nil, intent.ID, model.IntentStatusConflict)
		metrics.IncReconciliationConflict("missing_billing_key")
		return nil, txErr
	default:
		return nil, txErr
	}

	metrics.IncPayment("success")
	metrics.AddRevenue("KRW", result.Amount)
	log.Info().
		Str("merchant_uid", merchantUID).
		Str("external_id", externalID).
		Str("payment_number", result.PaymentNumber).
		Int64("amount", result.Amount).
		Msg("payment reconciled")

	u.notify(ctx, result.UserID, adapter.NotifyPaymentCompleted, map[string]string{
		"payment_number": result.PaymentNumber,
		"amount":         fmt.Sprintf("%d", result.Amount),
	})
	return result, nil
}

// applyMethodChange swaps the stored billing key; acknowledged without any
// monetary effect.
func (u *reconcileUC) applyMethodChange(ctx context.Context, intent *model.PaymentIntent, info *adapter.GatewayPaymentInfo) error {
	if info.BillingKey == "" {
		_ = u.intents.UpdateStatus(ctx, nil, intent.ID, model.IntentStatusFailed)
		return domain.ErrMissingBillingKey
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.intents.FindByMerchantUID(ctx, tx, intent.MerchantUID)
		if err != nil {
			return err
		}
		if cur.Status == model.IntentStatusReconciled {
			return nil
		}
		sub, err := u.subs.FindLiveByUser(ctx, tx, cur.UserID)
		if err != nil {
			return err
		}
		if err := u.subs.UpdateBillingKey(ctx, tx, sub.ID, info.BillingKey); err != nil {
			return err
		}
		u.log.Info().Str("user_id", cur.UserID).Str("subscription_id", sub.ID).
			Msg("billing key updated")
		return u.intents.UpdateStatus(ctx, tx, cur.ID, model.IntentStatusReconciled)
	})
}

func (u *reconcileUC) notify(ctx context.Context, userID string, kind adapter.NotificationKind, payload map[string]string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, userID, kind, payload); err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).
			Msg("notification dispatch failed")
	}
}
