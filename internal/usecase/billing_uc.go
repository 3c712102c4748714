// File: internal/usecase/billing_uc.go
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
	"github.com/sethvargo/go-retry"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/model"
	"ai-saas-billing/internal/domain/ports/adapter"
	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/infra/logging"
	"ai-saas-billing/internal/infra/metrics"
)

// Compile-time check
var _ BillingUseCase = (*billingUC)(nil)

// BillingPolicy holds the sweep's tunables; thresholds are configuration, not
// code.
type BillingPolicy struct {
	PastDueThreshold int           // consecutive failures before past_due
	AutoCancelAfter  time.Duration // how long a subscription may stay past_due
	MaxAttempts      uint64        // per-charge attempts for transient errors
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	BatchSize        int
}

func (p BillingPolicy) withDefaults() BillingPolicy {
	if p.PastDueThreshold <= 0 {
		p.PastDueThreshold = 3
	}
	if p.AutoCancelAfter <= 0 {
		p.AutoCancelAfter = 14 * 24 * time.Hour
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = 2 * time.Second
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 200
	}
	return p
}

// SweepReport summarizes one billing sweep; failures are per-subscription and
// never abort the sweep.
type SweepReport struct {
	Due       int
	Charged   int
	Skipped   int // idempotence guard hits
	Failed    int
	PastDue   int
	Cancelled int
}

type BillingUseCase interface {
	// RunSweep charges every due active subscription independently and
	// auto-cancels stale past_due ones.
	RunSweep(ctx context.Context, asOf time.Time) (SweepReport, error)
	// ChargeSubscription processes a single subscription; exported so a
	// support tool can retry one subscription by hand.
	ChargeSubscription(ctx context.Context, sub *model.Subscription, asOf time.Time) error
}

type billingUC struct {
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	plans    repository.PlanRepository
	ledger   repository.TokenLedger
	gateways adapter.GatewayRegistry
	notifier adapter.Notifier
	tm       repository.TransactionManager
	policy   BillingPolicy
	log      *zerolog.Logger
}

func NewBillingUseCase(
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	plans repository.PlanRepository,
	ledger repository.TokenLedger,
	gateways adapter.GatewayRegistry,
	notifier adapter.Notifier,
	tm repository.TransactionManager,
	policy BillingPolicy,
	logger *zerolog.Logger,
) *billingUC {
	l := logger.With().Str("component", "BillingUC").Logger()
	return &billingUC{
		subs:     subs,
		payments: payments,
		plans:    plans,
		ledger:   ledger,
		gateways: gateways,
		notifier: notifier,
		tm:       tm,
		policy:   policy.withDefaults(),
		log:      &l,
	}
}

func (u *billingUC) RunSweep(ctx context.Context, asOf time.Time) (SweepReport, error) {
	defer logging.TraceDuration(u.log, "BillingUC.RunSweep")()
	var report SweepReport

	due, err := u.subs.ListDue(ctx, nil, asOf, u.policy.BatchSize)
	if err != nil {
		return report, err
	}
	report.Due = len(due)

	for _, sub := range due {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		err := u.ChargeSubscription(ctx, sub, asOf)
		switch {
		case err == nil:
			report.Charged++
		case errors.Is(err, errWindowAlreadyCharged):
			report.Skipped++
		default:
			report.Failed++
			if sub.Status == model.SubscriptionStatusPastDue {
				report.PastDue++
			}
			// One gateway outage must not abort the whole sweep.
			u.log.Warn().Err(err).Str("subscription_id", sub.ID).Msg("recurring charge failed")
		}
	}

	cancelled, err := u.cancelStalePastDue(ctx, asOf)
	if err != nil {
		u.log.Error().Err(err).Msg("past_due auto-cancel pass failed")
	}
	report.Cancelled = cancelled

	metrics.ObserveSweep(report.Charged, report.Skipped, report.Failed, report.Cancelled)
	u.log.Info().
		Int("due", report.Due).
		Int("charged", report.Charged).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("cancelled", report.Cancelled).
		Msg("billing sweep finished")
	return report, nil
}

var errWindowAlreadyCharged = errors.New("billing window already charged")

func (u *billingUC) ChargeSubscription(ctx context.Context, sub *model.Subscription, asOf time.Time) error {
	if !sub.Due(asOf) {
		return errWindowAlreadyCharged
	}
	if sub.BillingKey == "" {
		return domain.ErrMissingBillingKey
	}

	// Idempotence guard: a successful payment inside the current window means
	// a previous (possibly crashed) sweep already charged it.
	charged, err := u.payments.ExistsForSubscriptionSince(ctx, nil, sub.ID, sub.NextBillingDate)
	if err != nil {
		return err
	}
	if charged {
		return errWindowAlreadyCharged
	}

	plan, err := u.plans.FindByID(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	gw, err := u.gateways.Resolve(sub.Provider)
	if err != nil {
		return err
	}

	merchantUID := fmt.Sprintf("sub-%s", ulid.Make())

	// Transient gateway errors retry with bounded exponential backoff; a
	// terminal decline stops immediately and counts as one sweep failure.
	var result *adapter.ChargeResult
	backoff := retry.WithMaxRetries(u.policy.MaxAttempts-1,
		retry.WithCappedDuration(u.policy.MaxBackoff, retry.NewExponential(u.policy.BaseBackoff)))
	chargeErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := gw.ScheduleRecurring(ctx, sub.BillingKey, merchantUID, plan.PriceKRW, asOf.UTC())
		if err != nil {
			if domain.IsTransientGatewayError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		result = r
		return nil
	})

	if chargeErr != nil {
		return u.recordChargeFailure(ctx, sub, chargeErr)
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		paidAt := result.PaidAt
		p, err := model.NewPayment(
			uuid.NewString(), fmt.Sprintf("pay-%s", ulid.Make()),
			result.ExternalID, merchantUID, sub.UserID, sub.PlanID, gw.Name(),
			plan.PriceKRW, plan.TokenGrant, model.PaymentStatusSuccess, &paidAt,
		)
		if err != nil {
			return err
		}
		p.SubscriptionID = &sub.ID
		if err := u.payments.Save(ctx, tx, p); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				// Parallel sweep charged first; treat as skipped.
				return errWindowAlreadyCharged
			}
			return err
		}
		if err := u.ledger.Credit(ctx, tx, sub.UserID, plan.TokenGrant); err != nil {
			return err
		}
		sub.AdvanceCycle(plan)
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return err
	}

	metrics.IncPayment("success")
	metrics.AddRevenue("KRW", plan.PriceKRW)
	u.notify(ctx, sub.UserID, adapter.NotifySubscriptionRenewed, map[string]string{
		"subscription_id": sub.ID,
		"next_billing":    sub.NextBillingDate.Format(time.RFC3339),
	})
	return nil
}

// recordChargeFailure increments the consecutive failure counter without
// advancing the billing date and transitions to past_due at the policy
// threshold.
func (u *billingUC) recordChargeFailure(ctx context.Context, sub *model.Subscription, cause error) error {
	wasActive := sub.Status == model.SubscriptionStatusActive
	sub.RecordFailure(u.policy.PastDueThreshold)
	if err := u.subs.Save(ctx, nil, sub); err != nil {
		return errors.Join(cause, err)
	}
	if wasActive && sub.Status == model.SubscriptionStatusPastDue {
		metrics.IncSubscriptionPastDue()
		u.notify(ctx, sub.UserID, adapter.NotifySubscriptionPastDue, map[string]string{
			"subscription_id": sub.ID,
		})
	}
	return cause
}

func (u *billingUC) cancelStalePastDue(ctx context.Context, asOf time.Time) (int, error) {
	cutoff := asOf.Add(-u.policy.AutoCancelAfter)
	stale, err := u.subs.ListPastDueOlderThan(ctx, nil, cutoff, u.policy.BatchSize)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sub := range stale {
		sub.Cancel()
		if err := u.subs.Save(ctx, nil, sub); err != nil {
			u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("auto-cancel save failed")
			continue
		}
		n++
		u.notify(ctx, sub.UserID, adapter.NotifySubscriptionEnded, map[string]string{
			"subscription_id": sub.ID,
		})
	}
	return n, nil
}

func (u *billingUC) notify(ctx context.Context, userID string, kind adapter.NotificationKind, payload map[string]string) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.Notify(ctx, userID, kind, payload); err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).
			Msg("notification dispatch failed")
	}
}
