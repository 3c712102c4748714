// File: internal/usecase/initiate_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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
var _ InitiateUseCase = (*initiateUC)(nil)

type InitiateInput struct {
	UserID       string
	PlanID       string
	CouponCode   string // optional
	Provider     string
	Method       string
	MethodChange bool // swap billing key only; no monetary effect at reconciliation
}

type InitiateResult struct {
	Intent  *model.PaymentIntent
	Request *adapter.GatewayRequest
}

type InitiateUseCase interface {
	// Initiate validates the product and coupon, computes the final price,
	// persists a time-bounded PaymentIntent and returns the outbound gateway
	// request document together with the merchant_uid.
	Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error)
}

type initiateUC struct {
	intents   repository.PaymentIntentRepository
	plans     repository.PlanRepository
	subs      repository.SubscriptionRepository
	users     repository.UserDirectory
	couponUC  CouponUseCase
	gateways  adapter.GatewayRegistry
	intentTTL time.Duration
	log       *zerolog.Logger
}

func NewInitiateUseCase(
	intents repository.PaymentIntentRepository,
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	users repository.UserDirectory,
	couponUC CouponUseCase,
	gateways adapter.GatewayRegistry,
	intentTTL time.Duration,
	logger *zerolog.Logger,
) *initiateUC {
	if intentTTL <= 0 {
		intentTTL = model.DefaultIntentTTL
	}
	l := logger.With().Str("component", "InitiateUC").Logger()
	return &initiateUC{
		intents:   intents,
		plans:     plans,
		subs:      subs,
		users:     users,
		couponUC:  couponUC,
		gateways:  gateways,
		intentTTL: intentTTL,
		log:       &l,
	}
}

func (u *initiateUC) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	defer logging.TraceDuration(u.log, "InitiateUC.Initiate")()
	if in.UserID == "" || in.PlanID == "" || in.Provider == "" {
		return nil, domain.ErrInvalidArgument
	}

	gw, err := u.gateways.Resolve(in.Provider)
	if err != nil {
		return nil, err
	}

	plan, err := u.plans.FindByID(ctx, in.PlanID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown product %q: %w", in.PlanID, domain.ErrNotFound)
		}
		return nil, err
	}

	// The intent carries an explicit kind tag; nothing downstream infers the
	// payment type from id conventions.
	kind := model.IntentKindTokenPlan
	if plan.Kind == model.PlanKindSubscription {
		kind = model.IntentKindSubscriptionPlan
	}
	if in.MethodChange {
		kind = model.IntentKindMethodChange
	}

	// Best-effort duplicate guard; races are re-validated at reconciliation.
	if kind == model.IntentKindSubscriptionPlan {
		if live, err := u.subs.FindLiveByUser(ctx, nil, in.UserID); err == nil && live != nil {
			return nil, domain.ErrActiveSubscriptionExists
		} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	baseAmount := plan.PriceKRW
	amount := baseAmount
	var couponID *string
	if in.CouponCode != "" && kind != model.IntentKindMethodChange {
		coupon, discount, err := u.couponUC.Validate(ctx, in.CouponCode, in.UserID, baseAmount)
		if err != nil {
			return nil, err
		}
		couponID = &coupon.ID
		amount = baseAmount - discount
		if amount < 0 {
			amount = 0
		}
	}
	if kind == model.IntentKindMethodChange {
		// Billing-key swap charges nothing; the gateway only verifies the card.
		amount = 0
	}

	merchantUID := fmt.Sprintf("m-%s", ulid.Make())
	intent, err := model.NewPaymentIntent(
		uuid.NewString(), merchantUID, in.UserID, plan.ID,
		kind, gw.Name(), in.Method, baseAmount, amount, couponID, u.intentTTL,
	)
	if err != nil {
		return nil, err
	}

	buyer, err := u.users.FindBuyer(ctx, in.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := u.intents.Save(ctx, nil, intent); err != nil {
		return nil, err
	}

	req, err := gw.Prepare(ctx, intent, buyer)
	if err != nil {
		// Leave the intent for the TTL sweep; nothing monetary happened.
		u.log.Warn().Err(err).Str("merchant_uid", merchantUID).Msg("gateway prepare failed")
		return nil, err
	}

	// Some providers issue their transaction handle already at prepare time
	// (KakaoPay's tid); keep it so the stale-intent sweep can re-query them.
	if ref := req.Fields["tid"]; ref != "" {
		intent.ExternalRef = &ref
		if err := u.intents.SetExternalRef(ctx, nil, intent.ID, ref); err != nil {
			u.log.Warn().Err(err).Str("merchant_uid", merchantUID).Msg("storing gateway ref failed")
		}
	}

	metrics.IncIntentCreated(string(kind))
	u.log.Info().
		Str("merchant_uid", merchantUID).
		Str("user_id", in.UserID).
		Str("plan_id", plan.ID).
		Str("kind", string(kind)).
		Int64("amount", amount).
		Msg("payment intent created")

	return &InitiateResult{Intent: intent, Request: req}, nil
}
