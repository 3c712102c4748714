package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain"
	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/usecase"
)

// StaleIntentReconciler periodically scans for awaiting intents that never saw
// a callback and tries to finalize them through the normal reconcile path.
// This covers lost webhooks and processes that crashed mid-reconcile. Only
// intents with a stored gateway ref can be re-queried; the rest run out their
// TTL and expire.
type StaleIntentReconciler struct {
	uc         usecase.ReconcileUseCase
	intents    repository.PaymentIntentRepository
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	log        *zerolog.Logger
}

func NewStaleIntentReconciler(uc usecase.ReconcileUseCase, intents repository.PaymentIntentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *StaleIntentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "StaleIntentReconciler").Logger()
	return &StaleIntentReconciler{
		uc:         uc,
		intents:    intents,
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  200,
		log:        &l,
	}
}

func (w *StaleIntentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("starting stale intent reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping stale intent reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StaleIntentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.intents.ListAwaitingOlderThan(ctx, nil, cutoff, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale intents error")
		return
	}
	for _, in := range stale {
		if in.ExternalRef == nil || *in.ExternalRef == "" {
			continue
		}
		p, err := w.uc.Reconcile(ctx, in.Provider, *in.ExternalRef, in.MerchantUID)
		if err != nil {
			// Unpaid and expired intents are expected here and not worth noise.
			if errors.Is(err, domain.ErrPaymentNotPaid) || errors.Is(err, domain.ErrIntentExpired) {
				continue
			}
			w.log.Warn().Err(err).Str("merchant_uid", in.MerchantUID).Msg("stale intent reconcile failed")
			continue
		}
		if p != nil {
			w.log.Info().Str("merchant_uid", in.MerchantUID).Str("payment_number", p.PaymentNumber).
				Msg("stale intent reconciled")
		}
	}
}
