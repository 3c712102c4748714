package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-saas-billing/internal/infra/redis"
	"ai-saas-billing/internal/usecase"
)

const sweepLockKey = "billing:sweep:lock"

// BillingSweeper runs the recurring-charge sweep on a fixed interval. A redis
// lock keeps concurrent instances from double-charging the same batch; the
// per-payment idempotence guard in the use case remains the hard backstop.
type BillingSweeper struct {
	billingUC usecase.BillingUseCase
	locker    redis.Locker
	interval  time.Duration
	lockTTL   time.Duration
	log       *zerolog.Logger
}

func NewBillingSweeper(billingUC usecase.BillingUseCase, locker redis.Locker, interval, lockTTL time.Duration, logger *zerolog.Logger) *BillingSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	l := logger.With().Str("component", "BillingSweeper").Logger()
	return &BillingSweeper{
		billingUC: billingUC,
		locker:    locker,
		interval:  interval,
		lockTTL:   lockTTL,
		log:       &l,
	}
}

func (w *BillingSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting billing sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping billing sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *BillingSweeper) tick(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, sweepLockKey, w.lockTTL)
	if err != nil {
		w.log.Debug().Err(err).Msg("sweep lock held elsewhere, skipping")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, sweepLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("sweep lock release failed")
		}
	}()

	report, err := w.billingUC.RunSweep(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("billing sweep error")
		return
	}
	w.log.Info().
		Int("due", report.Due).
		Int("charged", report.Charged).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("past_due", report.PastDue).
		Int("cancelled", report.Cancelled).
		Msg("billing sweep finished")
}
