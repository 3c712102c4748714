package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/infra/metrics"
)

// IntentExpiryWorker flips intents past their TTL to expired so that late
// gateway notifications for them are ignored instead of reconciled.
type IntentExpiryWorker struct {
	intents   repository.PaymentIntentRepository
	interval  time.Duration
	batchSize int
	log       *zerolog.Logger
}

func NewIntentExpiryWorker(intents repository.PaymentIntentRepository, interval time.Duration, batchSize int, logger *zerolog.Logger) *IntentExpiryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	l := logger.With().Str("component", "IntentExpiryWorker").Logger()
	return &IntentExpiryWorker{intents: intents, interval: interval, batchSize: batchSize, log: &l}
}

func (w *IntentExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("starting intent expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping intent expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.intents.ExpireOlderThan(ctx, nil, time.Now(), w.batchSize)
			if err != nil {
				w.log.Error().Err(err).Msg("intent expiry error")
				continue
			}
			if n > 0 {
				metrics.IncIntentExpired(n)
				w.log.Info().Int("count", n).Msg("intents expired")
			}
		}
	}
}
