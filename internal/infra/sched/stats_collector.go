package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-saas-billing/internal/domain/ports/repository"
	"ai-saas-billing/internal/infra/metrics"
)

// StatsCollector refreshes the business gauges: revenue for the running
// calendar day and month, and active subscriptions per plan. Gauges are
// repopulated from the database on every tick, so a restart loses nothing.
type StatsCollector struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	interval time.Duration
	log      *zerolog.Logger
}

func NewStatsCollector(payments repository.PaymentRepository, subs repository.SubscriptionRepository, interval time.Duration, logger *zerolog.Logger) *StatsCollector {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "StatsCollector").Logger()
	return &StatsCollector{
		payments: payments,
		subs:     subs,
		interval: interval,
		log:      &l,
	}
}

func (w *StatsCollector) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting stats collector")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping stats collector")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StatsCollector) tick(ctx context.Context) {
	for _, period := range []string{"day", "month"} {
		sum, err := w.payments.SumByPeriod(ctx, nil, period)
		if err != nil {
			w.log.Error().Err(err).Str("period", period).Msg("revenue query failed")
			continue
		}
		metrics.SetPeriodRevenue(period, sum)
	}

	byPlan, err := w.subs.CountActiveByPlan(ctx, nil)
	if err != nil {
		w.log.Error().Err(err).Msg("active subscription count failed")
		return
	}
	metrics.SetActiveSubscriptions(byPlan)
}
