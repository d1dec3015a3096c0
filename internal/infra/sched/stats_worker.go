package sched

import (
	"context"
	"time"

	"gate-admission/internal/usecase"

	"github.com/rs/zerolog"
)

// StatsWorker periodically refreshes the credential and pool gauges. It only reads.
type StatsWorker struct {
	interval  time.Duration
	statsUC   usecase.StatsUseCase
	poolStats func()
	log       *zerolog.Logger
}

// NewStatsWorker builds the worker. poolStats may be nil for stores without a pool.
func NewStatsWorker(interval time.Duration, statsUC usecase.StatsUseCase, poolStats func(), logger *zerolog.Logger) *StatsWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	statsLog := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		interval:  interval,
		statsUC:   statsUC,
		poolStats: poolStats,
		log:       &statsLog,
	}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting stats worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stats worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *StatsWorker) tick(ctx context.Context) {
	if err := w.statsUC.Refresh(ctx); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("stats worker error")
	}
	if w.poolStats != nil {
		w.poolStats()
	}
}
