//go:build !integration

package sched

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingStats struct {
	refreshes atomic.Int32
	err       error
}

func (c *countingStats) ActiveCredentials(context.Context) (int, error) { return 0, c.err }

func (c *countingStats) Refresh(context.Context) error {
	c.refreshes.Add(1)
	return c.err
}

func TestStatsWorker(t *testing.T) {
	logger := zerolog.New(io.Discard)

	t.Run("should refresh on start and on every tick until cancelled", func(t *testing.T) {
		stats := &countingStats{}
		var pools atomic.Int32
		w := NewStatsWorker(10*time.Millisecond, stats, func() { pools.Add(1) }, &logger)

		ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
		defer cancel()
		if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected DeadlineExceeded, got %v", err)
		}
		if stats.refreshes.Load() < 3 {
			t.Fatalf("expected several refreshes, got %d", stats.refreshes.Load())
		}
		if pools.Load() != stats.refreshes.Load() {
			t.Fatalf("expected pool stats on every tick, got %d vs %d", pools.Load(), stats.refreshes.Load())
		}
	})

	t.Run("should keep running when a refresh fails", func(t *testing.T) {
		stats := &countingStats{err: errors.New("db down")}
		w := NewStatsWorker(5*time.Millisecond, stats, nil, &logger)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_ = w.Run(ctx)
		if stats.refreshes.Load() < 2 {
			t.Fatalf("expected retries after failure, got %d", stats.refreshes.Load())
		}
	})
}
