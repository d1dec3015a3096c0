//go:build !integration

package worker

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestPool(t *testing.T) {
	logger := zerolog.New(io.Discard)

	t.Run("should run submitted tasks and drain the queue on stop", func(t *testing.T) {
		p := NewPool(2, &logger)
		p.Start(context.Background())

		var ran atomic.Int32
		for i := 0; i < 5; i++ {
			if err := p.Submit(func(ctx context.Context) error {
				ran.Add(1)
				return nil
			}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		p.Stop()
		if got := ran.Load(); got != 5 {
			t.Fatalf("expected 5 tasks to run, got %d", got)
		}
	})

	t.Run("should drop tasks when the queue is full", func(t *testing.T) {
		p := NewPool(1, &logger) // queue of 4, not started
		noop := func(ctx context.Context) error { return nil }
		for i := 0; i < 4; i++ {
			if err := p.Submit(noop); err != nil {
				t.Fatalf("submit %d: %v", i, err)
			}
		}
		if err := p.Submit(noop); !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	})

	t.Run("should survive a panicking task", func(t *testing.T) {
		p := NewPool(1, &logger)
		p.Start(context.Background())
		var ran atomic.Bool
		_ = p.Submit(func(ctx context.Context) error { panic("boom") })
		_ = p.Submit(func(ctx context.Context) error { ran.Store(true); return nil })
		p.Stop()
		if !ran.Load() {
			t.Fatal("expected the pool to keep working after a panic")
		}
	})
}
