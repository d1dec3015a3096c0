package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*Worker)(nil)

type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx      context.Context
	fn       TxFn
	deadline time.Time
	ch       chan error
}

// Worker runs transactions one at a time on a single goroutine. A job that has
// not started within startWithin fails with domain.ErrLockTimeout, which is the
// SQLite equivalent of a lock wait timing out.
type Worker struct {
	db          *sql.DB
	jobs        chan job
	done        chan struct{}
	startWithin time.Duration
}

func NewWorker(db *sql.DB, startWithin time.Duration) *Worker {
	if startWithin <= 0 {
		startWithin = 4 * time.Second
	}
	w := &Worker{
		db:          db,
		jobs:        make(chan job, 256),
		done:        make(chan struct{}),
		startWithin: startWithin,
	}
	go w.loop()
	return w
}

// Close stops the loop after the queued jobs ran. No Do call may be in flight.
func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

// WithTx adapts Do to repository.TransactionManager.
func (w *Worker) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error { return fn(ctx, tx) })
}

func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, deadline: time.Now().Add(w.startWithin), ch: ch}

	timer := time.NewTimer(w.startWithin)
	defer timer.Stop()
	select {
	case w.jobs <- j:
	case <-timer.C:
		return domain.ErrLockTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once queued the loop always answers, so the caller never sees an error
	// for a transaction that actually committed.
	return <-ch
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		if err := j.ctx.Err(); err != nil {
			j.ch <- err
			continue
		}
		if time.Now().After(j.deadline) {
			j.ch <- domain.ErrLockTimeout
			continue
		}
		j.ch <- w.run(j)
	}
}

func (w *Worker) run(j job) (err error) {
	tx, err := w.db.BeginTx(j.ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("%w: panic in transaction: %v", domain.ErrOperationFailed, r)
		}
	}()

	if err := j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return mapError(tx.Commit())
}
