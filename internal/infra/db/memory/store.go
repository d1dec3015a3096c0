// Package memory is an in-process credential store for tests and single-process dev
// runs. It honours the same contract as the SQL stores: per-key exclusive locks
// with a bounded wait, all-or-nothing transactions and commit-time uniqueness.
package memory

import (
	"context"
	"sync"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	creds    map[string]*model.Credential
	byQR     map[string]string
	byManual map[string]string
	byPair   map[string][]string

	events        []*model.CheckEvent
	eventsByCred  map[string][]*model.CheckEvent
	actions       []*model.ActionLog
	actionsByCred map[string][]*model.ActionLog
	seq           int64

	failNext error

	locks       *lockTable
	lockTimeout time.Duration
}

func NewStore(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 4 * time.Second
	}
	return &Store{
		creds:         make(map[string]*model.Credential),
		byQR:          make(map[string]string),
		byManual:      make(map[string]string),
		byPair:        make(map[string][]string),
		eventsByCred:  make(map[string][]*model.CheckEvent),
		actionsByCred: make(map[string][]*model.ActionLog),
		locks:         newLockTable(),
		lockTimeout:   lockTimeout,
	}
}

// tx stages every write until commit. Reads through a tx see its own writes.
type tx struct {
	held     map[string]bool
	creds    map[string]*model.Credential
	inserted []string
	events   []*model.CheckEvent
	actions  []*model.ActionLog
}

func newTx() *tx {
	return &tx{held: make(map[string]bool), creds: make(map[string]*model.Credential)}
}

// WithTx runs fn in a staged transaction and commits its writes atomically.
// Locks taken through the repositories are released when WithTx returns.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx()
	defer s.releaseAll(t)

	if err := fn(ctx, t); err != nil {
		return err
	}
	return s.commit(t)
}

// FailNextCommit makes the next commit fail with err and discard its writes.
// Test-only helper.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *Store) lock(ctx context.Context, t *tx, key string) error {
	if t.held[key] {
		return nil
	}
	if err := s.locks.acquire(ctx, key, s.lockTimeout); err != nil {
		return err
	}
	t.held[key] = true
	return nil
}

func (s *Store) releaseAll(t *tx) {
	for key := range t.held {
		s.locks.release(key)
	}
	t.held = nil
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	// Another tx may have committed since the staged checks ran.
	for _, id := range t.inserted {
		c := t.creds[id]
		if _, ok := s.creds[id]; ok {
			return domain.ErrAlreadyExists
		}
		if _, ok := s.byQR[c.QRCode]; ok {
			return domain.ErrCodeCollision
		}
		if _, ok := s.byManual[c.ManualCode]; ok {
			return domain.ErrCodeCollision
		}
	}
	for _, c := range t.creds {
		if c.Active && s.activeInPairLocked(t, c.PairKey()) > 1 {
			return domain.ErrDuplicateActiveCredential
		}
	}

	for _, id := range t.inserted {
		c := t.creds[id]
		s.byQR[c.QRCode] = id
		s.byManual[c.ManualCode] = id
		s.byPair[c.PairKey()] = append(s.byPair[c.PairKey()], id)
	}
	for id, c := range t.creds {
		s.creds[id] = c
	}
	for _, ev := range t.events {
		s.seq++
		ev.Seq = s.seq
		s.events = append(s.events, ev)
		s.eventsByCred[ev.CredentialID] = append(s.eventsByCred[ev.CredentialID], ev)
	}
	for _, a := range t.actions {
		s.seq++
		a.Seq = s.seq
		s.actions = append(s.actions, a)
		s.actionsByCred[a.CredentialID] = append(s.actionsByCred[a.CredentialID], a)
	}
	return nil
}

// activeInPairLocked counts active credentials of the pair as they would be after
// t commits. Caller holds s.mu.
func (s *Store) activeInPairLocked(t *tx, pair string) int {
	n := 0
	for _, id := range s.byPair[pair] {
		if _, staged := t.creds[id]; staged {
			continue
		}
		if s.creds[id].Active {
			n++
		}
	}
	for _, c := range t.creds {
		if c.Active && c.PairKey() == pair {
			n++
		}
	}
	return n
}

// autoTx wraps a write issued without a transaction in its own one.
func (s *Store) autoTx(ctx context.Context, handle repository.Tx, fn func(t *tx) error) error {
	if t, ok := handle.(*tx); ok {
		return fn(t)
	}
	if handle != nil {
		return domain.ErrInvalidExecContext
	}
	return s.WithTx(ctx, func(ctx context.Context, h repository.Tx) error {
		return fn(h.(*tx))
	})
}

// asTx returns the staged tx or nil for committed-only reads.
func asTx(handle repository.Tx) (*tx, error) {
	if handle == nil {
		return nil, nil
	}
	t, ok := handle.(*tx)
	if !ok {
		return nil, domain.ErrInvalidExecContext
	}
	return t, nil
}

func clone(c *model.Credential) *model.Credential {
	cp := *c
	return &cp
}
