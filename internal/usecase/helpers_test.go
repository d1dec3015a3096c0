//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"gate-admission/internal/domain/model"
	"gate-admission/internal/infra/db/memory"
	"gate-admission/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// syncDispatcher runs tasks inline so tests can assert on their effects.
type syncDispatcher struct{}

func (syncDispatcher) Submit(task func(ctx context.Context) error) error {
	_ = task(context.Background())
	return nil
}

type reissueCall struct {
	Previous, Current *model.Credential
}

type recordingSink struct {
	mu    sync.Mutex
	calls []reissueCall
	err   error
}

func (s *recordingSink) OnReissued(_ context.Context, previous, current *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, reissueCall{previous, current})
	return s.err
}

func (s *recordingSink) Calls() []reissueCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reissueCall(nil), s.calls...)
}

// scriptedCodes replays fixed code pairs, then repeats the last one.
type scriptedCodes struct {
	mu    sync.Mutex
	codes []usecase.CredentialCodes
	calls int
}

func (g *scriptedCodes) Generate() (usecase.CredentialCodes, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	if i >= len(g.codes) {
		i = len(g.codes) - 1
	}
	g.calls++
	return g.codes[i], nil
}

type fixture struct {
	store    *memory.Store
	creds    *memory.CredentialRepo
	events   *memory.CheckEventRepo
	actions  *memory.ActionLogRepo
	dir      *memory.Directory
	policies *memory.TicketPolicies
	sink     *recordingSink
	clock    *fakeClock
	issuer   usecase.CredentialIssuer
	engine   usecase.AdmissionEngine
}

type fixtureOpts struct {
	lockTimeout time.Duration
	codes       usecase.CodeGenerator
	fallback    model.AttendancePolicy
}

var (
	noReentry  = model.AttendancePolicy{CheckInAllowed: true, CheckOutAllowed: true, ReentryAllowed: false}
	allowAll   = model.AttendancePolicy{CheckInAllowed: true, CheckOutAllowed: true, ReentryAllowed: true}
	testTicket = "ticket-gala"
)

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()
	if opts.lockTimeout == 0 {
		opts.lockTimeout = 2 * time.Second
	}
	if opts.fallback == (model.AttendancePolicy{}) {
		opts.fallback = noReentry
	}

	f := &fixture{
		store:    memory.NewStore(opts.lockTimeout),
		dir:      memory.NewDirectory(),
		policies: memory.NewTicketPolicies(),
		sink:     &recordingSink{},
		clock:    newFakeClock(),
	}
	f.creds = f.store.Credentials()
	f.events = f.store.CheckEvents()
	f.actions = f.store.ActionLogs()

	logger := newTestLogger()
	audit := usecase.NewAuditLogger(f.events, f.actions)
	policy := usecase.NewPolicyResolver(f.policies, opts.fallback)
	f.issuer = usecase.NewCredentialIssuer(
		f.creds, f.store, audit, f.dir, f.sink, syncDispatcher{}, opts.codes,
		usecase.IssuerConfig{CredentialTTL: 24 * time.Hour, Now: f.clock.Now},
		logger,
	)
	f.engine = usecase.NewAdmissionEngine(f.creds, f.events, f.actions, f.store, policy, audit, f.clock.Now, true, logger)
	return f
}

func (f *fixture) issue(t *testing.T, holderRef string) *model.Credential {
	t.Helper()
	c, err := f.issuer.Issue(context.Background(), usecase.IssueRequest{HolderRef: holderRef, EventTicketID: testTicket, Actor: "box-office"})
	if err != nil {
		t.Fatalf("issue %s: %v", holderRef, err)
	}
	return c
}

func (f *fixture) scan(t *testing.T, token string, dir model.Direction) usecase.ScanResult {
	t.Helper()
	res, err := f.engine.Scan(context.Background(), usecase.ScanRequest{Token: token, Direction: string(dir), GateID: "north-1"})
	if err != nil {
		t.Fatalf("scan %s %s: %v", token, dir, err)
	}
	return res
}
