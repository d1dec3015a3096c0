//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
	"gate-admission/internal/infra/db/memory"
	"gate-admission/internal/usecase"
)

func TestCredentialIssuer_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue an active credential with well-formed codes and an ISSUE log", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		c := f.issue(t, "member:1")

		if !c.Active || c.EventTicketID != testTicket || c.SupersedesID != nil {
			t.Fatalf("unexpected credential %+v", c)
		}
		if len(c.QRCode) != 32 || len(c.ManualCode) != 9 || c.ManualCode[4] != '-' {
			t.Errorf("unexpected code shapes %q / %q", c.QRCode, c.ManualCode)
		}
		if want := f.clock.Now().Add(24 * time.Hour); !c.ExpiresAt.Equal(want) {
			t.Errorf("expected default expiry %v, got %v", want, c.ExpiresAt)
		}
		logs, _ := f.actions.ListByCredential(ctx, repository.NoTX, c.ID)
		if len(logs) != 1 || logs[0].Action != model.ActionIssue || logs[0].Actor != "box-office" {
			t.Fatalf("expected one ISSUE by box-office, got %+v", logs)
		}
	})

	t.Run("should resolve holder refs through the directory", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		guest, _ := model.GuestHolder("invite-abc")
		f.dir.Add("attendee-9", guest)
		c := f.issue(t, "attendee-9")
		if c.Holder != guest {
			t.Fatalf("expected guest holder, got %v", c.Holder)
		}
		if _, err := f.issuer.Issue(ctx, usecase.IssueRequest{HolderRef: "nobody", EventTicketID: testTicket}); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown holder, got %v", err)
		}
	})

	t.Run("should refuse a second active credential for the pair", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		f.issue(t, "member:2")
		_, err := f.issuer.Issue(ctx, usecase.IssueRequest{HolderRef: "member:2", EventTicketID: testTicket})
		if !errors.Is(err, domain.ErrDuplicateActiveCredential) {
			t.Fatalf("expected ErrDuplicateActiveCredential, got %v", err)
		}
	})

	t.Run("should supersede the active credential when replacing", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		old := f.issue(t, "member:3")
		c, err := f.issuer.Issue(ctx, usecase.IssueRequest{HolderRef: "member:3", EventTicketID: testTicket, Replace: true})
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		if c.SupersedesID == nil || *c.SupersedesID != old.ID {
			t.Fatalf("expected replacement to reference %s", old.ID)
		}
		if calls := f.sink.Calls(); len(calls) != 1 || calls[0].Previous.ID != old.ID {
			t.Fatalf("expected one reissue notification, got %+v", calls)
		}
	})

	t.Run("should reject bad requests before touching the store", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		past := f.clock.Now().Add(-time.Minute)
		cases := []usecase.IssueRequest{
			{HolderRef: "", EventTicketID: testTicket},
			{HolderRef: "member:4", EventTicketID: " "},
			{HolderRef: "member:4", EventTicketID: testTicket, ExpiresAt: &past},
		}
		for i, req := range cases {
			if _, err := f.issuer.Issue(ctx, req); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("case %d: expected ErrInvalidArgument, got %v", i, err)
			}
		}
		if _, err := f.issuer.Issue(ctx, usecase.IssueRequest{HolderRef: "robot:4", EventTicketID: testTicket}); !errors.Is(err, domain.ErrInvalidHolder) {
			t.Errorf("expected ErrInvalidHolder, got %v", err)
		}
	})

	t.Run("should retry with fresh codes after a collision", func(t *testing.T) {
		taken := usecase.CredentialCodes{QR: "TAKENQRTAKENQRTAKENQRTAKENQRTAKE", Manual: "TAKE-NAAA"}
		fresh := usecase.CredentialCodes{QR: "FRESHQRFRESHQRFRESHQRFRESHQRFRE", Manual: "FRES-HAAA"}
		gen := &scriptedCodes{codes: []usecase.CredentialCodes{taken, taken, taken, fresh}}
		f := newFixture(t, fixtureOpts{codes: gen})

		first := f.issue(t, "member:5")
		if first.QRCode != taken.QR {
			t.Fatalf("expected first credential to use the scripted codes")
		}
		second := f.issue(t, "member:6")
		if second.QRCode != fresh.QR || second.ManualCode != fresh.Manual {
			t.Fatalf("expected fresh codes after collisions, got %q/%q", second.QRCode, second.ManualCode)
		}
		if gen.calls != 4 {
			t.Errorf("expected 4 generator calls, got %d", gen.calls)
		}
	})

	t.Run("should fail loudly when every attempt collides", func(t *testing.T) {
		same := usecase.CredentialCodes{QR: "SAMEQRSAMEQRSAMEQRSAMEQRSAMEQRSA", Manual: "SAME-AAAA"}
		gen := &scriptedCodes{codes: []usecase.CredentialCodes{same}}
		f := newFixture(t, fixtureOpts{codes: gen})
		f.issue(t, "member:7")

		_, err := f.issuer.Issue(ctx, usecase.IssueRequest{HolderRef: "member:8", EventTicketID: testTicket})
		if !errors.Is(err, domain.ErrCodeSpaceExhausted) || !domain.IsFatal(err) {
			t.Fatalf("expected ErrCodeSpaceExhausted, got %v", err)
		}
		if gen.calls != 1+5 {
			t.Errorf("expected 5 attempts after the first issue, got %d", gen.calls-1)
		}
	})

	t.Run("should never hand out the same code twice across 10000 concurrent issues", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping bulk issuance in short mode")
		}
		f := newFixture(t, fixtureOpts{})
		const n = 10000

		creds := make([]*model.Credential, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				creds[i], errs[i] = f.issuer.Issue(ctx, usecase.IssueRequest{
					HolderRef:     fmt.Sprintf("member:%d", i),
					EventTicketID: testTicket,
				})
			}(i)
		}
		wg.Wait()

		qr := make(map[string]bool, n)
		manual := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			if errs[i] != nil {
				t.Fatalf("issue %d: %v", i, errs[i])
			}
			if qr[creds[i].QRCode] || manual[creds[i].ManualCode] {
				t.Fatalf("duplicate code issued: %q / %q", creds[i].QRCode, creds[i].ManualCode)
			}
			qr[creds[i].QRCode] = true
			manual[creds[i].ManualCode] = true
		}
	})

	t.Run("should let only one of two racing issues for the same pair win", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.issuer.Issue(ctx, usecase.IssueRequest{HolderRef: "member:9", EventTicketID: testTicket})
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicateActiveCredential):
			default:
				t.Fatalf("unexpected error %v", err)
			}
		}
		h, _ := model.MemberHolder("9")
		active, _ := f.creds.FindActiveByPair(ctx, repository.NoTX, h, testTicket)
		if ok != 1 || len(active) != 1 {
			t.Fatalf("expected one winner and one active credential, got %d winners, %d active", ok, len(active))
		}
	})
}

func TestCredentialIssuer_Reissue(t *testing.T) {
	ctx := context.Background()

	t.Run("should atomically supersede and invalidate the old codes", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		yes := true
		old, err := f.issuer.Issue(ctx, usecase.IssueRequest{
			HolderRef:     "member:20",
			EventTicketID: testTicket,
			Overrides:     model.PolicyOverride{Reentry: &yes},
		})
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		f.clock.Advance(time.Hour)

		c, err := f.issuer.Reissue(ctx, old.ManualCode, "ops")
		if err != nil {
			t.Fatalf("reissue: %v", err)
		}
		if c.ID == old.ID || c.QRCode == old.QRCode || c.ManualCode == old.ManualCode {
			t.Fatal("expected brand new codes")
		}
		if !c.ExpiresAt.Equal(old.ExpiresAt) || c.Overrides.Reentry == nil || !*c.Overrides.Reentry {
			t.Errorf("expected expiry and overrides to carry over, got %+v", c)
		}

		for _, tok := range []string{old.QRCode, old.ManualCode} {
			res := f.scan(t, tok, model.DirectionIn)
			if res.Status != model.CheckStatusInvalid || res.Reason != model.ReasonInactive {
				t.Fatalf("expected old code %s to be INVALID/inactive, got %s/%s", tok, res.Status, res.Reason)
			}
		}
		if res := f.scan(t, c.QRCode, model.DirectionIn); res.Status != model.CheckStatusEntry {
			t.Fatalf("expected new code to admit, got %s", res.Status)
		}

		active, _ := f.creds.FindActiveByPair(ctx, repository.NoTX, old.Holder, testTicket)
		if len(active) != 1 || active[0].ID != c.ID {
			t.Fatalf("expected exactly the new credential active, got %+v", active)
		}
		logs, _ := f.actions.ListByCredential(ctx, repository.NoTX, c.ID)
		if len(logs) != 1 || logs[0].Action != model.ActionReissue || logs[0].Actor != "ops" {
			t.Fatalf("expected REISSUE by ops, got %+v", logs)
		}
		if calls := f.sink.Calls(); len(calls) != 1 || calls[0].Current.ID != c.ID {
			t.Fatalf("expected one notification for the new credential, got %+v", calls)
		}
	})

	t.Run("should follow a superseded identifier to the pair's current credential", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		first := f.issue(t, "member:21")
		second, err := f.issuer.Reissue(ctx, first.ID, "")
		if err != nil {
			t.Fatalf("reissue: %v", err)
		}
		third, err := f.issuer.Reissue(ctx, first.QRCode, "")
		if err != nil {
			t.Fatalf("reissue via old code: %v", err)
		}
		if third.SupersedesID == nil || *third.SupersedesID != second.ID {
			t.Fatalf("expected third to supersede second")
		}
	})

	t.Run("should report not found when the pair has no active credential", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		c := f.issue(t, "member:22")
		if err := f.issuer.Invalidate(ctx, c.ID, "ops"); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		if _, err := f.issuer.Reissue(ctx, c.ID, "ops"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := f.issuer.Reissue(ctx, "NOPE-NOPE", "ops"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
		}
	})

	t.Run("should extend the window when reissuing an expired credential", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		old := f.issue(t, "member:23")
		f.clock.Advance(48 * time.Hour)
		c, err := f.issuer.Reissue(ctx, old.ID, "ops")
		if err != nil {
			t.Fatalf("reissue: %v", err)
		}
		if want := f.clock.Now().Add(24 * time.Hour); !c.ExpiresAt.Equal(want) {
			t.Fatalf("expected expiry %v, got %v", want, c.ExpiresAt)
		}
	})

	t.Run("should keep the reissue when the notification fails", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		f.sink.err = errors.New("smtp down")
		old := f.issue(t, "member:24")
		c, err := f.issuer.Reissue(ctx, old.ID, "ops")
		if err != nil {
			t.Fatalf("expected reissue to succeed, got %v", err)
		}
		got, _ := f.creds.FindByID(ctx, repository.NoTX, c.ID)
		if !got.Active {
			t.Fatal("expected new credential to stay active")
		}
	})

	t.Run("should surface two active credentials as an invariant violation", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		old := f.issue(t, "member:25")

		broken := &twoActiveRepo{CredentialRepo: f.creds}
		issuer := usecase.NewCredentialIssuer(
			broken, f.store, usecase.NewAuditLogger(f.events, f.actions), f.dir, f.sink, syncDispatcher{}, nil,
			usecase.IssuerConfig{Now: f.clock.Now}, newTestLogger(),
		)
		_, err := issuer.Reissue(ctx, old.ID, "ops")
		if !errors.Is(err, domain.ErrInvariantViolation) || !domain.IsFatal(err) {
			t.Fatalf("expected ErrInvariantViolation, got %v", err)
		}
		got, _ := f.creds.FindByID(ctx, repository.NoTX, old.ID)
		if !got.Active {
			t.Fatal("nothing may be auto-corrected on an invariant violation")
		}
	})
}

func TestCredentialIssuer_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("should stop a credential without replacement", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		c := f.issue(t, "member:30")
		if err := f.issuer.Invalidate(ctx, c.QRCode, "ops"); err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		if res := f.scan(t, c.QRCode, model.DirectionIn); res.Status != model.CheckStatusInvalid {
			t.Fatalf("expected INVALID, got %s", res.Status)
		}
		h, _ := model.MemberHolder("30")
		if active, _ := f.creds.FindActiveByPair(ctx, repository.NoTX, h, testTicket); len(active) != 0 {
			t.Fatalf("expected no active credential, got %d", len(active))
		}
		if calls := f.sink.Calls(); len(calls) != 0 {
			t.Fatalf("invalidate must not notify, got %d calls", len(calls))
		}
	})

	t.Run("should report not found for an already inactive credential", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		c := f.issue(t, "member:31")
		_ = f.issuer.Invalidate(ctx, c.ID, "ops")
		if err := f.issuer.Invalidate(ctx, c.ID, "ops"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should make a reissue racing an invalidate report not found", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		c := f.issue(t, "member:33")

		slow := &slowDeactivateRepo{CredentialRepo: f.creds, entered: make(chan struct{}), delay: 200 * time.Millisecond}
		invalidator := usecase.NewCredentialIssuer(
			slow, f.store, usecase.NewAuditLogger(f.events, f.actions), f.dir, f.sink, syncDispatcher{}, nil,
			usecase.IssuerConfig{Now: f.clock.Now}, newTestLogger(),
		)

		done := make(chan error, 1)
		go func() { done <- invalidator.Invalidate(ctx, c.ID, "ops") }()
		<-slow.entered

		_, err := f.issuer.Reissue(ctx, c.ID, "ops")
		if !errors.Is(err, domain.ErrNotFound) || domain.IsFatal(err) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := <-done; err != nil {
			t.Fatalf("invalidate: %v", err)
		}
		h, _ := model.MemberHolder("33")
		if active, _ := f.creds.FindActiveByPair(ctx, repository.NoTX, h, testTicket); len(active) != 0 {
			t.Fatalf("expected no active credential, got %d", len(active))
		}
	})

	t.Run("should allow a fresh issue after invalidation", func(t *testing.T) {
		f := newFixture(t, fixtureOpts{})
		c := f.issue(t, "member:32")
		_ = f.issuer.Invalidate(ctx, c.ID, "ops")
		again := f.issue(t, "member:32")
		if again.ID == c.ID || again.SupersedesID != nil {
			t.Fatalf("expected an unrelated new credential, got %+v", again)
		}
	})
}

// twoActiveRepo reports a duplicate active credential for every pair.
type twoActiveRepo struct {
	*memory.CredentialRepo
}

func (r *twoActiveRepo) FindActiveByPair(ctx context.Context, tx repository.Tx, holder model.Holder, eventTicketID string) ([]*model.Credential, error) {
	active, err := r.CredentialRepo.FindActiveByPair(ctx, tx, holder, eventTicketID)
	if err != nil || len(active) == 0 {
		return active, err
	}
	dup := *active[0]
	dup.ID = "00000000-0000-4000-8000-000000000000"
	return append(active, &dup), nil
}

// slowDeactivateRepo holds the transaction open inside Deactivate.
type slowDeactivateRepo struct {
	*memory.CredentialRepo
	entered chan struct{}
	once    sync.Once
	delay   time.Duration
}

func (r *slowDeactivateRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	r.once.Do(func() { close(r.entered) })
	time.Sleep(r.delay)
	return r.CredentialRepo.Deactivate(ctx, tx, id)
}
