package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/repository"
	"gate-admission/internal/infra/logging"
	"gate-admission/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ AdmissionEngine = (*admissionUC)(nil)

// AdmissionEngine decides scans and serves the audit views gate UIs need.
type AdmissionEngine interface {
	// Scan decides one presented token. Denials are results, not errors; an error
	// is either a validation failure (nothing recorded) or a retryable store failure
	// (nothing committed).
	Scan(ctx context.Context, req ScanRequest) (ScanResult, error)
	// History returns the credential's check events in commit order.
	History(ctx context.Context, credentialID string) ([]*model.CheckEvent, error)
	// Actions returns the credential's lifecycle log in commit order.
	Actions(ctx context.Context, credentialID string) ([]*model.ActionLog, error)
	// Lookup resolves an id, QR code or manual code to the credential and its current state.
	Lookup(ctx context.Context, identifier string) (*CredentialView, error)
}

type ScanRequest struct {
	Token     string
	Direction string
	GateID    string
}

type ScanResult struct {
	Status       model.CheckStatus
	Reason       string
	CredentialID string
	Direction    model.Direction
	State        model.AdmissionState // state after the decision
	EventID      string
	At           time.Time
}

// Gate UI outcome classes.
const (
	OutcomeAdmitted          = "admitted"
	OutcomeExited            = "exited"
	OutcomeRejectedDuplicate = "rejected_duplicate"
	OutcomeRejectedInvalid   = "rejected_invalid"
	OutcomeTryAgain          = "try_again"
)

func (r ScanResult) Outcome() string {
	switch {
	case r.Status.Admitted():
		return OutcomeAdmitted
	case r.Status == model.CheckStatusExit:
		return OutcomeExited
	case r.Status == model.CheckStatusDuplicate:
		return OutcomeRejectedDuplicate
	default:
		return OutcomeRejectedInvalid
	}
}

// OutcomeForError maps a Scan error to the gate UI class. Only retryable
// failures ask for a repeat scan.
func OutcomeForError(err error) string {
	if domain.IsRetryable(err) {
		return OutcomeTryAgain
	}
	return OutcomeRejectedInvalid
}

type CredentialView struct {
	Credential *model.Credential
	State      model.AdmissionState
}

type admissionUC struct {
	creds  repository.CredentialRepository
	events repository.CheckEventRepository
	logs   repository.ActionLogRepository
	tm     repository.TransactionManager
	policy PolicyResolver
	audit  AuditLogger
	now    func() time.Time
	dev    bool
	log    *zerolog.Logger
}

func NewAdmissionEngine(
	creds repository.CredentialRepository,
	events repository.CheckEventRepository,
	logs repository.ActionLogRepository,
	tm repository.TransactionManager,
	policy PolicyResolver,
	audit AuditLogger,
	now func() time.Time,
	dev bool,
	logger *zerolog.Logger,
) *admissionUC {
	if now == nil {
		now = time.Now
	}
	l := logger.With().Str("component", "admission").Logger()
	return &admissionUC{
		creds:  creds,
		events: events,
		logs:   logs,
		tm:     tm,
		policy: policy,
		audit:  audit,
		now:    now,
		dev:    dev,
		log:    &l,
	}
}

func (uc *admissionUC) Scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	defer logging.TraceDuration(uc.log, "AdmissionEngine.Scan")()
	start := time.Now()

	res, err := uc.scan(ctx, req)
	if err != nil {
		dirLabel := "invalid"
		if dir, perr := model.ParseDirection(req.Direction); perr == nil {
			dirLabel = string(dir)
		}
		metrics.ObserveScan("error", dirLabel, time.Since(start))
		if errors.Is(err, domain.ErrLockTimeout) {
			metrics.IncLockTimeout("scan")
		}
		ev := logging.With(ctx, uc.log).Warn()
		if domain.IsValidation(err) {
			ev = logging.With(ctx, uc.log).Debug()
		}
		ev.Err(err).Str("token", logging.Redact(req.Token, uc.dev)).Msg("scan failed")
		return ScanResult{}, err
	}

	metrics.ObserveScan(string(res.Status), string(res.Direction), time.Since(start))
	logging.With(ctx, uc.log).Info().
		Str("credential_id", res.CredentialID).
		Str("direction", string(res.Direction)).
		Str("status", string(res.Status)).
		Str("reason", res.Reason).
		Msg("scan decided")
	return res, nil
}

func (uc *admissionUC) scan(ctx context.Context, req ScanRequest) (ScanResult, error) {
	// Validation happens before any read and is never audited.
	tok, err := NormalizeToken(req.Token)
	if err != nil {
		return ScanResult{}, err
	}
	dir, err := model.ParseDirection(req.Direction)
	if err != nil {
		return ScanResult{}, err
	}
	gateID := strings.TrimSpace(req.GateID)
	hash := HashToken(tok)

	cred, err := uc.creds.FindByToken(ctx, repository.NoTX, tok)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return ScanResult{}, retryable(err)
	}
	if now := uc.now().UTC(); cred == nil || !cred.Admissible(now) {
		return uc.rejectUnusable(ctx, cred, hash, dir, gateID, now)
	}

	// Ticket defaults may come from the network: fetch before taking the lock.
	defaults, err := uc.policy.Defaults(ctx, cred.EventTicketID)
	if err != nil {
		return ScanResult{}, retryable(err)
	}

	var res ScanResult
	err = uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := uc.creds.LockByID(ctx, tx, cred.ID)
		if err != nil {
			return err
		}
		// Everything below is read under the lock; nothing read earlier is trusted.
		now := uc.now().UTC()
		if reason, ok := unusableReason(locked, now); !ok {
			ev := model.NewCheckEvent(locked.ID, hash, dir, model.CheckStatusInvalid, reason, gateID, now)
			if err := uc.audit.AppendCheck(ctx, tx, ev); err != nil {
				return err
			}
			res = resultFrom(ev, "")
			return nil
		}

		latest, err := uc.events.LatestStateful(ctx, tx, locked.ID)
		if err != nil {
			return err
		}
		state := model.StateAfter(latest)
		d := model.Decide(state, dir, uc.policy.Resolve(defaults, locked))

		ev := model.NewCheckEvent(locked.ID, hash, dir, d.Status, d.Reason, gateID, now)
		if err := uc.audit.AppendCheck(ctx, tx, ev); err != nil {
			return err
		}
		res = resultFrom(ev, d.Next)
		return nil
	})
	if err != nil {
		return ScanResult{}, retryable(err)
	}
	return res, nil
}

// rejectUnusable records INVALID for an unknown, expired or inactive token in its
// own short transaction. No lock is needed: the event moves no state.
func (uc *admissionUC) rejectUnusable(ctx context.Context, cred *model.Credential, hash string, dir model.Direction, gateID string, now time.Time) (ScanResult, error) {
	credID, reason := "", model.ReasonUnknownToken
	if cred != nil {
		credID = cred.ID
		reason, _ = unusableReason(cred, now)
	}
	ev := model.NewCheckEvent(credID, hash, dir, model.CheckStatusInvalid, reason, gateID, now)
	err := uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return uc.audit.AppendCheck(ctx, tx, ev)
	})
	if err != nil {
		return ScanResult{}, retryable(err)
	}
	return resultFrom(ev, ""), nil
}

// unusableReason returns the INVALID reason for a credential that must not be
// evaluated by the transition table, or ok=true when it may be.
func unusableReason(c *model.Credential, now time.Time) (string, bool) {
	switch {
	case !c.Active:
		return model.ReasonInactive, false
	case c.IsExpired(now):
		return model.ReasonExpired, false
	}
	return "", true
}

func resultFrom(ev *model.CheckEvent, next model.AdmissionState) ScanResult {
	return ScanResult{
		Status:       ev.Status,
		Reason:       ev.Reason,
		CredentialID: ev.CredentialID,
		Direction:    ev.Direction,
		State:        next,
		EventID:      ev.ID,
		At:           ev.OccurredAt,
	}
}

// retryable classifies a failure after validation: anything that is not already a
// known domain outcome is a store failure the caller may retry.
func retryable(err error) error {
	if domain.IsRetryable(err) || domain.IsFatal(err) || domain.IsValidation(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func (uc *admissionUC) History(ctx context.Context, id string) ([]*model.CheckEvent, error) {
	defer logging.TraceDuration(uc.log, "AdmissionEngine.History")()
	cid, err := credentialID(id)
	if err != nil {
		return nil, err
	}
	if _, err := uc.creds.FindByID(ctx, repository.NoTX, cid); err != nil {
		return nil, err
	}
	return uc.events.ListByCredential(ctx, repository.NoTX, cid)
}

func (uc *admissionUC) Actions(ctx context.Context, id string) ([]*model.ActionLog, error) {
	defer logging.TraceDuration(uc.log, "AdmissionEngine.Actions")()
	cid, err := credentialID(id)
	if err != nil {
		return nil, err
	}
	if _, err := uc.creds.FindByID(ctx, repository.NoTX, cid); err != nil {
		return nil, err
	}
	return uc.logs.ListByCredential(ctx, repository.NoTX, cid)
}

func (uc *admissionUC) Lookup(ctx context.Context, identifier string) (*CredentialView, error) {
	defer logging.TraceDuration(uc.log, "AdmissionEngine.Lookup")()
	cred, err := findByIdentifier(ctx, uc.creds, repository.NoTX, identifier)
	if err != nil {
		return nil, err
	}
	latest, err := uc.events.LatestStateful(ctx, repository.NoTX, cred.ID)
	if err != nil {
		return nil, err
	}
	return &CredentialView{Credential: cred, State: model.StateAfter(latest)}, nil
}
