package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/domain/ports/repository"
	"gate-admission/internal/infra/logging"
	"gate-admission/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ CredentialIssuer = (*issuerUC)(nil)

// CredentialIssuer owns the credential lifecycle.
type CredentialIssuer interface {
	// Issue creates the first active credential for a (holder, ticket) pair.
	// Returns domain.ErrDuplicateActiveCredential if one exists and req.Replace is false.
	Issue(ctx context.Context, req IssueRequest) (*model.Credential, error)
	// Reissue atomically supersedes the pair's active credential with a new one.
	// identifier is a credential id, QR code or manual code of any credential of the pair.
	Reissue(ctx context.Context, identifier, actor string) (*model.Credential, error)
	// Invalidate deactivates a credential without replacement.
	Invalidate(ctx context.Context, identifier, actor string) error
}

type IssueRequest struct {
	HolderRef     string
	EventTicketID string
	ExpiresAt     *time.Time // nil: now + configured TTL
	Overrides     model.PolicyOverride
	Replace       bool
	Actor         string
}

// Dispatcher runs post-commit side effects off the request path.
type Dispatcher interface {
	Submit(task func(ctx context.Context) error) error
}

type IssuerConfig struct {
	CredentialTTL time.Duration
	CodeAttempts  int
	Now           func() time.Time
}

const defaultCodeAttempts = 5

type issuerUC struct {
	creds     repository.CredentialRepository
	tm        repository.TransactionManager
	audit     AuditLogger
	directory adapter.HolderDirectory
	notify    adapter.NotificationSink
	dispatch  Dispatcher
	codes     CodeGenerator
	cfg       IssuerConfig
	log       *zerolog.Logger
}

func NewCredentialIssuer(
	creds repository.CredentialRepository,
	tm repository.TransactionManager,
	audit AuditLogger,
	directory adapter.HolderDirectory,
	notify adapter.NotificationSink,
	dispatch Dispatcher,
	codes CodeGenerator,
	cfg IssuerConfig,
	logger *zerolog.Logger,
) *issuerUC {
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = defaultCodeAttempts
	}
	if cfg.CredentialTTL <= 0 {
		cfg.CredentialTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if codes == nil {
		codes = NewCodeGenerator()
	}
	l := logger.With().Str("component", "issuer").Logger()
	return &issuerUC{
		creds:     creds,
		tm:        tm,
		audit:     audit,
		directory: directory,
		notify:    notify,
		dispatch:  dispatch,
		codes:     codes,
		cfg:       cfg,
		log:       &l,
	}
}

func (uc *issuerUC) Issue(ctx context.Context, req IssueRequest) (*model.Credential, error) {
	defer logging.TraceDuration(uc.log, "CredentialIssuer.Issue")()

	req.EventTicketID = strings.TrimSpace(req.EventTicketID)
	if strings.TrimSpace(req.HolderRef) == "" || req.EventTicketID == "" {
		return nil, domain.ErrInvalidArgument
	}

	// Directory lookups never happen under a credential lock.
	holder, err := uc.directory.Resolve(ctx, req.HolderRef)
	if err != nil {
		return nil, fmt.Errorf("resolve holder: %w", err)
	}

	now := uc.cfg.Now().UTC()
	expiresAt := now.Add(uc.cfg.CredentialTTL)
	if req.ExpiresAt != nil {
		expiresAt = req.ExpiresAt.UTC()
	}
	if !expiresAt.After(now) {
		return nil, domain.ErrInvalidArgument
	}

	action := model.ActionIssue
	var previous *model.Credential
	cred, err := uc.withUniqueCodes(ctx, "issue", func(ctx context.Context, tx repository.Tx, codes CredentialCodes) (*model.Credential, error) {
		previous, action = nil, model.ActionIssue
		if err := uc.creds.LockPair(ctx, tx, holder, req.EventTicketID); err != nil {
			return nil, err
		}
		active, err := uc.activeForPair(ctx, tx, holder, req.EventTicketID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			if !req.Replace {
				return nil, domain.ErrDuplicateActiveCredential
			}
			if previous, err = uc.supersede(ctx, tx, active.ID); err != nil {
				return nil, err
			}
			action = model.ActionReissue
		}

		c, err := model.NewCredential(holder, req.EventTicketID, codes.QR, codes.Manual, now, expiresAt)
		if err != nil {
			return nil, err
		}
		c.Overrides = req.Overrides
		return c, uc.insertWithLog(ctx, tx, c, previous, action, req.Actor, now)
	})
	if err != nil {
		uc.finish(ctx, "issue", err)
		return nil, err
	}
	uc.finish(ctx, string(action), nil)

	logging.With(ctx, uc.log).Info().
		Str("credential_id", cred.ID).
		Str("holder", holder.String()).
		Str("event_ticket_id", cred.EventTicketID).
		Bool("replaced", previous != nil).
		Msg("credential issued")

	if previous != nil {
		uc.notifyReissued(ctx, previous, cred)
	}
	return cred, nil
}

func (uc *issuerUC) Reissue(ctx context.Context, identifier, actor string) (*model.Credential, error) {
	defer logging.TraceDuration(uc.log, "CredentialIssuer.Reissue")()

	target, err := findByIdentifier(ctx, uc.creds, repository.NoTX, identifier)
	if err != nil {
		uc.finish(ctx, "reissue", err)
		return nil, err
	}

	now := uc.cfg.Now().UTC()
	var previous *model.Credential
	cred, err := uc.withUniqueCodes(ctx, "reissue", func(ctx context.Context, tx repository.Tx, codes CredentialCodes) (*model.Credential, error) {
		if err := uc.creds.LockPair(ctx, tx, target.Holder, target.EventTicketID); err != nil {
			return nil, err
		}
		active, err := uc.activeForPair(ctx, tx, target.Holder, target.EventTicketID)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, domain.ErrNotFound
		}
		if previous, err = uc.supersede(ctx, tx, active.ID); err != nil {
			return nil, err
		}

		// The replacement keeps the old validity window unless it already ran out.
		expiresAt := previous.ExpiresAt
		if !expiresAt.After(now) {
			expiresAt = now.Add(uc.cfg.CredentialTTL)
		}
		c, err := model.NewCredential(previous.Holder, previous.EventTicketID, codes.QR, codes.Manual, now, expiresAt)
		if err != nil {
			return nil, err
		}
		c.Overrides = previous.Overrides
		return c, uc.insertWithLog(ctx, tx, c, previous, model.ActionReissue, actor, now)
	})
	uc.finish(ctx, "reissue", err)
	if err != nil {
		return nil, err
	}

	logging.With(ctx, uc.log).Info().
		Str("credential_id", cred.ID).
		Str("supersedes_id", previous.ID).
		Msg("credential reissued")

	uc.notifyReissued(ctx, previous, cred)
	return cred, nil
}

func (uc *issuerUC) Invalidate(ctx context.Context, identifier, actor string) error {
	defer logging.TraceDuration(uc.log, "CredentialIssuer.Invalidate")()

	target, err := findByIdentifier(ctx, uc.creds, repository.NoTX, identifier)
	if err != nil {
		uc.finish(ctx, "invalidate", err)
		return err
	}

	now := uc.cfg.Now().UTC()
	err = uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// Pair before row, the order Issue and Reissue use.
		if err := uc.creds.LockPair(ctx, tx, target.Holder, target.EventTicketID); err != nil {
			return err
		}
		locked, err := uc.creds.LockByID(ctx, tx, target.ID)
		if err != nil {
			return err
		}
		if !locked.Active {
			return domain.ErrNotFound
		}
		if err := uc.creds.Deactivate(ctx, tx, locked.ID); err != nil {
			return err
		}
		return uc.audit.AppendAction(ctx, tx, model.NewActionLog(locked.ID, model.ActionInvalidate, actor, "", now))
	})
	uc.finish(ctx, "invalidate", err)
	if err != nil {
		return err
	}

	logging.With(ctx, uc.log).Info().Str("credential_id", target.ID).Msg("credential invalidated")
	return nil
}

// withUniqueCodes runs fn in a fresh transaction per attempt, each with newly
// generated codes. A code collision, whether seen by the pre-check or raised by
// the store on insert, rolls the attempt back and tries again.
func (uc *issuerUC) withUniqueCodes(
	ctx context.Context,
	op string,
	fn func(ctx context.Context, tx repository.Tx, codes CredentialCodes) (*model.Credential, error),
) (*model.Credential, error) {
	for attempt := 1; attempt <= uc.cfg.CodeAttempts; attempt++ {
		codes, err := uc.codes.Generate()
		if err != nil {
			return nil, fmt.Errorf("generate codes: %w", err)
		}

		var out *model.Credential
		err = uc.tm.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			taken, err := uc.creds.CodesTaken(ctx, tx, codes.QR, codes.Manual)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrCodeCollision
			}
			c, err := fn(ctx, tx, codes)
			if err != nil {
				return err
			}
			out = c
			return nil
		})
		if errors.Is(err, domain.ErrCodeCollision) {
			metrics.IncCodeRetry()
			uc.log.Debug().Str("op", op).Int("attempt", attempt).Msg("credential code collision, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	uc.log.Error().Str("op", op).Int("attempts", uc.cfg.CodeAttempts).Msg("credential code space exhausted")
	return nil, domain.ErrCodeSpaceExhausted
}

// activeForPair returns the pair's single active credential, or nil.
func (uc *issuerUC) activeForPair(ctx context.Context, tx repository.Tx, holder model.Holder, eventTicketID string) (*model.Credential, error) {
	active, err := uc.creds.FindActiveByPair(ctx, tx, holder, eventTicketID)
	if err != nil {
		return nil, err
	}
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return active[0], nil
	default:
		ids := make([]string, 0, len(active))
		for _, c := range active {
			ids = append(ids, c.ID)
		}
		uc.log.Error().
			Str("holder", holder.String()).
			Str("event_ticket_id", eventTicketID).
			Strs("credential_ids", ids).
			Msg("more than one active credential for pair")
		return nil, fmt.Errorf("%w: %d active credentials for %s", domain.ErrInvariantViolation, len(active), model.PairKey(holder, eventTicketID))
	}
}

// supersede takes the row lock of the active credential so in-flight scans on it
// finish first, then deactivates it.
func (uc *issuerUC) supersede(ctx context.Context, tx repository.Tx, id string) (*model.Credential, error) {
	locked, err := uc.creds.LockByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !locked.Active {
		// Stopped by a transaction that committed after the pair read.
		return nil, domain.ErrNotFound
	}
	if err := uc.creds.Deactivate(ctx, tx, id); err != nil {
		return nil, err
	}
	locked.Active = false
	return locked, nil
}

func (uc *issuerUC) insertWithLog(ctx context.Context, tx repository.Tx, c, previous *model.Credential, action model.Action, actor string, now time.Time) error {
	detail := ""
	if previous != nil {
		id := previous.ID
		c.SupersedesID = &id
		detail = "supersedes " + id
	}
	if err := uc.creds.Insert(ctx, tx, c); err != nil {
		return err
	}
	return uc.audit.AppendAction(ctx, tx, model.NewActionLog(c.ID, action, actor, detail, now))
}

func (uc *issuerUC) finish(ctx context.Context, op string, err error) {
	if err == nil {
		metrics.IncLifecycle(op, "ok")
		return
	}
	metrics.IncLifecycle(op, "error")
	if errors.Is(err, domain.ErrLockTimeout) {
		metrics.IncLockTimeout(op)
	}
	ev := logging.With(ctx, uc.log).Warn()
	if domain.IsFatal(err) {
		ev = logging.With(ctx, uc.log).Error()
	}
	ev.Err(err).Str("op", op).Msg("credential lifecycle action failed")
}

// notifyReissued runs after commit. Failures are logged and counted only.
func (uc *issuerUC) notifyReissued(ctx context.Context, previous, current *model.Credential) {
	if uc.notify == nil {
		return
	}
	traceID := logging.TraceID(ctx)
	task := func(taskCtx context.Context) error {
		taskCtx = logging.WithTraceID(taskCtx, traceID)
		if err := uc.notify.OnReissued(taskCtx, previous, current); err != nil {
			metrics.IncNotification("failed")
			logging.With(taskCtx, uc.log).Warn().Err(err).Str("credential_id", current.ID).Msg("reissue notification failed")
			return err
		}
		metrics.IncNotification("sent")
		return nil
	}
	if uc.dispatch == nil {
		go func() { _ = task(context.WithoutCancel(ctx)) }()
		return
	}
	if err := uc.dispatch.Submit(task); err != nil {
		metrics.IncNotification("dropped")
		logging.With(ctx, uc.log).Warn().Err(err).Str("credential_id", current.ID).Msg("reissue notification dropped")
	}
}
