package model

import (
	"strings"
	"time"

	"gate-admission/internal/domain"
)

type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// ParseDirection accepts IN/OUT in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionIn:
		return DirectionIn, nil
	case DirectionOut:
		return DirectionOut, nil
	default:
		return "", domain.ErrInvalidDirection
	}
}

type CheckStatus string

const (
	CheckStatusEntry     CheckStatus = "ENTRY"
	CheckStatusExit      CheckStatus = "EXIT"
	CheckStatusReentry   CheckStatus = "REENTRY"
	CheckStatusDuplicate CheckStatus = "DUPLICATE"
	CheckStatusInvalid   CheckStatus = "INVALID"
)

// Valid reports whether s is one of the closed set of statuses.
func (s CheckStatus) Valid() bool {
	switch s {
	case CheckStatusEntry, CheckStatusExit, CheckStatusReentry, CheckStatusDuplicate, CheckStatusInvalid:
		return true
	}
	return false
}

// Stateful reports whether an event with this status moves the admission state.
// DUPLICATE and INVALID rows are audit only.
func (s CheckStatus) Stateful() bool {
	return s == CheckStatusEntry || s == CheckStatusExit || s == CheckStatusReentry
}

// Admitted reports whether the holder was let in.
func (s CheckStatus) Admitted() bool {
	return s == CheckStatusEntry || s == CheckStatusReentry
}

// Reasons recorded on check events.
const (
	ReasonUnknownToken  = "unknown_token"
	ReasonExpired       = "expired"
	ReasonInactive      = "inactive"
	ReasonPolicyDenied  = "policy_denied"
	ReasonAlreadyInside = "already_inside"
	ReasonNotEntered    = "not_entered"
	ReasonAlreadyExited = "already_exited"
	ReasonAdmitted      = "admitted"
	ReasonExited        = "exited"
	ReasonReadmitted    = "readmitted"
)

// CheckEvent is the immutable record of one scan decision.
type CheckEvent struct {
	ID           string
	Seq          int64 // assigned by the store in commit order
	CredentialID string // empty when the token matched no credential
	TokenHash    string
	Direction    Direction
	Status       CheckStatus
	Reason       string
	GateID       string
	OccurredAt   time.Time
}

func NewCheckEvent(credentialID, tokenHash string, dir Direction, status CheckStatus, reason, gateID string, at time.Time) *CheckEvent {
	return &CheckEvent{
		ID:           NewEventID(at),
		CredentialID: credentialID,
		TokenHash:    tokenHash,
		Direction:    dir,
		Status:       status,
		Reason:       reason,
		GateID:       gateID,
		OccurredAt:   at,
	}
}
