package model

import "time"

type Action string

const (
	ActionIssue      Action = "ISSUE"
	ActionReissue    Action = "REISSUE"
	ActionInvalidate Action = "INVALIDATE"
)

func (a Action) Valid() bool {
	switch a {
	case ActionIssue, ActionReissue, ActionInvalidate:
		return true
	}
	return false
}

// ActionLog records one administrative lifecycle action on a credential.
type ActionLog struct {
	ID           string
	Seq          int64
	CredentialID string
	Action       Action
	Actor        string
	Detail       string
	OccurredAt   time.Time
}

func NewActionLog(credentialID string, action Action, actor, detail string, at time.Time) *ActionLog {
	if actor == "" {
		actor = "system"
	}
	return &ActionLog{
		ID:           NewEventID(at),
		CredentialID: credentialID,
		Action:       action,
		Actor:        actor,
		Detail:       detail,
		OccurredAt:   at,
	}
}
