package model

import (
	"strings"

	"gate-admission/internal/domain"
)

type HolderKind string

const (
	HolderKindMember HolderKind = "member"
	HolderKindGuest  HolderKind = "guest"
)

// Holder identifies who a credential admits: either a member or a guest, never both.
// The fields are unexported so a Holder can only be built through MemberHolder,
// GuestHolder or ParseHolder.
type Holder struct {
	kind HolderKind
	id   string
}

func MemberHolder(memberID string) (Holder, error) {
	return newHolder(HolderKindMember, memberID)
}

func GuestHolder(guestToken string) (Holder, error) {
	return newHolder(HolderKindGuest, guestToken)
}

// ParseHolder rebuilds a Holder from its stored kind and id.
func ParseHolder(kind, id string) (Holder, error) {
	return newHolder(HolderKind(strings.ToLower(strings.TrimSpace(kind))), id)
}

func newHolder(kind HolderKind, id string) (Holder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Holder{}, domain.ErrInvalidHolder
	}
	switch kind {
	case HolderKindMember, HolderKindGuest:
		return Holder{kind: kind, id: id}, nil
	default:
		return Holder{}, domain.ErrInvalidHolder
	}
}

func (h Holder) Kind() HolderKind { return h.kind }
func (h Holder) ID() string       { return h.id }
func (h Holder) IsZero() bool     { return h.kind == "" }

// MemberID returns the member id and true for member holders.
func (h Holder) MemberID() (string, bool) {
	if h.kind != HolderKindMember {
		return "", false
	}
	return h.id, true
}

// GuestToken returns the guest token and true for guest holders.
func (h Holder) GuestToken() (string, bool) {
	if h.kind != HolderKindGuest {
		return "", false
	}
	return h.id, true
}

func (h Holder) String() string {
	if h.IsZero() {
		return ""
	}
	return string(h.kind) + ":" + h.id
}
