package model

import (
	"strings"
	"time"

	"gate-admission/internal/domain"

	"github.com/google/uuid"
)

// Credential is one issued QR/manual code pair admitting a holder to an event ticket.
// Superseded and expired credentials are kept for audit; only Active ones admit.
type Credential struct {
	ID            string
	Holder        Holder
	EventTicketID string
	QRCode        string
	ManualCode    string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Active        bool
	Overrides     PolicyOverride
	SupersedesID  *string // Pointer to allow for NULL
}

// NewCredential builds an active credential. Codes are generated by the issuer.
func NewCredential(holder Holder, eventTicketID, qrCode, manualCode string, issuedAt, expiresAt time.Time) (*Credential, error) {
	eventTicketID = strings.TrimSpace(eventTicketID)
	if holder.IsZero() || eventTicketID == "" || qrCode == "" || manualCode == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !expiresAt.After(issuedAt) {
		return nil, domain.ErrInvalidArgument
	}
	return &Credential{
		ID:            uuid.NewString(),
		Holder:        holder,
		EventTicketID: eventTicketID,
		QRCode:        qrCode,
		ManualCode:    manualCode,
		IssuedAt:      issuedAt,
		ExpiresAt:     expiresAt,
		Active:        true,
	}, nil
}

// IsExpired reports whether now is past ExpiresAt.
func (c *Credential) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Admissible reports whether the credential may be evaluated by the admission table.
func (c *Credential) Admissible(now time.Time) bool {
	return c != nil && c.Active && !c.IsExpired(now)
}

// PairKey identifies the (holder, event ticket) pair that may own one active credential.
func (c *Credential) PairKey() string {
	return PairKey(c.Holder, c.EventTicketID)
}

func PairKey(h Holder, eventTicketID string) string {
	return h.String() + "|" + eventTicketID
}
