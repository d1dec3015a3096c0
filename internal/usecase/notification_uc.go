package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.NotificationSink = (*notificationUC)(nil)

// notificationUC tells the operations chat about reissued credentials so gate
// staff know the old code stops working.
type notificationUC struct {
	messenger adapter.Messenger
	chatID    int64
	log       *zerolog.Logger
}

func NewNotificationUseCase(messenger adapter.Messenger, chatID int64, logger *zerolog.Logger) *notificationUC {
	lg := logger.With().Str("component", "notification_uc").Logger()
	return &notificationUC{messenger: messenger, chatID: chatID, log: &lg}
}

func (n *notificationUC) OnReissued(ctx context.Context, previous, current *model.Credential) error {
	if current == nil {
		return nil
	}
	text := renderReissued(previous, current)
	if err := n.messenger.SendMessage(ctx, n.chatID, text); err != nil {
		return fmt.Errorf("send reissue notice for %s: %w", current.ID, err)
	}
	n.log.Debug().Str("credential_id", current.ID).Msg("reissue notice sent")
	return nil
}

// renderReissued never includes codes: the chat is not a secure channel.
func renderReissued(previous, current *model.Credential) string {
	var b strings.Builder
	b.WriteString("Credential reissued\n")
	fmt.Fprintf(&b, "Holder: %s\n", current.Holder)
	fmt.Fprintf(&b, "Ticket: %s\n", current.EventTicketID)
	if previous != nil {
		fmt.Fprintf(&b, "Revoked: %s\n", previous.ID)
	}
	fmt.Fprintf(&b, "Current: %s\n", current.ID)
	fmt.Fprintf(&b, "Valid until: %s", current.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}
