package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"gate-admission/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs messages instead of sending them. Used when no bot token is configured.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	lg := logger.With().Str("component", "noop_telegram").Logger()
	return &NoopBotAdapter{log: &lg}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("notice (not sent)")
	return nil
}
