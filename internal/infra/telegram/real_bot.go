package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"gate-admission/internal/config"
	"gate-admission/internal/domain/ports/adapter"
)

var _ adapter.Messenger = (*RealTelegramBotAdapter)(nil)

// sender is the subset of *tgbotapi.BotAPI the adapter needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RealTelegramBotAdapter implements adapter.Messenger using tgbotapi.
type RealTelegramBotAdapter struct {
	bot sender
	log *zerolog.Logger
}

// NewRealTelegramBotAdapter authenticates against the Bot API with cfg.Token.
func NewRealTelegramBotAdapter(cfg *config.TelegramConfig, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, logger), nil
}

func newAdapter(bot sender, logger *zerolog.Logger) *RealTelegramBotAdapter {
	lg := logger.With().Str("component", "telegram").Logger()
	return &RealTelegramBotAdapter{bot: bot, log: &lg}
}

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	// Support early cancellation
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := r.bot.Send(msg); err != nil {
		r.log.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
		return err
	}
	return nil
}
