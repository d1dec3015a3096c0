// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// Messenger delivers plain-text operator notices to a chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}
