//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gate-admission/internal/domain/model"
	"gate-admission/internal/usecase"
)

type mockMessenger struct {
	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
}

func (m *mockMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	return m.SendMessageFunc(ctx, chatID, text)
}

func TestNotificationUseCase(t *testing.T) {
	ctx := context.Background()
	testLogger := newTestLogger()

	holder, _ := model.MemberHolder("m-77")
	at := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	previous, _ := model.NewCredential(holder, "ticket-gala", "QROLD", "AAAA-AAAA", at, at.Add(24*time.Hour))
	current, _ := model.NewCredential(holder, "ticket-gala", "QRNEW", "BBBB-BBBB", at, at.Add(24*time.Hour))

	t.Run("should send a notice to the operations chat", func(t *testing.T) {
		var gotChat int64
		var gotText string
		m := &mockMessenger{SendMessageFunc: func(ctx context.Context, chatID int64, text string) error {
			gotChat, gotText = chatID, text
			return nil
		}}
		uc := usecase.NewNotificationUseCase(m, -1001, testLogger)

		if err := uc.OnReissued(ctx, previous, current); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if gotChat != -1001 {
			t.Errorf("expected chat -1001, got %d", gotChat)
		}
		for _, want := range []string{"member:m-77", "ticket-gala", previous.ID, current.ID, "2026-05-02 18:00 UTC"} {
			if !strings.Contains(gotText, want) {
				t.Errorf("expected notice to contain %q, got:\n%s", want, gotText)
			}
		}
		for _, secret := range []string{"QRNEW", "BBBB-BBBB", "AAAA-AAAA"} {
			if strings.Contains(gotText, secret) {
				t.Errorf("notice must not leak code %q", secret)
			}
		}
	})

	t.Run("should return delivery errors", func(t *testing.T) {
		boom := errors.New("telegram down")
		m := &mockMessenger{SendMessageFunc: func(ctx context.Context, chatID int64, text string) error { return boom }}
		uc := usecase.NewNotificationUseCase(m, 1, testLogger)

		if err := uc.OnReissued(ctx, previous, current); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped delivery error, got %v", err)
		}
	})
}
