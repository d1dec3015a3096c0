//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"gate-admission/internal/config"
)

func TestWith(t *testing.T) {
	t.Run("should attach trace, gate and actor fields from context", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewWriter(&buf, config.LogConfig{Level: "info", Format: "json"}, false)

		ctx := WithTraceID(context.Background(), "tr-1")
		ctx = WithGateID(ctx, "north-1")
		ctx = WithActor(ctx, "ops@example.org")
		With(ctx, base).Info().Msg("hello")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
		}
		for k, want := range map[string]string{"trace_id": "tr-1", "gate_id": "north-1", "actor": "ops@example.org"} {
			if line[k] != want {
				t.Errorf("expected %s=%q, got %v", k, want, line[k])
			}
		}
	})

	t.Run("should respect the configured level", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewWriter(&buf, config.LogConfig{Level: "warn", Format: "json"}, false)
		base.Info().Msg("dropped")
		if buf.Len() != 0 {
			t.Fatalf("expected info to be filtered, got %q", buf.String())
		}
	})
}

func TestRedact(t *testing.T) {
	if got := Redact("ABCD-EFGH", true); got != "ABCD-EFGH" {
		t.Errorf("dev mode should not redact, got %q", got)
	}
	if got := Redact("ABCD-EFG", false); got != "***" {
		t.Errorf("short values should be masked, got %q", got)
	}
	if got := Redact("ABCDEFGHIJKLMNOP", false); got != "ABCD...OP" {
		t.Errorf("unexpected preview %q", got)
	}
}
