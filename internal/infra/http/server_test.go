//go:build !integration

package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"gate-admission/internal/config"

	"github.com/rs/zerolog"
)

func TestServer_Lifecycle(t *testing.T) {
	t.Run("should serve and stop cleanly on shutdown", func(t *testing.T) {
		logger := zerolog.New(io.Discard)
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("OK"))
		})
		srv := NewServer(config.HTTPConfig{RequestTimeout: time.Second, ShutdownTimeout: time.Second}, handler, &logger)

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != "OK" {
			t.Fatalf("expected OK, got %q", body)
		}

		if err := srv.Shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected nil after shutdown, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("server did not stop")
		}
	})
}
