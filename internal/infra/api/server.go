package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gate-admission/internal/infra/logging"
	"gate-admission/internal/infra/metrics"
	red "gate-admission/internal/infra/redis"
	"gate-admission/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ScanLimiter caps scans per key and window.
type ScanLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	RequestTimeout time.Duration
	Limiter        ScanLimiter // nil disables scan rate limiting
	ScanRateLimit  int         // scans per gate per minute
	Now            func() time.Time
}

// Server exposes the admission engine and credential lifecycle over HTTP.
type Server struct {
	engine usecase.AdmissionEngine
	issuer usecase.CredentialIssuer
	auth   *AuthManager
	opts   Options
	log    *zerolog.Logger
}

func NewServer(
	engine usecase.AdmissionEngine,
	issuer usecase.CredentialIssuer,
	auth *AuthManager,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{engine: engine, issuer: issuer, auth: auth, opts: opts, log: &l}
}

// Router builds the handler tree. Scans are open to gate devices and rate
// limited per gate; lifecycle and audit routes require an operator token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.With(s.scanRateLimit()).Post("/scans", s.scanHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(s.auth))
			r.Post("/credentials", s.issueHandler)
			r.Get("/credentials/{identifier}", s.lookupHandler)
			r.Post("/credentials/{identifier}/reissue", s.reissueHandler)
			r.Post("/credentials/{identifier}/invalidate", s.invalidateHandler)
			r.Get("/credentials/{id}/history", s.historyHandler)
			r.Get("/credentials/{id}/actions", s.actionsHandler)
		})
	})

	return Chain(r, TraceID(), RequestLog(s.log), Recover(s.log))
}

// scanRateLimit fails open when the limiter backend errors, so a Redis outage
// never closes the gates.
func (s *Server) scanRateLimit() Middleware {
	return func(next http.Handler) http.Handler {
		if s.opts.Limiter == nil || s.opts.ScanRateLimit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate := strings.TrimSpace(r.Header.Get(HeaderGateID))
			key := red.GateScanKey(gate, time.Minute, s.opts.Now())
			ok, err := s.opts.Limiter.Allow(r.Context(), key, s.opts.ScanRateLimit, time.Minute)
			if err != nil {
				l := logging.With(r.Context(), s.log)
				l.Warn().Err(err).Msg("scan rate limiter unavailable")
				metrics.IncRateLimit("error")
			} else if !ok {
				metrics.IncRateLimit("limited")
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many scans", Outcome: usecase.OutcomeTryAgain})
				return
			}
			if err == nil {
				metrics.IncRateLimit("allowed")
			}
			next.ServeHTTP(w, r)
		})
	}
}
