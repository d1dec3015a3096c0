package usecase

import (
	"context"
	"time"

	"gate-admission/internal/domain/ports/repository"
	"gate-admission/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	// ActiveCredentials counts credentials that are active and not yet expired.
	ActiveCredentials(ctx context.Context) (int, error)
	// Refresh recomputes the credential gauges.
	Refresh(ctx context.Context) error
}

type statsUC struct {
	creds repository.CredentialRepository
	now   func() time.Time

	log *zerolog.Logger
}

func NewStatsUseCase(creds repository.CredentialRepository, now func() time.Time, logger *zerolog.Logger) *statsUC {
	if now == nil {
		now = time.Now
	}
	lg := logger.With().Str("component", "stats_uc").Logger()
	return &statsUC{creds: creds, now: now, log: &lg}
}

func (s *statsUC) ActiveCredentials(ctx context.Context) (int, error) {
	return s.creds.CountActive(ctx, repository.NoTX, s.now().UTC())
}

func (s *statsUC) Refresh(ctx context.Context) error {
	n, err := s.ActiveCredentials(ctx)
	if err != nil {
		return err
	}
	metrics.SetCredentialsActive(n)
	s.log.Debug().Int("active", n).Msg("credential stats refreshed")
	return nil
}
