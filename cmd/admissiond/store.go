package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gate-admission/internal/config"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/domain/ports/repository"
	"gate-admission/internal/infra/db/memory"
	"gate-admission/internal/infra/db/migrations"
	pg "gate-admission/internal/infra/db/postgres"
	"gate-admission/internal/infra/db/sqlite"
	red "gate-admission/internal/infra/redis"

	"github.com/rs/zerolog"
)

// stores is the driver-independent view of the credential store.
type stores struct {
	creds     repository.CredentialRepository
	events    repository.CheckEventRepository
	actions   repository.ActionLogRepository
	tm        repository.TransactionManager
	directory adapter.HolderDirectory
	policies  adapter.TicketPolicyStore

	addHolder func(ctx context.Context, ref string, h model.Holder) error
	setPolicy func(ctx context.Context, eventTicketID string, p model.AttendancePolicy) error

	poolStats func()
	close     func()
}

// openStores opens the configured driver. cache may be nil.
func openStores(ctx context.Context, cfg *config.Config, cache red.RedisClient, logger *zerolog.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		if cache != nil {
			logger.Info().Msg("memory driver keeps ticket policies in process; redis policy cache not used")
		}
		store := memory.NewStore(cfg.Admission.LockTimeout)
		dir := memory.NewDirectory()
		policies := memory.NewTicketPolicies()
		return &stores{
			creds:     store.Credentials(),
			events:    store.CheckEvents(),
			actions:   store.ActionLogs(),
			tm:        store,
			directory: dir,
			policies:  policies,
			addHolder: func(_ context.Context, ref string, h model.Holder) error {
				dir.Add(ref, h)
				return nil
			},
			setPolicy: func(_ context.Context, id string, p model.AttendancePolicy) error {
				policies.Set(id, p)
				return nil
			},
			close: func() {},
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		writer := sqlite.NewWorker(db, cfg.Admission.LockTimeout)
		dir := sqlite.NewHolderDirectory(db)
		policies := sqlite.NewTicketPolicies(db)
		s := &stores{
			creds:     sqlite.NewCredentialRepo(db),
			events:    sqlite.NewCheckEventRepo(db),
			actions:   sqlite.NewActionLogRepo(db),
			tm:        writer,
			directory: dir,
			policies:  policies,
			addHolder: dir.Upsert,
			setPolicy: policies.Save,
			close: func() {
				writer.Close()
				_ = db.Close()
			},
		}
		cachePolicies(s, policies, policies.Save, cache, cfg.Redis.TTL, logger)
		return s, nil

	case config.DriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := migrations.Postgres(cfg.Database.URL, migrations.DirectionUp); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		dir := pg.NewHolderDirectory(pool)
		repo := pg.NewTicketPolicyRepo(pool)
		s := &stores{
			creds:     pg.NewCredentialRepo(pool),
			events:    pg.NewCheckEventRepo(pool),
			actions:   pg.NewActionLogRepo(pool),
			tm:        pg.NewTxManager(pool, cfg.Admission.LockTimeout),
			directory: dir,
			policies:  repo,
			addHolder: dir.Upsert,
			setPolicy: repo.Save,
			poolStats: func() { pg.ReportPoolStats(pool) },
			close:     pool.Close,
		}
		cachePolicies(s, repo, repo.Save, cache, cfg.Redis.TTL, logger)
		return s, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// cachePolicies puts the Redis policy cache in front of a database-backed
// policy store. Saves go to the database first, then drop the cached entry.
func cachePolicies(
	s *stores,
	inner adapter.TicketPolicyStore,
	save func(ctx context.Context, eventTicketID string, p model.AttendancePolicy) error,
	cache red.RedisClient,
	ttl time.Duration,
	logger *zerolog.Logger,
) {
	if cache == nil {
		return
	}
	cached := pg.NewTicketPolicyCacheDecorator(inner, cache, ttl, logger)
	s.policies = cached
	s.setPolicy = func(ctx context.Context, id string, p model.AttendancePolicy) error {
		if err := save(ctx, id, p); err != nil {
			return err
		}
		return cached.Invalidate(ctx, id)
	}
}

// seedFixtures loads the configured holders and ticket policies into the store.
func seedFixtures(ctx context.Context, s *stores, fx config.FixturesConfig) error {
	refs := make([]string, 0, len(fx.Holders))
	for ref := range fx.Holders {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		kind, id, ok := strings.Cut(fx.Holders[ref], ":")
		if !ok {
			return fmt.Errorf("fixture holder %q: want kind:id, got %q", ref, fx.Holders[ref])
		}
		h, err := model.ParseHolder(kind, id)
		if err != nil {
			return fmt.Errorf("fixture holder %q: %w", ref, err)
		}
		if err := s.addHolder(ctx, ref, h); err != nil {
			return fmt.Errorf("fixture holder %q: %w", ref, err)
		}
	}
	for id, p := range fx.Policies {
		if err := s.setPolicy(ctx, id, toPolicy(p)); err != nil {
			return fmt.Errorf("fixture policy %q: %w", id, err)
		}
	}
	return nil
}

func toPolicy(p config.PolicyConfig) model.AttendancePolicy {
	return model.AttendancePolicy{
		CheckInAllowed:  p.CheckInAllowed,
		CheckOutAllowed: p.CheckOutAllowed,
		ReentryAllowed:  p.ReentryAllowed,
	}
}
