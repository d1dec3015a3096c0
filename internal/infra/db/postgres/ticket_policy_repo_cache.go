package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/domain/ports/adapter"
	"gate-admission/internal/infra/metrics"
	red "gate-admission/internal/infra/redis"
)

var _ adapter.TicketPolicyStore = (*ticketPolicyCacheDecorator)(nil)

// cachedPolicy also records misses so tickets without a policy row do not hit the database every scan.
type cachedPolicy struct {
	Found  bool                   `json:"found"`
	Policy model.AttendancePolicy `json:"policy"`
}

type ticketPolicyCacheDecorator struct {
	inner adapter.TicketPolicyStore
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewTicketPolicyCacheDecorator(inner adapter.TicketPolicyStore, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) *ticketPolicyCacheDecorator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	lg := logger.With().Str("component", "ticket_policy_cache").Logger()
	return &ticketPolicyCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &lg}
}

func ticketPolicyKey(eventTicketID string) string { return "ticket_policy:" + eventTicketID }

func (d *ticketPolicyCacheDecorator) DefaultsFor(ctx context.Context, eventTicketID string) (model.AttendancePolicy, error) {
	key := ticketPolicyKey(eventTicketID)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var cp cachedPolicy
		if json.Unmarshal([]byte(val), &cp) == nil {
			metrics.IncCacheRequest("ticket_policy", "hit")
			if !cp.Found {
				return model.AttendancePolicy{}, domain.ErrNotFound
			}
			return cp.Policy, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble degrades to the database, it never fails a scan.
		d.log.Warn().Err(err).Str("key", key).Msg("ticket policy cache read failed")
		metrics.IncCacheRequest("ticket_policy", "error")
	} else {
		metrics.IncCacheRequest("ticket_policy", "miss")
	}

	p, err := d.inner.DefaultsFor(ctx, eventTicketID)
	switch {
	case err == nil:
		d.store(ctx, key, cachedPolicy{Found: true, Policy: p})
	case errors.Is(err, domain.ErrNotFound):
		d.store(ctx, key, cachedPolicy{Found: false})
	}
	return p, err
}

// Invalidate drops the cached entry after the ticket policy changed.
func (d *ticketPolicyCacheDecorator) Invalidate(ctx context.Context, eventTicketID string) error {
	return d.cache.Del(ctx, ticketPolicyKey(eventTicketID))
}

func (d *ticketPolicyCacheDecorator) store(ctx context.Context, key string, cp cachedPolicy) {
	bytes, _ := json.Marshal(cp)
	if err := d.cache.Set(ctx, key, bytes, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("ticket policy cache write failed")
	}
}
