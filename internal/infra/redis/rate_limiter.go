package redis

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RateLimiter counts hits per key in fixed windows. Keys are expected to carry
// the window start (see GateScanKey), so a key outliving its TTL is harmless.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether the hit at key stays within limit for the window.
// A non-positive limit allows everything without touching Redis.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	// The first hit opens the window. The first rejected hit sets it again in
	// case the opening EXPIRE was lost, so a key can never pin a gate shut.
	if count == 1 || count == int64(limit)+1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(limit), nil
}

const maxGateKeyLen = 64

// GateScanKey buckets scans per gate and window start. Anonymous gates share
// the "_" bucket.
func GateScanKey(gateID string, window time.Duration, now time.Time) string {
	gateID = strings.Map(func(r rune) rune {
		if r == ':' || r == ' ' || r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(gateID))
	if gateID == "" {
		gateID = "_"
	}
	if len(gateID) > maxGateKeyLen {
		gateID = gateID[:maxGateKeyLen]
	}
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return fmt.Sprintf("rate_limit:scan:%s:%d", gateID, now.Unix()/secs)
}
