package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/huddle/internal/platform/timeouts"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "huddle:revoked:"

// RedisConfig configures the shared registry.
type RedisConfig struct {
	Client    redis.UniversalClient
	KeyPrefix string
	// OpTimeout caps each round trip; zero uses timeouts.RedisOp.
	OpTimeout time.Duration
}

// Redis is a Registry shared across processes through Redis.
//
// Keys hash the token so raw credentials never sit in the keyspace, and
// expire at the token's own expiry, so no sweep is needed.
type Redis struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

var _ Registry = (*Redis)(nil)

// NewRedis wraps an existing client.
func NewRedis(cfg RedisConfig) *Redis {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = timeouts.RedisOp
	}
	return &Redis{client: cfg.Client, prefix: prefix, opTimeout: cfg.OpTimeout}
}

func (r *Redis) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Revoke stores the token marker expiring at the token's own expiry. Tokens
// already past expiry are skipped since verification rejects them anyway.
// Failures are logged; callers have no recovery path at logout time.
func (r *Redis) Revoke(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	key := r.key(token)
	pipe := r.client.TxPipeline()
	pipe.SetArgs(ctx, key, "1", redis.SetArgs{Mode: "NX", ExpireAt: expiresAt})
	// GT keeps the later expiry when the token is revoked twice.
	pipe.ExpireGT(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("revocation: redis revoke failed key=%q err=%v", key, err)
	}
}

// IsRevoked fails closed: when Redis cannot answer, the token is treated as
// revoked.
func (r *Redis) IsRevoked(ctx context.Context, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		log.Printf("revocation: redis lookup failed, treating token as revoked: %v", err)
		return true
	}
	return n > 0
}
