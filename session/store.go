package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable reports that the backing Redis could not be reached or
// returned a transport-level error. Callers map it onto their own
// availability policy.
var ErrUnavailable = errors.New("revocation store unavailable")

// Revocation records shorter than this are clamped up so a token revoked in
// its final milliseconds still leaves a record behind.
const minRecordTTL = time.Second

// Store tracks revoked and consumed token IDs in Redis. Safe for concurrent
// use; all state lives in Redis.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewStore wraps the given client. prefix namespaces every key; timeout
// bounds each Redis call on top of the caller's context (zero disables the
// per-call deadline).
func NewStore(client redis.UniversalClient, prefix string, timeout time.Duration) *Store {
	return &Store{
		redis:   client,
		prefix:  prefix,
		timeout: timeout,
	}
}

func (s *Store) revokeKey(jti string) string {
	return s.prefix + ":rvk:" + jti
}

func (s *Store) useKey(jti string) string {
	return s.prefix + ":use:" + jti
}

func (s *Store) indexKey(principalID string) string {
	return s.prefix + ":idx:" + principalID
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Revoke writes a revocation record for the token ID that outlives the
// token itself. ttl is the token's remaining validity; non-positive means
// the token is already dead and there is nothing to record.
func (s *Store) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if ttl < minRecordTTL {
		ttl = minRecordTTL
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.Set(ctx, s.revokeKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether a revocation record exists for the token ID.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	n, err := s.redis.Exists(ctx, s.revokeKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Consume atomically marks a one-time token as used. Exactly one caller per
// jti observes won == true; every later call loses. The marker carries the
// token's remaining validity so it disappears when replay becomes
// impossible anyway.
func (s *Store) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if ttl < minRecordTTL {
		ttl = minRecordTTL
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	won, err := s.redis.SetNX(ctx, s.useKey(jti), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return won, nil
}

// IndexRefresh adds a refresh jti to the principal's live set. The set's TTL
// is pushed out to the refresh lifetime on every write, so it dies with the
// last live token.
func (s *Store) IndexRefresh(ctx context.Context, principalID, jti string, ttl time.Duration) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := s.indexKey(principalID)
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, jti)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Unindex removes a refresh jti from the principal's live set. Missing
// members are fine; rotation and logout race benignly here.
func (s *Store) Unindex(ctx context.Context, principalID, jti string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.redis.SRem(ctx, s.indexKey(principalID), jti).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// RevokeAllForPrincipal revokes every indexed refresh token for the
// principal and clears the index.
//
// Not fully atomic: a refresh token issued between the SMembers read and the
// pipelined writes is not captured. The issuing call re-indexes it, so it is
// caught by the next invocation; within one request flow the engine orders
// these calls so the race cannot grant access.
func (s *Store) RevokeAllForPrincipal(ctx context.Context, principalID string, ttl time.Duration) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	key := s.indexKey(principalID)
	jtis, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if ttl < minRecordTTL {
		ttl = minRecordTTL
	}

	pipe := s.redis.TxPipeline()
	for _, jti := range jtis {
		pipe.Set(ctx, s.revokeKey(jti), "1", ttl)
	}
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return len(jtis), nil
}

// Ping verifies connectivity and reports the round-trip time.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
