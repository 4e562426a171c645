package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key prefixes for session state and session leases.
const (
	KeyPrefix   = "nudge:session:"
	LeasePrefix = "nudge:lease:"
)

// DefaultTTL is how long an idle session survives in Redis.
const DefaultTTL = 30 * time.Minute

// Lease timing. A lease outlives a crashed holder by at most LeaseTTL.
const (
	LeaseTTL   = 5 * time.Second
	LeaseWait  = 2 * time.Second
	leaseRetry = 10 * time.Millisecond
)

// ErrLeaseTimeout is returned when another holder keeps a session lease past
// LeaseWait.
var ErrLeaseTimeout = errors.New("session lease timeout")

// releaseLease deletes the lease only if the caller still owns it.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis stores sessions as JSON with a sliding TTL. Engine processes sharing
// one Redis serialize each session through Lease.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Connect builds a Redis client from a redis:// URL or a host:port address.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// NewRedis wraps client. A non-positive ttl uses DefaultTTL.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func key(id string) string {
	return KeyPrefix + id
}

func leaseKey(id string) string {
	return LeasePrefix + id
}

// Lease takes the cross-process lock for a session, retrying until LeaseWait
// or ctx runs out. The returned func releases it.
func (r *Redis) Lease(ctx context.Context, id string) (func() error, error) {
	token := uuid.NewString()
	k := leaseKey(id)
	wait, cancel := context.WithTimeout(ctx, LeaseWait)
	defer cancel()

	for {
		ok, err := r.client.SetNX(wait, k, token, LeaseTTL).Result()
		if err != nil && wait.Err() == nil {
			return nil, fmt.Errorf("lease session %s: %w", id, err)
		}
		if ok {
			return func() error {
				rctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := releaseLease.Run(rctx, r.client, []string{k}, token).Err(); err != nil {
					return fmt.Errorf("release lease %s: %w", id, err)
				}
				return nil
			}, nil
		}
		select {
		case <-wait.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("lease session %s: %w", id, ErrLeaseTimeout)
		case <-time.After(leaseRetry):
		}
	}
}

func (r *Redis) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *Redis) Put(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, key(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("put session %s: %w", s.ID, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
