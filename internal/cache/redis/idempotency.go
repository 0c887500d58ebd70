package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sudo-init-do/timebank/internal/middleware"
)

// unlockLua deletes the lock only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// IdempotencyStore keeps replies for IdempotencyTTL and guards in-flight
// requests with a short SETNX lock.
type IdempotencyStore struct {
	rdb      *redis.Client
	ttl      time.Duration
	lockTTL  time.Duration
	unlockSc *redis.Script
}

// NewIdempotencyStore builds the store on c.
func NewIdempotencyStore(c *Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		rdb:      c.rdb,
		ttl:      ttl,
		lockTTL:  30 * time.Second,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func replyKey(key string) string { return "idem:reply:" + key }
func lockKey(key string) string  { return "idem:lock:" + key }

func (s *IdempotencyStore) Get(ctx context.Context, key string) (*middleware.CachedResponse, bool, error) {
	raw, err := s.rdb.Get(ctx, replyKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get reply: %w", err)
	}
	var resp middleware.CachedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false, fmt.Errorf("redis: decode reply: %w", err)
	}
	return &resp, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key string, resp middleware.CachedResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, replyKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save reply: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)
	ok, err := s.rdb.SetNX(ctx, lk, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", lk, err)
	}
	if !ok {
		return nil, middleware.ErrRequestInFlight
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.unlockSc.Run(unlockCtx, s.rdb, []string{lk}, token).Err()
	}, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
