package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sudo-init-do/timebank/internal/middleware"
)

func testStore(t *testing.T) *IdempotencyStore {
	t.Helper()
	addr := os.Getenv("TIMEBANK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TIMEBANK_TEST_REDIS_ADDR not set")
	}
	c := NewFromClient(redis.NewClient(&redis.Options{Addr: addr}))
	if err := c.Ping(context.Background()); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return NewIdempotencyStore(c, time.Minute)
}

func TestIdempotencyStoreRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Fatalf("fresh key: ok=%v err=%v", ok, err)
	}
	want := middleware.CachedResponse{Status: 201, ContentType: "application/json", Body: []byte(`{"id":"h1"}`), Fingerprint: "abc123"}
	if err := s.Save(ctx, key, want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Status != want.Status || string(got.Body) != string(want.Body) || got.Fingerprint != want.Fingerprint {
		t.Fatalf("got %+v", got)
	}
}

func TestIdempotencyLock(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	release, err := s.Acquire(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Acquire(ctx, key); !errors.Is(err, middleware.ErrRequestInFlight) {
		t.Fatalf("expected ErrRequestInFlight, got %v", err)
	}
	release()
	release()
	again, err := s.Acquire(ctx, key)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	again()
}
