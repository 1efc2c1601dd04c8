package store

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreForTest(t *testing.T) *RedisStore {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:credentials")
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"redis":  newRedisStoreForTest(t),
	}
}

func TestStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("expected ErrKeyNotFound for missing key, got %v", err)
			}
			if err := s.Set(ctx, "k", "v1"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := s.Set(ctx, "k", "v2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, err := s.Get(ctx, "k")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if v != "v2" {
				t.Fatalf("expected last write to win, got %q", v)
			}
			if err := s.Remove(ctx, "k"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrKeyNotFound) {
				t.Fatalf("expected miss after remove, got %v", err)
			}
		})
	}
}

func TestStoreClearRemovesAllKeys(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"a", "b", "c"} {
				if err := s.Set(ctx, k, "x"); err != nil {
					t.Fatalf("set %s: %v", k, err)
				}
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("clear: %v", err)
			}
			for _, k := range []string{"a", "b", "c"} {
				if _, err := s.Get(ctx, k); !errors.Is(err, ErrKeyNotFound) {
					t.Fatalf("expected %s cleared, got %v", k, err)
				}
			}
		})
	}
}
