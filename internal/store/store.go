package store

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the device-local durable key-value storage consumed by the
// runtime. Reads are last-writer-wins with no cross-subsystem locking;
// writes are rare (login, logout, daily verification) relative to reads.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
