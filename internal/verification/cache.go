package verification

import (
	"context"
	"errors"
	"time"

	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/store"
)

// Cache is the date-scoped record of today's face-verification status,
// kept in the credential store. It is synchronous and local; the remote
// verification flow writes through it.
type Cache struct {
	creds *store.CredentialStore
	now   func() time.Time
}

type CacheOption func(*Cache)

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(creds *store.CredentialStore, opts ...CacheOption) *Cache {
	c := &Cache{creds: creds, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TodayStatus returns today's record, or nil on a miss. A stored record
// from a previous calendar day is a miss, not stale data: callers must
// then consult the remote endpoint.
func (c *Cache) TodayStatus(ctx context.Context) (*domain.VerificationRecord, error) {
	record, err := c.creds.Verification(ctx)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !record.CurrentFor(c.now()) {
		return nil, nil
	}
	return record, nil
}

// SetVerified stamps today's date, overwriting any prior record. The
// record is never deleted; the next day's read naturally supersedes it.
func (c *Cache) SetVerified(ctx context.Context, registered bool) error {
	return c.creds.SetVerification(ctx, &domain.VerificationRecord{
		Date:       c.now().Format(domain.VerificationDateLayout),
		Verified:   true,
		Registered: registered,
	})
}
