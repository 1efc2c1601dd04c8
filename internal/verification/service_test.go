package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shiftsense/client-core/internal/api"
	"github.com/shiftsense/client-core/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRemote struct {
	status      *api.VerificationStatus
	statusErr   error
	statusCalls atomic.Int32
	verify      *api.FaceResult
	verifyErr   error
	register    *api.FaceResult

	block chan struct{}
}

func (f *fakeRemote) VerificationRequired(context.Context) (*api.VerificationStatus, error) {
	f.statusCalls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.status, f.statusErr
}

func (f *fakeRemote) VerifyFace(context.Context, string) (*api.FaceResult, error) {
	return f.verify, f.verifyErr
}

func (f *fakeRemote) RegisterFace(context.Context, string) (*api.FaceResult, error) {
	return f.register, nil
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	return NewCache(store.NewCredentialStore(store.NewInMemoryStore()))
}

func TestStatusPrefersCache(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	if err := cache.SetVerified(ctx, true); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	remote := &fakeRemote{statusErr: errors.New("should not be called")}
	svc := NewService(cache, remote, true, testLogger())

	record, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !record.Verified {
		t.Fatalf("unexpected record %+v", record)
	}
	if remote.statusCalls.Load() != 0 {
		t.Fatal("cache hit must suppress the remote call")
	}
}

func TestStatusFetchesRemoteOnMissAndCachesVerified(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	remote := &fakeRemote{status: &api.VerificationStatus{FaceRegistered: true, VerifiedToday: true}}
	svc := NewService(cache, remote, true, testLogger())

	record, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !record.Verified || !record.Registered {
		t.Fatalf("unexpected record %+v", record)
	}
	if cached, _ := cache.TodayStatus(ctx); cached == nil {
		t.Fatal("verified remote answer should be written through to the cache")
	}
}

func TestStatusDoesNotCacheUnverifiedAnswer(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	remote := &fakeRemote{status: &api.VerificationStatus{FaceRegistered: true, VerifiedToday: false}}
	svc := NewService(cache, remote, true, testLogger())

	record, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if record.Verified {
		t.Fatalf("unexpected record %+v", record)
	}
	if cached, _ := cache.TodayStatus(ctx); cached != nil {
		t.Fatal("an unverified answer must not be cached")
	}
}

func TestStatusFailsOpenOnBackendOutage(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{statusErr: &api.APIError{Status: http.StatusBadGateway, Code: "BAD_GATEWAY"}}
	svc := NewService(newCache(t), remote, true, testLogger())

	record, err := svc.Status(ctx)
	if err != nil {
		t.Fatalf("fail-open status: %v", err)
	}
	if !record.Verified || !record.Registered {
		t.Fatalf("fail open should assume verified and registered, got %+v", record)
	}
}

func TestStatusFailsClosedWhenConfigured(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{statusErr: errors.New("dial tcp: connection refused")}
	svc := NewService(newCache(t), remote, false, testLogger())

	if _, err := svc.Status(ctx); err == nil {
		t.Fatal("fail-closed must surface the backend error")
	}
}

func TestStatusPropagatesRequestRejections(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{statusErr: &api.APIError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED"}}
	svc := NewService(newCache(t), remote, true, testLogger())

	_, err := svc.Status(ctx)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("a 4xx answer must propagate even when failing open, got %v", err)
	}
}

func TestConcurrentStatusCallsShareOneRemoteFetch(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{
		status: &api.VerificationStatus{FaceRegistered: true, VerifiedToday: false},
		block:  make(chan struct{}),
	}
	svc := NewService(newCache(t), remote, true, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Status(ctx)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(remote.block)
	wg.Wait()
	if got := remote.statusCalls.Load(); got != 1 {
		t.Fatalf("expected one deduplicated remote fetch, got %d", got)
	}
}

func TestCompleteVerificationWritesCacheOnSuccess(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	remote := &fakeRemote{verify: &api.FaceResult{Success: true, Message: "matched"}}
	svc := NewService(cache, remote, true, testLogger())

	result, err := svc.CompleteVerification(ctx, "img-data")
	if err != nil {
		t.Fatalf("complete verification: %v", err)
	}
	if !result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if cached, _ := cache.TodayStatus(ctx); cached == nil || !cached.Verified {
		t.Fatal("successful verification should write the cache")
	}
}

func TestCompleteVerificationFailureLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)
	remote := &fakeRemote{verify: &api.FaceResult{Success: false, Message: "no match"}}
	svc := NewService(cache, remote, true, testLogger())

	result, err := svc.CompleteVerification(ctx, "img-data")
	if err != nil {
		t.Fatalf("complete verification: %v", err)
	}
	if result.Success {
		t.Fatalf("unexpected result %+v", result)
	}
	if cached, _ := cache.TodayStatus(ctx); cached != nil {
		t.Fatal("failed verification must not write the cache")
	}
}
