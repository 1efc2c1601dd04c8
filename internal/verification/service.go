package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shiftsense/client-core/internal/api"
	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/observability"
)

// RemoteAPI is the slice of the remote service the verification flow uses.
type RemoteAPI interface {
	VerificationRequired(ctx context.Context) (*api.VerificationStatus, error)
	RegisterFace(ctx context.Context, faceImageData string) (*api.FaceResult, error)
	VerifyFace(ctx context.Context, faceImageData string) (*api.FaceResult, error)
}

// Service answers "is the user verified today" from the local cache first,
// then the backend. When the backend is unreachable the answer follows the
// configured degradation mode: fail open assumes the user is fine rather
// than blocking check-in on an infrastructure gap, fail closed returns the
// error to the caller.
type Service struct {
	cache    *Cache
	remote   RemoteAPI
	failOpen bool
	logger   *slog.Logger
	now      func() time.Time

	group singleflight.Group
}

func NewService(cache *Cache, remote RemoteAPI, failOpen bool, logger *slog.Logger) *Service {
	return &Service{cache: cache, remote: remote, failOpen: failOpen, logger: logger, now: time.Now}
}

func (s *Service) Status(ctx context.Context) (*domain.VerificationRecord, error) {
	record, err := s.cache.TodayStatus(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "verification cache read failed", "error", err)
	}
	if record != nil {
		observability.RecordVerificationCheck(ctx, "cache", "hit")
		return record, nil
	}

	v, err, _ := s.group.Do("status", func() (any, error) {
		return s.remote.VerificationRequired(ctx)
	})
	if err != nil {
		return s.degrade(ctx, err)
	}
	status := v.(*api.VerificationStatus)
	observability.RecordVerificationCheck(ctx, "remote", "ok")
	record = &domain.VerificationRecord{
		Date:       s.now().Format(domain.VerificationDateLayout),
		Verified:   status.VerifiedToday,
		Registered: status.FaceRegistered,
	}
	if status.VerifiedToday {
		if err := s.cache.SetVerified(ctx, status.FaceRegistered); err != nil {
			s.logger.WarnContext(ctx, "verification cache write failed", "error", err)
		}
	}
	return record, nil
}

// degrade applies the fail-open rule for unreachable backends and server
// errors. Request-level rejections (4xx) are real answers and always
// propagate.
func (s *Service) degrade(ctx context.Context, cause error) (*domain.VerificationRecord, error) {
	var apiErr *api.APIError
	if errors.As(cause, &apiErr) && !apiErr.IsServerError() {
		observability.RecordVerificationCheck(ctx, "remote", "rejected")
		return nil, cause
	}
	if !s.failOpen {
		observability.RecordVerificationCheck(ctx, "remote", "fail_closed")
		return nil, cause
	}
	s.logger.WarnContext(ctx, "verification backend unavailable, failing open", "error", cause)
	observability.RecordVerificationCheck(ctx, "remote", "fail_open")
	return &domain.VerificationRecord{
		Date:       s.now().Format(domain.VerificationDateLayout),
		Verified:   true,
		Registered: true,
	}, nil
}

// CompleteVerification submits a face image for today's verification and
// writes the cache on success.
func (s *Service) CompleteVerification(ctx context.Context, faceImageData string) (*api.FaceResult, error) {
	result, err := s.remote.VerifyFace(ctx, faceImageData)
	if err != nil {
		return nil, err
	}
	if result.Success {
		if err := s.cache.SetVerified(ctx, true); err != nil {
			s.logger.WarnContext(ctx, "verification cache write failed", "error", err)
		}
	}
	return result, nil
}

// RegisterFace enrolls the user's face. Registration counts as today's
// verification, so the cache is written on success.
func (s *Service) RegisterFace(ctx context.Context, faceImageData string) (*api.FaceResult, error) {
	result, err := s.remote.RegisterFace(ctx, faceImageData)
	if err != nil {
		return nil, err
	}
	if result.Success {
		if err := s.cache.SetVerified(ctx, true); err != nil {
			s.logger.WarnContext(ctx, "verification cache write failed", "error", err)
		}
	}
	return result, nil
}
