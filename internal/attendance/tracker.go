package attendance

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shiftsense/client-core/internal/api"
	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/fanout"
	"github.com/shiftsense/client-core/internal/observability"
)

type PermissionState string

const (
	PermissionGranted      PermissionState = "granted"
	PermissionDenied       PermissionState = "denied"
	PermissionUndetermined PermissionState = "undetermined"
)

// LocationProvider is the device capability the tracker consumes. Current
// blocks until a fix is acquired or ctx is cancelled.
type LocationProvider interface {
	Permission(ctx context.Context) (PermissionState, error)
	RequestPermission(ctx context.Context) (PermissionState, error)
	Current(ctx context.Context) (domain.LocationSample, error)
}

// Submitter is the slice of the remote API the tracker needs.
type Submitter interface {
	UpdateLocation(ctx context.Context, sample domain.LocationSample) (*api.LocationDecision, error)
}

type State string

const (
	StateIdle        State = "idle"
	StateSampling    State = "sampling"
	StateUnavailable State = "unavailable"
)

var ErrPermissionDenied = errors.New("location permission denied")

type StatusUpdate struct {
	Status       domain.AttendanceStatus
	Message      string
	GeofenceName string
	Sample       domain.LocationSample
}

// Notice is the one-time user-visible signal for an automatic check-in or
// check-out decided server-side.
type Notice struct {
	Status       domain.AttendanceStatus
	Message      string
	GeofenceName string
}

// Tracker runs the recurring sample-and-submit loop while the app is
// foregrounded. At most one cycle is in flight at any instant; ticks that
// fire during an unresolved cycle are dropped rather than queued. Stop
// preserves the last known status for display.
type Tracker struct {
	provider  LocationProvider
	submitter Submitter
	logger    *slog.Logger
	interval  time.Duration

	statusUpdates *fanout.Registry[StatusUpdate]
	autoNotices   *fanout.Registry[Notice]
	refreshFn     func(context.Context)

	inFlight atomic.Bool

	mu           sync.Mutex
	state        State
	starting     bool
	status       domain.AttendanceStatus
	lastSample   *domain.LocationSample
	generation   uint64
	cancel       context.CancelFunc
	deniedBefore bool
}

type Option func(*Tracker)

func WithSampleInterval(d time.Duration) Option {
	return func(t *Tracker) { t.interval = d }
}

// WithSummaryRefresher registers the callback fired after an automatic
// check-in or check-out so the attendance summary screen can reload.
func WithSummaryRefresher(fn func(context.Context)) Option {
	return func(t *Tracker) { t.refreshFn = fn }
}

func New(provider LocationProvider, submitter Submitter, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		provider:      provider,
		submitter:     submitter,
		logger:        logger,
		interval:      30 * time.Second,
		statusUpdates: fanout.NewRegistry[StatusUpdate](),
		autoNotices:   fanout.NewRegistry[Notice](),
		state:         StateIdle,
		status:        domain.StatusAwaitingCheckIn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins sampling. It is a no-op while already sampling. Denied
// permission leaves the tracker in the unavailable state with no retry
// loop; the next Start re-requests only because the user may have
// re-granted in the meantime.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state == StateSampling || t.starting {
		t.mu.Unlock()
		return nil
	}
	// starting keeps a second Start out of the permission window below, so
	// at most one loop goroutine can ever be spawned per Start/Stop pair.
	t.starting = true
	startGen := t.generation
	t.mu.Unlock()

	perm, err := t.provider.Permission(ctx)
	if err != nil {
		t.logger.WarnContext(ctx, "permission check failed", "error", err)
		perm = PermissionDenied
	}
	if perm != PermissionGranted {
		perm, err = t.provider.RequestPermission(ctx)
		if err != nil {
			t.logger.WarnContext(ctx, "permission request failed", "error", err)
			perm = PermissionDenied
		}
	}
	if perm != PermissionGranted {
		t.mu.Lock()
		t.state = StateUnavailable
		t.deniedBefore = true
		t.starting = false
		t.mu.Unlock()
		return ErrPermissionDenied
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.starting = false
	if t.generation != startGen {
		// Stop intervened while the permission calls were in flight; a loop
		// spawned now would outlive the stop that was meant to end it.
		t.mu.Unlock()
		cancel()
		return nil
	}
	t.state = StateSampling
	t.deniedBefore = false
	t.generation++
	gen := t.generation
	t.cancel = cancel
	t.mu.Unlock()

	go t.loop(loopCtx, gen)
	return nil
}

// Stop cancels the sampling timer synchronously and invalidates any cycle
// still in flight; its result will be discarded. Safe to call repeatedly.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.generation++
	if t.state == StateSampling {
		t.state = StateIdle
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Status returns the last advisory status returned by the backend. It is
// display state, never an input to business decisions.
func (t *Tracker) Status() domain.AttendanceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) LastSample() *domain.LocationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastSample == nil {
		return nil
	}
	s := *t.lastSample
	return &s
}

func (t *Tracker) OnStatus(fn func(StatusUpdate)) *fanout.Subscription[StatusUpdate] {
	return t.statusUpdates.Add(fn)
}

func (t *Tracker) OnAutoNotice(fn func(Notice)) *fanout.Subscription[Notice] {
	return t.autoNotices.Add(fn)
}

func (t *Tracker) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.cycle(ctx, gen)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.cycle(ctx, gen)
		}
	}
}

func (t *Tracker) cycle(ctx context.Context, gen uint64) {
	if !t.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer t.inFlight.Store(false)

	sample, err := t.provider.Current(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.WarnContext(ctx, "location fix failed", "error", err)
			observability.RecordLocationSubmission(ctx, "fix_failed", "")
		}
		return
	}
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now()
	}

	decision, err := t.submitter.UpdateLocation(ctx, sample)
	if err != nil {
		// A single failed submission is ignored; the tick interval is the
		// throttle, so no backoff here.
		if ctx.Err() == nil {
			t.logger.WarnContext(ctx, "location submission failed", "error", err)
			observability.RecordLocationSubmission(ctx, "submit_failed", "")
		}
		return
	}
	observability.RecordLocationSubmission(ctx, "ok", string(decision.Status))
	t.apply(ctx, gen, sample, decision)
}

func (t *Tracker) apply(ctx context.Context, gen uint64, sample domain.LocationSample, decision *api.LocationDecision) {
	t.mu.Lock()
	if gen != t.generation {
		// Stopped (or restarted) while this cycle was in flight.
		t.mu.Unlock()
		return
	}
	previous := t.status
	t.status = decision.Status
	t.lastSample = &sample
	t.mu.Unlock()

	t.statusUpdates.Publish(StatusUpdate{
		Status:       decision.Status,
		Message:      decision.Message,
		GeofenceName: decision.GeofenceName,
		Sample:       sample,
	})
	if decision.Status.IsAuto() && decision.Status != previous {
		t.autoNotices.Publish(Notice{
			Status:       decision.Status,
			Message:      decision.Message,
			GeofenceName: decision.GeofenceName,
		})
		if t.refreshFn != nil {
			t.refreshFn(ctx)
		}
	}
}
