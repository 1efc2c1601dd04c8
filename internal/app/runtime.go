package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shiftsense/client-core/internal/api"
	"github.com/shiftsense/client-core/internal/attendance"
	"github.com/shiftsense/client-core/internal/config"
	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/observability"
	"github.com/shiftsense/client-core/internal/realtime"
	"github.com/shiftsense/client-core/internal/session"
	"github.com/shiftsense/client-core/internal/store"
	"github.com/shiftsense/client-core/internal/verification"
)

// Runtime wires the client core together: one explicitly constructed
// instance per process, no module-level mutable state. Init starts the
// session loop and gates the tracker and the notification channel on
// session transitions; Teardown stops everything and is idempotent.
type Runtime struct {
	Config        *config.Config
	Logger        *slog.Logger
	Observability *observability.Runtime
	Credentials   *store.CredentialStore
	API           *api.Client
	Sessions      *session.Manager
	Tracker       *attendance.Tracker
	Channel       *realtime.Channel
	Verification  *verification.Service

	provider attendance.LocationProvider

	mu          sync.Mutex
	initialized bool
	stopped     bool
	foreground  bool
	cancel      context.CancelFunc
	sessionDone chan struct{}
}

func New(cfg *config.Config, provider attendance.LocationProvider) *Runtime {
	return &Runtime{Config: cfg, provider: provider, foreground: true}
}

func (r *Runtime) Init(ctx context.Context) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return errors.New("runtime already initialized")
	}
	r.initialized = true
	r.mu.Unlock()

	obs, err := observability.InitRuntime(ctx, r.Config)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	r.Observability = obs
	r.Logger = obs.Logger

	backend, err := buildStore(r.Config)
	if err != nil {
		return err
	}
	r.Credentials = store.NewCredentialStore(backend)

	tokenSource := func(ctx context.Context) string {
		token, err := r.Credentials.Token(ctx)
		if err != nil {
			return ""
		}
		return token
	}

	r.API = api.NewClient(r.Config.APIBaseURL, r.Logger,
		api.WithTokenSource(tokenSource))
	r.Sessions = session.New(r.Credentials, r.API, r.Logger,
		session.WithPollInterval(r.Config.SessionPollInterval))
	r.Tracker = attendance.New(r.provider, r.API, r.Logger,
		attendance.WithSampleInterval(r.Config.LocationSampleInterval))
	r.Channel = realtime.New(r.Config.RealtimeURL, r.Logger,
		realtime.WithReconnectDelay(r.Config.ChannelReconnectDelay),
		realtime.WithTokenSource(realtime.TokenSource(tokenSource)))
	r.Verification = verification.NewService(
		verification.NewCache(r.Credentials),
		r.API,
		r.Config.VerificationFailOpen,
		r.Logger,
	)

	// A session gates the other subsystems: they run concurrently and
	// independently once one exists.
	r.Sessions.OnTransition(func(e session.Event) {
		if e.Authenticated {
			go r.onAuthenticated()
		} else {
			go r.onUnauthenticated()
		}
	})

	loopCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.sessionDone = make(chan struct{})
	done := r.sessionDone
	r.mu.Unlock()
	go func() {
		defer close(done)
		r.Sessions.Run(loopCtx)
	}()
	return nil
}

func (r *Runtime) onAuthenticated() {
	current := r.Sessions.Current()
	if current == nil {
		return
	}
	// Login-over-login: an open channel bound to a previous user must be
	// torn down before the rebind, Connect alone is a no-op while open.
	if state := r.Channel.State(); state.Phase == domain.PhaseOpen && state.TargetUserID != current.UserID {
		r.Channel.Disconnect()
	}
	if err := r.Channel.Connect(context.Background(), current.UserID); err != nil {
		r.Logger.Warn("notification channel connect failed", "error", err)
	}
	r.mu.Lock()
	foreground := r.foreground
	r.mu.Unlock()
	if foreground {
		if err := r.Tracker.Start(context.Background()); err != nil {
			r.Logger.Warn("attendance tracking unavailable", "error", err)
		}
	}
}

func (r *Runtime) onUnauthenticated() {
	r.Tracker.Stop()
	r.Channel.Disconnect()
}

// Foreground resumes attendance tracking after the host app returns to the
// foreground. Tracking only starts when a session exists.
func (r *Runtime) Foreground(ctx context.Context) {
	r.mu.Lock()
	r.foreground = true
	r.mu.Unlock()
	if r.Sessions.Current() == nil {
		return
	}
	if err := r.Tracker.Start(ctx); err != nil {
		r.Logger.Warn("attendance tracking unavailable", "error", err)
	}
}

// Background suspends attendance tracking while the host app is
// backgrounded. The notification channel stays up.
func (r *Runtime) Background() {
	r.mu.Lock()
	r.foreground = false
	r.mu.Unlock()
	r.Tracker.Stop()
}

// Teardown stops every subsystem and flushes observability. Safe to call
// more than once.
func (r *Runtime) Teardown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped || !r.initialized {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	cancel := r.cancel
	done := r.sessionDone
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	if r.Tracker != nil {
		r.Tracker.Stop()
	}
	if r.Channel != nil {
		r.Channel.Disconnect()
	}
	return r.Observability.Shutdown(ctx)
}

func buildStore(cfg *config.Config) (store.Store, error) {
	var backend store.Store
	switch cfg.StoreBackend {
	case config.StoreMemory:
		backend = store.NewInMemoryStore()
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		backend = store.NewRedisStore(client, "")
	case config.StoreSQLite:
		var err error
		backend, err = store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if len(cfg.StoreSealKey) > 0 {
		return store.NewSealedStore(backend, cfg.StoreSealKey)
	}
	return backend, nil
}
