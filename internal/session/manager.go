package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shiftsense/client-core/internal/api"
	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/fanout"
	"github.com/shiftsense/client-core/internal/observability"
	"github.com/shiftsense/client-core/internal/security"
	"github.com/shiftsense/client-core/internal/store"
)

// AuthAPI is the slice of the remote service the manager needs. Both calls
// are best-effort: their failures never terminate a session.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Me(ctx context.Context) (*domain.User, error)
}

// Event is a session transition. Role may be empty on an authenticated
// event when the profile has not been fetched yet.
type Event struct {
	Authenticated bool
	Role          domain.Role
}

// Manager polls the credential store and decides, locally, whether a
// session exists. Logout is driven by credential absence or expiry only;
// a failing store read or profile fetch is logged and swallowed.
type Manager struct {
	creds    *store.CredentialStore
	remote   AuthAPI
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu          sync.RWMutex
	current     *domain.Session
	decided     bool
	fetchedFor  string
	transitions *fanout.Registry[Event]

	kick chan struct{}
}

type Option func(*Manager)

func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(creds *store.CredentialStore, remote AuthAPI, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		creds:       creds,
		remote:      remote,
		logger:      logger,
		interval:    500 * time.Millisecond,
		now:         time.Now,
		transitions: fanout.NewRegistry[Event](),
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drives the poll loop until ctx is cancelled. The credential store has
// no change notification, so the loop is the only way to observe writes
// made outside this process; NotifyChanged short-circuits the wait for
// writes made inside it.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.kick:
		}
		m.check(ctx)
	}
}

// NotifyChanged forces an immediate re-check instead of waiting out the
// poll interval. Callers invoke it after any credential write they know
// about. Never blocks.
func (m *Manager) NotifyChanged() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Current returns the last-known session, or nil when unauthenticated.
func (m *Manager) Current() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

func (m *Manager) OnTransition(fn func(Event)) *fanout.Subscription[Event] {
	return m.transitions.Add(fn)
}

// Login authenticates against the remote service, persists the resulting
// credentials, and forces an immediate session re-check so the transition
// is observed without waiting for the next poll.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, error) {
	result, err := m.remote.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := m.creds.SetToken(ctx, result.Token); err != nil {
		return nil, err
	}
	if result.User != nil {
		if err := m.creds.SetUser(ctx, result.User); err != nil {
			m.logger.WarnContext(ctx, "persist user after login failed", "error", err)
		}
	}
	m.NotifyChanged()
	return result.User, nil
}

// Logout clears stored credentials and forces an immediate re-check.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.creds.Clear(ctx); err != nil {
		return err
	}
	m.NotifyChanged()
	return nil
}

func (m *Manager) check(ctx context.Context) {
	token, err := m.creds.Token(ctx)
	if errors.Is(err, store.ErrNoCredentials) {
		m.toUnauthenticated(ctx, false)
		return
	}
	if err != nil {
		m.logger.WarnContext(ctx, "credential store read failed", "error", err)
		return
	}

	info, err := security.Inspect(token)
	if err != nil {
		m.logger.WarnContext(ctx, "stored token undecodable, treating as expired", "error", err)
		m.toUnauthenticated(ctx, true)
		return
	}
	if !info.ExpiresAt.After(m.now()) {
		m.toUnauthenticated(ctx, true)
		return
	}

	session := &domain.Session{
		Token:     token,
		ExpiresAt: info.ExpiresAt,
		UserID:    info.Subject,
		Role:      info.Role,
	}
	if session.Role == "" {
		session.Role = m.resolveRole(ctx, token)
	}
	m.toAuthenticated(ctx, session)
}

// resolveRole prefers the cached user record and falls back to one
// best-effort profile fetch per distinct token. A fetch failure leaves the
// role empty; it is not a logout signal.
func (m *Manager) resolveRole(ctx context.Context, token string) domain.Role {
	if user, err := m.creds.User(ctx); err == nil && user.Role != "" {
		return user.Role
	}

	m.mu.Lock()
	alreadyTried := m.fetchedFor == token
	m.fetchedFor = token
	m.mu.Unlock()
	if alreadyTried {
		return ""
	}

	user, err := m.remote.Me(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "profile fetch failed, keeping session without role", "error", err)
		return ""
	}
	if err := m.creds.SetUser(ctx, user); err != nil {
		m.logger.WarnContext(ctx, "cache fetched profile failed", "error", err)
	}
	return user.Role
}

func (m *Manager) toAuthenticated(ctx context.Context, session *domain.Session) {
	m.mu.Lock()
	changed := !m.decided || m.current == nil ||
		m.current.UserID != session.UserID || m.current.Role != session.Role
	m.decided = true
	m.current = session
	m.mu.Unlock()
	if !changed {
		return
	}
	observability.RecordSessionTransition(ctx, "authenticated")
	m.transitions.Publish(Event{Authenticated: true, Role: session.Role})
}

func (m *Manager) toUnauthenticated(ctx context.Context, clearStore bool) {
	if clearStore {
		if err := m.creds.Clear(ctx); err != nil {
			m.logger.WarnContext(ctx, "clear credentials failed", "error", err)
		}
	}
	m.mu.Lock()
	changed := !m.decided || m.current != nil
	m.decided = true
	m.current = nil
	m.fetchedFor = ""
	m.mu.Unlock()
	if !changed {
		return
	}
	observability.RecordSessionTransition(ctx, "unauthenticated")
	m.transitions.Publish(Event{Authenticated: false})
}
