package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/fanout"
	"github.com/shiftsense/client-core/internal/observability"
)

// TokenSource supplies the bearer token attached to the websocket
// handshake, or "" when none is available.
type TokenSource func(ctx context.Context) string

// Channel is the persistent notification connection. It is CLOSED or OPEN;
// on any transport error or server close it transitions to CLOSED and
// schedules exactly one reconnection attempt after a fixed delay, targeting
// the same user. Connect while OPEN is a no-op, which keeps racing manual
// and automatic reconnects from producing duplicate sockets.
type Channel struct {
	endpoint       string
	dialer         *websocket.Dialer
	token          TokenSource
	logger         *slog.Logger
	reconnectDelay time.Duration

	listeners *fanout.Registry[domain.Notification]

	mu             sync.Mutex
	phase          domain.ConnectionPhase
	userID         string
	conn           *websocket.Conn
	reconnectTimer *time.Timer
	closing        bool
}

type Option func(*Channel)

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Channel) { c.reconnectDelay = d }
}

func WithTokenSource(src TokenSource) Option {
	return func(c *Channel) { c.token = src }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Channel) { c.dialer = d }
}

func New(endpoint string, logger *slog.Logger, opts ...Option) *Channel {
	c := &Channel{
		endpoint:       endpoint,
		dialer:         websocket.DefaultDialer,
		token:          func(context.Context) string { return "" },
		logger:         logger,
		reconnectDelay: 5 * time.Second,
		listeners:      fanout.NewRegistry[domain.Notification](),
		phase:          domain.PhaseClosed,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the channel for the given user. Idempotent while OPEN.
// A dial failure follows the same recovery path as a dropped connection:
// one reconnect attempt after the fixed delay.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.phase == domain.PhaseOpen {
		c.mu.Unlock()
		return nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.userID = userID
	c.closing = false
	c.mu.Unlock()

	target, err := c.targetURL(userID)
	if err != nil {
		return err
	}
	header := http.Header{}
	if tok := c.token(ctx); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		c.logger.WarnContext(ctx, "notification channel dial failed", "error", err)
		c.scheduleReconnect("dial_failed")
		return err
	}

	c.mu.Lock()
	if c.closing || c.conn != nil {
		// Disconnect or a faster Connect raced the dial; drop the fresh
		// socket so only one read loop ever publishes.
		c.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	c.phase = domain.PhaseOpen
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "notification channel open", "user_id", userID)
	go c.readLoop(conn, userID)
	return nil
}

// Disconnect closes the channel and cancels any pending reconnect
// synchronously. Safe to call repeatedly and while a connect is racing.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.phase = domain.PhaseClosed
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) AddListener(fn func(domain.Notification)) *fanout.Subscription[domain.Notification] {
	return c.listeners.Add(fn)
}

func (c *Channel) RemoveListener(sub *fanout.Subscription[domain.Notification]) {
	sub.Cancel()
}

func (c *Channel) State() domain.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ChannelState{Phase: c.phase, TargetUserID: c.userID}
}

func (c *Channel) readLoop(conn *websocket.Conn, userID string) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// Server close and network drop take the same path.
			c.dropped(conn, err)
			return
		}
		var notification domain.Notification
		if err := json.Unmarshal(payload, &notification); err != nil {
			c.logger.Warn("unparseable notification dropped", "error", err)
			continue
		}
		if notification.UserID != userID {
			// Stale subscription after a user switch.
			continue
		}
		c.listeners.Publish(notification)
	}
}

func (c *Channel) dropped(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// An older socket's read loop lost a race with Disconnect/Connect.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.phase = domain.PhaseClosed
	closing := c.closing
	c.mu.Unlock()
	_ = conn.Close()
	if closing {
		return
	}
	c.logger.Warn("notification channel lost", "error", cause)
	c.scheduleReconnect("transport_error")
}

func (c *Channel) scheduleReconnect(cause string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.reconnectTimer != nil {
		return
	}
	userID := c.userID
	observability.RecordChannelReconnect(context.Background(), cause)
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closing := c.closing
		c.mu.Unlock()
		if closing {
			return
		}
		_ = c.Connect(context.Background(), userID)
	})
}

func (c *Channel) targetURL(userID string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
