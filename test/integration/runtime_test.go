package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/shiftsense/client-core/internal/app"
	"github.com/shiftsense/client-core/internal/attendance"
	"github.com/shiftsense/client-core/internal/config"
	"github.com/shiftsense/client-core/internal/domain"
)

type grantedProvider struct{}

func (grantedProvider) Permission(context.Context) (attendance.PermissionState, error) {
	return attendance.PermissionGranted, nil
}

func (grantedProvider) RequestPermission(context.Context) (attendance.PermissionState, error) {
	return attendance.PermissionGranted, nil
}

func (grantedProvider) Current(context.Context) (domain.LocationSample, error) {
	return domain.LocationSample{Latitude: 52.1, Longitude: 4.3, AccuracyMeters: 12, CapturedAt: time.Now()}, nil
}

type backend struct {
	srv       *httptest.Server
	token     string
	wsConns   chan *websocket.Conn
	locations atomic.Int32
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{wsConns: make(chan *websocket.Conn, 4)}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "u-7",
		"role": "EMPLOYEE",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	b.token = raw

	ok := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}

	upgrader := websocket.Upgrader{}
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		ok(w, map[string]any{
			"token": b.token,
			"user":  domain.User{ID: "u-7", Email: "sam@example.com", Role: domain.RoleEmployee},
		})
	})
	r.Get("/api/auth/me", func(w http.ResponseWriter, req *http.Request) {
		ok(w, domain.User{ID: "u-7", Email: "sam@example.com", Role: domain.RoleEmployee})
	})
	r.Post("/api/location/update", func(w http.ResponseWriter, req *http.Request) {
		b.locations.Add(1)
		ok(w, map[string]any{
			"status":       string(domain.StatusAutoCheckedIn),
			"message":      "auto checked in",
			"geofenceName": "Main Office",
		})
	})
	r.Get("/api/face-verification/required", func(w http.ResponseWriter, req *http.Request) {
		ok(w, map[string]any{"faceRegistered": true, "verifiedToday": true})
	})
	r.Get("/ws/notifications", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		b.wsConns <- conn
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) config() *config.Config {
	return &config.Config{
		Profile:                "test",
		APIBaseURL:             b.srv.URL + "/api",
		RealtimeURL:            "ws" + strings.TrimPrefix(b.srv.URL, "http") + "/ws/notifications",
		SessionPollInterval:    10 * time.Millisecond,
		LocationSampleInterval: 10 * time.Millisecond,
		ChannelReconnectDelay:  20 * time.Millisecond,
		VerificationFailOpen:   true,
		StoreBackend:           config.StoreMemory,
		LogLevel:               "error",
		OTELServiceName:        "test",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoginStartsTrackingAndNotificationsEndToEnd(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	r := app.New(b.config(), grantedProvider{})
	if err := r.Init(ctx); err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	t.Cleanup(func() { _ = r.Teardown(context.Background()) })

	notices := make(chan attendance.Notice, 16)
	r.Tracker.OnAutoNotice(func(n attendance.Notice) { notices <- n })
	inbox := make(chan domain.Notification, 16)
	r.Channel.AddListener(func(n domain.Notification) { inbox <- n })

	user, err := r.Sessions.Login(ctx, "sam@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u-7" {
		t.Fatalf("unexpected user %+v", user)
	}

	waitFor(t, "authenticated session", func() bool { return r.Sessions.Current() != nil })
	waitFor(t, "tracker sampling", func() bool { return r.Tracker.State() == attendance.StateSampling })
	waitFor(t, "auto check-in status", func() bool { return r.Tracker.Status() == domain.StatusAutoCheckedIn })

	select {
	case n := <-notices:
		if !strings.Contains(n.GeofenceName, "Main Office") {
			t.Fatalf("unexpected notice %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for auto check-in notice")
	}

	var wsConn *websocket.Conn
	select {
	case wsConn = <-b.wsConns:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for websocket connection")
	}
	payload, _ := json.Marshal(domain.Notification{ID: "n-1", UserID: "u-7", Title: "Schedule updated"})
	if err := wsConn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("push notification: %v", err)
	}
	select {
	case n := <-inbox:
		if n.ID != "n-1" {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pushed notification")
	}

	record, err := r.Verification.Status(ctx)
	if err != nil {
		t.Fatalf("verification status: %v", err)
	}
	if !record.Verified {
		t.Fatalf("expected verified record, got %+v", record)
	}

	if err := r.Sessions.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	waitFor(t, "session gone", func() bool { return r.Sessions.Current() == nil })
	waitFor(t, "tracker idle", func() bool { return r.Tracker.State() == attendance.StateIdle })
	waitFor(t, "channel closed", func() bool { return r.Channel.State().Phase == domain.PhaseClosed })
}

func TestBackgroundingSuspendsSamplingUntilForeground(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	r := app.New(b.config(), grantedProvider{})
	if err := r.Init(ctx); err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	t.Cleanup(func() { _ = r.Teardown(context.Background()) })

	if _, err := r.Sessions.Login(ctx, "sam@example.com", "pw"); err != nil {
		t.Fatalf("login: %v", err)
	}
	waitFor(t, "tracker sampling", func() bool { return r.Tracker.State() == attendance.StateSampling })

	r.Background()
	if r.Tracker.State() != attendance.StateIdle {
		t.Fatalf("expected idle tracker after backgrounding, got %q", r.Tracker.State())
	}
	time.Sleep(30 * time.Millisecond) // let any in-flight cycle drain
	before := b.locations.Load()
	time.Sleep(60 * time.Millisecond)
	if after := b.locations.Load(); after != before {
		t.Fatalf("sampling continued in background: %d -> %d", before, after)
	}

	// Status from before backgrounding stays visible.
	if r.Tracker.Status() != domain.StatusAutoCheckedIn {
		t.Fatalf("last status should survive stop, got %q", r.Tracker.Status())
	}

	r.Foreground(ctx)
	waitFor(t, "tracker sampling again", func() bool { return r.Tracker.State() == attendance.StateSampling })
}
