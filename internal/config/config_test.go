package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionPollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected session poll interval %v", cfg.SessionPollInterval)
	}
	if cfg.LocationSampleInterval != 30*time.Second {
		t.Fatalf("unexpected sampling interval %v", cfg.LocationSampleInterval)
	}
	if cfg.ChannelReconnectDelay != 5*time.Second {
		t.Fatalf("unexpected reconnect delay %v", cfg.ChannelReconnectDelay)
	}
	if !cfg.VerificationFailOpen {
		t.Fatal("verification should fail open by default")
	}
	if cfg.StoreBackend != StoreMemory {
		t.Fatalf("unexpected store backend %q", cfg.StoreBackend)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SESSION_POLL_INTERVAL", "1s")
	t.Setenv("VERIFICATION_FAIL_OPEN", "false")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("STORE_SEAL_KEY", "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionPollInterval != time.Second {
		t.Fatalf("unexpected poll interval %v", cfg.SessionPollInterval)
	}
	if cfg.VerificationFailOpen {
		t.Fatal("expected fail-closed override")
	}
	if cfg.StoreBackend != StoreSQLite {
		t.Fatalf("unexpected backend %q", cfg.StoreBackend)
	}
	if len(cfg.StoreSealKey) != 32 {
		t.Fatalf("unexpected seal key length %d", len(cfg.StoreSealKey))
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]struct{ key, value string }{
		"bad duration": {"SESSION_POLL_INTERVAL", "soon"},
		"bad backend":  {"STORE_BACKEND", "flash"},
		"bad bool":     {"VERIFICATION_FAIL_OPEN", "maybe"},
		"bad seal key": {"STORE_SEAL_KEY", "zz"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(context.Background()); err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}
