package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// errParse marks env values that fail to parse; errValidation marks values
// that parse but violate a constraint. The distinction feeds the load
// outcome metric.
var (
	errParse      = errors.New("parse")
	errValidation = errors.New("validate")
)

type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
	StoreSQLite StoreBackend = "sqlite"
)

type Config struct {
	Profile string

	APIBaseURL  string
	RealtimeURL string

	SessionPollInterval    time.Duration
	LocationSampleInterval time.Duration
	ChannelReconnectDelay  time.Duration

	// VerificationFailOpen picks the degradation mode when the
	// verification backend is unreachable: true assumes the user verified
	// today, false blocks check-in until the backend recovers.
	VerificationFailOpen bool

	StoreBackend StoreBackend
	RedisAddr    string
	SQLitePath   string
	StoreSealKey []byte

	LogLevel string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsEnabled        bool
	OTELTracesEnabled         bool
	OTELLogsEnabled           bool
	OTELMetricsExportInterval time.Duration
}

func Load(ctx context.Context) (*Config, error) {
	cfg, err := load()
	recordLoadOutcome(ctx, envOr("APP_PROFILE", "dev"), err)
	return cfg, err
}

func load() (*Config, error) {
	cfg := &Config{
		Profile:     envOr("APP_PROFILE", "dev"),
		APIBaseURL:  envOr("API_BASE_URL", "http://localhost:8080/api"),
		RealtimeURL: envOr("REALTIME_URL", "ws://localhost:8080/ws/notifications"),

		StoreBackend: StoreBackend(envOr("STORE_BACKEND", string(StoreMemory))),
		RedisAddr:    envOr("REDIS_ADDR", "localhost:6379"),
		SQLitePath:   envOr("SQLITE_PATH", "shiftsense.db"),

		LogLevel: envOr("LOG_LEVEL", "info"),

		OTELServiceName:          envOr("OTEL_SERVICE_NAME", "shiftsense-client-core"),
		OTELEnvironment:          envOr("OTEL_ENVIRONMENT", "dev"),
		OTELExporterOTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.SessionPollInterval, err = durationEnv("SESSION_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.LocationSampleInterval, err = durationEnv("LOCATION_SAMPLE_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ChannelReconnectDelay, err = durationEnv("CHANNEL_RECONNECT_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsExportInterval, err = durationEnv("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.VerificationFailOpen, err = boolEnv("VERIFICATION_FAIL_OPEN", true); err != nil {
		return nil, err
	}
	if cfg.OTELExporterOTLPInsecure, err = boolEnv("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return nil, err
	}
	if cfg.OTELMetricsEnabled, err = boolEnv("OTEL_METRICS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELTracesEnabled, err = boolEnv("OTEL_TRACES_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.OTELLogsEnabled, err = boolEnv("OTEL_LOGS_ENABLED", false); err != nil {
		return nil, err
	}
	if raw := os.Getenv("STORE_SEAL_KEY"); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w STORE_SEAL_KEY: %w", errParse, err)
		}
		cfg.StoreSealKey = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("%w config: unknown STORE_BACKEND %q", errValidation, c.StoreBackend)
	}
	if c.SessionPollInterval <= 0 {
		return fmt.Errorf("%w config: SESSION_POLL_INTERVAL must be positive", errValidation)
	}
	if c.LocationSampleInterval <= 0 {
		return fmt.Errorf("%w config: LOCATION_SAMPLE_INTERVAL must be positive", errValidation)
	}
	if c.ChannelReconnectDelay <= 0 {
		return fmt.Errorf("%w config: CHANNEL_RECONNECT_DELAY must be positive", errValidation)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w config: API_BASE_URL is required", errValidation)
	}
	if c.RealtimeURL == "" {
		return fmt.Errorf("%w config: REALTIME_URL is required", errValidation)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %w", errParse, key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w %s: %w", errParse, key, err)
	}
	return b, nil
}
