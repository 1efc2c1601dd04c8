package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	loadCounterOnce sync.Once
	loadCounter     metric.Int64Counter
)

// recordLoadOutcome counts every configuration load attempt. The counter is
// created lazily so the meter provider installed later by the observability
// runtime is the one that serves it.
func recordLoadOutcome(ctx context.Context, profile string, err error) {
	loadCounterOnce.Do(func() {
		c, cerr := otel.Meter("shiftsense-client-core").Int64Counter("config.load.attempts")
		if cerr == nil {
			loadCounter = c
		}
	})
	if loadCounter == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	loadCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profileLabel(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass(err)),
	))
}

func profileLabel(profile string) string {
	p := strings.ToLower(strings.TrimSpace(profile))
	if p == "" {
		return "unknown"
	}
	return p
}

func errorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, errValidation):
		return "validation"
	case errors.Is(err, errParse):
		return "parse"
	default:
		return "load"
	}
}
