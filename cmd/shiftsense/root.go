package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiftsense/client-core/internal/app"
	"github.com/shiftsense/client-core/internal/attendance"
	"github.com/shiftsense/client-core/internal/config"
	"github.com/shiftsense/client-core/internal/domain"
)

type options struct {
	envFile  string
	lat      float64
	lon      float64
	accuracy float64
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "shiftsense",
		Short:         "Attendance client runtime for development and operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file loaded before configuration")
	cmd.PersistentFlags().Float64Var(&opts.lat, "lat", 0, "latitude reported by the static location provider")
	cmd.PersistentFlags().Float64Var(&opts.lon, "lon", 0, "longitude reported by the static location provider")
	cmd.PersistentFlags().Float64Var(&opts.accuracy, "accuracy", 10, "accuracy in meters reported by the static location provider")
	cmd.AddCommand(newLoginCommand(opts))
	cmd.AddCommand(newLogoutCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newCheckInCommand(opts))
	cmd.AddCommand(newCheckOutCommand(opts))
	cmd.AddCommand(newFaceCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newNotificationsCommand(opts))
	return cmd
}

// staticProvider satisfies the location provider with a fixed coordinate.
// The CLI has no device sensors; the coordinate comes from flags so the
// runtime can be exercised against a real backend.
type staticProvider struct {
	lat, lon, accuracy float64
}

func (p staticProvider) Permission(context.Context) (attendance.PermissionState, error) {
	return attendance.PermissionGranted, nil
}

func (p staticProvider) RequestPermission(context.Context) (attendance.PermissionState, error) {
	return attendance.PermissionGranted, nil
}

func (p staticProvider) Current(context.Context) (domain.LocationSample, error) {
	return domain.LocationSample{
		Latitude:       p.lat,
		Longitude:      p.lon,
		AccuracyMeters: p.accuracy,
		CapturedAt:     time.Now(),
	}, nil
}

// withRuntime loads configuration, brings the runtime up, runs fn, and
// tears the runtime down regardless of fn's outcome.
func withRuntime(opts *options, fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx := context.Background()
	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	rt := app.New(cfg, staticProvider{lat: opts.lat, lon: opts.lon, accuracy: opts.accuracy})
	if err := rt.Init(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if terr := rt.Teardown(shutdownCtx); terr != nil {
			fmt.Fprintf(os.Stderr, "teardown: %v\n", terr)
		}
	}()
	return fn(ctx, rt)
}
