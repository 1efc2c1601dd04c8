package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiftsense/client-core/internal/app"
	"github.com/shiftsense/client-core/internal/domain"
)

func newCheckInCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "checkin",
		Short: "Manually check in at the configured coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				record, err := rt.API.CheckIn(ctx, sampleFrom(opts))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked in: %s\n", record.Status)
				return nil
			})
		},
	}
}

func newCheckOutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Manually check out at the configured coordinate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				record, err := rt.API.CheckOut(ctx, sampleFrom(opts))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "checked out: %s\n", record.Status)
				return nil
			})
		},
	}
}

func newFaceCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "face",
		Short: "Face registration and daily verification",
	}
	cmd.AddCommand(newFaceSubcommand(opts, "register", "Register the reference face image",
		func(ctx context.Context, rt *app.Runtime, image string) (string, error) {
			res, err := rt.Verification.RegisterFace(ctx, image)
			if err != nil {
				return "", err
			}
			return res.Message, nil
		}))
	cmd.AddCommand(newFaceSubcommand(opts, "verify", "Run today's face verification",
		func(ctx context.Context, rt *app.Runtime, image string) (string, error) {
			res, err := rt.Verification.CompleteVerification(ctx, image)
			if err != nil {
				return "", err
			}
			return res.Message, nil
		}))
	return cmd
}

func newFaceSubcommand(opts *options, use, short string, run func(context.Context, *app.Runtime, string) (string, error)) *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				raw, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				msg, err := run(ctx, rt, base64.StdEncoding.EncodeToString(raw))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "path to the face image")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func sampleFrom(opts *options) domain.LocationSample {
	return domain.LocationSample{
		Latitude:       opts.lat,
		Longitude:      opts.lon,
		AccuracyMeters: opts.accuracy,
		CapturedAt:     time.Now(),
	}
}
