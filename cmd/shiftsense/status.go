package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shiftsense/client-core/internal/app"
)

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and verification state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				// The session loop decides asynchronously; give it one
				// poll cycle to read the credential store.
				rt.Sessions.NotifyChanged()
				time.Sleep(2 * rt.Config.SessionPollInterval)

				out := cmd.OutOrStdout()
				sess := rt.Sessions.Current()
				if sess == nil {
					fmt.Fprintln(out, "session: unauthenticated")
					return nil
				}
				fmt.Fprintf(out, "session: %s", sess.UserID)
				if sess.Role != "" {
					fmt.Fprintf(out, " (%s)", sess.Role)
				}
				fmt.Fprintf(out, ", token expires %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))

				record, err := rt.Verification.Status(ctx)
				if err != nil {
					fmt.Fprintf(out, "verification: unavailable (%v)\n", err)
					return nil
				}
				switch {
				case record.Registered && record.Verified:
					fmt.Fprintln(out, "verification: verified today")
				case record.Registered:
					fmt.Fprintln(out, "verification: face registered, not yet verified today")
				default:
					fmt.Fprintln(out, "verification: no face registered")
				}
				return nil
			})
		},
	}
}
