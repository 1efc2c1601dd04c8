package main

import (
	"context"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shiftsense/client-core/internal/app"
)

func newLoginCommand(opts *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and persist credentials for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				if email == "" {
					return fmt.Errorf("--email is required")
				}
				if password == "" {
					fmt.Fprint(cmd.OutOrStdout(), "password: ")
					raw, err := term.ReadPassword(int(syscall.Stdin))
					fmt.Fprintln(cmd.OutOrStdout())
					if err != nil {
						return fmt.Errorf("read password: %w", err)
					}
					password = string(raw)
				}
				user, err := rt.Sessions.Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", user.Name, user.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Sessions.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}
