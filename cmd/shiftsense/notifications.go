package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shiftsense/client-core/internal/app"
)

func newNotificationsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "List and manage notifications",
	}
	cmd.AddCommand(newNotificationsListCommand(opts))
	cmd.AddCommand(newNotificationsReadCommand(opts))
	cmd.AddCommand(newNotificationsReadAllCommand(opts))
	cmd.AddCommand(newNotificationsDeleteCommand(opts))
	return cmd
}

func newNotificationsListCommand(opts *options) *cobra.Command {
	var unreadOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				items, err := rt.API.Notifications(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				shown := 0
				for _, n := range items {
					if unreadOnly && n.IsRead {
						continue
					}
					marker := " "
					if !n.IsRead {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s  %s  %s\n", marker, n.ID, n.Timestamp.Local().Format("Jan 02 15:04"), n.Title)
					shown++
				}
				if shown == 0 {
					fmt.Fprintln(out, "no notifications")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "show unread notifications only")
	return cmd
}

func newNotificationsReadCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark one notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				return rt.API.MarkNotificationRead(ctx, args[0])
			})
		},
	}
}

func newNotificationsReadAllCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				return rt.API.MarkAllNotificationsRead(ctx)
			})
		},
	}
}

func newNotificationsDeleteCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				return rt.API.DeleteNotification(ctx, args[0])
			})
		},
	}
}
