package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/shiftsense/client-core/internal/app"
	"github.com/shiftsense/client-core/internal/domain"
	"github.com/shiftsense/client-core/internal/tools/watchui"
)

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Live view of session, tracking and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(opts, func(ctx context.Context, rt *app.Runtime) error {
				rt.Foreground(ctx)

				model := watchui.NewModel(func() watchui.Snapshot {
					snap := watchui.Snapshot{
						TrackerState: rt.Tracker.State(),
						Status:       rt.Tracker.Status(),
						LastSample:   rt.Tracker.LastSample(),
						Channel:      rt.Channel.State(),
					}
					if sess := rt.Sessions.Current(); sess != nil {
						snap.SessionUserID = sess.UserID
						snap.Role = sess.Role
					}
					return snap
				})
				program := tea.NewProgram(model, tea.WithContext(ctx))

				sub := rt.Channel.AddListener(func(n domain.Notification) {
					program.Send(watchui.NotificationMsg{Notification: n})
				})
				defer rt.Channel.RemoveListener(sub)

				if _, err := program.Run(); err != nil {
					return fmt.Errorf("watch ui: %w", err)
				}
				return nil
			})
		},
	}
}
