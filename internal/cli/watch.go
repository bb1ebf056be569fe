package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-auth-session/guard"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand(opts *options) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive until interrupted or the session ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.open(ctx, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			view := guard.NewProtectedView(a.manager, a.navigate,
				guard.WithInterval(opts.cfg.GetRefreshInterval()),
				guard.WithPublicPaths(opts.cfg.GetPublicPaths()...),
				guard.WithLogger(log.Logger),
				guard.WithStateListener(func(s guard.State) {
					fmt.Fprintf(a.out, "Session: %s\n", s)
				}),
			)
			return watch(ctx, view, path)
		},
	}
	cmd.Flags().StringVar(&path, "path", "/dashboard", "protected path to mount")
	return cmd
}

// watch mounts view on path and blocks until ctx ends or the refresh loop gives up.
func watch(ctx context.Context, view *guard.ProtectedView, path string) error {
	if view.Mount(ctx, path) != guard.Authenticated {
		return nil
	}
	defer view.Unmount()

	// Wait only fails once ctx ends, which is the normal way out.
	_ = view.Wait(ctx)
	return nil
}
