package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newAPICommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "api PATH",
		Short: "GET a backend path with the session's bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				url := strings.TrimRight(opts.baseURL, "/") + "/" + strings.TrimLeft(args[0], "/")
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
				if err != nil {
					return err
				}

				resp, err := a.manager.HTTPClient(ctx, nil).Do(req)
				if err != nil {
					return fmt.Errorf("GET %s: %w", url, err)
				}
				defer func() { _ = resp.Body.Close() }()

				fmt.Fprintln(a.out, resp.Status)
				if _, err := io.Copy(a.out, resp.Body); err != nil {
					return fmt.Errorf("read response: %w", err)
				}
				if resp.StatusCode == http.StatusUnauthorized {
					a.manager.Logout(ctx, a.navigate)
				}
				return nil
			})
		},
	}
}
