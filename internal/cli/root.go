// Package cli implements the sdtsession command line client on top of the session package.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type options struct {
	cfg        config.Config
	baseURL    string
	backend    string
	storageDir string
	timeout    time.Duration
}

// app is what every command works against, opened fresh per invocation.
type app struct {
	manager *session.Manager
	store   *session.Store
	out     io.Writer
	close   func() error
}

func (a *app) navigate(path string) {
	fmt.Fprintf(a.out, "Redirecting to %s\n", path)
}

func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &options{cfg: cfg}
	cmd := &cobra.Command{
		Use:           "sdtsession",
		Short:         "Log in to the SDT backend and keep the session alive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", cfg.GetAuthBaseURL(), "auth server base URL")
	cmd.PersistentFlags().StringVar(&opts.backend, "storage", string(cfg.GetStorageBackend()), "session storage backend: memory, file or redis")
	cmd.PersistentFlags().StringVar(&opts.storageDir, "storage-dir", cfg.GetStorageDir(), "directory of the file storage backend")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall timeout of one-shot commands")

	cmd.AddCommand(
		newLoginCommand(opts),
		newStatusCommand(opts),
		newWhoamiCommand(opts),
		newRefreshCommand(opts),
		newLogoutCommand(opts),
		newLogoutAllCommand(opts),
		newWatchCommand(opts),
		newAPICommand(opts),
	)
	return cmd
}

func (o *options) open(ctx context.Context, out io.Writer) (*app, error) {
	repo, closeRepo, err := openRepo(ctx, o.cfg, config.StorageBackend(o.backend), o.storageDir)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(repo, session.WithTTLs(o.cfg.GetRememberMeTTL(), o.cfg.GetSessionTTL()))
	managerOpts := []session.Option{
		session.WithExpirySkew(o.cfg.GetExpirySkew()),
		session.WithLoginPath(o.cfg.GetLoginPath()),
	}
	if jwksURL := o.cfg.GetJWKSURL(); jwksURL != "" {
		managerOpts = append(managerOpts, session.WithVerifier(token.NewRemoteVerifier(context.WithoutCancel(ctx), o.cfg.GetIssuer(), jwksURL)))
	}

	api := authclient.New(o.baseURL, authclient.WithLogger(log.Logger))
	return &app{
		manager: session.NewManager(api, store, managerOpts...),
		store:   store,
		out:     out,
		close:   closeRepo,
	}, nil
}

// run opens the app for a one-shot command and applies the command timeout.
func (o *options) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	defer cancel()

	a, err := o.open(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close session storage")
		}
	}()
	return fn(ctx, a)
}
