package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/authclient"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/spf13/cobra"
)

func newLoginCommand(opts *options) *cobra.Command {
	var (
		email      string
		password   string
		rememberMe bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.manager.Login(ctx, email, password, rememberMe)
				var authErr *authclient.AuthError
				if errors.As(err, &authErr) {
					return errors.New(authclient.UserMessage(err))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Logged in as %s (%s)\n", sess.Email, strings.Join(sess.Roles, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&rememberMe, "remember-me", false, "keep the session for 30 days instead of 12 hours")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a usable session is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if !a.manager.IsAuthenticated(ctx) {
					fmt.Fprintln(a.out, "Not logged in")
					return nil
				}
				fmt.Fprintln(a.out, "Logged in")

				access := a.manager.AccessToken(ctx)
				claims, err := token.Decode(access)
				switch {
				case err != nil || !claims.HasExpiry():
					fmt.Fprintln(a.out, "Access token: expired, renews on next use")
				case a.manager.IsAccessTokenExpired(ctx):
					fmt.Fprintf(a.out, "Access token: expired at %s, renews on next use\n", claims.ExpiresAt.Local().Format(time.RFC1123))
				default:
					fmt.Fprintf(a.out, "Access token: valid until %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
				}
				return nil
			})
		},
	}
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the stored identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sess, err := a.manager.Session(ctx)
				if err != nil {
					return errors.New("not logged in")
				}
				fmt.Fprintf(a.out, "User ID: %s\n", sess.UserID)
				fmt.Fprintf(a.out, "Email:   %s\n", sess.Email)
				fmt.Fprintf(a.out, "Roles:   %s\n", strings.Join(sess.Roles, ", "))
				if sess.CompanyID != "" {
					fmt.Fprintf(a.out, "Company: %s\n", sess.CompanyID)
				}
				if sess.ShopID != "" {
					fmt.Fprintf(a.out, "Shop:    %s\n", sess.ShopID)
				}
				return nil
			})
		},
	}
}

func newRefreshCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				access, err := a.manager.RefreshAccessToken(ctx)
				if errors.Is(err, session.ErrNoRefreshToken) {
					return errors.New("not logged in")
				}
				if err != nil {
					return fmt.Errorf("refresh failed: %w", err)
				}
				if claims, err := token.Decode(access); err == nil && claims.HasExpiry() {
					fmt.Fprintf(a.out, "Access token renewed, valid until %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
					return nil
				}
				fmt.Fprintln(a.out, "Access token renewed")
				return nil
			})
		},
	}
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				a.manager.Logout(ctx, a.navigate)
				fmt.Fprintln(a.out, "Logged out")
				return nil
			})
		},
	}
}

func newLogoutAllCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout-all",
		Short: "Log out of every session of this account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				a.manager.LogoutAllSessions(ctx, a.navigate)
				fmt.Fprintln(a.out, "Logged out of all sessions")
				return nil
			})
		},
	}
}
