// Package devauth is a development stand-in for the remote auth endpoints. It issues RS256
// access tokens and rotating refresh tokens for a small in-memory user list.
package devauth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/token/jwt"
	"github.com/jrsteele09/go-auth-session/token/keys"
	"github.com/jrsteele09/go-auth-session/token/refresh"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	logger  zerolog.Logger
	users   users.UserRepo
	refresh *refresh.Manager
	signer  *keys.Signer
	creator *jwt.Creator
	inspect *jwt.Inspector
	revoked *jwt.Denylist
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(cfg config.Config, userRepo users.UserRepo, refreshRepo refresh.Repo, keyPair *keys.KeyPair, options ...Option) (*Server, error) {
	signer, err := keys.NewSigner(keyPair)
	if err != nil {
		return nil, fmt.Errorf("[devauth New] %w", err)
	}
	revoked := jwt.NewDenylist()

	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		logger:  log.Logger,
		users:   userRepo,
		refresh: refresh.NewManager(refreshRepo, cfg),
		signer:  signer,
		creator: jwt.NewCreator(cfg, signer),
		inspect: jwt.NewInspector(signer, cfg.GetDevIssuer(), revoked),
		revoked: revoked,
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.InitialiseSystem(); err != nil {
		return nil, fmt.Errorf("[devauth New] failed to initialise the system: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// RunJanitor drops expired entries from the revoked access token list until ctx ends.
func (s *Server) RunJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.revoked.Sweep(); n > 0 {
				s.logger.Debug().Int("expired", n).Msg("swept revoked access tokens")
			}
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
