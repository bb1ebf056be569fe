package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-session/devauth"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
	"github.com/jrsteele09/go-auth-session/token/keys"
	refreshfake "github.com/jrsteele09/go-auth-session/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-auth-session/users/repofake"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const signingKeyID = "devauth-key"

func main() {
	_ = godotenv.Load()
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stderr)
	displayAppname("devauth")

	keyPair, err := signingKey(c)
	if err != nil {
		return err
	}
	handler, err := devauth.New(c, fakeuserrepo.NewFakeUserRepo(), refreshfake.NewFakeRefreshTokenRepo(), keyPair)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handler.RunJanitor(ctx, time.Minute)

	server := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(server) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

// signingKey loads the RSA key from DEVAUTH_KEY_FILE, creating it on first run. Without a key
// file every restart invalidates the tokens issued before it.
func signingKey(c config.Config) (*keys.KeyPair, error) {
	if path := c.GetSigningKeyFile(); path != "" {
		return keys.LoadOrGenerate(afero.NewOsFs(), path, signingKeyID)
	}
	log.Warn().Msg("DEVAUTH_KEY_FILE not set, using an ephemeral signing key")
	return keys.GenerateRSAKeyPair(signingKeyID, 2048)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
