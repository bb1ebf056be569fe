package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-auth-session/internal/cli"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/internal/logging"
)

func main() {
	_ = godotenv.Load()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel(), os.Stderr)

	if err := cli.NewRootCommand(c).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
