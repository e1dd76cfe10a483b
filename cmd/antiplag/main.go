package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/okian/antiplag/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "antiplag",
		Usage:   "Find copied solutions in a contest export using MOSS",
		Version: version,
		Commands: []*cli.Command{
			checkCommand(),
		},
	}
}

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}

	if err := newApp().Run(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "failed to run", logger.Error(err))
		stop()
		os.Exit(1)
	}
	stop()
}
