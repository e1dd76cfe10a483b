// Command moss-fake runs a local MOSS stand-in for dry runs:
//
//	moss-fake --socket :7690 --http :8080
//	ANTIPLAG_MOSS__SERVER=localhost:7690 antiplag check export.zip
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/okian/antiplag/internal/mossfake"
	"github.com/okian/antiplag/pkg/logger"
)

const defaultIOTimeout = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}

	cmd := &cli.Command{
		Name:  "moss-fake",
		Usage: "Serve the MOSS submission protocol and reports locally",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "socket", Value: "127.0.0.1:7690", Usage: "Submission protocol listen address"},
			&cli.StringFlag{Name: "http", Value: "127.0.0.1:8080", Usage: "Report pages listen address"},
			&cli.StringFlag{Name: "public-url", Usage: "Base URL used in report links (defaults to the http address)"},
			&cli.StringSliceFlag{Name: "language", Usage: "Accepted language; repeatable (defaults to the service's list)"},
			&cli.DurationFlag{Name: "io-timeout", Value: defaultIOTimeout, Usage: "Deadline for one submission session"},
		},
		Action: serve,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		logger.Get().Error(ctx, "moss-fake failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
	stop()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	log := logger.Named("moss-fake")
	srv := mossfake.New(
		mossfake.WithLanguages(cmd.StringSlice("language")...),
		mossfake.WithPublicURL(cmd.String("public-url")),
		mossfake.WithIOTimeout(cmd.Duration("io-timeout")),
		mossfake.WithLogger(log),
	)
	if err := srv.Start(ctx, cmd.String("socket"), cmd.String("http")); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info(context.Background(), "shutting down")
	return srv.Close()
}
