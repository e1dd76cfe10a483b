package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	service "github.com/okian/antiplag/internal/app"
	"github.com/okian/antiplag/internal/config"
	"github.com/okian/antiplag/internal/output"
	"github.com/okian/antiplag/pkg/logger"
	"github.com/okian/antiplag/pkg/metrics"
)

var errInvalidArgCount = errors.New("expected exactly one argument: the contest export zip")

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Submit every problem of an export and print flagged pairs",
		ArgsUsage: "<export.zip>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file (defaults to $ANTIPLAG_CONFIG)",
			},
			&cli.StringSliceFlag{
				Name:    "admin",
				Aliases: []string{"a"},
				Usage:   "User name whose submissions are ignored; repeatable",
			},
			&cli.IntFlag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "Similarity percent both sides of a pair must reach (0-100)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json",
			},
			&cli.StringFlag{
				Name:  "parser",
				Usage: "Report parser: regex, html",
			},
			&cli.BoolFlag{
				Name:  "keep-workdir",
				Usage: "Leave the working directory next to the archive",
			},
			&cli.BoolFlag{
				Name:  "lenient",
				Usage: "Skip malformed match groups instead of failing",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics to this textfile after the run",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, error",
			},
		},
		Action: runCheck,
	}
}

func runCheck(ctx context.Context, cmd *cli.Command) (err error) {
	if cmd.NArg() != 1 {
		return fmt.Errorf("%w: got %d", errInvalidArgCount, cmd.NArg())
	}

	cfg, err := config.Load(ctx, cmd.String("config"))
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.InitWith(logger.Options{Writer: cmd.Root().ErrWriter, Format: cfg.LogFormat}); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	metrics.Configure(metrics.WithConstLabels(cfg.MetricsLabels))
	if cfg.MetricsFile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.MetricsFile); werr != nil {
				log.Warn(ctx, "failed to write metrics", logger.String("path", cfg.MetricsFile), logger.Error(werr))
			}
		}()
	}

	svc, err := service.FromConfig(cfg, log)
	if err != nil {
		return err
	}
	res, err := svc.Run(ctx, cmd.Args().First())
	if err != nil {
		return err
	}
	return output.Write(cmd.Root().Writer, cfg.OutputFormat, res)
}

// applyFlags overrides loaded settings with flags given on the command line.
func applyFlags(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("admin") {
		cfg.Admins = cmd.StringSlice("admin")
	}
	if cmd.IsSet("threshold") {
		cfg.Threshold = int(cmd.Int("threshold"))
	}
	if cmd.IsSet("format") {
		cfg.OutputFormat = cmd.String("format")
	}
	if cmd.IsSet("parser") {
		cfg.ReportParser = cmd.String("parser")
	}
	if cmd.IsSet("keep-workdir") {
		cfg.KeepWorkDir = cmd.Bool("keep-workdir")
	}
	if cmd.IsSet("lenient") {
		cfg.StrictGroups = !cmd.Bool("lenient")
	}
	if cmd.IsSet("metrics-file") {
		cfg.MetricsFile = cmd.String("metrics-file")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
}
