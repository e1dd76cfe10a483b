package service

import (
	"net/http"

	"github.com/okian/antiplag/internal/adapters/moss"
	"github.com/okian/antiplag/internal/archive"
	"github.com/okian/antiplag/internal/config"
	"github.com/okian/antiplag/internal/domain/aggregate"
	"github.com/okian/antiplag/internal/domain/report"
	"github.com/okian/antiplag/pkg/logger"
)

// FromConfig builds a Service wired from cfg. Extra options are applied last.
func FromConfig(cfg *config.Config, l logger.Logger, extra ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	extractor, err := report.New(cfg.ReportParser, cfg.SourceExt)
	if err != nil {
		return nil, err
	}

	client := moss.New(
		moss.WithServer(cfg.Moss.Server),
		moss.WithUserID(cfg.Moss.UserID),
		moss.WithLanguage(cfg.Moss.Language),
		moss.WithIgnoreLimit(cfg.Moss.IgnoreLimit),
		moss.WithShow(cfg.Moss.Show),
		moss.WithComment(cfg.Moss.Comment),
		moss.WithBaseFiles(cfg.Moss.BaseFiles...),
		moss.WithDirectoryMode(cfg.Moss.Directory),
		moss.WithExperimental(cfg.Moss.Experimental),
		moss.WithSourceExt(cfg.SourceExt),
		moss.WithTimeouts(cfg.Moss.DialTimeout, cfg.Moss.IOTimeout),
		moss.WithHTTPClient(&http.Client{Timeout: cfg.Moss.HTTPTimeout}),
		moss.WithLogger(l.Named("moss")),
	)

	opts := []Option{
		WithLogger(l),
		WithUnpacker(archive.New(
			archive.WithWorkDirName(cfg.WorkDirName),
			archive.WithSourceExt(cfg.SourceExt),
			archive.WithLogger(l.Named("archive")),
		)),
		WithSubmitter(client),
		WithFetcher(client),
		WithExtractor(extractor),
		WithAggregator(aggregate.New(
			aggregate.WithThreshold(cfg.Threshold),
			aggregate.WithURLBase(cfg.SubmissionURLBase),
		)),
		WithAdmins(cfg.Admins...),
		WithStrictGroups(cfg.StrictGroups),
		WithKeepWorkDir(cfg.KeepWorkDir),
	}
	return New(append(opts, extra...)...), nil
}
