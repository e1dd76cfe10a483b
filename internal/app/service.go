// Package service runs the plagiarism check pipeline: unpack the export,
// submit every problem to the comparison service, parse the reports and
// aggregate flagged pairs.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/antiplag/internal/adapters/moss"
	"github.com/okian/antiplag/internal/archive"
	"github.com/okian/antiplag/internal/domain/aggregate"
	"github.com/okian/antiplag/internal/domain/model"
	"github.com/okian/antiplag/internal/domain/report"
	"github.com/okian/antiplag/pkg/logger"
	"github.com/okian/antiplag/pkg/metrics"
)

// Unpacker prepares the per-problem working directory.
type Unpacker interface {
	Unpack(ctx context.Context, zipPath string, admins []string) (*archive.Workspace, error)
}

// Submitter sends one problem directory and returns the report URL.
type Submitter interface {
	Submit(ctx context.Context, dir string) (string, error)
}

// Fetcher downloads a report.
type Fetcher interface {
	FetchReport(ctx context.Context, url string) ([]byte, error)
}

// Service drives one check run at a time.
type Service struct {
	unpacker   Unpacker
	submitter  Submitter
	fetcher    Fetcher
	extractor  report.Extractor
	aggregator *aggregate.Aggregator

	admins       []string
	strictGroups bool
	keepWorkDir  bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithUnpacker sets the archive unpacker.
func WithUnpacker(u Unpacker) Option {
	return func(s *Service) {
		if u != nil {
			s.unpacker = u
		}
	}
}

// WithSubmitter sets the comparison service client used for submissions.
func WithSubmitter(sub Submitter) Option {
	return func(s *Service) {
		if sub != nil {
			s.submitter = sub
		}
	}
}

// WithFetcher sets the report downloader.
func WithFetcher(f Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithExtractor sets the report extractor.
func WithExtractor(x report.Extractor) Option {
	return func(s *Service) {
		if x != nil {
			s.extractor = x
		}
	}
}

// WithAggregator sets the threshold and URL policy.
func WithAggregator(a *aggregate.Aggregator) Option {
	return func(s *Service) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithAdmins sets user names whose folders are skipped.
func WithAdmins(admins ...string) Option {
	return func(s *Service) {
		s.admins = append([]string(nil), admins...)
	}
}

// WithStrictGroups fails runs on match groups that are not pairs. When off,
// such groups are logged and skipped.
func WithStrictGroups(strict bool) Option {
	return func(s *Service) {
		s.strictGroups = strict
	}
}

// WithKeepWorkDir leaves the working directory on disk after the run.
func WithKeepWorkDir(keep bool) Option {
	return func(s *Service) {
		s.keepWorkDir = keep
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Without options it talks to the public MOSS
// server with the default account and a 50% threshold.
func New(opts ...Option) *Service {
	client := moss.New()
	s := &Service{
		unpacker:     archive.New(),
		submitter:    client,
		fetcher:      client,
		extractor:    report.NewRegexExtractor(".py"),
		aggregator:   aggregate.New(),
		strictGroups: true,
		logger:       nil, // resolved on Run
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run checks the export at zipPath and returns the accumulated result. The
// working directory is removed on every exit path unless kept explicitly.
func (s *Service) Run(ctx context.Context, zipPath string) (_ model.Result, err error) {
	if s.logger == nil {
		s.logger = logger.Get()
	}
	runID := uuid.NewString()
	log := s.logger.With(logger.String("run_id", runID))

	start := time.Now()
	defer func() {
		metrics.UpdateRunDuration(time.Since(start).Seconds())
		if err != nil {
			log.Error(ctx, "run failed", logger.Error(err))
		}
	}()

	log.Info(ctx, "unpacking archive",
		logger.String("archive", zipPath),
		logger.Strings("admins", s.admins))
	ws, err := s.unpacker.Unpack(ctx, zipPath, s.admins)
	if err != nil {
		metrics.RecordError("archive")
		return model.Result{}, fmt.Errorf("unpack %s: %w", zipPath, err)
	}
	if s.keepWorkDir {
		log.Info(ctx, "keeping working directory", logger.String("dir", ws.Dir))
	} else {
		defer func() {
			if cerr := ws.Close(); cerr != nil {
				log.Warn(ctx, "failed to remove working directory", logger.String("dir", ws.Dir), logger.Error(cerr))
			}
		}()
	}

	problems, err := ws.Problems()
	if err != nil {
		metrics.RecordError("archive")
		return model.Result{}, err
	}

	res := model.NewResult()
	for i, problem := range problems {
		if err := ctx.Err(); err != nil {
			return model.Result{}, err
		}
		log.Info(ctx, "checking problem",
			logger.String("problem", problem),
			logger.Int("index", i+1),
			logger.Int("total", len(problems)))

		pr, err := s.checkProblem(ctx, log, ws, problem)
		if err != nil {
			return model.Result{}, fmt.Errorf("problem %s: %w", problem, err)
		}
		res = aggregate.Merge(res, pr)
		metrics.RecordProblemProcessed()
	}

	metrics.UpdateUsersFlagged(len(res.Score))
	log.Info(ctx, "run finished",
		logger.Int("problems", len(problems)),
		logger.Int("flagged_users", len(res.Score)),
		logger.Any("elapsed", time.Since(start).Round(time.Millisecond)))
	return res, nil
}

func (s *Service) checkProblem(ctx context.Context, log logger.Logger, ws *archive.Workspace, problem string) (model.Result, error) {
	reportURL, err := s.submitter.Submit(ctx, filepath.Join(ws.Dir, problem))
	if err != nil {
		metrics.RecordError("moss")
		return model.Result{}, fmt.Errorf("submit: %w", err)
	}
	log.Debug(ctx, "report url", logger.String("problem", problem), logger.String("url", reportURL))

	page, err := s.fetcher.FetchReport(ctx, reportURL)
	if err != nil {
		metrics.RecordError("moss")
		return model.Result{}, fmt.Errorf("fetch report: %w", err)
	}

	groups, err := s.extractor.Extract(page)
	if err != nil {
		metrics.RecordError("report")
		return model.Result{}, fmt.Errorf("extract report: %w", err)
	}
	metrics.AddMatchGroups(len(groups))

	if s.strictGroups {
		if err := report.Check(groups); err != nil {
			metrics.RecordError("report")
			return model.Result{}, err
		}
	} else {
		var dropped []model.MatchGroup
		groups, dropped = report.WellFormed(groups)
		for _, g := range dropped {
			log.Warn(ctx, "skipping malformed match group",
				logger.String("problem", problem),
				logger.String("match", g.Index),
				logger.Int("entries", len(g.Entries)))
		}
	}

	pr, err := s.aggregator.Aggregate(problem, groups, ws.SubmissionIDs)
	if err != nil {
		metrics.RecordError("aggregate")
		return model.Result{}, err
	}
	metrics.AddFlaggedGroups(len(pr.Lines) / linesPerGroup)
	return pr, nil
}

// A flagged group prints a header plus one line per side.
const linesPerGroup = 3
