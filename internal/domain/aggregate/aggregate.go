// Package aggregate turns extracted match groups into report lines and the
// per-user plagiarism score.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/okian/antiplag/internal/domain/model"
)

// Aggregator applies the similarity threshold to match groups of one problem.
type Aggregator struct {
	threshold int
	urlBase   string
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithThreshold sets the percent both sides must reach. Values outside
// 0..100 are ignored.
func WithThreshold(threshold int) Option {
	return func(a *Aggregator) {
		if threshold >= 0 && threshold <= 100 {
			a.threshold = threshold
		}
	}
}

// WithURLBase sets the prefix submission ids are appended to.
func WithURLBase(base string) Option {
	return func(a *Aggregator) {
		if base != "" {
			a.urlBase = base
		}
	}
}

// Defaults.
const (
	DefaultThreshold = 50
	DefaultURLBase   = "https://admin.contest.yandex.ru/submissions/"
)

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{threshold: DefaultThreshold, urlBase: DefaultURLBase}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Threshold returns the configured percent.
func (a *Aggregator) Threshold() int { return a.threshold }

// Aggregate reports every two-sided group of problem whose sides both reach
// the threshold. A qualifying group yields the problem name followed by one
// line per side, and both users are flagged for problem. Groups that do not
// qualify contribute nothing. Groups must already be two-sided.
func (a *Aggregator) Aggregate(problem string, groups []model.MatchGroup, ids model.SubmissionIDs) (model.Result, error) {
	res := model.NewResult()
	for _, g := range groups {
		if len(g.Entries) != 2 {
			return model.Result{}, fmt.Errorf("match %s of %s: %w", g.Index, problem, ErrNotPair)
		}
		if !a.qualifies(g) {
			continue
		}

		lines := make([]string, 0, 3)
		lines = append(lines, problem)
		for _, e := range g.Entries {
			id, ok := ids[model.SubmissionKey{User: e.User, Problem: problem}]
			if !ok {
				return model.Result{}, fmt.Errorf("%w: user %q problem %q", ErrMissingSubmission, e.User, problem)
			}
			lines = append(lines, fmt.Sprintf("%s %s %d%%", e.User, SubmissionURL(a.urlBase, id), e.Percent))
		}

		res.Lines = append(res.Lines, lines...)
		for _, e := range g.Entries {
			res.Score.Add(e.User, problem)
		}
	}
	return res, nil
}

func (a *Aggregator) qualifies(g model.MatchGroup) bool {
	for _, e := range g.Entries {
		if e.Percent < a.threshold {
			return false
		}
	}
	return true
}

// SubmissionURL joins base and id.
func SubmissionURL(base, id string) string {
	if base == "" {
		base = DefaultURLBase
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + id
}

// Merge appends src to dst and unions the scores. dst is modified and
// returned; src is left untouched.
func Merge(dst, src model.Result) model.Result {
	if dst.Score == nil {
		dst.Score = make(model.Score)
	}
	dst.Lines = append(dst.Lines, src.Lines...)
	for user, problems := range src.Score {
		for p := range problems {
			dst.Score.Add(user, p)
		}
	}
	return dst
}

// SummaryLine is one user's flagged problems, concatenated in sorted order.
type SummaryLine struct {
	User     string `json:"user"`
	Problems string `json:"problems"`
}

// String renders the line as printed on the console.
func (s SummaryLine) String() string {
	return s.User + " " + s.Problems
}

// Summary lists flagged users alphabetically.
func Summary(score model.Score) []SummaryLine {
	users := score.Users()
	out := make([]SummaryLine, 0, len(users))
	for _, u := range users {
		out = append(out, SummaryLine{User: u, Problems: strings.Join(score.Problems(u), "")})
	}
	return out
}
