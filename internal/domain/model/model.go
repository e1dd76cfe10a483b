// Package model contains domain models passed between layers.
package model

import "sort"

// SubmissionKey identifies the single kept submission of a user for a problem.
type SubmissionKey struct {
	User    string
	Problem string
}

// SubmissionIDs maps a (user, problem) pair to the contest submission id.
type SubmissionIDs map[SubmissionKey]string

// Submission is one file of a contest export, parsed from its name.
type Submission struct {
	User    string
	Problem string
	ID      string // contest submission id, used to build the review URL
	Verdict string // last dash separated field, e.g. "OK.py" or "WA.py"
	Path    string // location of the extracted file
}

// MatchEntry is one side of a reported match.
type MatchEntry struct {
	User    string
	Percent int // 0..100
}

// MatchGroup collects the entries that share a match index in a report.
// A well formed group has exactly two entries.
type MatchGroup struct {
	Index   string
	Entries []MatchEntry
}

// Score maps a user to the set of problems they were flagged in.
type Score map[string]map[string]struct{}

// Add records problem for user. Repeated adds are no-ops.
func (s Score) Add(user, problem string) {
	problems, ok := s[user]
	if !ok {
		problems = make(map[string]struct{})
		s[user] = problems
	}
	problems[problem] = struct{}{}
}

// Has reports whether user was flagged in problem.
func (s Score) Has(user, problem string) bool {
	_, ok := s[user][problem]
	return ok
}

// Problems returns the sorted problems recorded for user.
func (s Score) Problems(user string) []string {
	out := make([]string, 0, len(s[user]))
	for p := range s[user] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Users returns flagged users in alphabetical order.
func (s Score) Users() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Result is the report accumulated over one or more problems.
type Result struct {
	// Lines holds a problem header followed by two offender lines per flagged pair.
	Lines []string
	Score Score
}

// NewResult returns an empty result ready for merging.
func NewResult() Result {
	return Result{Score: make(Score)}
}
