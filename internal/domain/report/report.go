// Package report extracts pairwise match records from a comparison report.
//
// A report lists one hyperlink per compared file; both sides of a match link
// to the same matchN page:
//
//	<TR><TD><A HREF="http://moss.stanford.edu/results/1/42/match0.html">ANTIPLAGIARISM/A/alice.py (85%)</A>
//	    <TD><A HREF="http://moss.stanford.edu/results/1/42/match0.html">ANTIPLAGIARISM/A/bob.py (90%)</A>
//
// Extraction does not validate the page structure. Rows that deviate from the
// pattern are skipped, so an unexpected page yields fewer groups, not an error.
package report

import (
	"fmt"
	"strings"

	"github.com/okian/antiplag/internal/domain/model"
)

// Extractor turns raw report HTML into match groups, in order of first
// appearance of each match index.
type Extractor interface {
	Extract(page []byte) ([]model.MatchGroup, error)
}

// New returns the extractor registered under kind: "regex" or "html".
func New(kind, sourceExt string) (Extractor, error) {
	switch kind {
	case "", "regex":
		return NewRegexExtractor(sourceExt), nil
	case "html":
		return NewHTMLExtractor(sourceExt), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExtractor, kind)
	}
}

// decodeUser reverses the service's space encoding in display names.
func decodeUser(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// groups accumulates entries by match index, keeping discovery order.
type groups struct {
	order []string
	byIdx map[string]*model.MatchGroup
}

func newGroups() *groups {
	return &groups{byIdx: make(map[string]*model.MatchGroup)}
}

func (g *groups) add(index string, e model.MatchEntry) {
	grp, ok := g.byIdx[index]
	if !ok {
		grp = &model.MatchGroup{Index: index}
		g.byIdx[index] = grp
		g.order = append(g.order, index)
	}
	grp.Entries = append(grp.Entries, e)
}

func (g *groups) list() []model.MatchGroup {
	out := make([]model.MatchGroup, 0, len(g.order))
	for _, idx := range g.order {
		out = append(out, *g.byIdx[idx])
	}
	return out
}

// Check verifies that every group has exactly two sides.
func Check(groups []model.MatchGroup) error {
	for _, g := range groups {
		if len(g.Entries) != 2 {
			return fmt.Errorf("%w: match %s has %d entries", ErrMalformedGroup, g.Index, len(g.Entries))
		}
	}
	return nil
}

// WellFormed splits groups into two-sided groups and the rest.
func WellFormed(groups []model.MatchGroup) (kept, dropped []model.MatchGroup) {
	for _, g := range groups {
		if len(g.Entries) == 2 {
			kept = append(kept, g)
		} else {
			dropped = append(dropped, g)
		}
	}
	return kept, dropped
}
