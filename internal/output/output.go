// Package output renders a check result for humans or tools.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/okian/antiplag/internal/domain/aggregate"
	"github.com/okian/antiplag/internal/domain/model"
)

// Formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Print writes res to w in the console format: the result lines joined by
// newlines and closed by a blank line, then one "<user> <problems>" line per
// flagged user. An empty result still prints the two newlines.
func Print(w io.Writer, res model.Result) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(res.Lines, "\n"))
	bw.WriteString("\n\n")
	for _, s := range aggregate.Summary(res.Score) {
		fmt.Fprintln(bw, s.String())
	}
	return bw.Flush()
}

type document struct {
	Results []string                `json:"results"`
	Summary []aggregate.SummaryLine `json:"summary"`
}

// PrintJSON writes res as a single JSON document.
func PrintJSON(w io.Writer, res model.Result) error {
	doc := document{
		Results: res.Lines,
		Summary: aggregate.Summary(res.Score),
	}
	if doc.Results == nil {
		doc.Results = []string{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Write dispatches on format.
func Write(w io.Writer, format string, res model.Result) error {
	switch format {
	case "", FormatConsole:
		return Print(w, res)
	case FormatJSON:
		return PrintJSON(w, res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
