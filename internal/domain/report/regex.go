package report

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"

	"golang.org/x/net/html"

	"github.com/okian/antiplag/internal/domain/model"
)

const matchAnchor = "/match"

// RegexExtractor scans the report line by line with a fixed pattern.
type RegexExtractor struct {
	re *regexp.Regexp
}

// NewRegexExtractor builds an extractor for files ending in sourceExt.
func NewRegexExtractor(sourceExt string) *RegexExtractor {
	// match<N> ... /<user><ext> ... <P>%
	pattern := `match(\d+)[^>]*>[^<]*?([^/<>]+?)` + regexp.QuoteMeta(sourceExt) + `\s*\((\d+)%\)`
	return &RegexExtractor{re: regexp.MustCompile(pattern)}
}

// Extract implements Extractor. Captured names are entity-decoded:
// o&#39;neil becomes o'neil.
func (x *RegexExtractor) Extract(page []byte) ([]model.MatchGroup, error) {
	g := newGroups()

	sc := bufio.NewScanner(bytes.NewReader(page))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if !bytes.Contains(line, []byte(matchAnchor)) {
			continue
		}
		m := x.re.FindSubmatch(line)
		if m == nil {
			continue
		}
		percent, err := strconv.Atoi(string(m[3]))
		if err != nil {
			continue
		}
		g.add(string(m[1]), model.MatchEntry{User: decodeUser(html.UnescapeString(string(m[2]))), Percent: percent})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return g.list(), nil
}
