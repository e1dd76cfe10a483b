package report

import (
	"bytes"
	"errors"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/okian/antiplag/internal/domain/model"
)

var matchHref = regexp.MustCompile(`match(\d+)\.html`)

// HTMLExtractor walks anchor elements with an HTML tokenizer instead of
// matching raw lines, so it tolerates reports whose rows are re-wrapped.
type HTMLExtractor struct {
	label *regexp.Regexp
}

// NewHTMLExtractor builds an extractor for files ending in sourceExt.
func NewHTMLExtractor(sourceExt string) *HTMLExtractor {
	// "<path>/<user><ext> (<P>%)"
	return &HTMLExtractor{
		label: regexp.MustCompile(`^\s*(.*?)` + regexp.QuoteMeta(sourceExt) + `\s*\((\d+)%\)\s*$`),
	}
}

// Extract implements Extractor.
func (x *HTMLExtractor) Extract(doc []byte) ([]model.MatchGroup, error) {
	g := newGroups()
	z := html.NewTokenizer(bytes.NewReader(doc))

	var (
		index  string
		inLink bool
		text   strings.Builder
	)

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return g.list(), nil
			}
			return nil, z.Err()

		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if m := matchHref.FindSubmatch(val); m != nil {
						index, inLink = string(m[1]), true
						text.Reset()
					}
				}
				if !more {
					break
				}
			}

		case html.TextToken:
			if inLink {
				text.Write(z.Text())
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) != "a" || !inLink {
				continue
			}
			inLink = false
			if e, ok := x.entry(text.String()); ok {
				g.add(index, e)
			}
		}
	}
}

func (x *HTMLExtractor) entry(label string) (model.MatchEntry, bool) {
	m := x.label.FindStringSubmatch(label)
	if m == nil {
		return model.MatchEntry{}, false
	}
	percent, err := strconv.Atoi(m[2])
	if err != nil {
		return model.MatchEntry{}, false
	}
	return model.MatchEntry{User: decodeUser(path.Base(m[1])), Percent: percent}, true
}
