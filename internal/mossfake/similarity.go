package mossfake

import (
	"sort"
	"strings"
)

// File is one file received in a session.
type File struct {
	Index    int
	Language string
	Name     string
	Data     []byte
}

// Match pairs two submissions that share lines.
type Match struct {
	A, B         string // display names
	PercentA     int
	PercentB     int
	SharedLines  int
	SharedSample []string
}

// compare computes a naive line-overlap similarity between every pair of
// submissions. Lines found in base files, and lines shared by more than
// maxMatches submissions, are not counted. Percentages are shared lines over
// the file's own counted lines, rounded down.
func compare(files []File, maxMatches, show int) []Match {
	base := make(map[string]struct{})
	var subs []File
	for _, f := range files {
		if f.Index == 0 {
			for l := range lineSet(f.Data) {
				base[l] = struct{}{}
			}
			continue
		}
		subs = append(subs, f)
	}

	sets := make([]map[string]struct{}, len(subs))
	freq := make(map[string]int)
	for i, f := range subs {
		set := lineSet(f.Data)
		for l := range base {
			delete(set, l)
		}
		sets[i] = set
		for l := range set {
			freq[l]++
		}
	}
	if maxMatches > 0 {
		for i := range sets {
			for l := range sets[i] {
				if freq[l] > maxMatches {
					delete(sets[i], l)
				}
			}
		}
	}

	var out []Match
	for i := 0; i < len(subs); i++ {
		for j := i + 1; j < len(subs); j++ {
			shared := intersect(sets[i], sets[j])
			if len(shared) == 0 {
				continue
			}
			out = append(out, Match{
				A:            subs[i].Name,
				B:            subs[j].Name,
				PercentA:     len(shared) * 100 / len(sets[i]),
				PercentB:     len(shared) * 100 / len(sets[j]),
				SharedLines:  len(shared),
				SharedSample: shared,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SharedLines > out[j].SharedLines })
	if show > 0 && len(out) > show {
		out = out[:show]
	}
	return out
}

func lineSet(data []byte) map[string]struct{} {
	set := make(map[string]struct{})
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			set[l] = struct{}{}
		}
	}
	return set
}

func intersect(a, b map[string]struct{}) []string {
	var out []string
	for l := range a {
		if _, ok := b[l]; ok {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
