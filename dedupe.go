package provider

import (
	"sort"

	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/csgraph"
)

type dedupeKey struct {
	uri  string
	line int
}

// deduplicateMatches collapses raw matches sharing a (file URI, line number)
// key into one canonical match per key. The query engine can report the same
// logical reference several times with slightly different spans when node
// boundaries are ambiguous; callers must see exactly one.
//
// Within a group the kept match minimizes (line, line-span, start character,
// end character). That tuple is a strict total order, so the selection does
// not depend on input order. Matches on different line numbers are never
// merged, even when their spans touch or overlap.
func deduplicateMatches(matches []csgraph.Match) []csgraph.Match {
	best := make(map[dedupeKey]csgraph.Match, len(matches))
	for _, m := range matches {
		key := dedupeKey{uri: m.FileURI, line: m.LineNumber}
		cur, ok := best[key]
		if !ok || tighter(m, cur) {
			best[key] = m
		}
	}

	out := make([]csgraph.Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FileURI != out[j].FileURI {
			return out[i].FileURI < out[j].FileURI
		}
		return out[i].LineNumber < out[j].LineNumber
	})
	return out
}

// tighter reports whether a should replace b as the canonical match for
// their shared key.
func tighter(a, b csgraph.Match) bool {
	ak := [4]int{a.LineNumber, a.CodeLocation.LineSpan(), a.CodeLocation.Start.Character, a.CodeLocation.End.Character}
	bk := [4]int{b.LineNumber, b.CodeLocation.LineSpan(), b.CodeLocation.Start.Character, b.CodeLocation.End.Character}
	for i := range ak {
		if ak[i] != bk[i] {
			return ak[i] < bk[i]
		}
	}
	return false
}
