package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/csgraph"
)

func makeMatch(fileURI string, lineNumber, startLine, startChar, endLine, endChar int) csgraph.Match {
	return csgraph.Match{
		FileURI:    fileURI,
		LineNumber: lineNumber,
		Variables:  map[string]string{},
		CodeLocation: csgraph.Span{
			Start: csgraph.Position{Line: startLine, Character: startChar},
			End:   csgraph.Position{Line: endLine, Character: endChar},
		},
	}
}

func findMatch(t *testing.T, matches []csgraph.Match, fileURI string, line int) csgraph.Match {
	t.Helper()
	for _, m := range matches {
		if m.FileURI == fileURI && m.LineNumber == line {
			return m
		}
	}
	t.Fatalf("no match for %s:%d", fileURI, line)
	return csgraph.Match{}
}

func TestDeduplicationKeepsSmallestSpan(t *testing.T) {
	matches := []csgraph.Match{
		makeMatch("file1.cs", 10, 10, 0, 15, 0), // span=5 lines
		makeMatch("file1.cs", 10, 10, 5, 12, 0), // span=2 lines, should win
		makeMatch("file1.cs", 10, 10, 0, 20, 0), // span=10 lines
		makeMatch("file2.cs", 20, 20, 0, 21, 0), // different location
	}

	deduplicated := deduplicateMatches(matches)
	require.Len(t, deduplicated, 2)

	kept := findMatch(t, deduplicated, "file1.cs", 10)
	assert.Equal(t, 2, kept.CodeLocation.LineSpan())
	assert.Equal(t, 5, kept.CodeLocation.Start.Character)
}

func TestDeduplicationIsDeterministic(t *testing.T) {
	input := func() []csgraph.Match {
		return []csgraph.Match{
			makeMatch("file1.cs", 10, 10, 0, 15, 0),
			makeMatch("file1.cs", 10, 10, 5, 12, 0),
			makeMatch("file1.cs", 10, 10, 0, 20, 0),
			makeMatch("file1.cs", 10, 10, 8, 13, 0), // same span as second, later char
		}
	}

	var chars []int
	for i := 0; i < 3; i++ {
		deduplicated := deduplicateMatches(input())
		require.Len(t, deduplicated, 1)
		chars = append(chars, deduplicated[0].CodeLocation.Start.Character)
	}

	assert.Equal(t, chars[0], chars[1])
	assert.Equal(t, chars[1], chars[2])
	assert.Equal(t, 5, chars[0], "should consistently pick character position 5")
}

func TestDeduplicationPrefersEarlierCharacterWhenSameSpan(t *testing.T) {
	matches := []csgraph.Match{
		makeMatch("file1.cs", 10, 10, 10, 12, 0), // span=2, char=10
		makeMatch("file1.cs", 10, 10, 5, 12, 0),  // span=2, char=5, should win
		makeMatch("file1.cs", 10, 10, 15, 12, 0), // span=2, char=15
	}

	deduplicated := deduplicateMatches(matches)
	require.Len(t, deduplicated, 1)
	assert.Equal(t, 5, deduplicated[0].CodeLocation.Start.Character)
}

func TestDeduplicationIsOrderIndependent(t *testing.T) {
	large := makeMatch("file1.cs", 10, 10, 0, 15, 0)
	small := makeMatch("file1.cs", 10, 10, 5, 12, 0) // winner
	huge := makeMatch("file1.cs", 10, 10, 0, 20, 0)
	other := makeMatch("file2.cs", 20, 20, 0, 21, 0)

	orderings := [][]csgraph.Match{
		{large, small, huge, other},
		{other, huge, small, large},
		{huge, other, large, small},
	}

	var outputs [][]csgraph.Match
	for _, matches := range orderings {
		outputs = append(outputs, deduplicateMatches(matches))
	}

	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])

	kept := findMatch(t, outputs[0], "file1.cs", 10)
	assert.Equal(t, 2, kept.CodeLocation.LineSpan())
	assert.Equal(t, 5, kept.CodeLocation.Start.Character)
}

func TestDeduplicationAdjacentLinesTreeSitterScenario(t *testing.T) {
	// Parsing ambiguities can produce several nodes for the same line with
	// different spans; entries for distinct lines stay separate because the
	// grouping key is (file URI, line number).
	matches := []csgraph.Match{
		makeMatch("AccountController.cs", 179, 179, 16, 179, 26), // tight span on line 179
		makeMatch("AccountController.cs", 179, 179, 16, 181, 17), // crosses to line 181
		makeMatch("AccountController.cs", 179, 177, 0, 179, 26),  // starts earlier
		makeMatch("AccountController.cs", 240, 240, 0, 240, 94),  // tight span on line 240
		makeMatch("AccountController.cs", 240, 240, 0, 241, 20),  // crosses to line 241
		makeMatch("AccountController.cs", 240, 239, 0, 240, 94),  // starts earlier
		makeMatch("AccountController.cs", 241, 241, 16, 241, 23),
		makeMatch("AccountController.cs", 241, 241, 0, 242, 10),
		makeMatch("DinnerController.cs", 100, 100, 0, 100, 10),
	}

	deduplicated := deduplicateMatches(matches)
	require.Len(t, deduplicated, 4,
		"same-line entries collapse but distinct line numbers survive")

	line179 := findMatch(t, deduplicated, "AccountController.cs", 179)
	assert.Equal(t, 0, line179.CodeLocation.LineSpan())
	assert.Equal(t, 179, line179.CodeLocation.Start.Line)
	assert.Equal(t, 16, line179.CodeLocation.Start.Character)
	assert.Equal(t, 26, line179.CodeLocation.End.Character)

	line240 := findMatch(t, deduplicated, "AccountController.cs", 240)
	assert.Equal(t, 0, line240.CodeLocation.LineSpan())
	assert.Equal(t, 240, line240.CodeLocation.Start.Line)
	assert.Equal(t, 94, line240.CodeLocation.End.Character)

	line241 := findMatch(t, deduplicated, "AccountController.cs", 241)
	assert.Equal(t, 0, line241.CodeLocation.LineSpan())
	assert.Equal(t, 241, line241.CodeLocation.Start.Line)
	assert.Equal(t, 16, line241.CodeLocation.Start.Character)

	accountResults := 0
	for _, m := range deduplicated {
		if m.FileURI == "AccountController.cs" {
			accountResults++
		}
	}
	assert.Equal(t, 3, accountResults)
}

func TestDeduplicationDoesNotMergeDifferentLines(t *testing.T) {
	matches := []csgraph.Match{
		makeMatch("file.cs", 179, 179, 0, 179, 10),
		makeMatch("file.cs", 180, 180, 0, 180, 10),
		makeMatch("file.cs", 181, 181, 0, 181, 10),
	}

	deduplicated := deduplicateMatches(matches)
	require.Len(t, deduplicated, 3, "adjacent line numbers are separate keys")

	lines := map[int]bool{}
	for _, m := range deduplicated {
		lines[m.LineNumber] = true
	}
	assert.True(t, lines[179])
	assert.True(t, lines[180])
	assert.True(t, lines[181])
}

func TestDeduplicationIsIdempotent(t *testing.T) {
	matches := []csgraph.Match{
		makeMatch("file1.cs", 10, 10, 0, 15, 0),
		makeMatch("file1.cs", 10, 10, 5, 12, 0),
		makeMatch("file2.cs", 20, 20, 0, 21, 0),
	}

	once := deduplicateMatches(matches)
	twice := deduplicateMatches(once)
	assert.Equal(t, once, twice)
}

func TestDeduplicationEmptyInput(t *testing.T) {
	assert.Empty(t, deduplicateMatches(nil))
	assert.Empty(t, deduplicateMatches([]csgraph.Match{}))
}
