package csgraph

import "fmt"

// SourceType classifies the project's language dialect and parameterizes
// queries against the graph.
type SourceType string

const (
	// SourceTypeCSharp is the only source type this provider produces.
	SourceTypeCSharp SourceType = "c_sharp"
)

// Position is a zero-based (line, character) pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Span is a half-open source range.
type Span struct {
	Start Position `json:"startPosition"`
	End   Position `json:"endPosition"`
}

// LineSpan returns the line-count width of the span. Tie-breaking during
// deduplication compares this, not the character width.
func (s Span) LineSpan() int {
	return s.End.Line - s.Start.Line
}

// Match is one raw hit returned by a pattern query. Produced transiently per
// query; never persisted.
type Match struct {
	FileURI      string
	LineNumber   int
	Variables    map[string]string
	CodeLocation Span
}

// NotFoundError signals that a pattern matched nothing in the graph. Callers
// treat it as a legitimate empty result, not a failure.
type NotFoundError struct {
	Pattern string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no nodes found for pattern %q", e.Pattern)
}

// Stats summarizes a graph build.
type Stats struct {
	Files      int
	References int
}
