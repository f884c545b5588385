package csgraph

import (
	"fmt"
	"strings"
)

// Scope selects which reference contexts a query inspects.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeMethod
	ScopeField
	ScopeClass
)

func (s Scope) String() string {
	switch s {
	case ScopeMethod:
		return "method"
	case ScopeField:
		return "field"
	case ScopeClass:
		return "class"
	default:
		return "all"
	}
}

func (s Scope) includes(c RefContext) bool {
	switch s {
	case ScopeMethod:
		return c == ContextMethod
	case ScopeField:
		return c == ContextField
	case ScopeClass:
		return c == ContextClass
	default:
		return true
	}
}

// Run evaluates pattern against the graph in the given scope. The iteration
// order over files and references is unspecified; callers own deduplication
// and final ordering. Returns NotFoundError when nothing matches.
func Run(g *Graph, sourceType SourceType, scope Scope, pattern string) ([]Match, error) {
	if g == nil {
		return nil, fmt.Errorf("no graph available")
	}
	if sourceType != g.SourceType {
		return nil, fmt.Errorf("source type %q does not match graph source type %q", sourceType, g.SourceType)
	}
	if pattern == "" {
		return nil, fmt.Errorf("empty pattern")
	}

	var matches []Match
	for path, file := range g.Files {
		for _, ref := range file.Refs {
			if !scope.includes(ref.Context) {
				continue
			}
			matched, ok := refMatches(ref, pattern)
			if !ok {
				continue
			}
			matches = append(matches, Match{
				FileURI:    "file://" + path,
				LineNumber: ref.Line,
				Variables: map[string]string{
					"file":    path,
					"name":    matched,
					"context": ref.Context.String(),
				},
				CodeLocation: ref.Span,
			})
		}
	}
	if len(matches) == 0 {
		return nil, &NotFoundError{Pattern: pattern}
	}
	return matches, nil
}

// refMatches reports whether pattern matches the reference's symbol or one of
// its qualified aliases, returning the name that matched. A trailing '*'
// makes the pattern a prefix match; otherwise the pattern matches exactly or
// as a namespace prefix.
func refMatches(ref Ref, pattern string) (string, bool) {
	for _, cand := range append([]string{ref.Symbol}, ref.Aliases...) {
		if nameMatches(cand, pattern) {
			return cand, true
		}
	}
	return "", false
}

func nameMatches(name, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return name == pattern || strings.HasPrefix(name, pattern+".")
}
