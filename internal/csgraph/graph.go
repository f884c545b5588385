package csgraph

import (
	"fmt"
	"sync"
)

// RefContext classifies where in a file a reference occurs. Queries filter on
// it when the condition asks for METHOD, FIELD, or CLASS scope.
type RefContext int

const (
	ContextUnknown RefContext = iota
	ContextUsing
	ContextMethod
	ContextField
	ContextClass
)

func (c RefContext) String() string {
	switch c {
	case ContextUsing:
		return "using"
	case ContextMethod:
		return "method"
	case ContextField:
		return "field"
	case ContextClass:
		return "class"
	default:
		return "unknown"
	}
}

// Ref is one reference to a symbol in a source file. Aliases carry candidate
// fully qualified names derived from the file's using directives; a pattern
// matches the reference if it matches the symbol or any alias.
type Ref struct {
	Symbol  string
	Aliases []string
	Context RefContext
	Line    int
	Span    Span
}

// FileIndex holds everything extracted from one source file.
type FileIndex struct {
	Path      string
	Namespace string
	Usings    []string
	Refs      []Ref
}

// Graph is the in-memory reference graph for a project. A Graph is immutable
// after Publish; readers share it by pointer.
type Graph struct {
	SourceType SourceType
	Files      map[string]*FileIndex
}

// Stats counts the graph's contents.
func (g *Graph) Stats() Stats {
	st := Stats{Files: len(g.Files)}
	for _, f := range g.Files {
		st.References += len(f.Refs)
	}
	return st
}

// Validate checks the structural invariants a graph must satisfy before it
// may be published: every file entry is keyed by its own path and every
// reference carries a non-empty symbol.
func (g *Graph) Validate() error {
	if g.SourceType == "" {
		return fmt.Errorf("graph has no source type")
	}
	for path, f := range g.Files {
		if f == nil || f.Path != path {
			return fmt.Errorf("file entry %q is inconsistent", path)
		}
		for _, r := range f.Refs {
			if r.Symbol == "" {
				return fmt.Errorf("file %q has a reference without a symbol", path)
			}
		}
	}
	return nil
}

// SharedGraph is the process-wide handle to the project's graph. Writers
// build a complete Graph off to the side, validate it, and publish it with a
// single pointer swap; readers take a snapshot and query it without holding
// any lock. A reader therefore never observes a half-built graph and a
// faulted writer cannot wedge the handle.
type SharedGraph struct {
	mu sync.RWMutex
	g  *Graph
}

// NewShared returns an empty handle. Snapshot returns nil until the first
// successful Publish.
func NewShared() *SharedGraph {
	return &SharedGraph{}
}

// Publish validates g and installs it as the current graph.
func (s *SharedGraph) Publish(g *Graph) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("refusing to publish graph: %w", err)
	}
	s.mu.Lock()
	s.g = g
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current graph, or nil if none has been published.
func (s *SharedGraph) Snapshot() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g
}
