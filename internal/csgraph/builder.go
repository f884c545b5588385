package csgraph

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	tscsharp "github.com/smacker/go-tree-sitter/csharp"
	"golang.org/x/sync/errgroup"
)

// skipDirs are directories excluded from source discovery.
var skipDirs = map[string]bool{
	"bin":          true,
	"obj":          true,
	"packages":     true,
	"node_modules": true,
}

// Build walks location for C# sources and produces the project's reference
// graph. Files are parsed on a worker pool; a parse failure aborts the build,
// since an incomplete graph would answer queries incorrectly. The returned
// graph is private to the caller until it publishes it.
func Build(ctx context.Context, location string) (*Graph, error) {
	paths, err := listSourceFiles(location)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}

	g := &Graph{
		SourceType: SourceTypeCSharp,
		Files:      make(map[string]*FileIndex, len(paths)),
	}

	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())

	for _, path := range paths {
		path := path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			idx, err := indexFile(ctx, path, src)
			if err != nil {
				return fmt.Errorf("index %s: %w", path, err)
			}
			mu.Lock()
			g.Files[path] = idx
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return g, nil
}

// listSourceFiles discovers .cs files under root, skipping hidden and build
// output directories.
func listSourceFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".cs") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return paths, nil
}

// indexFile parses one source file and extracts its namespace, using
// directives, and symbol references. Each call owns its parser; tree-sitter
// parsers are not safe for concurrent use.
func indexFile(ctx context.Context, path string, src []byte) (*FileIndex, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(tscsharp.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	idx := &FileIndex{Path: path}
	root := tree.RootNode()

	idx.Namespace = extractNamespace(root, src)
	collectUsings(root, src, idx)
	collectRefs(root, src, idx)

	// Qualify unqualified references against the file's usings and namespace
	// so namespace patterns like System.Web.Mvc* can match them.
	prefixes := make([]string, 0, len(idx.Usings)+1)
	if idx.Namespace != "" {
		prefixes = append(prefixes, idx.Namespace)
	}
	prefixes = append(prefixes, idx.Usings...)
	for i := range idx.Refs {
		r := &idx.Refs[i]
		if r.Context == ContextUsing || strings.Contains(r.Symbol, ".") {
			continue
		}
		for _, p := range prefixes {
			r.Aliases = append(r.Aliases, p+"."+r.Symbol)
		}
	}
	return idx, nil
}

func extractNamespace(root *sitter.Node, src []byte) string {
	var found string
	var walk func(*sitter.Node) bool
	walk = func(n *sitter.Node) bool {
		if n == nil {
			return false
		}
		t := n.Type()
		if t == "namespace_declaration" || t == "file_scoped_namespace_declaration" {
			if name := n.ChildByFieldName("name"); name != nil {
				found = strings.TrimSpace(name.Content(src))
				return true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if walk(n.NamedChild(i)) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

func collectUsings(root *sitter.Node, src []byte, idx *FileIndex) {
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "using_directive" {
			if path := usingPath(n, src); path != "" {
				idx.Usings = append(idx.Usings, path)
				idx.Refs = append(idx.Refs, Ref{
					Symbol:  path,
					Context: ContextUsing,
					Line:    int(n.StartPoint().Row),
					Span:    nodeSpan(n),
				})
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
}

func usingPath(n *sitter.Node, src []byte) string {
	var fallback string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "qualified_name", "alias_qualified_name":
			return strings.TrimSpace(child.Content(src))
		case "identifier":
			if text := strings.TrimSpace(child.Content(src)); text != "" {
				fallback = text
			}
		}
	}
	return fallback
}

// dottedNodes are node types whose full dotted text is recorded as a single
// reference when they are not nested inside a larger dotted expression.
var dottedNodes = map[string]bool{
	"qualified_name":           true,
	"member_access_expression": true,
}

// identifierParents are node types under which a bare identifier counts as a
// type reference.
var identifierParents = map[string]bool{
	"base_list":                  true,
	"attribute":                  true,
	"object_creation_expression": true,
	"variable_declaration":       true,
	"parameter":                  true,
	"type_argument_list":         true,
	"cast_expression":            true,
	"is_expression":              true,
	"as_expression":              true,
	"type_of_expression":         true,
	"declaration_pattern":        true,
	"method_declaration":         true,
	"property_declaration":       true,
	"field_declaration":          true,
	"event_field_declaration":    true,
	"invocation_expression":      true,
}

func collectRefs(root *sitter.Node, src []byte, idx *FileIndex) {
	var walk func(*sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		t := n.Type()
		switch {
		case t == "using_directive":
			return // handled by collectUsings
		case dottedNodes[t]:
			if p := n.Parent(); p == nil || !dottedNodes[p.Type()] {
				idx.Refs = append(idx.Refs, makeRef(n, src))
			}
		case t == "identifier" || t == "generic_name":
			if p := n.Parent(); p != nil && identifierParents[p.Type()] && !dottedNodes[p.Type()] {
				idx.Refs = append(idx.Refs, makeRef(n, src))
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
}

func makeRef(n *sitter.Node, src []byte) Ref {
	symbol := strings.TrimSpace(n.Content(src))
	if n.Type() == "generic_name" {
		// List<Foo> references List; the type arguments are walked separately.
		if cut := strings.IndexByte(symbol, '<'); cut > 0 {
			symbol = symbol[:cut]
		}
	}
	return Ref{
		Symbol:  symbol,
		Context: classifyContext(n),
		Line:    int(n.StartPoint().Row),
		Span:    nodeSpan(n),
	}
}

// classifyContext walks the ancestor chain and reports the innermost
// construct that determines the reference's scope.
func classifyContext(n *sitter.Node) RefContext {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "using_directive":
			return ContextUsing
		case "method_declaration", "constructor_declaration", "destructor_declaration",
			"local_function_statement", "accessor_declaration", "lambda_expression",
			"operator_declaration", "conversion_operator_declaration":
			return ContextMethod
		case "field_declaration", "event_field_declaration", "property_declaration":
			return ContextField
		case "base_list", "attribute":
			return ContextClass
		case "class_declaration", "interface_declaration", "struct_declaration",
			"record_declaration", "enum_declaration":
			return ContextClass
		}
	}
	return ContextUnknown
}

func nodeSpan(n *sitter.Node) Span {
	return Span{
		Start: Position{Line: int(n.StartPoint().Row), Character: int(n.StartPoint().Column)},
		End:   Position{Line: int(n.EndPoint().Row), Character: int(n.EndPoint().Column)},
	}
}
