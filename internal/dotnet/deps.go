package dotnet

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	graphlib "github.com/dominikbraun/graph"
)

// Dependency is one NuGet package a project file references.
type Dependency struct {
	Name    string
	Version string
	Project string
}

// DependencyDAG is the directed acyclic graph of project files and the
// packages and sibling projects they reference. Vertices are project paths
// and "name@version" package identifiers.
type DependencyDAG = graphlib.Graph[string, string]

// ResolveDependencies reads every project file under location and returns
// the referenced packages together with the dependency DAG. Duplicate
// package references across projects collapse to one Dependency per
// (project, name, version).
func ResolveDependencies(location string) ([]Dependency, DependencyDAG, error) {
	paths, err := listProjectFiles(location)
	if err != nil {
		return nil, nil, err
	}

	dag := graphlib.New(graphlib.StringHash, graphlib.Directed(), graphlib.Acyclic())
	seen := make(map[Dependency]bool)
	var deps []Dependency

	for _, path := range paths {
		proj, err := parseProjectFile(path)
		if err != nil {
			return nil, nil, err
		}
		if err := addVertex(dag, path); err != nil {
			return nil, nil, err
		}
		for _, ig := range proj.ItemGroups {
			for _, pkg := range ig.PackageReferences {
				if pkg.Include == "" {
					continue
				}
				dep := Dependency{Name: pkg.Include, Version: pkg.Version, Project: path}
				if !seen[dep] {
					seen[dep] = true
					deps = append(deps, dep)
				}
				id := pkg.Include
				if pkg.Version != "" {
					id += "@" + pkg.Version
				}
				if err := addVertex(dag, id); err != nil {
					return nil, nil, err
				}
				if err := addEdge(dag, path, id); err != nil {
					return nil, nil, err
				}
			}
			for _, ref := range ig.ProjectReferences {
				if ref.Include == "" {
					continue
				}
				target := normalizeProjectRef(ref.Include)
				if err := addVertex(dag, target); err != nil {
					return nil, nil, err
				}
				if err := addEdge(dag, path, target); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	sort.Slice(deps, func(i, j int) bool {
		if deps[i].Name != deps[j].Name {
			return deps[i].Name < deps[j].Name
		}
		if deps[i].Version != deps[j].Version {
			return deps[i].Version < deps[j].Version
		}
		return deps[i].Project < deps[j].Project
	})
	return deps, dag, nil
}

func addVertex(dag DependencyDAG, v string) error {
	if err := dag.AddVertex(v); err != nil && !errors.Is(err, graphlib.ErrVertexAlreadyExists) {
		return fmt.Errorf("add vertex %q: %w", v, err)
	}
	return nil
}

func addEdge(dag DependencyDAG, from, to string) error {
	err := dag.AddEdge(from, to)
	if err == nil || errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
		return nil
	}
	// A project-reference loop would make the graph cyclic; report it rather
	// than silently dropping the edge.
	return fmt.Errorf("add edge %q -> %q: %w", from, to, err)
}

// normalizeProjectRef converts an MSBuild relative reference (backslashes)
// into a comparable identifier.
func normalizeProjectRef(ref string) string {
	return strings.ReplaceAll(ref, `\`, "/")
}
