package provider

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/csgraph"
	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/dotnet"
	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/store"
)

// AnalysisMode selects how much of the project init analyzes.
type AnalysisMode string

const (
	AnalysisModeFull       AnalysisMode = "full"
	AnalysisModeSourceOnly AnalysisMode = "source-only"
)

func analysisModeFrom(s string) AnalysisMode {
	if s == string(AnalysisModeSourceOnly) {
		return AnalysisModeSourceOnly
	}
	return AnalysisModeFull
}

// Project owns one initialized analysis target: its location, its backing
// database, and its reference graph. Identity fields are immutable; the
// target framework is set at most once by the init pipeline, and the graph
// handle is populated by the pipeline before the project becomes visible to
// evaluate callers.
type Project struct {
	Location string
	DBPath   string
	Mode     AnalysisMode
	Tools    dotnet.Tools

	// Graph is internally synchronized; evaluate snapshots it without
	// holding any project-level lock.
	Graph *csgraph.SharedGraph

	mu              sync.Mutex
	targetFramework *dotnet.Framework
	sourceType      csgraph.SourceType
	deps            []dotnet.Dependency
	depDAG          dotnet.DependencyDAG

	store *store.Store
}

func newProject(location, dbPath string, mode AnalysisMode, tools dotnet.Tools) (*Project, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open graph database: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate graph database: %w", err)
	}
	return &Project{
		Location: location,
		DBPath:   dbPath,
		Mode:     mode,
		Tools:    tools,
		Graph:    csgraph.NewShared(),
		store:    s,
	}, nil
}

// SetTargetFramework records the detected framework. Only the first call
// takes effect; the framework is immutable once set.
func (p *Project) SetTargetFramework(fw dotnet.Framework) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.targetFramework == nil {
		p.targetFramework = &fw
	}
}

// TargetFramework returns the detected framework, if any.
func (p *Project) TargetFramework() (dotnet.Framework, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.targetFramework == nil {
		return dotnet.Framework{}, false
	}
	return *p.targetFramework, true
}

// ValidateLanguageConfiguration checks that the location holds an analyzable
// C# project and caches the source type queries will be parameterized with.
func (p *Project) ValidateLanguageConfiguration(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	found := false
	err := filepath.WalkDir(p.Location, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != p.Location && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".cs" || ext == ".csproj" {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("inspect %s: %w", p.Location, err)
	}
	if !found {
		return fmt.Errorf("no C# sources or project files under %s", p.Location)
	}

	p.mu.Lock()
	p.sourceType = csgraph.SourceTypeCSharp
	p.mu.Unlock()
	return nil
}

// SourceType returns the cached source type. It is unset until language
// configuration has been validated.
func (p *Project) SourceType() (csgraph.SourceType, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sourceType, p.sourceType != ""
}

// BuildGraph parses the project sources and publishes the resulting graph on
// the project's shared handle.
func (p *Project) BuildGraph(ctx context.Context) (csgraph.Stats, error) {
	g, err := csgraph.Build(ctx, p.Location)
	if err != nil {
		return csgraph.Stats{}, fmt.Errorf("build graph: %w", err)
	}
	if err := p.Graph.Publish(g); err != nil {
		return csgraph.Stats{}, err
	}
	return g.Stats(), nil
}

// ResolveDependencies reads package references from the project files and
// keeps the resolved set and DAG for persistence and the dependency surface.
func (p *Project) ResolveDependencies(ctx context.Context) ([]dotnet.Dependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deps, dag, err := dotnet.ResolveDependencies(p.Location)
	if err != nil {
		return nil, fmt.Errorf("resolve dependencies: %w", err)
	}
	p.mu.Lock()
	p.deps = deps
	p.depDAG = dag
	p.mu.Unlock()
	return deps, nil
}

// Dependencies returns the resolved package references.
func (p *Project) Dependencies() []dotnet.Dependency {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deps
}

// DependencyDAG returns the resolved dependency graph, or nil before
// resolution.
func (p *Project) DependencyDAG() dotnet.DependencyDAG {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.depDAG
}

// LoadToDatabase persists the published graph and resolved dependencies.
func (p *Project) LoadToDatabase(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := p.Graph.Snapshot()
	if snapshot == nil {
		return fmt.Errorf("no graph to load")
	}
	if err := p.store.ReplaceGraph(snapshot); err != nil {
		return fmt.Errorf("load graph to database: %w", err)
	}
	if err := p.store.SaveDependencies(p.Dependencies()); err != nil {
		return fmt.Errorf("save dependencies: %w", err)
	}
	return nil
}

// LoadSDKMetadataFiles records the SDK metadata files for the framework and
// returns the number newly loaded.
func (p *Project) LoadSDKMetadataFiles(ctx context.Context, files []string, fw dotnet.Framework) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return p.store.InsertSDKMetadataFiles(files, fw.String())
}

// LoadStats reports the persisted row counts.
func (p *Project) LoadStats() (store.Stats, error) {
	return p.store.LoadStats()
}

// Close releases the project's database resources.
func (p *Project) Close() error {
	return p.store.Close()
}
