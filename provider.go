package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/csgraph"
	"github.com/savitharaghunathan/c-sharp-analyzer-provider/internal/dotnet"
)

// Config is the per-init service configuration the host framework sends.
type Config struct {
	Location               string         `json:"location" yaml:"location"`
	AnalysisMode           string         `json:"analysisMode" yaml:"analysisMode"`
	ProviderSpecificConfig map[string]any `json:"providerSpecificConfig" yaml:"providerSpecificConfig"`
}

// InitError reports a fatal init failure. After it is returned the provider
// is uninitialized again; no partial project is retained.
type InitError struct {
	Stage string
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init failed during %s: %v", e.Stage, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Provider is the lifecycle controller for one analysis target. Init builds
// a queryable reference graph; Evaluate answers referenced-pattern queries
// against it. The config and project fields are guarded by separate locks
// held only for cheap snapshot operations, so concurrent Evaluate calls
// block each other (and a concurrent Init) only briefly.
type Provider struct {
	dbPath string
	logger *slog.Logger

	configMu sync.Mutex
	config   *Config

	projectMu sync.Mutex
	project   *Project
	// generation tags each Init call so a superseded pipeline cannot publish
	// a stale project over a newer one.
	generation uint64
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Provider whose graph database lives at dbPath.
func New(dbPath string, opts ...Option) *Provider {
	p := &Provider{
		dbPath: dbPath,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init builds a project for cfg and installs it as the current one,
// replacing any prior project. It returns only after the graph has been
// durably loaded; on failure the provider reverts to the uninitialized
// state. A newer overlapping Init supersedes this one: the older pipeline
// runs to completion but its result is discarded.
func (p *Provider) Init(ctx context.Context, cfg Config) error {
	p.configMu.Lock()
	saved := cfg
	p.config = &saved
	p.configMu.Unlock()

	tools, err := dotnet.ResolveTools(cfg.ProviderSpecificConfig)
	if err != nil {
		return &InitError{Stage: "tool resolution", Err: err}
	}

	p.projectMu.Lock()
	p.generation++
	gen := p.generation
	p.projectMu.Unlock()

	project, err := newProject(cfg.Location, p.dbPath, analysisModeFrom(cfg.AnalysisMode), tools)
	if err != nil {
		p.abandon(gen)
		return &InitError{Stage: "project setup", Err: err}
	}

	if err := p.runInitPipeline(ctx, project); err != nil {
		project.Close()
		p.abandon(gen)
		return err
	}

	p.projectMu.Lock()
	if p.generation != gen {
		p.projectMu.Unlock()
		project.Close()
		p.logger.Info("init superseded by a newer call; discarding result")
		return nil
	}
	old := p.project
	p.project = project
	p.projectMu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// abandon reverts the provider to the uninitialized state unless a newer
// init has already taken over.
func (p *Provider) abandon(gen uint64) {
	p.projectMu.Lock()
	defer p.projectMu.Unlock()
	if p.generation != gen {
		return
	}
	if p.project != nil {
		p.project.Close()
		p.project = nil
	}
}

type sdkResult struct {
	count int
	err   error
}

// runInitPipeline drives the project from empty to durably loaded. The SDK
// task runs concurrently with graph building so init latency is bounded by
// the slower of the two, and its failure only degrades the graph, never the
// init call.
func (p *Provider) runInitPipeline(ctx context.Context, project *Project) error {
	p.logger.Info("getting the dotnet target framework for the project", "location", project.Location)

	var sdkCh chan sdkResult
	fw, err := dotnet.DetectTargetFramework(project.Location)
	switch {
	case err != nil:
		p.logger.Info("could not detect target framework, continuing without SDK installation", "error", err)
	default:
		p.logger.Info("detected target framework", "framework", fw.String())
		project.SetTargetFramework(fw)
		sdkCh = p.startSDKTask(ctx, project, fw)
	}

	p.logger.Info("starting to load project", "location", project.Location)
	if err := project.ValidateLanguageConfiguration(ctx); err != nil {
		p.logger.Error("unable to create language configuration", "error", err)
		return &InitError{Stage: "language configuration", Err: err}
	}

	stats, err := project.BuildGraph(ctx)
	if err != nil {
		p.logger.Error("failed to build project graph", "error", err)
		return &InitError{Stage: "graph build", Err: err}
	}
	p.logger.Debug("loaded files", "files", stats.Files, "references", stats.References)

	deps, err := project.ResolveDependencies(ctx)
	if err != nil {
		p.logger.Error("unable to resolve dependencies", "error", err)
		return &InitError{Stage: "dependency resolution", Err: err}
	}
	p.logger.Debug("resolved dependencies", "count", len(deps))

	// Join the SDK task before persisting: the graph database is not final
	// while metadata loading might still be writing to it.
	if sdkCh != nil {
		res := <-sdkCh
		if res.err != nil {
			p.logger.Error("failed to load SDK metadata files", "error", res.err)
		} else {
			p.logger.Info("loaded SDK metadata files into database", "count", res.count)
		}
	}

	p.logger.Info("adding dependencies to graph database")
	if err := project.LoadToDatabase(ctx); err != nil {
		p.logger.Error("failed to load project to database", "error", err)
		return &InitError{Stage: "database load", Err: err}
	}
	return nil
}

// startSDKTask starts the background SDK install for eligible frameworks and
// returns the channel its result arrives on, or nil when the step is
// skipped. A panic inside the task surfaces as an error result, never as a
// propagated fault.
func (p *Provider) startSDKTask(ctx context.Context, project *Project, fw dotnet.Framework) chan sdkResult {
	if !fw.IsModern() {
		p.logger.Info("skipping SDK installation for old .NET Framework target", "framework", fw.String())
		return nil
	}
	script := project.Tools.InstallScript
	if script == "" {
		p.logger.Info("modern .NET detected but dotnet-install script not configured, skipping SDK installation",
			"framework", fw.String())
		return nil
	}

	p.logger.Info("modern .NET detected, will attempt SDK installation",
		"framework", fw.String(), "script", script)
	ch := make(chan sdkResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- sdkResult{err: fmt.Errorf("SDK task panicked: %v", r)}
			}
		}()
		ch <- p.installAndLoadSDK(ctx, project, fw, script)
	}()
	return ch
}

func (p *Provider) installAndLoadSDK(ctx context.Context, project *Project, fw dotnet.Framework, script string) sdkResult {
	sdkPath, err := dotnet.InstallSDK(ctx, fw, script)
	if err != nil {
		return sdkResult{err: fmt.Errorf("install SDK for %s: %w", fw, err)}
	}
	p.logger.Info("installed .NET SDK", "path", sdkPath)

	files, err := dotnet.FindSDKMetadataFiles(sdkPath, fw)
	if err != nil {
		return sdkResult{err: fmt.Errorf("find SDK metadata files: %w", err)}
	}
	if len(files) == 0 {
		p.logger.Info("no SDK metadata files found", "path", sdkPath)
		return sdkResult{}
	}
	count, err := project.LoadSDKMetadataFiles(ctx, files, fw)
	if err != nil {
		return sdkResult{err: fmt.Errorf("load SDK metadata files: %w", err)}
	}
	return sdkResult{count: count}
}

// currentProject snapshots the installed project under the project lock.
func (p *Provider) currentProject() *Project {
	p.projectMu.Lock()
	defer p.projectMu.Unlock()
	return p.project
}

// EvaluateResponse is the outcome of one evaluate call. Logical failures
// (unknown capability, uninitialized project) set Successful to false with
// an explanatory message; they are not call failures.
type EvaluateResponse struct {
	Successful bool                      `json:"successful"`
	Error      string                    `json:"error,omitempty"`
	Response   *ProviderEvaluateResponse `json:"response,omitempty"`
}

// ProviderEvaluateResponse carries the match outcome of a successful call.
type ProviderEvaluateResponse struct {
	Matched          bool              `json:"matched"`
	IncidentContexts []IncidentContext `json:"incidentContexts"`
}

// IncidentContext is the caller-facing representation of one canonical match.
type IncidentContext struct {
	FileURI      string         `json:"fileURI"`
	LineNumber   *int           `json:"lineNumber,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
	CodeLocation *csgraph.Span  `json:"codeLocation,omitempty"`
}

// Evaluate answers one condition against the current graph. The returned
// error is reserved for operational failures such as a malformed condition
// payload; everything expected is expressed in the response.
func (p *Provider) Evaluate(ctx context.Context, capability string, conditionInfo []byte) (EvaluateResponse, error) {
	if err := ctx.Err(); err != nil {
		return EvaluateResponse{}, err
	}
	if capability != capabilityName {
		return EvaluateResponse{Error: "unable to find " + capabilityName + " capability"}, nil
	}

	cond, err := parseCondition(conditionInfo)
	if err != nil {
		p.logger.Error("malformed condition payload", "error", err)
		return EvaluateResponse{}, err
	}
	p.logger.Debug("evaluating condition", "pattern", cond.Referenced.Pattern,
		"location", cond.Referenced.Location.scope().String())

	// Hold the project lock only long enough to snapshot what the query
	// needs; the graph handle has its own synchronization.
	project := p.currentProject()
	if project == nil {
		return EvaluateResponse{Error: "project may not be initialized"}, nil
	}
	sourceType, ok := project.SourceType()
	if !ok {
		return EvaluateResponse{Error: "project may not be initialized"}, nil
	}
	graph := project.Graph.Snapshot()
	if graph == nil {
		return EvaluateResponse{Error: "project may not be initialized"}, nil
	}

	matches, err := csgraph.Run(graph, sourceType, cond.Referenced.Location.scope(), cond.Referenced.Pattern)
	if err != nil {
		var notFound *csgraph.NotFoundError
		if errors.As(err, &notFound) {
			return EvaluateResponse{
				Successful: true,
				Response:   &ProviderEvaluateResponse{Matched: false, IncidentContexts: []IncidentContext{}},
			}, nil
		}
		return EvaluateResponse{Error: err.Error()}, nil
	}

	canonical := deduplicateMatches(matches)
	p.logger.Info("found results for search", "raw", len(matches), "canonical", len(canonical),
		"pattern", cond.Referenced.Pattern)

	incidents := make([]IncidentContext, 0, len(canonical))
	for _, m := range canonical {
		incidents = append(incidents, toIncident(m))
	}
	// The query engine's iteration order is unspecified; the final sort makes
	// the output reproducible.
	sort.Slice(incidents, func(i, j int) bool {
		if incidents[i].FileURI != incidents[j].FileURI {
			return incidents[i].FileURI < incidents[j].FileURI
		}
		return lineOf(incidents[i]) < lineOf(incidents[j])
	})

	return EvaluateResponse{
		Successful: true,
		Response: &ProviderEvaluateResponse{
			Matched:          len(incidents) > 0,
			IncidentContexts: incidents,
		},
	}, nil
}

func toIncident(m csgraph.Match) IncidentContext {
	line := m.LineNumber
	loc := m.CodeLocation
	vars := make(map[string]any, len(m.Variables))
	for k, v := range m.Variables {
		vars[k] = v
	}
	return IncidentContext{
		FileURI:      m.FileURI,
		LineNumber:   &line,
		Variables:    vars,
		CodeLocation: &loc,
	}
}

func lineOf(i IncidentContext) int {
	if i.LineNumber == nil {
		return 0
	}
	return *i.LineNumber
}

// Stop releases the current project, if any.
func (p *Provider) Stop() error {
	p.projectMu.Lock()
	project := p.project
	p.project = nil
	p.projectMu.Unlock()
	if project != nil {
		return project.Close()
	}
	return nil
}
