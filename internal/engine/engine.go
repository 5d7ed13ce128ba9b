// Package engine orchestrates the generation pipeline: schema discovery,
// dependency ordering, compiler invocation per target, and atomic publish.
package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/matchday-labs/protodrive/internal/compiler"
	"github.com/matchday-labs/protodrive/internal/dag"
	"github.com/matchday-labs/protodrive/internal/schema"
	"github.com/matchday-labs/protodrive/internal/state"
	"github.com/matchday-labs/protodrive/pkg/core"
)

// Engine is the single entry point of the generation pipeline.
type Engine struct {
	logger    *slog.Logger
	store     core.Store
	ownsStore bool
	index     *schema.Index
	invoker   *compiler.Invoker

	searchRoot string
	outputRoot string
	files      []string
	targets    []core.Target
}

// Config holds engine configuration.
type Config struct {
	// SearchRoot is the primary search directory for definition files.
	SearchRoot string
	// IncludePaths are additional search roots passed to the compiler.
	IncludePaths []string
	// OutputRoot is the directory published target trees live under.
	OutputRoot string
	// Files are the top-level logical names to compile. Empty compiles
	// everything discovered.
	Files []string
	// Targets are the configured output binding languages.
	Targets []core.Target
	// CompilerBin is the external compiler executable (default "protoc").
	CompilerBin string
	// CompilerTimeout bounds a single compiler invocation. Zero means none.
	CompilerTimeout time.Duration
	// StatePath is the path to the run-history database. Empty disables
	// persistence by recording into an in-memory store.
	StatePath string
	// Store overrides the state store (used by tests). When set, StatePath
	// is ignored and the engine does not own the store's lifecycle.
	Store core.Store
	// Logger is the structured logger (uses discard if nil).
	Logger *slog.Logger
}

// New creates an engine. The state store is opened eagerly; schema discovery
// happens on Discover.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.SearchRoot == "" {
		return nil, fmt.Errorf("search root is required")
	}
	if cfg.OutputRoot == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if err := validateTargets(cfg.Targets); err != nil {
		return nil, err
	}

	logger.Debug("initializing engine", "search_root", cfg.SearchRoot, "output_root", cfg.OutputRoot, "targets", len(cfg.Targets))

	// The compiler runs with the staging directory as its working directory,
	// so include paths must be absolute.
	roots := append([]string{cfg.SearchRoot}, cfg.IncludePaths...)
	for i, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve search root %s: %w", root, err)
		}
		roots[i] = abs
	}

	store := cfg.Store
	ownsStore := false
	if store == nil {
		statePath := cfg.StatePath
		if statePath == "" {
			statePath = ":memory:"
		}
		s := state.NewSQLiteStore(logger)
		if err := s.Open(statePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := s.InitSchema(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		store = s
		ownsStore = true
	}

	eng := &Engine{
		logger:     logger,
		store:      store,
		ownsStore:  ownsStore,
		index:      schema.NewIndex(roots...),
		invoker:    compiler.New(cfg.CompilerBin, roots, logger),
		searchRoot: cfg.SearchRoot,
		outputRoot: cfg.OutputRoot,
		files:      cfg.Files,
		targets:    cfg.Targets,
	}
	eng.invoker.Timeout = cfg.CompilerTimeout
	return eng, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.ownsStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Discover walks the search roots and indexes every definition file.
// Returns *core.AmbiguousSchemaError if a logical name resolves to more
// than one file.
func (e *Engine) Discover() error {
	e.logger.Debug("discovering definition files")
	if err := e.index.Discover(); err != nil {
		return err
	}
	e.logger.Debug("discovery complete", "files", len(e.index.All()))
	return nil
}

// Index returns the schema index. Valid after Discover.
func (e *Engine) Index() *schema.Index {
	return e.index
}

// Targets returns the configured compilation targets.
func (e *Engine) Targets() []core.Target {
	return e.targets
}

// Store returns the run-history store.
func (e *Engine) Store() core.Store {
	return e.store
}

// Plan resolves the configured file set and returns the deterministic
// processing order plus the graph it was derived from. The order is
// target-independent: the definition set is the same for every target.
//
// Discovery and graph errors (SchemaNotFound, AmbiguousSchema,
// CyclicDependency) are fatal for the whole run and surface here, before
// any compiler is invoked or staging directory created.
func (e *Engine) Plan() ([]string, *dag.Graph, error) {
	files, err := e.index.Resolve(e.files)
	if err != nil {
		return nil, nil, err
	}

	graph := dag.NewGraph()
	for _, f := range files {
		graph.AddNode(f.Name, f)
	}
	for _, f := range files {
		for _, imp := range f.Imports {
			if err := graph.AddEdge(imp, f.Name); err != nil {
				return nil, nil, err
			}
		}
	}

	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, nil, err
	}

	order := make([]string, len(sorted))
	for i, node := range sorted {
		order[i] = node.ID
	}
	e.logger.Debug("processing order computed", "files", order)
	return order, graph, nil
}

func validateTargets(targets []core.Target) error {
	if len(targets) == 0 {
		return fmt.Errorf("at least one compilation target is required")
	}
	seen := make(map[string]bool, len(targets))
	seenOut := make(map[string]string, len(targets))
	for _, t := range targets {
		if t.Name == "" {
			return fmt.Errorf("target name is required")
		}
		if t.Plugin == "" {
			return fmt.Errorf("target %s: plugin is required", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
		// Targets publish in parallel; a shared output directory would be a
		// last-writer-wins race.
		if prior, ok := seenOut[t.OutDir()]; ok {
			return fmt.Errorf("targets %s and %s share output directory %q", prior, t.Name, t.OutDir())
		}
		seenOut[t.OutDir()] = t.Name
	}
	return nil
}
