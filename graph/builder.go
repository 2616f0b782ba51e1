// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brockwebb/project-mapper/ast"
)

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseCollecting indicates symbols are being collected as nodes.
	ProgressPhaseCollecting ProgressPhase = iota

	// ProgressPhaseResolving indicates imports and calls are being resolved.
	ProgressPhaseResolving

	// ProgressPhaseFinalizing indicates the graph is being finalized.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseCollecting:
		return "collecting"
	case ProgressPhaseResolving:
		return "resolving"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	// Phase is the current build phase.
	Phase ProgressPhase

	// FilesTotal is the total number of file units to process.
	FilesTotal int

	// FilesProcessed is the number of file units processed so far.
	FilesProcessed int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// ProjectRoot is the path to the analyzed project root.
	ProjectRoot string

	// ProgressCallback is called at phase boundaries. May be nil.
	ProgressCallback ProgressFunc

	// MaxNodes is the maximum number of nodes (passed to Graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to Graph).
	MaxEdges int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithProjectRoot sets the project root path.
func WithProjectRoot(root string) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProjectRoot = root
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithBuilderMaxNodes sets the maximum number of nodes.
func WithBuilderMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithBuilderMaxEdges sets the maximum number of edges.
func WithBuilderMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// Builder constructs project graphs from parse results.
//
// The builder is stateless and can be reused across multiple builds. Each
// Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{options: options}
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	graph  *Graph
	result *BuildResult

	// fileUnits holds the validated parse results in input order.
	fileUnits []*ast.ParseResult

	// moduleFiles maps a module name (file path stem) to the file unit
	// IDs declaring it, in input order.
	moduleFiles map[string][]string

	// funcByName maps a bare name to the first top-level function
	// declared with that name, scanning file units in input order and
	// symbols in source order. Later declarations never shadow earlier
	// ones; the first match wins.
	funcByName map[string]*ast.Symbol

	// classByName is the same first-match index for classes.
	classByName map[string]*ast.Symbol

	// externals maps external module names to their node IDs.
	externals map[string]string

	startTime time.Time
}

// Build constructs a graph from the given parse results.
//
// Description:
//
//	Runs three phases over the input, in input order throughout, so the
//	resulting graph is a pure function of the ordered input:
//
//	 1. COLLECT: register every file unit and its declared symbols as
//	    nodes, with declares edges (file -> function/class,
//	    class -> method).
//	 2. RESOLVE: classify imports as internal (edge to the matching file
//	    unit) or external (edge to a shared external module node), and
//	    resolve call sites per the tie-break policy on resolveCall.
//	 3. FINALIZE: freeze the graph and complete statistics.
//
//	Malformed file units and duplicate node IDs are input-contract
//	violations: the build aborts on the first one, with the offending
//	unit recorded in FileErrors (duplicates surface as a wrapped
//	ErrDuplicateNode). Contract violations are never silently repaired.
//
// Inputs:
//   - ctx: Context for cancellation. Checked between file units.
//   - results: Parse results, one per file unit, in deterministic order
//     (the scanner emits them sorted by path).
//
// Outputs:
//   - *BuildResult: The graph plus errors and statistics. On
//     cancellation the result is partial and Incomplete is true.
//   - error: Non-nil only for input-contract violations.
func (b *Builder) Build(ctx context.Context, results []*ast.ParseResult) (*BuildResult, error) {
	ctx, span := startBuildSpan(ctx, len(results))
	defer span.End()

	state := &buildState{
		graph: NewGraph(b.options.ProjectRoot,
			WithMaxNodes(b.options.MaxNodes),
			WithMaxEdges(b.options.MaxEdges),
		),
		result: &BuildResult{
			FileErrors: make([]FileError, 0),
		},
		fileUnits:   make([]*ast.ParseResult, 0, len(results)),
		moduleFiles: make(map[string][]string),
		funcByName:  make(map[string]*ast.Symbol),
		classByName: make(map[string]*ast.Symbol),
		externals:   make(map[string]string),
		startTime:   time.Now(),
	}
	state.result.Graph = state.graph

	finish := func(incomplete bool, err error) (*BuildResult, error) {
		state.result.Incomplete = incomplete
		state.result.Stats.DurationMicro = time.Since(state.startTime).Microseconds()
		setBuildSpanResult(span, state.result.Stats.NodesCreated, state.result.Stats.EdgesCreated, incomplete)
		recordBuildMetrics(ctx, time.Since(state.startTime),
			state.result.Stats.NodesCreated, state.result.Stats.EdgesCreated, err == nil && !incomplete)
		return state.result, err
	}

	// Phase 1: Collect symbols as nodes.
	if err := b.collectPhase(ctx, state, results); err != nil {
		if ctx.Err() != nil {
			return finish(true, nil)
		}
		return finish(true, err)
	}

	// Phase 2: Resolve imports and calls.
	if err := b.resolvePhase(ctx, state); err != nil {
		if ctx.Err() != nil {
			return finish(true, nil)
		}
		return finish(true, err)
	}

	// Phase 3: Finalize.
	b.reportProgress(state, ProgressPhaseFinalizing, len(results))
	state.graph.Freeze()

	return finish(false, nil)
}

// collectPhase validates parse results and adds symbols as nodes. A nil
// or malformed parse result fails the phase; resolution misses never do.
func (b *Builder) collectPhase(ctx context.Context, state *buildState, results []*ast.ParseResult) error {
	b.reportProgress(state, ProgressPhaseCollecting, len(results))

	for i, r := range results {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r == nil {
			ferr := FileError{
				FilePath: fmt.Sprintf("result[%d]", i),
				Err:      fmt.Errorf("%w: nil parse result", ErrInvalidNode),
			}
			state.result.FileErrors = append(state.result.FileErrors, ferr)
			state.result.Stats.FilesFailed++
			return ferr
		}
		if err := r.Validate(); err != nil {
			ferr := FileError{FilePath: r.FilePath, Err: err}
			state.result.FileErrors = append(state.result.FileErrors, ferr)
			state.result.Stats.FilesFailed++
			slog.Error("aborting build on invalid file unit",
				slog.String("file", r.FilePath),
				slog.String("error", err.Error()),
			)
			return ferr
		}

		if err := b.collectFileUnit(state, r); err != nil {
			return err
		}

		state.fileUnits = append(state.fileUnits, r)
		state.result.Stats.FilesProcessed++
	}

	return nil
}

// collectFileUnit registers one file unit: its module node, its declared
// symbols, and the declares edges between them.
func (b *Builder) collectFileUnit(state *buildState, r *ast.ParseResult) error {
	moduleSym := &ast.Symbol{
		ID:       ast.GenerateModuleID(r.FilePath),
		Name:     r.ModuleName(),
		Kind:     ast.SymbolKindModule,
		FilePath: r.FilePath,
		Line:     1,
	}
	if _, err := state.graph.AddNode(moduleSym); err != nil {
		return fmt.Errorf("register file unit %s: %w", r.FilePath, err)
	}
	state.result.Stats.NodesCreated++

	if name := r.ModuleName(); name != "" {
		state.moduleFiles[name] = append(state.moduleFiles[name], moduleSym.ID)
	}

	for _, sym := range r.Symbols {
		if sym == nil {
			continue
		}
		if _, err := state.graph.AddNode(sym); err != nil {
			return fmt.Errorf("register symbol %s: %w", sym.ID, err)
		}
		state.result.Stats.NodesCreated++

		if err := state.graph.AddEdge(moduleSym.ID, sym.ID, EdgeTypeDeclares, sym.Location()); err != nil {
			return err
		}
		state.result.Stats.EdgesCreated++

		switch sym.Kind {
		case ast.SymbolKindFunction:
			if _, seen := state.funcByName[sym.Name]; !seen {
				state.funcByName[sym.Name] = sym
			}
		case ast.SymbolKindClass:
			if _, seen := state.classByName[sym.Name]; !seen {
				state.classByName[sym.Name] = sym
			}
			for _, method := range sym.Children {
				if method == nil {
					continue
				}
				if _, err := state.graph.AddNode(method); err != nil {
					return fmt.Errorf("register method %s: %w", method.ID, err)
				}
				state.result.Stats.NodesCreated++
				if err := state.graph.AddEdge(sym.ID, method.ID, EdgeTypeDeclares, method.Location()); err != nil {
					return err
				}
				state.result.Stats.EdgesCreated++
			}
		}
	}

	return nil
}

// resolvePhase classifies imports and resolves call sites, scanning file
// units in input order.
func (b *Builder) resolvePhase(ctx context.Context, state *buildState) error {
	b.reportProgress(state, ProgressPhaseResolving, len(state.fileUnits))

	for _, r := range state.fileUnits {
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, imp := range r.Imports {
			if err := b.resolveImport(state, r, imp); err != nil {
				return err
			}
		}

		for _, sym := range r.Symbols {
			if sym == nil {
				continue
			}
			switch sym.Kind {
			case ast.SymbolKindFunction:
				if err := b.resolveCalls(state, sym, nil); err != nil {
					return err
				}
			case ast.SymbolKindClass:
				for _, method := range sym.Children {
					if method == nil {
						continue
					}
					if err := b.resolveCalls(state, method, sym); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

// resolveImport classifies one import and adds the corresponding edge.
//
// An import is internal when its module name matches the path stem of an
// analyzed file unit; the edge then targets that file unit (first match
// in input order). For a dotted path the final segment is tried first
// ("pkg.utils" matches utils.py), then the leading segment. Anything else
// is external: the edge targets a shared external module node named after
// the import's top-level module.
func (b *Builder) resolveImport(state *buildState, r *ast.ParseResult, imp ast.Import) error {
	fromID := ast.GenerateModuleID(r.FilePath)

	for _, candidate := range importCandidates(imp) {
		files, ok := state.moduleFiles[candidate]
		if !ok || len(files) == 0 {
			continue
		}
		toID := files[0]
		if toID == fromID {
			// Self-import (a file whose stem matches its own import).
			continue
		}
		if err := state.graph.AddEdge(fromID, toID, EdgeTypeImports, imp.Location); err != nil {
			return err
		}
		state.result.Stats.EdgesCreated++
		return nil
	}

	// Relative imports that matched nothing are misses, not externals.
	if imp.IsRelative {
		return nil
	}

	module := imp.Module()
	if module == "" {
		return nil
	}

	extID, ok := state.externals[module]
	if !ok {
		extSym := &ast.Symbol{
			ID:   "external::" + module,
			Name: module,
			Kind: ast.SymbolKindExternal,
			// External modules have no file of their own; the path of
			// first reference is kept for display.
			FilePath: r.FilePath,
			Line:     imp.Location.Line,
		}
		if _, err := state.graph.AddNode(extSym); err != nil {
			return err
		}
		state.result.Stats.NodesCreated++
		state.result.Stats.ExternalModules++
		state.externals[module] = extSym.ID
		extID = extSym.ID
	}

	if err := state.graph.AddEdge(fromID, extID, EdgeTypeImports, imp.Location); err != nil {
		return err
	}
	state.result.Stats.EdgesCreated++
	return nil
}

// importCandidates returns the module names an import may refer to, in
// match-priority order.
func importCandidates(imp ast.Import) []string {
	path := imp.Path
	if path == "" {
		return nil
	}
	last := path
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		last = path[idx+1:]
	}
	first := imp.Module()
	if last == first {
		return []string{last}
	}
	return []string{last, first}
}

// resolveCalls resolves every call site of a function or method.
// ownClass is non-nil when the caller is a method.
func (b *Builder) resolveCalls(state *buildState, caller *ast.Symbol, ownClass *ast.Symbol) error {
	for _, call := range caller.Calls {
		target := b.resolveCall(state, call, ownClass)
		if target == nil {
			state.result.Stats.CallsUnresolved++
			if err := state.graph.RecordUnresolvedCall(UnresolvedCall{
				CallerID: caller.ID,
				Target:   call.Target,
				Location: call.Location,
			}); err != nil {
				return err
			}
			continue
		}

		if err := state.graph.AddEdge(caller.ID, target.ID, EdgeTypeCalls, call.Location); err != nil {
			return err
		}
		state.result.Stats.EdgesCreated++
		state.result.Stats.CallsResolved++
	}
	return nil
}

// resolveCall resolves one call site to a declared symbol, best-effort by
// name. Returns nil when nothing matches; that is an expected outcome,
// not an error.
//
// Resolution policy, in order:
//
//	(a) A bare call from a method, or a self./cls. attribute call, first
//	    tries a method on the caller's own class.
//	(b) A bare call then tries top-level functions project-wide: file
//	    units in input order, symbols in source order, first match wins.
//	(c) A bare call then tries classes the same way; a match is a
//	    constructor call.
//	(d) Otherwise the call is unresolved.
//
// Attribute calls with receivers other than self/cls ("os.path.join",
// "obj.method") are never matched: the receiver's type is unknown, and
// guessing by method name alone would fabricate edges. Methods are only
// reachable through rule (a).
func (b *Builder) resolveCall(state *buildState, call ast.CallSite, ownClass *ast.Symbol) *ast.Symbol {
	name := call.Target

	if call.IsAttribute() {
		receiver := name[:strings.Index(name, ".")]
		if (receiver != "self" && receiver != "cls") || ownClass == nil {
			return nil
		}
		// Rule (a) for self.method() / cls.method().
		return methodOn(ownClass, call.BareName())
	}

	// Rule (a) for bare calls from methods.
	if ownClass != nil {
		if m := methodOn(ownClass, name); m != nil {
			return m
		}
	}

	// Rule (b): first top-level function with that name.
	if fn, ok := state.funcByName[name]; ok {
		return fn
	}

	// Rule (c): first class with that name (constructor call).
	if cls, ok := state.classByName[name]; ok {
		return cls
	}

	return nil
}

// methodOn returns the method with the given name on the class, or nil.
func methodOn(class *ast.Symbol, name string) *ast.Symbol {
	if class == nil {
		return nil
	}
	for _, m := range class.Children {
		if m != nil && m.Name == name {
			return m
		}
	}
	return nil
}

// reportProgress invokes the progress callback if configured.
func (b *Builder) reportProgress(state *buildState, phase ProgressPhase, total int) {
	if b.options.ProgressCallback == nil {
		return
	}
	b.options.ProgressCallback(BuildProgress{
		Phase:          phase,
		FilesTotal:     total,
		FilesProcessed: state.result.Stats.FilesProcessed,
	})
}
