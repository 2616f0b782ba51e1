// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brockwebb/project-mapper/ast"
)

// makeFunc creates a top-level function symbol with the given calls.
func makeFunc(filePath, name string, line int, calls ...string) *ast.Symbol {
	sym := &ast.Symbol{
		ID:       ast.GenerateID(filePath, name),
		Name:     name,
		Kind:     ast.SymbolKindFunction,
		FilePath: filePath,
		Line:     line,
	}
	for i, target := range calls {
		sym.Calls = append(sym.Calls, ast.CallSite{
			Target:   target,
			Location: ast.Location{FilePath: filePath, Line: line + i + 1},
		})
	}
	return sym
}

// makeClass creates a class symbol with methods. Each method spec is
// "name" or "name>call1,call2".
func makeClass(filePath, name string, line int, methodSpecs ...string) *ast.Symbol {
	cls := &ast.Symbol{
		ID:       ast.GenerateID(filePath, name),
		Name:     name,
		Kind:     ast.SymbolKindClass,
		FilePath: filePath,
		Line:     line,
	}
	for i, spec := range methodSpecs {
		methodName := spec
		var calls []string
		if idx := strings.IndexByte(spec, '>'); idx >= 0 {
			methodName = spec[:idx]
			calls = strings.Split(spec[idx+1:], ",")
		}
		m := &ast.Symbol{
			ID:        ast.GenerateMethodID(filePath, name, methodName),
			Name:      methodName,
			Kind:      ast.SymbolKindMethod,
			FilePath:  filePath,
			Line:      line + i + 1,
			ClassName: name,
		}
		for j, target := range calls {
			m.Calls = append(m.Calls, ast.CallSite{
				Target:   target,
				Location: ast.Location{FilePath: filePath, Line: m.Line + j},
			})
		}
		cls.Children = append(cls.Children, m)
	}
	return cls
}

func fileUnit(filePath string, symbols []*ast.Symbol, imports ...string) *ast.ParseResult {
	r := &ast.ParseResult{
		FilePath: filePath,
		Language: "python",
		Symbols:  symbols,
	}
	for i, path := range imports {
		r.Imports = append(r.Imports, ast.Import{
			Path:     path,
			Location: ast.Location{FilePath: filePath, Line: i + 1},
		})
	}
	return r
}

func build(t *testing.T, results ...*ast.ParseResult) *BuildResult {
	t.Helper()
	builder := NewBuilder(WithProjectRoot("/project"))
	result, err := builder.Build(context.Background(), results)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// callEdges returns "from -> to" strings for all calls edges.
func callEdges(g *Graph) []string {
	var out []string
	for _, e := range g.EdgesByType(EdgeTypeCalls) {
		out = append(out, fmt.Sprintf("%s -> %s", e.FromID, e.ToID))
	}
	return out
}

func TestBuilder_DeclaresEdges(t *testing.T) {
	result := build(t,
		fileUnit("a.py", []*ast.Symbol{
			makeFunc("a.py", "run", 1),
			makeClass("a.py", "Runner", 5, "start", "stop"),
		}),
	)

	g := result.Graph
	require.True(t, g.IsFrozen())
	// module + function + class + 2 methods
	assert.Equal(t, 5, g.NodeCount())

	var declares []string
	for _, e := range g.EdgesByType(EdgeTypeDeclares) {
		declares = append(declares, fmt.Sprintf("%s -> %s", e.FromID, e.ToID))
	}
	assert.Equal(t, []string{
		"a.py -> a.py::run",
		"a.py -> a.py::Runner",
		"a.py::Runner -> a.py::Runner.start",
		"a.py::Runner -> a.py::Runner.stop",
	}, declares)
}

func TestBuilder_CrossFileCall(t *testing.T) {
	result := build(t,
		fileUnit("a.py", []*ast.Symbol{makeFunc("a.py", "main", 1, "helper")}, "b"),
		fileUnit("b.py", []*ast.Symbol{makeFunc("b.py", "helper", 1)}),
	)

	assert.Equal(t, []string{"a.py::main -> b.py::helper"}, callEdges(result.Graph))
	assert.Equal(t, 1, result.Stats.CallsResolved)
	assert.Empty(t, result.Graph.UnresolvedCalls())

	var imports []string
	for _, e := range result.Graph.EdgesByType(EdgeTypeImports) {
		imports = append(imports, fmt.Sprintf("%s -> %s", e.FromID, e.ToID))
	}
	assert.Equal(t, []string{"a.py -> b.py"}, imports)
}

func TestBuilder_SelfMethodResolution(t *testing.T) {
	result := build(t,
		fileUnit("svc.py", []*ast.Symbol{
			makeClass("svc.py", "Service", 1, "run>self.helper", "helper"),
		}),
	)

	assert.Equal(t,
		[]string{"svc.py::Service.run -> svc.py::Service.helper"},
		callEdges(result.Graph),
	)
}

func TestBuilder_TieBreakOwnMethodFirst(t *testing.T) {
	// A bare call from a method prefers the own-class method over a
	// top-level function with the same name.
	result := build(t,
		fileUnit("svc.py", []*ast.Symbol{
			makeFunc("svc.py", "helper", 1),
			makeClass("svc.py", "Service", 3, "run>helper", "helper"),
		}),
	)

	assert.Equal(t,
		[]string{"svc.py::Service.run -> svc.py::Service.helper"},
		callEdges(result.Graph),
	)
}

func TestBuilder_TieBreakFirstFileWins(t *testing.T) {
	// Two files declare helper(); the caller resolves to the one in the
	// file that appears first in the input.
	result := build(t,
		fileUnit("first.py", []*ast.Symbol{makeFunc("first.py", "helper", 1)}),
		fileUnit("second.py", []*ast.Symbol{makeFunc("second.py", "helper", 1)}),
		fileUnit("caller.py", []*ast.Symbol{makeFunc("caller.py", "main", 1, "helper")}),
	)

	assert.Equal(t, []string{"caller.py::main -> first.py::helper"}, callEdges(result.Graph))
}

func TestBuilder_FunctionsBeforeClasses(t *testing.T) {
	// When a function and a class share a name, the function wins.
	result := build(t,
		fileUnit("a.py", []*ast.Symbol{makeClass("a.py", "process", 1)}),
		fileUnit("b.py", []*ast.Symbol{makeFunc("b.py", "process", 1)}),
		fileUnit("c.py", []*ast.Symbol{makeFunc("c.py", "main", 1, "process")}),
	)

	assert.Equal(t, []string{"c.py::main -> b.py::process"}, callEdges(result.Graph))
}

func TestBuilder_ConstructorCall(t *testing.T) {
	result := build(t,
		fileUnit("models.py", []*ast.Symbol{makeClass("models.py", "User", 1, "__init__")}),
		fileUnit("main.py", []*ast.Symbol{makeFunc("main.py", "create", 1, "User")}),
	)

	assert.Equal(t, []string{"main.py::create -> models.py::User"}, callEdges(result.Graph))
}

func TestBuilder_UnresolvedCalls(t *testing.T) {
	result := build(t,
		fileUnit("a.py", []*ast.Symbol{
			makeFunc("a.py", "main", 1, "os.path.join", "missing", "obj.method"),
		}),
	)

	assert.Empty(t, callEdges(result.Graph))
	assert.Equal(t, 3, result.Stats.CallsUnresolved)

	unresolved := result.Graph.UnresolvedCalls()
	require.Len(t, unresolved, 3)
	assert.Equal(t, "os.path.join", unresolved[0].Target)
	assert.Equal(t, "missing", unresolved[1].Target)
	assert.Equal(t, "a.py::main", unresolved[0].CallerID)

	// Misses are recorded, never errors.
	assert.True(t, result.Success())
}

func TestBuilder_SelfCallWithoutOwnMethodIsUnresolved(t *testing.T) {
	result := build(t,
		fileUnit("svc.py", []*ast.Symbol{
			makeFunc("svc.py", "helper", 1),
			makeClass("svc.py", "Service", 3, "run>self.helper"),
		}),
	)

	// self.helper names a method on Service; the top-level helper() must
	// not be matched through a self receiver.
	assert.Empty(t, callEdges(result.Graph))
	require.Len(t, result.Graph.UnresolvedCalls(), 1)
	assert.Equal(t, "self.helper", result.Graph.UnresolvedCalls()[0].Target)
}

func TestBuilder_ImportClassification(t *testing.T) {
	result := build(t,
		fileUnit("app.py", nil, "utils", "requests", "os.path"),
		fileUnit("pkg/utils.py", nil),
	)

	g := result.Graph
	var imports []string
	for _, e := range g.EdgesByType(EdgeTypeImports) {
		imports = append(imports, fmt.Sprintf("%s -> %s", e.FromID, e.ToID))
	}
	assert.Equal(t, []string{
		"app.py -> pkg/utils.py",
		"app.py -> external::requests",
		"app.py -> external::os",
	}, imports)

	assert.Equal(t, 2, result.Stats.ExternalModules)

	ext, ok := g.GetNode("external::requests")
	require.True(t, ok)
	assert.Equal(t, ast.SymbolKindExternal, ext.Symbol.Kind)
	assert.Equal(t, "requests", ext.Symbol.Name)
}

func TestBuilder_ExternalModuleNodeIsShared(t *testing.T) {
	result := build(t,
		fileUnit("a.py", nil, "requests"),
		fileUnit("b.py", nil, "requests"),
	)

	// One node, two edges.
	ext, ok := result.Graph.GetNode("external::requests")
	require.True(t, ok)
	assert.Len(t, ext.Incoming, 2)
	assert.Equal(t, 1, result.Stats.ExternalModules)
}

func TestBuilder_DottedInternalImport(t *testing.T) {
	result := build(t,
		fileUnit("app.py", nil, "pkg.utils"),
		fileUnit("pkg/utils.py", nil),
	)

	var imports []string
	for _, e := range result.Graph.EdgesByType(EdgeTypeImports) {
		imports = append(imports, fmt.Sprintf("%s -> %s", e.FromID, e.ToID))
	}
	assert.Equal(t, []string{"app.py -> pkg/utils.py"}, imports)
}

func TestBuilder_DuplicateIDIsFatal(t *testing.T) {
	builder := NewBuilder()
	_, err := builder.Build(context.Background(), []*ast.ParseResult{
		fileUnit("a.py", []*ast.Symbol{makeFunc("a.py", "run", 1)}),
		fileUnit("a.py", []*ast.Symbol{makeFunc("a.py", "other", 1)}),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNode))
}

func TestBuilder_InvalidFileUnitIsFatal(t *testing.T) {
	badSym := makeFunc("bad.py", "broken", 1)
	badSym.Line = 0

	result, err := NewBuilder().Build(context.Background(), []*ast.ParseResult{
		fileUnit("bad.py", []*ast.Symbol{badSym}),
		fileUnit("good.py", []*ast.Symbol{makeFunc("good.py", "run", 1)}),
	})
	require.Error(t, err)
	require.NotNil(t, result)

	// The error carries the offending path.
	var fileErr FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, "bad.py", fileErr.FilePath)

	assert.True(t, result.Incomplete)
	assert.False(t, result.Success())
	assert.Equal(t, 1, result.Stats.FilesFailed)
	assert.Equal(t, 0, result.Stats.FilesProcessed)
	require.Len(t, result.FileErrors, 1)

	// Nothing past the bad unit was built.
	_, ok := result.Graph.GetNode("good.py::run")
	assert.False(t, ok)
}

func TestBuilder_NilFileUnitIsFatal(t *testing.T) {
	_, err := NewBuilder().Build(context.Background(), []*ast.ParseResult{
		fileUnit("good.py", []*ast.Symbol{makeFunc("good.py", "run", 1)}),
		nil,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidNode)
}

func TestBuilder_Deterministic(t *testing.T) {
	inputs := func() []*ast.ParseResult {
		return []*ast.ParseResult{
			fileUnit("a.py", []*ast.Symbol{makeFunc("a.py", "main", 1, "helper", "User", "missing")}, "b", "requests"),
			fileUnit("b.py", []*ast.Symbol{makeFunc("b.py", "helper", 1)}),
			fileUnit("c.py", []*ast.Symbol{makeClass("c.py", "User", 1, "save>self.validate", "validate")}),
		}
	}

	first := build(t, inputs()...)
	second := build(t, inputs()...)

	var firstEdges, secondEdges []string
	for _, e := range first.Graph.Edges() {
		firstEdges = append(firstEdges, fmt.Sprintf("%s -[%s]-> %s", e.FromID, e.Type, e.ToID))
	}
	for _, e := range second.Graph.Edges() {
		secondEdges = append(secondEdges, fmt.Sprintf("%s -[%s]-> %s", e.FromID, e.Type, e.ToID))
	}
	assert.Equal(t, firstEdges, secondEdges)

	var firstNodes, secondNodes []string
	for _, n := range first.Graph.Nodes() {
		firstNodes = append(firstNodes, n.ID)
	}
	for _, n := range second.Graph.Nodes() {
		secondNodes = append(secondNodes, n.ID)
	}
	assert.Equal(t, firstNodes, secondNodes)

	assert.Equal(t, first.Graph.UnresolvedCalls(), second.Graph.UnresolvedCalls())
}

func TestBuilder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := NewBuilder()
	result, err := builder.Build(ctx, []*ast.ParseResult{
		fileUnit("a.py", []*ast.Symbol{makeFunc("a.py", "run", 1)}),
	})
	require.NoError(t, err)
	assert.True(t, result.Incomplete)
	assert.False(t, result.Success())
}

func TestGraph_FreezeRejectsWrites(t *testing.T) {
	g := NewGraph("/project")
	_, err := g.AddNode(makeFunc("a.py", "run", 1))
	require.NoError(t, err)

	g.Freeze()
	require.True(t, g.IsFrozen())

	_, err = g.AddNode(makeFunc("a.py", "other", 1))
	assert.True(t, errors.Is(err, ErrGraphFrozen))

	err = g.AddEdge("a.py::run", "a.py::run", EdgeTypeCalls, ast.Location{})
	assert.True(t, errors.Is(err, ErrGraphFrozen))

	err = g.RecordUnresolvedCall(UnresolvedCall{})
	assert.True(t, errors.Is(err, ErrGraphFrozen))
}

func TestGraph_Limits(t *testing.T) {
	g := NewGraph("/project", WithMaxNodes(1))
	_, err := g.AddNode(makeFunc("a.py", "one", 1))
	require.NoError(t, err)
	_, err = g.AddNode(makeFunc("a.py", "two", 2))
	assert.True(t, errors.Is(err, ErrMaxNodesExceeded))
}
