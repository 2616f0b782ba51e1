// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brockwebb/project-mapper/ast"
	"github.com/brockwebb/project-mapper/deps"
	"github.com/brockwebb/project-mapper/graph"
)

// scenarioGraph builds a small project:
//
//	app.py:  main() calls helper, User, missing, missing; imports b and requests
//	b.py:    helper()
//	models.py: class User with save() calling self.validate() and validate()
func scenarioGraph(t *testing.T) *graph.Graph {
	t.Helper()

	app := &ast.ParseResult{
		FilePath: "app.py",
		Language: "python",
		Symbols: []*ast.Symbol{
			{
				ID: "app.py::main", Name: "main", Kind: ast.SymbolKindFunction,
				FilePath: "app.py", Line: 3,
				Params: []string{"argv"},
				Calls: []ast.CallSite{
					{Target: "helper", Location: ast.Location{FilePath: "app.py", Line: 4}},
					{Target: "User", Location: ast.Location{FilePath: "app.py", Line: 5}},
					{Target: "missing", Location: ast.Location{FilePath: "app.py", Line: 6}},
					{Target: "missing", Location: ast.Location{FilePath: "app.py", Line: 7}},
				},
			},
		},
		Imports: []ast.Import{
			{Path: "b", Location: ast.Location{FilePath: "app.py", Line: 1}},
			{Path: "requests", Location: ast.Location{FilePath: "app.py", Line: 2}},
		},
	}

	b := &ast.ParseResult{
		FilePath: "b.py",
		Language: "python",
		Symbols: []*ast.Symbol{
			{
				ID: "b.py::helper", Name: "helper", Kind: ast.SymbolKindFunction,
				FilePath: "b.py", Line: 1, DocComment: "Does the work.",
			},
		},
	}

	models := &ast.ParseResult{
		FilePath: "models.py",
		Language: "python",
		Symbols: []*ast.Symbol{
			{
				ID: "models.py::User", Name: "User", Kind: ast.SymbolKindClass,
				FilePath: "models.py", Line: 1,
				Children: []*ast.Symbol{
					{
						ID: "models.py::User.save", Name: "save", Kind: ast.SymbolKindMethod,
						FilePath: "models.py", Line: 2, ClassName: "User",
						Params: []string{"self"},
						Calls: []ast.CallSite{
							{Target: "self.validate", Location: ast.Location{FilePath: "models.py", Line: 3}},
						},
					},
					{
						ID: "models.py::User.validate", Name: "validate", Kind: ast.SymbolKindMethod,
						FilePath: "models.py", Line: 5, ClassName: "User",
						Params: []string{"self"},
					},
				},
			},
		},
	}

	result, err := graph.NewBuilder().Build(context.Background(), []*ast.ParseResult{app, b, models})
	require.NoError(t, err)
	require.True(t, result.Success())
	return result.Graph
}

func render(t *testing.T, g *graph.Graph, format Format, opts *Options) string {
	t.Helper()
	out, err := NewRenderer(opts).Generate(context.Background(), g, format)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	return out
}

func TestGenerate_RejectsUnfrozenGraph(t *testing.T) {
	g := graph.NewGraph("/project")
	_, err := NewRenderer(nil).Generate(context.Background(), g, FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen")
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	g := scenarioGraph(t)
	_, err := NewRenderer(nil).Generate(context.Background(), g, Format("svg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestMermaid_Full(t *testing.T) {
	out := render(t, scenarioGraph(t), FormatMermaid, nil)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `["Module: app.py"]`)
	assert.Contains(t, out, `["Func: main (line 3)"]`)
	assert.Contains(t, out, `["Class: User"]`)
	assert.Contains(t, out, `["Method: save (line 2)"]`)
	assert.Contains(t, out, `["External: requests"]`)
	assert.Contains(t, out, `["Call: missing"]`)

	// The two missing() calls from main share one sink.
	assert.Equal(t, 1, strings.Count(out, `["Call: missing"]`))
}

func TestMermaid_Summary(t *testing.T) {
	out := render(t, scenarioGraph(t), FormatMermaid, &Options{MermaidMode: MermaidModeSummary})

	assert.Contains(t, out, `["Module: app.py"]`)
	assert.Contains(t, out, `["Func: main (line 3)"]`)
	assert.Contains(t, out, `["Class: User"]`)
	assert.Contains(t, out, `["Method: save (line 2)"]`)
	// Declaration level only: no call detail and no import edges.
	assert.NotContains(t, out, "Call:")
	assert.NotContains(t, out, "External:")
	assert.NotContains(t, out, "-.->")
}

func TestMermaid_Direction(t *testing.T) {
	out := render(t, scenarioGraph(t), FormatMermaid, &Options{Direction: "LR"})
	assert.True(t, strings.HasPrefix(out, "graph LR\n"))
}

func TestMermaid_CounterIDsAreCollisionFree(t *testing.T) {
	// Two files whose sanitized names would collide.
	a := &ast.ParseResult{FilePath: "a/b.py", Language: "python"}
	b := &ast.ParseResult{FilePath: "a_b.py", Language: "python"}
	result, err := graph.NewBuilder().Build(context.Background(), []*ast.ParseResult{a, b})
	require.NoError(t, err)

	out := render(t, result.Graph, FormatMermaid, nil)
	assert.Contains(t, out, "n0[")
	assert.Contains(t, out, "n1[")
}

func TestMermaid_LabelEscaping(t *testing.T) {
	r := &ast.ParseResult{
		FilePath: "gen.py",
		Language: "python",
		Symbols: []*ast.Symbol{
			{
				ID: `gen.py::render<T>`, Name: `render<T>`, Kind: ast.SymbolKindFunction,
				FilePath: "gen.py", Line: 1,
			},
		},
	}
	result, err := graph.NewBuilder().Build(context.Background(), []*ast.ParseResult{r})
	require.NoError(t, err)

	out := render(t, result.Graph, FormatMermaid, nil)
	assert.Contains(t, out, "&lt;T&gt;")
	assert.NotContains(t, out, "render<T>")
}

func TestJSON_Structure(t *testing.T) {
	report := &deps.Report{
		DeclaredOnly: []string{"numpy"},
		UsedOnly:     []string{"json"},
		Both:         []string{"requests"},
	}
	out := render(t, scenarioGraph(t), FormatJSON, &Options{Report: report})

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	require.Len(t, doc.Modules, 3)
	assert.Equal(t, "app.py", doc.Modules[0].File)
	assert.Equal(t, "app", doc.Modules[0].Module)

	main := doc.Modules[0].Functions[0]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, []string{"argv"}, main.Args)

	// Calls in source order: helper (resolved), User (constructor),
	// missing twice (unresolved).
	require.Len(t, main.Calls, 4)
	assert.Equal(t, CallDoc{Name: "helper", Line: 4, Resolved: true, TargetID: "b.py::helper"}, main.Calls[0])
	assert.Equal(t, CallDoc{Name: "User", Line: 5, Resolved: true, TargetID: "models.py::User"}, main.Calls[1])
	assert.False(t, main.Calls[2].Resolved)
	assert.Equal(t, "missing", main.Calls[2].Name)
	assert.Equal(t, 6, main.Calls[2].Line)
	assert.Equal(t, 7, main.Calls[3].Line)

	// Imports: b internal, requests external.
	require.Len(t, doc.Modules[0].Imports, 2)
	assert.True(t, doc.Modules[0].Imports[0].Internal)
	assert.Equal(t, "b.py", doc.Modules[0].Imports[0].TargetID)
	assert.False(t, doc.Modules[0].Imports[1].Internal)
	assert.Equal(t, "external::requests", doc.Modules[0].Imports[1].TargetID)

	// Class with methods, self.validate resolved.
	users := doc.Modules[2].Classes
	require.Len(t, users, 1)
	require.Len(t, users[0].Methods, 2)
	save := users[0].Methods[0]
	require.Len(t, save.Calls, 1)
	assert.Equal(t, "User.validate", save.Calls[0].Name)
	assert.True(t, save.Calls[0].Resolved)

	// Dependency report embedded.
	require.NotNil(t, doc.Dependencies)
	assert.Equal(t, []string{"requests"}, doc.Dependencies.Both)

	assert.Equal(t, 2, doc.Unresolved)
}

func TestD3_Dataset(t *testing.T) {
	out := render(t, scenarioGraph(t), FormatD3, nil)

	var d3 D3Graph
	require.NoError(t, json.Unmarshal([]byte(out), &d3))

	// 3 modules + main + helper + User + 2 methods + external requests
	// + 1 unresolved sink (missing deduped).
	assert.Len(t, d3.Nodes, 10)

	kinds := make(map[string]int)
	for _, n := range d3.Nodes {
		kinds[n.Kind]++
	}
	assert.Equal(t, 3, kinds["module"])
	assert.Equal(t, 2, kinds["function"])
	assert.Equal(t, 2, kinds["method"])
	assert.Equal(t, 1, kinds["class"])
	assert.Equal(t, 1, kinds["external"])

	// Every link endpoint must be a present node.
	ids := make(map[string]bool)
	for _, n := range d3.Nodes {
		ids[n.ID] = true
	}
	for _, l := range d3.Links {
		assert.True(t, ids[l.Source], "missing source %s", l.Source)
		assert.True(t, ids[l.Target], "missing target %s", l.Target)
	}
}

func TestHTML_SelfContained(t *testing.T) {
	out := render(t, scenarioGraph(t), FormatHTML, nil)

	assert.Contains(t, out, "<!DOCTYPE html>")
	assert.Contains(t, out, `"nodes"`)
	assert.Contains(t, out, "app.py")

	// No network access at view time: no external asset references.
	assert.NotContains(t, out, "http://")
	assert.NotContains(t, out, "https://")
	assert.NotContains(t, out, "<script src=")
}

func TestRenderers_Deterministic(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatMermaid, FormatD3, FormatHTML} {
		t.Run(string(format), func(t *testing.T) {
			first := render(t, scenarioGraph(t), format, nil)
			second := render(t, scenarioGraph(t), format, nil)
			assert.Equal(t, first, second)
		})
	}
}

func TestRenderers_ConsistentAcrossFormats(t *testing.T) {
	g := scenarioGraph(t)

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(render(t, g, FormatJSON, nil)), &doc))
	var d3 D3Graph
	require.NoError(t, json.Unmarshal([]byte(render(t, g, FormatD3, nil)), &d3))
	mermaid := render(t, g, FormatMermaid, nil)

	// Same modules everywhere.
	for _, mod := range doc.Modules {
		assert.Contains(t, mermaid, escapeMermaidLabel(mod.File))
		found := false
		for _, n := range d3.Nodes {
			if n.ID == mod.File {
				found = true
				break
			}
		}
		assert.True(t, found, "module %s missing from d3 dataset", mod.File)
	}

	// Same resolved call edges in JSON and D3.
	d3Calls := make(map[string]bool)
	for _, l := range d3.Links {
		if l.Type == "calls" {
			d3Calls[l.Source+"->"+l.Target] = true
		}
	}
	for _, mod := range doc.Modules {
		for _, fn := range mod.Functions {
			for _, call := range fn.Calls {
				if call.Resolved {
					key := mod.File + "::" + fn.Name + "->" + call.TargetID
					assert.True(t, d3Calls[key], "call edge %s missing from d3", key)
				}
			}
		}
	}
}
