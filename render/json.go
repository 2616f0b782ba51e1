// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"encoding/json"
	"sort"

	"github.com/brockwebb/project-mapper/ast"
	"github.com/brockwebb/project-mapper/deps"
	"github.com/brockwebb/project-mapper/graph"
)

// Document is the top-level JSON projection of a project graph.
type Document struct {
	// Modules lists the analyzed file units in input order.
	Modules []ModuleDoc `json:"modules"`

	// Dependencies is the declared-versus-used report, when computed.
	Dependencies *deps.Report `json:"dependencies,omitempty"`

	// Unresolved is the total number of unresolved call sites.
	Unresolved int `json:"unresolved_calls"`
}

// ModuleDoc describes one file unit.
type ModuleDoc struct {
	File      string        `json:"file"`
	Module    string        `json:"module"`
	Functions []FunctionDoc `json:"functions"`
	Classes   []ClassDoc    `json:"classes"`
	Imports   []ImportDoc   `json:"imports"`
}

// FunctionDoc describes a function or method.
type FunctionDoc struct {
	Name      string    `json:"name"`
	Line      int       `json:"lineno"`
	Args      []string  `json:"args"`
	Docstring string    `json:"docstring,omitempty"`
	Calls     []CallDoc `json:"calls"`
}

// ClassDoc describes a class with its methods.
type ClassDoc struct {
	Name      string        `json:"name"`
	Line      int           `json:"lineno"`
	Docstring string        `json:"docstring,omitempty"`
	Methods   []FunctionDoc `json:"methods"`
}

// CallDoc describes one call site with its resolution outcome.
type CallDoc struct {
	// Name is the callee as resolved (qualified name) or as written
	// (unresolved target).
	Name string `json:"name"`

	Line int `json:"lineno"`

	// Resolved reports whether the call matched a declared entity.
	Resolved bool `json:"resolved"`

	// TargetID is the graph ID of the resolved callee.
	TargetID string `json:"target_id,omitempty"`
}

// ImportDoc describes one classified import edge.
type ImportDoc struct {
	// Module is the imported module's name.
	Module string `json:"module"`

	Line int `json:"lineno"`

	// Internal reports whether the import resolved to a file unit in the
	// project.
	Internal bool `json:"internal"`

	// TargetID is the graph ID of the import target (a file path for
	// internal imports, an external module node ID otherwise).
	TargetID string `json:"target_id"`
}

// generateJSON renders the nested module document.
//
// Modules appear in file registration order; everything below a module
// follows edge insertion order, which the builder derives from source
// order. The document is therefore a pure function of the ordered input.
func (r *Renderer) generateJSON(g *graph.Graph) (string, error) {
	doc := Document{
		Modules:      make([]ModuleDoc, 0, len(g.FileOrder())),
		Dependencies: r.options.Report,
		Unresolved:   len(g.UnresolvedCalls()),
	}

	unresolvedByCaller := groupUnresolved(g)

	for _, fileID := range g.FileOrder() {
		moduleNode, ok := g.GetNode(fileID)
		if !ok {
			continue
		}

		mod := ModuleDoc{
			File:      fileID,
			Module:    moduleNode.Symbol.Name,
			Functions: make([]FunctionDoc, 0),
			Classes:   make([]ClassDoc, 0),
			Imports:   make([]ImportDoc, 0),
		}

		for _, edge := range moduleNode.Outgoing {
			switch edge.Type {
			case graph.EdgeTypeDeclares:
				child, ok := g.GetNode(edge.ToID)
				if !ok {
					continue
				}
				switch child.Symbol.Kind {
				case ast.SymbolKindFunction:
					mod.Functions = append(mod.Functions, functionDoc(g, child, unresolvedByCaller))
				case ast.SymbolKindClass:
					mod.Classes = append(mod.Classes, classDoc(g, child, unresolvedByCaller))
				}
			case graph.EdgeTypeImports:
				target, ok := g.GetNode(edge.ToID)
				if !ok {
					continue
				}
				mod.Imports = append(mod.Imports, ImportDoc{
					Module:   target.Symbol.Name,
					Line:     edge.Location.Line,
					Internal: target.Symbol.Kind == ast.SymbolKindModule,
					TargetID: target.ID,
				})
			}
		}

		doc.Modules = append(doc.Modules, mod)
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

func functionDoc(g *graph.Graph, node *graph.Node, unresolved map[string][]graph.UnresolvedCall) FunctionDoc {
	sym := node.Symbol
	doc := FunctionDoc{
		Name:      sym.Name,
		Line:      sym.Line,
		Args:      append([]string{}, sym.Params...),
		Docstring: sym.DocComment,
		Calls:     make([]CallDoc, 0, len(node.Outgoing)),
	}

	for _, edge := range node.Outgoing {
		if edge.Type != graph.EdgeTypeCalls {
			continue
		}
		target, ok := g.GetNode(edge.ToID)
		if !ok {
			continue
		}
		doc.Calls = append(doc.Calls, CallDoc{
			Name:     target.Symbol.QualifiedName(),
			Line:     edge.Location.Line,
			Resolved: true,
			TargetID: target.ID,
		})
	}
	for _, miss := range unresolved[node.ID] {
		doc.Calls = append(doc.Calls, CallDoc{
			Name: miss.Target,
			Line: miss.Location.Line,
		})
	}

	// Resolved and unresolved sites come from separate lists; re-sort by
	// position to restore source order.
	sort.SliceStable(doc.Calls, func(i, j int) bool {
		return doc.Calls[i].Line < doc.Calls[j].Line
	})

	return doc
}

func classDoc(g *graph.Graph, node *graph.Node, unresolved map[string][]graph.UnresolvedCall) ClassDoc {
	sym := node.Symbol
	doc := ClassDoc{
		Name:      sym.Name,
		Line:      sym.Line,
		Docstring: sym.DocComment,
		Methods:   make([]FunctionDoc, 0, len(sym.Children)),
	}

	for _, edge := range node.Outgoing {
		if edge.Type != graph.EdgeTypeDeclares {
			continue
		}
		method, ok := g.GetNode(edge.ToID)
		if !ok {
			continue
		}
		doc.Methods = append(doc.Methods, functionDoc(g, method, unresolved))
	}

	return doc
}

// groupUnresolved indexes unresolved calls by caller ID, preserving
// discovery order within each caller.
func groupUnresolved(g *graph.Graph) map[string][]graph.UnresolvedCall {
	out := make(map[string][]graph.UnresolvedCall)
	for _, miss := range g.UnresolvedCalls() {
		out[miss.CallerID] = append(out[miss.CallerID], miss)
	}
	return out
}
