// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"fmt"
	"path"
	"strings"

	"github.com/brockwebb/project-mapper/ast"
	"github.com/brockwebb/project-mapper/graph"
)

// mermaidIDs allocates diagram node identifiers.
//
// Graph IDs contain characters Mermaid cannot digest (slashes, dots,
// colons), and sanitizing them can collide ("a/b.py" and "a.b.py" both
// become "a_b_py"). Counter-assigned identifiers cannot collide, and the
// allocation order is the emission order, so identical graphs get
// identical identifiers.
type mermaidIDs struct {
	ids  map[string]string
	next int
}

func newMermaidIDs() *mermaidIDs {
	return &mermaidIDs{ids: make(map[string]string)}
}

// id returns the diagram identifier for a key, allocating on first use.
func (m *mermaidIDs) id(key string) string {
	if id, ok := m.ids[key]; ok {
		return id
	}
	id := fmt.Sprintf("n%d", m.next)
	m.next++
	m.ids[key] = id
	return id
}

func (m *mermaidIDs) seen(key string) bool {
	_, ok := m.ids[key]
	return ok
}

// generateMermaid renders the graph as Mermaid flowchart text.
//
// Description:
//
//	Full mode draws file units, their declared functions, classes, and
//	methods, import edges, resolved call edges, and one labeled sink per
//	distinct unresolved target per caller. Summary mode emits modules,
//	functions, classes, methods, and declares edges only.
//
//	Emission walks file units in registration order and edges in
//	insertion order, so output is byte-identical across runs for the
//	same input.
func (r *Renderer) generateMermaid(g *graph.Graph) string {
	var sb strings.Builder
	ids := newMermaidIDs()

	sb.WriteString(fmt.Sprintf("graph %s\n", r.options.Direction))

	// Declarations.
	for _, fileID := range g.FileOrder() {
		moduleNode, ok := g.GetNode(fileID)
		if !ok {
			continue
		}
		modID := ids.id(fileID)
		sb.WriteString(fmt.Sprintf("    %s[\"Module: %s\"]:::module\n",
			modID, escapeMermaidLabel(path.Base(fileID))))

		for _, edge := range moduleNode.Outgoing {
			if edge.Type != graph.EdgeTypeDeclares {
				continue
			}
			child, ok := g.GetNode(edge.ToID)
			if !ok {
				continue
			}
			childID := ids.id(child.ID)

			switch child.Symbol.Kind {
			case ast.SymbolKindFunction:
				sb.WriteString(fmt.Sprintf("    %s[\"Func: %s (line %d)\"]\n",
					childID, escapeMermaidLabel(child.Symbol.Name), child.Symbol.Line))
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", modID, childID))

			case ast.SymbolKindClass:
				sb.WriteString(fmt.Sprintf("    %s[\"Class: %s\"]\n",
					childID, escapeMermaidLabel(child.Symbol.Name)))
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", modID, childID))

				for _, medge := range child.Outgoing {
					if medge.Type != graph.EdgeTypeDeclares {
						continue
					}
					method, ok := g.GetNode(medge.ToID)
					if !ok {
						continue
					}
					methodID := ids.id(method.ID)
					sb.WriteString(fmt.Sprintf("    %s[\"Method: %s (line %d)\"]\n",
						methodID, escapeMermaidLabel(method.Symbol.Name), method.Symbol.Line))
					sb.WriteString(fmt.Sprintf("    %s --> %s\n", childID, methodID))
				}
			}
		}
	}

	// Imports and calls (full mode only). Summary mode stops at the
	// declaration level.
	if r.options.MermaidMode == MermaidModeFull {
		sb.WriteString("\n")
		for _, fileID := range g.FileOrder() {
			moduleNode, ok := g.GetNode(fileID)
			if !ok {
				continue
			}
			for _, edge := range moduleNode.Outgoing {
				if edge.Type != graph.EdgeTypeImports {
					continue
				}
				target, ok := g.GetNode(edge.ToID)
				if !ok {
					continue
				}
				if target.Symbol.Kind == ast.SymbolKindExternal && !ids.seen(target.ID) {
					sb.WriteString(fmt.Sprintf("    %s[\"External: %s\"]:::external\n",
						ids.id(target.ID), escapeMermaidLabel(target.Symbol.Name)))
				}
				sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", ids.id(fileID), ids.id(target.ID)))
			}
		}

		sb.WriteString("\n")
		unresolvedByCaller := groupUnresolved(g)

		for _, fileID := range g.FileOrder() {
			moduleNode, ok := g.GetNode(fileID)
			if !ok {
				continue
			}
			for _, caller := range declaredCallers(g, moduleNode) {
				for _, edge := range caller.Outgoing {
					if edge.Type != graph.EdgeTypeCalls {
						continue
					}
					sb.WriteString(fmt.Sprintf("    %s --> %s\n", ids.id(caller.ID), ids.id(edge.ToID)))
				}

				// One sink per distinct unresolved target per caller:
				// repeated calls to the same missing name draw one edge.
				for _, miss := range unresolvedByCaller[caller.ID] {
					sinkKey := "call::" + caller.ID + "::" + miss.Target
					if ids.seen(sinkKey) {
						continue
					}
					sinkID := ids.id(sinkKey)
					sb.WriteString(fmt.Sprintf("    %s[\"Call: %s\"]:::unresolved\n",
						sinkID, escapeMermaidLabel(miss.Target)))
					sb.WriteString(fmt.Sprintf("    %s --> %s\n", ids.id(caller.ID), sinkID))
				}
			}
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef module fill:#4a90d9,stroke:#333,color:#fff\n")
	sb.WriteString("    classDef external fill:#aaa,stroke:#333,stroke-dasharray: 5 5\n")
	sb.WriteString("    classDef unresolved fill:#ffd93d,stroke:#333\n")

	return sb.String()
}

// declaredCallers returns the functions and methods declared under a file
// unit, in declaration order.
func declaredCallers(g *graph.Graph, moduleNode *graph.Node) []*graph.Node {
	var callers []*graph.Node
	for _, edge := range moduleNode.Outgoing {
		if edge.Type != graph.EdgeTypeDeclares {
			continue
		}
		child, ok := g.GetNode(edge.ToID)
		if !ok {
			continue
		}
		switch child.Symbol.Kind {
		case ast.SymbolKindFunction:
			callers = append(callers, child)
		case ast.SymbolKindClass:
			for _, medge := range child.Outgoing {
				if medge.Type != graph.EdgeTypeDeclares {
					continue
				}
				if method, ok := g.GetNode(medge.ToID); ok {
					callers = append(callers, method)
				}
			}
		}
	}
	return callers
}

// escapeMermaidLabel escapes characters that break Mermaid label parsing.
func escapeMermaidLabel(s string) string {
	replacer := strings.NewReplacer(
		"\"", "#quot;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
