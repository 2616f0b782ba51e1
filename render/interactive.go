// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package render

import (
	"encoding/json"
	"fmt"

	"github.com/brockwebb/project-mapper/ast"
	"github.com/brockwebb/project-mapper/graph"
)

// D3Node is one node of the interactive view's dataset.
type D3Node struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	File  string `json:"file,omitempty"`
	Group int    `json:"group"`
}

// D3Link is one edge of the interactive view's dataset.
type D3Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
	Value  int    `json:"value"`
}

// D3Graph is the dataset embedded in the interactive HTML document.
type D3Graph struct {
	Nodes []D3Node `json:"nodes"`
	Links []D3Link `json:"links"`
}

// kindGroup maps node kinds to numeric display groups.
var kindGroup = map[string]int{
	"module":     0,
	"function":   1,
	"method":     2,
	"class":      3,
	"external":   4,
	"unresolved": 5,
}

// generateD3JSON renders the force-layout dataset.
//
// Nodes appear in file registration order (declarations in source order
// within each file), then external modules in first-reference order, then
// unresolved sinks. Links follow edge insertion order. The dataset is
// byte-identical across runs for the same input.
func (r *Renderer) generateD3JSON(g *graph.Graph) (string, error) {
	d3 := D3Graph{
		Nodes: make([]D3Node, 0, g.NodeCount()),
		Links: make([]D3Link, 0, g.EdgeCount()),
	}
	seen := make(map[string]bool)

	addNode := func(id, name, kind, file string) {
		if seen[id] {
			return
		}
		seen[id] = true
		d3.Nodes = append(d3.Nodes, D3Node{
			ID:    id,
			Name:  name,
			Kind:  kind,
			File:  file,
			Group: kindGroup[kind],
		})
	}

	for _, fileID := range g.FileOrder() {
		moduleNode, ok := g.GetNode(fileID)
		if !ok {
			continue
		}
		addNode(fileID, moduleNode.Symbol.Name, "module", fileID)

		for _, edge := range moduleNode.Outgoing {
			if edge.Type != graph.EdgeTypeDeclares {
				continue
			}
			child, ok := g.GetNode(edge.ToID)
			if !ok {
				continue
			}
			kind := child.Symbol.Kind.String()
			addNode(child.ID, child.Symbol.Name, kind, child.Symbol.FilePath)

			if child.Symbol.Kind == ast.SymbolKindClass {
				for _, medge := range child.Outgoing {
					if medge.Type != graph.EdgeTypeDeclares {
						continue
					}
					if method, ok := g.GetNode(medge.ToID); ok {
						addNode(method.ID, method.Symbol.QualifiedName(), "method", method.Symbol.FilePath)
					}
				}
			}
		}
	}

	// External modules, in first-reference order.
	for _, edge := range g.EdgesByType(graph.EdgeTypeImports) {
		target, ok := g.GetNode(edge.ToID)
		if !ok {
			continue
		}
		if target.Symbol.Kind == ast.SymbolKindExternal {
			addNode(target.ID, target.Symbol.Name, "external", "")
		}
	}

	// Unresolved sinks, one per distinct target per caller.
	for _, miss := range g.UnresolvedCalls() {
		sinkID := "call::" + miss.CallerID + "::" + miss.Target
		addNode(sinkID, miss.Target, "unresolved", miss.Location.FilePath)
	}

	for _, edge := range g.Edges() {
		d3.Links = append(d3.Links, D3Link{
			Source: edge.FromID,
			Target: edge.ToID,
			Type:   edge.Type.String(),
			Value:  1,
		})
	}
	sinkLinked := make(map[string]bool)
	for _, miss := range g.UnresolvedCalls() {
		sinkID := "call::" + miss.CallerID + "::" + miss.Target
		if sinkLinked[sinkID] {
			continue
		}
		sinkLinked[sinkID] = true
		d3.Links = append(d3.Links, D3Link{
			Source: miss.CallerID,
			Target: sinkID,
			Type:   "unresolved",
			Value:  1,
		})
	}

	data, err := json.MarshalIndent(d3, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// generateHTML renders the self-contained interactive document.
//
// The force simulation is embedded in the page; viewing requires no
// network access and no external assets. Initial node positions are a
// function of node index, so the layout starts identically every time
// the page is opened.
func (r *Renderer) generateHTML(g *graph.Graph) (string, error) {
	d3JSON, err := r.generateD3JSON(g)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(interactiveTemplate, d3JSON), nil
}

// interactiveTemplate is the HTML shell around the embedded dataset. The
// single %s verb receives the D3 JSON; all literal percent signs below
// are doubled.
const interactiveTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Project Structure</title>
  <style>
    body { margin: 0; font-family: Arial, sans-serif; background: #fafafa; }
    canvas { display: block; }
    #legend {
      position: absolute; top: 10px; left: 10px;
      background: rgba(255,255,255,0.9); border: 1px solid #ccc;
      border-radius: 4px; padding: 8px 12px; font-size: 12px;
    }
    #legend span { display: inline-block; width: 10px; height: 10px;
      border-radius: 50%%; margin-right: 4px; }
  </style>
</head>
<body>
  <div id="legend">
    <div><span style="background:#4a90d9"></span>module</div>
    <div><span style="background:#10ac84"></span>function</div>
    <div><span style="background:#54a0ff"></span>method</div>
    <div><span style="background:#5f27cd"></span>class</div>
    <div><span style="background:#aaaaaa"></span>external</div>
    <div><span style="background:#ffd93d"></span>unresolved call</div>
  </div>
  <canvas></canvas>
  <script>
    const data = %s;

    const colors = ["#4a90d9", "#10ac84", "#54a0ff", "#5f27cd", "#aaaaaa", "#ffd93d"];
    const canvas = document.querySelector("canvas");
    const ctx = canvas.getContext("2d");

    let width, height;
    function resize() {
      width = canvas.width = window.innerWidth;
      height = canvas.height = window.innerHeight;
    }
    window.addEventListener("resize", resize);
    resize();

    // Deterministic initial layout: nodes on a circle by index.
    const nodes = data.nodes.map((n, i) => {
      const angle = (2 * Math.PI * i) / data.nodes.length;
      const radius = Math.min(width, height) / 3;
      return Object.assign({}, n, {
        x: width / 2 + radius * Math.cos(angle),
        y: height / 2 + radius * Math.sin(angle),
        vx: 0, vy: 0, fixed: false,
      });
    });
    const byId = new Map(nodes.map(n => [n.id, n]));
    const links = data.links
      .map(l => ({ source: byId.get(l.source), target: byId.get(l.target), type: l.type }))
      .filter(l => l.source && l.target);

    // Spring-and-repulsion force simulation.
    const SPRING = 0.02, SPRING_LEN = 90, REPULSE = 2500, CENTER = 0.005, DAMPING = 0.85;
    function tick() {
      for (let i = 0; i < nodes.length; i++) {
        for (let j = i + 1; j < nodes.length; j++) {
          const a = nodes[i], b = nodes[j];
          let dx = b.x - a.x, dy = b.y - a.y;
          let d2 = dx * dx + dy * dy || 1;
          const f = REPULSE / d2;
          const d = Math.sqrt(d2);
          dx /= d; dy /= d;
          if (!a.fixed) { a.vx -= dx * f; a.vy -= dy * f; }
          if (!b.fixed) { b.vx += dx * f; b.vy += dy * f; }
        }
      }
      for (const l of links) {
        let dx = l.target.x - l.source.x, dy = l.target.y - l.source.y;
        const d = Math.sqrt(dx * dx + dy * dy) || 1;
        const f = SPRING * (d - SPRING_LEN);
        dx /= d; dy /= d;
        if (!l.source.fixed) { l.source.vx += dx * f; l.source.vy += dy * f; }
        if (!l.target.fixed) { l.target.vx -= dx * f; l.target.vy -= dy * f; }
      }
      for (const n of nodes) {
        if (n.fixed) continue;
        n.vx += (width / 2 - n.x) * CENTER;
        n.vy += (height / 2 - n.y) * CENTER;
        n.vx *= DAMPING; n.vy *= DAMPING;
        n.x += n.vx; n.y += n.vy;
      }
    }

    function draw() {
      ctx.clearRect(0, 0, width, height);
      ctx.strokeStyle = "#bbb";
      for (const l of links) {
        ctx.beginPath();
        ctx.setLineDash(l.type === "imports" ? [4, 3] : []);
        ctx.moveTo(l.source.x, l.source.y);
        ctx.lineTo(l.target.x, l.target.y);
        ctx.stroke();
      }
      ctx.setLineDash([]);
      for (const n of nodes) {
        const r = n.kind === "module" ? 10 : 6;
        ctx.beginPath();
        ctx.arc(n.x, n.y, r, 0, 2 * Math.PI);
        ctx.fillStyle = colors[n.group %% colors.length];
        ctx.fill();
        ctx.strokeStyle = "#333";
        ctx.stroke();
        ctx.fillStyle = "#333";
        ctx.font = "11px Arial";
        ctx.fillText(n.name, n.x + r + 3, n.y + 4);
      }
    }

    let dragging = null;
    canvas.addEventListener("mousedown", e => {
      for (const n of nodes) {
        const dx = e.offsetX - n.x, dy = e.offsetY - n.y;
        if (dx * dx + dy * dy < 144) { dragging = n; n.fixed = true; break; }
      }
    });
    canvas.addEventListener("mousemove", e => {
      if (dragging) { dragging.x = e.offsetX; dragging.y = e.offsetY; }
    });
    window.addEventListener("mouseup", () => {
      if (dragging) { dragging.fixed = false; dragging = null; }
    });

    function frame() {
      tick();
      draw();
      requestAnimationFrame(frame);
    }
    frame();
  </script>
</body>
</html>
`
