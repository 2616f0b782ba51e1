// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package render projects a built graph into output documents.
//
// Three projections are supported: a JSON document mirroring the graph's
// per-module structure, Mermaid flowchart text, and a self-contained
// interactive HTML page. All renderers are pure functions of the frozen
// graph, so identical graphs always produce byte-identical output. No
// renderer touches the network or the filesystem.
package render

import (
	"context"
	"fmt"

	"github.com/brockwebb/project-mapper/deps"
	"github.com/brockwebb/project-mapper/graph"
)

// Format specifies the renderer output format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMermaid Format = "mermaid"
	FormatD3      Format = "d3"
	FormatHTML    Format = "html"
)

// MermaidMode selects the level of detail in Mermaid output.
type MermaidMode string

const (
	// MermaidModeFull includes call edges and unresolved call sinks.
	MermaidModeFull MermaidMode = "full"

	// MermaidModeSummary shows modules, functions, classes, and methods
	// without call detail.
	MermaidModeSummary MermaidMode = "summary"
)

// Options configures rendering.
type Options struct {
	// Direction is the Mermaid graph direction (TD, LR, BT, RL).
	// Default: "TD"
	Direction string

	// MermaidMode selects full or summary Mermaid output.
	// Default: MermaidModeFull
	MermaidMode MermaidMode

	// Report, when non-nil, is embedded in the JSON document. The other
	// formats do not carry dependency information.
	Report *deps.Report
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Direction:   "TD",
		MermaidMode: MermaidModeFull,
	}
}

// Renderer projects graphs into output documents.
//
// Thread Safety: safe for concurrent use.
type Renderer struct {
	options Options
}

// NewRenderer creates a renderer with the given options. A nil opts uses
// defaults.
func NewRenderer(opts *Options) *Renderer {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}
	if opts.Direction == "" {
		opts.Direction = "TD"
	}
	if opts.MermaidMode == "" {
		opts.MermaidMode = MermaidModeFull
	}
	return &Renderer{options: *opts}
}

// Generate renders the graph in the requested format.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - g: A frozen graph.
//   - format: The output format.
//
// Outputs:
//   - string: The rendered document.
//   - error: Non-nil for unknown formats, unfrozen graphs, or marshal
//     failures.
func (r *Renderer) Generate(ctx context.Context, g *graph.Graph, format Format) (string, error) {
	if ctx == nil {
		return "", fmt.Errorf("context is required")
	}
	if g == nil {
		return "", fmt.Errorf("graph is required")
	}
	if !g.IsFrozen() {
		return "", fmt.Errorf("graph must be frozen before rendering")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch format {
	case FormatJSON:
		return r.generateJSON(g)
	case FormatMermaid:
		return r.generateMermaid(g), nil
	case FormatD3:
		return r.generateD3JSON(g)
	case FormatHTML:
		return r.generateHTML(g)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
