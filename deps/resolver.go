// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package deps

import (
	"sort"
	"strings"

	"github.com/brockwebb/project-mapper/ast"
	"github.com/brockwebb/project-mapper/graph"
)

// Report is the declared-versus-used dependency partition.
//
// The three sets are disjoint and their union covers every dependency
// name seen in either the manifest or the import graph. All slices are
// sorted so the report is deterministic.
type Report struct {
	// ManifestMissing is true when no manifest file was found. The
	// declared set is then empty by absence, not by declaration; callers
	// should not report DeclaredOnly findings in that case.
	ManifestMissing bool `json:"manifest_missing"`

	// ManifestPath is where the manifest was read from, when found.
	ManifestPath string `json:"manifest_path,omitempty"`

	// DeclaredOnly lists dependencies declared in the manifest but never
	// imported by any analyzed file.
	DeclaredOnly []string `json:"declared_only"`

	// UsedOnly lists external modules imported by the project but not
	// declared in the manifest. Standard-library modules land here too;
	// distinguishing them would require a bundled stdlib inventory.
	UsedOnly []string `json:"used_only"`

	// Both lists dependencies that are declared and imported.
	Both []string `json:"both"`
}

// Resolve computes the dependency report for a built graph.
//
// Description:
//
//	The used set is the name of every external module node in the graph;
//	the declared set comes from the manifest. Names are canonicalized
//	before comparison (lowercase, "-" folded to "_") so the PyPI spelling
//	"typing-extensions" matches the import spelling "typing_extensions".
//
//	When the manifest is absent the report keeps DeclaredOnly and Both
//	empty, puts every used module in UsedOnly, and sets ManifestMissing.
//
// Inputs:
//   - g: A built graph. May be unfrozen; only external nodes are read.
//   - manifest: The project manifest. Must not be nil; use a Manifest
//     with Found=false for projects without one.
//
// Outputs:
//   - *Report: The partition. Never nil.
func Resolve(g *graph.Graph, manifest *Manifest) *Report {
	report := &Report{
		DeclaredOnly: []string{},
		UsedOnly:     []string{},
		Both:         []string{},
	}

	used := make(map[string]bool)
	for _, node := range g.NodesByKind(ast.SymbolKindExternal) {
		if node.Symbol == nil || node.Symbol.Name == "" {
			continue
		}
		used[canonicalName(node.Symbol.Name)] = true
	}

	if manifest == nil || !manifest.Found {
		report.ManifestMissing = true
		for name := range used {
			report.UsedOnly = append(report.UsedOnly, name)
		}
		sort.Strings(report.UsedOnly)
		return report
	}
	report.ManifestPath = manifest.Path

	declared := make(map[string]bool)
	for _, pkg := range manifest.Packages {
		declared[canonicalName(pkg)] = true
	}

	for name := range declared {
		if used[name] {
			report.Both = append(report.Both, name)
		} else {
			report.DeclaredOnly = append(report.DeclaredOnly, name)
		}
	}
	for name := range used {
		if !declared[name] {
			report.UsedOnly = append(report.UsedOnly, name)
		}
	}

	sort.Strings(report.DeclaredOnly)
	sort.Strings(report.UsedOnly)
	sort.Strings(report.Both)
	return report
}

// canonicalName folds a package or module name to its comparison form.
func canonicalName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "-", "_")
}
