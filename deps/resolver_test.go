// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brockwebb/project-mapper/ast"
	"github.com/brockwebb/project-mapper/graph"
)

// buildGraph builds a graph whose only content is one file importing the
// given modules.
func buildGraph(t *testing.T, imports ...string) *graph.Graph {
	t.Helper()

	r := &ast.ParseResult{FilePath: "app.py", Language: "python"}
	for i, path := range imports {
		r.Imports = append(r.Imports, ast.Import{
			Path:     path,
			Location: ast.Location{FilePath: "app.py", Line: i + 1},
		})
	}

	result, err := graph.NewBuilder().Build(context.Background(), []*ast.ParseResult{r})
	require.NoError(t, err)
	require.True(t, result.Success())
	return result.Graph
}

func TestResolve_Partition(t *testing.T) {
	// Declared: requests, numpy. Used: requests, json.
	g := buildGraph(t, "requests", "json")
	manifest := &Manifest{Found: true, Path: "requirements.txt", Packages: []string{"requests", "numpy"}}

	report := Resolve(g, manifest)

	assert.False(t, report.ManifestMissing)
	assert.Equal(t, []string{"numpy"}, report.DeclaredOnly)
	assert.Equal(t, []string{"json"}, report.UsedOnly)
	assert.Equal(t, []string{"requests"}, report.Both)
}

func TestResolve_PartitionIsDisjointAndComplete(t *testing.T) {
	g := buildGraph(t, "requests", "numpy", "flask", "json")
	manifest := &Manifest{Found: true, Packages: []string{"requests", "numpy", "pytest"}}

	report := Resolve(g, manifest)

	all := make(map[string]int)
	for _, name := range report.DeclaredOnly {
		all[name]++
	}
	for _, name := range report.UsedOnly {
		all[name]++
	}
	for _, name := range report.Both {
		all[name]++
	}

	// Every name appears in exactly one set.
	for name, count := range all {
		assert.Equal(t, 1, count, "name %q appears in %d sets", name, count)
	}
	// Union covers declared plus used.
	for _, name := range []string{"requests", "numpy", "flask", "json", "pytest"} {
		assert.Contains(t, all, name)
	}
}

func TestResolve_ManifestMissing(t *testing.T) {
	g := buildGraph(t, "requests", "json")

	report := Resolve(g, &Manifest{Found: false})

	assert.True(t, report.ManifestMissing)
	assert.Empty(t, report.DeclaredOnly)
	assert.Empty(t, report.Both)
	assert.Equal(t, []string{"json", "requests"}, report.UsedOnly)
}

func TestResolve_EmptyManifestIsNotMissing(t *testing.T) {
	g := buildGraph(t, "requests")

	report := Resolve(g, &Manifest{Found: true, Packages: nil})

	assert.False(t, report.ManifestMissing)
	assert.Equal(t, []string{"requests"}, report.UsedOnly)
}

func TestResolve_NameCanonicalization(t *testing.T) {
	g := buildGraph(t, "typing_extensions")
	manifest := &Manifest{Found: true, Packages: []string{"Typing-Extensions"}}

	report := Resolve(g, manifest)

	assert.Equal(t, []string{"typing_extensions"}, report.Both)
	assert.Empty(t, report.DeclaredOnly)
	assert.Empty(t, report.UsedOnly)
}

func TestResolve_InternalImportsAreNotUsed(t *testing.T) {
	// An internal import (matching a file stem) never counts as a used
	// dependency.
	a := &ast.ParseResult{FilePath: "a.py", Language: "python", Imports: []ast.Import{
		{Path: "b", Location: ast.Location{FilePath: "a.py", Line: 1}},
	}}
	b := &ast.ParseResult{FilePath: "b.py", Language: "python"}

	result, err := graph.NewBuilder().Build(context.Background(), []*ast.ParseResult{a, b})
	require.NoError(t, err)

	report := Resolve(result.Graph, &Manifest{Found: true})
	assert.Empty(t, report.UsedOnly)
}

func TestReadRequirements(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		manifest, err := ReadRequirements(filepath.Join(dir, "absent.txt"))
		require.NoError(t, err)
		assert.False(t, manifest.Found)
		assert.Empty(t, manifest.Packages)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		manifest, err := ReadRequirements(path)
		require.NoError(t, err)
		assert.True(t, manifest.Found)
		assert.Empty(t, manifest.Packages)
	})

	t.Run("full format", func(t *testing.T) {
		content := strings.Join([]string{
			"# comment",
			"",
			"requests==2.31.0",
			"numpy>=1.24",
			"uvicorn[standard]~=0.23",
			"pyyaml ; python_version < '3.12'",
			"Flask  # web framework",
			"-r dev-requirements.txt",
			"--hash=sha256:deadbeef",
			"git+https://example.com/repo.git",
			"requests==2.31.0",
		}, "\n")
		path := filepath.Join(dir, "requirements.txt")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		manifest, err := ReadRequirements(path)
		require.NoError(t, err)
		assert.True(t, manifest.Found)
		assert.Equal(t, []string{"requests", "numpy", "uvicorn", "pyyaml", "flask"}, manifest.Packages)
	})
}
