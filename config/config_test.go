// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "project_map.json", cfg.Output)
	assert.Equal(t, "full", cfg.MermaidMode)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := `
output: out/map.json
mermaid: out/map.mmd
mermaid_mode: summary
direction: LR
requirements: reqs/requirements.txt
log_level: debug
workers: 4
skip_dirs: [vendor, build]
include_hidden: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/map.json", cfg.Output)
	assert.Equal(t, "out/map.mmd", cfg.Mermaid)
	assert.Equal(t, "summary", cfg.MermaidMode)
	assert.Equal(t, "LR", cfg.Direction)
	assert.Equal(t, "reqs/requirements.txt", cfg.Requirements)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{"vendor", "build"}, cfg.SkipDirs)
	assert.True(t, cfg.IncludeHidden)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("mermaid_mode: summary\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "summary", cfg.MermaidMode)
	assert.Equal(t, "project_map.json", cfg.Output)
	assert.Equal(t, "requirements.txt", cfg.Requirements)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad mode", "mermaid_mode: fancy\n"},
		{"bad direction", "direction: UP\n"},
		{"negative workers", "workers: -1\n"},
		{"malformed yaml", "output: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
