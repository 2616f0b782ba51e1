// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads optional project-mapper configuration.
//
// Configuration lives in a .projectmapper.yaml file at the project root.
// Every setting has a flag equivalent; flags win over file values, and a
// missing file just means defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the file looked up at the project root.
const ConfigFileName = ".projectmapper.yaml"

// Config holds the file-configurable settings.
type Config struct {
	// Output is the JSON document output path.
	Output string `yaml:"output"`

	// Mermaid is the Mermaid text output path. Empty disables it.
	Mermaid string `yaml:"mermaid"`

	// MermaidMode is "full" or "summary".
	MermaidMode string `yaml:"mermaid_mode"`

	// Direction is the Mermaid graph direction (TD, LR, BT, RL).
	Direction string `yaml:"direction"`

	// HTML is the interactive HTML output path. Empty disables it.
	HTML string `yaml:"html"`

	// Requirements is the manifest path, relative to the project root.
	Requirements string `yaml:"requirements"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Workers is the parse worker count. Zero means NumCPU.
	Workers int `yaml:"workers"`

	// SkipDirs replaces the default directory skip list when non-empty.
	SkipDirs []string `yaml:"skip_dirs"`

	// IncludeHidden parses dot-prefixed files and directories.
	IncludeHidden bool `yaml:"include_hidden"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Output:       "project_map.json",
		MermaidMode:  "full",
		Direction:    "TD",
		Requirements: "requirements.txt",
		LogLevel:     "info",
	}
}

// Load reads a config file, applying defaults for unset fields.
//
// A missing file is not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Default(), fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromRoot loads ConfigFileName from the project root.
func LoadFromRoot(root string) (Config, error) {
	return Load(filepath.Join(root, ConfigFileName))
}

func (c Config) validate() error {
	switch c.MermaidMode {
	case "", "full", "summary":
	default:
		return fmt.Errorf("mermaid_mode must be \"full\" or \"summary\", got %q", c.MermaidMode)
	}
	switch c.Direction {
	case "", "TD", "TB", "LR", "BT", "RL":
	default:
		return fmt.Errorf("direction must be one of TD, TB, LR, BT, RL, got %q", c.Direction)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	return nil
}
