// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package deps computes the declared-versus-used dependency delta.
//
// Declared dependencies come from the project manifest (requirements.txt);
// used dependencies are the external modules the import graph references.
// The two sets are partitioned into declared-only, used-only, and both.
// A missing manifest is not the same as an empty one: the report carries
// an explicit flag so "nothing declared" is never silently conflated with
// "nothing to read".
package deps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Manifest holds the declared dependencies of a project.
type Manifest struct {
	// Path is where the manifest was read from. Empty when Found is false.
	Path string

	// Found reports whether a manifest file existed at all.
	Found bool

	// Packages lists the declared package names, normalized to lowercase,
	// in file order with duplicates removed.
	Packages []string
}

// ReadRequirements reads a pip requirements.txt file.
//
// Description:
//
//	Parses the requirements format far enough to recover package names:
//	version specifiers (==, >=, <=, ~=, !=, <, >), extras ("pkg[extra]"),
//	environment markers ("; python_version < ..."), inline comments, and
//	blank lines are all stripped. Option lines ("-r other.txt", "--hash")
//	and URL requirements are skipped; resolving them is out of scope.
//
// Outputs:
//   - *Manifest: Found=false with no error when the file does not exist.
//     Found=true with an empty Packages slice for an empty file. The two
//     cases are deliberately distinct.
//   - error: I/O failures other than absence.
func ReadRequirements(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Manifest{Found: false}, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	defer f.Close()

	manifest, err := parseRequirements(f)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	manifest.Path = path
	return manifest, nil
}

// parseRequirements parses requirements.txt content from a reader.
func parseRequirements(r io.Reader) (*Manifest, error) {
	manifest := &Manifest{
		Found:    true,
		Packages: make([]string, 0, 8),
	}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		name := requirementName(scanner.Text())
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		manifest.Packages = append(manifest.Packages, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return manifest, nil
}

// requirementName extracts the normalized package name from one
// requirements.txt line, or "" if the line declares no package.
func requirementName(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
		return ""
	}
	// URL and local-path requirements carry no usable name.
	if strings.Contains(line, "://") || strings.HasPrefix(line, ".") || strings.HasPrefix(line, "/") {
		return ""
	}

	// Inline comment.
	if idx := strings.Index(line, "#"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	// Environment marker.
	if idx := strings.Index(line, ";"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	// Version specifier.
	if idx := strings.IndexAny(line, "=<>!~"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	// Extras.
	if idx := strings.Index(line, "["); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}

	return strings.ToLower(line)
}
