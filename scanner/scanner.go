// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package scanner walks a project tree and parses its source files.
//
// The scanner is the glue between the filesystem and the graph builder:
// it finds files the parser registry can handle, parses them
// concurrently, and hands back results sorted by path so downstream
// consumers receive a deterministic input order regardless of scheduling.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/brockwebb/project-mapper/ast"
)

// defaultSkipDirs are directory names never descended into.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
}

// Options configures a Scanner.
type Options struct {
	// WorkerCount is the number of concurrent parse workers.
	// Default: runtime.NumCPU().
	WorkerCount int

	// SkipDirs lists directory names to skip, replacing the defaults
	// (.git, __pycache__, node_modules, .venv, venv) when non-nil.
	SkipDirs []string

	// IncludeHidden parses files and directories whose names start with
	// a dot. Default: false.
	IncludeHidden bool
}

// Option is a functional option for configuring Scanner.
type Option func(*Options)

// WithWorkerCount sets the number of concurrent parse workers.
func WithWorkerCount(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.WorkerCount = n
		}
	}
}

// WithSkipDirs replaces the default skip list.
func WithSkipDirs(dirs []string) Option {
	return func(o *Options) {
		o.SkipDirs = dirs
	}
}

// WithIncludeHidden includes dot-prefixed files and directories.
func WithIncludeHidden() Option {
	return func(o *Options) {
		o.IncludeHidden = true
	}
}

// Scanner discovers and parses project source files.
//
// Thread Safety: safe for concurrent use; each Scan call is independent.
type Scanner struct {
	registry *ast.ParserRegistry
	options  Options
	skip     map[string]bool
}

// New creates a Scanner using the given parser registry. A nil registry
// uses the default one.
func New(registry *ast.ParserRegistry, opts ...Option) *Scanner {
	if registry == nil {
		registry = ast.DefaultRegistry()
	}

	options := Options{WorkerCount: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&options)
	}

	skip := defaultSkipDirs
	if options.SkipDirs != nil {
		skip = make(map[string]bool, len(options.SkipDirs))
		for _, d := range options.SkipDirs {
			skip[d] = true
		}
	}

	return &Scanner{registry: registry, options: options, skip: skip}
}

// Scan walks root and parses every file a registered parser handles.
//
// Description:
//
//	Discovery is a sequential walk (stable order); parsing fans out to
//	WorkerCount goroutines. Results are returned sorted by file path, so
//	the output is independent of worker scheduling. File paths inside
//	the results are relative to root, with forward slashes.
//
//	Per-file parse failures are logged and skipped; a scan only fails as
//	a whole for walk errors or context cancellation.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - root: Project root directory.
//
// Outputs:
//   - []*ast.ParseResult: One entry per parsed file, sorted by path.
//   - error: Walk failure or context cancellation.
func (s *Scanner) Scan(ctx context.Context, root string) ([]*ast.ParseResult, error) {
	files, err := s.discover(root)
	if err != nil {
		return nil, err
	}

	results := make([]*ast.ParseResult, 0, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.options.WorkerCount)

	for _, relPath := range files {
		relPath := relPath
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			parser, ok := s.registry.GetByExtension(filepath.Ext(relPath))
			if !ok {
				return nil
			}

			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
			if err != nil {
				slog.Warn("skipping unreadable file",
					slog.String("file", relPath),
					slog.String("error", err.Error()),
				)
				return nil
			}

			result, err := parser.Parse(ctx, content, relPath)
			if err != nil {
				slog.Warn("skipping unparseable file",
					slog.String("file", relPath),
					slog.String("error", err.Error()),
				)
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FilePath < results[j].FilePath
	})

	slog.Debug("scan complete",
		slog.String("root", root),
		slog.Int("files", len(results)),
	)
	return results, nil
}

// discover walks root and returns the relative paths of candidate files,
// in walk order.
func (s *Scanner) discover(root string) ([]string, error) {
	extensions := make(map[string]bool)
	for _, ext := range s.registry.Extensions() {
		extensions[ext] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if s.skip[name] {
				return filepath.SkipDir
			}
			if !s.options.IncludeHidden && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.options.IncludeHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if !extensions[filepath.Ext(name)] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}
