// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command project-mapper analyzes a project tree and emits structural maps.
//
// It parses the project's source files, builds a unified structure graph
// (files, functions, classes, calls, imports), computes the declared
// versus used dependency delta, and writes up to three artifacts:
//
//   - a JSON document of the project structure (always)
//   - a Mermaid flowchart, full or summary mode (--mermaid)
//   - a self-contained interactive HTML view (--html)
//
// Usage:
//
//	project-mapper .
//	project-mapper ./src -o map.json --mermaid map.mmd --mermaid-mode summary
//	project-mapper . --html map.html --requirements requirements.txt
//
// Settings can also come from a .projectmapper.yaml at the project root;
// explicit flags win over file values.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brockwebb/project-mapper/config"
	"github.com/brockwebb/project-mapper/deps"
	"github.com/brockwebb/project-mapper/graph"
	"github.com/brockwebb/project-mapper/pkg/logging"
	"github.com/brockwebb/project-mapper/render"
	"github.com/brockwebb/project-mapper/scanner"
)

var (
	flagOutput        string
	flagMermaid       string
	flagMermaidMode   string
	flagDirection     string
	flagHTML          string
	flagRequirements  string
	flagLogLevel      string
	flagWorkers       int
	flagIncludeHidden bool

	rootCmd = &cobra.Command{
		Use:   "project-mapper [path]",
		Short: "Map the structure of a source project",
		Long: `project-mapper parses a project's source files and builds a unified
structure graph: modules, functions, classes, call relationships, and
imports classified as internal or external. The graph is projected into
a JSON document and, optionally, Mermaid flowchart text and an
interactive HTML view that works entirely offline.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMap,

		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&flagOutput, "output", "o", "", "JSON output path (default project_map.json)")
	flags.StringVar(&flagMermaid, "mermaid", "", "write Mermaid flowchart text to this path")
	flags.StringVar(&flagMermaidMode, "mermaid-mode", "", "Mermaid detail level: full or summary")
	flags.StringVar(&flagDirection, "direction", "", "Mermaid graph direction: TD, LR, BT, RL")
	flags.StringVar(&flagHTML, "html", "", "write interactive HTML view to this path")
	flags.StringVar(&flagRequirements, "requirements", "", "manifest path for the dependency delta (default requirements.txt)")
	flags.StringVar(&flagLogLevel, "log-level", "", "minimum log level: debug, info, warn, error")
	flags.IntVar(&flagWorkers, "workers", 0, "parse worker count (0 = number of CPUs)")
	flags.BoolVar(&flagIncludeHidden, "include-hidden", false, "parse dot-prefixed files and directories")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "project-mapper: %v\n", err)
		os.Exit(1)
	}
}

func runMap(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg, err := config.LoadFromRoot(root)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: "project-mapper",
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Scan.
	scanOpts := []scanner.Option{scanner.WithWorkerCount(cfg.Workers)}
	if cfg.SkipDirs != nil {
		scanOpts = append(scanOpts, scanner.WithSkipDirs(cfg.SkipDirs))
	}
	if cfg.IncludeHidden {
		scanOpts = append(scanOpts, scanner.WithIncludeHidden())
	}
	results, err := scanner.New(nil, scanOpts...).Scan(ctx, root)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	logger.Info("scan complete", "root", root, "files", len(results))

	// Build.
	buildResult, err := graph.NewBuilder(graph.WithProjectRoot(root)).Build(ctx, results)
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}
	if buildResult.Incomplete {
		return fmt.Errorf("build graph: %w", graph.ErrBuildCancelled)
	}
	logger.Info("graph built",
		"nodes", buildResult.Stats.NodesCreated,
		"edges", buildResult.Stats.EdgesCreated,
		"calls_resolved", buildResult.Stats.CallsResolved,
		"calls_unresolved", buildResult.Stats.CallsUnresolved,
	)

	// Dependency delta.
	manifest, err := deps.ReadRequirements(manifestPath(root, cfg.Requirements))
	if err != nil {
		return err
	}
	report := deps.Resolve(buildResult.Graph, manifest)
	if report.ManifestMissing {
		logger.Info("no manifest found; dependency delta limited to used modules")
	}

	// Render.
	renderer := render.NewRenderer(&render.Options{
		Direction:   cfg.Direction,
		MermaidMode: render.MermaidMode(cfg.MermaidMode),
		Report:      report,
	})

	if err := writeOutput(ctx, renderer, buildResult.Graph, render.FormatJSON, cfg.Output, logger); err != nil {
		return err
	}
	if cfg.Mermaid != "" {
		if err := writeOutput(ctx, renderer, buildResult.Graph, render.FormatMermaid, cfg.Mermaid, logger); err != nil {
			return err
		}
	}
	if cfg.HTML != "" {
		if err := writeOutput(ctx, renderer, buildResult.Graph, render.FormatHTML, cfg.HTML, logger); err != nil {
			return err
		}
	}

	return nil
}

// applyFlagOverrides copies explicitly-set flags over file config values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Output = flagOutput
	}
	if cmd.Flags().Changed("mermaid") {
		cfg.Mermaid = flagMermaid
	}
	if cmd.Flags().Changed("mermaid-mode") {
		cfg.MermaidMode = flagMermaidMode
	}
	if cmd.Flags().Changed("direction") {
		cfg.Direction = flagDirection
	}
	if cmd.Flags().Changed("html") {
		cfg.HTML = flagHTML
	}
	if cmd.Flags().Changed("requirements") {
		cfg.Requirements = flagRequirements
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if cmd.Flags().Changed("include-hidden") {
		cfg.IncludeHidden = flagIncludeHidden
	}
}

// manifestPath resolves the manifest location relative to the project
// root unless an absolute path was given.
func manifestPath(root, manifest string) string {
	if manifest == "" {
		manifest = "requirements.txt"
	}
	if filepath.IsAbs(manifest) {
		return manifest
	}
	return filepath.Join(root, manifest)
}

// writeOutput renders one format and writes it to path.
func writeOutput(ctx context.Context, r *render.Renderer, g *graph.Graph, format render.Format, path string, logger *logging.Logger) error {
	out, err := r.Generate(ctx, g, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Info("wrote output", "format", string(format), "path", path)
	return nil
}
