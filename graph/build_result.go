// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import "fmt"

// FileError represents a failure to process a single file during building.
type FileError struct {
	// FilePath is the path to the file that failed.
	FilePath string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e FileError) Error() string {
	return fmt.Sprintf("file %s: %v", e.FilePath, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e FileError) Unwrap() error {
	return e.Err
}

// BuildStats contains statistics about a build operation.
type BuildStats struct {
	// FilesProcessed is the number of file units successfully processed.
	FilesProcessed int

	// FilesFailed is the number of file units that failed validation.
	// At most one, since validation failures abort the build.
	FilesFailed int

	// NodesCreated is the number of nodes added to the graph.
	NodesCreated int

	// EdgesCreated is the number of edges added to the graph.
	EdgesCreated int

	// ExternalModules is the number of external module nodes created for
	// imports that matched no file unit in the project.
	ExternalModules int

	// CallsResolved is the number of call sites resolved to a declared
	// function, method, or class.
	CallsResolved int

	// CallsUnresolved is the number of call sites that matched nothing
	// and were recorded as unresolved.
	CallsUnresolved int

	// DurationMicro is the total build time in microseconds.
	DurationMicro int64
}

// BuildResult contains the result of a graph build operation.
//
// Malformed file units and duplicate identifiers are input-contract
// violations: the build aborts on the first one, never repairing or
// skipping it. Resolution misses are not errors; they appear only in
// Stats and the graph's unresolved-call list.
type BuildResult struct {
	// Graph is the constructed graph. Frozen on success; may be partial
	// when Incomplete is true.
	Graph *Graph

	// FileErrors identifies the file unit that aborted the build, if
	// any. Files in this list are not represented in the graph.
	FileErrors []FileError

	// Stats contains build statistics.
	Stats BuildStats

	// Incomplete is true if the build stopped before finalizing, either
	// cancelled via context or aborted on an input-contract violation.
	Incomplete bool
}

// HasErrors returns true if any file errors occurred.
func (r *BuildResult) HasErrors() bool {
	return len(r.FileErrors) > 0
}

// Success returns true if the build completed without errors.
func (r *BuildResult) Success() bool {
	return !r.Incomplete && !r.HasErrors()
}
