// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph builds the unified project structure graph.
//
// Nodes are file units, functions, methods, classes, and external modules;
// edges represent declarations, imports, and calls. Call targets are
// resolved best-effort by name; misses are recorded as unresolved calls,
// never reported as errors.
//
// # Ownership Model
//
// The graph stores pointers to symbols but does NOT own them:
//   - Symbols MUST NOT be mutated after being added via AddNode()
//   - The graph does NOT copy symbols
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for
// single-writer access during build, then read-only after Freeze(). After
// Freeze(), the graph can be safely read from multiple goroutines.
//
// # Lifecycle
//
//  1. Create with NewGraph(projectRoot)
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to finalize
//  4. Query with GetNode(), Nodes(), EdgesByType(), etc.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called, the graph becomes read-only.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge references a non-existent
	// node. Both endpoints must exist before an edge can be created.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node with an ID that
	// already exists. Duplicate identifiers violate the input contract,
	// so the builder treats this as fatal rather than recoverable.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrInvalidNode is returned when attempting to add a nil symbol or a
	// symbol that fails validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrBuildCancelled is returned when a build is cancelled via context.
	ErrBuildCancelled = errors.New("build cancelled")
)
