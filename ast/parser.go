// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ast defines the Symbol Record model and the parsing contract.
//
// A Symbol Record (ParseResult) is the normalized per-file extraction of
// declared functions, classes, methods, call sites, and imports. Parsers
// produce Symbol Records; the graph package consumes them. The graph
// builder never touches source syntax itself, so additional language
// parsers can plug in behind the Parser interface without changing it.
//
// # Ownership Model
//
// ParseResults and the Symbols they contain are immutable once returned
// from Parse. Downstream consumers (graph builder, renderers) hold
// pointers into them and MUST NOT mutate them.
package ast

import (
	"context"
	"sort"
	"sync"
)

// Parser defines the contract for language-specific symbol extraction.
//
// Description:
//
//	Parser implementations extract structured symbol information from
//	source code. Each implementation handles one language but produces
//	output in the common ParseResult format defined in types.go.
//
// Inputs:
//
//	ctx      - Context for cancellation. Implementations should check
//	           ctx.Done() during long-running operations.
//	content  - Raw source bytes. Must be valid UTF-8.
//	filePath - Path of the file being parsed, relative to project root.
//	           Used for error reporting and identifier generation.
//
// Outputs:
//
//	*ParseResult - Extracted symbols and imports. May contain partial
//	               results even when syntax errors occurred (reported in
//	               ParseResult.Errors).
//	error        - Non-nil only for complete parse failures.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use; the scanner calls
//	Parse from multiple goroutines.
type Parser interface {
	// Parse extracts symbols and imports from source code.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical lowercase language name ("python").
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot (".py").
	Extensions() []string
}

// ParserRegistry maps languages and file extensions to parsers.
//
// Thread Safety: ParserRegistry is safe for concurrent use.
type ParserRegistry struct {
	mu          sync.RWMutex
	byLanguage  map[string]Parser
	byExtension map[string]Parser
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		byLanguage:  make(map[string]Parser),
		byExtension: make(map[string]Parser),
	}
}

// DefaultRegistry returns a registry with all built-in parsers registered.
func DefaultRegistry() *ParserRegistry {
	r := NewParserRegistry()
	r.Register(NewPythonParser())
	return r
}

// Register adds a parser for its language and all of its extensions.
// A later registration for the same language or extension wins.
func (r *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byLanguage[parser.Language()] = parser
	for _, ext := range parser.Extensions() {
		r.byExtension[ext] = parser
	}
}

// GetByLanguage returns the parser for a language name.
func (r *ParserRegistry) GetByLanguage(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byLanguage[language]
	return p, ok
}

// GetByExtension returns the parser for a file extension (with leading dot).
func (r *ParserRegistry) GetByExtension(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExtension[ext]
	return p, ok
}

// Extensions returns all registered extensions, sorted.
func (r *ParserRegistry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
