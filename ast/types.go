// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// SymbolKind identifies what kind of code construct a Symbol represents.
type SymbolKind int

const (
	// SymbolKindUnknown indicates an unrecognized symbol kind.
	SymbolKindUnknown SymbolKind = iota

	// SymbolKindModule represents a source file (one FileUnit node).
	SymbolKindModule

	// SymbolKindFunction represents a top-level function.
	SymbolKindFunction

	// SymbolKindMethod represents a function declared inside a class.
	SymbolKindMethod

	// SymbolKindClass represents a class declaration.
	SymbolKindClass

	// SymbolKindExternal represents an entity outside the analyzed project
	// (an external module label, or an unresolved call sink).
	SymbolKindExternal
)

// symbolKindNames maps SymbolKind values to their string representations.
var symbolKindNames = map[SymbolKind]string{
	SymbolKindUnknown:  "unknown",
	SymbolKindModule:   "module",
	SymbolKindFunction: "function",
	SymbolKindMethod:   "method",
	SymbolKindClass:    "class",
	SymbolKindExternal: "external",
}

// String returns the string representation of the SymbolKind.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON serializes the kind as a string (e.g., "function") rather
// than a number, for readability and forward compatibility.
func (k SymbolKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts both string and numeric kind values.
func (k *SymbolKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = ParseSymbolKind(s)
		return nil
	}
	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("SymbolKind must be string or int: %w", err)
	}
	*k = SymbolKind(i)
	return nil
}

// ParseSymbolKind converts a string to a SymbolKind.
//
// Returns SymbolKindUnknown if the string is not recognized.
func ParseSymbolKind(s string) SymbolKind {
	for kind, name := range symbolKindNames {
		if name == s {
			return kind
		}
	}
	return SymbolKindUnknown
}

// Location represents a position within a source file.
//
// Line numbers are 1-indexed, columns 0-indexed, matching the convention
// used by most editors and LSP.
type Location struct {
	// FilePath is the path to the source file, relative to project root.
	FilePath string `json:"file_path"`

	// Line is the 1-indexed line number.
	Line int `json:"line"`

	// Col is the 0-indexed column number.
	Col int `json:"col"`
}

// String returns a human-readable "path:line:col" representation.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FilePath, l.Line, l.Col)
}

// CallSite records a call expression found inside a function or method body.
//
// Target is the callee name exactly as written in source: a bare name
// ("foo") or a dotted attribute form ("receiver.method"). Targets are not
// resolved at extraction time; resolution happens in the graph builder and
// is always best-effort by name.
type CallSite struct {
	// Target is the callee name as textually written.
	Target string `json:"target"`

	// Location is where the call expression appears.
	Location Location `json:"location"`
}

// IsAttribute reports whether the call target is a dotted attribute form.
func (c CallSite) IsAttribute() bool {
	return strings.Contains(c.Target, ".")
}

// BareName returns the final segment of the call target.
//
// For "self.helper" it returns "helper"; for "foo" it returns "foo".
func (c CallSite) BareName() string {
	if idx := strings.LastIndex(c.Target, "."); idx >= 0 {
		return c.Target[idx+1:]
	}
	return c.Target
}

// Symbol represents a declared code entity extracted from one source file.
//
// Functions and methods share this shape; a method carries ClassName as a
// back-reference to its owning class (lookup only, not ownership). Classes
// carry their methods in Children, in source order.
type Symbol struct {
	// ID is the globally unique identifier.
	// Format: "path::name" for functions and classes,
	// "path::Class.method" for methods. See GenerateID / GenerateMethodID.
	ID string `json:"id"`

	// Name is the identifier as it appears in source code.
	Name string `json:"name"`

	// Kind indicates what this symbol is (function, method, class).
	Kind SymbolKind `json:"kind"`

	// FilePath is the declaring file, relative to project root.
	FilePath string `json:"file_path"`

	// Line is the 1-indexed line where the declaration starts.
	Line int `json:"line"`

	// Params lists parameter names in declaration order.
	// For Python methods this includes "self"/"cls", as the original
	// source writes them.
	Params []string `json:"params,omitempty"`

	// DocComment is the docstring, if present.
	DocComment string `json:"doc_comment,omitempty"`

	// ClassName is the owning class name for methods. Empty otherwise.
	ClassName string `json:"class_name,omitempty"`

	// Calls lists call sites found in the body, in source order.
	// Empty for classes.
	Calls []CallSite `json:"calls,omitempty"`

	// Children contains nested symbols (methods of a class), in source order.
	Children []*Symbol `json:"children,omitempty"`
}

// Location returns the symbol's declaration location.
func (s *Symbol) Location() Location {
	return Location{FilePath: s.FilePath, Line: s.Line}
}

// QualifiedName returns "Class.method" for methods and the plain name
// otherwise.
func (s *Symbol) QualifiedName() string {
	if s.ClassName != "" {
		return s.ClassName + "." + s.Name
	}
	return s.Name
}

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks that the Symbol satisfies the input contract.
//
// Returns nil if valid, or a ValidationError describing the first invalid
// field. Children are validated recursively.
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return ValidationError{Field: "Name", Message: "must not be empty"}
	}
	if s.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if strings.Contains(s.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}
	if s.Line < 1 {
		return ValidationError{Field: "Line", Message: "must be >= 1 (1-indexed)"}
	}
	if s.Kind == SymbolKindMethod && s.ClassName == "" {
		return ValidationError{Field: "ClassName", Message: "must be set for methods"}
	}
	for i, child := range s.Children {
		if child == nil {
			continue
		}
		if err := child.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Children[%d]", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}

// Import represents one import statement in a FileUnit.
//
// Whether the imported module is internal to the analyzed project is not
// known at extraction time; the graph builder classifies imports after all
// file units have been registered.
type Import struct {
	// Path is the imported module path as written.
	// Example: "os.path", "requests", "mypkg.utils".
	Path string `json:"path"`

	// Alias is the local alias, if the import is aliased.
	Alias string `json:"alias,omitempty"`

	// IsRelative indicates a relative import ("from . import x").
	IsRelative bool `json:"is_relative,omitempty"`

	// Location is where the import statement appears.
	Location Location `json:"location"`
}

// Module returns the top-level module name referenced by the import.
//
// For "os.path" this is "os"; for "requests" it is "requests".
func (i Import) Module() string {
	if idx := strings.Index(i.Path, "."); idx >= 0 {
		return i.Path[:idx]
	}
	return i.Path
}

// ParseResult is the Symbol Record for one analyzed source file: the
// FileUnit the graph builder consumes.
//
// Symbols are in source order (top to bottom); methods live in the
// Children of their class symbol. ParseResults are immutable after
// creation and owned exclusively by the graph builder during ingestion.
type ParseResult struct {
	// FilePath is the path of the parsed file, relative to project root.
	// This is the stable identifier of the file unit.
	FilePath string `json:"file_path"`

	// Language is the source language of the file. Example: "python".
	Language string `json:"language"`

	// Symbols contains the top-level functions and classes, in source order.
	Symbols []*Symbol `json:"symbols"`

	// Imports lists import statements, in source order.
	Imports []Import `json:"imports"`

	// Errors contains non-fatal parse errors. The parse may still have
	// produced partial results.
	Errors []string `json:"errors,omitempty"`
}

// ModuleName derives the importable module name for the file.
//
// "pkg/utils.py" becomes "utils"; a package __init__ file maps to its
// directory name ("pkg/__init__.py" -> "pkg").
func (r *ParseResult) ModuleName() string {
	base := path.Base(r.FilePath)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "__init__" {
		dir := path.Dir(r.FilePath)
		if dir == "." || dir == "/" {
			return ""
		}
		return path.Base(dir)
	}
	return stem
}

// HasErrors returns true if the parse produced any non-fatal errors.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Validate checks that the ParseResult satisfies the input contract.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return ValidationError{Field: "FilePath", Message: "must not be empty"}
	}
	if strings.Contains(r.FilePath, "..") {
		return ValidationError{Field: "FilePath", Message: "must not contain path traversal (..)"}
	}
	for i, sym := range r.Symbols {
		if sym == nil {
			continue
		}
		if err := sym.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("Symbols[%d]", i),
				Message: err.Error(),
			}
		}
	}
	return nil
}

// GenerateID creates the unique identifier for a top-level function or
// class: "file_path::name".
//
// Identifiers never collide across files because the declaring path is
// part of the identifier.
func GenerateID(filePath, name string) string {
	return filePath + "::" + name
}

// GenerateMethodID creates the unique identifier for a method:
// "file_path::Class.method".
func GenerateMethodID(filePath, className, method string) string {
	return filePath + "::" + className + "." + method
}

// GenerateModuleID creates the unique identifier for a file unit node.
// The file path alone is unique within a project.
func GenerateModuleID(filePath string) string {
	return filePath
}
