// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMaxFileSize is the default maximum file size accepted by
	// parsers (10MB). Larger files are rejected with ErrFileTooLarge.
	DefaultMaxFileSize = 10 * 1024 * 1024

	// MaxCallSitesPerSymbol caps the number of call sites extracted from a
	// single function body.
	MaxCallSitesPerSymbol = 1000

	// MaxCallExpressionDepth caps traversal depth inside a function body.
	MaxCallExpressionDepth = 50
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
//
// Example:
//
//	parser := NewPythonParser(WithMaxFileSize(5 * 1024 * 1024)) // 5MB limit
func WithMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser implements the Parser interface for Python source code.
//
// Description:
//
//	PythonParser uses tree-sitter to extract the Symbol Record of a Python
//	file: top-level functions, classes with their methods, parameter names,
//	docstrings, call sites, and imports. Each Parse call creates its own
//	tree-sitter parser instance internally.
//
// Thread Safety:
//
//	PythonParser instances are safe for concurrent use. Multiple goroutines
//	may call Parse simultaneously on the same instance.
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "python".
func (p *PythonParser) Language() string {
	return "python"
}

// Extensions returns the file extensions handled by this parser.
func (p *PythonParser) Extensions() []string {
	return []string{".py"}
}

// Parse extracts symbols and imports from Python source code.
//
// Description:
//
//	Parses the file with tree-sitter and walks the module-level statements.
//	Top-level function definitions become SymbolKindFunction symbols, class
//	definitions become SymbolKindClass symbols with their methods attached
//	as Children, and import statements are collected into Imports. Syntax
//	errors do not abort extraction; they are recorded in ParseResult.Errors
//	and whatever parsed cleanly is still returned.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - content: Raw source bytes. Must be valid UTF-8 and non-nil.
//   - filePath: Path of the file relative to the project root. Becomes the
//     FileUnit identifier and the prefix of every symbol ID.
//
// Outputs:
//   - *ParseResult: The Symbol Record for the file.
//   - error: ErrInvalidContent, ErrFileTooLarge, or a wrapped ErrParseFailed
//     when tree-sitter cannot produce a tree at all.
//
// Thread Safety: Safe for concurrent use.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "PythonParser.Parse")
	defer span.End()
	span.SetAttributes(
		attribute.String("file", filePath),
		attribute.Int("size_bytes", len(content)),
	)

	if content == nil {
		return nil, &ParseError{FilePath: filePath, Err: ErrInvalidContent}
	}
	if int64(len(content)) > p.maxFileSize {
		return nil, &ParseError{
			FilePath: filePath,
			Err:      fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, len(content), p.maxFileSize),
		}
	}
	if !utf8.Valid(content) {
		return nil, &ParseError{
			FilePath: filePath,
			Err:      fmt.Errorf("%w: not valid UTF-8", ErrInvalidContent),
		}
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, p.Language(), time.Since(start), true)
		return nil, &ParseError{
			FilePath: filePath,
			Err:      fmt.Errorf("%w: %v", ErrParseFailed, err),
		}
	}
	defer tree.Close()

	result := &ParseResult{
		FilePath: filePath,
		Language: p.Language(),
		Symbols:  make([]*Symbol, 0, 8),
		Imports:  make([]Import, 0, 8),
	}

	root := tree.RootNode()
	if root.HasError() {
		result.Errors = append(result.Errors, "syntax errors present; extraction is partial")
		slog.Debug("python parse produced syntax errors",
			slog.String("file", filePath),
		)
	}

	p.walkModule(ctx, root, content, filePath, result)

	recordParseMetrics(ctx, p.Language(), time.Since(start), false)
	span.SetAttributes(
		attribute.Int("symbols", len(result.Symbols)),
		attribute.Int("imports", len(result.Imports)),
	)

	return result, nil
}

// walkModule processes the module-level statements of the file.
func (p *PythonParser) walkModule(ctx context.Context, root *sitter.Node, content []byte, filePath string, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		if ctx.Err() != nil {
			return
		}
		child := root.Child(i)
		if child == nil {
			continue
		}

		switch child.Type() {
		case "import_statement", "import_from_statement":
			result.Imports = append(result.Imports, p.extractImports(child, content, filePath)...)

		case "function_definition":
			if sym := p.processFunction(ctx, child, content, filePath, ""); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}

		case "class_definition":
			if sym := p.processClass(ctx, child, content, filePath); sym != nil {
				result.Symbols = append(result.Symbols, sym)
			}

		case "decorated_definition":
			// Unwrap the decorated definition and process the inner node.
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				switch inner.Type() {
				case "function_definition":
					if sym := p.processFunction(ctx, inner, content, filePath, ""); sym != nil {
						result.Symbols = append(result.Symbols, sym)
					}
				case "class_definition":
					if sym := p.processClass(ctx, inner, content, filePath); sym != nil {
						result.Symbols = append(result.Symbols, sym)
					}
				}
			}
		}
	}
}

// extractImports extracts Import records from one import statement node.
//
// Handles the forms:
//
//	import os
//	import os, sys
//	import numpy as np
//	from pkg import a, b
//	from pkg import a as b
//	from . import sibling
//	from pkg import *
func (p *PythonParser) extractImports(node *sitter.Node, content []byte, filePath string) []Import {
	loc := Location{
		FilePath: filePath,
		Line:     int(node.StartPoint().Row) + 1,
		Col:      int(node.StartPoint().Column),
	}

	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}

	imports := make([]Import, 0, 2)

	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			switch child.Type() {
			case "dotted_name":
				imports = append(imports, Import{Path: text(child), Location: loc})
			case "aliased_import":
				imp := Import{Location: loc}
				for j := 0; j < int(child.ChildCount()); j++ {
					gc := child.Child(j)
					switch gc.Type() {
					case "dotted_name":
						imp.Path = text(gc)
					case "identifier":
						imp.Alias = text(gc)
					}
				}
				if imp.Path != "" {
					imports = append(imports, imp)
				}
			}
		}

	case "import_from_statement":
		// The first dotted_name (or relative_import) is the source module;
		// subsequent names are the imported members. Only the module matters
		// for dependency classification, so one Import per statement.
		moduleNode := node.ChildByFieldName("module_name")
		if moduleNode == nil {
			for i := 0; i < int(node.ChildCount()); i++ {
				child := node.Child(i)
				if child.Type() == "dotted_name" || child.Type() == "relative_import" {
					moduleNode = child
					break
				}
			}
		}
		if moduleNode == nil {
			return imports
		}

		imp := Import{Location: loc}
		if moduleNode.Type() == "relative_import" {
			imp.IsRelative = true
			imp.Path = strings.TrimLeft(text(moduleNode), ".")
		} else {
			imp.Path = text(moduleNode)
		}
		imports = append(imports, imp)
	}

	return imports
}

// processFunction extracts a function or method symbol.
//
// className is non-empty when the function is a class member; the symbol
// then carries SymbolKindMethod and a method-qualified ID.
func (p *PythonParser) processFunction(ctx context.Context, node *sitter.Node, content []byte, filePath, className string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if name == "" {
		return nil
	}

	sym := &Symbol{
		Name:      name,
		Kind:      SymbolKindFunction,
		FilePath:  filePath,
		Line:      int(node.StartPoint().Row) + 1,
		ClassName: className,
	}
	if className != "" {
		sym.Kind = SymbolKindMethod
		sym.ID = GenerateMethodID(filePath, className, name)
	} else {
		sym.ID = GenerateID(filePath, name)
	}

	if paramsNode := node.ChildByFieldName("parameters"); paramsNode != nil {
		sym.Params = p.extractParams(paramsNode, content)
	}

	if body := node.ChildByFieldName("body"); body != nil {
		sym.DocComment = p.extractDocstring(body, content)
		sym.Calls = p.extractCallSites(ctx, body, content, filePath)
	}

	return sym
}

// processClass extracts a class symbol with its methods as Children.
func (p *PythonParser) processClass(ctx context.Context, node *sitter.Node, content []byte, filePath string) *Symbol {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := string(content[nameNode.StartByte():nameNode.EndByte()])
	if name == "" {
		return nil
	}

	sym := &Symbol{
		ID:       GenerateID(filePath, name),
		Name:     name,
		Kind:     SymbolKindClass,
		FilePath: filePath,
		Line:     int(node.StartPoint().Row) + 1,
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return sym
	}
	sym.DocComment = p.extractDocstring(body, content)

	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			if method := p.processFunction(ctx, child, content, filePath, name); method != nil {
				sym.Children = append(sym.Children, method)
			}
		case "decorated_definition":
			for j := 0; j < int(child.ChildCount()); j++ {
				inner := child.Child(j)
				if inner.Type() == "function_definition" {
					if method := p.processFunction(ctx, inner, content, filePath, name); method != nil {
						sym.Children = append(sym.Children, method)
					}
				}
			}
		}
	}

	return sym
}

// extractParams extracts parameter names from a "parameters" node.
//
// Typed, defaulted, and splat parameters all reduce to their identifier;
// "*args" and "**kwargs" keep their prefix, matching how the declaration
// reads in source.
func (p *PythonParser) extractParams(paramsNode *sitter.Node, content []byte) []string {
	text := func(n *sitter.Node) string {
		return string(content[n.StartByte():n.EndByte()])
	}

	firstIdentifier := func(n *sitter.Node) string {
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c.Type() == "identifier" {
				return text(c)
			}
		}
		return ""
	}

	params := make([]string, 0, 4)
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		child := paramsNode.Child(i)
		switch child.Type() {
		case "identifier":
			params = append(params, text(child))
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			if name := firstIdentifier(child); name != "" {
				params = append(params, name)
			}
		case "list_splat_pattern":
			if name := firstIdentifier(child); name != "" {
				params = append(params, "*"+name)
			}
		case "dictionary_splat_pattern":
			if name := firstIdentifier(child); name != "" {
				params = append(params, "**"+name)
			}
		}
	}
	return params
}

// extractDocstring extracts the docstring from a block node, if the first
// statement is a string expression.
func (p *PythonParser) extractDocstring(block *sitter.Node, content []byte) string {
	if block.ChildCount() == 0 {
		return ""
	}
	first := block.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	strNode := first.Child(0)
	if strNode.Type() != "string" {
		return ""
	}
	raw := string(content[strNode.StartByte():strNode.EndByte()])
	return strings.TrimSpace(strings.Trim(raw, `"'`))
}

// extractCallSites extracts all call expressions from a function body.
//
// Description:
//
//	Iteratively traverses the body looking for "call" nodes. Each call
//	yields a CallSite whose Target is the callee name as written: a bare
//	identifier ("helper") or a dotted attribute chain ("self.helper",
//	"os.path.join"). Targets are not resolved here.
//
// Limitations:
//   - Chained calls like f().g() yield only the parts whose receiver chain
//     is made of plain identifiers.
//   - Capped at MaxCallSitesPerSymbol calls and MaxCallExpressionDepth
//     nesting.
func (p *PythonParser) extractCallSites(ctx context.Context, bodyNode *sitter.Node, content []byte, filePath string) []CallSite {
	if bodyNode == nil {
		return nil
	}

	calls := make([]CallSite, 0, 8)

	type stackEntry struct {
		node  *sitter.Node
		depth int
	}
	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: bodyNode})

	nodeCount := 0
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := entry.node
		if node == nil {
			continue
		}
		if entry.depth > MaxCallExpressionDepth {
			continue
		}

		nodeCount++
		if nodeCount%100 == 0 && ctx.Err() != nil {
			return calls
		}
		if len(calls) >= MaxCallSitesPerSymbol {
			slog.Warn("max call sites per symbol reached",
				slog.String("file", filePath),
				slog.Int("limit", MaxCallSitesPerSymbol),
			)
			return calls
		}

		if node.Type() == "call" {
			if call := p.extractSingleCallSite(node, content, filePath); call != nil {
				calls = append(calls, *call)
			}
		}

		// Reverse order keeps extraction left to right, so Calls stays in
		// source order.
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, stackEntry{node: child, depth: entry.depth + 1})
			}
		}
	}

	return calls
}

// extractSingleCallSite extracts the target name of one "call" node.
//
// Returns nil when the callee is not expressible as a dotted name (for
// example a subscript or the result of another call).
func (p *PythonParser) extractSingleCallSite(node *sitter.Node, content []byte, filePath string) *CallSite {
	funcNode := node.ChildByFieldName("function")
	if funcNode == nil && node.ChildCount() > 0 {
		funcNode = node.Child(0)
	}
	if funcNode == nil {
		return nil
	}

	target, ok := dottedName(funcNode, content)
	if !ok || target == "" {
		return nil
	}

	return &CallSite{
		Target: target,
		Location: Location{
			FilePath: filePath,
			Line:     int(node.StartPoint().Row) + 1,
			Col:      int(node.StartPoint().Column),
		},
	}
}

// dottedName reconstructs the dotted name of a callee expression.
//
// Only identifier and attribute chains qualify; anything else in the chain
// (a call, a subscript) makes the name unexpressible and returns ok=false.
func dottedName(node *sitter.Node, content []byte) (string, bool) {
	switch node.Type() {
	case "identifier":
		return string(content[node.StartByte():node.EndByte()]), true
	case "attribute":
		objNode := node.ChildByFieldName("object")
		attrNode := node.ChildByFieldName("attribute")
		if objNode == nil || attrNode == nil {
			return "", false
		}
		prefix, ok := dottedName(objNode, content)
		if !ok {
			return "", false
		}
		attr := string(content[attrNode.StartByte():attrNode.EndByte()])
		return prefix + "." + attr, true
	default:
		return "", false
	}
}

// Compile-time interface compliance check.
var _ Parser = (*PythonParser)(nil)
