// Copyright (C) 2025 Brock Webb
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"errors"
	"fmt"
)

// Sentinel errors for common parse failure conditions.
//
// These errors can be checked with errors.Is() to determine the category
// of failure without inspecting error messages.
var (
	// ErrUnsupportedLanguage indicates that no parser is registered for the
	// requested language or file extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed indicates that parsing failed completely and no useful
	// result could be produced. Partial failures are reported in
	// ParseResult.Errors instead, alongside the extracted symbols.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent indicates the provided content cannot be processed
	// (nil slice, non-UTF-8 encoding, binary content).
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge indicates the file exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)

// ParseError wraps an underlying parse failure with the file it occurred in.
//
// Example:
//
//	var parseErr *ParseError
//	if errors.As(err, &parseErr) {
//	    fmt.Printf("error in %s: %v\n", parseErr.FilePath, parseErr.Err)
//	}
type ParseError struct {
	// FilePath is the file being parsed when the error occurred.
	FilePath string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.FilePath, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}
