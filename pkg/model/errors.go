// pkg/model/errors.go
package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParseFailure marks a cell a field parser could not interpret
	ErrParseFailure = errors.New("parse failure")
	// ErrSchemaMismatch marks a dataset missing a required column
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// ParseError describes a failed parse of one cell
type ParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

// NewParseError wraps err as a parse failure of value
func NewParseError(value string, err error) *ParseError {
	return &ParseError{Row: -1, Value: value, Err: err}
}

// At returns a copy of the error located at column/row
func (e *ParseError) At(column string, row int) *ParseError {
	out := *e
	out.Column = column
	out.Row = row
	return &out
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("parse failure")
	if e.Column != "" {
		sb.WriteString(fmt.Sprintf(" in column %s", e.Column))
	}
	if e.Row >= 0 {
		sb.WriteString(fmt.Sprintf(" at row %d", e.Row))
	}
	sb.WriteString(fmt.Sprintf(" for %q", e.Value))
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the sentinel and the underlying cause
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParseFailure}
	}
	return []error{ErrParseFailure, e.Err}
}

// SchemaError reports the required columns a dataset lacks
type SchemaError struct {
	Schema  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: missing required columns: %s", e.Schema, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}
