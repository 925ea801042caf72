// Package parser holds the column-local field parsers. Each parser is a pure
// function from a cell to a Result; failures stay inspectable until a stage
// converts them to Missing.
package parser

import (
	"github.com/David-Botos/credit-cleaning/pkg/model"
)

// Result is the outcome of parsing a single cell
type Result struct {
	cell model.Cell
	err  error
}

// Func is the signature shared by all field parsers
type Func func(model.Cell) Result

// Ok wraps a successfully parsed cell
func Ok(c model.Cell) Result {
	return Result{cell: c}
}

// Failed wraps a parse failure of raw
func Failed(raw string, err error) Result {
	return Result{err: model.NewParseError(raw, err)}
}

// Cell returns the parsed cell, or Missing when parsing failed
func (r Result) Cell() model.Cell {
	if r.err != nil {
		return model.Missing()
	}
	return r.cell
}

// Err returns the parse failure, if any
func (r Result) Err() error {
	return r.err
}

// OK reports whether parsing succeeded
func (r Result) OK() bool {
	return r.err == nil
}
