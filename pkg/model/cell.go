// pkg/model/cell.go
package model

import (
	"math"
	"strconv"
)

// Kind tags the value held by a Cell
type Kind uint8

const (
	KindMissing Kind = iota
	KindText
	KindNumber
)

// String returns the kind name used in logs and audit records
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Cell is a single column value in a row: Text, Number or Missing.
// The zero value is Missing.
type Cell struct {
	kind Kind
	text string
	num  float64
}

// Missing returns a missing cell
func Missing() Cell {
	return Cell{}
}

// Text returns a text cell
func Text(s string) Cell {
	return Cell{kind: KindText, text: s}
}

// Number returns a numeric cell. NaN is stored as Missing so that a
// Number cell always holds a comparable value.
func Number(f float64) Cell {
	if math.IsNaN(f) {
		return Missing()
	}
	return Cell{kind: KindNumber, num: f}
}

// Kind returns the tag of the cell
func (c Cell) Kind() Kind {
	return c.kind
}

// IsMissing reports whether the cell holds no value
func (c Cell) IsMissing() bool {
	return c.kind == KindMissing
}

// AsText returns the text value and whether the cell is Text
func (c Cell) AsText() (string, bool) {
	return c.text, c.kind == KindText
}

// AsNumber returns the numeric value and whether the cell is a Number
func (c Cell) AsNumber() (float64, bool) {
	return c.num, c.kind == KindNumber
}

// Equal reports whether two cells hold the same tagged value
func (c Cell) Equal(other Cell) bool {
	if c.kind != other.kind {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == other.text
	case KindNumber:
		return c.num == other.num
	default:
		return true
	}
}

// String serializes the cell the way the writer persists it.
// Missing becomes the empty string.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return strconv.FormatFloat(c.num, 'f', -1, 64)
	default:
		return ""
	}
}
