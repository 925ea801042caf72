package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/David-Botos/credit-cleaning/pkg/model"
)

var (
	errNotText      = errors.New("cell is not text")
	errTokenCount   = errors.New("expected 4 tokens")
	errNoSeparator  = errors.New("missing '_' separator")
	errUnknownMonth = errors.New("unknown month name")
	errSSNShape     = errors.New("expected XXX-XX-XXXX")
	errNotFinite    = errors.New("value is not finite")
)

var months = map[string]int{
	"January": 1, "February": 2, "March": 3, "April": 4,
	"May": 5, "June": 6, "July": 7, "August": 8,
	"September": 9, "October": 10, "November": 11, "December": 12,
}

var ssnPattern = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)

// loanConjunction joins loan types in the feed ("Auto Loan, and Student Loan")
const loanConjunction = "and"

// ParseDuration converts "<years> <unit> <months> <unit>" to a month count
func ParseDuration(c model.Cell) Result {
	s, ok := c.AsText()
	if !ok {
		return passThrough(c)
	}

	parts := strings.Fields(s)
	if len(parts) != 4 {
		return Failed(s, fmt.Errorf("%w, got %d", errTokenCount, len(parts)))
	}

	years, err := strconv.Atoi(parts[0])
	if err != nil {
		return Failed(s, err)
	}
	monthsPart, err := strconv.Atoi(parts[2])
	if err != nil {
		return Failed(s, err)
	}

	return Ok(model.Number(float64(years*12 + monthsPart)))
}

// DecodeHex interprets a base-16 string (optionally 0x-prefixed) as an integer
func DecodeHex(c model.Cell) Result {
	s, ok := c.AsText()
	if !ok {
		return passThrough(c)
	}

	v, err := decodeHexDigits(s)
	if err != nil {
		return Failed(s, err)
	}
	return Ok(model.Number(float64(v)))
}

// DecodeCompositeHex decodes the hex segment of "<prefix>_<hexpart>"
func DecodeCompositeHex(c model.Cell) Result {
	s, ok := c.AsText()
	if !ok {
		return passThrough(c)
	}

	_, hexPart, found := strings.Cut(s, "_")
	if !found {
		return Failed(s, errNoSeparator)
	}

	v, err := decodeHexDigits(hexPart)
	if err != nil {
		return Failed(s, err)
	}
	return Ok(model.Number(float64(v)))
}

func decodeHexDigits(s string) (uint64, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(digits, 16, 64)
}

// MapMonth maps a canonical English month name to 1..12, case-sensitively
func MapMonth(c model.Cell) Result {
	if f, ok := c.AsNumber(); ok && f >= 1 && f <= 12 && f == math.Trunc(f) {
		return Ok(c)
	}
	s, ok := c.AsText()
	if !ok {
		if c.IsMissing() {
			return Ok(c)
		}
		return Failed(c.String(), errUnknownMonth)
	}

	m, found := months[s]
	if !found {
		return Failed(s, errUnknownMonth)
	}
	return Ok(model.Number(float64(m)))
}

// NormalizeLoanType lowercases the loan list and drops the conjunction so
// consumers can split on the remaining comma delimiter
func NormalizeLoanType(c model.Cell) Result {
	s, ok := c.AsText()
	if !ok {
		if c.IsMissing() {
			return Ok(c)
		}
		return Failed(c.String(), errNotText)
	}
	return Ok(model.Text(strings.ToLower(strings.ReplaceAll(s, loanConjunction, ""))))
}

// SSNPolicy selects how strictly SSN values are validated
type SSNPolicy int

const (
	// SSNLoose accepts any trimmed string
	SSNLoose SSNPolicy = iota
	// SSNStrict also requires the XXX-XX-XXXX shape
	SSNStrict
)

// SSNNormalizer returns the SSN parser for a policy
func SSNNormalizer(policy SSNPolicy) Func {
	return func(c model.Cell) Result {
		s, ok := c.AsText()
		if !ok {
			if c.IsMissing() {
				return Ok(c)
			}
			return Failed(c.String(), errNotText)
		}

		s = strings.TrimSpace(s)
		if policy == SSNStrict && !ssnPattern.MatchString(s) {
			return Failed(s, errSSNShape)
		}
		return Ok(model.Text(s))
	}
}

// NormalizeSSN trims an SSN using the loose policy
func NormalizeSSN(c model.Cell) Result {
	return SSNNormalizer(SSNLoose)(c)
}

// ParseNumber converts text to a Number
func ParseNumber(c model.Cell) Result {
	s, ok := c.AsText()
	if !ok {
		return passThrough(c)
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return Failed(s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Failed(s, errNotFinite)
	}
	return Ok(model.Number(f))
}

// passThrough keeps Missing and already-typed Number cells as they are
func passThrough(c model.Cell) Result {
	return Ok(c)
}
