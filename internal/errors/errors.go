// Package errors defines the analysis error taxonomy. No failure mode here
// is fatal to a run: every error scopes to the smallest affected output
// cell or row, and countable exclusions are tracked so reports can state
// how many records each metric dropped.
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Code identifies a failure mode in the analysis taxonomy.
type Code string

const (
	// CodeMissingReference marks a foreign key with no match in a lookup
	// table. Resolved by a documented fallback label, never a hard failure.
	CodeMissingReference Code = "MISSING_REFERENCE"
	// CodeIncompleteRecord marks a record lacking fields required by one
	// derived metric. The record leaves that metric's population only.
	CodeIncompleteRecord Code = "INCOMPLETE_RECORD"
	// CodeDegenerateDenominator marks a ratio whose denominator is zero.
	// The affected cell is null, guarded explicitly.
	CodeDegenerateDenominator Code = "DEGENERATE_DENOMINATOR"
	// CodeInsufficientSample marks an entity below the minimum observation
	// count for a tiered comparison. Flagged separately, not dropped.
	CodeInsufficientSample Code = "INSUFFICIENT_SAMPLE"
)

// AnalysisError is a structured engine error carrying the taxonomy code and
// the entity it scopes to.
type AnalysisError struct {
	Code    Code
	Entity  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// New creates an AnalysisError for the given code and entity.
func New(code Code, entity, message string) *AnalysisError {
	return &AnalysisError{Code: code, Entity: entity, Message: message}
}

// Wrap creates an AnalysisError wrapping an underlying cause.
func Wrap(code Code, entity, message string, err error) *AnalysisError {
	return &AnalysisError{Code: code, Entity: entity, Message: message, Err: err}
}

// MissingReference builds a MISSING_REFERENCE error.
func MissingReference(entity, message string) *AnalysisError {
	return New(CodeMissingReference, entity, message)
}

// IncompleteRecord builds an INCOMPLETE_RECORD error.
func IncompleteRecord(entity, message string) *AnalysisError {
	return New(CodeIncompleteRecord, entity, message)
}

// DegenerateDenominator builds a DEGENERATE_DENOMINATOR error.
func DegenerateDenominator(entity, message string) *AnalysisError {
	return New(CodeDegenerateDenominator, entity, message)
}

// InsufficientSample builds an INSUFFICIENT_SAMPLE error.
func InsufficientSample(entity, message string) *AnalysisError {
	return New(CodeInsufficientSample, entity, message)
}

// HasCode reports whether err is (or wraps) an AnalysisError with the given
// code.
func HasCode(err error, code Code) bool {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// ExclusionCounter counts records excluded from a metric's population, per
// taxonomy code. Each stage owns its own counter; stage outputs are
// disjoint so no locking is needed.
type ExclusionCounter struct {
	counts map[Code]int
}

// NewExclusionCounter creates an empty counter.
func NewExclusionCounter() *ExclusionCounter {
	return &ExclusionCounter{counts: make(map[Code]int)}
}

// Add records n exclusions under the given code.
func (c *ExclusionCounter) Add(code Code, n int) {
	c.counts[code] += n
}

// Count returns the exclusions recorded for a code.
func (c *ExclusionCounter) Count(code Code) int {
	return c.counts[code]
}

// Total returns the total exclusions across all codes.
func (c *ExclusionCounter) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Codes returns the codes with at least one exclusion, sorted for stable
// reporting.
func (c *ExclusionCounter) Codes() []Code {
	codes := make([]Code, 0, len(c.counts))
	for code, n := range c.counts {
		if n > 0 {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
