// Package corpuserr defines the engine's fixed error taxonomy (spec §7).
// Every error the engine can return is one of these six kinds; callers
// use errors.As to recover structured fields rather than string-matching
// messages.
package corpuserr

import (
	"fmt"
	"time"
)

// ParseError reports a malformed query string.
type ParseError struct {
	Pos       int
	Reason    string
	Timestamp time.Time
}

func NewParseError(pos int, reason string) *ParseError {
	return &ParseError{Pos: pos, Reason: reason, Timestamp: time.Now()}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Pos, e.Reason)
}

// IndexOpenError reports a failure opening or validating an index's
// descriptor and backing files.
type IndexOpenError struct {
	Path       string
	Reason     string
	Underlying error
	Timestamp  time.Time
}

func NewIndexOpenError(path, reason string, underlying error) *IndexOpenError {
	return &IndexOpenError{Path: path, Reason: reason, Underlying: underlying, Timestamp: time.Now()}
}

func (e *IndexOpenError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("failed to open index %q: %s: %v", e.Path, e.Reason, e.Underlying)
	}
	return fmt.Sprintf("failed to open index %q: %s", e.Path, e.Reason)
}

func (e *IndexOpenError) Unwrap() error {
	return e.Underlying
}

// MalformedIndex reports a data-invariant violation discovered lazily
// while serving a query (e.g. a posting whose declared length overruns
// its backing buffer).
type MalformedIndex struct {
	Reason    string
	Timestamp time.Time
}

func NewMalformedIndex(reason string) *MalformedIndex {
	return &MalformedIndex{Reason: reason, Timestamp: time.Now()}
}

func (e *MalformedIndex) Error() string {
	return fmt.Sprintf("malformed index: %s", e.Reason)
}

// Unsupported reports a request for a feature the engine deliberately
// does not implement (NOT outside the rewriteable positions, mixed
// AND/OR at one level, degree constraints in the validator).
type Unsupported struct {
	Feature   string
	Timestamp time.Time
}

func NewUnsupported(feature string) *Unsupported {
	return &Unsupported{Feature: feature, Timestamp: time.Now()}
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("unsupported: %s", e.Feature)
}

// Cancelled reports that a query observed its cooperative cancellation
// signal between profiler phases.
type Cancelled struct {
	Phase     string
	Timestamp time.Time
}

func NewCancelled(phase string) *Cancelled {
	return &Cancelled{Phase: phase, Timestamp: time.Now()}
}

func (e *Cancelled) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("cancelled during phase %q", e.Phase)
	}
	return "cancelled"
}

// InvariantFailure reports a data invariant violated at runtime that
// should not occur against a well-formed index.
type InvariantFailure struct {
	Msg       string
	Timestamp time.Time
}

func NewInvariantFailure(msg string) *InvariantFailure {
	return &InvariantFailure{Msg: msg, Timestamp: time.Now()}
}

func (e *InvariantFailure) Error() string {
	return fmt.Sprintf("invariant failure: %s", e.Msg)
}

// MultiError aggregates independent failures (e.g. the per-file close
// errors in corpusindex.Index.Close) into a single error value.
type MultiError struct {
	Errors []error
}

// NewMultiError drops nil entries and returns nil itself if nothing remains.
func NewMultiError(errs []error) error {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error {
	return e.Errors
}
