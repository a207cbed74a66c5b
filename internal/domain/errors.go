package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotInitialized is returned when Write is called on a writer that has not
// been initialized, or after it completed
var ErrNotInitialized = errors.New("batch writer is not initialized")

// InitializationError means writer resources could not be allocated.
// It aborts a load before any writes occur.
type InitializationError struct {
	Cause error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("failed to initialize batch writer: %v", e.Cause)
}

func (e *InitializationError) Unwrap() error {
	return e.Cause
}

// WriteFailure means one document failed to persist
type WriteFailure struct {
	URI   string
	Cause error
}

func (e *WriteFailure) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.URI, e.Cause)
}

func (e *WriteFailure) Unwrap() error {
	return e.Cause
}

// WriteErrors aggregates the failures collected by a pooled write job
type WriteErrors []*WriteFailure

func (e WriteErrors) Error() string {
	uris := make([]string, 0, len(e))
	for _, f := range e {
		uris = append(uris, f.URI)
	}
	return fmt.Sprintf("%d write(s) failed: %s", len(e), strings.Join(uris, ", "))
}

// ValidationTransactionFailure means the atomic validated-insert call failed.
// The entire validated subset is rolled back, so the error names every
// document that was part of the call. The remote cause message is attached
// verbatim, never parsed locally.
type ValidationTransactionFailure struct {
	URIs  []string
	Cause error
}

func (e *ValidationTransactionFailure) Error() string {
	return fmt.Sprintf("unable to load and validate templates %s; cause: %v",
		strings.Join(e.URIs, ", "), e.Cause)
}

func (e *ValidationTransactionFailure) Unwrap() error {
	return e.Cause
}
