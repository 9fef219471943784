/*
errors.go - Centralized error types for the core engine

PURPOSE:
  All error types in one place. Callers classify with errors.Is/errors.As;
  the api layer translates each category into an HTTP status.

ERROR CATEGORIES:
  1. Validation errors - caller-supplied data breaks a uniqueness or
     required-field rule. Checked before any write; no partial write occurs.
  2. Referential-integrity errors - a delete is blocked by dependent rows.
     The error enumerates which dependencies blocked it.
  3. Not-found errors - a direct read-by-id found no row. Distinct from a
     zero-value metric: a missing metric target is not an error.
  4. Generation exhaustion - the 000-999 code space yielded no free slot
     within the retry budget.
  5. Migration errors - a schema version transform failed; the store stays
     at the previous version.
  6. Storage errors - underlying read/write failures, always propagated.
*/
package core

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all caller-input failures.
	ErrValidation = errors.New("validation failed")

	// ErrReferentialIntegrity is returned when a delete would orphan
	// dependent rows.
	ErrReferentialIntegrity = errors.New("delete blocked by dependent rows")

	// ErrNotFound is returned by direct lookups that find no row.
	ErrNotFound = errors.New("not found")

	// ErrGenerationExhausted is returned when no free code was found within
	// the retry budget. Fatal for the operation, retryable by the caller.
	ErrGenerationExhausted = errors.New("identifier space exhausted")

	// ErrMigration is returned when a schema version transform fails.
	// The store must not be marked as upgraded.
	ErrMigration = errors.New("migration failed")

	// ErrStorage wraps underlying read/write failures.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field of which collection broke which rule.
type ValidationError struct {
	Collection string
	Field      string
	Rule       string // "required", "unique", "invalid", "immutable"
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s %s: %s", e.Collection, e.Field, e.Rule, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReferentialIntegrityError enumerates the dependencies that blocked a
// delete, with per-dependency row counts.
type ReferentialIntegrityError struct {
	Collection string
	ID         string
	Blockers   []Blocker
}

type Blocker struct {
	Collection string
	Count      int
}

func (e *ReferentialIntegrityError) Error() string {
	parts := make([]string, len(e.Blockers))
	for i, b := range e.Blockers {
		parts[i] = fmt.Sprintf("%d row(s) in %s", b.Count, b.Collection)
	}
	return fmt.Sprintf("cannot delete %s %q: referenced by %s",
		e.Collection, e.ID, strings.Join(parts, ", "))
}

func (e *ReferentialIntegrityError) Unwrap() error { return ErrReferentialIntegrity }

// NotFoundError identifies the missing row.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// GenerationExhaustedError reports how hard the generator tried.
type GenerationExhaustedError struct {
	Prefix   string
	Attempts int
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("no free %q code after %d attempts", e.Prefix, e.Attempts)
}

func (e *GenerationExhaustedError) Unwrap() error { return ErrGenerationExhausted }

// MigrationError identifies the failing version step.
type MigrationError struct {
	Version int
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration to version %d: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error { return ErrMigration }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrReferentialIntegrity)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the operation might succeed if retried later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrGenerationExhausted)
}
