package celer

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the compiler packages.
var (
	// ErrMissingQualifier is returned when an UPDATE or DELETE is compiled
	// without a restricting qualifier. An unqualified mutation would touch
	// every row, so compilation fails fast instead.
	ErrMissingQualifier = errors.New("celer: missing qualifier for mutation")

	// ErrUnresolvedPath is the target of PathError for use with errors.Is.
	ErrUnresolvedPath = errors.New("celer: unresolved relationship path")
)

// PathError reports a qualifier or sort key that references a relationship
// not present on the entity, or whose destination entity is unknown. It is
// a compile-time error, detected before any SQL is produced.
type PathError struct {
	Entity string // entity the path was resolved against
	Key    string // full dotted key, e.g. "address.city"
	Name   string // the segment that failed to resolve
}

// Error returns the error string.
func (e *PathError) Error() string {
	return fmt.Sprintf("celer: entity %s has no attribute or relationship %q in key %q", e.Entity, e.Name, e.Key)
}

// Is reports whether the target matches ErrUnresolvedPath.
func (e *PathError) Is(err error) bool {
	return err == ErrUnresolvedPath
}

// IsUnresolvedPath reports whether the error stems from an unresolvable
// qualifier or sort key path.
func IsUnresolvedPath(err error) bool {
	if err == nil {
		return false
	}
	var e *PathError
	return errors.As(err, &e) || errors.Is(err, ErrUnresolvedPath)
}

// InternalError marks a violated compiler invariant, such as two distinct
// join paths colliding on one table alias. It always indicates a bug in
// celer rather than bad input, but is still surfaced as an error so the
// compiler never silently emits wrong SQL.
type InternalError struct {
	Reason string
}

// Error returns the error string.
func (e *InternalError) Error() string {
	return fmt.Sprintf("celer: internal: %s", e.Reason)
}

// Internalf formats an InternalError.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}
