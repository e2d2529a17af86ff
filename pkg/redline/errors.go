// Package redline provides custom error types for package-level and
// per-edit failure reporting.
package redline

import (
	"errors"
	"fmt"
)

// PackageErrorKind classifies failures of the document package itself.
// These are fatal for the whole job.
type PackageErrorKind string

const (
	// MalformedPackage means the input bytes are not a readable archive.
	MalformedPackage PackageErrorKind = "MalformedPackage"
	// MissingMainPart means the archive has no main document part.
	MissingMainPart PackageErrorKind = "MissingMainPart"
	// SerializationFailure means a touched part could not be re-serialized.
	SerializationFailure PackageErrorKind = "SerializationFailure"
	// CommentPartWriteFailure means the comments part could not be written.
	CommentPartWriteFailure PackageErrorKind = "CommentPartWriteFailure"
)

// PackageError represents a fatal error in package open, comment part
// maintenance, or save.
type PackageError struct {
	Kind  PackageErrorKind
	Part  string
	Cause error
}

func (e *PackageError) Error() string {
	if e.Part != "" && e.Cause != nil {
		return fmt.Sprintf("package error (%s) in part '%s': %v", e.Kind, e.Part, e.Cause)
	} else if e.Part != "" {
		return fmt.Sprintf("package error (%s) in part '%s'", e.Kind, e.Part)
	} else if e.Cause != nil {
		return fmt.Sprintf("package error (%s): %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("package error (%s)", e.Kind)
}

func (e *PackageError) Unwrap() error {
	return e.Cause
}

// NewPackageError creates a new package error.
func NewPackageError(kind PackageErrorKind, part string, cause error) error {
	return &PackageError{
		Kind:  kind,
		Part:  part,
		Cause: cause,
	}
}

// ResolveErrorKind classifies per-edit resolution failures. They are
// accumulated in the Report and do not abort the job, except in strict
// mode, where any of them fails the whole job.
type ResolveErrorKind string

const (
	// TargetNotFound means fewer than occurrence+1 matches of the target
	// exist in the flat text.
	TargetNotFound ResolveErrorKind = "TargetNotFound"
	// AnchorNotFound means an INSERT anchor is absent from the flat text.
	AnchorNotFound ResolveErrorKind = "AnchorNotFound"
	// EmptyTarget means the target or anchor text is empty where a
	// non-empty string is required.
	EmptyTarget ResolveErrorKind = "EmptyTarget"
	// OverlapConflict means the edit's resolved range intersects the range
	// of an earlier-listed edit.
	OverlapConflict ResolveErrorKind = "OverlapConflict"
	// InvalidEdit means the edit record itself is unusable (unknown
	// operation, missing new text, negative occurrence) before any
	// resolution is attempted. Not part of the wire-level taxonomy; it
	// follows the same per-edit skip policy.
	InvalidEdit ResolveErrorKind = "InvalidEdit"
)

// ResolveError represents a per-edit failure while mapping an edit's
// target or anchor to a document range.
type ResolveError struct {
	Kind       ResolveErrorKind
	Target     string
	Occurrence int
	Cause      error
}

func (e *ResolveError) Error() string {
	excerpt := e.Target
	if len(excerpt) > 40 {
		excerpt = excerpt[:40] + "..."
	}
	msg := fmt.Sprintf("resolve error (%s) for '%s'", e.Kind, excerpt)
	if e.Occurrence > 0 {
		msg += fmt.Sprintf(" occurrence %d", e.Occurrence)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// NewResolveError creates a new resolve error.
func NewResolveError(kind ResolveErrorKind, target string, occurrence int) error {
	return &ResolveError{
		Kind:       kind,
		Target:     target,
		Occurrence: occurrence,
	}
}

// IsPackageError checks if an error is a package error, optionally of a
// specific kind.
func IsPackageError(err error, kind PackageErrorKind) bool {
	var pe *PackageError
	if !errors.As(err, &pe) {
		return false
	}
	return kind == "" || pe.Kind == kind
}

// IsResolveError checks if an error is a resolve error, optionally of a
// specific kind.
func IsResolveError(err error, kind ResolveErrorKind) bool {
	var re *ResolveError
	if !errors.As(err, &re) {
		return false
	}
	return kind == "" || re.Kind == kind
}
