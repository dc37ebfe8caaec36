// Package apperrors provides the typed error kinds shared across the
// gateway's search, streaming and storage packages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure that callers can branch on without
// parsing error strings.
type Kind string

const (
	KindMetadataMissing          Kind = "metadata_missing"
	KindNoCandidatesFound        Kind = "no_candidates_found"
	KindAllCandidatesFailedYear  Kind = "all_candidates_failed_year_gate"
	KindResolutionFailed         Kind = "resolution_failed"
	KindValidationRejected       Kind = "validation_rejected"
	KindInsufficientStorage      Kind = "insufficient_storage"
	KindDownloadFailedOrAborted  Kind = "download_failed_or_aborted"
	KindUnsupportedArchive       Kind = "unsupported_archive"
	KindSeekAheadTimeout         Kind = "seek_ahead_timeout"
	KindMKVSeekTooEarly          Kind = "mkv_seek_too_early"
)

// Error is a typed error carrying a Kind alongside the usual message/cause
// pair. Callers branch on Kind via errors.As + Is, never on string matching.
type Error struct {
	Kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same Kind. A target with
// an empty Kind matches any *Error, so errors.Is(err, &Error{}) can be used
// as a generic "is this an apperrors.Error" check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return true
	}
	return t.Kind == e.Kind
}

// New builds a typed error for the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, message: message}
}

// Wrap builds a typed error for the given kind, keeping cause for Unwrap.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return New(kind, message)
	}
	return &Error{Kind: kind, message: message, cause: cause}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.cause
	}
	return false
}

// KindOf extracts the Kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// Sentinel, zero-cause convenience constructors mirroring the teacher's
// package-level error variables.
var (
	ErrMetadataMissing         = New(KindMetadataMissing, "no metadata available for requested id")
	ErrNoCandidatesFound       = New(KindNoCandidatesFound, "no provider returned candidate titles")
	ErrAllCandidatesFailedYear = New(KindAllCandidatesFailedYear, "every candidate failed the release-year gate")
	ErrResolutionFailed        = New(KindResolutionFailed, "link resolution exhausted all extractors")
	ErrValidationRejected      = New(KindValidationRejected, "all resolved links rejected by range validation")
	ErrInsufficientStorage     = New(KindInsufficientStorage, "not enough free space to start download")
	ErrDownloadFailedOrAborted = New(KindDownloadFailedOrAborted, "download failed or was aborted")
	ErrUnsupportedArchive      = New(KindUnsupportedArchive, "archive format is not supported for extraction")
	ErrSeekAheadTimeout        = New(KindSeekAheadTimeout, "timed out waiting for download to reach requested offset")
	ErrMKVSeekTooEarly         = New(KindMKVSeekTooEarly, "seek target is ahead of the safe mkv extraction point")
)
