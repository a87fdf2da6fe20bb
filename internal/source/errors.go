package source

import (
	"errors"
	"fmt"
)

// Source error kinds. Every error returned by Collect wraps one of these
// and can be matched with errors.Is:
//
//	if errors.Is(err, source.ErrRateLimited) {
//	    // ask the user for an access token
//	}
var (
	// ErrSource is the generic remote failure: unexpected HTTP status,
	// timeout, connection failure or an unreadable archive.
	ErrSource = errors.New("source error")

	// ErrRepoNotFound is returned when the repository does not exist or
	// is not visible with the supplied credentials.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrAuthentication is returned for rejected or insufficient credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRateLimited is returned when the remote API quota is exhausted.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidRepoURL is returned when a repository URL has no
	// owner/repo path.
	ErrInvalidRepoURL = errors.New("invalid repository URL")

	// ErrPathNotFound is returned when a local root is missing or is not
	// a directory.
	ErrPathNotFound = errors.New("path not found")

	// ErrNotConfigured is returned when a source has no path or URL.
	ErrNotConfigured = errors.New("source not configured")
)

// Error is a whole-source failure. Message is suitable for display and is
// stored as the project's sync error.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and any underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// IsSourceUnavailable reports whether err means the source could not be
// reached or addressed at all, as opposed to a failure mid-reconciliation.
func IsSourceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range []error{
		ErrSource, ErrRepoNotFound, ErrAuthentication, ErrRateLimited,
		ErrInvalidRepoURL, ErrPathNotFound, ErrNotConfigured,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
