package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores for absent records
	ErrNotFound = errors.New("not found")
	// ErrNotAuthenticated means no user identity accompanied the request
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrStoreUnavailable matches any resolution aborted by a failed store read
	ErrStoreUnavailable = errors.New("permission store unavailable")
	// ErrInvalidInput is returned by Service for malformed requests
	ErrInvalidInput = errors.New("invalid input")
	// ErrSystemRole is returned when a change would violate system role rules
	ErrSystemRole = errors.New("system role cannot be changed this way")
	// ErrUnknownPermission is returned by Service for codes outside the registry
	ErrUnknownPermission = errors.New("unknown permission code")
	// ErrConflict is returned for duplicates such as an existing membership
	ErrConflict = errors.New("already exists")
)

// SourceError reports which permission source failed during resolution.
// errors.Is(err, ErrStoreUnavailable) holds for every SourceError.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: read %s: %v", ErrStoreUnavailable, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool { return target == ErrStoreUnavailable }

func sourceErr(source string, err error) error {
	return &SourceError{Source: source, Err: err}
}

// NotFound builds an ErrNotFound-wrapping error. Store implementations use it.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
