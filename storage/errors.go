package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Delete when the artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// AuthError means the backend rejected our credentials. Not retryable; the
// caller degrades replication rather than failing the run.
type AuthError struct {
	Backend string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Backend, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError means the operation may succeed if retried.
type TransientError struct {
	Backend string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient error: %v", e.Backend, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
