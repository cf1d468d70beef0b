// internal/apperr/apperr.go
package apperr

import "fmt"

// InputError marks a malformed or incomplete request. Always the client's
// fault; never retried.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// AuthError marks a failed webhook authentication: missing registration,
// missing secret, missing or mismatched signature.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// UpstreamError wraps a remote API failure. StatusCode is 0 when the
// upstream never answered.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream API error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upstream API error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. Fatal for the current request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrInvalidRepoFormat is returned when a repository string is not in
// 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}
