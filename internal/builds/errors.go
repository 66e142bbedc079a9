package builds

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no build exists under the requested id, or the
	// build is private and the requester does not own it.
	ErrNotFound = errors.New("builds: build not found")
	// ErrNotOwner indicates the requester identity does not match the build's
	// recorded owner.
	ErrNotOwner = errors.New("builds: requester does not own build")
	// ErrAlreadyVoted indicates the identity already holds a vote row for the
	// build; the ledger is write-once.
	ErrAlreadyVoted = errors.New("builds: identity already voted on build")
)

// ValidationError reports malformed or out-of-range input, detected before
// any storage call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("builds: validation failed: %s", e.Reason)
}

func newValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ServiceError wraps storage-tier failures with a dotted operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
