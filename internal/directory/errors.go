// Package directory holds what the user-directory backends share: the error
// type every adapter wraps its driver errors in.
package directory

import (
	"errors"
	"fmt"

	"github.com/ffland/portal/internal/domain"
)

// Error is a directory failure with the backend and operation attached.
type Error struct {
	// Backend names the adapter, e.g. "http", "surreal", "postgres", "file".
	Backend string
	// Op is the directory operation that failed.
	Op string
	// UID is the user the operation was about.
	UID string

	err error
}

// NewError wraps err with backend/op/uid context.
func NewError(backend, op, uid string, err error) *Error {
	return &Error{Backend: backend, Op: op, UID: uid, err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s directory: %s", e.Backend, e.Op)
	if e.UID != "" {
		msg = fmt.Sprintf("%s uid=%s", msg, e.UID)
	}
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.err
}

// NotFound builds the error returned when a uid has no record.
func NotFound(backend, op, uid string) *Error {
	return NewError(backend, op, uid, domain.ErrUserNotFound)
}

// IsNotFound reports whether err means the uid has no record.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrUserNotFound)
}
