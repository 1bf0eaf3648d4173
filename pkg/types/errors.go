package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by store operations.
type ErrorKind string

// Error kinds.
const (
	KindNotFound     ErrorKind = "not found"
	KindInvalidInput ErrorKind = "invalid input"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal error"
)

// Sentinel errors. Every DomainError matches the sentinel of its kind with
// errors.Is, so callers never need to type-assert.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")
	ErrUninitialized = errors.New("database not initialized")
)

// Sync configuration errors.
var (
	ErrSyncNotConfigured = errors.New("cloud sync not configured")
	ErrSyncURLEmpty      = errors.New("sync url must not be empty")
	ErrSyncTokenEmpty    = errors.New("sync token must not be empty")
)

// DomainError carries a kind, a human readable message, and optionally the
// underlying engine error.
type DomainError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *DomainError) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindInvalidInput:
		return target == ErrInvalidInput
	case KindConflict:
		return target == ErrConflict
	case KindInternal:
		return target == ErrInternal
	}
	return false
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// InvalidInput returns a KindInvalidInput error.
func InvalidInput(format string, args ...any) error {
	return &DomainError{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error wrapping err.
func Conflict(msg string, err error) error {
	return &DomainError{Kind: KindConflict, Msg: msg, Err: err}
}

// Internal wraps a storage-layer failure. A nil err yields nil, and errors
// that already carry a kind (or ErrUninitialized) pass through unchanged.
func Internal(msg string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) || errors.Is(err, ErrUninitialized) {
		return err
	}
	return &DomainError{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
