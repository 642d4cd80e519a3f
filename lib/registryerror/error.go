// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package registryerror

import (
	"errors"
	"fmt"
)

// Kind classifies a registry error.
type Kind string

const (
	// KindConflict: a create operation named an id that is already
	// registered. The existing entry is untouched.
	KindConflict Kind = "conflict"

	// KindNotFound: an operation addressed an id that is not registered.
	KindNotFound Kind = "not_found"

	// KindSpawnFailure: the child executable could not be located or the
	// OS refused to start it.
	KindSpawnFailure Kind = "spawn_failure"

	// KindIO: a write, flush, or read on a pipe or PTY failed.
	KindIO Kind = "io"

	// KindProtocol: a worker stdout line could not be decoded as a known
	// event. Relays log and skip these; they never reach callers of
	// registry operations.
	KindProtocol Kind = "protocol"

	// KindLock: the registry's critical section was interrupted by a
	// panic and the registry can no longer be trusted. Fatal for the
	// call that observes it and every later call.
	KindLock Kind = "lock"

	// KindInvalid: the caller supplied unusable input, such as a command
	// without a session id or a zero terminal size.
	KindInvalid Kind = "invalid"
)

// Sentinels for errors.Is matching. An *Error matches the sentinel of
// its own kind.
var (
	ErrConflict     = &Error{Kind: KindConflict}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrSpawnFailure = &Error{Kind: KindSpawnFailure}
	ErrIO           = &Error{Kind: KindIO}
	ErrProtocol     = &Error{Kind: KindProtocol}
	ErrLock         = &Error{Kind: KindLock}
	ErrInvalid      = &Error{Kind: KindInvalid}
)

// Error is a classified registry error.
type Error struct {
	// Kind classifies the error for programmatic handling.
	Kind Kind

	// ID is the session or terminal id the operation addressed, if any.
	ID string

	// Err is the underlying error with the human-readable message.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error so errors.Is and errors.As walk
// through the classification.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel (or any *Error) of the same
// kind. This makes errors.Is(err, ErrNotFound) work for every
// not-found error regardless of id or message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind Kind, id string, format string, args []any) *Error {
	return &Error{Kind: kind, ID: id, Err: fmt.Errorf(format, args...)}
}

// Conflict creates a conflict error for id.
func Conflict(id string, format string, args ...any) *Error {
	return newError(KindConflict, id, format, args)
}

// NotFound creates a not-found error for id.
func NotFound(id string, format string, args ...any) *Error {
	return newError(KindNotFound, id, format, args)
}

// SpawnFailure creates a spawn failure error for id.
func SpawnFailure(id string, format string, args ...any) *Error {
	return newError(KindSpawnFailure, id, format, args)
}

// IO creates an I/O error for id.
func IO(id string, format string, args ...any) *Error {
	return newError(KindIO, id, format, args)
}

// Protocol creates a protocol error for id.
func Protocol(id string, format string, args ...any) *Error {
	return newError(KindProtocol, id, format, args)
}

// Lock creates a lock error for id.
func Lock(id string, format string, args ...any) *Error {
	return newError(KindLock, id, format, args)
}

// Invalid creates an invalid-input error for id.
func Invalid(id string, format string, args ...any) *Error {
	return newError(KindInvalid, id, format, args)
}

// KindOf returns the kind of the first *Error in err's chain, or the
// empty Kind if there is none.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
