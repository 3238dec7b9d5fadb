// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
)

// Kind classifies a portal error. The kind travels the socket
// protocol as the response code, so clients branch on it without
// parsing message text.
type Kind string

const (
	// KindPermissionDenied: consent was declined, or no durable
	// grant exists and the prompt was declined or timed out.
	KindPermissionDenied Kind = "permission-denied"

	// KindUnsupportedMode: the capability was invoked with a mode
	// the request's own flags disallow.
	KindUnsupportedMode Kind = "unsupported-mode"

	// KindNoChoice: a chooser was dismissed without a selection.
	KindNoChoice Kind = "no-choice"

	// KindNoConfigDir: the per-user state directory is unavailable.
	KindNoConfigDir Kind = "no-config-dir"

	// KindIoError: a persistence write or effector call failed.
	KindIoError Kind = "io-error"

	// KindInvalidPath: a request named a malformed or non-absolute
	// path.
	KindInvalidPath Kind = "invalid-path"

	// KindSessionNotFound: the named session or handle is unknown.
	KindSessionNotFound Kind = "session-not-found"

	// KindCancelled: the request was withdrawn, or its parent window
	// was destroyed, before resolution.
	KindCancelled Kind = "cancelled"
)

// ErrConsentTimeout is the cause wrapped into the PermissionDenied
// error produced when a consent wait exceeds the configured timeout.
var ErrConsentTimeout = errors.New("consent timed out")

// Error is a classified portal error. It implements the socket
// protocol's Coded interface so the kind rides the response envelope.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the kind as the machine-readable response code.
func (e *Error) Code() string { return string(e.Kind) }

// Errorf builds a classified error. The format string follows
// fmt.Errorf conventions except %w: wrap a cause by passing it as
// cause instead.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without discarding it. The
// cause stays reachable through errors.Is/As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the Kind from an error chain. Unclassified errors
// report KindIoError: anything a handler did not deliberately
// classify is an infrastructure failure.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindIoError
}
