// Package rpcval is the translation layer between an in-memory engine.Value
// and the wire package's tagged codec, plus the RPC Call/Reply frame
// encoding built on top of it.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package rpcval

import (
	"fmt"

	"github.com/exorun/exorun/wire"
	"github.com/pkg/errors"
)

// maxRecursionDepth bounds nested value encode/decode so a maliciously or
// accidentally deep value traps the call instead of overflowing the stack.
const maxRecursionDepth = 64

// ErrorKind is the RPC-layer error taxonomy, distinct from wire.Error:
// these represent the *transport/protocol* failing, not the remote system
// (see FailureReason for that).
type ErrorKind uint8

const (
	ErrSerialization ErrorKind = iota + 1
	ErrTypeMismatch
	ErrMissingField
	ErrUnknownVariant
	ErrProtocolViolation
	ErrUnsupportedType
	ErrRecursionLimitExceeded
)

// Error is an RPC-layer operational failure.
type Error struct {
	Kind     ErrorKind
	Expected string // TypeMismatch
	Found    string // TypeMismatch, UnsupportedType
	Field    string // MissingField
	Variant  string // UnknownVariant
	Detail   string // ProtocolViolation
	Cause    error  // Serialization: the wrapped wire.Error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrSerialization:
		return fmt.Sprintf("rpcval: serialization failed: %v", e.Cause)
	case ErrTypeMismatch:
		return fmt.Sprintf("rpcval: type mismatch: expected %s, found %s", e.Expected, e.Found)
	case ErrMissingField:
		return fmt.Sprintf("rpcval: missing field %q", e.Field)
	case ErrUnknownVariant:
		return fmt.Sprintf("rpcval: unknown variant %q", e.Variant)
	case ErrProtocolViolation:
		return fmt.Sprintf("rpcval: protocol violation: %s", e.Detail)
	case ErrUnsupportedType:
		return fmt.Sprintf("rpcval: unsupported type: %s", e.Found)
	case ErrRecursionLimitExceeded:
		return "rpcval: recursion limit exceeded"
	default:
		return "rpcval: unknown error"
	}
}

// Unwrap exposes the wrapped wire.Error for Serialization failures so
// callers can errors.As into it.
func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func errSerialization(cause error) error {
	return errors.WithStack(&Error{Kind: ErrSerialization, Cause: cause})
}
func errTypeMismatch(expected, found string) error {
	return &Error{Kind: ErrTypeMismatch, Expected: expected, Found: found}
}
func errMissingField(field string) error { return &Error{Kind: ErrMissingField, Field: field} }
func errUnknownVariant(v string) error    { return &Error{Kind: ErrUnknownVariant, Variant: v} }
func errProtocolViolation(detail string) error {
	return &Error{Kind: ErrProtocolViolation, Detail: detail}
}
func errUnsupportedType(found string) error { return &Error{Kind: ErrUnsupportedType, Found: found} }
func errRecursionLimit() error              { return &Error{Kind: ErrRecursionLimitExceeded} }

// wireErr wraps a wire-package error as a Serialization failure, the
// translation point between the two error taxonomies.
func wireErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*wire.Error); ok {
		return errSerialization(err)
	}
	return err
}
