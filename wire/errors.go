// Package wire implements the tagged, length-prefixed binary codec used to
// move component-model values across the wire: a bounded, state-machine
// driven Encoder and a zero-copy, bounds-checked Decoder over a complete
// buffer, plus a streaming-safe Cursor for framing layers that receive
// bytes in chunks.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package wire

import "fmt"

// Scope identifies the kind of container frame currently open on the
// Encoder's stack or being read by the Decoder.
type Scope uint8

const (
	ScopeRoot Scope = iota
	ScopeList
	ScopeMap
	ScopeOption
	ScopeResult
	ScopeVariant
	ScopeArray
)

func (s Scope) String() string {
	switch s {
	case ScopeRoot:
		return "root"
	case ScopeList:
		return "list"
	case ScopeMap:
		return "map"
	case ScopeOption:
		return "option"
	case ScopeResult:
		return "result"
	case ScopeVariant:
		return "variant"
	case ScopeArray:
		return "array"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Error is the codec's error taxonomy. Every failure mode named in the
// component design is represented by a distinct, comparable value so
// callers can switch on it with errors.Is.
type Error struct {
	Kind  ErrorKind
	N     int   // Pending: bytes still missing. BlobTooLarge: the oversized length.
	Byte  byte  // InvalidTag: the offending byte.
	Scope Scope // TooManyItems, EmptyAdt: the offending scope.
}

// ErrorKind enumerates the codec error cases.
type ErrorKind uint8

const (
	ErrPending ErrorKind = iota + 1
	ErrInvalidTag
	ErrInvalidUtf8
	ErrTypeMismatch
	ErrMalformed
	ErrBlobTooLarge
	ErrContainerFull
	ErrSeekBeforeBuffer
	ErrSeekAfterBuffer
	ErrScopeOpen
	ErrPositionFreed
	ErrOutOfBounds
	ErrTooManyItems
	ErrEmptyAdt
	ErrInvalidMapEntry
)

func (e *Error) Error() string {
	switch e.Kind {
	case ErrPending:
		return fmt.Sprintf("wire: pending, %d more byte(s) needed", e.N)
	case ErrInvalidTag:
		return fmt.Sprintf("wire: invalid tag byte 0x%02x", e.Byte)
	case ErrInvalidUtf8:
		return "wire: invalid utf-8"
	case ErrTypeMismatch:
		return "wire: type mismatch"
	case ErrMalformed:
		return "wire: malformed encoding"
	case ErrBlobTooLarge:
		return fmt.Sprintf("wire: blob/container length %d exceeds u32", e.N)
	case ErrContainerFull:
		return "wire: container full"
	case ErrSeekBeforeBuffer:
		return "wire: seek before buffer start"
	case ErrSeekAfterBuffer:
		return "wire: seek after buffer end"
	case ErrScopeOpen:
		return "wire: scope still open"
	case ErrPositionFreed:
		return "wire: position below minimum-valid watermark"
	case ErrOutOfBounds:
		return "wire: position out of bounds"
	case ErrTooManyItems:
		return fmt.Sprintf("wire: too many items in %s scope; expected exactly one", e.Scope)
	case ErrEmptyAdt:
		return fmt.Sprintf("wire: empty %s scope; expected exactly one item", e.Scope)
	case ErrInvalidMapEntry:
		return "wire: map scope accepts only variant entries"
	default:
		return "wire: unknown error"
	}
}

// Is lets errors.Is match on Kind alone, ignoring the payload fields, so
// call sites can write errors.Is(err, wire.ErrPendingKind) directly against
// a sentinel built with that Kind and zero payload.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func errPending(n int) error           { return &Error{Kind: ErrPending, N: n} }
func errInvalidTag(b byte) error       { return &Error{Kind: ErrInvalidTag, Byte: b} }
func errInvalidUtf8() error            { return &Error{Kind: ErrInvalidUtf8} }
func errTypeMismatch() error           { return &Error{Kind: ErrTypeMismatch} }
func errMalformed() error              { return &Error{Kind: ErrMalformed} }
func errBlobTooLarge(n int) error      { return &Error{Kind: ErrBlobTooLarge, N: n} }
func errContainerFull() error          { return &Error{Kind: ErrContainerFull} }
func errSeekBeforeBuffer() error       { return &Error{Kind: ErrSeekBeforeBuffer} }
func errSeekAfterBuffer() error        { return &Error{Kind: ErrSeekAfterBuffer} }
func errScopeOpen() error              { return &Error{Kind: ErrScopeOpen} }
func errPositionFreed() error          { return &Error{Kind: ErrPositionFreed} }
func errOutOfBounds() error            { return &Error{Kind: ErrOutOfBounds} }
func errTooManyItems(s Scope) error    { return &Error{Kind: ErrTooManyItems, Scope: s} }
func errEmptyAdt(s Scope) error        { return &Error{Kind: ErrEmptyAdt, Scope: s} }
func errInvalidMapEntry() error        { return &Error{Kind: ErrInvalidMapEntry} }

// Sentinels for errors.Is comparisons against error kinds that carry no
// payload of interest to the caller.
var (
	ErrPendingKind       = &Error{Kind: ErrPending}
	ErrInvalidTagKind    = &Error{Kind: ErrInvalidTag}
	ErrInvalidUtf8Kind   = &Error{Kind: ErrInvalidUtf8}
	ErrTypeMismatchKind  = &Error{Kind: ErrTypeMismatch}
	ErrMalformedKind     = &Error{Kind: ErrMalformed}
	ErrBlobTooLargeKind  = &Error{Kind: ErrBlobTooLarge}
	ErrContainerFullKind = &Error{Kind: ErrContainerFull}
	ErrScopeOpenKind     = &Error{Kind: ErrScopeOpen}
	ErrPositionFreedKind = &Error{Kind: ErrPositionFreed}
	ErrOutOfBoundsKind   = &Error{Kind: ErrOutOfBounds}
)
