// Package engine defines the runtime's in-memory mirror of component-model
// values and types, plus the minimal Engine/Store/Instance/Linker surface
// the rest of the runtime programs against. A concrete adapter (see
// wazeroengine) binds these to an actual Wasm engine; nothing in this
// package touches Wasm bytes directly.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package engine

import "fmt"

// Kind discriminates the variant held by a Value. It mirrors the shape of
// a component-model value one-to-one; Resource/Future/Stream/ErrorContext
// exist here only so a Value can describe why it is not wire-safe — the
// ledger rejects any Type reachable from a signature that uses them, and
// the codec refuses to encode a Value of these kinds.
type Kind uint8

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindFloat32
	KindFloat64
	KindChar
	KindString
	KindList
	KindRecord
	KindTuple
	KindVariant
	KindEnum
	KindOption
	KindResult
	KindFlags
	KindResource
	KindFuture
	KindStream
	KindErrorContext
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindS8:
		return "s8"
	case KindS16:
		return "s16"
	case KindS32:
		return "s32"
	case KindS64:
		return "s64"
	case KindFloat32:
		return "f32"
	case KindFloat64:
		return "f64"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindTuple:
		return "tuple"
	case KindVariant:
		return "variant"
	case KindEnum:
		return "enum"
	case KindOption:
		return "option"
	case KindResult:
		return "result"
	case KindFlags:
		return "flags"
	case KindResource:
		return "resource"
	case KindFuture:
		return "future"
	case KindStream:
		return "stream"
	case KindErrorContext:
		return "error-context"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsWireUnsafe reports whether values of this kind can never cross the
// wire (resource handles, futures, streams, and error contexts).
func (k Kind) IsWireUnsafe() bool {
	switch k {
	case KindResource, KindFuture, KindStream, KindErrorContext:
		return true
	default:
		return false
	}
}

// RecordField is one named field of a Record value.
type RecordField struct {
	Name  string
	Value Value
}

// Value is the in-memory mirror of a component-model value. Only one
// group of fields is meaningful for a given Kind; constructors below
// populate exactly the right one.
type Value struct {
	Kind Kind

	Bool   bool
	U8     uint8
	U16    uint16
	U32    uint32
	U64    uint64
	S8     int8
	S16    int16
	S32    int32
	S64    int64
	F32    float32
	F64    float64
	Char   rune
	Str    string
	List   []Value // List, Tuple
	Record []RecordField

	VariantName    string // Variant, Enum
	VariantPayload *Value // nil for Enum and for payload-less Variant cases

	OptionPayload *Value // nil means None

	ResultOk      bool
	ResultPayload *Value // nil when the arm is typeless

	Flags []string // active flag names, any order; marshalling normalizes to definition order

	// Handle is an opaque resource/future/stream identifier. The runtime
	// never encodes a Value carrying one; it exists so host capabilities
	// can pass such values between Go call sites without the wire layer.
	Handle uint64
}

// BoolVal constructs a bool Value.
func BoolVal(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// U8Val constructs a u8 Value.
func U8Val(v uint8) Value { return Value{Kind: KindU8, U8: v} }

// U16Val constructs a u16 Value.
func U16Val(v uint16) Value { return Value{Kind: KindU16, U16: v} }

// U32Val constructs a u32 Value.
func U32Val(v uint32) Value { return Value{Kind: KindU32, U32: v} }

// U64Val constructs a u64 Value.
func U64Val(v uint64) Value { return Value{Kind: KindU64, U64: v} }

// S8Val constructs an s8 Value.
func S8Val(v int8) Value { return Value{Kind: KindS8, S8: v} }

// S16Val constructs an s16 Value.
func S16Val(v int16) Value { return Value{Kind: KindS16, S16: v} }

// S32Val constructs an s32 Value.
func S32Val(v int32) Value { return Value{Kind: KindS32, S32: v} }

// S64Val constructs an s64 Value.
func S64Val(v int64) Value { return Value{Kind: KindS64, S64: v} }

// F32Val constructs an f32 Value.
func F32Val(v float32) Value { return Value{Kind: KindFloat32, F32: v} }

// F64Val constructs an f64 Value.
func F64Val(v float64) Value { return Value{Kind: KindFloat64, F64: v} }

// CharVal constructs a char Value.
func CharVal(v rune) Value { return Value{Kind: KindChar, Char: v} }

// StringVal constructs a string Value.
func StringVal(v string) Value { return Value{Kind: KindString, Str: v} }

// ListVal constructs a list Value.
func ListVal(items []Value) Value { return Value{Kind: KindList, List: items} }

// TupleVal constructs a tuple Value (wire-identical to a list).
func TupleVal(items []Value) Value { return Value{Kind: KindTuple, List: items} }

// RecordVal constructs a record Value.
func RecordVal(fields []RecordField) Value { return Value{Kind: KindRecord, Record: fields} }

// VariantVal constructs a variant Value; payload may be nil.
func VariantVal(name string, payload *Value) Value {
	return Value{Kind: KindVariant, VariantName: name, VariantPayload: payload}
}

// EnumVal constructs an enum Value.
func EnumVal(name string) Value { return Value{Kind: KindEnum, VariantName: name} }

// OptionVal constructs an option Value; payload nil means None.
func OptionVal(payload *Value) Value { return Value{Kind: KindOption, OptionPayload: payload} }

// ResultVal constructs a result Value; payload may be nil for a typeless arm.
func ResultVal(ok bool, payload *Value) Value {
	return Value{Kind: KindResult, ResultOk: ok, ResultPayload: payload}
}

// FlagsVal constructs a flags Value from the set of active flag names.
func FlagsVal(names []string) Value { return Value{Kind: KindFlags, Flags: names} }
