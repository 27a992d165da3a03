package engine

import "fmt"

// TypeKind discriminates the variant held by a Type. A Type is always
// obtained by introspecting a compiled component; the runtime never
// constructs one synthetically.
type TypeKind uint8

const (
	TypeBool TypeKind = iota
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeS8
	TypeS16
	TypeS32
	TypeS64
	TypeFloat32
	TypeFloat64
	TypeChar
	TypeString
	TypeList
	TypeRecord
	TypeTuple
	TypeVariant
	TypeEnum
	TypeOption
	TypeResult
	TypeFlags
	TypeOwn
	TypeBorrow
	TypeFuture
	TypeStream
	TypeErrorContext
)

func (k TypeKind) String() string {
	switch k {
	case TypeBool:
		return "bool"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeS8:
		return "s8"
	case TypeS16:
		return "s16"
	case TypeS32:
		return "s32"
	case TypeS64:
		return "s64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeChar:
		return "char"
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeRecord:
		return "record"
	case TypeTuple:
		return "tuple"
	case TypeVariant:
		return "variant"
	case TypeEnum:
		return "enum"
	case TypeOption:
		return "option"
	case TypeResult:
		return "result"
	case TypeFlags:
		return "flags"
	case TypeOwn:
		return "own"
	case TypeBorrow:
		return "borrow"
	case TypeFuture:
		return "future"
	case TypeStream:
		return "stream"
	case TypeErrorContext:
		return "error-context"
	default:
		return fmt.Sprintf("type-kind(%d)", uint8(k))
	}
}

// IsWireUnsafe reports whether this TypeKind can never be represented on
// the wire (own/borrow resource handles, futures, streams, error contexts).
func (k TypeKind) IsWireUnsafe() bool {
	switch k {
	case TypeOwn, TypeBorrow, TypeFuture, TypeStream, TypeErrorContext:
		return true
	default:
		return false
	}
}

// FieldType is one named field of a Record type.
type FieldType struct {
	Name string
	Type Type
}

// CaseType is one named case of a Variant type; Payload is nil for a
// payload-less case.
type CaseType struct {
	Name    string
	Payload *Type
}

// Type is structural: records are ordered named-field lists, variants are
// ordered named cases with optional payload type, flags are ordered name
// lists. Types are cheap to clone.
type Type struct {
	Kind TypeKind

	Elem *Type // List, Option

	Items []Type // Tuple

	Fields []FieldType // Record

	Cases []CaseType // Variant

	Names []string // Enum, Flags (definition order)

	// Result: each side is present (non-nil) only if it carries a payload
	// type. Both arms of a result always exist, so a nil side means that
	// arm is typeless, not absent.
	OkType  *Type
	ErrType *Type
}

// NewBool returns the bool Type.
func NewBool() Type { return Type{Kind: TypeBool} }

// NewList returns a Type for list<elem>.
func NewList(elem Type) Type { return Type{Kind: TypeList, Elem: &elem} }

// NewOption returns a Type for option<elem>.
func NewOption(elem Type) Type { return Type{Kind: TypeOption, Elem: &elem} }

// NewTuple returns a Type for tuple<items...>.
func NewTuple(items []Type) Type { return Type{Kind: TypeTuple, Items: items} }

// NewRecord returns a Type for record{fields}.
func NewRecord(fields []FieldType) Type { return Type{Kind: TypeRecord, Fields: fields} }

// NewVariant returns a Type for variant{cases}.
func NewVariant(cases []CaseType) Type { return Type{Kind: TypeVariant, Cases: cases} }

// NewEnum returns a Type for enum{names}.
func NewEnum(names []string) Type { return Type{Kind: TypeEnum, Names: names} }

// NewFlags returns a Type for flags{names}, in definition order.
func NewFlags(names []string) Type { return Type{Kind: TypeFlags, Names: names} }

// NewResult returns a Type for result<ok,err>; either side may be nil for
// a typeless arm.
func NewResult(ok, err *Type) Type { return Type{Kind: TypeResult, OkType: ok, ErrType: err} }

// FunctionSignature is the ordered parameter and result types of one
// imported or exported function.
type FunctionSignature struct {
	Params  []Type
	Results []Type
}
