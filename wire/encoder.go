package wire

import (
	"encoding/binary"
	"math"
)

// frame is one open container scope on the Encoder's stack.
type frame struct {
	start       int // offset in buf where the body begins (after the length placeholder)
	scope       Scope
	count       int
	arrayTag    Tag // ScopeArray only: the declared item tag
	arrayStride int // ScopeArray only: required byte length of each Push
}

// Encoder is a bounded, write-side state machine. It maintains a stack of
// open container scopes to enforce the structural invariants of the format
// and automatically back-patches length headers when a scope closes.
type Encoder struct {
	buf         []byte
	stack       []frame
	flushedThru int
}

// NewEncoder returns an empty Encoder positioned at the Root scope.
func NewEncoder() *Encoder {
	e := &Encoder{buf: make([]byte, 0, 1024), stack: make([]frame, 0, 8)}
	e.stack = append(e.stack, frame{scope: ScopeRoot})
	return e
}

// Bytes returns the encoded bytes. It fails with ScopeOpen if any container
// scope (other than Root) is still open.
func (e *Encoder) Bytes() ([]byte, error) {
	if len(e.stack) > 1 {
		return nil, errScopeOpen()
	}
	return e.buf, nil
}

// Flush returns the bytes written since the last Flush. It is only valid
// when no container scope is open.
func (e *Encoder) Flush() ([]byte, error) {
	if len(e.stack) > 1 {
		return nil, errScopeOpen()
	}
	out := e.buf[e.flushedThru:]
	e.flushedThru = len(e.buf)
	return out, nil
}

// TakeFlushed compacts the internal buffer, discarding bytes already
// returned by Flush.
func (e *Encoder) TakeFlushed() {
	if e.flushedThru == 0 {
		return
	}
	e.buf = append(e.buf[:0], e.buf[e.flushedThru:]...)
	e.flushedThru = 0
}

func (e *Encoder) top() *frame { return &e.stack[len(e.stack)-1] }

func (e *Encoder) checkWrite(tag Tag) error {
	f := e.top()
	switch f.scope {
	case ScopeRoot, ScopeList:
		return nil
	case ScopeMap:
		if tag != TagVariant {
			return errInvalidMapEntry()
		}
		return nil
	case ScopeOption, ScopeResult, ScopeVariant:
		if f.count >= 1 {
			return errTooManyItems(f.scope)
		}
		return nil
	case ScopeArray:
		return errTypeMismatch() // arrays are written via Push, not check_write-gated writes
	default:
		return errMalformed()
	}
}

func (e *Encoder) onItemWritten() { e.top().count++ }

func (e *Encoder) writeTag(tag Tag) error {
	if err := e.checkWrite(tag); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(tag))
	return nil
}

func (e *Encoder) writeU32Raw(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) beginScope(tag Tag, scope Scope) error {
	if err := e.checkWrite(tag); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(tag), 0, 0, 0, 0)
	e.stack = append(e.stack, frame{start: len(e.buf), scope: scope})
	return nil
}

func (e *Encoder) endScope(expected Scope) error {
	if len(e.stack) <= 1 {
		return errScopeOpen()
	}
	f := e.top()
	if f.scope != expected {
		return errMalformed()
	}
	switch f.scope {
	case ScopeOption, ScopeResult, ScopeVariant:
		if f.count == 0 {
			return errEmptyAdt(f.scope)
		}
	}

	popped := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	bodyLen := len(e.buf) - popped.start
	if bodyLen > 0xFFFFFFFF {
		return errBlobTooLarge(bodyLen)
	}
	binary.LittleEndian.PutUint32(e.buf[popped.start-4:popped.start], uint32(bodyLen))
	e.onItemWritten()
	return nil
}

// Bool encodes a boolean.
func (e *Encoder) Bool(v bool) error {
	tag := TagBoolFalse
	if v {
		tag = TagBoolTrue
	}
	if err := e.writeTag(tag); err != nil {
		return err
	}
	e.onItemWritten()
	return nil
}

// U8 encodes an unsigned 8-bit integer.
func (e *Encoder) U8(v uint8) error {
	if err := e.writeTag(TagU8); err != nil {
		return err
	}
	e.buf = append(e.buf, v)
	e.onItemWritten()
	return nil
}

// S8 encodes a signed 8-bit integer.
func (e *Encoder) S8(v int8) error {
	if err := e.writeTag(TagS8); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(v))
	e.onItemWritten()
	return nil
}

// U16 encodes an unsigned 16-bit integer (LE).
func (e *Encoder) U16(v uint16) error {
	if err := e.writeTag(TagU16); err != nil {
		return err
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
	e.onItemWritten()
	return nil
}

// S16 encodes a signed 16-bit integer (LE).
func (e *Encoder) S16(v int16) error {
	if err := e.writeTag(TagS16); err != nil {
		return err
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	e.buf = append(e.buf, b[:]...)
	e.onItemWritten()
	return nil
}

// U32 encodes an unsigned 32-bit integer (LE).
func (e *Encoder) U32(v uint32) error {
	if err := e.writeTag(TagU32); err != nil {
		return err
	}
	e.writeU32Raw(v)
	e.onItemWritten()
	return nil
}

// S32 encodes a signed 32-bit integer (LE).
func (e *Encoder) S32(v int32) error {
	if err := e.writeTag(TagS32); err != nil {
		return err
	}
	e.writeU32Raw(uint32(v))
	e.onItemWritten()
	return nil
}

// U64 encodes an unsigned 64-bit integer (LE).
func (e *Encoder) U64(v uint64) error {
	if err := e.writeTag(TagU64); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	e.onItemWritten()
	return nil
}

// S64 encodes a signed 64-bit integer (LE).
func (e *Encoder) S64(v int64) error {
	if err := e.writeTag(TagS64); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf = append(e.buf, b[:]...)
	e.onItemWritten()
	return nil
}

// F32 encodes a 32-bit float (LE).
func (e *Encoder) F32(v float32) error {
	if err := e.writeTag(TagF32); err != nil {
		return err
	}
	e.writeU32Raw(math.Float32bits(v))
	e.onItemWritten()
	return nil
}

// F64 encodes a 64-bit float (LE).
func (e *Encoder) F64(v float64) error {
	if err := e.writeTag(TagF64); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	e.buf = append(e.buf, b[:]...)
	e.onItemWritten()
	return nil
}

// Char encodes a unicode scalar value as a u32 (LE).
func (e *Encoder) Char(v rune) error {
	if err := e.writeTag(TagChar); err != nil {
		return err
	}
	e.writeU32Raw(uint32(v))
	e.onItemWritten()
	return nil
}

// Unit encodes the unit value.
func (e *Encoder) Unit() error {
	if err := e.writeTag(TagUnit); err != nil {
		return err
	}
	e.onItemWritten()
	return nil
}

// OptionNone encodes an absent option.
func (e *Encoder) OptionNone() error {
	if err := e.writeTag(TagOptionNone); err != nil {
		return err
	}
	e.onItemWritten()
	return nil
}

// Str encodes a UTF-8 string blob.
func (e *Encoder) Str(v string) error {
	if len(v) > 0xFFFFFFFF {
		return errBlobTooLarge(len(v))
	}
	if err := e.writeTag(TagString); err != nil {
		return err
	}
	e.writeU32Raw(uint32(len(v)))
	e.buf = append(e.buf, v...)
	e.onItemWritten()
	return nil
}

// RawBytes encodes a raw byte blob.
func (e *Encoder) RawBytes(v []byte) error {
	if len(v) > 0xFFFFFFFF {
		return errBlobTooLarge(len(v))
	}
	if err := e.writeTag(TagBytes); err != nil {
		return err
	}
	e.writeU32Raw(uint32(len(v)))
	e.buf = append(e.buf, v...)
	e.onItemWritten()
	return nil
}

// Record encodes an already-framed record body as an opaque blob, used
// when a caller holds a pre-encoded map body it wants carried whole.
func (e *Encoder) Record(body []byte) error {
	if len(body) > 0xFFFFFFFF {
		return errBlobTooLarge(len(body))
	}
	if err := e.writeTag(TagRecord); err != nil {
		return err
	}
	e.writeU32Raw(uint32(len(body)))
	e.buf = append(e.buf, body...)
	e.onItemWritten()
	return nil
}

// ListBegin opens a List scope, closed with ListEnd. Any number of items
// may be written.
func (e *Encoder) ListBegin() error { return e.beginScope(TagList, ScopeList) }

// ListEnd closes a List scope.
func (e *Encoder) ListEnd() error { return e.endScope(ScopeList) }

// MapBegin opens a Map scope, closed with MapEnd. Only VariantBegin/End
// pairs (key-named payloads) may appear as direct children.
func (e *Encoder) MapBegin() error { return e.beginScope(TagMap, ScopeMap) }

// MapEnd closes a Map scope.
func (e *Encoder) MapEnd() error { return e.endScope(ScopeMap) }

// OptionSomeBegin opens an Option::Some scope; exactly one payload value
// must be written before OptionSomeEnd.
func (e *Encoder) OptionSomeBegin() error { return e.beginScope(TagOptionSome, ScopeOption) }

// OptionSomeEnd closes an Option::Some scope.
func (e *Encoder) OptionSomeEnd() error { return e.endScope(ScopeOption) }

// ResultOkBegin opens a Result::Ok scope.
func (e *Encoder) ResultOkBegin() error { return e.beginScope(TagResultOk, ScopeResult) }

// ResultOkEnd closes a Result::Ok scope.
func (e *Encoder) ResultOkEnd() error { return e.endScope(ScopeResult) }

// ResultErrBegin opens a Result::Err scope.
func (e *Encoder) ResultErrBegin() error { return e.beginScope(TagResultErr, ScopeResult) }

// ResultErrEnd closes a Result::Err scope.
func (e *Encoder) ResultErrEnd() error { return e.endScope(ScopeResult) }

// VariantBegin opens a Variant scope and writes its name as the first
// element of the body; a second, final call writes the payload before
// VariantEnd closes the scope.
func (e *Encoder) VariantBegin(name string) error {
	if err := e.beginScope(TagVariant, ScopeVariant); err != nil {
		return err
	}
	if err := e.Str(name); err != nil {
		return err
	}
	// The name itself does not count against the one-payload limit.
	e.top().count = 0
	return nil
}

// VariantEnd closes a Variant scope.
func (e *Encoder) VariantEnd() error { return e.endScope(ScopeVariant) }

// RawValue splices an already-encoded, complete value (as returned by
// Decoder.RawValue, or another Encoder's Flush) into the current scope
// without re-interpreting it. Used by frame forwarding, where a Call's
// argument list is carried opaquely until the target schema is known.
func (e *Encoder) RawValue(b []byte) error {
	if len(b) == 0 {
		return errMalformed()
	}
	tag, ok := TagFromByte(b[0])
	if !ok {
		return errInvalidTag(b[0])
	}
	if err := e.checkWrite(tag); err != nil {
		return err
	}
	e.buf = append(e.buf, b...)
	e.onItemWritten()
	return nil
}

// ArrayBegin opens a fixed-stride Array scope: itemTag must be a
// fixed-width scalar or an opaque record, and every subsequent Push must
// supply exactly stride bytes.
func (e *Encoder) ArrayBegin(itemTag Tag, stride int) error {
	if err := e.checkWrite(TagArray); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(TagArray), 0, 0, 0, 0)
	e.buf = append(e.buf, byte(itemTag))
	var strideB [4]byte
	binary.LittleEndian.PutUint32(strideB[:], uint32(stride))
	e.buf = append(e.buf, strideB[:]...)
	e.stack = append(e.stack, frame{start: len(e.buf) - 5, scope: ScopeArray, arrayTag: itemTag, arrayStride: stride})
	return nil
}

// Push appends one item's raw bytes to an open Array scope. len(item) must
// equal the stride declared in ArrayBegin.
func (e *Encoder) Push(item []byte) error {
	f := e.top()
	if f.scope != ScopeArray {
		return errMalformed()
	}
	if len(item) != f.arrayStride {
		return errMalformed()
	}
	e.buf = append(e.buf, item...)
	f.count++
	return nil
}

// ArrayEnd closes a fixed-stride Array scope.
func (e *Encoder) ArrayEnd() error {
	if len(e.stack) <= 1 {
		return errScopeOpen()
	}
	f := e.top()
	if f.scope != ScopeArray {
		return errMalformed()
	}
	popped := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	// body = item_tag(1) + stride(4) + item bytes...
	bodyLen := len(e.buf) - popped.start
	if bodyLen > 0xFFFFFFFF {
		return errBlobTooLarge(bodyLen)
	}
	binary.LittleEndian.PutUint32(e.buf[popped.start-4:popped.start], uint32(bodyLen))
	e.onItemWritten()
	return nil
}
