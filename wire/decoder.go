package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Decoder is a zero-copy, bounds-checked reader over an already-complete
// byte slice. Container readers (List, Map, Option, Result, Variant) return
// sub-decoders restricted to the container's body; a Decoder never holds
// more than the bytes it was given and never copies them.
//
// Decoder deliberately does not use Cursor: a Cursor exists to tell a
// transport when a full frame's bytes have arrived (Pending(n) means
// "come back with n more bytes"); once that frame is in hand, decoding it
// is synchronous and any shortfall is a malformed encoding, not a
// not-yet-available one.
type Decoder struct {
	buf []byte
}

// NewDecoder wraps buf for zero-copy decoding.
func NewDecoder(buf []byte) *Decoder { return &Decoder{buf: buf} }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) }

func (d *Decoder) peekTag() (Tag, error) {
	if len(d.buf) < 1 {
		return 0, errMalformed()
	}
	tag, ok := TagFromByte(d.buf[0])
	if !ok {
		return 0, errInvalidTag(d.buf[0])
	}
	return tag, nil
}

func (d *Decoder) consume(n int) error {
	if n > len(d.buf) {
		return errMalformed()
	}
	d.buf = d.buf[n:]
	return nil
}

func (d *Decoder) readU8() (byte, error) {
	if len(d.buf) < 1 {
		return 0, errMalformed()
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b, nil
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if n > len(d.buf) {
		return nil, errMalformed()
	}
	head := d.buf[:n]
	d.buf = d.buf[n:]
	return head, nil
}

func (d *Decoder) readSlice(n int) (*Decoder, error) {
	b, err := d.readBytes(n)
	if err != nil {
		return nil, err
	}
	return NewDecoder(b), nil
}

func (d *Decoder) checkTag(expected Tag) error {
	tag, err := d.peekTag()
	if err != nil {
		return err
	}
	if tag != expected {
		return errTypeMismatch()
	}
	return d.consume(1)
}

func (d *Decoder) readLen() (int, error) {
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint32(b)), nil
}

// clone returns an independent Decoder over the same remaining bytes, used
// to probe ahead (e.g. to size the next list item) without disturbing d.
func (d *Decoder) clone() *Decoder {
	cp := *d
	return &cp
}

// Skip consumes the next value and its nested children without
// interpreting it, for forward-compatible skipping of unknown fields.
func (d *Decoder) Skip() error {
	tag, err := d.peekTag()
	if err != nil {
		return err
	}
	if err := d.consume(1); err != nil {
		return err
	}
	if n, ok := fixedWidth(tag); ok {
		return d.consume(n)
	}
	if tag == TagArray {
		n, err := d.readLen()
		if err != nil {
			return err
		}
		return d.consume(n)
	}
	if lengthPrefixed(tag) {
		n, err := d.readLen()
		if err != nil {
			return err
		}
		return d.consume(n)
	}
	return errMalformed()
}

// RawValue returns the bytes of the next complete value (tag, length
// header if any, and body) without interpreting it, advancing past it.
// Used to carry a value opaquely until its type is known, e.g. a Call's
// argument list before its target schema has been resolved.
func (d *Decoder) RawValue() ([]byte, error) {
	before := d.Remaining()
	probe := d.clone()
	if err := probe.Skip(); err != nil {
		return nil, err
	}
	n := before - probe.Remaining()
	return d.readBytes(n)
}

// Bool decodes a boolean.
func (d *Decoder) Bool() (bool, error) {
	tag, err := d.peekTag()
	if err != nil {
		return false, err
	}
	switch tag {
	case TagBoolTrue:
		return true, d.consume(1)
	case TagBoolFalse:
		return false, d.consume(1)
	default:
		return false, errTypeMismatch()
	}
}

// U8 decodes an unsigned 8-bit integer.
func (d *Decoder) U8() (uint8, error) {
	if err := d.checkTag(TagU8); err != nil {
		return 0, err
	}
	return d.readU8()
}

// S8 decodes a signed 8-bit integer.
func (d *Decoder) S8() (int8, error) {
	if err := d.checkTag(TagS8); err != nil {
		return 0, err
	}
	b, err := d.readU8()
	return int8(b), err
}

// U16 decodes an unsigned 16-bit integer (LE).
func (d *Decoder) U16() (uint16, error) {
	if err := d.checkTag(TagU16); err != nil {
		return 0, err
	}
	b, err := d.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// S16 decodes a signed 16-bit integer (LE).
func (d *Decoder) S16() (int16, error) {
	if err := d.checkTag(TagS16); err != nil {
		return 0, err
	}
	b, err := d.readBytes(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

// U32 decodes an unsigned 32-bit integer (LE).
func (d *Decoder) U32() (uint32, error) {
	if err := d.checkTag(TagU32); err != nil {
		return 0, err
	}
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// S32 decodes a signed 32-bit integer (LE).
func (d *Decoder) S32() (int32, error) {
	if err := d.checkTag(TagS32); err != nil {
		return 0, err
	}
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// U64 decodes an unsigned 64-bit integer (LE).
func (d *Decoder) U64() (uint64, error) {
	if err := d.checkTag(TagU64); err != nil {
		return 0, err
	}
	b, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// S64 decodes a signed 64-bit integer (LE).
func (d *Decoder) S64() (int64, error) {
	if err := d.checkTag(TagS64); err != nil {
		return 0, err
	}
	b, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// F32 decodes a 32-bit float (LE).
func (d *Decoder) F32() (float32, error) {
	if err := d.checkTag(TagF32); err != nil {
		return 0, err
	}
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// F64 decodes a 64-bit float (LE).
func (d *Decoder) F64() (float64, error) {
	if err := d.checkTag(TagF64); err != nil {
		return 0, err
	}
	b, err := d.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Char decodes a unicode scalar value encoded as a u32 (LE).
func (d *Decoder) Char() (rune, error) {
	if err := d.checkTag(TagChar); err != nil {
		return 0, err
	}
	b, err := d.readBytes(4)
	if err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(b)
	if v > utf8.MaxRune || !utf8.ValidRune(rune(v)) {
		return 0, errInvalidUtf8()
	}
	return rune(v), nil
}

// Unit decodes the unit value.
func (d *Decoder) Unit() error { return d.checkTag(TagUnit) }

// OptionNone decodes an absent option marker.
func (d *Decoder) OptionNone() error { return d.checkTag(TagOptionNone) }

// Str decodes a UTF-8 string.
func (d *Decoder) Str() (string, error) {
	if err := d.checkTag(TagString); err != nil {
		return "", err
	}
	n, err := d.readLen()
	if err != nil {
		return "", err
	}
	b, err := d.readBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errInvalidUtf8()
	}
	return string(b), nil
}

// RawBytes decodes a raw byte blob.
func (d *Decoder) RawBytes() ([]byte, error) {
	if err := d.checkTag(TagBytes); err != nil {
		return nil, err
	}
	n, err := d.readLen()
	if err != nil {
		return nil, err
	}
	return d.readBytes(n)
}

// Record decodes an opaque record blob, returning its raw body for the
// caller to decode against a known schema.
func (d *Decoder) Record() ([]byte, error) {
	if err := d.checkTag(TagRecord); err != nil {
		return nil, err
	}
	n, err := d.readLen()
	if err != nil {
		return nil, err
	}
	return d.readBytes(n)
}

func (d *Decoder) enterContainer(expected Tag) (*Decoder, error) {
	if err := d.checkTag(expected); err != nil {
		return nil, err
	}
	n, err := d.readLen()
	if err != nil {
		return nil, err
	}
	return d.readSlice(n)
}

// List decodes a list container, returning an iterator over its items.
func (d *Decoder) List() (*ListIter, error) {
	inner, err := d.enterContainer(TagList)
	if err != nil {
		return nil, err
	}
	return &ListIter{dec: inner}, nil
}

// Map decodes a map container, returning an iterator over its
// (name, variant-payload) entries.
func (d *Decoder) Map() (*MapIter, error) {
	inner, err := d.enterContainer(TagMap)
	if err != nil {
		return nil, err
	}
	return &MapIter{dec: inner}, nil
}

// Option decodes an option, returning the payload sub-decoder if present,
// or nil for None.
func (d *Decoder) Option() (*Decoder, error) {
	tag, err := d.peekTag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case TagOptionNone:
		return nil, d.consume(1)
	case TagOptionSome:
		return d.enterContainer(TagOptionSome)
	default:
		return nil, errTypeMismatch()
	}
}

// Result decodes a result, returning the Ok sub-decoder, the Err
// sub-decoder, and which one is populated.
func (d *Decoder) Result() (ok *Decoder, errDec *Decoder, isOk bool, err error) {
	tag, err := d.peekTag()
	if err != nil {
		return nil, nil, false, err
	}
	switch tag {
	case TagResultOk:
		inner, e := d.enterContainer(TagResultOk)
		return inner, nil, true, e
	case TagResultErr:
		inner, e := d.enterContainer(TagResultErr)
		return nil, inner, false, e
	default:
		return nil, nil, false, errTypeMismatch()
	}
}

// Variant decodes a variant, returning its case name and payload sub-decoder.
func (d *Decoder) Variant() (string, *Decoder, error) {
	inner, err := d.enterContainer(TagVariant)
	if err != nil {
		return "", nil, err
	}
	name, err := inner.Str()
	if err != nil {
		return "", nil, err
	}
	return name, inner, nil
}

// Array decodes a fixed-stride array, returning the declared item tag, the
// stride, and the raw packed item bytes (len(items) == count*stride).
// Decoders must also accept ordinary List encodings carrying the same
// logical items; callers that want array-or-list tolerance should peek the
// tag and dispatch to List when it is not TagArray.
func (d *Decoder) Array() (itemTag Tag, stride int, items []byte, err error) {
	if err := d.checkTag(TagArray); err != nil {
		return 0, 0, nil, err
	}
	bodyLen, err := d.readLen()
	if err != nil {
		return 0, 0, nil, err
	}
	if bodyLen < 5 {
		return 0, 0, nil, errMalformed()
	}
	body, err := d.readBytes(bodyLen)
	if err != nil {
		return 0, 0, nil, err
	}
	tagByte := body[0]
	tag, ok := TagFromByte(tagByte)
	if !ok {
		return 0, 0, nil, errInvalidTag(tagByte)
	}
	if _, fixed := fixedWidth(tag); !fixed && tag != TagRecord {
		return 0, 0, nil, errTypeMismatch()
	}
	stride = int(binary.LittleEndian.Uint32(body[1:5]))
	rest := body[5:]
	if stride <= 0 || len(rest)%stride != 0 {
		return 0, 0, nil, errMalformed()
	}
	return tag, stride, rest, nil
}

// ListIter iterates the items of a decoded List.
type ListIter struct{ dec *Decoder }

// Next returns a Decoder for the next item, or nil at end of list.
func (it *ListIter) Next() (*Decoder, error) {
	if it.dec.Remaining() == 0 {
		return nil, nil
	}
	probe := it.dec.clone()
	if err := probe.Skip(); err != nil {
		return nil, err
	}
	n := it.dec.Remaining() - probe.Remaining()
	return it.dec.readSlice(n)
}

// MapIter iterates the (name, value) entries of a decoded Map. Each entry
// is wire-encoded as a Variant whose case name is the field/key name.
type MapIter struct{ dec *Decoder }

// Next returns the next entry's name and value sub-decoder, or ok=false at
// end of map.
func (it *MapIter) Next() (name string, val *Decoder, ok bool, err error) {
	if it.dec.Remaining() == 0 {
		return "", nil, false, nil
	}
	tag, err := it.dec.peekTag()
	if err != nil {
		return "", nil, false, err
	}
	if tag != TagVariant {
		return "", nil, false, errInvalidMapEntry()
	}
	name, val, err = it.dec.Variant()
	if err != nil {
		return "", nil, false, err
	}
	return name, val, true, nil
}
