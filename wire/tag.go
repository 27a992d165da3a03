package wire

// Tag is the single byte that prefixes every encoded value, identifying its
// shape: scalars have a fixed width, blobs and collections carry a 32-bit
// little-endian length, and ADT markers that carry a payload frame it as a
// length-prefixed body.
type Tag uint8

const (
	TagPad Tag = 0x00

	// Fixed-width scalars.
	TagBoolTrue  Tag = 0x01
	TagBoolFalse Tag = 0x02
	TagU8        Tag = 0x03
	TagU16       Tag = 0x04
	TagU32       Tag = 0x05
	TagU64       Tag = 0x06
	TagS8        Tag = 0x07
	TagS16       Tag = 0x08
	TagS32       Tag = 0x09
	TagS64       Tag = 0x0A
	TagF32       Tag = 0x0B
	TagF64       Tag = 0x0C
	TagChar      Tag = 0x0D

	// Unit / void markers.
	TagUnit       Tag = 0x0E
	TagOptionNone Tag = 0x0F

	// Blobs: tag + u32 len + bytes.
	TagString Tag = 0x10
	TagBytes  Tag = 0x11
	TagRecord Tag = 0x12 // opaque record: an already-encoded map body, carried whole.

	// Collections: tag + u32 len + body.
	TagList  Tag = 0x20
	TagMap   Tag = 0x21
	TagArray Tag = 0x22 // fixed-stride: tag + len(4) + item_tag(1) + stride(4) + raw item bytes.

	// ADTs: tag + u32 len + body.
	TagOptionSome Tag = 0x30
	TagResultOk   Tag = 0x31
	TagResultErr  Tag = 0x32
	TagVariant    Tag = 0x33
)

// TagFromByte returns the Tag for b, or ok=false if b does not correspond
// to any known tag.
func TagFromByte(b byte) (Tag, bool) {
	switch Tag(b) {
	case TagPad, TagBoolTrue, TagBoolFalse, TagU8, TagU16, TagU32, TagU64,
		TagS8, TagS16, TagS32, TagS64, TagF32, TagF64, TagChar,
		TagUnit, TagOptionNone, TagString, TagBytes, TagRecord,
		TagList, TagMap, TagArray,
		TagOptionSome, TagResultOk, TagResultErr, TagVariant:
		return Tag(b), true
	default:
		return 0, false
	}
}

// fixedWidth returns the number of payload bytes that follow a fixed-width
// scalar tag, or ok=false if tag is not fixed-width (it is a blob,
// collection, or ADT marker instead).
func fixedWidth(tag Tag) (n int, ok bool) {
	switch tag {
	case TagPad, TagBoolTrue, TagBoolFalse, TagUnit, TagOptionNone:
		return 0, true
	case TagU8, TagS8:
		return 1, true
	case TagU16, TagS16:
		return 2, true
	case TagU32, TagS32, TagF32, TagChar:
		return 4, true
	case TagU64, TagS64, TagF64:
		return 8, true
	default:
		return 0, false
	}
}

// lengthPrefixed reports whether tag carries a u32 length followed by a
// body (blobs, collections, and payload-bearing ADT markers all do).
func lengthPrefixed(tag Tag) bool {
	switch tag {
	case TagString, TagBytes, TagRecord,
		TagList, TagMap, TagArray,
		TagOptionSome, TagResultOk, TagResultErr, TagVariant:
		return true
	default:
		return false
	}
}

func (t Tag) String() string {
	switch t {
	case TagPad:
		return "pad"
	case TagBoolTrue:
		return "bool-true"
	case TagBoolFalse:
		return "bool-false"
	case TagU8:
		return "u8"
	case TagU16:
		return "u16"
	case TagU32:
		return "u32"
	case TagU64:
		return "u64"
	case TagS8:
		return "s8"
	case TagS16:
		return "s16"
	case TagS32:
		return "s32"
	case TagS64:
		return "s64"
	case TagF32:
		return "f32"
	case TagF64:
		return "f64"
	case TagChar:
		return "char"
	case TagUnit:
		return "unit"
	case TagOptionNone:
		return "option-none"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagRecord:
		return "record"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagArray:
		return "array"
	case TagOptionSome:
		return "option-some"
	case TagResultOk:
		return "result-ok"
	case TagResultErr:
		return "result-err"
	case TagVariant:
		return "variant"
	default:
		return "tag(?)"
	}
}
