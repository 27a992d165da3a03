package rpcval

import (
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/wire"
)

// EncodeFlags packs active (the set of active flag names, any order) into
// a little-endian bitmap addressed by each name's index in ty.Names, and
// writes it as a wire bytes blob: byte_idx = idx/8, bit_idx = idx%8.
func EncodeFlags(enc *wire.Encoder, ty engine.Type, active []string) error {
	numBytes := (len(ty.Names) + 7) / 8
	bitmap := make([]byte, numBytes)
	for _, name := range active {
		idx := indexOf(ty.Names, name)
		if idx < 0 {
			return errUnknownVariant(name)
		}
		bitmap[idx/8] |= 1 << uint(idx%8)
	}
	return wireErr(enc.RawBytes(bitmap))
}

// DecodeFlags unpacks a bitmap bytes blob into the set of active flag
// names, reported in ty's definition order.
func DecodeFlags(dec *wire.Decoder, ty engine.Type) ([]string, error) {
	bitmap, err := dec.RawBytes()
	if err != nil {
		return nil, wireErr(err)
	}
	var active []string
	for idx, name := range ty.Names {
		byteIdx, bitIdx := idx/8, idx%8
		if byteIdx >= len(bitmap) {
			break
		}
		if bitmap[byteIdx]&(1<<uint(bitIdx)) != 0 {
			active = append(active, name)
		}
	}
	return active, nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
