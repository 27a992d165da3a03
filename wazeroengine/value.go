package wazeroengine

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/exorun/exorun/engine"
)

// packValues flattens values into the uint64 stack slots wazero's
// api.Function.Call / GoModuleFunc expect, one slot per numeric value and
// two (ptr, len) slots per string — allocating guest memory for each
// string through alloc. Any other Kind is rejected: this adapter's
// Canonical ABI support is numeric- and string-only (see package doc).
// Used both to lower a caller's args before invoking a component export
// and to lower a host function's results before returning them to the
// guest that imported it.
func packValues(ctx context.Context, mem api.Memory, alloc api.Function, args []engine.Value) ([]uint64, error) {
	out := make([]uint64, 0, len(args)+4)
	for _, v := range args {
		switch v.Kind {
		case engine.KindBool:
			b := uint64(0)
			if v.Bool {
				b = 1
			}
			out = append(out, b)
		case engine.KindU8:
			out = append(out, uint64(v.U8))
		case engine.KindU16:
			out = append(out, uint64(v.U16))
		case engine.KindU32:
			out = append(out, uint64(v.U32))
		case engine.KindU64:
			out = append(out, v.U64)
		case engine.KindS8:
			out = append(out, uint64(uint32(int32(v.S8))))
		case engine.KindS16:
			out = append(out, uint64(uint32(int32(v.S16))))
		case engine.KindS32:
			out = append(out, uint64(uint32(v.S32)))
		case engine.KindS64:
			out = append(out, uint64(v.S64))
		case engine.KindFloat32:
			out = append(out, uint64(math.Float32bits(v.F32)))
		case engine.KindFloat64:
			out = append(out, math.Float64bits(v.F64))
		case engine.KindChar:
			out = append(out, uint64(v.Char))
		case engine.KindString:
			ptr, length, err := writeString(ctx, mem, alloc, v.Str)
			if err != nil {
				return nil, err
			}
			out = append(out, uint64(ptr), uint64(length))
		default:
			return nil, fmt.Errorf("wazeroengine: %s arguments are not supported by this adapter's numeric+string lowering", v.Kind)
		}
	}
	return out, nil
}

// unpackValues interprets raw wasm stack slots back into engine.Values
// according to a declared Type list, recovered either from a WIT world or,
// for core-only signatures, as opaque numeric types (see
// populateFromCore). Used both to lift a component export's results and
// to lift a host function's args as received from a calling guest.
func unpackValues(mem api.Memory, resultTypes []engine.Type, raw []uint64) ([]engine.Value, error) {
	out := make([]engine.Value, 0, len(resultTypes))
	i := 0
	for _, t := range resultTypes {
		if i >= len(raw) {
			return nil, fmt.Errorf("wazeroengine: function returned fewer stack slots than its declared %d results", len(resultTypes))
		}
		switch t.Kind {
		case engine.TypeBool:
			out = append(out, engine.BoolVal(raw[i] != 0))
			i++
		case engine.TypeU8:
			out = append(out, engine.U8Val(uint8(raw[i])))
			i++
		case engine.TypeU16:
			out = append(out, engine.U16Val(uint16(raw[i])))
			i++
		case engine.TypeU32:
			out = append(out, engine.U32Val(uint32(raw[i])))
			i++
		case engine.TypeU64:
			out = append(out, engine.U64Val(raw[i]))
			i++
		case engine.TypeS8:
			out = append(out, engine.S8Val(int8(int32(uint32(raw[i])))))
			i++
		case engine.TypeS16:
			out = append(out, engine.S16Val(int16(int32(uint32(raw[i])))))
			i++
		case engine.TypeS32:
			out = append(out, engine.S32Val(int32(uint32(raw[i]))))
			i++
		case engine.TypeS64:
			out = append(out, engine.S64Val(int64(raw[i])))
			i++
		case engine.TypeFloat32:
			out = append(out, engine.F32Val(math.Float32frombits(uint32(raw[i]))))
			i++
		case engine.TypeFloat64:
			out = append(out, engine.F64Val(math.Float64frombits(raw[i])))
			i++
		case engine.TypeChar:
			out = append(out, engine.CharVal(rune(raw[i])))
			i++
		case engine.TypeString:
			if i+1 >= len(raw) {
				return nil, fmt.Errorf("wazeroengine: string result missing its (ptr,len) pair")
			}
			s, err := readString(mem, uint32(raw[i]), uint32(raw[i+1]))
			if err != nil {
				return nil, err
			}
			out = append(out, engine.StringVal(s))
			i += 2
		default:
			return nil, fmt.Errorf("wazeroengine: %s results are not supported by this adapter's numeric+string lowering", t.Kind)
		}
	}
	return out, nil
}

func readString(mem api.Memory, ptr, length uint32) (string, error) {
	if mem == nil {
		return "", fmt.Errorf("wazeroengine: module exports no memory, cannot read string")
	}
	data, ok := mem.Read(ptr, length)
	if !ok {
		return "", fmt.Errorf("wazeroengine: string read out of bounds: ptr=%d len=%d", ptr, length)
	}
	return string(data), nil
}

// writeString allocates length(s) bytes via alloc (the component's
// exported cabi_realloc, matched against the two calling conventions the
// reference wippyai/wasm-runtime adapter tolerates: a one-argument
// "simple alloc" and the full four-argument cabi_realloc) and copies s
// into guest memory.
func writeString(ctx context.Context, mem api.Memory, alloc api.Function, s string) (ptr, length uint32, err error) {
	length = uint32(len(s))
	if length == 0 {
		return 0, 0, nil
	}
	if mem == nil || alloc == nil {
		return 0, 0, fmt.Errorf("wazeroengine: module exports no memory/allocator, cannot pass a string argument")
	}

	isSimpleAlloc := len(alloc.Definition().ParamTypes()) < 4
	var stack []uint64
	if isSimpleAlloc {
		stack = []uint64{uint64(length)}
	} else {
		stack = []uint64{0, 0, 1, uint64(length)}
	}
	if err := alloc.CallWithStack(ctx, stack); err != nil {
		return 0, 0, fmt.Errorf("wazeroengine: allocate %d bytes for string argument: %w", length, err)
	}
	ptr = uint32(stack[0])
	if !mem.Write(ptr, []byte(s)) {
		return 0, 0, fmt.Errorf("wazeroengine: write string into guest memory out of bounds: ptr=%d len=%d", ptr, length)
	}
	return ptr, length, nil
}

// engineTypesToValueTypes computes the wazero core-level signature a
// Type list maps to: one api.ValueType slot per numeric type, two
// (i32, i32) slots per string. Returns an error for any Kind this
// adapter's numeric+string lowering can't represent, so an unsupported
// signature fails at bind/instantiate time rather than producing a
// silently wrong core call.
func engineTypesToValueTypes(types []engine.Type) ([]api.ValueType, error) {
	out := make([]api.ValueType, 0, len(types)+1)
	for _, t := range types {
		switch t.Kind {
		case engine.TypeBool, engine.TypeU8, engine.TypeU16, engine.TypeU32,
			engine.TypeS8, engine.TypeS16, engine.TypeS32, engine.TypeChar:
			out = append(out, api.ValueTypeI32)
		case engine.TypeU64, engine.TypeS64:
			out = append(out, api.ValueTypeI64)
		case engine.TypeFloat32:
			out = append(out, api.ValueTypeF32)
		case engine.TypeFloat64:
			out = append(out, api.ValueTypeF64)
		case engine.TypeString:
			out = append(out, api.ValueTypeI32, api.ValueTypeI32)
		default:
			return nil, fmt.Errorf("wazeroengine: %s is not representable by this adapter's numeric+string core signature", t.Kind)
		}
	}
	return out, nil
}
