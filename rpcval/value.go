package rpcval

import (
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/wire"
)

// EncodeValue encodes val into enc according to ty, bounded to
// maxRecursionDepth nested containers. ty is required (not inferred from
// val alone) because a flags value only carries its active names; the bit
// position of each name comes from ty's definition order.
func EncodeValue(enc *wire.Encoder, val engine.Value, ty engine.Type) error {
	return encodeValueDepth(enc, val, ty, 0)
}

func encodeValueDepth(enc *wire.Encoder, val engine.Value, ty engine.Type, depth int) error {
	if depth > maxRecursionDepth {
		return errRecursionLimit()
	}

	switch val.Kind {
	case engine.KindBool:
		return wireErr(enc.Bool(val.Bool))
	case engine.KindU8:
		return wireErr(enc.U8(val.U8))
	case engine.KindU16:
		return wireErr(enc.U16(val.U16))
	case engine.KindU32:
		return wireErr(enc.U32(val.U32))
	case engine.KindU64:
		return wireErr(enc.U64(val.U64))
	case engine.KindS8:
		return wireErr(enc.S8(val.S8))
	case engine.KindS16:
		return wireErr(enc.S16(val.S16))
	case engine.KindS32:
		return wireErr(enc.S32(val.S32))
	case engine.KindS64:
		return wireErr(enc.S64(val.S64))
	case engine.KindFloat32:
		return wireErr(enc.F32(val.F32))
	case engine.KindFloat64:
		return wireErr(enc.F64(val.F64))
	case engine.KindChar:
		return wireErr(enc.Char(val.Char))
	case engine.KindString:
		return wireErr(enc.Str(val.Str))

	case engine.KindList:
		if err := wireErr(enc.ListBegin()); err != nil {
			return err
		}
		for _, item := range val.List {
			if err := encodeValueDepth(enc, item, *ty.Elem, depth+1); err != nil {
				return err
			}
		}
		return wireErr(enc.ListEnd())

	case engine.KindTuple:
		if err := wireErr(enc.ListBegin()); err != nil {
			return err
		}
		for i, item := range val.List {
			if i >= len(ty.Items) {
				return errTypeMismatch("tuple", "extra element")
			}
			if err := encodeValueDepth(enc, item, ty.Items[i], depth+1); err != nil {
				return err
			}
		}
		return wireErr(enc.ListEnd())

	case engine.KindRecord:
		if err := wireErr(enc.MapBegin()); err != nil {
			return err
		}
		for _, f := range val.Record {
			idx := fieldIndex(ty.Fields, f.Name)
			if idx < 0 {
				return errTypeMismatch("record field declared in type", f.Name)
			}
			if err := wireErr(enc.VariantBegin(f.Name)); err != nil {
				return err
			}
			if err := encodeValueDepth(enc, f.Value, ty.Fields[idx].Type, depth+1); err != nil {
				return err
			}
			if err := wireErr(enc.VariantEnd()); err != nil {
				return err
			}
		}
		return wireErr(enc.MapEnd())

	case engine.KindVariant:
		c := findCase(ty.Cases, val.VariantName)
		if c == nil {
			return errUnknownVariant(val.VariantName)
		}
		if err := wireErr(enc.VariantBegin(val.VariantName)); err != nil {
			return err
		}
		var err error
		if c.Payload != nil && val.VariantPayload != nil {
			err = encodeValueDepth(enc, *val.VariantPayload, *c.Payload, depth+1)
		} else {
			err = wireErr(enc.Unit())
		}
		if err != nil {
			return err
		}
		return wireErr(enc.VariantEnd())

	case engine.KindEnum:
		if !containsName(ty.Names, val.VariantName) {
			return errUnknownVariant(val.VariantName)
		}
		if err := wireErr(enc.VariantBegin(val.VariantName)); err != nil {
			return err
		}
		if err := wireErr(enc.Unit()); err != nil {
			return err
		}
		return wireErr(enc.VariantEnd())

	case engine.KindOption:
		if val.OptionPayload == nil {
			return wireErr(enc.OptionNone())
		}
		if err := wireErr(enc.OptionSomeBegin()); err != nil {
			return err
		}
		if err := encodeValueDepth(enc, *val.OptionPayload, *ty.Elem, depth+1); err != nil {
			return err
		}
		return wireErr(enc.OptionSomeEnd())

	case engine.KindResult:
		if val.ResultOk {
			if err := wireErr(enc.ResultOkBegin()); err != nil {
				return err
			}
		} else {
			if err := wireErr(enc.ResultErrBegin()); err != nil {
				return err
			}
		}
		var err error
		switch {
		case val.ResultOk && ty.OkType != nil && val.ResultPayload != nil:
			err = encodeValueDepth(enc, *val.ResultPayload, *ty.OkType, depth+1)
		case !val.ResultOk && ty.ErrType != nil && val.ResultPayload != nil:
			err = encodeValueDepth(enc, *val.ResultPayload, *ty.ErrType, depth+1)
		default:
			err = wireErr(enc.Unit())
		}
		if err != nil {
			return err
		}
		if val.ResultOk {
			return wireErr(enc.ResultOkEnd())
		}
		return wireErr(enc.ResultErrEnd())

	case engine.KindFlags:
		return EncodeFlags(enc, ty, val.Flags)

	case engine.KindResource, engine.KindFuture, engine.KindStream, engine.KindErrorContext:
		return errUnsupportedType(val.Kind.String())

	default:
		return errUnsupportedType(val.Kind.String())
	}
}

// DecodeValue decodes a single Value from dec according to ty.
func DecodeValue(dec *wire.Decoder, ty engine.Type) (engine.Value, error) {
	return decodeValueDepth(dec, ty, 0)
}

func decodeValueDepth(dec *wire.Decoder, ty engine.Type, depth int) (engine.Value, error) {
	if depth > maxRecursionDepth {
		return engine.Value{}, errRecursionLimit()
	}

	switch ty.Kind {
	case engine.TypeBool:
		v, err := dec.Bool()
		return engine.BoolVal(v), wireErr(err)
	case engine.TypeU8:
		v, err := dec.U8()
		return engine.U8Val(v), wireErr(err)
	case engine.TypeU16:
		v, err := dec.U16()
		return engine.U16Val(v), wireErr(err)
	case engine.TypeU32:
		v, err := dec.U32()
		return engine.U32Val(v), wireErr(err)
	case engine.TypeU64:
		v, err := dec.U64()
		return engine.U64Val(v), wireErr(err)
	case engine.TypeS8:
		v, err := dec.S8()
		return engine.S8Val(v), wireErr(err)
	case engine.TypeS16:
		v, err := dec.S16()
		return engine.S16Val(v), wireErr(err)
	case engine.TypeS32:
		v, err := dec.S32()
		return engine.S32Val(v), wireErr(err)
	case engine.TypeS64:
		v, err := dec.S64()
		return engine.S64Val(v), wireErr(err)
	case engine.TypeFloat32:
		v, err := dec.F32()
		return engine.F32Val(v), wireErr(err)
	case engine.TypeFloat64:
		v, err := dec.F64()
		return engine.F64Val(v), wireErr(err)
	case engine.TypeChar:
		v, err := dec.Char()
		return engine.CharVal(v), wireErr(err)
	case engine.TypeString:
		v, err := dec.Str()
		return engine.StringVal(v), wireErr(err)

	case engine.TypeList:
		it, err := dec.List()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		var items []engine.Value
		for {
			item, err := it.Next()
			if err != nil {
				return engine.Value{}, wireErr(err)
			}
			if item == nil {
				break
			}
			v, err := decodeValueDepth(item, *ty.Elem, depth+1)
			if err != nil {
				return engine.Value{}, err
			}
			items = append(items, v)
		}
		return engine.ListVal(items), nil

	case engine.TypeTuple:
		it, err := dec.List()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		items := make([]engine.Value, 0, len(ty.Items))
		for _, elemTy := range ty.Items {
			item, err := it.Next()
			if err != nil {
				return engine.Value{}, wireErr(err)
			}
			if item == nil {
				return engine.Value{}, errProtocolViolation("tuple too short")
			}
			v, err := decodeValueDepth(item, elemTy, depth+1)
			if err != nil {
				return engine.Value{}, err
			}
			items = append(items, v)
		}
		if extra, err := it.Next(); err != nil {
			return engine.Value{}, wireErr(err)
		} else if extra != nil {
			return engine.Value{}, errProtocolViolation("tuple too long")
		}
		return engine.TupleVal(items), nil

	case engine.TypeRecord:
		it, err := dec.Map()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		found := make(map[string]engine.Value, len(ty.Fields))
		for {
			name, val, ok, err := it.Next()
			if err != nil {
				return engine.Value{}, wireErr(err)
			}
			if !ok {
				break
			}
			idx := fieldIndex(ty.Fields, name)
			if idx < 0 {
				if err := wireErr(val.Skip()); err != nil {
					return engine.Value{}, err
				}
				continue
			}
			v, err := decodeValueDepth(val, ty.Fields[idx].Type, depth+1)
			if err != nil {
				return engine.Value{}, err
			}
			found[name] = v
		}
		result := make([]engine.RecordField, len(ty.Fields))
		for i, f := range ty.Fields {
			v, ok := found[f.Name]
			if !ok {
				return engine.Value{}, errMissingField(f.Name)
			}
			result[i] = engine.RecordField{Name: f.Name, Value: v}
		}
		return engine.RecordVal(result), nil

	case engine.TypeVariant:
		name, body, err := dec.Variant()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		c := findCase(ty.Cases, name)
		if c == nil {
			return engine.Value{}, errUnknownVariant(name)
		}
		if c.Payload != nil {
			v, err := decodeValueDepth(body, *c.Payload, depth+1)
			if err != nil {
				return engine.Value{}, err
			}
			return engine.VariantVal(name, &v), nil
		}
		if err := wireErr(body.Unit()); err != nil {
			return engine.Value{}, err
		}
		return engine.VariantVal(name, nil), nil

	case engine.TypeEnum:
		name, body, err := dec.Variant()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		if err := wireErr(body.Unit()); err != nil {
			return engine.Value{}, err
		}
		if !containsName(ty.Names, name) {
			return engine.Value{}, errUnknownVariant(name)
		}
		return engine.EnumVal(name), nil

	case engine.TypeOption:
		payload, err := dec.Option()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		if payload == nil {
			return engine.OptionVal(nil), nil
		}
		v, err := decodeValueDepth(payload, *ty.Elem, depth+1)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.OptionVal(&v), nil

	case engine.TypeResult:
		okDec, errDec, isOk, err := dec.Result()
		if err != nil {
			return engine.Value{}, wireErr(err)
		}
		if isOk {
			if ty.OkType == nil {
				if err := wireErr(okDec.Unit()); err != nil {
					return engine.Value{}, err
				}
				return engine.ResultVal(true, nil), nil
			}
			v, err := decodeValueDepth(okDec, *ty.OkType, depth+1)
			if err != nil {
				return engine.Value{}, err
			}
			return engine.ResultVal(true, &v), nil
		}
		if ty.ErrType == nil {
			if err := wireErr(errDec.Unit()); err != nil {
				return engine.Value{}, err
			}
			return engine.ResultVal(false, nil), nil
		}
		v, err := decodeValueDepth(errDec, *ty.ErrType, depth+1)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.ResultVal(false, &v), nil

	case engine.TypeFlags:
		names, err := DecodeFlags(dec, ty)
		if err != nil {
			return engine.Value{}, err
		}
		return engine.FlagsVal(names), nil

	case engine.TypeOwn, engine.TypeBorrow, engine.TypeFuture, engine.TypeStream, engine.TypeErrorContext:
		return engine.Value{}, errUnsupportedType("resources or handles are not supported by rpc")

	default:
		return engine.Value{}, errTypeMismatch("known type", "unknown")
	}
}

// DecodeValues decodes a list container against an ordered list of types,
// used for argument and result lists.
func DecodeValues(listDec *wire.Decoder, types []engine.Type) ([]engine.Value, error) {
	it, err := listDec.List()
	if err != nil {
		return nil, wireErr(err)
	}
	vals := make([]engine.Value, 0, len(types))
	for _, ty := range types {
		item, err := it.Next()
		if err != nil {
			return nil, wireErr(err)
		}
		if item == nil {
			return nil, errProtocolViolation("fewer args than types")
		}
		v, err := decodeValueDepth(item, ty, 0)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if extra, err := it.Next(); err != nil {
		return nil, wireErr(err)
	} else if extra != nil {
		return nil, errProtocolViolation("more args than types")
	}
	return vals, nil
}

// EncodeValues encodes an ordered list of values as a list container,
// against the matching ordered list of types.
func EncodeValues(enc *wire.Encoder, vals []engine.Value, types []engine.Type) error {
	if len(vals) != len(types) {
		return errProtocolViolation("value count does not match type count")
	}
	if err := wireErr(enc.ListBegin()); err != nil {
		return err
	}
	for i, v := range vals {
		if err := EncodeValue(enc, v, types[i]); err != nil {
			return err
		}
	}
	return wireErr(enc.ListEnd())
}

func fieldIndex(fields []engine.FieldType, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func findCase(cases []engine.CaseType, name string) *engine.CaseType {
	for i := range cases {
		if cases[i].Name == name {
			return &cases[i]
		}
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
