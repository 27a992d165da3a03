package rpcval

import "github.com/exorun/exorun/wire"

// CallFrame is an RPC call, addressed to a named instance and exported
// method. Args is the raw encoded list-container bytes of the call
// arguments, carried opaquely: the framing layer does not know the
// target's schema, only the instance that will look it up.
type CallFrame struct {
	Seq    uint64
	Target string
	Method string
	Args   []byte
}

// ReplyFrame is the response to a CallFrame of the same Seq. Exactly one
// of Results (Ok) or Reason (!Ok) is meaningful.
type ReplyFrame struct {
	Seq     uint64
	Ok      bool
	Results []byte
	Reason  FailureReason
}

// EncodeCall writes a Call frame.
func EncodeCall(f CallFrame) ([]byte, error) {
	enc := wire.NewEncoder()
	if err := wireErr(enc.VariantBegin("Call")); err != nil {
		return nil, err
	}
	if err := wireErr(enc.MapBegin()); err != nil {
		return nil, err
	}
	if err := encodeMapField(enc, "seq", func() error { return enc.U64(f.Seq) }); err != nil {
		return nil, err
	}
	if err := encodeMapField(enc, "target", func() error { return enc.Str(f.Target) }); err != nil {
		return nil, err
	}
	if err := encodeMapField(enc, "method", func() error { return enc.Str(f.Method) }); err != nil {
		return nil, err
	}
	if err := encodeMapField(enc, "args", func() error { return enc.RawValue(f.Args) }); err != nil {
		return nil, err
	}
	if err := wireErr(enc.MapEnd()); err != nil {
		return nil, err
	}
	if err := wireErr(enc.VariantEnd()); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// EncodeReplyOk writes a successful Reply frame.
func EncodeReplyOk(seq uint64, results []byte) ([]byte, error) {
	return encodeReply(seq, true, results, FailureReason{})
}

// EncodeReplyErr writes a failed Reply frame.
func EncodeReplyErr(seq uint64, reason FailureReason) ([]byte, error) {
	return encodeReply(seq, false, nil, reason)
}

func encodeReply(seq uint64, ok bool, results []byte, reason FailureReason) ([]byte, error) {
	enc := wire.NewEncoder()
	if err := wireErr(enc.VariantBegin("Reply")); err != nil {
		return nil, err
	}
	if err := wireErr(enc.MapBegin()); err != nil {
		return nil, err
	}
	if err := encodeMapField(enc, "seq", func() error { return enc.U64(seq) }); err != nil {
		return nil, err
	}
	err := encodeMapField(enc, "result", func() error {
		if ok {
			if err := enc.ResultOkBegin(); err != nil {
				return err
			}
			if err := enc.RawValue(results); err != nil {
				return err
			}
			return enc.ResultOkEnd()
		}
		if err := enc.ResultErrBegin(); err != nil {
			return err
		}
		if err := EncodeFailureReason(enc, reason); err != nil {
			return err
		}
		return enc.ResultErrEnd()
	})
	if err != nil {
		return nil, err
	}
	if err := wireErr(enc.MapEnd()); err != nil {
		return nil, err
	}
	if err := wireErr(enc.VariantEnd()); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

func encodeMapField(enc *wire.Encoder, name string, write func() error) error {
	if err := wireErr(enc.VariantBegin(name)); err != nil {
		return err
	}
	if err := wireErr(write()); err != nil {
		return err
	}
	return wireErr(enc.VariantEnd())
}

// DecodeFrame decodes a top-level Call or Reply frame, returning either a
// *CallFrame or a *ReplyFrame. Unknown map fields are skipped for
// forward compatibility.
func DecodeFrame(buf []byte) (interface{}, error) {
	dec := wire.NewDecoder(buf)
	name, body, err := dec.Variant()
	if err != nil {
		return nil, wireErr(err)
	}
	switch name {
	case "Call":
		return decodeCallBody(body)
	case "Reply":
		return decodeReplyBody(body)
	default:
		return nil, errUnknownVariant(name)
	}
}

func decodeCallBody(body *wire.Decoder) (*CallFrame, error) {
	it, err := body.Map()
	if err != nil {
		return nil, wireErr(err)
	}
	f := &CallFrame{}
	var haveSeq, haveTarget, haveMethod, haveArgs bool
	for {
		name, val, ok, err := it.Next()
		if err != nil {
			return nil, wireErr(err)
		}
		if !ok {
			break
		}
		switch name {
		case "seq":
			f.Seq, err = val.U64()
			haveSeq = true
		case "target":
			f.Target, err = val.Str()
			haveTarget = true
		case "method":
			f.Method, err = val.Str()
			haveMethod = true
		case "args":
			f.Args, err = val.RawValue()
			haveArgs = true
		default:
			err = val.Skip()
		}
		if err != nil {
			return nil, wireErr(err)
		}
	}
	if !haveSeq {
		return nil, errMissingField("seq")
	}
	if !haveTarget {
		return nil, errMissingField("target")
	}
	if !haveMethod {
		return nil, errMissingField("method")
	}
	if !haveArgs {
		return nil, errMissingField("args")
	}
	return f, nil
}

func decodeReplyBody(body *wire.Decoder) (*ReplyFrame, error) {
	it, err := body.Map()
	if err != nil {
		return nil, wireErr(err)
	}
	f := &ReplyFrame{}
	var haveSeq, haveResult bool
	for {
		name, val, ok, err := it.Next()
		if err != nil {
			return nil, wireErr(err)
		}
		if !ok {
			break
		}
		switch name {
		case "seq":
			f.Seq, err = val.U64()
			haveSeq = true
		case "result":
			err = decodeResultInto(f, val)
			haveResult = true
		default:
			err = val.Skip()
		}
		if err != nil {
			return nil, wireErr(err)
		}
	}
	if !haveSeq {
		return nil, errMissingField("seq")
	}
	if !haveResult {
		return nil, errMissingField("result")
	}
	return f, nil
}

func decodeResultInto(f *ReplyFrame, val *wire.Decoder) error {
	okDec, errDec, isOk, err := val.Result()
	if err != nil {
		return wireErr(err)
	}
	f.Ok = isOk
	if isOk {
		f.Results, err = okDec.RawValue()
		return wireErr(err)
	}
	f.Reason, err = DecodeFailureReason(errDec)
	return err
}

// DecodeSeq extracts only the sequence number from a frame, tolerating a
// malformed or unreadable "args"/"result" block, so a reply that fails to
// fully decode can still be routed back to its originating call.
func DecodeSeq(buf []byte) (uint64, error) {
	dec := wire.NewDecoder(buf)
	_, body, err := dec.Variant()
	if err != nil {
		return 0, wireErr(err)
	}
	it, err := body.Map()
	if err != nil {
		return 0, wireErr(err)
	}
	for {
		name, val, ok, err := it.Next()
		if err != nil {
			return 0, wireErr(err)
		}
		if !ok {
			break
		}
		if name == "seq" {
			seq, err := val.U64()
			return seq, wireErr(err)
		}
		if err := val.Skip(); err != nil {
			return 0, wireErr(err)
		}
	}
	return 0, errMissingField("seq")
}
