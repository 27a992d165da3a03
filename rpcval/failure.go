package rpcval

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/exorun/exorun/wire"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FailureKind discriminates a FailureReason.
type FailureKind uint8

const (
	FailureAppTrapped FailureKind = iota
	FailureOutOfFuel
	FailureOutOfMemory
	FailureInstanceNotFound
	FailureMethodNotFound
	FailureBadArgumentCount
	FailureProtocolViolation
	FailureDomain
)

func (k FailureKind) tag() string {
	switch k {
	case FailureAppTrapped:
		return "AppTrapped"
	case FailureOutOfFuel:
		return "OutOfFuel"
	case FailureOutOfMemory:
		return "OutOfMemory"
	case FailureInstanceNotFound:
		return "InstanceNotFound"
	case FailureMethodNotFound:
		return "MethodNotFound"
	case FailureBadArgumentCount:
		return "BadArgumentCount"
	case FailureProtocolViolation:
		return "ProtocolViolation"
	case FailureDomain:
		return "Domain"
	default:
		return ""
	}
}

func failureKindFromTag(tag string) (FailureKind, bool) {
	switch tag {
	case "AppTrapped":
		return FailureAppTrapped, true
	case "OutOfFuel":
		return FailureOutOfFuel, true
	case "OutOfMemory":
		return FailureOutOfMemory, true
	case "InstanceNotFound":
		return FailureInstanceNotFound, true
	case "MethodNotFound":
		return FailureMethodNotFound, true
	case "BadArgumentCount":
		return FailureBadArgumentCount, true
	case "ProtocolViolation":
		return FailureProtocolViolation, true
	case "Domain":
		return FailureDomain, true
	default:
		return 0, false
	}
}

// FailureReason is the closed set of ways a Call can fail that the callee
// reports back explicitly, as opposed to a malformed Reply the peer layer
// synthesizes itself. ProtocolViolation and Domain carry a payload; every
// other case is a unit variant.
type FailureReason struct {
	Kind FailureKind

	// ProtocolViolation detail.
	Detail string

	// Domain failure: a domain-specific numeric code plus message, used by
	// host capabilities that want to surface their own error taxonomy
	// without the peer layer knowing about it.
	Code uint32
	Msg  string
}

// failureReasonJSON is FailureReason's wire shape for log-friendly dumps:
// Code/Msg/Detail are omitted unless the Kind that uses them is set, so a
// unit variant like InstanceNotFound marshals down to just {"kind":"..."}.
type failureReasonJSON struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
	Code   uint32 `json:"code,omitempty"`
	Msg    string `json:"msg,omitempty"`
}

// MarshalJSON renders r for log lines and debug dumps, mirroring the role
// jsoniter plays in aistore's own log-friendly error structures.
func (r FailureReason) MarshalJSON() ([]byte, error) {
	j := failureReasonJSON{Kind: r.Kind.tag()}
	switch r.Kind {
	case FailureProtocolViolation:
		j.Detail = r.Detail
	case FailureDomain:
		j.Code = r.Code
		j.Msg = r.Msg
	}
	return json.Marshal(j)
}

func (r FailureReason) String() string {
	switch r.Kind {
	case FailureProtocolViolation:
		return fmt.Sprintf("protocol violation: %s", r.Detail)
	case FailureDomain:
		return fmt.Sprintf("domain error %d: %s", r.Code, r.Msg)
	default:
		return r.Kind.tag()
	}
}

// AppTrapped reports a guest trap during execution.
func AppTrapped() FailureReason { return FailureReason{Kind: FailureAppTrapped} }

// OutOfFuel reports the engine's fuel budget was exhausted.
func OutOfFuel() FailureReason { return FailureReason{Kind: FailureOutOfFuel} }

// OutOfMemory reports the engine's memory limit was exceeded.
func OutOfMemory() FailureReason { return FailureReason{Kind: FailureOutOfMemory} }

// InstanceNotFound reports the target instance does not exist in the registry.
func InstanceNotFound() FailureReason { return FailureReason{Kind: FailureInstanceNotFound} }

// MethodNotFound reports the target export does not exist.
func MethodNotFound() FailureReason { return FailureReason{Kind: FailureMethodNotFound} }

// BadArgumentCount reports a call's argument count did not match the export's signature.
func BadArgumentCount() FailureReason { return FailureReason{Kind: FailureBadArgumentCount} }

// ProtocolViolationReason reports a malformed frame, named to avoid
// colliding with the rpcval.Error ErrProtocolViolation kind.
func ProtocolViolationReason(detail string) FailureReason {
	return FailureReason{Kind: FailureProtocolViolation, Detail: detail}
}

// DomainReason reports a caller-defined failure code and message.
func DomainReason(code uint32, msg string) FailureReason {
	return FailureReason{Kind: FailureDomain, Code: code, Msg: msg}
}

// EncodeFailureReason writes r as a named variant, matching the frame
// encoding's "Domain" tag for the payloaded case.
func EncodeFailureReason(enc *wire.Encoder, r FailureReason) error {
	if err := wireErr(enc.VariantBegin(r.Kind.tag())); err != nil {
		return err
	}
	var err error
	switch r.Kind {
	case FailureProtocolViolation:
		err = wireErr(enc.Str(r.Detail))
	case FailureDomain:
		if err = wireErr(enc.ListBegin()); err == nil {
			if err = wireErr(enc.U32(r.Code)); err == nil {
				if err = wireErr(enc.Str(r.Msg)); err == nil {
					err = wireErr(enc.ListEnd())
				}
			}
		}
	default:
		err = wireErr(enc.Unit())
	}
	if err != nil {
		return err
	}
	return wireErr(enc.VariantEnd())
}

// DecodeFailureReason reads a FailureReason variant, per EncodeFailureReason.
func DecodeFailureReason(dec *wire.Decoder) (FailureReason, error) {
	name, body, err := dec.Variant()
	if err != nil {
		return FailureReason{}, wireErr(err)
	}
	kind, ok := failureKindFromTag(name)
	if !ok {
		return FailureReason{}, errUnknownVariant(name)
	}
	switch kind {
	case FailureProtocolViolation:
		detail, err := body.Str()
		if err != nil {
			return FailureReason{}, wireErr(err)
		}
		return ProtocolViolationReason(detail), nil
	case FailureDomain:
		it, err := body.List()
		if err != nil {
			return FailureReason{}, wireErr(err)
		}
		codeDec, err := it.Next()
		if err != nil {
			return FailureReason{}, wireErr(err)
		}
		if codeDec == nil {
			return FailureReason{}, errProtocolViolation("Domain failure missing code")
		}
		code, err := codeDec.U32()
		if err != nil {
			return FailureReason{}, wireErr(err)
		}
		msgDec, err := it.Next()
		if err != nil {
			return FailureReason{}, wireErr(err)
		}
		if msgDec == nil {
			return FailureReason{}, errProtocolViolation("Domain failure missing message")
		}
		msg, err := msgDec.Str()
		if err != nil {
			return FailureReason{}, wireErr(err)
		}
		return DomainReason(code, msg), nil
	default:
		if err := wireErr(body.Unit()); err != nil {
			return FailureReason{}, err
		}
		return FailureReason{Kind: kind}, nil
	}
}
