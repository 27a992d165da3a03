// Package bind is the linker/binder: it turns a ledger's declared
// imports into installed engine.HostFunc stubs, one per (interface,
// method) pair, per spec.md §4.5.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package bind

import (
	"context"
	"fmt"

	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/ledger"
	"github.com/exorun/exorun/registry"
)

// ErrorKind discriminates a binder failure.
type ErrorKind uint8

const (
	ErrInterfaceExportNotFound ErrorKind = iota + 1
	ErrFunctionExportNotFound
	ErrInstanceNotFound
	ErrPeerNotFound
)

// Error is a binder-time failure: a caller's declared import has no
// matching export on the component it is being bound against, or the
// target instance/peer named by a link no longer resolves.
type Error struct {
	Kind      ErrorKind
	Interface string
	Method    string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInterfaceExportNotFound:
		return fmt.Sprintf("bind: target does not export interface %q", e.Interface)
	case ErrFunctionExportNotFound:
		return fmt.Sprintf("bind: target does not export %s#%s", e.Interface, e.Method)
	case ErrInstanceNotFound:
		return fmt.Sprintf("bind: target instance for %s#%s no longer exists", e.Interface, e.Method)
	case ErrPeerNotFound:
		return fmt.Sprintf("bind: peer for %s#%s no longer exists", e.Interface, e.Method)
	default:
		return "bind: unknown error"
	}
}

// Is lets errors.Is/gomega.MatchError match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func errInterfaceExportNotFound(iface string) error {
	return &Error{Kind: ErrInterfaceExportNotFound, Interface: iface}
}

func errFunctionExportNotFound(iface, method string) error {
	return &Error{Kind: ErrFunctionExportNotFound, Interface: iface, Method: method}
}

func errInstanceNotFound(iface, method string) error {
	return &Error{Kind: ErrInstanceNotFound, Interface: iface, Method: method}
}

func errPeerNotFound(iface, method string) error {
	return &Error{Kind: ErrPeerNotFound, Interface: iface, Method: method}
}

// Binder installs Local and Remote stubs against a Linker on behalf of
// instance.Builder. Host stubs bypass the binder entirely (installed
// directly by the capability provider, per spec.md §4.5).
type Binder struct {
	reg *registry.Registry
}

// New constructs a Binder resolving Local/Remote targets through reg.
func New(reg *registry.Registry) *Binder {
	return &Binder{reg: reg}
}

// methodsFor returns the caller ledger's declared methods for
// interfaceName, or its root functions if interfaceName is empty.
func methodsFor(l *ledger.Ledger, interfaceName string) map[string]engine.FunctionSignature {
	if interfaceName == "" {
		return l.RootFuncs
	}
	return l.Interfaces[interfaceName]
}

// BindLocal installs, for every method the caller's ledger declares
// under interfaceName, a stub that invokes the same-named export on
// target directly — moving typed engine.Value slices in process memory,
// never through the wire codec. Before installing anything it verifies
// bidirectionally that target's component actually exports
// interfaceName; a missing export fails the whole bind, installing
// nothing partially.
func (b *Binder) BindLocal(linker engine.Linker, callerLedger *ledger.Ledger, interfaceName string, target registry.InstanceID) error {
	methods := methodsFor(callerLedger, interfaceName)
	li, ok := b.reg.Instance(target)
	if !ok {
		return errInstanceNotFound(interfaceName, "")
	}
	comp, ok := b.reg.Component(li.ComponentID)
	if !ok {
		return errInstanceNotFound(interfaceName, "")
	}
	missing := make([]string, 0, len(methods))
	for method := range methods {
		if _, ok := comp.Comp.Export(interfaceName, method); !ok {
			missing = append(missing, method)
		}
	}
	if len(missing) > 0 {
		if interfaceName != "" && len(missing) == len(methods) {
			return errInterfaceExportNotFound(interfaceName)
		}
		return errFunctionExportNotFound(interfaceName, missing[0])
	}
	for method := range methods {
		method := method
		stub := func(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
			li, ok := b.reg.Instance(target)
			if !ok {
				return nil, errInstanceNotFound(interfaceName, method)
			}
			inst, unlock := li.Lock()
			results, callErr := inst.Call(ctx, interfaceName, method, args)
			unlock()
			if m := b.reg.Metrics(); m != nil {
				m.RecordLocalCall(callErr)
			}
			return results, callErr
		}
		if err := linker.DefineFunc(interfaceName, method, stub); err != nil {
			return err
		}
	}
	return nil
}

// BindRemote installs, for every method the caller's ledger declares
// under interfaceName, a stub that resolves peerID to a live Peer on
// every invocation (so reconnection survives rebinding) and drives a
// full Call/await cycle against targetID on the far side, per spec.md
// §4.5's Remote stub description.
func (b *Binder) BindRemote(linker engine.Linker, callerLedger *ledger.Ledger, interfaceName string, peerID registry.PeerID, targetID string) error {
	methods := methodsFor(callerLedger, interfaceName)
	for method, sig := range methods {
		method, sig := method, sig
		stub := func(ctx context.Context, args []engine.Value) ([]engine.Value, error) {
			p, ok := b.reg.Peer(peerID)
			if !ok {
				return nil, errPeerNotFound(interfaceName, method)
			}
			return p.Call(ctx, targetID, qualifiedMethod(interfaceName, method), args, sig.Params, sig.Results)
		}
		if err := linker.DefineFunc(interfaceName, method, stub); err != nil {
			return err
		}
	}
	return nil
}

// qualifiedMethod is the method name sent on the wire: bare for root
// imports, "interface#method" otherwise, so the server side's export
// lookup (§4.8 step 4) can split it back apart unambiguously.
func qualifiedMethod(interfaceName, method string) string {
	if interfaceName == "" {
		return method
	}
	return interfaceName + "#" + method
}

// SplitMethod reverses qualifiedMethod, used by server dispatch to
// recover the (interfaceName, funcName) pair from a wire Call's method
// field.
func SplitMethod(wireMethod string) (interfaceName, funcName string) {
	for i := 0; i < len(wireMethod); i++ {
		if wireMethod[i] == '#' {
			return wireMethod[:i], wireMethod[i+1:]
		}
	}
	return "", wireMethod
}
