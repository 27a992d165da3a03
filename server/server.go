// Package server is the inbound RPC dispatch side: for every complete
// Call frame arriving on a transport, it resolves the target instance
// and method, invokes it, and replies, per spec.md §4.8's seven-step
// algorithm.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package server

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/exorun/exorun/bind"
	"github.com/exorun/exorun/cmn/xlog"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/registry"
	"github.com/exorun/exorun/rpcval"
	"github.com/exorun/exorun/transport"
	"github.com/exorun/exorun/wire"
)

// maxInFlight bounds how many Call frames one Serve loop will dispatch
// concurrently against one transport. Recv still has exactly one owner
// (spec.md §5) — only the handle-and-reply work after a message is
// fanned out, so a slow call can't stall the next message's receipt.
const maxInFlight = 8

// Server dispatches inbound Call frames against reg's registered
// instances. One Server can drive many concurrent transports.
type Server struct {
	reg *registry.Registry
}

// New constructs a Server resolving targets through reg.
func New(reg *registry.Registry) *Server {
	return &Server{reg: reg}
}

// Serve owns t's receive loop until Recv reports an error, an orderly
// EOF, ctx is done, or a dispatched call's reply fails to Send. Receipt
// stays strictly sequential (one owner per spec.md §5), but each
// message's handle-and-reply work is dispatched onto an errgroup.Group
// capped at maxInFlight so a slow Call does not block the next message
// from being read off the wire.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	var sendMu sync.Mutex

	for {
		if err := gctx.Err(); err != nil {
			_ = g.Wait()
			return err
		}
		m, err := t.Recv()
		if err != nil {
			_ = g.Wait()
			return err
		}
		if m == nil {
			return g.Wait()
		}
		g.Go(func() error {
			reply := s.handle(gctx, m)
			if reply == nil {
				return nil
			}
			sendMu.Lock()
			defer sendMu.Unlock()
			return t.Send(reply)
		})
	}
}

// handle runs the seven-step dispatch algorithm for one inbound
// message, returning the Reply bytes to send back, or nil if even a
// sequence number could not be recovered (nothing to reply with).
func (s *Server) handle(ctx context.Context, m []byte) []byte {
	// Step 1: extract seq, tolerating most decode failures so we can
	// still reply with a protocol-violation Reply.
	seq, err := rpcval.DecodeSeq(m)
	if err != nil {
		xlog.Warnf("server: dropping message with unrecoverable seq: %v", err)
		return nil
	}

	// Step 2: decode the frame; reject anything that isn't a Call.
	frame, err := rpcval.DecodeFrame(m)
	if err != nil {
		return s.replyErr(seq, rpcval.ProtocolViolationReason("malformed frame"))
	}
	call, ok := frame.(*rpcval.CallFrame)
	if !ok {
		return s.replyErr(seq, rpcval.ProtocolViolationReason("expected a Call frame"))
	}

	// Step 3: look up the target instance.
	li, ok := s.reg.InstanceByName(call.Target)
	if !ok {
		return s.replyErr(seq, rpcval.InstanceNotFound())
	}

	// Step 4: look up the method as an export of the resolved
	// instance's component, using the component's own type
	// introspection for parameter/result types.
	comp, ok := s.reg.Component(li.ComponentID)
	if !ok {
		return s.replyErr(seq, rpcval.InstanceNotFound())
	}
	interfaceName, funcName := bind.SplitMethod(call.Method)
	sig, ok := comp.Comp.Export(interfaceName, funcName)
	if !ok {
		return s.replyErr(seq, rpcval.MethodNotFound())
	}

	// Step 5: decode the argument list against the declared parameter
	// types, length-checked first so a mismatch is reported precisely
	// as BadArgumentCount rather than a generic decode failure.
	n, err := countListItems(call.Args)
	if err != nil {
		return s.replyErr(seq, rpcval.ProtocolViolationReason("malformed argument list"))
	}
	if n != len(sig.Params) {
		return s.replyErr(seq, rpcval.BadArgumentCount())
	}
	args, err := rpcval.DecodeValues(wire.NewDecoder(call.Args), sig.Params)
	if err != nil {
		return s.replyErr(seq, rpcval.ProtocolViolationReason("argument shape mismatch"))
	}

	// Step 6: acquire the instance lock, call, copy results.
	inst, unlock := li.Lock()
	results, callErr := inst.Call(ctx, interfaceName, funcName, args)
	unlock()

	// Step 7: encode and return the Reply.
	if callErr != nil {
		return s.replyErr(seq, classifyRuntimeError(callErr))
	}
	enc := wire.NewEncoder()
	if err := rpcval.EncodeValues(enc, results, sig.Results); err != nil {
		xlog.Errorf("server: encoding results for %s#%s: %v", interfaceName, funcName, err)
		return s.replyErr(seq, rpcval.AppTrapped())
	}
	body, err := enc.Bytes()
	if err != nil {
		xlog.Errorf("server: flushing results for %s#%s: %v", interfaceName, funcName, err)
		return s.replyErr(seq, rpcval.AppTrapped())
	}
	out, err := rpcval.EncodeReplyOk(seq, body)
	if err != nil {
		xlog.Errorf("server: encoding reply for %s#%s: %v", interfaceName, funcName, err)
		return nil
	}
	return out
}

func (s *Server) replyErr(seq uint64, reason rpcval.FailureReason) []byte {
	out, err := rpcval.EncodeReplyErr(seq, reason)
	if err != nil {
		xlog.Errorf("server: encoding error reply: %v", err)
		return nil
	}
	return out
}

// classifyRuntimeError maps an engine.Instance.Call failure to the
// FailureReason it is reported as on the wire. Any failure that isn't a
// recognized *engine.RuntimeError falls back to AppTrapped, with the
// underlying message kept in logs only — never put on the wire, so
// internals never leak to a caller (spec.md §4.8).
func classifyRuntimeError(err error) rpcval.FailureReason {
	var rt *engine.RuntimeError
	if errors.As(err, &rt) {
		switch rt.Kind {
		case engine.RuntimeOutOfFuel:
			return rpcval.OutOfFuel()
		case engine.RuntimeOutOfMemory:
			return rpcval.OutOfMemory()
		}
	}
	xlog.Warnf("server: application trap: %v", err)
	return rpcval.AppTrapped()
}

// countListItems reports the number of top-level items in an
// already-encoded list container, without decoding any of them against
// a type — used to validate argument count before we know whether the
// declared parameter types even describe the same shape.
func countListItems(listBytes []byte) (int, error) {
	dec := wire.NewDecoder(listBytes)
	it, err := dec.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		item, err := it.Next()
		if err != nil {
			return 0, err
		}
		if item == nil {
			return n, nil
		}
		if err := item.Skip(); err != nil {
			return 0, err
		}
		n++
	}
}
