// Package peer implements the RPC client side of a connection to a remote
// runtime: one Peer per transport, a background pump decoding Replies and
// routing them back to the Call that is awaiting them.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package peer

import (
	"context"
	"sync"
	"time"

	"github.com/exorun/exorun/cmn/xlog"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/metrics"
	"github.com/exorun/exorun/rpcval"
	"github.com/exorun/exorun/transport"
	"github.com/exorun/exorun/wire"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// CallTimeout bounds how long SendAndAwait waits for a Reply before
// failing the call. A package variable, not a const, so tests can shrink it.
var CallTimeout = 30 * time.Second

// PendingResponse is what the pump needs to resolve one outstanding call:
// the result types to validate and decode the reply against, and the
// channel its caller is blocked receiving from.
type PendingResponse struct {
	ResultTypes []engine.Type
	ch          chan pendingResult
}

type pendingResult struct {
	values []engine.Value
	err    error
}

// Peer owns one transport exclusively and multiplexes concurrent calls
// over it by sequence number.
type Peer struct {
	Name      string
	transport transport.Transport
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics

	nextSeq atomic.Uint64
	pending sync.Map // uint64 -> *PendingResponse

	done     chan struct{}
	closeOne sync.Once
	closed   atomic.Bool
}

// New constructs a Peer over t and starts its background pump. Call
// metrics are not recorded; use NewWithMetrics for an instrumented Peer.
func New(name string, t transport.Transport) *Peer {
	return NewWithMetrics(name, t, nil)
}

// NewWithMetrics constructs a Peer that records exorun_rpc_calls_total,
// exorun_rpc_call_seconds, and exorun_pump_resets_total against m. A nil
// m disables recording, equivalent to New.
func NewWithMetrics(name string, t transport.Transport, m *metrics.Metrics) *Peer {
	p := &Peer{Name: name, transport: t, log: xlog.With("peer", name), metrics: m, done: make(chan struct{})}
	go p.pump()
	return p
}

// PrepareCall mints a fresh sequence number and registers a pending slot
// for its reply, validated and decoded against resultTypes.
func (p *Peer) PrepareCall(resultTypes []engine.Type) (seq uint64, pr *PendingResponse) {
	seq = p.nextSeq.Add(1)
	pr = &PendingResponse{ResultTypes: resultTypes, ch: make(chan pendingResult, 1)}
	p.pending.Store(seq, pr)
	return seq, pr
}

// SendAndAwait writes payload to the transport, then blocks for this
// peer's reply under CallTimeout, ctx's cancellation, or the pump
// observing the transport go away. On any failure the pending slot is
// cleaned up before returning.
func (p *Peer) SendAndAwait(ctx context.Context, seq uint64, payload []byte, pr *PendingResponse) ([]engine.Value, error) {
	if p.closed.Load() {
		p.pending.Delete(seq)
		return nil, transport.ConnectionLost()
	}
	if err := p.transport.Send(payload); err != nil {
		p.pending.Delete(seq)
		return nil, err
	}
	select {
	case res := <-pr.ch:
		return res.values, res.err
	case <-time.After(CallTimeout):
		p.pending.Delete(seq)
		return nil, transport.Timeout()
	case <-ctx.Done():
		p.pending.Delete(seq)
		return nil, ctx.Err()
	case <-p.done:
		p.pending.Delete(seq)
		return nil, transport.ConnectionLost()
	}
}

// Call performs one full request/response cycle: encode args, frame a
// Call, send it, and await the matching Reply.
func (p *Peer) Call(ctx context.Context, target, method string, args []engine.Value, argTypes, resultTypes []engine.Type) ([]engine.Value, error) {
	enc := wire.NewEncoder()
	if err := rpcval.EncodeValues(enc, args, argTypes); err != nil {
		return nil, err
	}
	argsBody, err := enc.Bytes()
	if err != nil {
		return nil, err
	}

	seq, pr := p.PrepareCall(resultTypes)
	payload, err := rpcval.EncodeCall(rpcval.CallFrame{Seq: seq, Target: target, Method: method, Args: argsBody})
	if err != nil {
		p.pending.Delete(seq)
		return nil, err
	}

	start := time.Now()
	vals, callErr := p.SendAndAwait(ctx, seq, payload, pr)
	if p.metrics != nil {
		p.metrics.RecordRemoteCall(callErr, time.Since(start).Seconds())
	}
	return vals, callErr
}

// Close marks the peer closed and unblocks any call still waiting on it.
// Idempotent. The pump itself exits on its own once Recv reports the
// transport gone; Close is for callers that want to stop waiting on a
// peer proactively (e.g. registry eviction) without closing the
// transport out from under a concurrent Recv.
func (p *Peer) Close() {
	p.closed.Store(true)
	p.closeOne.Do(func() { close(p.done) })
}

// pump is the background goroutine that owns transport.Recv and routes
// every decoded Reply back to its waiting Call, per spec.md §4.6.
func (p *Peer) pump() {
	defer p.Close()
	for {
		m, err := p.transport.Recv()
		if err != nil {
			p.failAll(err)
			return
		}
		if m == nil {
			p.failAll(transport.ConnectionLost())
			return
		}

		frame, err := rpcval.DecodeFrame(m)
		if err != nil {
			p.log.Warnf("pump: malformed frame: %v", err)
			p.failAll(&rpcval.Error{Kind: rpcval.ErrProtocolViolation, Detail: "malformed frame"})
			return
		}
		reply, ok := frame.(*rpcval.ReplyFrame)
		if !ok {
			p.log.Warnf("pump: expected a Reply, got a Call")
			p.failAll(&rpcval.Error{Kind: rpcval.ErrProtocolViolation, Detail: "expected a Reply frame"})
			return
		}

		v, ok := p.pending.LoadAndDelete(reply.Seq)
		if !ok {
			// Late duplicate of an already-resolved or abandoned call; the
			// only tolerated protocol soft-failure.
			continue
		}
		pr := v.(*PendingResponse)

		if !reply.Ok {
			pr.ch <- pendingResult{err: remoteErr(reply.Reason)}
			continue
		}
		vals, err := rpcval.DecodeValues(wire.NewDecoder(reply.Results), pr.ResultTypes)
		if err != nil {
			detail := "result count or shape mismatch: " + err.Error()
			pr.ch <- pendingResult{err: &rpcval.Error{Kind: rpcval.ErrProtocolViolation, Detail: detail}}
			continue
		}
		pr.ch <- pendingResult{values: vals}
	}
}

// failAll delivers cause to every still-pending call and drains the map;
// called once, from the pump goroutine, when the transport is no longer
// usable.
func (p *Peer) failAll(cause error) {
	if p.metrics != nil {
		p.metrics.PumpReset()
	}
	p.pending.Range(func(key, value interface{}) bool {
		pr := value.(*PendingResponse)
		pr.ch <- pendingResult{err: cause}
		p.pending.Delete(key)
		return true
	})
}

// remoteErr wraps a FailureReason reported by the callee as a Go error a
// caller can inspect with errors.As.
func remoteErr(reason rpcval.FailureReason) error {
	return &RemoteError{Reason: reason}
}

// RemoteError is returned from Call when the callee replied with a
// FailureReason rather than results.
type RemoteError struct {
	Reason rpcval.FailureReason
}

func (e *RemoteError) Error() string { return "peer: remote failure: " + e.Reason.String() }
