// Package registry is the runtime's bookkeeping core: every compiled
// component, every live local instance, and every connected peer is
// pinned here for the lifetime callers expect, per spec.md §5
// (components outlive instances, instances outlive pending calls
// targeting them, peers outlive their pump).
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/OneOfOne/xxhash"
	jsoniter "github.com/json-iterator/go"

	"github.com/exorun/exorun/cmn/xlog"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/ledger"
	"github.com/exorun/exorun/metrics"
	"github.com/exorun/exorun/peer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ComponentID, InstanceID, and PeerID are opaque handles minted by the
// registry. They are never reused within a process lifetime.
type (
	ComponentID uint64
	InstanceID  uint64
	PeerID      uint64
)

// Component pairs a compiled engine.Component with the ledger built from
// its imports at registration time, plus an xxhash64 fingerprint of the
// raw .wasm bytes it was compiled from, used only to flag when two
// registrations carry identical bytes (components are never deduped or
// deregistered — the fingerprint is a diagnostic, not an identity).
type Component struct {
	ID          ComponentID
	Comp        engine.Component
	Ledger      *ledger.Ledger
	Fingerprint uint64
}

// componentDebugView is the shape DebugJSON renders: the ledger's two
// import tables collapsed down to parameter/result counts, since the
// full engine.Type trees are too deep to be useful in a one-line log dump.
type componentDebugView struct {
	ID          ComponentID    `json:"id"`
	Digest      string         `json:"digest"`
	Fingerprint string         `json:"fingerprint"`
	RootFuncs   map[string]int `json:"root_funcs"`  // name -> param count
	Interfaces  map[string]int `json:"interfaces"`  // name -> method count
}

// DebugJSON renders c as a compact JSON summary suitable for a log line,
// the same role jsoniter plays in aistore's downloader/prxs3 debug dumps:
// identity, fingerprint, and import shape, not the full signature trees.
func (c *Component) DebugJSON() ([]byte, error) {
	v := componentDebugView{
		ID:          c.ID,
		Digest:      c.Comp.Digest(),
		Fingerprint: fmt.Sprintf("%016x", c.Fingerprint),
		RootFuncs:   make(map[string]int, len(c.Ledger.RootFuncs)),
		Interfaces:  make(map[string]int, len(c.Ledger.Interfaces)),
	}
	for name, sig := range c.Ledger.RootFuncs {
		v.RootFuncs[name] = len(sig.Params)
	}
	for name, methods := range c.Ledger.Interfaces {
		v.Interfaces[name] = len(methods)
	}
	return json.Marshal(v)
}

// LocalInstance is a live instantiation plus the lock that serializes
// every call into it, per spec.md §5 ("the per-instance store is behind
// a single async mutex; only one task at a time may hold it").
type LocalInstance struct {
	ID          InstanceID
	ComponentID ComponentID

	mu    sync.Mutex
	store engine.Store
	inst  engine.Instance
}

// NewLocalInstance wraps an already-instantiated engine.Instance for
// registration. Exported for instance.Builder, the only intended caller.
func NewLocalInstance(id InstanceID, componentID ComponentID, store engine.Store, inst engine.Instance) *LocalInstance {
	return &LocalInstance{ID: id, ComponentID: componentID, store: store, inst: inst}
}

// Lock acquires the instance's call lock, returning the unlock func and
// the underlying engine.Instance to call through. Callers MUST release
// their own lock (if any) before blocking on this one; see bind's
// lock-order discipline note.
func (li *LocalInstance) Lock() (engine.Instance, func()) {
	li.mu.Lock()
	return li.inst, li.mu.Unlock
}

// Close releases the instance's Store. Safe to call once the instance
// has been removed from the registry.
func (li *LocalInstance) Close() {
	li.store.Close()
}

// Registry is the process-wide set of concurrent hash tables spec.md §5
// calls for: lock-free reads, fine-grained insert locks (sync.Map gives
// us both for free, which is why it replaces the teacher's mutex+map
// pattern here).
type Registry struct {
	nextComponentID atomic.Uint64
	nextInstanceID  atomic.Uint64
	nextPeerID      atomic.Uint64

	components   sync.Map // ComponentID -> *Component
	instances    sync.Map // InstanceID -> *LocalInstance
	peers        sync.Map // PeerID -> *peer.Peer
	names        sync.Map // string -> InstanceID
	fingerprints sync.Map // uint64 -> ComponentID, first registrant only

	engine  engine.Engine
	metrics *metrics.Metrics
}

// New constructs an empty Registry driving components through eng.
// exorun_instances_registered is not recorded; use NewWithMetrics for an
// instrumented Registry.
func New(eng engine.Engine) *Registry {
	return NewWithMetrics(eng, nil)
}

// NewWithMetrics constructs a Registry that tracks
// exorun_instances_registered against m. A nil m disables recording,
// equivalent to New.
func NewWithMetrics(eng engine.Engine, m *metrics.Metrics) *Registry {
	return &Registry{engine: eng, metrics: m}
}

// Engine returns the registry's backing engine, used by instance.Builder
// to compile, instantiate, and construct stores.
func (r *Registry) Engine() engine.Engine { return r.engine }

// Metrics returns the registry's metrics sink, or nil if it was
// constructed with New rather than NewWithMetrics. bind's Local stub
// uses this to record exorun_rpc_calls_total{backend="local"}.
func (r *Registry) Metrics() *metrics.Metrics { return r.metrics }

// RegisterComponent builds comp's ledger, fingerprints wasmBytes with
// xxhash64, and pins both under a fresh ComponentID. A fingerprint
// matching an already-registered component is logged (a likely redundant
// recompile of the same module) but never rejected — components are
// never deduplicated, only flagged.
func (r *Registry) RegisterComponent(comp engine.Component, wasmBytes []byte) (*Component, error) {
	l, err := ledger.Build(comp)
	if err != nil {
		return nil, err
	}
	fp := xxhash.Checksum64(wasmBytes)
	c := &Component{ID: ComponentID(r.nextComponentID.Add(1)), Comp: comp, Ledger: l, Fingerprint: fp}
	if prior, loaded := r.fingerprints.LoadOrStore(fp, c.ID); loaded {
		xlog.Warnf("registry: component %d has the same fingerprint as already-registered component %v", c.ID, prior)
	}
	r.components.Store(c.ID, c)
	return c, nil
}

// Component looks up a previously registered component.
func (r *Registry) Component(id ComponentID) (*Component, bool) {
	v, ok := r.components.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Component), true
}

// NewInstanceID mints the ID a caller will use to construct a
// LocalInstance before registering it; split from RegisterInstance
// because NewLocalInstance takes the ID as an argument. instance.Builder
// calls it only after every link has been applied, so no link can refer
// to the instance being built.
func (r *Registry) NewInstanceID() InstanceID {
	return InstanceID(r.nextInstanceID.Add(1))
}

// RegisterInstance pins li under its own ID. instance.Builder constructs
// li via registry.NewLocalInstance using the ID from NewInstanceID.
func (r *Registry) RegisterInstance(li *LocalInstance) {
	r.instances.Store(li.ID, li)
	if r.metrics != nil {
		r.metrics.InstanceRegistered()
	}
}

// Instance looks up a previously registered local instance.
func (r *Registry) Instance(id InstanceID) (*LocalInstance, bool) {
	v, ok := r.instances.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*LocalInstance), true
}

// RemoveInstance evicts id from the registry without closing its store;
// callers that want the store released should Close it themselves once
// they're sure no in-flight call still holds a reference.
func (r *Registry) RemoveInstance(id InstanceID) {
	if _, existed := r.instances.LoadAndDelete(id); existed && r.metrics != nil {
		r.metrics.InstanceRemoved()
	}
	r.names.Range(func(k, v interface{}) bool {
		if v.(InstanceID) == id {
			r.names.Delete(k)
		}
		return true
	})
}

// BindName exposes instance id under name, the string identifier used
// as a Call frame's "target" on the wire (spec.md §6) — InstanceID
// itself never crosses the wire, since it is only meaningful within
// this process.
func (r *Registry) BindName(name string, id InstanceID) {
	r.names.Store(name, id)
}

// InstanceByName resolves a wire-level target string to the local
// instance bound under it, for server dispatch's target lookup
// (spec.md §4.8 step 3).
func (r *Registry) InstanceByName(name string) (*LocalInstance, bool) {
	v, ok := r.names.Load(name)
	if !ok {
		return nil, false
	}
	return r.Instance(v.(InstanceID))
}

// AddPeer pins p under a fresh PeerID.
func (r *Registry) AddPeer(p *peer.Peer) PeerID {
	id := PeerID(r.nextPeerID.Add(1))
	r.peers.Store(id, p)
	return id
}

// Peer resolves id to a live Peer. bind's Remote stub calls this on
// every invocation (rather than capturing *peer.Peer directly) so that
// reconnection survives rebinding, per spec.md §4.5.
func (r *Registry) Peer(id PeerID) (*peer.Peer, bool) {
	v, ok := r.peers.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*peer.Peer), true
}

// RemovePeer evicts id, e.g. once its transport has been observed dead.
func (r *Registry) RemovePeer(id PeerID) {
	r.peers.Delete(id)
}

// PeerInstance is a PeerID-qualified target, naming a specific instance
// living on the other side of that peer. Supplements spec.md: a
// convenience pairing used by bind's Remote stub and by callers dialing
// out, not named explicitly in spec.md §4.5 but implied by
// "target_id" being meaningful only relative to a peer connection.
type PeerInstance struct {
	Peer   PeerID
	Target string
}

// Instance builds a PeerInstance from a PeerID, since
// "peerID.Instance(target)" reads more naturally at call sites than
// constructing the struct literal directly.
func (id PeerID) Instance(target string) PeerInstance {
	return PeerInstance{Peer: id, Target: target}
}
