// Package instance is the fluent instance builder of spec.md §4.7:
// accumulate a component ID and an ordered list of interface links, then
// build() a fresh linker, apply every link, and instantiate.
/*
 * Copyright (c) 2024-2026, exorun authors. All rights reserved.
 */
package instance

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/exorun/exorun/bind"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/registry"
)

// HostProvider installs its own native callbacks for interfaceName
// directly against linker, bypassing the binder entirely — the Host
// variant of Link, per spec.md §4.5.
type HostProvider interface {
	// Capability names the provider's own interface (e.g. "wasi:logging",
	// "kv"), checked against the interface name it's linked under so a
	// mismatched wiring fails with a clear diagnostic rather than
	// silently installing the wrong capability.
	Capability() string
	Install(linker engine.Linker) error
}

type linkKind uint8

const (
	linkHost linkKind = iota + 1
	linkLocal
	linkRemote
)

// Link is one entry in a Builder's ordered link list: install a Host
// capability, bind an interface to a Local instance, or bind it to a
// Remote peer instance.
type Link struct {
	kind   linkKind
	iface  string
	host   HostProvider
	local  registry.InstanceID
	remote registry.PeerInstance
}

// HostLink installs provider's capability under interfaceName.
func HostLink(interfaceName string, provider HostProvider) Link {
	return Link{kind: linkHost, iface: interfaceName, host: provider}
}

// LocalLink binds interfaceName to an already-registered local instance.
func LocalLink(interfaceName string, target registry.InstanceID) Link {
	return Link{kind: linkLocal, iface: interfaceName, local: target}
}

// RemoteLink binds interfaceName to an instance living on the far side
// of a peer connection.
func RemoteLink(interfaceName string, target registry.PeerInstance) Link {
	return Link{kind: linkRemote, iface: interfaceName, remote: target}
}

// ErrorKind discriminates a builder failure.
type ErrorKind uint8

const (
	ErrComponentNotFound ErrorKind = iota + 1
	ErrDuplicateInterface
	ErrCapabilityMismatch
)

// Error is a Builder.Build failure.
type Error struct {
	Kind      ErrorKind
	Interface string
	Want      string // CapabilityMismatch: the interface name linked under
	Got       string // CapabilityMismatch: the provider's own capability name
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrComponentNotFound:
		return "instance: component not found"
	case ErrDuplicateInterface:
		return fmt.Sprintf("instance: interface %q linked more than once", e.Interface)
	case ErrCapabilityMismatch:
		return fmt.Sprintf("instance: interface %q linked to a %q provider", e.Want, e.Got)
	default:
		return "instance: unknown error"
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

// Builder accumulates links for one not-yet-instantiated component.
type Builder struct {
	reg    *registry.Registry
	binder *bind.Binder

	componentID registry.ComponentID
	links       []Link
}

// NewBuilder starts accumulating links for componentID.
func NewBuilder(reg *registry.Registry, componentID registry.ComponentID) *Builder {
	return &Builder{reg: reg, binder: bind.New(reg), componentID: componentID}
}

// Link appends one link to the builder's ordered list. Duplicate
// interface names are rejected at Build time, not here, since the
// builder does not yet know whether a later call will remove an
// earlier one (it never will, but the rejection belongs with the rest
// of Build's validation, matching spec.md's "the second install
// fails").
func (b *Builder) Link(l Link) *Builder {
	b.links = append(b.links, l)
	return b
}

// guardedLinker serializes DefineFunc calls made concurrently by Build's
// errgroup fan-out. Link application is independent per interface (each
// link only ever defines functions under its own interface name, never
// reads another's), but the underlying engine.Linker is not guaranteed
// safe for concurrent writers, so every call is funneled through one
// mutex shared across the goroutines applying this build's links.
type guardedLinker struct {
	mu    *sync.Mutex
	inner engine.Linker
}

func (g guardedLinker) DefineFunc(interfaceName, funcName string, fn engine.HostFunc) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inner.DefineFunc(interfaceName, funcName, fn)
}

// Build resolves the component and its ledger, constructs a fresh
// linker, applies every link, instantiates, and registers the resulting
// LocalInstance, returning its InstanceID.
//
// Duplicate interface names are rejected by a sequential pre-pass over
// the link list (insertion order decides which one is "the second," per
// spec.md), before any link is actually applied. Once that pre-pass
// confirms every link targets a distinct interface, the links no longer
// depend on one another, so their installation/binding is fanned out
// across an errgroup.Group — independent, order-insensitive work with
// first-error propagation, the same shape the rest of the example pack
// reaches for errgroup to express — rather than applied one at a time.
func (b *Builder) Build(ctx context.Context) (registry.InstanceID, error) {
	comp, ok := b.reg.Component(b.componentID)
	if !ok {
		return 0, &Error{Kind: ErrComponentNotFound}
	}

	seen := make(map[string]bool, len(b.links))
	for _, l := range b.links {
		if seen[l.iface] {
			return 0, &Error{Kind: ErrDuplicateInterface, Interface: l.iface}
		}
		seen[l.iface] = true
	}

	eng := b.reg.Engine()
	linker := eng.NewLinker()
	guard := guardedLinker{mu: &sync.Mutex{}, inner: linker}

	var g errgroup.Group
	for _, l := range b.links {
		l := l
		g.Go(func() error {
			switch l.kind {
			case linkHost:
				if l.host.Capability() != l.iface {
					return &Error{Kind: ErrCapabilityMismatch, Want: l.iface, Got: l.host.Capability()}
				}
				return l.host.Install(guard)
			case linkLocal:
				return b.binder.BindLocal(guard, comp.Ledger, l.iface, l.local)
			case linkRemote:
				return b.binder.BindRemote(guard, comp.Ledger, l.iface, l.remote.Peer, l.remote.Target)
			default:
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	id := b.reg.NewInstanceID()
	store := eng.NewStore(ctx)
	inst, err := eng.Instantiate(ctx, comp.Comp, store, linker)
	if err != nil {
		store.Close()
		return 0, err
	}

	li := registry.NewLocalInstance(id, b.componentID, store, inst)
	b.reg.RegisterInstance(li)
	return id, nil
}
