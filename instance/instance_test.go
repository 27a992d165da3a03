package instance_test

import (
	"context"

	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/instance"
	"github.com/exorun/exorun/ledger"
	"github.com/exorun/exorun/registry"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeComponent struct {
	exports map[string]engine.FunctionSignature
}

func (f *fakeComponent) RootImports() map[string]engine.FunctionSignature { return nil }
func (f *fakeComponent) InterfaceImports() map[string]map[string]engine.FunctionSignature {
	return nil
}
func (f *fakeComponent) Export(interfaceName, funcName string) (engine.FunctionSignature, bool) {
	sig, ok := f.exports[interfaceName+"#"+funcName]
	return sig, ok
}
func (f *fakeComponent) Digest() string { return "fake" }

type fakeStore struct{ closed bool }

func (s *fakeStore) Close() { s.closed = true }

type fakeInstance struct{}

func (fakeInstance) Call(context.Context, string, string, []engine.Value) ([]engine.Value, error) {
	return nil, nil
}

type fakeLinker struct {
	defined map[string]engine.HostFunc
}

func (l *fakeLinker) DefineFunc(interfaceName, funcName string, fn engine.HostFunc) error {
	if l.defined == nil {
		l.defined = map[string]engine.HostFunc{}
	}
	l.defined[interfaceName+"#"+funcName] = fn
	return nil
}

type fakeEngine struct {
	instantiated bool
	lastLinker   *fakeLinker
}

func (e *fakeEngine) Compile(context.Context, []byte) (engine.Component, error) { return nil, nil }
func (e *fakeEngine) NewStore(context.Context) engine.Store                     { return &fakeStore{} }
func (e *fakeEngine) NewLinker() engine.Linker                                  { return &fakeLinker{} }
func (e *fakeEngine) Instantiate(ctx context.Context, comp engine.Component, store engine.Store, linker engine.Linker) (engine.Instance, error) {
	e.instantiated = true
	e.lastLinker = linker.(*fakeLinker)
	return fakeInstance{}, nil
}

type fakeHostProvider struct{ cap string }

func (p fakeHostProvider) Capability() string         { return p.cap }
func (p fakeHostProvider) Install(engine.Linker) error { return nil }

var _ = Describe("Builder.Build", func() {
	It("installs host and local links, then registers the instance", func() {
		eng := &fakeEngine{}
		reg := registry.New(eng)

		target, err := reg.RegisterComponent(&fakeComponent{exports: map[string]engine.FunctionSignature{"kv#get": {}}}, []byte("comp-1"))
		Expect(err).NotTo(HaveOccurred())
		targetInstID := reg.NewInstanceID()
		reg.RegisterInstance(registry.NewLocalInstance(targetInstID, target.ID, &fakeStore{}, fakeInstance{}))

		caller, err := reg.RegisterComponent(&fakeComponent{}, []byte("comp-2"))
		Expect(err).NotTo(HaveOccurred())
		caller.Ledger = &ledger.Ledger{
			Interfaces: map[string]map[string]engine.FunctionSignature{
				"kv":      {"get": {}},
				"logging": {"log": {}},
			},
		}

		b := instance.NewBuilder(reg, caller.ID)
		b.Link(instance.HostLink("logging", fakeHostProvider{cap: "logging"}))
		b.Link(instance.LocalLink("kv", targetInstID))

		id, err := b.Build(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(eng.instantiated).To(BeTrue())
		Expect(eng.lastLinker.defined).To(HaveKey("kv#get"))

		_, ok := reg.Instance(id)
		Expect(ok).To(BeTrue())
	})

	It("rejects a duplicate interface name", func() {
		eng := &fakeEngine{}
		reg := registry.New(eng)
		caller, _ := reg.RegisterComponent(&fakeComponent{}, []byte("comp-3"))
		caller.Ledger = &ledger.Ledger{}

		b := instance.NewBuilder(reg, caller.ID)
		b.Link(instance.HostLink("logging", fakeHostProvider{cap: "logging"}))
		b.Link(instance.HostLink("logging", fakeHostProvider{cap: "logging"}))

		_, err := b.Build(context.Background())
		Expect(err).To(MatchError(&instance.Error{Kind: instance.ErrDuplicateInterface}))
	})

	It("rejects a host link whose provider capability does not match the interface name", func() {
		eng := &fakeEngine{}
		reg := registry.New(eng)
		caller, _ := reg.RegisterComponent(&fakeComponent{}, []byte("comp-4"))
		caller.Ledger = &ledger.Ledger{}

		b := instance.NewBuilder(reg, caller.ID)
		b.Link(instance.HostLink("logging", fakeHostProvider{cap: "kv"}))

		_, err := b.Build(context.Background())
		Expect(err).To(MatchError(&instance.Error{Kind: instance.ErrCapabilityMismatch}))
	})

	It("fails when the component is not registered", func() {
		eng := &fakeEngine{}
		reg := registry.New(eng)
		b := instance.NewBuilder(reg, registry.ComponentID(999))
		_, err := b.Build(context.Background())
		Expect(err).To(MatchError(&instance.Error{Kind: instance.ErrComponentNotFound}))
	})
})
