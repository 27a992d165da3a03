package bind_test

import (
	"context"

	"github.com/exorun/exorun/bind"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/ledger"
	"github.com/exorun/exorun/peer"
	"github.com/exorun/exorun/registry"
	"github.com/exorun/exorun/rpcval"
	"github.com/exorun/exorun/transport"
	"github.com/exorun/exorun/wire"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeLinker struct {
	defined map[string]engine.HostFunc
}

func newFakeLinker() *fakeLinker { return &fakeLinker{defined: map[string]engine.HostFunc{}} }

func (l *fakeLinker) DefineFunc(interfaceName, funcName string, fn engine.HostFunc) error {
	l.defined[interfaceName+"#"+funcName] = fn
	return nil
}

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

type fakeStore struct{}

func (fakeStore) Close() {}

type recordingInstance struct {
	gotInterface, gotFunc string
	gotArgs               []engine.Value
}

func (r *recordingInstance) Call(ctx context.Context, interfaceName, funcName string, args []engine.Value) ([]engine.Value, error) {
	r.gotInterface, r.gotFunc, r.gotArgs = interfaceName, funcName, args
	return args, nil
}

func echoServer(srv transport.Transport, argTypes []engine.Type) {
	for {
		m, err := srv.Recv()
		if err != nil || m == nil {
			return
		}
		frame, err := rpcval.DecodeFrame(m)
		if err != nil {
			return
		}
		call, ok := frame.(*rpcval.CallFrame)
		if !ok {
			continue
		}
		args, err := rpcval.DecodeValues(wire.NewDecoder(call.Args), argTypes)
		if err != nil {
			return
		}
		enc := wire.NewEncoder()
		if err := rpcval.EncodeValues(enc, args, argTypes); err != nil {
			return
		}
		body, err := enc.Bytes()
		if err != nil {
			return
		}
		reply, err := rpcval.EncodeReplyOk(call.Seq, body)
		if err != nil {
			return
		}
		if err := srv.Send(reply); err != nil {
			return
		}
	}
}

var _ = Describe("Binder.BindLocal", func() {
	It("installs a stub per ledger method that routes into the target instance", func() {
		reg := registry.New(nil)
		comp, err := reg.RegisterComponent(&fakeComponent{}, []byte("comp-1"))
		Expect(err).NotTo(HaveOccurred())

		id := reg.NewInstanceID()
		ri := &recordingInstance{}
		li := registry.NewLocalInstance(id, comp.ID, fakeStore{}, ri)
		reg.RegisterInstance(li)

		target, err := reg.RegisterComponent(&fakeComponent{exports: map[string]engine.FunctionSignature{
			"kv#get": {},
		}}, []byte("comp-2"))
		Expect(err).NotTo(HaveOccurred())
		targetInstID := reg.NewInstanceID()
		targetRI := &recordingInstance{}
		reg.RegisterInstance(registry.NewLocalInstance(targetInstID, target.ID, fakeStore{}, targetRI))

		callerLedger := &ledger.Ledger{
			Interfaces: map[string]map[string]engine.FunctionSignature{
				"kv": {"get": {Params: []engine.Type{{Kind: engine.TypeString}}}},
			},
		}

		linker := newFakeLinker()
		b := bind.New(reg)
		Expect(b.BindLocal(linker, callerLedger, "kv", targetInstID)).To(Succeed())

		stub, ok := linker.defined["kv#get"]
		Expect(ok).To(BeTrue())
		args := []engine.Value{engine.StringVal("k")}
		results, err := stub(context.Background(), args)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(Equal(args))
		Expect(targetRI.gotInterface).To(Equal("kv"))
		Expect(targetRI.gotFunc).To(Equal("get"))
	})

	It("fails with FunctionExportNotFound when the target is missing one method", func() {
		reg := registry.New(nil)
		target, _ := reg.RegisterComponent(&fakeComponent{exports: map[string]engine.FunctionSignature{
			"kv#get": {},
		}}, []byte("comp-3"))
		targetInstID := reg.NewInstanceID()
		reg.RegisterInstance(registry.NewLocalInstance(targetInstID, target.ID, fakeStore{}, &recordingInstance{}))

		callerLedger := &ledger.Ledger{
			Interfaces: map[string]map[string]engine.FunctionSignature{
				"kv": {
					"get": {},
					"put": {},
				},
			},
		}
		b := bind.New(reg)
		err := b.BindLocal(newFakeLinker(), callerLedger, "kv", targetInstID)
		Expect(err).To(MatchError(&bind.Error{Kind: bind.ErrFunctionExportNotFound}))
	})

	It("fails with InterfaceExportNotFound when the target exports none of the methods", func() {
		reg := registry.New(nil)
		target, _ := reg.RegisterComponent(&fakeComponent{}, []byte("comp-4"))
		targetInstID := reg.NewInstanceID()
		reg.RegisterInstance(registry.NewLocalInstance(targetInstID, target.ID, fakeStore{}, &recordingInstance{}))

		callerLedger := &ledger.Ledger{
			Interfaces: map[string]map[string]engine.FunctionSignature{
				"kv": {"get": {}},
			},
		}
		b := bind.New(reg)
		err := b.BindLocal(newFakeLinker(), callerLedger, "kv", targetInstID)
		Expect(err).To(MatchError(&bind.Error{Kind: bind.ErrInterfaceExportNotFound}))
	})
})

var _ = Describe("Binder.BindRemote", func() {
	It("installs a stub that drives a full Call/await cycle against the named peer", func() {
		reg := registry.New(nil)
		client, server := transport.NewDuplexPair()
		argTypes := []engine.Type{{Kind: engine.TypeU32}}
		go echoServer(server, argTypes)

		p := peer.New("remote", client)
		peerID := reg.AddPeer(p)

		callerLedger := &ledger.Ledger{
			Interfaces: map[string]map[string]engine.FunctionSignature{
				"kv": {"get": {Params: argTypes, Results: argTypes}},
			},
		}
		linker := newFakeLinker()
		b := bind.New(reg)
		Expect(b.BindRemote(linker, callerLedger, "kv", peerID, "inst-1")).To(Succeed())

		stub := linker.defined["kv#get"]
		results, err := stub(context.Background(), []engine.Value{engine.U32Val(42)})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(Equal([]engine.Value{engine.U32Val(42)}))
	})

	It("fails with PeerNotFound once the peer has been evicted", func() {
		reg := registry.New(nil)
		client, _ := transport.NewDuplexPair()
		p := peer.New("remote", client)
		peerID := reg.AddPeer(p)
		reg.RemovePeer(peerID)

		callerLedger := &ledger.Ledger{
			Interfaces: map[string]map[string]engine.FunctionSignature{
				"kv": {"get": {}},
			},
		}
		linker := newFakeLinker()
		b := bind.New(reg)
		Expect(b.BindRemote(linker, callerLedger, "kv", peerID, "inst-1")).To(Succeed())

		stub := linker.defined["kv#get"]
		_, err := stub(context.Background(), nil)
		Expect(err).To(MatchError(&bind.Error{Kind: bind.ErrPeerNotFound}))
	})
})

var _ = Describe("SplitMethod", func() {
	It("splits an interface-qualified method", func() {
		i, f := bind.SplitMethod("kv#get")
		Expect(i).To(Equal("kv"))
		Expect(f).To(Equal("get"))
	})

	It("treats an unqualified method as a root import", func() {
		i, f := bind.SplitMethod("log")
		Expect(i).To(Equal(""))
		Expect(f).To(Equal("log"))
	})
})
