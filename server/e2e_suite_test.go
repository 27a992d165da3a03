package server_test

// This file is the ginkgo suite SPEC_FULL.md's AMBIENT STACK section
// promises: a dedicated end-to-end suite driving spec.md §8's six named
// scenarios rather than server.Serve's individual dispatch branches (those
// live in server_test.go). Scenarios 1, 2, and 4 each require a compiled
// guest component invoking its own imports (a real .wasm fixture); no
// such fixture exists anywhere in this module — see wazeroengine's "Known
// gap" note and DESIGN.md's cmd/exorun-demo entry — so they are not
// reproducible here without running the Go/wasm toolchain. Scenarios 3,
// 5, and 6 need no guest at all: 3 is a wire-level property of the
// peer/server/bind stack, 5 is a pump-termination property, and 6 is a
// ledger-construction property. All three are exercised below, for real,
// against the production packages.

import (
	"context"
	"sync"
	"time"

	"github.com/exorun/exorun/bind"
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/ledger"
	"github.com/exorun/exorun/peer"
	"github.com/exorun/exorun/registry"
	"github.com/exorun/exorun/rpcval"
	"github.com/exorun/exorun/server"
	"github.com/exorun/exorun/transport"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// spyTransport records every payload handed to Send, in order, so a test
// can assert on exactly how many frames crossed the wire.
type spyTransport struct {
	transport.Transport
	mu   sync.Mutex
	sent [][]byte
}

func (s *spyTransport) Send(payload []byte) error {
	s.mu.Lock()
	s.sent = append(s.sent, append([]byte(nil), payload...))
	s.mu.Unlock()
	return s.Transport.Send(payload)
}

func (s *spyTransport) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

// e2eLinker is bind.BindRemote's install target: a minimal engine.Linker
// that just remembers each installed stub by qualified name, the same
// role bind_test.go's fakeLinker plays in-package.
type e2eLinker struct {
	defined map[string]engine.HostFunc
}

func newE2ELinker() *e2eLinker { return &e2eLinker{defined: map[string]engine.HostFunc{}} }

func (l *e2eLinker) DefineFunc(interfaceName, funcName string, fn engine.HostFunc) error {
	l.defined[interfaceName+"#"+funcName] = fn
	return nil
}

// addInstance is the "math-service" side of scenario 3: a fake
// engine.Instance whose one export adds its two u32 arguments, standing
// in for a real component export without requiring a compiled guest.
type addInstance struct{}

func (addInstance) Call(ctx context.Context, interfaceName, funcName string, args []engine.Value) ([]engine.Value, error) {
	return []engine.Value{engine.U32Val(args[0].U32 + args[1].U32)}, nil
}

var _ = Describe("End-to-end scenarios (spec §8)", func() {
	It("scenario 3: a remote call crosses the wire as exactly one Call and one Reply", func() {
		reg := registry.New(nil)
		u32Types := []engine.Type{{Kind: engine.TypeU32}, {Kind: engine.TypeU32}}
		resultTypes := []engine.Type{{Kind: engine.TypeU32}}

		comp, err := reg.RegisterComponent(&fakeComponent{exports: map[string]engine.FunctionSignature{
			"#add": {Params: u32Types, Results: resultTypes},
		}}, []byte("math-comp"))
		Expect(err).NotTo(HaveOccurred())
		instID := reg.NewInstanceID()
		reg.RegisterInstance(registry.NewLocalInstance(instID, comp.ID, fakeStore{}, addInstance{}))
		reg.BindName("math-service", instID)

		clientSide, serverSide := transport.NewDuplexPair()
		spy := &spyTransport{Transport: clientSide}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := server.New(reg)
		go s.Serve(ctx, serverSide)

		p := peer.New("consumer", spy)
		defer p.Close()
		peerID := reg.AddPeer(p)

		callerLedger := &ledger.Ledger{
			RootFuncs: map[string]engine.FunctionSignature{
				"add": {Params: u32Types, Results: resultTypes},
			},
		}
		linker := newE2ELinker()
		b := bind.New(reg)
		Expect(b.BindRemote(linker, callerLedger, "", peerID, "math-service")).To(Succeed())

		stub := linker.defined["#add"]
		results, err := stub(ctx, []engine.Value{engine.U32Val(10), engine.U32Val(5)})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(Equal([]engine.Value{engine.U32Val(15)}))

		sent := spy.Sent()
		Expect(sent).To(HaveLen(1))
		frame, err := rpcval.DecodeFrame(sent[0])
		Expect(err).NotTo(HaveOccurred())
		call, ok := frame.(*rpcval.CallFrame)
		Expect(ok).To(BeTrue())
		Expect(call.Seq).To(Equal(uint64(1)))
		Expect(call.Target).To(Equal("math-service"))
		Expect(call.Method).To(Equal("add"))
	})

	It("scenario 5: a misdirected Call frame kills the pump; the next call never touches the transport", func() {
		clientSide, mockSide := transport.NewDuplexPair()
		p := peer.New("consumer", clientSide)
		defer p.Close()

		resultTypes := []engine.Type{{Kind: engine.TypeU32}}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan struct{})
		var firstCallErr error
		go func() {
			_, firstCallErr = p.Call(ctx, "math-service", "add",
				[]engine.Value{engine.U32Val(1), engine.U32Val(2)},
				[]engine.Type{{Kind: engine.TypeU32}, {Kind: engine.TypeU32}}, resultTypes)
			close(done)
		}()

		bogusCall, err := rpcval.EncodeCall(rpcval.CallFrame{Seq: 99, Target: "x", Method: "y"})
		Expect(err).NotTo(HaveOccurred())
		Expect(mockSide.Send(bogusCall)).To(Succeed())

		Eventually(done, time.Second).Should(BeClosed())
		// The outstanding call fails either with the pump's own protocol-
		// violation verdict or with ConnectionLost from Close's deferred
		// teardown racing it — both are valid per spec.md §7's "fatal for
		// the current frame" rule; which one wins is a scheduling detail.
		Expect(firstCallErr).To(HaveOccurred())

		// The pump has exited; any further call resolves to ConnectionLost
		// without ever reaching Send.
		_, callErr := p.Call(ctx, "math-service", "add",
			[]engine.Value{engine.U32Val(1), engine.U32Val(2)},
			[]engine.Type{{Kind: engine.TypeU32}, {Kind: engine.TypeU32}}, resultTypes)
		Expect(callErr).To(MatchError(&transport.Error{Kind: transport.ErrConnectionLost}))
	})

	It("scenario 6: a borrow-carrying import fails ledger construction naming the import and 'not wire-safe'", func() {
		comp := &ledgerFakeComponent{
			root: map[string]engine.FunctionSignature{
				"h": {Params: []engine.Type{{Kind: engine.TypeBorrow}}},
			},
		}
		_, err := ledger.Build(comp)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("not wire-safe"))
		Expect(err.Error()).To(ContainSubstring("h"))
	})
})

// ledgerFakeComponent is a minimal engine.Component for driving
// ledger.Build directly from this suite, distinct from server_test.go's
// fakeComponent (which only implements Export for dispatch, not the two
// import-listing methods ledger.Build needs).
type ledgerFakeComponent struct {
	root map[string]engine.FunctionSignature
}

func (f *ledgerFakeComponent) RootImports() map[string]engine.FunctionSignature { return f.root }
func (f *ledgerFakeComponent) InterfaceImports() map[string]map[string]engine.FunctionSignature {
	return nil
}
func (f *ledgerFakeComponent) Export(interfaceName, funcName string) (engine.FunctionSignature, bool) {
	return engine.FunctionSignature{}, false
}
func (f *ledgerFakeComponent) Digest() string { return "ledger-fake" }
