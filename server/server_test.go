package server_test

import (
	"context"
	"errors"
	"time"

	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/registry"
	"github.com/exorun/exorun/rpcval"
	"github.com/exorun/exorun/server"
	"github.com/exorun/exorun/transport"
	"github.com/exorun/exorun/wire"

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

type fakeStore struct{}

func (fakeStore) Close() {}

type fakeInstance struct {
	callErr error
}

func (f *fakeInstance) Call(ctx context.Context, interfaceName, funcName string, args []engine.Value) ([]engine.Value, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return args, nil
}

func sendCall(t transport.Transport, seq uint64, target, method string, args []engine.Value, argTypes []engine.Type) {
	enc := wire.NewEncoder()
	ExpectWithOffset(1, rpcval.EncodeValues(enc, args, argTypes)).To(Succeed())
	body, err := enc.Bytes()
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	payload, err := rpcval.EncodeCall(rpcval.CallFrame{Seq: seq, Target: target, Method: method, Args: body})
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	ExpectWithOffset(1, t.Send(payload)).To(Succeed())
}

func recvReply(t transport.Transport) *rpcval.ReplyFrame {
	m, err := t.Recv()
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	ExpectWithOffset(1, m).NotTo(BeNil())
	frame, err := rpcval.DecodeFrame(m)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	reply, ok := frame.(*rpcval.ReplyFrame)
	ExpectWithOffset(1, ok).To(BeTrue())
	return reply
}

var _ = Describe("Server.Serve", func() {
	var (
		reg        *registry.Registry
		client, sv *transport.DuplexChannelTransport
		ctx        context.Context
		cancel     context.CancelFunc
		argTypes   []engine.Type
	)

	BeforeEach(func() {
		reg = registry.New(nil)
		client, sv = transport.NewDuplexPair()
		ctx, cancel = context.WithCancel(context.Background())
		argTypes = []engine.Type{{Kind: engine.TypeString}}
	})

	AfterEach(func() { cancel() })

	registerGreeter := func(callErr error) {
		comp, err := reg.RegisterComponent(&fakeComponent{exports: map[string]engine.FunctionSignature{
			"#greet": {Params: argTypes, Results: argTypes},
		}}, []byte("comp-1"))
		Expect(err).NotTo(HaveOccurred())
		id := reg.NewInstanceID()
		reg.RegisterInstance(registry.NewLocalInstance(id, comp.ID, fakeStore{}, &fakeInstance{callErr: callErr}))
		reg.BindName("inst-1", id)
	}

	It("dispatches a Call and replies Ok with the results", func() {
		registerGreeter(nil)
		s := server.New(reg)
		go s.Serve(ctx, sv)

		sendCall(client, 1, "inst-1", "greet", []engine.Value{engine.StringVal("hi")}, argTypes)
		reply := recvReply(client)
		Expect(reply.Seq).To(Equal(uint64(1)))
		Expect(reply.Ok).To(BeTrue())

		vals, err := rpcval.DecodeValues(wire.NewDecoder(reply.Results), argTypes)
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(Equal([]engine.Value{engine.StringVal("hi")}))
	})

	It("replies InstanceNotFound for an unbound target", func() {
		s := server.New(reg)
		go s.Serve(ctx, sv)

		sendCall(client, 2, "missing", "greet", []engine.Value{engine.StringVal("hi")}, argTypes)
		reply := recvReply(client)
		Expect(reply.Ok).To(BeFalse())
		Expect(reply.Reason.Kind).To(Equal(rpcval.FailureInstanceNotFound))
	})

	It("replies MethodNotFound for an unexported method", func() {
		registerGreeter(nil)
		s := server.New(reg)
		go s.Serve(ctx, sv)

		sendCall(client, 3, "inst-1", "nope", []engine.Value{engine.StringVal("hi")}, argTypes)
		reply := recvReply(client)
		Expect(reply.Ok).To(BeFalse())
		Expect(reply.Reason.Kind).To(Equal(rpcval.FailureMethodNotFound))
	})

	It("replies BadArgumentCount when the argument list length mismatches", func() {
		registerGreeter(nil)
		s := server.New(reg)
		go s.Serve(ctx, sv)

		sendCall(client, 4, "inst-1", "greet", []engine.Value{engine.StringVal("hi"), engine.StringVal("extra")},
			[]engine.Type{{Kind: engine.TypeString}, {Kind: engine.TypeString}})
		reply := recvReply(client)
		Expect(reply.Ok).To(BeFalse())
		Expect(reply.Reason.Kind).To(Equal(rpcval.FailureBadArgumentCount))
	})

	It("replies AppTrapped for an unrecognized instance error", func() {
		registerGreeter(errors.New("boom"))
		s := server.New(reg)
		go s.Serve(ctx, sv)

		sendCall(client, 5, "inst-1", "greet", []engine.Value{engine.StringVal("hi")}, argTypes)
		reply := recvReply(client)
		Expect(reply.Ok).To(BeFalse())
		Expect(reply.Reason.Kind).To(Equal(rpcval.FailureAppTrapped))
	})

	It("replies with the mapped reason for a classified engine.RuntimeError", func() {
		registerGreeter(&engine.RuntimeError{Kind: engine.RuntimeOutOfFuel, Cause: errors.New("fuel exhausted")})
		s := server.New(reg)
		go s.Serve(ctx, sv)

		sendCall(client, 6, "inst-1", "greet", []engine.Value{engine.StringVal("hi")}, argTypes)
		reply := recvReply(client)
		Expect(reply.Ok).To(BeFalse())
		Expect(reply.Reason.Kind).To(Equal(rpcval.FailureOutOfFuel))
	})

	It("rejects a Reply frame sent to it as ProtocolViolation", func() {
		registerGreeter(nil)
		s := server.New(reg)
		go s.Serve(ctx, sv)

		emptyEnc := wire.NewEncoder()
		Expect(rpcval.EncodeValues(emptyEnc, nil, nil)).To(Succeed())
		emptyBody, err := emptyEnc.Bytes()
		Expect(err).NotTo(HaveOccurred())
		bogus, err := rpcval.EncodeReplyOk(7, emptyBody)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Send(bogus)).To(Succeed())
		reply := recvReply(client)
		Expect(reply.Ok).To(BeFalse())
		Expect(reply.Reason.Kind).To(Equal(rpcval.FailureProtocolViolation))

		// The loop survives a rejected frame and keeps serving.
		sendCall(client, 8, "inst-1", "greet", []engine.Value{engine.StringVal("still alive")}, argTypes)
		reply = recvReply(client)
		Expect(reply.Ok).To(BeTrue())
	})

	It("drops an unrecoverable message without crashing the loop", func() {
		registerGreeter(nil)
		s := server.New(reg)
		go s.Serve(ctx, sv)

		Expect(client.Send([]byte{0xFF})).To(Succeed())

		sendCall(client, 9, "inst-1", "greet", []engine.Value{engine.StringVal("hi")}, argTypes)
		var reply *rpcval.ReplyFrame
		Eventually(func() bool {
			m, err := client.Recv()
			if err != nil || m == nil {
				return false
			}
			frame, err := rpcval.DecodeFrame(m)
			if err != nil {
				return false
			}
			reply, _ = frame.(*rpcval.ReplyFrame)
			return reply != nil && reply.Seq == 9
		}, time.Second).Should(BeTrue())
		Expect(reply.Ok).To(BeTrue())
	})
})
