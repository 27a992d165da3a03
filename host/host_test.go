package host_test

import (
	"context"

	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/host"

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

var _ = Describe("Logger", func() {
	It("captures log messages in order", func() {
		l := host.NewLogger()
		linker := newFakeLinker()
		Expect(l.Install(linker)).To(Succeed())

		fn := linker.defined[host.LoggingCapability+"#log"]
		_, err := fn(context.Background(), []engine.Value{engine.StringVal("info"), engine.StringVal("hello")})
		Expect(err).NotTo(HaveOccurred())
		_, err = fn(context.Background(), []engine.Value{engine.StringVal("warn"), engine.StringVal("uh oh")})
		Expect(err).NotTo(HaveOccurred())

		Expect(l.Logs()).To(Equal([]string{"[info] hello", "[warn] uh oh"}))
	})

	It("rejects a malformed call", func() {
		l := host.NewLogger()
		linker := newFakeLinker()
		Expect(l.Install(linker)).To(Succeed())
		fn := linker.defined[host.LoggingCapability+"#log"]
		_, err := fn(context.Background(), []engine.Value{engine.StringVal("only one")})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("KV", func() {
	It("returns none for a missing key and some after set", func() {
		kv := host.NewKV()
		linker := newFakeLinker()
		Expect(kv.Install(linker)).To(Succeed())

		get := linker.defined[host.KVCapability+"#get"]
		set := linker.defined[host.KVCapability+"#set"]

		results, err := get(context.Background(), []engine.Value{engine.StringVal("k")})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].OptionPayload).To(BeNil())

		_, err = set(context.Background(), []engine.Value{engine.StringVal("k"), engine.StringVal("v")})
		Expect(err).NotTo(HaveOccurred())

		results, err = get(context.Background(), []engine.Value{engine.StringVal("k")})
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].OptionPayload).NotTo(BeNil())
		Expect(*results[0].OptionPayload).To(Equal(engine.StringVal("v")))

		Expect(kv.Snapshot()).To(Equal(map[string]string{"k": "v"}))
	})
})
