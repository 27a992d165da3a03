package wazeroengine_test

import (
	"context"

	"github.com/exorun/exorun/wazeroengine"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// emptyModule is the smallest valid wasm binary: just the magic number and
// version, no sections at all. It carries no WIT world, so Compile always
// takes the numeric-fallback path (populateFromCore) rather than
// decodeWorld's WIT-metadata path, and the fallback finds no exports — this package's own test suite never embeds real
// component bytes, see DESIGN.md's "Known gap" note for wazeroengine.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("compiles a module with no exports via the numeric fallback", func() {
		eng, err := wazeroengine.New(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer eng.Close(ctx)

		comp, err := eng.Compile(ctx, emptyModule)
		Expect(err).NotTo(HaveOccurred())
		Expect(comp.RootImports()).To(BeEmpty())
		Expect(comp.InterfaceImports()).To(BeEmpty())
		Expect(comp.Digest()).NotTo(BeEmpty())
	})

	It("gives two compilations of identical bytes the same digest", func() {
		eng, err := wazeroengine.New(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer eng.Close(ctx)

		a, err := eng.Compile(ctx, emptyModule)
		Expect(err).NotTo(HaveOccurred())
		b, err := eng.Compile(ctx, emptyModule)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Digest()).To(Equal(b.Digest()))
	})

	It("rejects malformed wasm bytes at Compile", func() {
		eng, err := wazeroengine.New(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer eng.Close(ctx)

		_, err = eng.Compile(ctx, []byte("not a wasm module"))
		Expect(err).To(HaveOccurred())
	})

	It("produces a store that is safe to Close before Instantiate ever runs", func() {
		eng, err := wazeroengine.New(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer eng.Close(ctx)

		store := eng.NewStore(ctx)
		Expect(func() { store.Close() }).NotTo(Panic())
	})
})
