package ledger_test

import (
	"github.com/exorun/exorun/engine"
	"github.com/exorun/exorun/ledger"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeComponent struct {
	root  map[string]engine.FunctionSignature
	ifs   map[string]map[string]engine.FunctionSignature
	exp   map[string]engine.FunctionSignature
	idBit string
}

func (f *fakeComponent) RootImports() map[string]engine.FunctionSignature { return f.root }
func (f *fakeComponent) InterfaceImports() map[string]map[string]engine.FunctionSignature {
	return f.ifs
}
func (f *fakeComponent) Export(interfaceName, funcName string) (engine.FunctionSignature, bool) {
	sig, ok := f.exp[interfaceName+"#"+funcName]
	return sig, ok
}
func (f *fakeComponent) Digest() string { return f.idBit }

var _ = Describe("Ledger.Build", func() {
	It("flattens bare and interface-grouped imports", func() {
		comp := &fakeComponent{
			root: map[string]engine.FunctionSignature{
				"log": {Params: []engine.Type{{Kind: engine.TypeString}}},
			},
			ifs: map[string]map[string]engine.FunctionSignature{
				"kv": {
					"get": {Params: []engine.Type{{Kind: engine.TypeString}}, Results: []engine.Type{engine.NewOption(engine.Type{Kind: engine.TypeString})}},
				},
			},
		}
		l, err := ledger.Build(comp)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.RootFuncs).To(HaveKey("log"))
		sig, ok := l.Method("kv", "get")
		Expect(ok).To(BeTrue())
		Expect(sig.Params).To(HaveLen(1))
	})

	It("rejects a root import whose parameter carries a resource handle", func() {
		comp := &fakeComponent{
			root: map[string]engine.FunctionSignature{
				"open": {Params: []engine.Type{{Kind: engine.TypeOwn}}},
			},
		}
		_, err := ledger.Build(comp)
		Expect(err).To(MatchError(&ledger.Error{Kind: ledger.ErrInvalidParameter}))
		Expect(err.Error()).To(ContainSubstring("not wire-safe"))
		Expect(err.Error()).To(ContainSubstring("open"))
	})

	It("rejects a result type reaching a stream at depth, inside a list", func() {
		comp := &fakeComponent{
			ifs: map[string]map[string]engine.FunctionSignature{
				"io": {
					"subscribe": {Results: []engine.Type{engine.NewList(engine.Type{Kind: engine.TypeStream})}},
				},
			},
		}
		_, err := ledger.Build(comp)
		Expect(err).To(MatchError(&ledger.Error{Kind: ledger.ErrInvalidResult}))
		Expect(err.Error()).To(ContainSubstring("not wire-safe"))
		Expect(err.Error()).To(ContainSubstring("subscribe"))
	})

	It("rejects a future nested inside a record field", func() {
		comp := &fakeComponent{
			root: map[string]engine.FunctionSignature{
				"wait": {
					Params: []engine.Type{
						engine.NewRecord([]engine.FieldType{
							{Name: "handle", Type: engine.Type{Kind: engine.TypeFuture}},
						}),
					},
				},
			},
		}
		_, err := ledger.Build(comp)
		Expect(err).To(MatchError(&ledger.Error{Kind: ledger.ErrInvalidParameter}))
		Expect(err.Error()).To(ContainSubstring("not wire-safe"))
		Expect(err.Error()).To(ContainSubstring("wait"))
	})

	It("accepts a deeply nested but wire-safe signature", func() {
		comp := &fakeComponent{
			root: map[string]engine.FunctionSignature{
				"batch": {
					Params: []engine.Type{
						engine.NewList(engine.NewOption(engine.NewRecord([]engine.FieldType{
							{Name: "id", Type: engine.Type{Kind: engine.TypeU64}},
						}))),
					},
				},
			},
		}
		_, err := ledger.Build(comp)
		Expect(err).NotTo(HaveOccurred())
	})
})
