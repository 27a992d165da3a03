package rpcval_test

import (
	"github.com/exorun/exorun/rpcval"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("FailureReason JSON rendering", func() {
	It("omits payload fields for a unit variant", func() {
		raw, err := rpcval.InstanceNotFound().MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"kind":"InstanceNotFound"}`))
	})

	It("carries detail for a ProtocolViolation", func() {
		raw, err := rpcval.ProtocolViolationReason("bad frame").MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"kind":"ProtocolViolation","detail":"bad frame"}`))
	})

	It("carries code and msg for a Domain failure", func() {
		raw, err := rpcval.DomainReason(404, "not found").MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{"kind":"Domain","code":404,"msg":"not found"}`))
	})
})
