package transport_test

import (
	"github.com/exorun/exorun/transport"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("DuplexChannelTransport", func() {
	It("delivers a's sends to b's Recv and vice versa", func() {
		a, b := transport.NewDuplexPair()
		Expect(a.Send([]byte("ping"))).To(Succeed())
		got, err := b.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("ping")))

		Expect(b.Send([]byte("pong"))).To(Succeed())
		got, err = a.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("pong")))
	})

	It("reports orderly end-of-stream as (nil, nil) after Close", func() {
		a, b := transport.NewDuplexPair()
		a.Close()
		got, err := b.Recv()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeNil())
	})
})

var _ = Describe("Error", func() {
	It("matches on Kind alone via errors.Is", func() {
		err := transport.PayloadTooLarge(1 << 20)
		Expect(err).To(MatchError(&transport.Error{Kind: transport.ErrPayloadTooLarge}))
	})
})
