package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/neuropipe/broker/protocol"
)

var _ = Describe("ParseLine", func() {
	It("returns EMPTY_MESSAGE for an empty line", func() {
		req := protocol.ParseLine([]byte(""))

		errReq, ok := req.(*protocol.ErrorRequest)
		Expect(ok).To(BeTrue())
		Expect(errReq.Code).To(Equal(protocol.EmptyMessage))
	})

	It("returns UNKNOWN_COMMAND for an unrecognized line", func() {
		req := protocol.ParseLine([]byte("EVIL:stuff"))

		errReq, ok := req.(*protocol.ErrorRequest)
		Expect(ok).To(BeTrue())
		Expect(errReq.Code).To(Equal(protocol.UnknownCommand))
	})

	Describe("PUBLISH", func() {
		It("parses topic and payload", func() {
			req := protocol.ParseLine([]byte("PUBLISH:ch:hello"))

			pub, ok := req.(*protocol.PublishRequest)
			Expect(ok).To(BeTrue())
			Expect(pub.Topic).To(Equal([]byte("ch")))
			Expect(pub.Payload).To(Equal([]byte("hello")))
		})

		It("allows an empty payload", func() {
			req := protocol.ParseLine([]byte("PUBLISH:ch:"))

			pub, ok := req.(*protocol.PublishRequest)
			Expect(ok).To(BeTrue())
			Expect(pub.Topic).To(Equal([]byte("ch")))
			Expect(pub.Payload).To(Equal([]byte("")))
		})

		It("keeps further colons as part of the payload", func() {
			req := protocol.ParseLine([]byte("PUBLISH:ch:a:b:c"))

			pub, ok := req.(*protocol.PublishRequest)
			Expect(ok).To(BeTrue())
			Expect(pub.Topic).To(Equal([]byte("ch")))
			Expect(pub.Payload).To(Equal([]byte("a:b:c")))
		})

		It("rejects a missing second colon", func() {
			req := protocol.ParseLine([]byte("PUBLISH:ch"))

			errReq, ok := req.(*protocol.ErrorRequest)
			Expect(ok).To(BeTrue())
			Expect(errReq.Code).To(Equal(protocol.InvalidFormat))
		})

		It("rejects an empty topic", func() {
			req := protocol.ParseLine([]byte("PUBLISH::x"))

			errReq, ok := req.(*protocol.ErrorRequest)
			Expect(ok).To(BeTrue())
			Expect(errReq.Code).To(Equal(protocol.InvalidFormat))
		})

		It("tolerates a trailing CR", func() {
			req := protocol.ParseLine([]byte("PUBLISH:ch:hi\r"))

			pub, ok := req.(*protocol.PublishRequest)
			Expect(ok).To(BeTrue())
			Expect(pub.Payload).To(Equal([]byte("hi")))
		})
	})

	Describe("SUBSCRIBE / UNSUBSCRIBE", func() {
		It("parses SUBSCRIBE", func() {
			req := protocol.ParseLine([]byte("SUBSCRIBE:ch"))

			sub, ok := req.(*protocol.SubscribeRequest)
			Expect(ok).To(BeTrue())
			Expect(sub.Topic).To(Equal([]byte("ch")))
		})

		It("parses UNSUBSCRIBE without confusing it for SUBSCRIBE", func() {
			req := protocol.ParseLine([]byte("UNSUBSCRIBE:ch"))

			unsub, ok := req.(*protocol.UnsubscribeRequest)
			Expect(ok).To(BeTrue())
			Expect(unsub.Topic).To(Equal([]byte("ch")))
		})

		It("rejects an empty topic on SUBSCRIBE", func() {
			req := protocol.ParseLine([]byte("SUBSCRIBE:"))

			errReq, ok := req.(*protocol.ErrorRequest)
			Expect(ok).To(BeTrue())
			Expect(errReq.Code).To(Equal(protocol.EmptyTopic))
		})

		It("rejects an empty topic on UNSUBSCRIBE", func() {
			req := protocol.ParseLine([]byte("UNSUBSCRIBE:"))

			errReq, ok := req.(*protocol.ErrorRequest)
			Expect(ok).To(BeTrue())
			Expect(errReq.Code).To(Equal(protocol.EmptyTopic))
		})

		It("rejects a topic containing a colon on SUBSCRIBE", func() {
			req := protocol.ParseLine([]byte("SUBSCRIBE:ch:extra"))

			errReq, ok := req.(*protocol.ErrorRequest)
			Expect(ok).To(BeTrue())
			Expect(errReq.Code).To(Equal(protocol.InvalidFormat))
		})
	})

	Describe("PING", func() {
		It("parses a bare PING", func() {
			req := protocol.ParseLine([]byte("PING"))
			_, ok := req.(*protocol.PingRequest)
			Expect(ok).To(BeTrue())
		})

		It("parses PING followed by trailing garbage", func() {
			req := protocol.ParseLine([]byte("PING anything"))
			_, ok := req.(*protocol.PingRequest)
			Expect(ok).To(BeTrue())
		})
	})
})
