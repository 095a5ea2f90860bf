package latency

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/HaseebLUMS/tree-sim/timing"
)

var _ = Describe("Payload", func() {
	It("should put the send time first, big-endian, then zeros", func() {
		payload, err := EncodePayload(timing.VTime(0x0102030405060708), 12)

		Expect(err).NotTo(HaveOccurred())
		Expect(payload).To(Equal([]byte{
			0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
			0, 0, 0, 0,
		}))
	})

	It("should decode what it encodes", func() {
		sendTime := 2*timing.Second + 30*timing.Microsecond

		payload, err := EncodePayload(sendTime, 100)
		Expect(err).NotTo(HaveOccurred())

		decoded, err := DecodePayload(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(sendTime))
	})

	It("should ignore trailing bytes when decoding", func() {
		payload := []byte{0, 0, 0, 0, 0, 0, 0, 42, 0xff, 0xff}

		decoded, err := DecodePayload(payload)

		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(timing.VTime(42)))
	})

	It("should refuse payloads that cannot hold a timestamp", func() {
		_, err := EncodePayload(0, 7)
		Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())

		_, err = DecodePayload(make([]byte, 7))
		Expect(errors.Is(err, ErrMalformedPayload)).To(BeTrue())
	})
})
