package latency

import (
	"errors"
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/timing"
)

var _ = Describe("Recorder", func() {
	var (
		mockCtrl *gomock.Controller
		clock    *MockEventScheduler
		log      *Log
		recorder *Recorder
		src      netip.AddrPort
		recorded []Sample
		rejected []error
	)

	payloadAt := func(t timing.VTime) []byte {
		p, err := EncodePayload(t, 100)
		Expect(err).NotTo(HaveOccurred())
		return p
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		clock = NewMockEventScheduler(mockCtrl)
		log = NewLog()
		recorder = NewRecorder(clock, log, nil)
		src = netip.MustParseAddrPort("10.1.1.1:49152")
		recorded, rejected = nil, nil

		recorder.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			switch ctx.Pos {
			case HookPosSampleRecorded:
				recorded = append(recorded, ctx.Item.(Sample))
			case HookPosPayloadRejected:
				rejected = append(rejected, ctx.Detail.(error))
			}
		}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record receive time minus send time", func() {
		clock.EXPECT().Now().Return(2*timing.Second + 30*timing.Microsecond)

		err := recorder.OnPayloadArrived(payloadAt(2*timing.Second), src)

		Expect(err).NotTo(HaveOccurred())
		Expect(log.Len()).To(Equal(1))
		Expect(log.At(0).Latency()).To(Equal(30 * time.Microsecond))
		Expect(log.At(0).Source).To(Equal(src))
		Expect(log.Seconds()).To(Equal([]float64{30e-6}))
		Expect(recorded).To(HaveLen(1))
		Expect(recorder.Log()).To(BeIdenticalTo(log))
	})

	It("should record zero latency", func() {
		clock.EXPECT().Now().Return(5 * timing.Second)

		Expect(recorder.OnPayloadArrived(payloadAt(5*timing.Second), src)).
			To(Succeed())
		Expect(log.Seconds()).To(Equal([]float64{0}))
	})

	It("should keep samples in arrival order", func() {
		clock.EXPECT().Now().Return(3 * timing.Second)
		clock.EXPECT().Now().Return(4 * timing.Second)

		recorder.Receive(payloadAt(1*timing.Second), src)
		recorder.Receive(payloadAt(3*timing.Second+500*timing.Millisecond), src)

		Expect(log.Seconds()).To(Equal([]float64{2, 0.5}))
	})

	It("should discard payloads shorter than the timestamp", func() {
		clock.EXPECT().Now().Return(timing.Second)

		err := recorder.OnPayloadArrived([]byte{1, 2, 3}, src)

		Expect(errors.Is(err, ErrMalformedPayload)).To(BeTrue())
		Expect(log.Len()).To(BeZero())
		Expect(recorder.Malformed()).To(Equal(uint64(1)))
		Expect(rejected).To(HaveLen(1))
	})

	It("should report payloads from the future", func() {
		clock.EXPECT().Now().Return(timing.Second)

		err := recorder.OnPayloadArrived(payloadAt(2*timing.Second), src)

		var causality *CausalityError
		Expect(errors.As(err, &causality)).To(BeTrue())
		Expect(errors.Is(err, ErrCausalityViolation)).To(BeTrue())
		Expect(causality.SendTime).To(Equal(2 * timing.Second))
		Expect(causality.RecvTime).To(Equal(timing.Second))
		Expect(err.Error()).To(ContainSubstring("10.1.1.1:49152"))
		Expect(log.Len()).To(BeZero())
		Expect(recorder.Violations()).To(Equal(uint64(1)))
		Expect(rejected).To(HaveLen(1))
	})

	It("should not let a bad payload affect the next one", func() {
		clock.EXPECT().Now().Return(timing.Second).Times(2)

		recorder.Receive([]byte{}, src)
		recorder.Receive(payloadAt(timing.Second), src)

		Expect(log.Len()).To(Equal(1))
	})

	It("should hand out copies of its samples", func() {
		clock.EXPECT().Now().Return(timing.Second)
		recorder.Receive(payloadAt(0), src)

		samples := log.Samples()
		samples[0].RecvTime = 0

		Expect(log.At(0).RecvTime).To(Equal(timing.Second))
	})
})
