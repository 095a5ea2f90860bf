package network

import (
	"log/slog"
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/timing"
)

type arrival struct {
	payload string
	from    netip.AddrPort
	at      timing.VTime
}

type callbackEvent struct {
	*timing.EventBase
	f func()
}

type callbackHandler struct{}

func (callbackHandler) Handle(e timing.Event) error {
	e.(callbackEvent).f()
	return nil
}

func at(engine timing.EventScheduler, t timing.VTime, f func()) {
	engine.Schedule(callbackEvent{
		EventBase: timing.NewEventBase(t, callbackHandler{}),
		f:         f,
	})
}

var _ = Describe("Point-to-point transport", func() {
	var (
		engine   *timing.SerialEngine
		logger   *slog.Logger
		client   *Node
		server   *Node
		link     *Link
		listener *Listener
		arrivals []arrival
		dst      netip.AddrPort
	)

	build := func(delay time.Duration, rate uint64) {
		link = MakeLinkBuilder().
			WithEngine(engine).
			WithDelay(delay).
			WithDataRate(rate).
			WithLogger(logger).
			Build("Link")
		link.Attach(client, server)

		var err error
		listener, err = server.Listen(50000)
		Expect(err).NotTo(HaveOccurred())
		listener.OnReceive(func(payload []byte, from netip.AddrPort) {
			arrivals = append(arrivals, arrival{
				payload: string(payload),
				from:    from,
				at:      engine.Now(),
			})
		})
	}

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		logger = slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		client = NewNode("Client", netip.MustParseAddr("10.1.1.1"), engine, logger)
		server = NewNode("Server", netip.MustParseAddr("10.1.1.2"), engine, logger)
		arrivals = nil
		dst = netip.MustParseAddrPort("10.1.1.2:50000")
	})

	It("should connect after one round trip", func() {
		build(30*time.Microsecond, 0)
		listener.Start()

		var connectedAt timing.VTime
		failed := false
		sock := client.NewSocket()
		Expect(sock.Connect(dst,
			func() { connectedAt = engine.Now() },
			func() { failed = true })).To(Succeed())

		Expect(engine.Run()).To(Succeed())

		Expect(failed).To(BeFalse())
		Expect(connectedAt).To(Equal(60 * timing.Microsecond))
		Expect(sock.Connected()).To(BeTrue())
		Expect(sock.LocalAddr().Port()).To(BeNumerically(">=", 49152))
	})

	It("should fail to connect when the listener is not started", func() {
		build(time.Millisecond, 0)

		connected, failed := false, false
		sock := client.NewSocket()
		Expect(sock.Connect(dst,
			func() { connected = true },
			func() { failed = true })).To(Succeed())

		Expect(engine.Run()).To(Succeed())

		Expect(connected).To(BeFalse())
		Expect(failed).To(BeTrue())
		Expect(engine.Now()).To(Equal(2 * timing.Millisecond))
		Expect(sock.Send([]byte("x"))).To(MatchError(ErrClosed))
	})

	It("should fail to connect to a port nobody listens on", func() {
		build(time.Millisecond, 0)
		listener.Start()

		failed := false
		sock := client.NewSocket()
		Expect(sock.Connect(netip.MustParseAddrPort("10.1.1.2:9"),
			func() {}, func() { failed = true })).To(Succeed())

		Expect(engine.Run()).To(Succeed())
		Expect(failed).To(BeTrue())
	})

	It("should fail to connect to an address beyond the link", func() {
		build(time.Millisecond, 0)
		listener.Start()

		failed := false
		sock := client.NewSocket()
		Expect(sock.Connect(netip.MustParseAddrPort("10.9.9.9:50000"),
			func() {}, func() { failed = true })).To(Succeed())
		Expect(failed).To(BeFalse())

		Expect(engine.Run()).To(Succeed())
		Expect(failed).To(BeTrue())
		Expect(engine.Now()).To(Equal(timing.VTime(0)))
	})

	It("should reject a second connect", func() {
		build(0, 0)
		sock := client.NewSocket()
		Expect(sock.Connect(dst, func() {}, func() {})).To(Succeed())
		Expect(sock.Connect(dst, func() {}, func() {})).
			To(MatchError(ErrAlreadyConnecting))
	})

	It("should deliver data in order after the delay", func() {
		build(5*time.Millisecond, 0)
		listener.Start()

		sock := client.NewSocket()
		Expect(sock.Connect(dst, func() {
			Expect(sock.Send([]byte("a"))).To(Succeed())
			Expect(sock.Send([]byte("b"))).To(Succeed())
		}, func() { Fail("connect failed") })).To(Succeed())

		Expect(engine.Run()).To(Succeed())

		Expect(arrivals).To(Equal([]arrival{
			{payload: "a", from: sock.LocalAddr(), at: 15 * timing.Millisecond},
			{payload: "b", from: sock.LocalAddr(), at: 15 * timing.Millisecond},
		}))
		Expect(listener.Received()).To(Equal(uint64(2)))
	})

	It("should serialize segments at the data rate", func() {
		// 1000 bits per second: a 85-byte segment (45 payload + 40 header)
		// takes 680ms on the wire.
		build(0, 1000)
		Expect(link.TransmissionTime(85)).To(Equal(680 * time.Millisecond))
		listener.Start()

		payload := make([]byte, 45)
		sock := client.NewSocket()
		var connectedAt timing.VTime
		Expect(sock.Connect(dst, func() {
			connectedAt = engine.Now()
			Expect(sock.Send(payload)).To(Succeed())
			Expect(sock.Send(payload)).To(Succeed())
		}, func() { Fail("connect failed") })).To(Succeed())

		Expect(engine.Run()).To(Succeed())

		// SYN and SYN-ACK are 40 bytes each: 320ms per direction.
		Expect(connectedAt).To(Equal(640 * timing.Millisecond))
		Expect(arrivals).To(HaveLen(2))
		Expect(arrivals[0].at).To(Equal(connectedAt + 680*timing.Millisecond))
		Expect(arrivals[1].at).To(Equal(connectedAt + 1360*timing.Millisecond))
	})

	It("should refuse to send before the handshake completes", func() {
		build(time.Millisecond, 0)
		listener.Start()

		sock := client.NewSocket()
		Expect(sock.Send([]byte("early"))).To(MatchError(ErrNotConnected))
		Expect(sock.Connect(dst, func() {}, func() {})).To(Succeed())
		Expect(sock.Send([]byte("early"))).To(MatchError(ErrNotConnected))
	})

	It("should drop data that arrives after the listener stops", func() {
		build(time.Millisecond, 0)
		listener.Start()

		dropped := 0
		server.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == HookPosSegmentDropped {
				dropped++
			}
		}))

		sock := client.NewSocket()
		Expect(sock.Connect(dst, func() {
			Expect(sock.Send([]byte("in-flight"))).To(Succeed())
			listener.Stop()
		}, func() { Fail("connect failed") })).To(Succeed())

		Expect(engine.Run()).To(Succeed())

		Expect(arrivals).To(BeEmpty())
		Expect(listener.Dropped()).To(Equal(uint64(1)))
		Expect(dropped).To(Equal(1))
	})

	It("should not call connect callbacks after close", func() {
		build(time.Millisecond, 0)
		listener.Start()

		called := false
		sock := client.NewSocket()
		Expect(sock.Connect(dst,
			func() { called = true },
			func() { called = true })).To(Succeed())
		Expect(sock.Close()).To(Succeed())
		Expect(sock.Close()).To(MatchError(ErrClosed))

		Expect(engine.Run()).To(Succeed())
		Expect(called).To(BeFalse())
	})

	It("should report segments through link hooks", func() {
		build(time.Millisecond, 0)
		listener.Start()

		var sent, delivered []SegmentKind
		link.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			seg := ctx.Item.(*Segment)
			switch ctx.Pos {
			case HookPosSegmentSent:
				sent = append(sent, seg.Kind)
			case HookPosSegmentDelivered:
				delivered = append(delivered, seg.Kind)
			}
		}))

		sock := client.NewSocket()
		Expect(sock.Connect(dst, func() {
			Expect(sock.Send([]byte("x"))).To(Succeed())
			Expect(sock.Close()).To(Succeed())
		}, func() {})).To(Succeed())

		Expect(engine.Run()).To(Succeed())

		all := []SegmentKind{SegmentSYN, SegmentSYNACK, SegmentData, SegmentFIN}
		Expect(sent).To(Equal(all))
		Expect(delivered).To(Equal(all))
	})

	It("should reject binding the same port twice", func() {
		build(0, 0)
		_, err := server.Listen(50000)
		Expect(err).To(MatchError(ErrPortInUse))
	})

	It("should start and stop applications at the given times", func() {
		build(0, 0)

		Expect(ScheduleApplication(engine, listener,
			1*timing.Second, 12*timing.Second)).To(Succeed())

		var states []bool
		for _, t := range []timing.VTime{0, timing.Second, 5 * timing.Second, 12 * timing.Second} {
			at(engine, t, func() { states = append(states, listener.listening) })
		}

		Expect(engine.Run()).To(Succeed())

		// Same-time events run in scheduling order, so the check at 1s runs
		// after the start and the check at 12s runs after the stop.
		Expect(states).To(Equal([]bool{false, true, true, false}))
	})

	It("should reject an application that stops before it starts", func() {
		build(0, 0)
		Expect(ScheduleApplication(engine, listener,
			2*timing.Second, timing.Second)).NotTo(Succeed())
	})
})
