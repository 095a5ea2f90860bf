package network

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/timing"
)

// HookPosSegmentSent marks when a segment is put on the link.
var HookPosSegmentSent = &hooking.HookPos{Name: "Segment Sent"}

// HookPosSegmentDelivered marks when a segment reaches the node at the other
// end of the link.
var HookPosSegmentDelivered = &hooking.HookPos{Name: "Segment Delivered"}

// ErrUnreachable is returned when a segment is addressed to an IP that is not
// on the other side of the link.
var ErrUnreachable = errors.New("destination unreachable")

type linkEnd struct {
	node      *Node
	busyUntil timing.VTime
}

type deliverEvent struct {
	*timing.EventBase
	seg *Segment
	dst *Node
}

// A Link is a full-duplex point-to-point channel between exactly two nodes.
// Each direction serializes segments at the configured data rate and then
// delays them by the propagation delay, so segments sent in one direction
// arrive in the order they were sent.
type Link struct {
	*hooking.HookableBase

	name     string
	engine   timing.EventScheduler
	delay    time.Duration
	dataRate uint64
	logger   *slog.Logger

	ends []*linkEnd
}

// Name returns the name of the link.
func (l *Link) Name() string {
	return l.name
}

// Delay returns the propagation delay of the link.
func (l *Link) Delay() time.Duration {
	return l.delay
}

// DataRate returns the data rate of the link in bits per second. Zero means
// segments take no time to serialize.
func (l *Link) DataRate() uint64 {
	return l.dataRate
}

// Attach connects two nodes with the link.
func (l *Link) Attach(a, b *Node) {
	if len(l.ends) != 0 {
		panic(fmt.Sprintf("link %s already attached", l.name))
	}

	if a == b {
		panic("cannot attach a node to itself")
	}

	l.ends = []*linkEnd{{node: a}, {node: b}}
	a.setLink(l)
	b.setLink(l)
}

// TransmissionTime returns how long it takes to put n bytes on the link.
func (l *Link) TransmissionTime(n int) time.Duration {
	if l.dataRate == 0 {
		return 0
	}

	bits := uint64(n) * 8
	ns := bits * uint64(time.Second) / l.dataRate

	return time.Duration(ns)
}

func (l *Link) endOf(n *Node) (*linkEnd, *linkEnd) {
	switch {
	case len(l.ends) != 2:
		panic(fmt.Sprintf("link %s is not attached", l.name))
	case l.ends[0].node == n:
		return l.ends[0], l.ends[1]
	case l.ends[1].node == n:
		return l.ends[1], l.ends[0]
	default:
		panic(fmt.Sprintf("node %s is not on link %s", n.Name(), l.name))
	}
}

func (l *Link) send(from *Node, seg *Segment) error {
	src, dst := l.endOf(from)

	if seg.Dst.Addr() != dst.node.IP() {
		return fmt.Errorf("%s -> %s: %w", seg.Src, seg.Dst, ErrUnreachable)
	}

	now := l.engine.Now()
	seg.SendTime = now

	start := now
	if src.busyUntil > start {
		start = src.busyUntil
	}

	src.busyUntil = start.Add(l.TransmissionTime(seg.WireBytes()))
	arrival := src.busyUntil.Add(l.delay)

	l.InvokeHook(hooking.HookCtx{
		Domain: l,
		Pos:    HookPosSegmentSent,
		Item:   seg,
	})

	l.engine.Schedule(deliverEvent{
		EventBase: timing.NewEventBase(arrival, l),
		seg:       seg,
		dst:       dst.node,
	})

	return nil
}

// Handle delivers segments whose transit has completed.
func (l *Link) Handle(e timing.Event) error {
	switch e := e.(type) {
	case deliverEvent:
		return l.deliver(e)
	default:
		panic("cannot handle event of type " + reflect.TypeOf(e).String())
	}
}

func (l *Link) deliver(e deliverEvent) error {
	e.seg.RecvTime = e.Time()

	l.logger.Debug("segment delivered",
		"link", l.name,
		"kind", e.seg.Kind.String(),
		"src", e.seg.Src.String(),
		"dst", e.seg.Dst.String(),
		"bytes", e.seg.WireBytes())

	l.InvokeHook(hooking.HookCtx{
		Domain: l,
		Pos:    HookPosSegmentDelivered,
		Item:   e.seg,
	})

	e.dst.receive(e.seg)

	return nil
}

// LinkBuilder can build links.
type LinkBuilder struct {
	engine   timing.EventScheduler
	delay    time.Duration
	dataRate uint64
	logger   *slog.Logger
}

// MakeLinkBuilder creates a LinkBuilder with no delay and infinite data rate.
func MakeLinkBuilder() LinkBuilder {
	return LinkBuilder{}
}

// WithEngine sets the engine that carries segments in transit.
func (b LinkBuilder) WithEngine(engine timing.EventScheduler) LinkBuilder {
	b.engine = engine
	return b
}

// WithDelay sets the propagation delay.
func (b LinkBuilder) WithDelay(d time.Duration) LinkBuilder {
	b.delay = d
	return b
}

// WithDataRate sets the data rate in bits per second.
func (b LinkBuilder) WithDataRate(bitsPerSecond uint64) LinkBuilder {
	b.dataRate = bitsPerSecond
	return b
}

// WithLogger sets the logger.
func (b LinkBuilder) WithLogger(logger *slog.Logger) LinkBuilder {
	b.logger = logger
	return b
}

// Build creates the link.
func (b LinkBuilder) Build(name string) *Link {
	if b.engine == nil {
		panic("link requires an engine")
	}

	if b.delay < 0 {
		panic("negative link delay")
	}

	l := &Link{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		delay:        b.delay,
		dataRate:     b.dataRate,
		logger:       b.logger,
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l
}
