package network

import (
	"net/netip"
)

// ReceiveFunc is called for every data segment a listener accepts.
type ReceiveFunc func(payload []byte, from netip.AddrPort)

// A Listener accepts connections on a port and reports every data segment it
// receives, in arrival order. It is the packet sink of the simulation.
type Listener struct {
	node      *Node
	local     netip.AddrPort
	listening bool
	onReceive ReceiveFunc

	conns    map[netip.AddrPort]bool
	received uint64
	dropped  uint64
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() netip.AddrPort {
	return l.local
}

// OnReceive sets the function that receives data payloads.
func (l *Listener) OnReceive(f ReceiveFunc) {
	l.onReceive = f
}

// Start makes the listener accept connections.
func (l *Listener) Start() {
	l.listening = true
	l.node.logger.Info("listener started", "addr", l.local.String())
}

// Stop makes the listener refuse new connections and discard data on existing
// ones.
func (l *Listener) Stop() {
	if !l.listening {
		return
	}

	l.listening = false
	clear(l.conns)
	l.node.logger.Info("listener stopped",
		"addr", l.local.String(),
		"received", l.received,
		"dropped", l.dropped)
}

// Received returns the number of data segments delivered to the callback.
func (l *Listener) Received() uint64 {
	return l.received
}

// Dropped returns the number of data segments discarded because the listener
// was stopped or the connection was unknown.
func (l *Listener) Dropped() uint64 {
	return l.dropped
}

func (l *Listener) receive(seg *Segment) {
	switch seg.Kind {
	case SegmentSYN:
		l.accept(seg)
	case SegmentData:
		l.receiveData(seg)
	case SegmentFIN:
		delete(l.conns, seg.Src)
	default:
		l.node.drop(seg, "unexpected segment on listener")
	}
}

func (l *Listener) accept(seg *Segment) {
	if !l.listening {
		l.node.reset(seg)
		return
	}

	l.conns[seg.Src] = true

	err := l.node.transmit(SegmentSYNACK, l.local, seg.Src, nil)
	if err != nil {
		l.node.logger.Warn("cannot answer SYN", "peer", seg.Src.String(),
			"err", err)
	}
}

func (l *Listener) receiveData(seg *Segment) {
	if !l.listening || !l.conns[seg.Src] {
		l.dropped++
		l.node.drop(seg, "listener not accepting data")

		return
	}

	l.received++

	if l.onReceive != nil {
		l.onReceive(seg.Payload, seg.Src)
	}
}
