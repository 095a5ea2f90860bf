// Package network simulates a point-to-point link between two nodes and a
// reliable, ordered, connection-oriented transport on top of it.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/id"
	"github.com/HaseebLUMS/tree-sim/timing"
)

// HookPosSegmentDropped marks when a node discards a segment that no socket
// or listener accepts. The hook detail is a string with the reason.
var HookPosSegmentDropped = &hooking.HookPos{Name: "Segment Dropped"}

// ErrPortInUse is returned when listening on a port that is already bound.
var ErrPortInUse = errors.New("port already in use")

const firstEphemeralPort = 49152

// A Node is a host with a single IP address and a single link.
type Node struct {
	*hooking.HookableBase

	name   string
	ip     netip.Addr
	engine timing.EventScheduler
	link   *Link
	logger *slog.Logger

	listeners map[uint16]*Listener
	sockets   map[uint16]*Socket
	nextPort  uint16
}

// NewNode creates a node with the given address.
func NewNode(
	name string,
	ip netip.Addr,
	engine timing.EventScheduler,
	logger *slog.Logger,
) *Node {
	if !ip.IsValid() {
		panic(fmt.Sprintf("node %s has invalid address", name))
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Node{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		ip:           ip,
		engine:       engine,
		logger:       logger.With("node", name),
		listeners:    make(map[uint16]*Listener),
		sockets:      make(map[uint16]*Socket),
		nextPort:     firstEphemeralPort,
	}
}

// Name returns the name of the node.
func (n *Node) Name() string {
	return n.name
}

// IP returns the address of the node.
func (n *Node) IP() netip.Addr {
	return n.ip
}

// Link returns the link the node is attached to, or nil.
func (n *Node) Link() *Link {
	return n.link
}

func (n *Node) setLink(l *Link) {
	if n.link != nil {
		panic(fmt.Sprintf("node %s already has a link", n.name))
	}

	n.link = l
}

// NewSocket creates a client socket bound to an unused local port.
func (n *Node) NewSocket() *Socket {
	port := n.allocatePort()

	s := &Socket{
		node:  n,
		local: netip.AddrPortFrom(n.ip, port),
		state: socketIdle,
	}
	n.sockets[port] = s

	return s
}

func (n *Node) allocatePort() uint16 {
	for {
		port := n.nextPort

		n.nextPort++
		if n.nextPort == 0 {
			n.nextPort = firstEphemeralPort
		}

		_, usedBySocket := n.sockets[port]
		_, usedByListener := n.listeners[port]

		if !usedBySocket && !usedByListener {
			return port
		}
	}
}

func (n *Node) releasePort(port uint16) {
	delete(n.sockets, port)
}

// Listen binds a listener to the given port. The listener does not accept
// connections until it is started.
func (n *Node) Listen(port uint16) (*Listener, error) {
	if _, found := n.listeners[port]; found {
		return nil, fmt.Errorf("listen on %s:%d: %w", n.ip, port, ErrPortInUse)
	}

	if _, found := n.sockets[port]; found {
		return nil, fmt.Errorf("listen on %s:%d: %w", n.ip, port, ErrPortInUse)
	}

	l := &Listener{
		node:  n,
		local: netip.AddrPortFrom(n.ip, port),
		conns: make(map[netip.AddrPort]bool),
	}
	n.listeners[port] = l

	return l, nil
}

func (n *Node) transmit(
	kind SegmentKind,
	src, dst netip.AddrPort,
	payload []byte,
) error {
	if n.link == nil {
		return fmt.Errorf("node %s has no link: %w", n.name, ErrUnreachable)
	}

	seg := &Segment{
		ID:      id.Generate(),
		Kind:    kind,
		Src:     src,
		Dst:     dst,
		Payload: payload,
	}

	return n.link.send(n, seg)
}

func (n *Node) receive(seg *Segment) {
	port := seg.Dst.Port()

	if l, found := n.listeners[port]; found {
		l.receive(seg)
		return
	}

	if s, found := n.sockets[port]; found {
		s.receive(seg)
		return
	}

	if seg.Kind == SegmentSYN {
		n.reset(seg)
		return
	}

	n.drop(seg, "no socket bound to port")
}

// reset answers a segment with RST.
func (n *Node) reset(seg *Segment) {
	err := n.transmit(SegmentRST, seg.Dst, seg.Src, nil)
	if err != nil {
		n.logger.Warn("cannot send reset", "dst", seg.Src.String(), "err", err)
	}
}

func (n *Node) drop(seg *Segment, reason string) {
	n.logger.Debug("segment dropped",
		"kind", seg.Kind.String(),
		"src", seg.Src.String(),
		"dst", seg.Dst.String(),
		"reason", reason)

	n.InvokeHook(hooking.HookCtx{
		Domain: n,
		Pos:    HookPosSegmentDropped,
		Item:   seg,
		Detail: reason,
	})
}
