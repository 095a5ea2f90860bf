package network

import (
	"errors"
	"fmt"
	"net/netip"
	"reflect"

	"github.com/HaseebLUMS/tree-sim/timing"
)

var (
	// ErrNotConnected is returned when sending on a socket that has not
	// completed its handshake.
	ErrNotConnected = errors.New("socket not connected")

	// ErrClosed is returned when using a socket after Close.
	ErrClosed = errors.New("socket closed")

	// ErrAlreadyConnecting is returned when Connect is called twice.
	ErrAlreadyConnecting = errors.New("connect already called")
)

type socketState int

const (
	socketIdle socketState = iota
	socketSynSent
	socketEstablished
	socketClosed
)

type connectFailedEvent struct {
	*timing.EventBase
	reason error
}

// A Socket is the client end of a connection.
type Socket struct {
	node   *Node
	local  netip.AddrPort
	remote netip.AddrPort
	state  socketState

	onConnected func()
	onFailed    func()
}

// LocalAddr returns the address the socket is bound to.
func (s *Socket) LocalAddr() netip.AddrPort {
	return s.local
}

// RemoteAddr returns the address passed to Connect.
func (s *Socket) RemoteAddr() netip.AddrPort {
	return s.remote
}

// Connected reports whether the handshake completed and the socket is not
// closed.
func (s *Socket) Connected() bool {
	return s.state == socketEstablished
}

// Connect starts the handshake with dst. Exactly one of onConnected and
// onFailed is called later, from an engine event, unless the socket is closed
// first.
func (s *Socket) Connect(dst netip.AddrPort, onConnected, onFailed func()) error {
	switch s.state {
	case socketClosed:
		return ErrClosed
	case socketSynSent, socketEstablished:
		return ErrAlreadyConnecting
	}

	s.remote = dst
	s.onConnected = onConnected
	s.onFailed = onFailed
	s.state = socketSynSent

	err := s.node.transmit(SegmentSYN, s.local, dst, nil)
	if err != nil {
		s.node.engine.Schedule(connectFailedEvent{
			EventBase: timing.NewEventBase(s.node.engine.Now(), s),
			reason:    err,
		})
	}

	return nil
}

// Send transmits data as a single segment. The data is copied.
func (s *Socket) Send(data []byte) error {
	switch s.state {
	case socketClosed:
		return ErrClosed
	case socketEstablished:
	default:
		return ErrNotConnected
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	return s.node.transmit(SegmentData, s.local, s.remote, payload)
}

// Close shuts the socket down. Pending handshake callbacks are not invoked
// after Close.
func (s *Socket) Close() error {
	if s.state == socketClosed {
		return ErrClosed
	}

	wasEstablished := s.state == socketEstablished
	s.state = socketClosed
	s.node.releasePort(s.local.Port())

	if wasEstablished {
		err := s.node.transmit(SegmentFIN, s.local, s.remote, nil)
		if err != nil {
			return fmt.Errorf("close %s: %w", s.local, err)
		}
	}

	return nil
}

// Handle reports connection failures that are detected locally.
func (s *Socket) Handle(e timing.Event) error {
	switch e := e.(type) {
	case connectFailedEvent:
		s.node.logger.Warn("connect failed",
			"local", s.local.String(),
			"remote", s.remote.String(),
			"err", e.reason)
		s.fail()
	default:
		panic("cannot handle event of type " + reflect.TypeOf(e).String())
	}

	return nil
}

func (s *Socket) receive(seg *Segment) {
	if seg.Src != s.remote {
		s.node.drop(seg, "segment from unexpected peer")
		return
	}

	switch seg.Kind {
	case SegmentSYNACK:
		if s.state != socketSynSent {
			s.node.drop(seg, "unexpected SYN-ACK")
			return
		}

		s.state = socketEstablished
		if s.onConnected != nil {
			s.onConnected()
		}
	case SegmentRST:
		s.fail()
	default:
		s.node.drop(seg, "unexpected segment on client socket")
	}
}

func (s *Socket) fail() {
	if s.state != socketSynSent {
		return
	}

	s.state = socketClosed
	s.node.releasePort(s.local.Port())

	if s.onFailed != nil {
		s.onFailed()
	}
}
