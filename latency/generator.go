// Package latency measures the one-way latency of a stream of packets. A
// Generator sends fixed-size payloads at a fixed rate, each stamped with its
// virtual send time, and a Recorder turns the payloads that arrive into
// latency samples.
package latency

import (
	"fmt"
	"log/slog"
	"net/netip"
	"reflect"
	"time"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/timing"
)

// HookPosPacketSent marks when the generator hands a payload to its socket.
// The hook item is the payload.
var HookPosPacketSent = &hooking.HookPos{Name: "Packet Sent"}

// HookPosConnectFailed marks when the generator's connection attempt fails.
var HookPosConnectFailed = &hooking.HookPos{Name: "Connect Failed"}

// A Socket is the client end of a reliable, ordered connection.
type Socket interface {
	// Connect starts connecting to dst. One of the callbacks runs later,
	// unless the socket is closed first.
	Connect(dst netip.AddrPort, onConnected, onFailed func()) error

	// Send transmits data on an established connection.
	Send(data []byte) error

	// Close shuts the connection down.
	Close() error
}

// A Dialer creates sockets.
type Dialer interface {
	NewSocket() Socket
}

type sendEvent struct {
	*timing.EventBase
}

// A Generator connects to a remote address and then sends a fixed number of
// timestamped payloads at a fixed interval.
type Generator struct {
	*hooking.HookableBase

	name        string
	engine      timing.EventScheduler
	dialer      Dialer
	logger      *slog.Logger
	remote      netip.AddrPort
	payloadSize int
	interval    time.Duration
	total       uint64

	state  State
	sent   uint64
	socket Socket
}

// Name returns the name of the generator.
func (g *Generator) Name() string {
	return g.name
}

// State returns the connection state.
func (g *Generator) State() State {
	return g.state
}

// Sent returns the number of payloads handed to the socket.
func (g *Generator) Sent() uint64 {
	return g.sent
}

// Total returns the number of payloads the generator sends if it is never
// stopped early.
func (g *Generator) Total() uint64 {
	return g.total
}

// Interval returns the time between two consecutive payloads.
func (g *Generator) Interval() time.Duration {
	return g.interval
}

// Start opens the connection. It is a no-op unless the generator is Idle.
func (g *Generator) Start() {
	if g.state != Idle {
		g.logger.Warn("start ignored", "state", g.state.String())
		return
	}

	g.moveTo(Connecting)
	g.socket = g.dialer.NewSocket()

	g.logger.Info("connecting", "remote", g.remote.String())

	err := g.socket.Connect(g.remote, g.onConnected, g.onConnectFailed)
	if err != nil {
		g.logger.Warn("connect rejected", "err", err)
		g.onConnectFailed()
	}
}

// Stop closes the connection. Sends that are already scheduled find the
// generator closed and do nothing.
func (g *Generator) Stop() {
	if g.socket != nil {
		err := g.socket.Close()
		if err != nil {
			g.logger.Warn("close failed", "err", err)
		}

		g.socket = nil
	}

	if g.state == Closed {
		return
	}

	g.moveTo(Closed)
	g.logger.Info("stopped", "sent", g.sent, "total", g.total)
}

// Handle handles the generator's own send events.
func (g *Generator) Handle(e timing.Event) error {
	switch e.(type) {
	case sendEvent:
		g.sendStep()
	default:
		panic("cannot handle event of type " + reflect.TypeOf(e).String())
	}

	return nil
}

func (g *Generator) onConnected() {
	if g.state != Connecting {
		return
	}

	g.moveTo(Connected)
	g.logger.Info("connected", "remote", g.remote.String())

	g.sendStep()
}

func (g *Generator) onConnectFailed() {
	if g.state != Connecting {
		return
	}

	g.moveTo(Closed)
	g.socket = nil

	g.logger.Warn("connection failed, no packets will be sent",
		"remote", g.remote.String())

	g.InvokeHook(hooking.HookCtx{
		Domain: g,
		Pos:    HookPosConnectFailed,
		Item:   g.remote,
	})
}

func (g *Generator) sendStep() {
	if g.state != Connected || g.socket == nil {
		return
	}

	if g.sent >= g.total {
		return
	}

	now := g.engine.Now()

	payload, err := EncodePayload(now, g.payloadSize)
	if err != nil {
		panic(err)
	}

	err = g.socket.Send(payload)
	if err != nil {
		g.logger.Error("send failed, stop sending", "seq", g.sent, "err", err)
		return
	}

	g.sent++

	g.logger.Debug("packet sent", "seq", g.sent, "at", now)
	g.InvokeHook(hooking.HookCtx{
		Domain: g,
		Pos:    HookPosPacketSent,
		Item:   payload,
	})

	if g.sent < g.total {
		g.engine.Schedule(sendEvent{
			EventBase: timing.NewEventBase(now.Add(g.interval), g),
		})
	}
}

func (g *Generator) moveTo(s State) {
	if !canMove(g.state, s) {
		panic(fmt.Sprintf("generator %s cannot move from %s to %s",
			g.name, g.state, s))
	}

	g.state = s
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func() Socket

// NewSocket calls f().
func (f DialerFunc) NewSocket() Socket {
	return f()
}
