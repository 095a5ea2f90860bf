package latency

import (
	"net/netip"
	"time"

	"github.com/HaseebLUMS/tree-sim/timing"
)

// A Sample is the latency measured for one received payload.
type Sample struct {
	Source   netip.AddrPort
	SendTime timing.VTime
	RecvTime timing.VTime
}

// Latency returns the time the payload spent between sender and receiver.
func (s Sample) Latency() time.Duration {
	return s.RecvTime.Sub(s.SendTime)
}

// Seconds returns the latency in seconds.
func (s Sample) Seconds() float64 {
	return s.Latency().Seconds()
}

// A Log is an append-only sequence of samples in arrival order. A Log is owned
// by the Recorder that fills it; others only read it after the simulation.
type Log struct {
	samples []Sample
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

func (l *Log) append(s Sample) {
	l.samples = append(l.samples, s)
}

// Len returns the number of samples.
func (l *Log) Len() int {
	return len(l.samples)
}

// At returns the i-th sample.
func (l *Log) At(i int) Sample {
	return l.samples[i]
}

// Samples returns a copy of all the samples.
func (l *Log) Samples() []Sample {
	out := make([]Sample, len(l.samples))
	copy(out, l.samples)

	return out
}

// Seconds returns the latencies in seconds, in arrival order.
func (l *Log) Seconds() []float64 {
	out := make([]float64, len(l.samples))
	for i, s := range l.samples {
		out[i] = s.Seconds()
	}

	return out
}
