// Package metrics counts simulation activity with Prometheus collectors and
// writes them to a textfile after the run.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/latency"
	"github.com/HaseebLUMS/tree-sim/network"
)

// Collector is a hook that turns hook invocations into counters. Attach it to
// generators, recorders, links and nodes.
type Collector struct {
	registry *prometheus.Registry

	packetsSent      *prometheus.CounterVec
	connectFailures  *prometheus.CounterVec
	samplesRecorded  *prometheus.CounterVec
	payloadsRejected *prometheus.CounterVec
	segments         *prometheus.CounterVec
	bytes            *prometheus.CounterVec
	dropped          *prometheus.CounterVec
}

// NewCollector creates a Collector with its own registry. Every series
// carries the simulation ID as a constant label.
func NewCollector(simulationID string) *Collector {
	labels := prometheus.Labels{"simulation_id": simulationID}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		packetsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_packets_sent_total",
				Help:        "Timestamped payloads handed to the transport",
				ConstLabels: labels,
			},
			[]string{"generator"},
		),
		connectFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_connect_failures_total",
				Help:        "Connection attempts that were refused",
				ConstLabels: labels,
			},
			[]string{"generator"},
		),
		samplesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_samples_recorded_total",
				Help:        "Latency samples appended to the log",
				ConstLabels: labels,
			},
			[]string{"source"},
		),
		payloadsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_payloads_rejected_total",
				Help:        "Arrivals discarded by the recorder",
				ConstLabels: labels,
			},
			[]string{"reason"},
		),
		segments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_link_segments_total",
				Help:        "Segments seen on the link by event",
				ConstLabels: labels,
			},
			[]string{"link", "event", "kind"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_link_bytes_total",
				Help:        "Wire bytes delivered by the link",
				ConstLabels: labels,
			},
			[]string{"link"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "treesim_segments_dropped_total",
				Help:        "Segments a node could not deliver",
				ConstLabels: labels,
			},
			[]string{"node", "kind"},
		),
	}

	c.registry.MustRegister(
		c.packetsSent,
		c.connectFailures,
		c.samplesRecorded,
		c.payloadsRejected,
		c.segments,
		c.bytes,
		c.dropped,
	)

	return c
}

// Registry returns the registry holding all the counters.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Func updates the counters for one hook invocation.
func (c *Collector) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case latency.HookPosPacketSent:
		c.packetsSent.WithLabelValues(domainName(ctx.Domain)).Inc()
	case latency.HookPosConnectFailed:
		c.connectFailures.WithLabelValues(domainName(ctx.Domain)).Inc()
	case latency.HookPosSampleRecorded:
		sample := ctx.Item.(latency.Sample)
		c.samplesRecorded.WithLabelValues(sample.Source.String()).Inc()
	case latency.HookPosPayloadRejected:
		c.payloadsRejected.WithLabelValues(rejectReason(ctx.Detail)).Inc()
	case network.HookPosSegmentSent:
		seg := ctx.Item.(*network.Segment)
		c.segments.WithLabelValues(
			domainName(ctx.Domain), "sent", seg.Kind.String()).Inc()
	case network.HookPosSegmentDelivered:
		seg := ctx.Item.(*network.Segment)
		c.segments.WithLabelValues(
			domainName(ctx.Domain), "delivered", seg.Kind.String()).Inc()
		c.bytes.WithLabelValues(domainName(ctx.Domain)).
			Add(float64(seg.WireBytes()))
	case network.HookPosSegmentDropped:
		seg := ctx.Item.(*network.Segment)
		c.dropped.WithLabelValues(
			domainName(ctx.Domain), seg.Kind.String()).Inc()
	}
}

// WriteTextfile writes all the counters in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	err := prometheus.WriteToTextfile(path, c.registry)
	if err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}

	return nil
}

type named interface {
	Name() string
}

func domainName(d any) string {
	if n, ok := d.(named); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", d)
}

func rejectReason(err any) string {
	e, ok := err.(error)
	if !ok {
		return "unknown"
	}

	switch {
	case errors.Is(e, latency.ErrMalformedPayload):
		return "malformed"
	case errors.Is(e, latency.ErrCausalityViolation):
		return "causality"
	default:
		return "unknown"
	}
}
