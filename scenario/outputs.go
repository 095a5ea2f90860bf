package scenario

import (
	"github.com/HaseebLUMS/tree-sim/datarecording"
	"github.com/HaseebLUMS/tree-sim/latency"
	"github.com/HaseebLUMS/tree-sim/metrics"
	"github.com/HaseebLUMS/tree-sim/timing"
	"github.com/HaseebLUMS/tree-sim/tracing"
)

type textOutput struct {
	path string
	log  *latency.Log
}

func (o *textOutput) Handle(_ timing.VTime) error {
	return datarecording.SaveText(o.path, o.log)
}

type storeOutput struct {
	store datarecording.DataRecorder
}

func (o *storeOutput) Handle(_ timing.VTime) error {
	return o.store.Close()
}

type traceOutput struct {
	writer *tracing.CSVTraceWriter
}

func (o *traceOutput) Handle(_ timing.VTime) error {
	return o.writer.Close()
}

type metricsOutput struct {
	path      string
	collector *metrics.Collector
}

func (o *metricsOutput) Handle(_ timing.VTime) error {
	return o.collector.WriteTextfile(o.path)
}

type stopEvent struct {
	*timing.EventBase
}

type stopper struct {
	engine timing.Engine
}

func (h stopper) Handle(_ timing.Event) error {
	h.engine.Stop()
	return nil
}
