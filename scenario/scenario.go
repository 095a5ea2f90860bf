// Package scenario builds the two-node latency experiment from a
// configuration, runs it, and writes its outputs.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/HaseebLUMS/tree-sim/config"
	"github.com/HaseebLUMS/tree-sim/datarecording"
	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/id"
	"github.com/HaseebLUMS/tree-sim/latency"
	"github.com/HaseebLUMS/tree-sim/metrics"
	"github.com/HaseebLUMS/tree-sim/monitoring"
	"github.com/HaseebLUMS/tree-sim/network"
	"github.com/HaseebLUMS/tree-sim/timing"
	"github.com/HaseebLUMS/tree-sim/tracing"
)

// ErrAlreadyRun is returned when Run is called a second time.
var ErrAlreadyRun = errors.New("simulation already run")

var openStore = datarecording.New

// Result summarizes a finished run.
type Result struct {
	Sent       uint64
	Received   uint64
	Malformed  uint64
	Violations uint64
	Dropped    uint64
	EndTime    timing.VTime
	Latencies  *latency.Log
}

// A Simulation is a fully wired experiment that has not run yet.
type Simulation struct {
	ID string

	cfg    *config.Scenario
	logger *slog.Logger

	engine    *timing.SerialEngine
	client    *network.Node
	server    *network.Node
	link      *network.Link
	listener  *network.Listener
	generator *latency.Generator
	recorder  *latency.Recorder
	log       *latency.Log

	progress  *monitoring.ProgressLogger
	collector *metrics.Collector
	store     datarecording.DataRecorder
	samples   *datarecording.SampleRecorder
	tracers   []*tracing.SegmentTracer
	opened    []io.Closer

	ran bool
}

// Build wires a simulation from cfg. The configuration must be valid.
func Build(cfg *config.Scenario, logger *slog.Logger) (*Simulation, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		ID:     id.Unique(),
		cfg:    cfg,
		logger: logger,
		engine: timing.NewSerialEngine().WithLogger(logger),
		log:    latency.NewLog(),
	}

	if logger.Enabled(context.Background(), slog.LevelDebug) {
		s.engine.AcceptHook(timing.NewEventLogger(logger))
	}

	s.buildTopology()

	err = s.buildSink()
	if err != nil {
		return nil, err
	}

	err = s.buildGenerator()
	if err != nil {
		return nil, err
	}

	err = s.buildOutputs()
	if err != nil {
		s.closeOutputs()
		return nil, err
	}

	err = s.schedule()
	if err != nil {
		s.closeOutputs()
		return nil, err
	}

	return s, nil
}

func (s *Simulation) buildTopology() {
	s.client = network.NewNode("Client", s.cfg.ClientIP(), s.engine, s.logger)
	s.server = network.NewNode("Server",
		s.cfg.ServerAddr().Addr(), s.engine, s.logger)

	s.link = network.MakeLinkBuilder().
		WithEngine(s.engine).
		WithDelay(s.cfg.Link.Delay).
		WithDataRate(s.cfg.Link.DataRateBps).
		WithLogger(s.logger).
		Build("Link")
	s.link.Attach(s.client, s.server)
}

func (s *Simulation) buildSink() error {
	listener, err := s.server.Listen(s.cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.listener = listener
	s.recorder = latency.NewRecorder(s.engine, s.log, s.logger)
	s.listener.OnReceive(s.recorder.Receive)

	return nil
}

func (s *Simulation) buildGenerator() error {
	client := s.client

	g, err := latency.MakeGeneratorBuilder().
		WithEngine(s.engine).
		WithDialer(latency.DialerFunc(func() latency.Socket {
			return client.NewSocket()
		})).
		WithLogger(s.logger).
		WithRemote(s.cfg.ServerAddr()).
		WithPayloadSize(s.cfg.Client.PayloadSize).
		WithRate(s.cfg.Client.Rate).
		WithDuration(s.cfg.Client.Duration).
		Build("Generator")
	if err != nil {
		return err
	}

	s.generator = g
	s.progress = monitoring.NewProgressLogger(g.Name(), g.Total(), s.logger)
	g.AcceptHook(s.progress)

	return nil
}

func (s *Simulation) buildOutputs() error {
	s.engine.RegisterSimulationEndHandler(&textOutput{
		path: s.cfg.Output.Latencies,
		log:  s.log,
	})

	if s.cfg.Output.SQLite != "" {
		store, err := openStore(s.cfg.Output.SQLite, s.logger)
		if err != nil {
			return err
		}

		s.opened = append(s.opened, store)

		samples, err := datarecording.NewSampleRecorder(store, s.logger)
		if err != nil {
			return err
		}

		dbTrace, err := tracing.NewDBTraceWriter(store)
		if err != nil {
			return err
		}

		s.store = store
		s.samples = samples
		s.recorder.AcceptHook(samples)
		s.addTracer(dbTrace)
		s.engine.RegisterSimulationEndHandler(&storeOutput{store: store})
	}

	if s.cfg.Output.Trace != "" {
		csvTrace := tracing.NewCSVTraceWriter(s.cfg.Output.Trace)

		err := csvTrace.Init()
		if err != nil {
			return err
		}

		s.opened = append(s.opened, csvTrace)

		s.addTracer(csvTrace)
		s.engine.RegisterSimulationEndHandler(&traceOutput{writer: csvTrace})
	}

	s.collector = metrics.NewCollector(s.ID)
	for _, h := range []hooking.Hookable{
		s.generator, s.recorder, s.link, s.client, s.server,
	} {
		h.AcceptHook(s.collector)
	}

	if s.cfg.Output.Metrics != "" {
		s.engine.RegisterSimulationEndHandler(&metricsOutput{
			path:      s.cfg.Output.Metrics,
			collector: s.collector,
		})
	}

	return nil
}

// closeOutputs releases the files opened by buildOutputs when the simulation
// cannot be built.
func (s *Simulation) closeOutputs() {
	for _, c := range s.opened {
		err := c.Close()
		if err != nil {
			s.logger.Warn("cannot close output", "err", err)
		}
	}

	s.opened = nil
}

func (s *Simulation) addTracer(w tracing.TraceWriter) {
	t := tracing.NewSegmentTracer(w, s.logger)
	s.link.AcceptHook(t)
	s.tracers = append(s.tracers, t)
}

func (s *Simulation) schedule() error {
	err := network.ScheduleApplication(s.engine, s.listener,
		timing.FromDuration(s.cfg.Server.Start),
		timing.FromDuration(s.cfg.Server.Stop))
	if err != nil {
		return fmt.Errorf("schedule sink: %w", err)
	}

	err = network.ScheduleApplication(s.engine, s.generator,
		timing.FromDuration(s.cfg.Client.Start),
		timing.FromDuration(s.cfg.Client.Stop))
	if err != nil {
		return fmt.Errorf("schedule generator: %w", err)
	}

	if s.cfg.StopTime > 0 {
		s.engine.Schedule(stopEvent{
			EventBase: timing.NewSecondaryEventBase(
				timing.FromDuration(s.cfg.StopTime), stopper{s.engine}),
		})
	}

	return nil
}

// Engine returns the engine the simulation runs on.
func (s *Simulation) Engine() *timing.SerialEngine {
	return s.engine
}

// Generator returns the packet generator on the client node.
func (s *Simulation) Generator() *latency.Generator {
	return s.generator
}

// Recorder returns the latency recorder on the server node.
func (s *Simulation) Recorder() *latency.Recorder {
	return s.recorder
}

// Link returns the link between the two nodes.
func (s *Simulation) Link() *network.Link {
	return s.link
}

// Progress returns the progress tracker of the generator.
func (s *Simulation) Progress() *monitoring.ProgressLogger {
	return s.progress
}

// Collector returns the metrics collector. It counts activity even when no
// metrics file is configured.
func (s *Simulation) Collector() *metrics.Collector {
	return s.collector
}

// Run runs the engine until no event is left or the stop time is reached,
// then writes every configured output. Output failures are returned after all
// outputs were attempted.
func (s *Simulation) Run() (*Result, error) {
	if s.ran {
		return nil, ErrAlreadyRun
	}

	s.ran = true

	s.logger.Info("simulation started",
		"id", s.ID,
		"packets", s.generator.Total(),
		"interval", s.generator.Interval())

	err := s.engine.Run()
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	result := &Result{
		Sent:       s.generator.Sent(),
		Received:   s.listener.Received(),
		Malformed:  s.recorder.Malformed(),
		Violations: s.recorder.Violations(),
		Dropped:    s.listener.Dropped(),
		EndTime:    s.engine.Now(),
		Latencies:  s.log,
	}

	s.logger.Info("simulation finished",
		"id", s.ID,
		"end", result.EndTime,
		"sent", result.Sent,
		"samples", s.log.Len(),
		"malformed", result.Malformed,
		"violations", result.Violations,
		"dropped", result.Dropped)

	err = s.engine.Finished()
	if err != nil {
		return result, err
	}

	return result, nil
}
