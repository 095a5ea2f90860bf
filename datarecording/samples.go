package datarecording

import (
	"log/slog"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/latency"
)

// SampleTable is the table that holds one row per recorded sample.
const SampleTable = "latency_samples"

// SampleRow is the stored form of a latency.Sample.
type SampleRow struct {
	Seq        uint64
	Source     string
	SendTimeNS uint64
	RecvTimeNS uint64
	LatencySec float64
}

// NewSampleRow converts the seq-th sample to a row.
func NewSampleRow(seq uint64, s latency.Sample) SampleRow {
	return SampleRow{
		Seq:        seq,
		Source:     s.Source.String(),
		SendTimeNS: s.SendTime.Nanoseconds(),
		RecvTimeNS: s.RecvTime.Nanoseconds(),
		LatencySec: s.Seconds(),
	}
}

// A SampleRecorder is a hook that stores every sample a latency.Recorder
// records.
type SampleRecorder struct {
	recorder DataRecorder
	logger   *slog.Logger
	seq      uint64
	failed   bool
}

// NewSampleRecorder creates the sample table and returns a hook that fills
// it.
func NewSampleRecorder(
	recorder DataRecorder,
	logger *slog.Logger,
) (*SampleRecorder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	err := recorder.CreateTable(SampleTable, SampleRow{})
	if err != nil {
		return nil, err
	}

	return &SampleRecorder{
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Func records the sample carried by the hook context.
func (r *SampleRecorder) Func(ctx hooking.HookCtx) {
	if ctx.Pos != latency.HookPosSampleRecorded {
		return
	}

	sample, ok := ctx.Item.(latency.Sample)
	if !ok {
		return
	}

	err := r.recorder.InsertData(SampleTable, NewSampleRow(r.seq, sample))
	r.seq++

	if err != nil && !r.failed {
		r.failed = true
		r.logger.Error("storing samples failed", "err", err)
	}
}

// Recorded returns the number of samples handed to the backend.
func (r *SampleRecorder) Recorded() uint64 {
	return r.seq
}
