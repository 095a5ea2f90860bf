package tracing

import (
	"fmt"
	"log/slog"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/network"
)

// SegmentTracer is a hook that writes a task for every segment a link
// delivers.
type SegmentTracer struct {
	writer TraceWriter
	logger *slog.Logger
	count  uint64
	failed bool
}

// NewSegmentTracer creates a tracer that writes to writer.
func NewSegmentTracer(writer TraceWriter, logger *slog.Logger) *SegmentTracer {
	if logger == nil {
		logger = slog.Default()
	}

	return &SegmentTracer{
		writer: writer,
		logger: logger,
	}
}

// Func writes the delivered segment as a task.
func (t *SegmentTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != network.HookPosSegmentDelivered {
		return
	}

	seg, ok := ctx.Item.(*network.Segment)
	if !ok {
		return
	}

	task := Task{
		ID:        seg.ID,
		Kind:      seg.Kind.String(),
		What:      fmt.Sprintf("%s->%s", seg.Src, seg.Dst),
		Where:     where(ctx.Domain),
		StartTime: seg.SendTime,
		EndTime:   seg.RecvTime,
	}

	t.count++

	err := t.writer.Write(task)
	if err != nil && !t.failed {
		t.failed = true
		t.logger.Error("tracing segments failed", "err", err)
	}
}

// Traced returns the number of tasks handed to the writer.
func (t *SegmentTracer) Traced() uint64 {
	return t.count
}

func where(domain any) string {
	if n, ok := domain.(interface{ Name() string }); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", domain)
}
