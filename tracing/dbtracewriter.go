package tracing

import (
	"github.com/HaseebLUMS/tree-sim/datarecording"
)

// TraceTable is the table that holds one row per traced segment.
const TraceTable = "segment_trace"

type taskTableEntry struct {
	ID        string
	Kind      string
	What      string
	Location  string
	StartTime float64
	EndTime   float64
}

// DBTraceWriter stores tasks in a DataRecorder. Rows are written when the
// recorder flushes.
type DBTraceWriter struct {
	backend datarecording.DataRecorder
}

// NewDBTraceWriter creates the trace table in backend.
func NewDBTraceWriter(
	backend datarecording.DataRecorder,
) (*DBTraceWriter, error) {
	err := backend.CreateTable(TraceTable, taskTableEntry{})
	if err != nil {
		return nil, err
	}

	return &DBTraceWriter{backend: backend}, nil
}

// Write buffers a task in the backend.
func (w *DBTraceWriter) Write(task Task) error {
	return w.backend.InsertData(TraceTable, taskTableEntry{
		ID:        task.ID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Where,
		StartTime: task.StartTime.Seconds(),
		EndTime:   task.EndTime.Seconds(),
	})
}

// Flush flushes the backend.
func (w *DBTraceWriter) Flush() error {
	return w.backend.Flush()
}
