// Package tracing records the lifetime of every segment that crosses the link.
package tracing

import (
	"github.com/HaseebLUMS/tree-sim/timing"
)

// A Task is one segment's trip over the link.
type Task struct {
	ID        string       `json:"id"`
	Kind      string       `json:"kind"`
	What      string       `json:"what"`
	Where     string       `json:"where"`
	StartTime timing.VTime `json:"start_time"`
	EndTime   timing.VTime `json:"end_time"`
}

// A TraceWriter stores finished tasks.
type TraceWriter interface {
	Write(task Task) error
	Flush() error
}
