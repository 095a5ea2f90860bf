package monitoring

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/id"
	"github.com/HaseebLUMS/tree-sim/latency"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

type progressSnapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// MarshalJSON encodes a consistent snapshot of the bar.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	b.Lock()
	s := progressSnapshot{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
	}
	b.Unlock()

	return json.Marshal(s)
}

// NewProgressBar creates a progress bar that expects total items.
func NewProgressBar(name string, total uint64) *ProgressBar {
	return &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// Fraction returns the finished share of the total, between 0 and 1.
func (b *ProgressBar) Fraction() float64 {
	b.Lock()
	defer b.Unlock()

	if b.Total == 0 {
		return 1
	}

	return float64(b.Finished) / float64(b.Total)
}

// A ProgressLogger is a hook that advances a progress bar for every packet a
// generator sends and logs each time another tenth is done.
type ProgressLogger struct {
	bar    *ProgressBar
	logger *slog.Logger
	logged int
}

// NewProgressLogger tracks the packets of a generator that will send total
// packets.
func NewProgressLogger(
	name string,
	total uint64,
	logger *slog.Logger,
) *ProgressLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProgressLogger{
		bar:    NewProgressBar(name, total),
		logger: logger,
	}
}

// Bar returns the underlying progress bar.
func (p *ProgressLogger) Bar() *ProgressBar {
	return p.bar
}

// Func advances the bar on every sent packet.
func (p *ProgressLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != latency.HookPosPacketSent {
		return
	}

	p.bar.IncrementFinished(1)

	tenth := int(p.bar.Fraction() * 10)
	if tenth <= p.logged {
		return
	}

	p.logged = tenth
	p.logger.Info("progress",
		"name", p.bar.Name,
		"finished", p.bar.Finished,
		"total", p.bar.Total,
		"elapsed", time.Since(p.bar.StartTime).Round(time.Millisecond))
}
