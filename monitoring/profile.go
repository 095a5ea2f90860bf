package monitoring

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/pprof"
	"sort"
	"time"

	"github.com/google/pprof/profile"
)

// ErrProfilerStopped is returned when a stopped profiler is stopped again.
var ErrProfilerStopped = errors.New("profiler already stopped")

// A Profiler collects a CPU profile of the process in memory.
type Profiler struct {
	buf     bytes.Buffer
	stopped bool
}

// StartProfiler starts CPU profiling. Only one profiler can run at a time.
func StartProfiler() (*Profiler, error) {
	p := &Profiler{}

	err := pprof.StartCPUProfile(&p.buf)
	if err != nil {
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}

	return p, nil
}

// Stop ends profiling and parses what was collected.
func (p *Profiler) Stop() (*profile.Profile, error) {
	if p.stopped {
		return nil, ErrProfilerStopped
	}

	p.stopped = true
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(p.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("parse cpu profile: %w", err)
	}

	return prof, nil
}

// Bytes returns the raw profile in the pprof format. Valid after Stop.
func (p *Profiler) Bytes() []byte {
	return p.buf.Bytes()
}

// FunctionCost is the CPU time spent in a function itself.
type FunctionCost struct {
	Name string
	Flat time.Duration
}

// TopFunctions returns the n functions with the most CPU time spent in their
// own code, most expensive first.
func TopFunctions(prof *profile.Profile, n int) []FunctionCost {
	index := -1

	for i, st := range prof.SampleType {
		if st.Type == "cpu" {
			index = i
			break
		}
	}

	if index < 0 {
		return nil
	}

	flat := make(map[string]int64)

	for _, s := range prof.Sample {
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 {
			continue
		}

		fn := s.Location[0].Line[0].Function
		if fn == nil {
			continue
		}

		flat[fn.Name] += s.Value[index]
	}

	costs := make([]FunctionCost, 0, len(flat))
	for name, v := range flat {
		costs = append(costs, FunctionCost{Name: name, Flat: time.Duration(v)})
	}

	sort.Slice(costs, func(i, j int) bool {
		if costs[i].Flat != costs[j].Flat {
			return costs[i].Flat > costs[j].Flat
		}

		return costs[i].Name < costs[j].Name
	})

	if len(costs) > n {
		costs = costs[:n]
	}

	return costs
}
