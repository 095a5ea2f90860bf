// Package monitoring reports on the simulator process itself: progress of the
// flow, CPU and memory usage, and CPU profiles.
package monitoring

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/process"
)

// ResourceUsage is a snapshot of the process's resource consumption.
type ResourceUsage struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

// Resources measures the current process.
func Resources() (ResourceUsage, error) {
	pid := os.Getpid()

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("inspect process %d: %w", pid, err)
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("cpu usage: %w", err)
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("memory usage: %w", err)
	}

	return ResourceUsage{
		CPUPercent: cpuPercent,
		MemorySize: memInfo.RSS,
	}, nil
}

// LogResources writes the current resource usage to the logger. Failures to
// measure are logged at warn level.
func LogResources(logger *slog.Logger) {
	usage, err := Resources()
	if err != nil {
		logger.Warn("cannot measure resources", "err", err)
		return
	}

	logger.Info("resource usage",
		"cpu_percent", usage.CPUPercent,
		"rss_bytes", usage.MemorySize)
}
