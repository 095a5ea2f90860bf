package timing

import (
	"fmt"
	"math"
	"time"
)

// VTime is an instant in simulated time, counted in nanoseconds from the start
// of the simulation. The resolution is fixed for the lifetime of a run.
type VTime uint64

// Common durations expressed as VTime offsets.
const (
	Nanosecond  VTime = 1
	Microsecond       = 1000 * Nanosecond
	Millisecond       = 1000 * Microsecond
	Second            = 1000 * Millisecond
)

// FromDuration converts a non-negative duration to a VTime offset. Negative
// durations panic.
func FromDuration(d time.Duration) VTime {
	if d < 0 {
		panic(fmt.Sprintf("negative duration %s", d))
	}

	return VTime(d.Nanoseconds())
}

// FromSeconds converts a number of seconds to VTime, rounding to the nearest
// nanosecond.
func FromSeconds(sec float64) VTime {
	if sec < 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		panic(fmt.Sprintf("invalid time %v", sec))
	}

	return VTime(math.Round(sec * 1e9))
}

// Add returns t+d. Adding a negative duration that moves t before zero panics.
func (t VTime) Add(d time.Duration) VTime {
	if d < 0 && VTime(-d) > t {
		panic("time before simulation start")
	}

	return VTime(int64(t) + int64(d))
}

// Sub returns the duration t-u. The result is negative when u is after t.
func (t VTime) Sub(u VTime) time.Duration {
	return time.Duration(int64(t) - int64(u))
}

// Before reports whether t is before u.
func (t VTime) Before(u VTime) bool {
	return t < u
}

// After reports whether t is after u.
func (t VTime) After(u VTime) bool {
	return t > u
}

// Seconds returns t in seconds.
func (t VTime) Seconds() float64 {
	return float64(t) / 1e9
}

// Nanoseconds returns t as an integer nanosecond count.
func (t VTime) Nanoseconds() uint64 {
	return uint64(t)
}

// String formats the time in seconds with nanosecond precision.
func (t VTime) String() string {
	return fmt.Sprintf("+%d.%09ds", uint64(t)/1e9, uint64(t)%1e9)
}
