package latency

import (
	"fmt"
	"log/slog"
	"math"
	"net/netip"
	"time"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/timing"
)

// countTolerance absorbs binary rounding in rate*duration, so that for
// example 0.29 packets per second for 100 seconds yields 29 packets.
const countTolerance = 1e-9

// MaxPacketCount bounds rate*duration so the packet count fits a uint64
// without wrapping.
const MaxPacketCount = 1 << 63

// GeneratorBuilder can build generators.
type GeneratorBuilder struct {
	engine      timing.EventScheduler
	dialer      Dialer
	logger      *slog.Logger
	remote      netip.AddrPort
	payloadSize int
	rate        float64
	duration    float64
}

// MakeGeneratorBuilder creates a builder with a payload that carries only the
// timestamp.
func MakeGeneratorBuilder() GeneratorBuilder {
	return GeneratorBuilder{
		payloadSize: TimestampBytes,
	}
}

// WithEngine sets the engine that schedules sends.
func (b GeneratorBuilder) WithEngine(e timing.EventScheduler) GeneratorBuilder {
	b.engine = e
	return b
}

// WithDialer sets where the generator gets its socket from.
func (b GeneratorBuilder) WithDialer(d Dialer) GeneratorBuilder {
	b.dialer = d
	return b
}

// WithLogger sets the logger.
func (b GeneratorBuilder) WithLogger(l *slog.Logger) GeneratorBuilder {
	b.logger = l
	return b
}

// WithRemote sets the address the generator connects to.
func (b GeneratorBuilder) WithRemote(addr netip.AddrPort) GeneratorBuilder {
	b.remote = addr
	return b
}

// WithPayloadSize sets the size of each payload in bytes.
func (b GeneratorBuilder) WithPayloadSize(n int) GeneratorBuilder {
	b.payloadSize = n
	return b
}

// WithRate sets the number of packets sent per second of virtual time.
func (b GeneratorBuilder) WithRate(packetsPerSecond float64) GeneratorBuilder {
	b.rate = packetsPerSecond
	return b
}

// WithDuration sets how many seconds of virtual time the stream lasts.
func (b GeneratorBuilder) WithDuration(seconds float64) GeneratorBuilder {
	b.duration = seconds
	return b
}

// Build validates the configuration and creates the generator. The interval
// is 1/rate seconds rounded to the nearest nanosecond. The number of packets
// is rate*duration truncated toward zero.
func (b GeneratorBuilder) Build(name string) (*Generator, error) {
	err := b.validate()
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", name, err)
	}

	interval := time.Duration(math.Round(float64(time.Second) / b.rate))
	if interval <= 0 {
		return nil, fmt.Errorf(
			"generator %s: rate %g is above one packet per nanosecond: %w",
			name, b.rate, ErrInvalidConfig)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		engine:       b.engine,
		dialer:       b.dialer,
		logger:       logger.With("generator", name),
		remote:       b.remote,
		payloadSize:  b.payloadSize,
		interval:     interval,
		total:        PacketCount(b.rate, b.duration),
		state:        Idle,
	}

	return g, nil
}

func (b GeneratorBuilder) validate() error {
	switch {
	case b.engine == nil:
		return fmt.Errorf("no engine: %w", ErrInvalidConfig)
	case b.dialer == nil:
		return fmt.Errorf("no dialer: %w", ErrInvalidConfig)
	case !b.remote.IsValid():
		return fmt.Errorf("invalid remote address %q: %w",
			b.remote.String(), ErrInvalidConfig)
	case b.payloadSize < TimestampBytes:
		return fmt.Errorf("payload size %d is below %d bytes: %w",
			b.payloadSize, TimestampBytes, ErrInvalidConfig)
	case !(b.rate > 0) || math.IsInf(b.rate, 0):
		return fmt.Errorf("rate %g must be positive: %w",
			b.rate, ErrInvalidConfig)
	case !(b.duration >= 0) || math.IsInf(b.duration, 0):
		return fmt.Errorf("duration %g must not be negative: %w",
			b.duration, ErrInvalidConfig)
	case b.rate*b.duration+countTolerance >= MaxPacketCount:
		return fmt.Errorf("rate %g over %g seconds is %g packets, above %g: %w",
			b.rate, b.duration, b.rate*b.duration, float64(MaxPacketCount),
			ErrInvalidConfig)
	}

	return nil
}

// PacketCount returns how many packets a stream of rate packets per second
// sends in duration seconds.
func PacketCount(rate, duration float64) uint64 {
	return uint64(math.Floor(rate*duration + countTolerance))
}
