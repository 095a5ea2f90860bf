package latency

import (
	"log/slog"
	"net/netip"

	"github.com/HaseebLUMS/tree-sim/hooking"
	"github.com/HaseebLUMS/tree-sim/timing"
)

// HookPosSampleRecorded marks when a sample is appended to the log. The hook
// item is the Sample.
var HookPosSampleRecorded = &hooking.HookPos{Name: "Sample Recorded"}

// HookPosPayloadRejected marks when an arrival is discarded. The hook item is
// the payload and the detail is the error.
var HookPosPayloadRejected = &hooking.HookPos{Name: "Payload Rejected"}

// A Recorder turns arriving payloads into latency samples.
type Recorder struct {
	*hooking.HookableBase

	clock  timing.TimeTeller
	log    *Log
	logger *slog.Logger

	malformed  uint64
	violations uint64
}

// NewRecorder creates a recorder that appends to log. The clock supplies the
// receive time.
func NewRecorder(
	clock timing.TimeTeller,
	log *Log,
	logger *slog.Logger,
) *Recorder {
	if log == nil {
		panic("recorder requires a log")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		HookableBase: hooking.NewHookableBase(),
		clock:        clock,
		log:          log,
		logger:       logger,
	}
}

// Log returns the log the recorder appends to.
func (r *Recorder) Log() *Log {
	return r.log
}

// Malformed returns the number of payloads too short to carry a timestamp.
func (r *Recorder) Malformed() uint64 {
	return r.malformed
}

// Violations returns the number of payloads that claimed to be sent after
// they were received.
func (r *Recorder) Violations() uint64 {
	return r.violations
}

// OnPayloadArrived records the latency of one payload. Payloads that cannot
// produce a valid sample are logged, reported through hooks, and returned as
// errors; they never stop the recorder.
func (r *Recorder) OnPayloadArrived(payload []byte, from netip.AddrPort) error {
	now := r.clock.Now()

	sendTime, err := DecodePayload(payload)
	if err != nil {
		r.malformed++
		r.logger.Warn("ignoring payload",
			"src", from.String(),
			"size", len(payload),
			"err", err)
		r.reject(payload, err)

		return err
	}

	if sendTime > now {
		r.violations++
		err := &CausalityError{Source: from, SendTime: sendTime, RecvTime: now}
		r.logger.Error("causality violation", "err", err)
		r.reject(payload, err)

		return err
	}

	sample := Sample{Source: from, SendTime: sendTime, RecvTime: now}
	r.log.append(sample)

	r.logger.Debug("payload received",
		"src", from.String(),
		"size", len(payload),
		"sent", sendTime,
		"received", now,
		"latency", sample.Latency())

	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosSampleRecorded,
		Item:   sample,
	})

	return nil
}

// Receive has the signature of a listener callback. Errors are already
// reported by OnPayloadArrived.
func (r *Recorder) Receive(payload []byte, from netip.AddrPort) {
	_ = r.OnPayloadArrived(payload, from)
}

func (r *Recorder) reject(payload []byte, err error) {
	r.InvokeHook(hooking.HookCtx{
		Domain: r,
		Pos:    HookPosPayloadRejected,
		Item:   payload,
		Detail: err,
	})
}
