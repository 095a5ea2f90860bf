package latency

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/HaseebLUMS/tree-sim/timing"
)

var (
	// ErrInvalidConfig is wrapped by every error that rejects a generator
	// configuration.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrMalformedPayload is wrapped by errors about payloads that are too
	// short to carry a timestamp.
	ErrMalformedPayload = errors.New("payload shorter than timestamp header")

	// ErrCausalityViolation is matched by CausalityError.
	ErrCausalityViolation = errors.New("payload received before it was sent")
)

// A CausalityError reports a payload whose decoded send time is after the
// time it was received. It means the payload encoding or the clock is broken.
type CausalityError struct {
	Source   netip.AddrPort
	SendTime timing.VTime
	RecvTime timing.VTime
}

func (e *CausalityError) Error() string {
	return fmt.Sprintf("payload from %s sent at %s but received at %s",
		e.Source, e.SendTime, e.RecvTime)
}

// Is makes errors.Is(err, ErrCausalityViolation) succeed.
func (e *CausalityError) Is(target error) bool {
	return target == ErrCausalityViolation
}
