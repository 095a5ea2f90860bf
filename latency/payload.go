package latency

import (
	"encoding/binary"
	"fmt"

	"github.com/HaseebLUMS/tree-sim/timing"
)

// TimestampBytes is the size of the send-time header at the start of every
// payload. The header holds the send time in nanoseconds as a big-endian
// uint64; the bytes after it are zero.
const TimestampBytes = 8

// EncodePayload builds a payload of size bytes carrying sendTime.
func EncodePayload(sendTime timing.VTime, size int) ([]byte, error) {
	if size < TimestampBytes {
		return nil, fmt.Errorf(
			"payload of %d bytes cannot hold a %d-byte timestamp: %w",
			size, TimestampBytes, ErrInvalidConfig)
	}

	buf := make([]byte, size)
	binary.BigEndian.PutUint64(buf, sendTime.Nanoseconds())

	return buf, nil
}

// DecodePayload extracts the send time from a payload.
func DecodePayload(payload []byte) (timing.VTime, error) {
	if len(payload) < TimestampBytes {
		return 0, fmt.Errorf("%d-byte payload: %w",
			len(payload), ErrMalformedPayload)
	}

	ns := binary.BigEndian.Uint64(payload[:TimestampBytes])

	return timing.VTime(ns), nil
}
