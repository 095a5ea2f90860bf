package network

import (
	"fmt"
	"net/netip"

	"github.com/HaseebLUMS/tree-sim/timing"
)

// HeaderBytes is the number of bytes a segment occupies on the wire on top of
// its payload (IPv4 and TCP headers without options).
const HeaderBytes = 40

// SegmentKind identifies the role of a segment in the connection protocol.
type SegmentKind int

// Segment kinds.
const (
	SegmentSYN SegmentKind = iota
	SegmentSYNACK
	SegmentRST
	SegmentData
	SegmentFIN
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentSYN:
		return "SYN"
	case SegmentSYNACK:
		return "SYN-ACK"
	case SegmentRST:
		return "RST"
	case SegmentData:
		return "DATA"
	case SegmentFIN:
		return "FIN"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// A Segment is the unit carried by a Link.
type Segment struct {
	ID       string
	Kind     SegmentKind
	Src, Dst netip.AddrPort
	Payload  []byte
	SendTime timing.VTime
	RecvTime timing.VTime
}

// WireBytes returns the number of bytes the segment occupies on the link.
func (s *Segment) WireBytes() int {
	return HeaderBytes + len(s.Payload)
}
