// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import "net/netip"

// PacketEvent is a decoded observation of one IPv4 TCP or UDP packet. All
// multi-byte fields are host-endian; Length is the IPv4 total-length field
// preserved verbatim.
type PacketEvent struct {
	Protocol Protocol
	SrcIP    netip.Addr
	SrcPort  uint16
	DstIP    netip.Addr
	DstPort  uint16
	Length   uint16
}

// Direction identifies which clsact hook an event was observed on. All is
// only ever used as a configuration-time selector; it is never the
// direction of an actual FlowPacket.
type Direction uint8

const (
	DirAll Direction = iota
	DirIngress
	DirEgress
)

func (d Direction) String() string {
	switch d {
	case DirIngress:
		return "ingress"
	case DirEgress:
		return "egress"
	case DirAll:
		return "all"
	default:
		return "unknown"
	}
}

// FlowPacket pairs a decoded PacketEvent with the interface and direction
// it was observed on.
type FlowPacket struct {
	Iface     string
	Direction Direction
	Pkt       PacketEvent
}
