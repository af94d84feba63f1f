// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package wire defines the fixed-layout record exchanged across the
// kernel/user boundary and the pure decoder that turns it into a
// PacketEvent.
package wire

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Protocol identifies the transport header carried by a RawRecord.
type Protocol uint8

const (
	ProtoTCP Protocol = 1
	ProtoUDP Protocol = 2
)

func (p Protocol) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	default:
		return "unknown"
	}
}

const (
	ipv4HeaderLen  = 20
	tcpHeaderLen   = 20
	udpHeaderLen   = 8
	protoHeaderLen = tcpHeaderLen // the union is sized to the larger variant

	// RawRecordLen is the fixed wire size of a RawRecord: the IPv4 header,
	// a one-byte protocol tag, and the union of TCP/UDP header bytes.
	// This is a compile-time constant known to both the kernel classifier
	// and the user-space decoder; it MUST match the C struct emitted by
	// the kernel side (internal/sniffload/c/sniff.c).
	RawRecordLen = ipv4HeaderLen + 1 + protoHeaderLen
)

// RawRecord is the packed, fixed-size structure submitted into the ring
// buffer by the kernel classifier: an IPv4 header immediately followed by
// a tagged union over {TCP header, UDP header}. The tag precedes the
// transport header bytes.
//
// Layout (all multi-byte integers big-endian, i.e. network byte order):
//
//	offset 0..19  IPv4 header (no options)
//	offset 20     protocol tag (1 = TCP, 2 = UDP)
//	offset 21..   TCP header (20 bytes) or UDP header (8 bytes, zero-padded)
type RawRecord [RawRecordLen]byte

// EncodeForTest builds a RawRecord from host-order field values, converting
// them to the big-endian wire form. It exists so tests can construct
// synthetic records without depending on the kernel side; production code
// never constructs a RawRecord in user space.
func EncodeForTest(proto Protocol, totalLen uint16, srcAddr, dstAddr uint32, srcPort, dstPort uint16) RawRecord {
	var rec RawRecord

	rec[0] = 0x45 // version 4, IHL 5 (20-byte header, no options)
	binary.BigEndian.PutUint16(rec[2:4], totalLen)
	switch proto {
	case ProtoTCP:
		rec[9] = 6
	case ProtoUDP:
		rec[9] = 17
	}
	binary.BigEndian.PutUint32(rec[12:16], srcAddr)
	binary.BigEndian.PutUint32(rec[16:20], dstAddr)

	rec[ipv4HeaderLen] = byte(proto)
	transport := rec[ipv4HeaderLen+1:]
	binary.BigEndian.PutUint16(transport[0:2], srcPort)
	binary.BigEndian.PutUint16(transport[2:4], dstPort)

	return rec
}

// DecodeError is returned when a RawRecord cannot be decoded; the caller's
// policy is to log it and drop the packet, never to treat it as fatal.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode failed: %s", e.Reason)
}

// Decode converts a RawRecord into a PacketEvent. The IPv4 header's
// tot_len, src_addr, and dst_addr, and the transport header's ports, are
// converted from big-endian wire order to host order. tot_len is preserved
// verbatim as Length (it already includes the IPv4 header; this decoder
// does not subtract it).
//
// The decoder assumes a 20-byte IPv4 header with no options, matching the
// kernel classifier's own assumption; a packet with IP options would have
// been parsed incorrectly at the kernel side already, and this decoder
// reproduces that same (bounds-safe, semantically wrong) behavior rather
// than attempting to detect or correct it.
func Decode(raw []byte) (PacketEvent, error) {
	if len(raw) < RawRecordLen {
		return PacketEvent{}, &DecodeError{Reason: fmt.Sprintf("short record: %d bytes, want %d", len(raw), RawRecordLen)}
	}

	tag := Protocol(raw[ipv4HeaderLen])
	if tag != ProtoTCP && tag != ProtoUDP {
		return PacketEvent{}, &DecodeError{Reason: fmt.Sprintf("invalid protocol tag %d", tag)}
	}

	totalLen := binary.BigEndian.Uint16(raw[2:4])
	srcAddr := binary.BigEndian.Uint32(raw[12:16])
	dstAddr := binary.BigEndian.Uint32(raw[16:20])

	transport := raw[ipv4HeaderLen+1:]
	if len(transport) < 4 {
		return PacketEvent{}, &DecodeError{Reason: "truncated transport header"}
	}
	srcPort := binary.BigEndian.Uint16(transport[0:2])
	dstPort := binary.BigEndian.Uint16(transport[2:4])

	return PacketEvent{
		Protocol: tag,
		SrcIP:    netip.AddrFrom4(u32ToBytes(srcAddr)),
		SrcPort:  srcPort,
		DstIP:    netip.AddrFrom4(u32ToBytes(dstAddr)),
		DstPort:  dstPort,
		Length:   totalLen,
	}, nil
}

func u32ToBytes(v uint32) [4]byte {
	return [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
