// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package trace

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/grimm-is/sniffagent/internal/wire"
)

func samplePacket(proto wire.Protocol) wire.FlowPacket {
	return wire.FlowPacket{
		Iface:     "eth0",
		Direction: wire.DirIngress,
		Pkt: wire.PacketEvent{
			Protocol: proto,
			SrcIP:    netip.MustParseAddr("10.0.0.1"),
			SrcPort:  12345,
			DstIP:    netip.MustParseAddr("10.0.0.2"),
			DstPort:  443,
			Length:   60,
		},
	}
}

func TestLine_ContainsFlowDetails(t *testing.T) {
	line := Line(samplePacket(wire.ProtoTCP))
	require.Contains(t, line, "10.0.0.1:12345")
	require.Contains(t, line, "10.0.0.2:443")
	require.Contains(t, line, "length=60")
}

func TestLineAt_ExactFormat(t *testing.T) {
	ts := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	line := LineAt(ts, samplePacket(wire.ProtoUDP))
	require.Contains(t, line, "* [2026-07-31 09:30:00]  ingress  10.0.0.1:12345  ->  10.0.0.2:443  udp  length=60")
}

func TestWriter_DisabledIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	w.Emit(samplePacket(wire.ProtoUDP))
	require.Empty(t, buf.String())
}

func TestWriter_EnabledWritesLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	w.Emit(samplePacket(wire.ProtoTCP))
	require.NotEmpty(t, buf.String())
}

func TestLine_ColorsByDirectionNotProtocol(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	ingress := samplePacket(wire.ProtoUDP)
	ingress.Direction = wire.DirIngress
	egress := samplePacket(wire.ProtoUDP)
	egress.Direction = wire.DirEgress

	require.Contains(t, Line(ingress), "\x1b[92m", "ingress should render in bright green regardless of protocol")
	require.Contains(t, Line(egress), "\x1b[93m", "egress should render in bright yellow regardless of protocol")
}
