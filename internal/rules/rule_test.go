// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package rules

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grimm-is/sniffagent/internal/wire"
)

func ingressEvent(iface string, dstPort uint16) wire.FlowPacket {
	return wire.FlowPacket{
		Iface:     iface,
		Direction: wire.DirIngress,
		Pkt: wire.PacketEvent{
			Protocol: wire.ProtoTCP,
			SrcIP:    netip.MustParseAddr("10.0.0.1"),
			SrcPort:  12345,
			DstIP:    netip.MustParseAddr("10.0.0.2"),
			DstPort:  dstPort,
			Length:   100,
		},
	}
}

func TestMatch_IngressPortGating(t *testing.T) {
	rule := &FilterRule{
		Name:          "R",
		Protocol:      ProtoTCP,
		IngressIfaces: map[string]struct{}{"eth0": {}},
		IngressPorts:  map[uint16]struct{}{80: {}, 443: {}},
	}

	matchedEvt := ingressEvent("eth0", 443)
	require.True(t, rule.Match(matchedEvt))
	require.Equal(t, "R_ingress_tcp_eth0_443", Identity(rule, matchedEvt))

	unmatchedEvt := ingressEvent("eth0", 22)
	require.False(t, rule.Match(unmatchedEvt))
}

func TestMatch_ClosedByDefault(t *testing.T) {
	rule := &FilterRule{
		Name:          "R",
		Protocol:      ProtoTCP,
		IngressIfaces: map[string]struct{}{}, // explicitly empty
		IngressPorts:  map[uint16]struct{}{80: {}, 443: {}},
	}

	require.False(t, rule.Match(ingressEvent("eth0", 443)))
}

func TestMatch_EgressNeverFiltersPort(t *testing.T) {
	rule := &FilterRule{
		Name:         "R",
		Protocol:     ProtoAll,
		EgressIfaces: map[string]struct{}{"eth0": {}},
	}

	evt := wire.FlowPacket{
		Iface:     "eth0",
		Direction: wire.DirEgress,
		Pkt: wire.PacketEvent{
			Protocol: wire.ProtoUDP,
			DstPort:  9999,
		},
	}

	require.True(t, rule.Match(evt))
	require.Equal(t, "R_egress_udp_eth0_unsupport", Identity(rule, evt))
}

func TestIdentity_UndefinePort(t *testing.T) {
	rule := &FilterRule{
		Name:          "R",
		Protocol:      ProtoTCP,
		IngressIfaces: map[string]struct{}{"lo": {}},
	}

	evt := ingressEvent("lo", 8080)
	require.True(t, rule.Match(evt))
	require.Equal(t, "R_ingress_tcp_lo_undefine", Identity(rule, evt))
}

func TestPreEnumerateIdentities(t *testing.T) {
	rule := &FilterRule{
		Name:          "R",
		Protocol:      ProtoTCP,
		IngressIfaces: map[string]struct{}{"eth0": {}},
		IngressPorts:  map[uint16]struct{}{443: {}},
		EgressIfaces:  map[string]struct{}{"eth1": {}},
	}

	ids := PreEnumerateIdentities(rule)
	require.Contains(t, ids, "R_ingress_tcp_eth0_undefine")
	require.Contains(t, ids, "R_ingress_tcp_eth0_443")
	require.Contains(t, ids, "R_egress_tcp_eth1_unsupport")
	require.Len(t, ids, 3)
}

func TestIdentity_Determinism(t *testing.T) {
	rule := &FilterRule{Name: "R", IngressIfaces: map[string]struct{}{"eth0": {}}}
	evt := ingressEvent("eth0", 80)
	require.Equal(t, Identity(rule, evt), Identity(rule, evt))
}
