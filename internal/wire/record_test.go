// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package wire

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode_Scenario(t *testing.T) {
	rec := EncodeForTest(ProtoTCP, 0x0064, 0x0A000001, 0xC0A80001, 0x1F90, 0x01BB)

	evt, err := Decode(rec[:])
	require.NoError(t, err)

	require.Equal(t, ProtoTCP, evt.Protocol)
	require.Equal(t, netip.MustParseAddr("10.0.0.1"), evt.SrcIP)
	require.Equal(t, uint16(8080), evt.SrcPort)
	require.Equal(t, netip.MustParseAddr("192.168.0.1"), evt.DstIP)
	require.Equal(t, uint16(443), evt.DstPort)
	require.Equal(t, uint16(100), evt.Length)
}

func TestDecode_RoundTripUDP(t *testing.T) {
	rec := EncodeForTest(ProtoUDP, 512, 0x01020304, 0x05060708, 5353, 53)

	evt, err := Decode(rec[:])
	require.NoError(t, err)

	require.Equal(t, ProtoUDP, evt.Protocol)
	require.Equal(t, netip.MustParseAddr("1.2.3.4"), evt.SrcIP)
	require.Equal(t, netip.MustParseAddr("5.6.7.8"), evt.DstIP)
	require.Equal(t, uint16(5353), evt.SrcPort)
	require.Equal(t, uint16(53), evt.DstPort)
	require.Equal(t, uint16(512), evt.Length)
}

func TestDecode_ShortRecordIsNonFatal(t *testing.T) {
	_, err := Decode(make([]byte, 5))
	require.Error(t, err)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecode_InvalidTag(t *testing.T) {
	rec := EncodeForTest(ProtoTCP, 100, 1, 2, 3, 4)
	rec[ipv4HeaderLen] = 9 // neither TCP(1) nor UDP(2)

	_, err := Decode(rec[:])
	require.Error(t, err)
}
