// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package trace renders a colorized, human-readable line for each matched
// packet when trace output is enabled.
package trace

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/grimm-is/sniffagent/internal/wire"
)

var (
	ingressColor = color.New(color.FgHiGreen)
	egressColor  = color.New(color.FgHiYellow)
)

const timestampLayout = "2006-01-02 15:04:05"

// Line formats a single FlowPacket as a colorized trace line, timestamped
// with the current time. Ingress flows print in bright green, egress in
// bright yellow.
func Line(pkt wire.FlowPacket) string {
	return LineAt(time.Now(), pkt)
}

// LineAt formats pkt as a trace line using the given timestamp, factored
// out of Line so tests can assert on an exact rendering.
func LineAt(ts time.Time, pkt wire.FlowPacket) string {
	text := fmt.Sprintf(
		"* [%s]  %s  %s:%d  ->  %s:%d  %s  length=%d",
		ts.Format(timestampLayout), pkt.Direction,
		pkt.Pkt.SrcIP, pkt.Pkt.SrcPort, pkt.Pkt.DstIP, pkt.Pkt.DstPort,
		pkt.Pkt.Protocol, pkt.Pkt.Length,
	)

	switch pkt.Direction {
	case wire.DirIngress:
		return ingressColor.Sprint(text)
	case wire.DirEgress:
		return egressColor.Sprint(text)
	default:
		return text
	}
}

// Writer emits trace lines to an underlying writer, one per matched
// packet, when tracing is enabled.
type Writer struct {
	out     io.Writer
	enabled bool
}

// NewWriter builds a Writer. When enabled is false, Emit is a no-op.
func NewWriter(out io.Writer, enabled bool) *Writer {
	return &Writer{out: out, enabled: enabled}
}

// Emit writes the trace line for pkt, if tracing is enabled.
func (w *Writer) Emit(pkt wire.FlowPacket) {
	if !w.enabled {
		return
	}
	fmt.Fprintln(w.out, Line(pkt))
}
