// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package rules implements the predicate evaluator and identity derivation
// for matching a decoded packet event against a configured FilterRule.
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grimm-is/sniffagent/internal/wire"
)

// Proto is the protocol selector a rule admits.
type Proto uint8

const (
	ProtoAll Proto = iota
	ProtoTCP
	ProtoUDP
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	default:
		return "all"
	}
}

// Admits reports whether the rule's protocol selector covers pkt.
func (p Proto) Admits(pkt wire.Protocol) bool {
	switch p {
	case ProtoAll:
		return true
	case ProtoTCP:
		return pkt == wire.ProtoTCP
	case ProtoUDP:
		return pkt == wire.ProtoUDP
	default:
		return false
	}
}

// FilterRule is a single configured rule: a name, a protocol selector, the
// interface sets that gate ingress/egress matching, the port set that
// gates ingress matching, and the constant label values exported
// alongside its counters. A FilterRule is built once at startup and
// shared by pointer, immutably, across the trie and the orphan list.
type FilterRule struct {
	Name          string
	Protocol      Proto
	IngressIfaces map[string]struct{}
	EgressIfaces  map[string]struct{}
	IngressPorts  map[uint16]struct{}
	LabelValues   map[string]string
}

// EnablePort reports whether this rule's ingress port set is non-empty —
// the predicate driving identity port-field selection.
func (r *FilterRule) EnablePort() bool {
	return len(r.IngressPorts) != 0
}

// matchIface implements the direction/interface gate: empty interface
// sets never match (closed by default).
func (r *FilterRule) matchIface(pkt wire.FlowPacket) bool {
	switch pkt.Direction {
	case wire.DirIngress:
		if len(r.IngressIfaces) == 0 {
			return false
		}
		_, ok := r.IngressIfaces[pkt.Iface]
		return ok
	case wire.DirEgress:
		if len(r.EgressIfaces) == 0 {
			return false
		}
		_, ok := r.EgressIfaces[pkt.Iface]
		return ok
	default:
		// Direction All is never present on an event; unreachable in
		// practice, preserved as an explicit default rather than a panic.
		return true
	}
}

// matchPort implements the port gate. Egress never filters on port.
func (r *FilterRule) matchPort(pkt wire.FlowPacket) bool {
	if pkt.Direction == wire.DirEgress {
		return true
	}
	if !r.EnablePort() {
		return true
	}
	_, ok := r.IngressPorts[pkt.Pkt.DstPort]
	return ok
}

// Match evaluates the rule's full predicate against a FlowPacket: the
// direction/interface gate, the port gate, and (defensively) the protocol
// gate. Configuration-time selector computation makes the protocol gate
// unreachable in practice, but it is still checked here.
func (r *FilterRule) Match(pkt wire.FlowPacket) bool {
	if !r.matchIface(pkt) {
		return false
	}
	if !r.matchPort(pkt) {
		return false
	}
	if !r.Protocol.Admits(pkt.Pkt.Protocol) {
		return false
	}
	return true
}

// Identity derives the deterministic gauge/collector key for a (rule,
// FlowPacket) pair: "<rule_name>_<direction>_<protocol>_<iface>_<port>".
// For Ingress, port is the decimal destination port if EnablePort(),
// otherwise the literal "undefine". For Egress, port is always the
// literal "unsupport" — the kernel captures the egress destination port,
// but identity deliberately discards it.
func Identity(r *FilterRule, pkt wire.FlowPacket) string {
	var port string
	switch pkt.Direction {
	case wire.DirIngress:
		if r.EnablePort() {
			port = strconv.Itoa(int(pkt.Pkt.DstPort))
		} else {
			port = "undefine"
		}
	case wire.DirEgress:
		port = "unsupport"
	}

	return fmt.Sprintf("%s_%s_%s_%s_%s", r.Name, pkt.Direction, pkt.Pkt.Protocol, pkt.Iface, port)
}

// PreEnumerateIdentities returns every identity string this rule can ever
// produce, so the collector can pre-populate zero-valued counters at
// install time. Ingress identities range over {ingress interfaces} ×
// {ingress ports ∪ {undefine}} × {admissible protocols}; egress identities
// range over {egress interfaces} × {admissible protocols}, always with
// port "unsupport".
func PreEnumerateIdentities(r *FilterRule) []string {
	protocols := admissibleProtocols(r.Protocol)
	var out []string

	if len(r.IngressIfaces) != 0 {
		ports := make([]string, 0, len(r.IngressPorts)+1)
		ports = append(ports, "undefine")
		for p := range r.IngressPorts {
			ports = append(ports, strconv.Itoa(int(p)))
		}

		for iface := range r.IngressIfaces {
			for _, proto := range protocols {
				for _, port := range ports {
					out = append(out, fmt.Sprintf("%s_ingress_%s_%s_%s", r.Name, proto, iface, port))
				}
			}
		}
	}

	if len(r.EgressIfaces) != 0 {
		for iface := range r.EgressIfaces {
			for _, proto := range protocols {
				out = append(out, fmt.Sprintf("%s_egress_%s_%s_unsupport", r.Name, proto, iface))
			}
		}
	}

	return out
}

func admissibleProtocols(p Proto) []string {
	switch p {
	case ProtoTCP:
		return []string{"tcp"}
	case ProtoUDP:
		return []string{"udp"}
	default:
		return []string{"tcp", "udp"}
	}
}

// String renders the rule as "<name>/<protocol>" for log fields.
func (r *FilterRule) String() string {
	return strings.Join([]string{r.Name, r.Protocol.String()}, "/")
}
