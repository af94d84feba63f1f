// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package orchestrator wires the sniffer (A), ring consumer (B), trie
// (C), filter (D), and collector (E) together: it builds the rule set,
// the trie, and the orphan list from configuration, computes the
// interfaces/protocol/direction to attach, spawns one consumer per
// attach, and runs the steady-state match-and-record loop.
package orchestrator

import (
	"fmt"
	"net/netip"

	"github.com/grimm-is/sniffagent/internal/errors"
	"github.com/grimm-is/sniffagent/internal/rules"
	"github.com/grimm-is/sniffagent/internal/sniffconfig"
	"github.com/grimm-is/sniffagent/internal/trie"
	"github.com/grimm-is/sniffagent/internal/wire"
)

// bitCode encodes the protocol {TCP=1, UDP=2, All=3} and direction
// {Ingress=1, Egress=2, All=3} selectors. The effective
// selector/direction for the whole run is the bitwise AND across every
// rule; an empty intersection (0) is rejected at startup.
type bitCode uint8

const (
	codeIngress bitCode = 1
	codeEgress  bitCode = 2
	codeAll     bitCode = 3

	codeTCP bitCode = 1
	codeUDP bitCode = 2
)

// Selector is the classifier's protocol admission knob as computed by
// Build; Run converts it to a sniffload.Selector at the attach call site.
type Selector int32

const (
	SelectorAll Selector = 0
	SelectorTCP Selector = 1
	SelectorUDP Selector = 2
)

// RuleInput pairs a built FilterRule with the CIDRs it should be inserted
// under — CIDRs are a build-time concern (trie insertion keys), not part
// of FilterRule itself, which is shared, immutable payload.
type RuleInput struct {
	Rule  *rules.FilterRule
	CIDRs []string
}

// BuildRule turns one parsed sniffconfig.RuleConfig into a RuleInput,
// filling missing constLabel values with "unset".
func BuildRule(rc sniffconfig.RuleConfig, constLabels []string) (RuleInput, error) {
	proto, err := parseProto(rc.Protocol)
	if err != nil {
		return RuleInput{}, err
	}

	labels := make(map[string]string, len(constLabels))
	for _, name := range constLabels {
		labels[name] = "unset"
	}
	for k, v := range rc.ConstValues {
		labels[k] = v
	}

	rule := &rules.FilterRule{
		Name:          rc.Name,
		Protocol:      proto,
		IngressIfaces: toSet(rc.InIface),
		EgressIfaces:  toSet(rc.OutIface),
		IngressPorts:  toPortSet(rc.InPorts),
		LabelValues:   labels,
	}
	return RuleInput{Rule: rule, CIDRs: rc.CIDRs}, nil
}

func parseProto(s string) (rules.Proto, error) {
	switch s {
	case "", "all":
		return rules.ProtoAll, nil
	case "tcp":
		return rules.ProtoTCP, nil
	case "udp":
		return rules.ProtoUDP, nil
	default:
		return 0, errors.Errorf(errors.KindValidation, "unknown protocol %q", s)
	}
}

func toSet(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		out[v] = struct{}{}
	}
	return out
}

func toPortSet(vals []uint16) map[uint16]struct{} {
	if len(vals) == 0 {
		return nil
	}
	out := make(map[uint16]struct{}, len(vals))
	for _, v := range vals {
		out[v] = struct{}{}
	}
	return out
}

// RuleSet is the fully built product of startup steps 1-5: the trie, the
// orphan list, the fan-out interface set, and the effective
// protocol/direction selectors to load the classifier with.
type RuleSet struct {
	Rules   []*rules.FilterRule
	Trie    *trie.Trie[*rules.FilterRule]
	Orphans []*rules.FilterRule
	Ifaces  map[string]struct{}

	Protocol  Selector
	Direction wire.Direction
}

func protoBits(r *rules.FilterRule) bitCode {
	switch r.Protocol {
	case rules.ProtoTCP:
		return codeTCP
	case rules.ProtoUDP:
		return codeUDP
	default:
		return codeAll
	}
}

func dirBits(r *rules.FilterRule) bitCode {
	var c bitCode
	if len(r.IngressIfaces) != 0 {
		c |= codeIngress
	}
	if len(r.EgressIfaces) != 0 {
		c |= codeEgress
	}
	if c == 0 {
		// A rule with neither ingress nor egress interfaces configured
		// constrains nothing; treat it as admitting both directions.
		return codeAll
	}
	return c
}

// Build compiles already-constructed rule inputs into a RuleSet: trie
// and orphan list, interface fan-out, and the effective
// protocol/direction selectors. Config-driven and ad-hoc mode both
// funnel through this one path.
func Build(inputs []RuleInput) (*RuleSet, error) {
	if len(inputs) == 0 {
		return nil, errors.New(errors.KindValidation, "orchestrator: no rules configured")
	}

	t := trie.New[*rules.FilterRule]()
	var allRules []*rules.FilterRule
	var orphans []*rules.FilterRule
	ifaces := make(map[string]struct{})

	effProto := codeAll
	effDir := codeAll

	seenCIDR := false
	for _, in := range inputs {
		r := in.Rule
		allRules = append(allRules, r)

		effProto &= protoBits(r)
		effDir &= dirBits(r)

		for iface := range r.IngressIfaces {
			ifaces[iface] = struct{}{}
		}
		for iface := range r.EgressIfaces {
			ifaces[iface] = struct{}{}
		}

		if len(in.CIDRs) == 0 {
			orphans = append(orphans, r)
			continue
		}
		seenCIDR = true
		for _, cidr := range in.CIDRs {
			addr, bits, err := parseCIDR(cidr)
			if err != nil {
				return nil, err
			}
			t.Insert(addr, bits, r)
		}
	}

	if !seenCIDR && len(orphans) == 0 {
		t.SetMatchAll()
	}

	if effProto == 0 {
		return nil, errors.New(errors.KindValidation, "orchestrator: rule set's protocol selectors have empty intersection")
	}
	if effDir == 0 {
		return nil, errors.New(errors.KindValidation, "orchestrator: rule set's direction selectors have empty intersection")
	}

	var selector Selector
	switch effProto {
	case codeAll:
		selector = SelectorAll
	case codeTCP:
		selector = SelectorTCP
	case codeUDP:
		selector = SelectorUDP
	}

	var direction wire.Direction
	switch effDir {
	case codeAll:
		direction = wire.DirAll
	case codeIngress:
		direction = wire.DirIngress
	case codeEgress:
		direction = wire.DirEgress
	}

	return &RuleSet{
		Rules:     allRules,
		Trie:      t,
		Orphans:   orphans,
		Ifaces:    ifaces,
		Protocol:  selector,
		Direction: direction,
	}, nil
}

func parseCIDR(s string) (netip.Addr, int, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Addr{}, 0, errors.Wrap(err, errors.KindValidation, fmt.Sprintf("parse cidr %q", s))
	}
	if !prefix.Addr().Is4() {
		return netip.Addr{}, 0, errors.Errorf(errors.KindValidation, "cidr %q is not IPv4", s)
	}
	return prefix.Addr(), prefix.Bits(), nil
}

// Identities returns the pre-enumerated identity set across every rule in
// rs, along with each identity's label map, for collector pre-population.
func (rs *RuleSet) Identities() ([]string, map[string]map[string]string) {
	var all []string
	byIdentity := make(map[string]map[string]string)
	for _, r := range rs.Rules {
		ids := rules.PreEnumerateIdentities(r)
		all = append(all, ids...)
		for _, id := range ids {
			byIdentity[id] = r.LabelValues
		}
	}
	return all, byIdentity
}
