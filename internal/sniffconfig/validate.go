// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sniffconfig

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any validation failures were recorded.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate checks the configuration's rule set: unique rule names, known
// protocol selectors, CIDR well-formedness (rejecting /32 and /0, neither
// of which is a meaningful trie prefix), interface existence, and that
// every constValues key is declared in constLabels.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	names := make(map[string]struct{}, len(c.Rules))
	ifaces := hostInterfaceSet()
	labelSet := make(map[string]struct{}, len(c.ConstLabels))
	for _, l := range c.ConstLabels {
		labelSet[l] = struct{}{}
	}

	for i, rule := range c.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		if rule.Name == "" {
			errs = append(errs, ValidationError{field + ".name", "name is required"})
		} else if _, dup := names[rule.Name]; dup {
			errs = append(errs, ValidationError{field + ".name", fmt.Sprintf("duplicate rule name %q", rule.Name)})
		} else {
			names[rule.Name] = struct{}{}
		}

		switch rule.Protocol {
		case "", "tcp", "udp", "all":
		default:
			errs = append(errs, ValidationError{field + ".protocol", fmt.Sprintf("unknown protocol %q", rule.Protocol)})
		}

		for _, cidr := range rule.CIDRs {
			if err := validateCIDR(cidr); err != nil {
				errs = append(errs, ValidationError{field + ".cidrs", err.Error()})
			}
		}

		for _, iface := range rule.InIface {
			if _, ok := ifaces[iface]; !ok {
				errs = append(errs, ValidationError{field + ".inIface", fmt.Sprintf("interface %q not found on host", iface)})
			}
		}
		for _, iface := range rule.OutIface {
			if _, ok := ifaces[iface]; !ok {
				errs = append(errs, ValidationError{field + ".outIface", fmt.Sprintf("interface %q not found on host", iface)})
			}
		}

		for key := range rule.ConstValues {
			if _, ok := labelSet[key]; !ok {
				errs = append(errs, ValidationError{field + ".constValues", fmt.Sprintf("key %q not declared in constLabels", key)})
			}
		}
	}

	return errs
}

func validateCIDR(cidr string) error {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("failed to parse cidr %q: %w", cidr, err)
	}
	if ip.To4() == nil {
		return fmt.Errorf("cidr %q is not an IPv4 prefix", cidr)
	}
	ones, _ := ipNet.Mask.Size()
	if ones == 32 {
		return fmt.Errorf("cidr %q has a /32 mask, please provide a less specific prefix", cidr)
	}
	if ones == 0 {
		return fmt.Errorf("cidr %q has a /0 mask, please provide a more specific prefix", cidr)
	}
	return nil
}

func hostInterfaceSet() map[string]struct{} {
	out := make(map[string]struct{})
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		out[iface.Name] = struct{}{}
	}
	return out
}
