// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics holds the process-wide Prometheus gauge family and the
// HTTP scrape/health endpoints.
package metrics

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/grimm-is/sniffagent/internal/logging"
)

// labelAxes are the fixed label names of the gauge family, extended at
// registration time by any configured constLabels.
var labelAxes = []string{"rule_name", "traffic", "protocol", "network_iface", "port"}

// Registry owns the single network_packet_tolal gauge family. Apart from
// the mutex-guarded set of identities already warned about, its only
// mutation after construction is the one-shot MustRegister call; gauge
// updates (Set) are delegated to the thread-safe GaugeVec.
type Registry struct {
	gauge *prometheus.GaugeVec

	once   sync.Once
	logger *logging.Logger

	mu            sync.Mutex
	warnedMissing map[string]struct{}
}

// New constructs a Registry with a gauge family labeled by the fixed axes
// plus any additional constLabel names from configuration.
func New(constLabelNames []string, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}

	names := append(append([]string{}, labelAxes...), constLabelNames...)

	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "network_packet_tolal",
		Help: "Total bytes observed per matching rule since the last flush interval.",
	}, names)

	return &Registry{
		gauge:         gauge,
		logger:        logger.WithComponent("metrics"),
		warnedMissing: make(map[string]struct{}),
	}
}

// MustRegister registers the gauge family with the default Prometheus
// registry exactly once, even if called more than once (tests may
// construct multiple orchestrator instances).
func (r *Registry) MustRegister() {
	r.once.Do(func() {
		prometheus.MustRegister(r.gauge)
	})
}

// identityLabels decodes an identity string of the form
// "<rule_name>_<direction>_<protocol>_<iface>_<port>" back into its label
// axes. Because rule names and interface names may themselves contain
// underscores, decoding walks from both ends: direction and protocol are
// fixed small vocabularies, so the split point is found positionally
// rather than by a naive Split on "_". It reports false when no
// direction/protocol pair is found.
func identityLabels(identity string, labels map[string]string) (prometheus.Labels, bool) {
	out := prometheus.Labels{
		"rule_name":     "unset",
		"traffic":       "unset",
		"protocol":      "unset",
		"network_iface": "unset",
		"port":          "unset",
	}

	parts := strings.Split(identity, "_")
	decoded := false
	for i := len(parts) - 4; i >= 1 && !decoded; i-- {
		if (parts[i] == "ingress" || parts[i] == "egress") && (parts[i+1] == "tcp" || parts[i+1] == "udp") {
			out["port"] = parts[len(parts)-1]
			out["network_iface"] = strings.Join(parts[i+2:len(parts)-1], "_")
			out["protocol"] = parts[i+1]
			out["traffic"] = parts[i]
			out["rule_name"] = strings.Join(parts[:i], "_")
			decoded = true
		}
	}

	for k, v := range labels {
		out[k] = v
	}

	return out, decoded
}

// Set implements collector.GaugeSetter: it sets the gauge value for the
// identity's decoded label set plus any per-rule constant label values.
// A lookup that cannot be decoded is logged once and skipped.
func (r *Registry) Set(identity string, labels map[string]string, value float64) {
	lbls, ok := identityLabels(identity, labels)
	if !ok {
		r.warnOnce(identity, fmt.Errorf("cannot decode identity %q", identity))
		return
	}
	gaugeVal, err := r.gauge.GetMetricWith(lbls)
	if err != nil {
		r.warnOnce(identity, err)
		return
	}
	gaugeVal.Set(value)
}

func (r *Registry) warnOnce(identity string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.warnedMissing[identity]; seen {
		return
	}
	r.warnedMissing[identity] = struct{}{}
	r.logger.Error("gauge not registered for identity", "identity", identity, "error", err)
}
