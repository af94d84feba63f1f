// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package collector holds the bounded-cardinality, per-identity atomic
// counter set and the periodic flush that pushes accumulated totals into
// the metrics gauge family. Counters are pre-allocated and keyed
// immutably, so neither accumulation nor flush takes a lock.
package collector

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/grimm-is/sniffagent/internal/logging"
)

// Counter is a single identity's monotonically-accumulating byte total,
// reset to zero on each flush.
type Counter struct {
	total  atomic.Uint64
	Labels map[string]string
}

// Add atomically adds n to the counter's total.
func (c *Counter) Add(n uint64) {
	c.total.Add(n)
}

// snapshotReset atomically reads the current total and resets it to zero.
// The read and the reset are two separate atomic operations; a submission
// landing between them loses at most one interval's worth for this
// counter.
func (c *Counter) snapshotReset() uint64 {
	v := c.total.Load()
	c.total.Store(0)
	return v
}

// GaugeSetter is the minimal surface the collector needs from the metrics
// registry: set one gauge's value for an identity's label set.
type GaugeSetter interface {
	Set(identity string, labels map[string]string, value float64)
}

// Collector is a fixed-population map of identity to Counter, sized once
// at initialization from the rule set's identity pre-enumeration. No
// identities are inserted after construction.
type Collector struct {
	counters map[string]*Counter
	gauges   GaugeSetter
	interval time.Duration
	logger   *logging.Logger
}

// New builds a Collector pre-populated with one zero-valued Counter per
// identity in identities, each carrying the given per-identity label
// values (for identities not present in labelsByIdentity, Labels is nil).
func New(identities []string, labelsByIdentity map[string]map[string]string, gauges GaugeSetter, interval time.Duration, logger *logging.Logger) *Collector {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}

	counters := make(map[string]*Counter, len(identities))
	for _, id := range identities {
		counters[id] = &Counter{Labels: labelsByIdentity[id]}
	}

	return &Collector{
		counters: counters,
		gauges:   gauges,
		interval: interval,
		logger:   logger.WithComponent("collector"),
	}
}

// Add performs the atomic fetch-add for identity. It is a no-op if
// identity is absent from the pre-enumerated set (it should not occur for
// a valid match, but is never fatal).
func (c *Collector) Add(identity string, length uint16) {
	counter, ok := c.counters[identity]
	if !ok {
		return
	}
	counter.Add(uint64(length))
}

// Run starts the periodic flush loop on a ticker at c.interval. It blocks
// until ctx is cancelled; any in-flight flush when the context is
// cancelled may be truncated, which is acceptable since counters are
// ephemeral.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("flush loop started", "interval", c.interval, "identities", len(c.counters))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	for identity, counter := range c.counters {
		value := counter.snapshotReset()
		if c.gauges == nil {
			continue
		}
		c.gauges.Set(identity, counter.Labels, float64(value))
	}
}
