// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGauges struct {
	values map[string]float64
	labels map[string]map[string]string
}

func newFakeGauges() *fakeGauges {
	return &fakeGauges{values: make(map[string]float64), labels: make(map[string]map[string]string)}
}

func (f *fakeGauges) Set(identity string, labels map[string]string, value float64) {
	f.values[identity] = value
	f.labels[identity] = labels
}

func TestCollector_FlushScenario(t *testing.T) {
	const identity = "R_ingress_tcp_lo_undefine"
	gauges := newFakeGauges()
	c := New([]string{identity}, nil, gauges, time.Second, nil)

	c.Add(identity, 100)
	c.Add(identity, 200)
	c.Add(identity, 300)

	c.flush()
	require.Equal(t, float64(600), gauges.values[identity])
	require.Equal(t, uint64(0), c.counters[identity].total.Load())

	// Next tick with no traffic sets the gauge to 0.
	c.flush()
	require.Equal(t, float64(0), gauges.values[identity])
}

func TestCollector_AddUnknownIdentityIsNoOp(t *testing.T) {
	gauges := newFakeGauges()
	c := New([]string{"known"}, nil, gauges, time.Second, nil)

	require.NotPanics(t, func() {
		c.Add("unknown", 42)
	})
	c.flush()
	require.Equal(t, float64(0), gauges.values["known"])
}

func TestCollector_Monotonicity(t *testing.T) {
	const identity = "id"
	gauges := newFakeGauges()
	c := New([]string{identity}, nil, gauges, time.Second, nil)

	c.Add(identity, 10)
	require.Equal(t, uint64(10), c.counters[identity].total.Load())
	c.Add(identity, 5)
	require.Equal(t, uint64(15), c.counters[identity].total.Load())

	c.flush()
	require.Equal(t, uint64(0), c.counters[identity].total.Load())
}
