// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package orchestrator

import (
	"context"
	"net/netip"
	"sync"
	"time"

	"github.com/grimm-is/sniffagent/internal/collector"
	"github.com/grimm-is/sniffagent/internal/errors"
	"github.com/grimm-is/sniffagent/internal/logging"
	"github.com/grimm-is/sniffagent/internal/rules"
	"github.com/grimm-is/sniffagent/internal/sniffload"
	"github.com/grimm-is/sniffagent/internal/trace"
	"github.com/grimm-is/sniffagent/internal/wire"
)

// queueCapacity is the bounded in-process queue size between consumers
// and the orchestrator loop: 4096 * 4096 slots.
const queueCapacity = 4096 * 4096

// Orchestrator owns the built rule set, the attach/consumer goroutines,
// the collector, and the steady-state match loop.
type Orchestrator struct {
	rs          *RuleSet
	collector   *collector.Collector
	traceOut    *trace.Writer
	logger      *logging.Logger
	queue       chan wire.FlowPacket
	attachments []*sniffload.Attachment
}

// Options configures Run beyond the rule set itself.
type Options struct {
	ExportInterval time.Duration
	Gauges         collector.GaugeSetter
	TraceWriter    *trace.Writer
	Logger         *logging.Logger
}

// New builds an Orchestrator from a RuleSet: the collector is
// pre-populated from the rule set's identity pre-enumeration.
func New(rs *RuleSet, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = logging.New(logging.DefaultConfig())
	}
	ids, labels := rs.Identities()

	return &Orchestrator{
		rs:        rs,
		collector: collector.New(ids, labels, opts.Gauges, opts.ExportInterval, opts.Logger),
		traceOut:  opts.TraceWriter,
		logger:    opts.Logger.WithComponent("orchestrator"),
		queue:     make(chan wire.FlowPacket, queueCapacity),
	}
}

// attachSpec is one (interface, direction) combination the classifier
// must be loaded for.
type attachSpec struct {
	iface     string
	direction wire.Direction
}

func (rs *RuleSet) attachSpecs() []attachSpec {
	var dirs []wire.Direction
	switch rs.Direction {
	case wire.DirIngress:
		dirs = []wire.Direction{wire.DirIngress}
	case wire.DirEgress:
		dirs = []wire.Direction{wire.DirEgress}
	default:
		dirs = []wire.Direction{wire.DirIngress, wire.DirEgress}
	}

	var specs []attachSpec
	for iface := range rs.Ifaces {
		for _, d := range dirs {
			specs = append(specs, attachSpec{iface: iface, direction: d})
		}
	}
	return specs
}

func toSniffloadSelector(s Selector) sniffload.Selector {
	return sniffload.Selector(s)
}

// Run attaches the classifier to every (interface, direction) the rule
// set demands, spawns one consumer goroutine per attach, starts the
// collector flush loop, and runs the steady-state match loop until ctx is
// cancelled. It returns once every goroutine it started has wound down.
func (o *Orchestrator) Run(ctx context.Context) error {
	specs := o.rs.attachSpecs()
	if len(specs) == 0 {
		return errors.New(errors.KindValidation, "orchestrator: no rule references any interface")
	}
	selector := toSniffloadSelector(o.rs.Protocol)

	// Attach everything before spawning any consumer: an attach failure is
	// startup-fatal, and tearing down half-started consumers is messier
	// than never starting them.
	for _, spec := range specs {
		attachment, err := sniffload.Attach(spec.iface, spec.direction, selector)
		if err != nil {
			for _, a := range o.attachments {
				a.Close()
			}
			return errors.Wrapf(err, errors.KindUnavailable, "orchestrator: attach %s %s", spec.iface, spec.direction.String())
		}
		o.attachments = append(o.attachments, attachment)
	}

	var wg sync.WaitGroup
	for _, attachment := range o.attachments {
		consumer := sniffload.NewConsumer(attachment, o.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx, o.queue); err != nil {
				o.logger.Error("consumer exited with error", "error", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.collector.Run(ctx)
	}()

	o.loop(ctx)

	wg.Wait()
	for _, a := range o.attachments {
		if err := a.Close(); err != nil {
			o.logger.Error("detach error", "iface", a.Iface, "error", err)
		}
	}
	return nil
}

// loop is the single steady-state goroutine: it consumes FlowPackets,
// performs the trie/orphan/match_all dispatch, and records matches to
// the collector plus the trace writer.
func (o *Orchestrator) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-o.queue:
			if !ok {
				return
			}
			o.dispatch(pkt)
		}
	}
}

func (o *Orchestrator) dispatch(pkt wire.FlowPacket) {
	addr := lookupKey(pkt)
	if !addr.IsValid() {
		// Direction All is never present on an event by construction;
		// this guard branch should be unreachable. Drop defensively.
		return
	}

	if !o.rs.Trie.Empty() {
		matched, rule := o.rs.Trie.Search(addr)
		if matched && rule != nil {
			if rule.Match(pkt) {
				id := rules.Identity(rule, pkt)
				o.collector.Add(id, pkt.Pkt.Length)
				o.emitTrace(pkt)
			}
			return
		}
	}

	for _, rule := range o.rs.Orphans {
		if rule.Match(pkt) {
			// Orphan matches are display-only: trace, but no counter
			// update.
			o.emitTrace(pkt)
			return
		}
	}

	if o.rs.Trie.MatchAll() {
		o.emitTrace(pkt)
	}
}

func (o *Orchestrator) emitTrace(pkt wire.FlowPacket) {
	if o.traceOut != nil {
		o.traceOut.Emit(pkt)
	}
}

func lookupKey(pkt wire.FlowPacket) netip.Addr {
	switch pkt.Direction {
	case wire.DirIngress:
		return pkt.Pkt.SrcIP
	case wire.DirEgress:
		return pkt.Pkt.DstIP
	default:
		return netip.Addr{}
	}
}
