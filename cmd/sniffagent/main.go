// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command sniffagent watches ingress/egress traffic on one or more host
// interfaces through a TC classifier, matches flows against a configured
// or ad-hoc rule set, and exports per-rule byte counters to Prometheus.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/grimm-is/sniffagent/internal/errors"
	"github.com/grimm-is/sniffagent/internal/logging"
	"github.com/grimm-is/sniffagent/internal/metrics"
	"github.com/grimm-is/sniffagent/internal/orchestrator"
	"github.com/grimm-is/sniffagent/internal/sniffconfig"
	"github.com/grimm-is/sniffagent/internal/sniffload"
	"github.com/grimm-is/sniffagent/internal/trace"
	"github.com/grimm-is/sniffagent/internal/wire"
)

const metricsAddr = "127.0.0.1:10010"

func main() {
	verbosity := flag.String("v", "info", "log level: debug|info|warn|error")
	direction := flag.String("d", "All", "direction to sniff: Ingress|Egress|All")
	var ifaces, cidrs []string
	flag.Func("i", "interface(s) to sniff, comma separated; repeatable", func(s string) error {
		ifaces = append(ifaces, splitCSV(s)...)
		return nil
	})
	flag.Func("c", "CIDR(s) to filter on, comma separated; repeatable", func(s string) error {
		cidrs = append(cidrs, splitCSV(s)...)
		return nil
	})
	flag.Parse()

	level, ok := logging.ParseLevel(strings.ToLower(*verbosity))
	cfg := logging.DefaultConfig()
	cfg.Level = level
	logger := logging.New(cfg)
	if !ok {
		logger.Warn("unrecognized log level, defaulting to info", "value", *verbosity)
	}

	if os.Geteuid() != 0 {
		logger.WithError(errors.New(errors.KindPermission, "sniffagent must run as root")).Error("privilege check failed")
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		logger.Error("missing subcommand", "usage", "sniffagent [flags] all|tcp|udp|check|run <config-path>")
		os.Exit(1)
	}
	subcmd, rest := args[0], args[1:]

	traceEnabled := level == logging.LevelDebug

	if err := run(logger, subcmd, rest, *direction, ifaces, cidrs, traceEnabled); err != nil {
		logger.WithError(err).Error("sniffagent exiting")
		os.Exit(1)
	}
}

func run(logger *logging.Logger, subcmd string, rest []string, direction string, ifaces, cidrs []string, traceEnabled bool) error {
	switch subcmd {
	case "all", "tcp", "udp":
		return runAdHoc(logger, subcmd, direction, ifaces, cidrs, traceEnabled)
	case "check":
		return runCheck(logger, ifaces)
	case "run":
		if len(rest) == 0 {
			return errors.New(errors.KindValidation, "run requires a config path: sniffagent run <config-path>")
		}
		return runConfig(logger, rest[0], traceEnabled)
	default:
		return errors.Errorf(errors.KindValidation, "unknown subcommand %q", subcmd)
	}
}

// runAdHoc builds a single rule directly from the -i/-c/-d flags with no
// configuration file.
func runAdHoc(logger *logging.Logger, proto, direction string, ifaces, cidrs []string, traceEnabled bool) error {
	if len(ifaces) == 0 {
		return errors.New(errors.KindValidation, "ad-hoc mode requires at least one -i interface")
	}

	dir, err := parseDirection(direction)
	if err != nil {
		return err
	}

	rc := sniffconfig.RuleConfig{
		Name:     "adhoc",
		Protocol: proto,
		CIDRs:    cidrs,
	}
	switch dir {
	case wire.DirIngress:
		rc.InIface = ifaces
	case wire.DirEgress:
		rc.OutIface = ifaces
	default:
		rc.InIface = ifaces
		rc.OutIface = ifaces
	}

	input, err := orchestrator.BuildRule(rc, nil)
	if err != nil {
		return err
	}

	rs, err := orchestrator.Build([]orchestrator.RuleInput{input})
	if err != nil {
		return err
	}

	return serve(logger, rs, sniffconfig.DefaultExportInterval, nil, traceEnabled)
}

// runConfig reads a YAML configuration file and runs in config-driven
// mode: one rule per configured rule, inserted into the trie once per
// CIDR or, with no CIDRs, added to the orphan list.
func runConfig(logger *logging.Logger, path string, traceEnabled bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.KindValidation, "open config file")
	}
	defer f.Close()

	cfg, err := sniffconfig.Load(f)
	if err != nil {
		return err
	}

	interval, err := cfg.ExportIntervalDuration()
	if err != nil {
		return err
	}

	inputs := make([]orchestrator.RuleInput, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		input, err := orchestrator.BuildRule(rc, cfg.ConstLabels)
		if err != nil {
			return err
		}
		inputs = append(inputs, input)
	}

	rs, err := orchestrator.Build(inputs)
	if err != nil {
		return err
	}

	return serve(logger, rs, interval, cfg.ConstLabels, traceEnabled)
}

// runCheck attempts an ingress and egress attach on every given interface,
// reports success or failure per interface, detaches, and returns without
// running the orchestrator loop.
func runCheck(logger *logging.Logger, ifaces []string) error {
	if len(ifaces) == 0 {
		return errors.New(errors.KindValidation, "check requires at least one -i interface")
	}

	failed := false
	for _, iface := range ifaces {
		for _, dir := range []wire.Direction{wire.DirIngress, wire.DirEgress} {
			attachment, err := sniffload.Attach(iface, dir, sniffload.SelectorAll)
			if err != nil {
				logger.WithError(err).Error("attach check failed", "iface", iface, "direction", dir.String())
				failed = true
				continue
			}
			logger.Info("attach check ok", "iface", iface, "direction", dir.String())
			if err := attachment.Close(); err != nil {
				logger.WithError(err).Warn("detach after check failed", "iface", iface, "direction", dir.String())
			}
		}
	}

	if failed {
		return errors.New(errors.KindUnavailable, "one or more interfaces failed the attach check")
	}
	return nil
}

// serve wires the metrics registry and HTTP server, the trace writer, and
// the orchestrator, then runs until SIGINT/SIGTERM.
func serve(logger *logging.Logger, rs *orchestrator.RuleSet, interval time.Duration, constLabels []string, traceEnabled bool) error {
	registry := metrics.New(constLabels, logger)
	registry.MustRegister()
	server := metrics.NewServer(metricsAddr, logger)

	traceOut := trace.NewWriter(os.Stdout, traceEnabled)

	o := orchestrator.New(rs, orchestrator.Options{
		ExportInterval: interval,
		Gauges:         registry,
		TraceWriter:    traceOut,
		Logger:         logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go server.Run(ctx)

	return o.Run(ctx)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDirection(s string) (wire.Direction, error) {
	switch strings.ToLower(s) {
	case "ingress":
		return wire.DirIngress, nil
	case "egress":
		return wire.DirEgress, nil
	case "", "all":
		return wire.DirAll, nil
	default:
		return 0, errors.Errorf(errors.KindValidation, "unknown direction %q", s)
	}
}
