// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package sniffconfig parses and validates the agent's YAML configuration
// file: the export interval, the constant label axes, and the list of
// traffic rules that get compiled into trie entries and filter rules.
package sniffconfig

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grimm-is/sniffagent/internal/errors"
)

// RuleConfig is a single configured rule as read from YAML.
type RuleConfig struct {
	Name        string            `yaml:"name"`
	Protocol    string            `yaml:"protocol"`
	CIDRs       []string          `yaml:"cidrs"`
	InIface     []string          `yaml:"inIface"`
	OutIface    []string          `yaml:"outIface"`
	InPorts     []uint16          `yaml:"in_ports"`
	ConstValues map[string]string `yaml:"constValues"`
}

// Config is the top-level configuration document.
type Config struct {
	ExportInterval string       `yaml:"exportInterval"`
	ConstLabels    []string     `yaml:"constLabels"`
	Rules          []RuleConfig `yaml:"rules"`
}

// DefaultExportInterval is used when ExportInterval is empty.
const DefaultExportInterval = 30 * time.Second

// Load parses a YAML configuration document from r and validates it. A
// malformed document or a failed validation both return a
// errors.KindValidation error.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "parse config yaml")
	}

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, errors.Wrap(errs, errors.KindValidation, "validate config")
	}

	return &cfg, nil
}

// ExportIntervalDuration resolves ExportInterval to a time.Duration,
// falling back to DefaultExportInterval when unset.
func (c *Config) ExportIntervalDuration() (time.Duration, error) {
	if c.ExportInterval == "" {
		return DefaultExportInterval, nil
	}
	d, err := time.ParseDuration(c.ExportInterval)
	if err != nil {
		return 0, errors.Wrap(err, errors.KindValidation, "parse exportInterval")
	}
	return d, nil
}
