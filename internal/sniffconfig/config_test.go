// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sniffconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
exportInterval: 15s
constLabels: [env]
rules:
  - name: first
    protocol: tcp
    cidrs:
      - "1.0.0.0/24"
      - "2.3.0.0/16"
    in_ports:
      - 8080
      - 7070
    inIface: [lo]
    outIface: [lo]
    constValues:
      env: prod
`

func TestLoad_ValidDocument(t *testing.T) {
	cfg, err := Load(strings.NewReader(validYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	require.Equal(t, "first", cfg.Rules[0].Name)

	d, err := cfg.ExportIntervalDuration()
	require.NoError(t, err)
	require.Equal(t, "15s", d.String())
}

func TestLoad_DefaultExportInterval(t *testing.T) {
	cfg, err := Load(strings.NewReader(`rules: []`))
	require.NoError(t, err)
	d, err := cfg.ExportIntervalDuration()
	require.NoError(t, err)
	require.Equal(t, DefaultExportInterval, d)
}

func TestLoad_RejectsSlash32CIDR(t *testing.T) {
	_, err := Load(strings.NewReader(`
rules:
  - name: bad
    cidrs: ["10.0.0.1/32"]
`))
	require.Error(t, err)
}

func TestLoad_RejectsSlash0CIDR(t *testing.T) {
	_, err := Load(strings.NewReader(`
rules:
  - name: bad
    cidrs: ["0.0.0.0/0"]
`))
	require.Error(t, err)
}

func TestLoad_RejectsUnknownInterface(t *testing.T) {
	_, err := Load(strings.NewReader(`
rules:
  - name: bad
    inIface: ["definitely-not-a-real-iface-xyz"]
`))
	require.Error(t, err)
}

func TestLoad_RejectsUndeclaredConstValueKey(t *testing.T) {
	_, err := Load(strings.NewReader(`
constLabels: [env]
rules:
  - name: bad
    constValues:
      region: us-east
`))
	require.Error(t, err)
}

func TestLoad_RejectsDuplicateRuleNames(t *testing.T) {
	_, err := Load(strings.NewReader(`
rules:
  - name: dup
  - name: dup
`))
	require.Error(t, err)
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	cfg := &Config{
		Rules: []RuleConfig{
			{Name: "", Protocol: "bogus", CIDRs: []string{"not-a-cidr"}},
		},
	}
	errs := cfg.Validate()
	require.True(t, errs.HasErrors())
	require.GreaterOrEqual(t, len(errs), 3)
}
