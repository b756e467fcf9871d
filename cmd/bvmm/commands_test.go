// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/bvmm/services/vmm/config"
)

// runCLI executes the root command and returns stdout and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeData(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func decodeJSON(t *testing.T, out string) Report {
	t.Helper()
	var r Report
	require.NoError(t, json.Unmarshal([]byte(out), &r), "stdout: %s", out)
	return r
}

// =============================================================================
// Command Tests
// =============================================================================

func TestEnumerate_JSONReport(t *testing.T) {
	data := writeData(t, "0 1 0 1 0\n")
	stdout, stderr, err := runCLI(t, "", "enumerate", "--data", data, "--max-height", "1", "--format", "json")
	require.NoError(t, err, "stderr: %s", stderr)

	r := decodeJSON(t, stdout)
	assert.Equal(t, "bruteforce", r.Algorithm)
	assert.Equal(t, 4, r.Configurations)
	assert.Equal(t, 2, r.AlphabetSize)
	require.NotNil(t, r.LogNormalizer)
	require.NotEmpty(t, r.Contexts)
	assert.Empty(t, r.Contexts[0].Context, "the root comes first")
	assert.InDelta(t, 1.0, r.Contexts[0].Probability, 1e-9)
	assert.Contains(t, stderr, "bruteforce")
}

func TestOptimize_YAMLReportFromStdin(t *testing.T) {
	stdout, stderr, err := runCLI(t, "0 0 0 1 1 1 0 0 0 1 1 1 0 0 0\n",
		"optimize", "--runs", "3", "--seed", "7", "--prior", "poisson")
	require.NoError(t, err, "stderr: %s", stderr)

	var r Report
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &r), "stdout: %s", stdout)
	assert.Equal(t, "greedy", r.Algorithm)
	assert.Equal(t, "poisson", r.Prior)
	require.NotNil(t, r.LogLikelihood)
	assert.Equal(t, r.ModelSize, len(r.Contexts), "a sparse model reports each active context once")
	for _, c := range r.Contexts {
		assert.Equal(t, 1.0, c.Probability)
	}
}

func TestSample_NetworkWithFilters(t *testing.T) {
	data := writeData(t, "0 1\n1 2\n2 0\n0 2\n2 1\n1 0\n0 1\n1 2\n")
	outPath := filepath.Join(t.TempDir(), "report.json")
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")

	_, stderr, err := runCLI(t, "", "sample",
		"--data", data, "--kind", "network", "--alphabet", "3",
		"--samples", "300", "--seed", "3",
		"--format", "json", "--output", outPath,
		"--min-probability", "0.2", "--metrics-file", metricsPath)
	require.NoError(t, err, "stderr: %s", stderr)

	content, err := os.ReadFile(outPath)
	require.NoError(t, err)
	r := decodeJSON(t, string(content))
	assert.Equal(t, "mcmc", r.Algorithm)
	assert.Equal(t, "network", r.Kind)
	require.NotNil(t, r.Diagnostics)
	assert.Equal(t, 300, r.Diagnostics.Moves)
	for _, c := range r.Contexts {
		assert.GreaterOrEqual(t, c.Probability, 0.2)
	}

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "bvmm_inference_runs_total")
	assert.Contains(t, string(metrics), "bvmm_mcmc_moves_total")
}

func TestConfigFileAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bvmm.yaml")
	data := writeData(t, "0 1 1 0 1\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte("model:\n  mode: full\n  prior: inverse\nbruteforce:\n  max_height: 2\n"), 0600))

	stdout, stderr, err := runCLI(t, "", "enumerate", "--config", cfgPath, "--data", data, "--prior", "uniform", "--format", "json", "--quiet")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Empty(t, stderr, "quiet runs write nothing to stderr")

	r := decodeJSON(t, stdout)
	assert.Equal(t, "full", r.Mode)
	assert.Equal(t, "uniform", r.Prior, "flags override the config file")
}

func TestCommandErrors(t *testing.T) {
	data := writeData(t, "0 1 0\n")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unknown mode", []string{"sample", "--data", data, "--mode", "complete"}, config.ErrInvalid},
		{"unknown format", []string{"enumerate", "--data", data, "--format", "xml"}, ErrUnknownFormat},
		{"bad concentration", []string{"enumerate", "--data", data, "--concentration", "1,a"}, config.ErrInvalid},
		{"probability above one", []string{"enumerate", "--data", data, "--min-probability", "2"}, config.ErrInvalid},
		{"skip probability", []string{"sample", "--data", data, "--min-skip-prob", "0"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, "", append(tt.args, "--quiet")...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestMissingDataFile(t *testing.T) {
	_, _, err := runCLI(t, "", "optimize", "--data", filepath.Join(t.TempDir(), "missing.txt"), "--quiet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open data")
}
