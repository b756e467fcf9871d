// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the configuration of the bvmm tools.
//
// Values are layered with priority env > file > defaults. Files may be YAML
// or JSON. Every loaded configuration is validated before it is returned.
//
// Environment variables:
//
//	BVMM_MODE, BVMM_HEIGHT_STEP, BVMM_FRINGE, BVMM_PRIOR, BVMM_CONCENTRATION
//	BVMM_KIND, BVMM_ALPHABET_SIZE, BVMM_DATA
//	BVMM_MAX_HEIGHT, BVMM_RUNS, BVMM_SAMPLES, BVMM_PERIOD, BVMM_MIN_SKIP_PROB
//	BVMM_SEED (greedy and mcmc)
//	BVMM_LOG_LEVEL, BVMM_LOG_JSON, BVMM_LOG_DIR
//	BVMM_ENV, OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER,
//	OTEL_EXPORTER_OTLP_ENDPOINT
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/bvmm/pkg/logging"
	"github.com/AleutianAI/bvmm/services/vmm/ctree"
	"github.com/AleutianAI/bvmm/services/vmm/inference"
	"github.com/AleutianAI/bvmm/services/vmm/inference/bruteforce"
	"github.com/AleutianAI/bvmm/services/vmm/inference/greedy"
	"github.com/AleutianAI/bvmm/services/vmm/inference/mcmc"
	"github.com/AleutianAI/bvmm/services/vmm/telemetry"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config contains the whole configuration of a bvmm run.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after
// creation.
type Config struct {
	// Model describes the model family.
	Model ModelConfig `json:"model" yaml:"model"`

	// Data describes the input.
	Data DataConfig `json:"data" yaml:"data"`

	// BruteForce configures exhaustive enumeration.
	BruteForce BruteForceConfig `json:"bruteforce" yaml:"bruteforce"`

	// Greedy configures the optimizer.
	Greedy GreedyConfig `json:"greedy" yaml:"greedy"`

	// MCMC configures the sampler.
	MCMC MCMCConfig `json:"mcmc" yaml:"mcmc"`

	// Logging configures the logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Telemetry configures traces and otel metrics.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// ModelConfig contains model family settings.
type ModelConfig struct {
	Mode          string    `json:"mode" yaml:"mode" validate:"bvmm_mode"`
	HeightStep    int       `json:"height_step" yaml:"height_step" validate:"min=1"`
	Fringe        bool      `json:"fringe" yaml:"fringe"`
	Prior         string    `json:"prior" yaml:"prior" validate:"bvmm_prior"`
	Concentration []float64 `json:"concentration,omitempty" yaml:"concentration,omitempty" validate:"omitempty,dive,bvmm_positive"`
}

// DataConfig contains input settings.
type DataConfig struct {
	// Kind is "sequence" or "network".
	Kind string `json:"kind" yaml:"kind" validate:"bvmm_kind"`

	// AlphabetSize is the number of symbols. Zero means one more than the
	// largest symbol in the data.
	AlphabetSize int `json:"alphabet_size" yaml:"alphabet_size" validate:"gte=0"`

	// Path is the input file. Empty or "-" reads stdin.
	Path string `json:"path" yaml:"path"`
}

// BruteForceConfig contains enumeration settings.
type BruteForceConfig struct {
	MaxHeight     int `json:"max_height" yaml:"max_height" validate:"gte=-1"`
	CheckInterval int `json:"check_interval" yaml:"check_interval" validate:"min=1"`
}

// GreedyConfig contains optimizer settings.
type GreedyConfig struct {
	Runs int    `json:"runs" yaml:"runs" validate:"min=1"`
	Seed uint64 `json:"seed" yaml:"seed"`
}

// MCMCConfig contains sampler settings.
type MCMCConfig struct {
	Samples     int     `json:"samples" yaml:"samples" validate:"min=1"`
	Period      int     `json:"period" yaml:"period" validate:"min=1"`
	MinSkipProb float64 `json:"min_skip_prob" yaml:"min_skip_prob" validate:"gt=0,lt=1"`
	Seed        uint64  `json:"seed" yaml:"seed"`
	LogInterval int     `json:"log_interval" yaml:"log_interval" validate:"gte=0"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" validate:"bvmm_level"`
	JSON  bool   `json:"json" yaml:"json"`
	Dir   string `json:"dir" yaml:"dir"`
	Quiet bool   `json:"quiet" yaml:"quiet"`
}

// TelemetryConfig contains trace and metric exporter settings.
type TelemetryConfig struct {
	ServiceName    string `json:"service_name" yaml:"service_name" validate:"required"`
	Environment    string `json:"environment" yaml:"environment"`
	TraceExporter  string `json:"trace_exporter" yaml:"trace_exporter" validate:"oneof=otlp stdout none"`
	MetricExporter string `json:"metric_exporter" yaml:"metric_exporter" validate:"oneof=prometheus stdout none"`
	OTLPEndpoint   string `json:"otlp_endpoint" yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure   bool   `json:"otlp_insecure" yaml:"otlp_insecure"`
}

// Default returns the default configuration.
func Default() Config {
	settings := inference.DefaultSettings()
	bf := bruteforce.DefaultConfig()
	gr := greedy.DefaultConfig()
	mc := mcmc.DefaultConfig()
	tel := telemetry.DefaultConfig()

	return Config{
		Model: ModelConfig{
			Mode:       string(settings.Mode),
			HeightStep: settings.HeightStep,
			Prior:      settings.Prior,
		},
		Data: DataConfig{
			Kind: string(ctree.KindSequence),
		},
		BruteForce: BruteForceConfig{
			MaxHeight:     bf.MaxHeight,
			CheckInterval: bf.CheckInterval,
		},
		Greedy: GreedyConfig{
			Runs: gr.Runs,
		},
		MCMC: MCMCConfig{
			Samples:     mc.Samples,
			Period:      mc.Period,
			MinSkipProb: mc.MinSkipProb,
			LogInterval: mc.LogInterval,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    tel.ServiceName,
			Environment:    tel.Environment,
			TraceExporter:  tel.TraceExporter,
			MetricExporter: tel.MetricExporter,
			OTLPEndpoint:   tel.OTLPEndpoint,
			OTLPInsecure:   tel.OTLPInsecure,
		},
	}
}

// Load reads the configuration with priority env > file > defaults.
//
// Inputs:
//   - path: YAML or JSON file. Empty means defaults only; a missing file is
//     not an error.
//
// Outputs:
//   - Config: The merged configuration.
//   - error: Non-nil if the file cannot be parsed or validation fails.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		if err := loadFile(path, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&config); err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// loadEnv applies BVMM_* overrides. Unlike file values, malformed numbers
// are reported instead of ignored.
func loadEnv(config *Config) error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = i
		}
	}
	setUint := func(key string, dst ...*uint64) {
		if v := os.Getenv(key); v != "" {
			u, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			for _, d := range dst {
				*d = u
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	// Model
	setString("BVMM_MODE", &config.Model.Mode)
	setInt("BVMM_HEIGHT_STEP", &config.Model.HeightStep)
	setBool("BVMM_FRINGE", &config.Model.Fringe)
	setString("BVMM_PRIOR", &config.Model.Prior)
	if v := os.Getenv("BVMM_CONCENTRATION"); v != "" {
		alpha, err := ParseConcentration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BVMM_CONCENTRATION: %w", err))
		} else {
			config.Model.Concentration = alpha
		}
	}

	// Data
	setString("BVMM_KIND", &config.Data.Kind)
	setInt("BVMM_ALPHABET_SIZE", &config.Data.AlphabetSize)
	setString("BVMM_DATA", &config.Data.Path)

	// Algorithms
	setInt("BVMM_MAX_HEIGHT", &config.BruteForce.MaxHeight)
	setInt("BVMM_RUNS", &config.Greedy.Runs)
	setInt("BVMM_SAMPLES", &config.MCMC.Samples)
	setInt("BVMM_PERIOD", &config.MCMC.Period)
	setFloat("BVMM_MIN_SKIP_PROB", &config.MCMC.MinSkipProb)
	setUint("BVMM_SEED", &config.Greedy.Seed, &config.MCMC.Seed)

	// Logging
	setString("BVMM_LOG_LEVEL", &config.Logging.Level)
	setBool("BVMM_LOG_JSON", &config.Logging.JSON)
	setString("BVMM_LOG_DIR", &config.Logging.Dir)

	// Telemetry
	setString("BVMM_ENV", &config.Telemetry.Environment)
	setString("OTEL_TRACES_EXPORTER", &config.Telemetry.TraceExporter)
	setString("OTEL_METRICS_EXPORTER", &config.Telemetry.MetricExporter)
	setString("OTEL_EXPORTER_OTLP_ENDPOINT", &config.Telemetry.OTLPEndpoint)

	if len(errs) > 0 {
		return fmt.Errorf("%w: environment: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ParseConcentration parses a comma separated list of positive numbers such
// as "0.5,0.5,2".
func ParseConcentration(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	alpha := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("concentration %q: %w", f, err)
		}
		alpha = append(alpha, v)
	}
	return alpha, nil
}

// -----------------------------------------------------------------------------
// Conversions
// -----------------------------------------------------------------------------

// ToSettings converts ModelConfig into inference settings. The config must
// have been validated.
func (c ModelConfig) ToSettings() inference.Settings {
	mode, _ := ctree.ParseMode(c.Mode)
	return inference.Settings{
		Mode:          mode,
		HeightStep:    c.HeightStep,
		Fringe:        c.Fringe,
		Prior:         strings.ToLower(strings.TrimSpace(c.Prior)),
		Concentration: c.Concentration,
	}
}

// ToKind returns the parsed observation kind. The config must have been
// validated.
func (c DataConfig) ToKind() ctree.Kind {
	kind, _ := ctree.ParseKind(c.Kind)
	return kind
}

// ToEnumeratorConfig converts BruteForceConfig.
func (c BruteForceConfig) ToEnumeratorConfig() *bruteforce.Config {
	return &bruteforce.Config{MaxHeight: c.MaxHeight, CheckInterval: c.CheckInterval}
}

// ToOptimizerConfig converts GreedyConfig.
func (c GreedyConfig) ToOptimizerConfig() *greedy.Config {
	return &greedy.Config{Runs: c.Runs, Seed: c.Seed}
}

// ToSamplerConfig converts MCMCConfig.
func (c MCMCConfig) ToSamplerConfig() *mcmc.Config {
	return &mcmc.Config{
		Samples:     c.Samples,
		Period:      c.Period,
		MinSkipProb: c.MinSkipProb,
		Seed:        c.Seed,
		LogInterval: c.LogInterval,
	}
}

// ToLoggerConfig converts LoggingConfig for the given service name.
func (c LoggingConfig) ToLoggerConfig(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Dir,
		Service: service,
		JSON:    c.JSON,
		Quiet:   c.Quiet,
	}
}

// ToTelemetryConfig converts TelemetryConfig.
func (c TelemetryConfig) ToTelemetryConfig() telemetry.Config {
	base := telemetry.DefaultConfig()
	base.ServiceName = c.ServiceName
	base.Environment = c.Environment
	base.TraceExporter = c.TraceExporter
	base.MetricExporter = c.MetricExporter
	base.OTLPEndpoint = c.OTLPEndpoint
	base.OTLPInsecure = c.OTLPInsecure
	return base
}
