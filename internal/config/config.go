// Package config loads YAML configuration for standalone load-generator
// runners. The balter library itself is never configured through a file,
// and nothing in this module calls this package; a runner binary built on
// balter reads its settings through it, the way vaultaire's cmd/vaultaire
// reads its own YAML config at startup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of an example runner's config file.
type Config struct {
	Scenario ScenarioConfig `yaml:"scenario"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Target   TargetConfig   `yaml:"target"`
}

// ScenarioConfig mirrors the fluent builder options on balter.Scenario.
type ScenarioConfig struct {
	Name             string  `yaml:"name"`
	TPS              uint32  `yaml:"tps"`
	ErrorRate        float64 `yaml:"error_rate"`
	LatencyTargetMS  int     `yaml:"latency_target_ms"`
	LatencyQuantile  float64 `yaml:"latency_quantile"`
	DurationSeconds  int     `yaml:"duration_seconds"`
	ConcurrencyStart int     `yaml:"concurrency_start"`
}

// MetricsConfig controls whether and where the example runner exposes a
// Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TargetConfig describes the profile of a demo system under test. No mock
// service ships in this module.
type TargetConfig struct {
	BaseLatencyMS  int    `yaml:"base_latency_ms"`
	ErrorProfile   string `yaml:"error_profile"`
	HardCeilingTPS int    `yaml:"hard_ceiling_tps"`
}

// Default returns the configuration an example runner uses when no config
// file is supplied.
func Default() *Config {
	return &Config{
		Scenario: ScenarioConfig{
			Name:             "example",
			TPS:              500,
			DurationSeconds:  30,
			ConcurrencyStart: 10,
			LatencyQuantile:  0.99,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Target: TargetConfig{
			BaseLatencyMS:  20,
			ErrorProfile:   "linear",
			HardCeilingTPS: 0,
		},
	}
}

// Load reads and parses the YAML file at path, falling back to Default's
// values for anything the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
