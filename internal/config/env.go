package config

import (
	"os"
	"strconv"
)

// LoadFromEnv overrides cfg's metrics and scenario TPS from environment
// variables, letting an example runner be tuned in a container without a
// mounted config file.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("BALTER_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}
	if tps := os.Getenv("BALTER_SCENARIO_TPS"); tps != "" {
		if v, err := strconv.ParseUint(tps, 10, 32); err == nil {
			cfg.Scenario.TPS = uint32(v)
		}
	}
}

// GetEnvOrDefault returns the environment variable's value, or defaultValue
// if it is unset.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
