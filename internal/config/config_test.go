package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balter.yaml")
	yaml := `
scenario:
  name: checkout
  tps: 750
metrics:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.Scenario.Name)
	assert.Equal(t, uint32(750), cfg.Scenario.TPS)
	assert.False(t, cfg.Metrics.Enabled)
	// unspecified fields keep their defaults
	assert.Equal(t, 10, cfg.Scenario.ConcurrencyStart)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/balter.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BALTER_METRICS_PORT", "9999")
	t.Setenv("BALTER_SCENARIO_TPS", "1234")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 9999, cfg.Metrics.Port)
	assert.Equal(t, uint32(1234), cfg.Scenario.TPS)
}
