package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Zak/jobgate-career-quest-sub004/internal/scoring"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "careerquest.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.CooldownEnabled)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, 15*time.Second, cfg.Adaptive.FastThreshold)
	assert.Equal(t, 25*time.Second, cfg.Adaptive.SlowThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	p := writeConfig(t, `
cooldown_enabled: false
seed: 7
adaptive:
  fast_threshold: 10s
  slow_threshold: 40s
store:
  driver: memory
scoring:
  bands:
    general:
      fallback: Below Bar
      bands:
        - {min: 75, label: Pass}
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.False(t, cfg.CooldownEnabled)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 10*time.Second, cfg.Adaptive.FastThreshold)
	assert.Equal(t, 40*time.Second, cfg.Adaptive.SlowThreshold)
	assert.Equal(t, 0.8, cfg.Adaptive.Mastery.ExpertAccuracy, "untouched keys keep defaults")
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "Pass", cfg.Scoring.Bands[scoring.TestTypeGeneral].Level(80))
	assert.Equal(t, "Below Bar", cfg.Scoring.Bands[scoring.TestTypeGeneral].Level(74))
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeConfig(t, "store:\n  driver: memory\n")
	t.Setenv("CAREERQUEST_STORE_DRIVER", "redis")
	t.Setenv("CAREERQUEST_STORE_DSN", "redis://localhost:6379/0")
	t.Setenv("CAREERQUEST_COOLDOWN_ENABLED", "false")
	t.Setenv("CAREERQUEST_HTTP_ADDR", ":9999")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.DSN)
	assert.False(t, cfg.CooldownEnabled)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoad_MissingDefaultFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"fast above slow", func(c *Config) { c.Adaptive.FastThreshold = time.Minute }},
		{"zero threshold", func(c *Config) { c.Adaptive.SlowThreshold = 0 }},
		{"band without fallback", func(c *Config) {
			c.Scoring.Bands = map[string]scoring.BandTable{"general": {Bands: []scoring.Band{{Min: 50, Label: "ok"}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
