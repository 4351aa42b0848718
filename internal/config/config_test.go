package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "GEMINI_API_KEY", "LANGUAGE_ENDPOINT", "LANGUAGE_KEY",
		"CLU_CONFIDENCE_THRESHOLD", "CQA_CONFIDENCE", "IRIS_AUTH_TOKEN", "IRIS_DB",
		"IRIS_ZONE1_ECFR_URL", "TRANSLATOR_ENDPOINT", "TRANSLATOR_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "iris" {
		t.Errorf("expected Name=iris, got %s", cfg.Name)
	}
	if cfg.Language.CLUThreshold != 0.7 || cfg.Language.CQAThreshold != 0.8 {
		t.Errorf("unexpected thresholds: clu=%v cqa=%v", cfg.Language.CLUThreshold, cfg.Language.CQAThreshold)
	}
	if cfg.Orchestration.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Orchestration.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "iris.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = "sk-test"
	cfg.Orchestration.ExchangeTimeout = "45s"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", loaded.LLM.Provider)
	assert.Equal(t, "sk-test", loaded.LLM.APIKey)
	assert.Equal(t, 45*time.Second, loaded.GetExchangeTimeout())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CQA_CONFIDENCE", "0.65")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "iris", cfg.Name)
	assert.Equal(t, 0.65, cfg.Language.CQAThreshold, "env overrides apply without a file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iris.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestration: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("CLU_CONFIDENCE_THRESHOLD", "0.55")
	t.Setenv("CQA_CONFIDENCE", "not-a-number")
	t.Setenv("IRIS_ZONE1_ECFR_URL", "http://ecfr:9000")
	t.Setenv("IRIS_AUTH_TOKEN", "zone2-token")
	t.Setenv("IRIS_DB", "/tmp/iris.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "env-openai", cfg.LLM.APIKey)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 0.55, cfg.Language.CLUThreshold)
	assert.Equal(t, 0.8, cfg.Language.CQAThreshold, "unparseable overrides are ignored")
	assert.Equal(t, "http://ecfr:9000", cfg.Zones.ECFRURL)
	assert.Equal(t, "zone2-token", cfg.Zones.AuthToken)
	assert.Equal(t, "/tmp/iris.db", cfg.Ledger.Path)
}

func TestConfig_GeminiKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "o")
	t.Setenv("GEMINI_API_KEY", "g")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "g", cfg.LLM.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "zai" }},
		{"provider without key", func(c *Config) { c.LLM.Provider = "openai" }},
		{"azure without base url", func(c *Config) { c.LLM.Provider = "azure-openai"; c.LLM.APIKey = "k" }},
		{"threshold above one", func(c *Config) { c.Language.CQAThreshold = 1.2 }},
		{"no attempts", func(c *Config) { c.Orchestration.MaxAttempts = 0 }},
		{"too few turns", func(c *Config) { c.Orchestration.MaxTurns = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestTimeouts_Fallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Orchestration.ExchangeTimeout = "soon"
	cfg.Orchestration.CallTimeout = "-5s"
	cfg.Orchestration.Backoff = "0s"

	to := cfg.Timeouts()
	assert.Equal(t, 120*time.Second, to.ExchangeTimeout)
	assert.Equal(t, 60*time.Second, to.CallTimeout)
	assert.Equal(t, time.Duration(0), to.Backoff)
	assert.Equal(t, DefaultTimeouts().Zones, to.Zones)
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	lc := LoggingConfig{Categories: map[string]bool{"routing": false}}
	assert.False(t, lc.IsCategoryEnabled("routing"))
	assert.True(t, lc.IsCategoryEnabled("harness"))

	var empty LoggingConfig
	assert.True(t, empty.IsCategoryEnabled("anything"))
}
