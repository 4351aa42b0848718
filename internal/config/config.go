package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI and server look for configuration.
const DefaultPath = "iris.yaml"

// Config holds all IRIS configuration. It is loaded once and passed to
// constructors; nothing below cmd/ reads the environment.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM           LLMConfig           `yaml:"llm"`
	Language      LanguageConfig      `yaml:"language"`
	Translator    TranslatorConfig    `yaml:"translator"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Zones         ZonesConfig         `yaml:"zones"`
	Server        ServerConfig        `yaml:"server"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LLMConfig configures the optional language model used by the translator
// and responders. An empty provider disables it.
type LLMConfig struct {
	Provider   string `yaml:"provider"` // openai, azure-openai, gemini
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"` // azure-openai only
	Timeout    string `yaml:"timeout"`
}

// LanguageConfig configures the intent (CLU) and FAQ (CQA) services.
type LanguageConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	APIKey        string  `yaml:"api_key"`
	CLUProject    string  `yaml:"clu_project"`
	CLUDeployment string  `yaml:"clu_deployment"`
	CQAProject    string  `yaml:"cqa_project"`
	CQADeployment string  `yaml:"cqa_deployment"`
	CLUAPIVersion string  `yaml:"clu_api_version"`
	CQAAPIVersion string  `yaml:"cqa_api_version"`
	CLUThreshold  float64 `yaml:"clu_threshold"`
	CQAThreshold  float64 `yaml:"cqa_threshold"`
	Timeout       string  `yaml:"timeout"`
}

// TranslatorConfig configures the Azure Translator text API.
type TranslatorConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
}

// OrchestrationConfig bounds one exchange.
type OrchestrationConfig struct {
	ExchangeTimeout string `yaml:"exchange_timeout"`
	CallTimeout     string `yaml:"call_timeout"`
	MaxAttempts     int    `yaml:"max_attempts"`
	Backoff         string `yaml:"backoff"`
	MaxTurns        int    `yaml:"max_turns"`
}

// ZonesConfig holds the plugin service endpoints. Zone 1 is the public
// regulatory data plane, Zone 2 the authenticated case data plane.
type ZonesConfig struct {
	RecordabilityURL string `yaml:"recordability_url"`
	ECFRURL          string `yaml:"ecfr_url"`
	AnalyticsURL     string `yaml:"analytics_url"`
	IncidentsURL     string `yaml:"incidents_url"`
	DocumentsURL     string `yaml:"documents_url"`
	NIOSHURL         string `yaml:"niosh_url"`
	AuthToken        string `yaml:"auth_token"`
	Timeout          string `yaml:"timeout"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	ReadTimeout    string `yaml:"read_timeout"`
	WatchConfig    bool   `yaml:"watch_config"`
	ReloadDebounce string `yaml:"reload_debounce"`
}

// LedgerConfig configures the outcome ledger.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "iris",
		Version: "1.0.0",

		LLM: LLMConfig{
			APIVersion: "2024-06-01",
			Timeout:    "60s",
		},

		Language: LanguageConfig{
			CLUAPIVersion: "2023-04-01",
			CQAAPIVersion: "2021-10-01",
			CLUThreshold:  0.7,
			CQAThreshold:  0.8,
			Timeout:       "15s",
		},

		Orchestration: OrchestrationConfig{
			ExchangeTimeout: "120s",
			CallTimeout:     "60s",
			MaxAttempts:     3,
			Backoff:         "1s",
			MaxTurns:        12,
		},

		Zones: ZonesConfig{
			RecordabilityURL: "http://localhost:8001",
			ECFRURL:          "http://localhost:8002",
			AnalyticsURL:     "http://localhost:8003",
			IncidentsURL:     "http://localhost:8004",
			DocumentsURL:     "http://localhost:8005",
			Timeout:          "30s",
		},

		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    "10s",
			WatchConfig:    true,
			ReloadDebounce: "500ms",
		},

		Ledger: LedgerConfig{
			Enabled: true,
			Path:    "data/iris.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// LLM provider from whichever key is present; Gemini wins when both are set
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	setString(&c.Language.Endpoint, "LANGUAGE_ENDPOINT")
	setString(&c.Language.APIKey, "LANGUAGE_KEY")
	setString(&c.Language.CLUProject, "CLU_PROJECT_NAME")
	setString(&c.Language.CLUDeployment, "CLU_DEPLOYMENT_NAME")
	setString(&c.Language.CQAProject, "CQA_PROJECT_NAME")
	setString(&c.Language.CQADeployment, "CQA_DEPLOYMENT_NAME")
	setFloat(&c.Language.CLUThreshold, "CLU_CONFIDENCE_THRESHOLD")
	setFloat(&c.Language.CQAThreshold, "CQA_CONFIDENCE")

	setString(&c.Translator.Endpoint, "TRANSLATOR_ENDPOINT")
	setString(&c.Translator.APIKey, "TRANSLATOR_KEY")
	setString(&c.Translator.Region, "TRANSLATOR_REGION")

	setString(&c.Zones.RecordabilityURL, "IRIS_ZONE1_RECORDABILITY_URL")
	setString(&c.Zones.ECFRURL, "IRIS_ZONE1_ECFR_URL")
	setString(&c.Zones.AnalyticsURL, "IRIS_ZONE1_ANALYTICS_URL")
	setString(&c.Zones.IncidentsURL, "IRIS_ZONE2_INCIDENTS_URL")
	setString(&c.Zones.DocumentsURL, "IRIS_ZONE2_DOCUMENTS_URL")
	setString(&c.Zones.AuthToken, "IRIS_AUTH_TOKEN")
	setString(&c.Zones.NIOSHURL, "NIOSH_API_URL")

	setString(&c.Ledger.Path, "IRIS_DB")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// setFloat ignores values that do not parse.
func setFloat(dst *float64, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = f
	}
}

// ValidProviders lists all supported LLM providers. The empty provider runs
// without a language model.
var ValidProviders = []string{"", "openai", "azure-openai", "gemini"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders[1:])
	}
	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM provider %s configured without an API key (set OPENAI_API_KEY or GEMINI_API_KEY)", c.LLM.Provider)
	}
	if c.LLM.Provider == "azure-openai" && c.LLM.BaseURL == "" {
		return fmt.Errorf("azure-openai requires llm.base_url")
	}

	for name, v := range map[string]float64{
		"clu_threshold": c.Language.CLUThreshold,
		"cqa_threshold": c.Language.CQAThreshold,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("language.%s must be within [0,1], got %v", name, v)
		}
	}

	if c.Orchestration.MaxAttempts < 1 {
		return fmt.Errorf("orchestration.max_attempts must be at least 1, got %d", c.Orchestration.MaxAttempts)
	}
	if c.Orchestration.MaxTurns < 5 {
		return fmt.Errorf("orchestration.max_turns must allow a full pipeline (>= 5), got %d", c.Orchestration.MaxTurns)
	}
	return nil
}

// LanguageEnabled reports whether the CLU/CQA services are configured.
func (c *Config) LanguageEnabled() bool {
	return c.Language.Endpoint != "" && c.Language.APIKey != ""
}

// TranslatorEnabled reports whether the Azure Translator API is configured.
func (c *Config) TranslatorEnabled() bool {
	return c.Translator.Endpoint != "" && c.Translator.APIKey != ""
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
