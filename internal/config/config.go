// Package config handles configuration loading and management.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the platform.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Locale       LocaleConfig       `mapstructure:"locale"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Agents       AgentsConfig       `mapstructure:"agents"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// AnthropicConfig holds planning model settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. ${VAR} references are expanded.
	APIKey string `mapstructure:"api_key"`
	// Model is the planning model name.
	Model string `mapstructure:"model"`
	// UseAWSBedrock routes API calls through AWS Bedrock.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
}

// LocaleConfig holds the ambient locale attached to agent invocations.
type LocaleConfig struct {
	Language string `mapstructure:"language"`
	Timezone string `mapstructure:"timezone"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// DBPath is the SQLite database location. Empty uses the XDG default.
	DBPath string `mapstructure:"db_path"`
}

// AgentsConfig holds agent catalog settings.
type AgentsConfig struct {
	// ManifestPath is an optional YAML manifest of agent cards.
	ManifestPath string `mapstructure:"manifest_path"`
	// WatchManifest hot-reloads the manifest on change.
	WatchManifest bool `mapstructure:"watch_manifest"`
}

// OrchestratorConfig holds planning lifecycle settings.
type OrchestratorConfig struct {
	// ContextTimeout is the planning context expiry threshold.
	ContextTimeout time.Duration `mapstructure:"context_timeout"`
	// CleanupInterval is how often expired contexts are swept.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// SchedulePollInterval is the cancellation poll interval for
	// scheduled-task sleeps.
	SchedulePollInterval time.Duration `mapstructure:"schedule_poll_interval"`
}

// MetricsConfig holds the optional metrics endpoint settings.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.valuecell.yaml in current directory or parent)
// 3. User config (~/.config/valuecell/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("locale.language", "en-US")
	v.SetDefault("locale.timezone", "UTC")

	v.SetDefault("storage.db_path", "")

	v.SetDefault("agents.manifest_path", "")
	v.SetDefault("agents.watch_manifest", true)

	v.SetDefault("orchestrator.context_timeout", "10m")
	v.SetDefault("orchestrator.cleanup_interval", "1m")
	v.SetDefault("orchestrator.schedule_poll_interval", "5s")

	v.SetDefault("metrics.addr", "")
}

// getUserConfigDir returns the XDG config directory.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "valuecell")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "valuecell")
	}
	return filepath.Join(home, ".config", "valuecell")
}

// findProjectConfig searches for .valuecell.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".valuecell.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
