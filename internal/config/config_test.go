package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "anthropic:\n  model: claude-sonnet-4-20250514\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if cfg.Locale.Language != "en-US" || cfg.Locale.Timezone != "UTC" {
		t.Errorf("locale defaults wrong: %+v", cfg.Locale)
	}
	if cfg.Orchestrator.ContextTimeout != 10*time.Minute {
		t.Errorf("context_timeout = %v, want 10m", cfg.Orchestrator.ContextTimeout)
	}
	if cfg.Orchestrator.CleanupInterval != time.Minute {
		t.Errorf("cleanup_interval = %v, want 1m", cfg.Orchestrator.CleanupInterval)
	}
	if cfg.Orchestrator.SchedulePollInterval != 5*time.Second {
		t.Errorf("schedule_poll_interval = %v, want 5s", cfg.Orchestrator.SchedulePollInterval)
	}
	if !cfg.Agents.WatchManifest {
		t.Error("watch_manifest should default to true")
	}
}

func TestLoadFromPathOverrides(t *testing.T) {
	path := writeConfig(t, `
anthropic:
  use_aws_bedrock: true
  aws_region: us-west-2
storage:
  db_path: /tmp/test.db
orchestrator:
  context_timeout: 2m
metrics:
  addr: ":9090"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !cfg.Anthropic.UseAWSBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("bedrock settings wrong: %+v", cfg.Anthropic)
	}
	if cfg.Storage.DBPath != "/tmp/test.db" {
		t.Errorf("db_path = %q", cfg.Storage.DBPath)
	}
	if cfg.Orchestrator.ContextTimeout != 2*time.Minute {
		t.Errorf("context_timeout = %v, want 2m", cfg.Orchestrator.ContextTimeout)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoadFromPathExpandsAPIKeyEnv(t *testing.T) {
	t.Setenv("TEST_VALUECELL_KEY", "sk-ant-from-environment")
	path := writeConfig(t, "anthropic:\n  api_key: ${TEST_VALUECELL_KEY}\n")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-environment" {
		t.Errorf("api_key = %q", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestGetAPIKeyPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-wins")

	key, err := GetAPIKey(&Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-from-config"}})
	if err != nil {
		t.Fatalf("get api key: %v", err)
	}
	if key != "sk-ant-env-wins" {
		t.Errorf("key = %q, environment must win", key)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	key, err := GetAPIKey(&Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-from-config"}})
	if err != nil {
		t.Fatalf("get api key: %v", err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKeyRejectsUnexpandedReference(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(&Config{Anthropic: AnthropicConfig{APIKey: "${UNSET_VAR_XYZ}"}}); err == nil {
		t.Error("an unexpanded ${VAR} reference is not a usable key")
	}
	if _, err := GetAPIKey(nil); err == nil {
		t.Error("nil config has no key")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("sk-ant-api03-abcdefghijkl"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := ValidateAPIKey(""); err == nil {
		t.Error("empty key accepted")
	}
	if err := ValidateAPIKey("sk-wrong-prefix-abcdef"); err == nil {
		t.Error("wrong prefix accepted")
	}
	if err := ValidateAPIKey("sk-ant-x"); err == nil {
		t.Error("short key accepted")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("empty mask = %q", got)
	}
	if got := MaskAPIKey("sk-ant-REDACTED"); got != "sk-ant-...alue" {
		t.Errorf("long mask = %q", got)
	}
}
