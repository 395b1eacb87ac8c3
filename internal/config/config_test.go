package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if cfg.Classifier.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Classifier.Provider)
	}
	if cfg.Classifier.MaxTokens != 300 {
		t.Errorf("expected max_tokens 300, got %d", cfg.Classifier.MaxTokens)
	}
	if cfg.Sources.NewsAPI.Language != "id" {
		t.Errorf("expected language 'id', got %q", cfg.Sources.NewsAPI.Language)
	}
	if cfg.Tasks.ImmediateArticles != 3 {
		t.Errorf("expected 3 immediate articles, got %d", cfg.Tasks.ImmediateArticles)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
classifier:
  provider: ollama
  model: qwen2.5:7b
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Classifier.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Classifier.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Classifier.APIKeyEnv != "ANALYSIS_API_KEY" {
		t.Errorf("expected default api_key_env, got %q", cfg.Classifier.APIKeyEnv)
	}
	if cfg.Extract.MinLength != 300 {
		t.Errorf("expected default min_length 300, got %d", cfg.Extract.MinLength)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Fetch.SlowDomains) == 0 {
		t.Error("expected slow domains to be populated from file")
	}
}

func TestLoadTOMLConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := []byte(`
[classifier]
model = "llama3.1"
timeout_seconds = 30

[tasks]
schedule = "@every 1h"
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load toml config: %v", err)
	}
	if cfg.Classifier.Model != "llama3.1" {
		t.Errorf("expected model 'llama3.1', got %q", cfg.Classifier.Model)
	}
	if cfg.ClassifierTimeout() != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.ClassifierTimeout())
	}
	if cfg.Tasks.Schedule != "@every 1h" {
		t.Errorf("expected hourly schedule, got %q", cfg.Tasks.Schedule)
	}
	if cfg.Classifier.Temperature != 0.7 {
		t.Errorf("expected default temperature 0.7, got %v", cfg.Classifier.Temperature)
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
