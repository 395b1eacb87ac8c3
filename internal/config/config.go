package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Classifier Classifier `yaml:"classifier" toml:"classifier"`
	Fetch      Fetch      `yaml:"fetch" toml:"fetch"`
	Extract    Extract    `yaml:"extract" toml:"extract"`
	Sources    Sources    `yaml:"sources" toml:"sources"`
	Tasks      Tasks      `yaml:"tasks" toml:"tasks"`
	Output     Output     `yaml:"output" toml:"output"`
	Server     Server     `yaml:"server" toml:"server"`
}

// Classifier configures the external text-classification backend.
type Classifier struct {
	Provider       string  `yaml:"provider" toml:"provider"`
	URL            string  `yaml:"url" toml:"url"`
	Model          string  `yaml:"model" toml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" toml:"max_tokens"`
	Cache          string  `yaml:"cache" toml:"cache"`
	RedisURL       string  `yaml:"redis_url" toml:"redis_url"`
	CacheTTLMin    int     `yaml:"cache_ttl_minutes" toml:"cache_ttl_minutes"`
}

type Fetch struct {
	TimeoutSeconds     int      `yaml:"timeout_seconds" toml:"timeout_seconds"`
	SlowTimeoutSeconds int      `yaml:"slow_timeout_seconds" toml:"slow_timeout_seconds"`
	SlowDomains        []string `yaml:"slow_domains" toml:"slow_domains"`
	UserAgent          string   `yaml:"user_agent" toml:"user_agent"`
}

type Extract struct {
	MinLength int `yaml:"min_length" toml:"min_length"`
}

type Sources struct {
	NewsAPI NewsAPIConfig `yaml:"newsapi" toml:"newsapi"`
	Feeds   []Feed        `yaml:"feeds" toml:"feeds"`
}

type NewsAPIConfig struct {
	Enabled         bool   `yaml:"enabled" toml:"enabled"`
	APIKeyEnv       string `yaml:"api_key_env" toml:"api_key_env"`
	URL             string `yaml:"url" toml:"url"`
	Language        string `yaml:"language" toml:"language"`
	PageSize        int    `yaml:"page_size" toml:"page_size"`
	DefaultDaysBack int    `yaml:"default_days_back" toml:"default_days_back"`
}

type Feed struct {
	URL  string `yaml:"url" toml:"url"`
	Name string `yaml:"name" toml:"name"`
}

type Tasks struct {
	Schedule          string `yaml:"schedule" toml:"schedule"`
	ImmediateArticles int    `yaml:"immediate_articles" toml:"immediate_articles"`
}

type Output struct {
	DataDir string `yaml:"data_dir" toml:"data_dir"`
}

type Server struct {
	Port           int      `yaml:"port" toml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// ConfigDir returns the XDG config directory for tokohwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "tokohwatch")
}

// DataDir returns the XDG data directory for tokohwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "tokohwatch")
}

// LoadEnv reads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/tokohwatch/config.yaml > ./config.yaml > ./config.toml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	candidates := []string{xdgConfig, "config.yaml", "config.toml"}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n  ./config.toml\n\nRun 'tokohwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config file. Files ending in .toml are decoded
// as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return parseTOML(data)
	}
	return parse(data)
}

func defaults() *Config {
	return &Config{
		Classifier: Classifier{
			Provider:       "openai",
			URL:            "https://api.openai.com/v1/chat/completions",
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "ANALYSIS_API_KEY",
			TimeoutSeconds: 15,
			Temperature:    0.7,
			MaxTokens:      300,
			Cache:          "memory",
			CacheTTLMin:    60,
		},
		Fetch: Fetch{
			TimeoutSeconds:     10,
			SlowTimeoutSeconds: 20,
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		},
		Extract: Extract{MinLength: 300},
		Sources: Sources{
			NewsAPI: NewsAPIConfig{
				Enabled:         true,
				APIKeyEnv:       "NEWSAPI_KEY",
				URL:             "https://newsapi.org/v2/everything",
				Language:        "id",
				PageSize:        50,
				DefaultDaysBack: 3,
			},
		},
		Tasks: Tasks{
			Schedule:          "@every 15m",
			ImmediateArticles: 3,
		},
		Server: Server{Port: 8000},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing toml config: %w", err)
	}
	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// ClassifierTimeout returns the classification request timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	if c.Classifier.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Classifier.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long cached classifications live in Redis.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Classifier.CacheTTLMin) * time.Minute
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
