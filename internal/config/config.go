package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort          = 8000
	defaultSearxFallback = "https://searx.party"
	defaultOllamaBase    = "http://127.0.0.1:11434"
	defaultMiniModel     = "phi3:mini"
)

// Config represents the process-wide gateway configuration, read once at
// startup from the environment with an optional YAML file on top.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Search SearchConfig `yaml:"search"`
	Ollama OllamaConfig `yaml:"ollama"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AuthConfig holds the shared bearer secret. An empty token disables the gate.
type AuthConfig struct {
	LocalAPIToken string `yaml:"local_api_token"`
}

// SearchConfig configures the search fallback chain. Empty values disable
// the corresponding engine rather than failing startup.
type SearchConfig struct {
	BraveAPIKey        string `yaml:"brave_api_key"`
	SearxNGURL         string `yaml:"searxng_url"`
	SearxNGFallbackURL string `yaml:"searxng_fallback_url"`
}

// OllamaConfig points the lightweight local-model endpoint at a runner.
type OllamaConfig struct {
	Base      string `yaml:"base"`
	MiniModel string `yaml:"mini_model"`
}

// Load builds configuration from the environment (including a .env file
// when present) and, if path is non-empty, a YAML file whose values win.
func Load(path string) (Config, error) {
	// Missing .env is fine; only explicit config files are required to exist.
	_ = godotenv.Load()

	cfg := fromEnv()

	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, fmt.Errorf("resolve config path: %w", err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	var cfg Config

	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil {
			cfg.Server.Port = port
		}
	}

	cfg.Auth.LocalAPIToken = strings.TrimSpace(os.Getenv("LOCAL_API_TOKEN"))
	cfg.Search.BraveAPIKey = strings.TrimSpace(os.Getenv("BRAVE_API_KEY"))
	cfg.Search.SearxNGURL = trimURL(os.Getenv("SEARXNG_URL"))
	cfg.Search.SearxNGFallbackURL = trimURL(os.Getenv("SEARXNG_FALLBACK_URL"))
	cfg.Ollama.Base = trimURL(os.Getenv("OLLAMA_BASE"))
	cfg.Ollama.MiniModel = strings.TrimSpace(os.Getenv("MINI_MODEL"))

	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Search.SearxNGFallbackURL == "" {
		c.Search.SearxNGFallbackURL = defaultSearxFallback
	}
	if c.Ollama.Base == "" {
		c.Ollama.Base = defaultOllamaBase
	}
	if c.Ollama.MiniModel == "" {
		c.Ollama.MiniModel = defaultMiniModel
	}

	c.Search.SearxNGURL = trimURL(c.Search.SearxNGURL)
	c.Search.SearxNGFallbackURL = trimURL(c.Search.SearxNGFallbackURL)
	c.Ollama.Base = trimURL(c.Ollama.Base)
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	return nil
}

// SearxBases returns the configured SearXNG endpoints in fallback order,
// skipping unset entries.
func (c Config) SearxBases() []string {
	bases := make([]string, 0, 2)
	for _, base := range []string{c.Search.SearxNGURL, c.Search.SearxNGFallbackURL} {
		if base != "" {
			bases = append(bases, base)
		}
	}
	return bases
}

func trimURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
