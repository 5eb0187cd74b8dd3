package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kalambet/intelapi/internal/guardrail"
)

type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Log        LogConfig
	Guardrails GuardrailConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type OllamaConfig struct {
	BaseURL string
	Model   string
	// PermissiveModel backs the permissive catalog entry. Empty means Model.
	PermissiveModel string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type GuardrailConfig struct {
	Phrases   []string
	Threshold float64
}

type MetricsConfig struct {
	Enabled bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Guardrails: GuardrailConfig{
			Phrases:   append([]string(nil), guardrail.DefaultPhrases...),
			Threshold: guardrail.DefaultThreshold,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from the TOML file at
// $XDG_CONFIG_HOME/intelapi/config.toml, then applies INTELAPI_* environment
// variable overrides. A missing file yields the defaults.
func Load() (Config, error) {
	return loadFromPath(configFilePath())
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("invalid config: ollama.model must not be empty")
	}
	if c.Guardrails.Threshold <= 0 || c.Guardrails.Threshold > 1 {
		return fmt.Errorf("invalid config: guardrails.threshold %v must be in (0, 1]", c.Guardrails.Threshold)
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "intelapi-data"
		}
	}
	return filepath.Join(dir, "intelapi")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "intelapi", "config.toml")
}
