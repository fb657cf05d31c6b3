package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Server     Server     `yaml:"server"`
	Browser    Browser    `yaml:"browser"`
	Classifier Classifier `yaml:"classifier"`
	Quota      Quota      `yaml:"quota"`
	Analysis   Analysis   `yaml:"analysis"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Browser struct {
	NavTimeoutSeconds int      `yaml:"nav_timeout_seconds"`
	BlockResources    []string `yaml:"block_resources"`
}

type Classifier struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	OpenAIModel     string `yaml:"openai_model"`
	OpenAIKeyEnv    string `yaml:"openai_api_key_env"`
	OllamaURL       string `yaml:"ollama_url"`
	OllamaModel     string `yaml:"ollama_model"`
	MaxArticleChars int    `yaml:"max_article_chars"`
	MaxTokens       int    `yaml:"max_tokens"`
}

type Quota struct {
	FreeDailyLimit    int `yaml:"free_daily_limit"`
	PremiumDailyLimit int `yaml:"premium_daily_limit"`
}

type Analysis struct {
	MinArticleChars int `yaml:"min_article_chars"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for credlens.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "credlens")
}

// DataDir returns the XDG data directory for credlens.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "credlens")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/credlens/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'credlens init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{Port: 5001},
		Browser: Browser{
			NavTimeoutSeconds: 30,
			BlockResources:    []string{"images", "stylesheets", "fonts", "media"},
		},
		Classifier: Classifier{
			Provider:        "gemini",
			Model:           "gemini-1.5-flash",
			APIKeyEnv:       "GEMINI_API_KEY",
			OpenAIModel:     "gpt-4o-mini",
			OpenAIKeyEnv:    "OPENAI_API_KEY",
			OllamaURL:       "http://localhost:11434",
			OllamaModel:     "qwen2.5:7b",
			MaxArticleChars: 8000,
			MaxTokens:       512,
		},
		Quota: Quota{
			FreeDailyLimit:    10,
			PremiumDailyLimit: 50,
		},
		Analysis: Analysis{MinArticleChars: 150},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
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

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
