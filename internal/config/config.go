package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Fetch         Fetch         `yaml:"fetch"`
	Extract       Extract       `yaml:"extract"`
	Summarization Summarization `yaml:"summarization"`
	Output        Output        `yaml:"output"`
	Logging       Logging       `yaml:"logging"`
}

type Fetch struct {
	Timeout      time.Duration     `yaml:"timeout"`
	Retries      int               `yaml:"retries"`
	RetryBackoff time.Duration     `yaml:"retry_backoff"`
	MaxRedirects int               `yaml:"max_redirects"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
	Referer      string            `yaml:"referer"`
	Headers      map[string]string `yaml:"headers"`
}

type Extract struct {
	TitleSelectors      []string `yaml:"title_selectors"`
	PublisherSelectors  []string `yaml:"publisher_selectors"`
	BodySelectors       []string `yaml:"body_selectors"`
	PublishedSelectors  []string `yaml:"published_selectors"`
	ChallengeMarkers    []string `yaml:"challenge_markers"`
	ReadabilityFallback bool     `yaml:"readability_fallback"`
	Timezone            string   `yaml:"timezone"`
}

type Summarization struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	OllamaURL       string        `yaml:"ollama_url"`
	OpenAIModel     string        `yaml:"openai_model"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	CohereModel     string        `yaml:"cohere_model"`
	CohereAPIKeyEnv string        `yaml:"cohere_api_key_env"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	LengthTolerance int           `yaml:"length_tolerance"`
	Language        string        `yaml:"language"`
	Instructions    []string      `yaml:"instructions"`
}

type Output struct {
	Path     string        `yaml:"path"`
	Format   string        `yaml:"format"`
	Timeout  time.Duration `yaml:"timeout"`
	Headings Headings      `yaml:"headings"`
	S3       S3            `yaml:"s3"`
	Archive  Archive       `yaml:"archive"`
}

type Headings struct {
	OneLine   string `yaml:"one_line"`
	Summary   string `yaml:"summary"`
	KeyPoints string `yaml:"key_points"`
	Source    string `yaml:"source"`
}

type S3 struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Enabled reports whether summaries should also be uploaded to S3.
func (s S3) Enabled() bool {
	return s.Bucket != ""
}

type Archive struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Debug reports whether verbose logging was requested in the config.
func (l Logging) Debug() bool {
	return strings.EqualFold(l.Level, "DEBUG")
}

// ConfigDir returns the XDG config directory for articledigest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "articledigest")
}

// DataDir returns the XDG data directory for articledigest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "articledigest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/articledigest/config.yaml > ./config.yaml.
// An empty path with a nil error means the embedded defaults should be used.
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

	return "", nil
}

// Load reads and parses a config YAML file. An empty path loads the embedded defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(DefaultConfigYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse layers data over the embedded defaults. Maps such as fetch.headers
// merge key by key; lists such as selectors replace the default list.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing default config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must not be negative")
	}
	if c.Summarization.Timeout <= 0 {
		return fmt.Errorf("summarization.timeout must be positive")
	}
	if c.Summarization.MaxAttempts < 1 {
		return fmt.Errorf("summarization.max_attempts must be at least 1")
	}
	if c.Summarization.LengthTolerance < 0 {
		return fmt.Errorf("summarization.length_tolerance must not be negative")
	}
	switch c.Output.Format {
	case "markdown", "html", "json":
	default:
		return fmt.Errorf("output.format must be markdown, html or json, got %q", c.Output.Format)
	}
	return nil
}

// GetArchivePath returns the effective archive database path from config or XDG default.
func (c *Config) GetArchivePath() string {
	if c.Output.Archive.Path != "" {
		return c.Output.Archive.Path
	}
	return filepath.Join(DataDir(), "archive.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
