package config

import (
	"os"
	"path/filepath"

	"github.com/schardosin/folio/pkg/widget"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv overrides the config file location.
const ConfigPathEnv = "FOLIO_CONFIG"

const (
	DefaultProvider        = "azure_openai"
	DefaultModel           = "gpt-4o"
	DefaultPort            = 8080
	DefaultAllowedOrigin   = "*"
	DefaultMaxTokens       = 500
	DefaultTemperature     = 0.7
	DefaultMaxHistory      = 40
	DefaultMaxMessageChars = 4000
	DefaultShutdownTimeout = 15
)

// DefaultSystemPrompt is prepended to every transcript sent upstream.
const DefaultSystemPrompt = `You are the virtual assistant on a developer's portfolio website. You speak in a warm, professional and confident tone.

Your job:
1. Help visitors understand the developer's expertise and how it applies to their project.
2. Ask clarifying questions to understand what the visitor needs.
3. Offer high-level guidance, and suggest they book a call for detailed planning.

Keep responses concise (2-4 sentences typically). Use emojis sparingly.`

type AppConfig struct {
	General   GeneralConfig             `yaml:"general"`
	Server    ServerConfig              `yaml:"server"`
	Relay     RelayConfig               `yaml:"relay"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Widget    widget.Settings           `yaml:"widget"`
	Leads     LeadsConfig               `yaml:"leads"`
	Client    ClientConfig              `yaml:"client"`
}

type GeneralConfig struct {
	DefaultProvider string `yaml:"default_provider"`
	DefaultModel    string `yaml:"default_model"`
	LogLevel        string `yaml:"log_level"`
	LogPretty       bool   `yaml:"log_pretty"`
}

// ServerConfig configures `folio serve`.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	WebDir          string `yaml:"web_dir"`
	AllowedOrigin   string `yaml:"allowed_origin"`
	PublicToken     string `yaml:"public_token"`
	AdminToken      string `yaml:"admin_token"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_seconds"`
}

// RelayConfig shapes the upstream completion request.
type RelayConfig struct {
	SystemPrompt    string  `yaml:"system_prompt"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float32 `yaml:"temperature"`
	MaxHistory      int     `yaml:"max_history"`
	MaxMessageChars int     `yaml:"max_message_chars"`
}

// LeadsConfig configures the lead store and digest.
type LeadsConfig struct {
	Database       string `yaml:"database"`
	DigestSchedule string `yaml:"digest_schedule"`
	DigestDisabled bool   `yaml:"digest_disabled"`
}

// ClientConfig is used by `folio chat` and `folio leads`.
type ClientConfig struct {
	ServerURL  string `yaml:"server_url"`
	Token      string `yaml:"token"`
	AdminToken string `yaml:"admin_token"`
}

type ProviderConfig map[string]string

func GetConfigDir() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return filepath.Dir(path), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "folio"), nil
}

func GetConfigPath() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadAppConfig reads the config file, or returns defaults when there is none.
// Provider and token settings missing from the file are taken from the
// environment.
func LoadAppConfig() (*AppConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadAppConfigFrom(path)
}

func SaveAppConfig(cfg *AppConfig) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ApplyDefaults fills every unset field.
func (c *AppConfig) ApplyDefaults() {
	if c.General.DefaultProvider == "" {
		c.General.DefaultProvider = DefaultProvider
	}
	if c.General.DefaultModel == "" {
		c.General.DefaultModel = DefaultModel
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.AllowedOrigin == "" {
		c.Server.AllowedOrigin = DefaultAllowedOrigin
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Relay.SystemPrompt == "" {
		c.Relay.SystemPrompt = DefaultSystemPrompt
	}
	if c.Relay.MaxTokens <= 0 {
		c.Relay.MaxTokens = DefaultMaxTokens
	}
	if c.Relay.Temperature == 0 {
		c.Relay.Temperature = DefaultTemperature
	}
	if c.Relay.MaxHistory <= 0 {
		c.Relay.MaxHistory = DefaultMaxHistory
	}
	if c.Relay.MaxMessageChars <= 0 {
		c.Relay.MaxMessageChars = DefaultMaxMessageChars
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	c.Widget = c.Widget.WithDefaults()

	if c.Leads.Database == "" {
		if dir, err := GetConfigDir(); err == nil {
			c.Leads.Database = filepath.Join(dir, "leads.db")
		} else {
			c.Leads.Database = "leads.db"
		}
	}

	if c.Client.ServerURL == "" {
		c.Client.ServerURL = "http://localhost:8080"
	}
}
