package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadAppConfigFrom loads the config at path. A missing file yields defaults.
func LoadAppConfigFrom(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ParseAppConfig(nil)
		}
		return nil, err
	}
	return ParseAppConfig(data)
}

// ParseAppConfig decodes YAML, then applies environment overrides and defaults.
func ParseAppConfig(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	ApplyEnv(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}
