// Package config loads the bot configuration from a JSON file.
package config

import (
	"encoding/json"
	"os"

	"github.com/crowdigit/oh-no-bot/internal/pkg/validate"

	"github.com/pkg/errors"
)

// Config holds the static bot configuration.
type Config struct {
	Token           string `json:"token" validate:"required"`
	Hostname        string `json:"hostname" validate:"required,hostname"`
	GatewayOption   string `json:"gateway_option" validate:"required"`
	HTTPAPILocation string `json:"http_api_location" validate:"required"`
	GatewayVersion  int    `json:"gateway_version" validate:"required"`
	HTTPAPIVersion  int    `json:"http_api_version" validate:"required"`
}

// Load reads and validates the configuration at the given path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s failed", path)
	}
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}
	if err := validate.Validate().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "validate config failed")
	}
	return cfg, nil
}

// Authorization returns the value for the Authorization header on API calls.
func (c *Config) Authorization() string {
	return "Bot " + c.Token
}
