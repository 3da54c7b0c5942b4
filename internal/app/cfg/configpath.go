// Package cfg implements functionality to configure an app.
//
// The configuration objects defined here need only be implemented once,
// but can be applied to multiple types.
//
// In order to add support for a new type, the configuration
// need only implement an ApplyX method.
package cfg

import (
	"github.com/crowdigit/oh-no-bot/internal"
	"github.com/crowdigit/oh-no-bot/internal/app/apps"
)

// ConfigPathCfg is configuration for the bot config file location.
type ConfigPathCfg struct {
	path string
}

// NewConfigPathCfg creates a new ConfigPathCfg from the given path.
func NewConfigPathCfg(path string) *ConfigPathCfg {
	return &ConfigPathCfg{
		path: path,
	}
}

// ConfigPathFromEnv creates a new ConfigPathCfg from the current environment.
func ConfigPathFromEnv() *ConfigPathCfg {
	return &ConfigPathCfg{
		path: internal.ConfigPath,
	}
}

// ApplyBotApp applies the ConfigPathCfg to a BotApp.
func (cfg ConfigPathCfg) ApplyBotApp(app *apps.BotApp) error {
	app.ConfigPath = cfg.path
	return nil
}

// ApplyActionApp applies the ConfigPathCfg to an ActionApp.
func (cfg ConfigPathCfg) ApplyActionApp(app *apps.ActionApp) error {
	app.ConfigPath = cfg.path
	return nil
}
