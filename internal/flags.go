// Package internal holds the flag registry shared by the ohno commands.
package internal

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Flag values, populated from the command line with the environment as fallback.
var (
	Env      string
	LogLevel string

	ConfigPath string
)

// Flag describes a command flag backed by a string variable and an
// environment variable fallback.
type Flag struct {
	Name    string
	EnvVar  string
	Default string
	Usage   string
	Target  *string
}

// Flag definitions.
var (
	EnvFlag = Flag{
		Name:    "env",
		EnvVar:  "OHNO_ENV",
		Default: "development",
		Usage:   "The runtime environment.",
		Target:  &Env,
	}
	LogLevelFlag = Flag{
		Name:    "log-level",
		EnvVar:  "OHNO_LOG_LEVEL",
		Default: "info",
		Usage:   "The log level: trace, debug, info, warn or error.",
		Target:  &LogLevel,
	}
	ConfigPathFlag = Flag{
		Name:    "config",
		EnvVar:  "OHNO_CONFIG",
		Default: "config.json",
		Usage:   "Path to the JSON configuration file.",
		Target:  &ConfigPath,
	}
)

// RegisterCommandFlags registers the given flags on the command,
// seeding each default from its environment variable when set.
func RegisterCommandFlags(cmd *cobra.Command, flags []*Flag) error {
	for _, flag := range flags {
		if flag.Target == nil {
			return errors.Errorf("flag %s has no target", flag.Name)
		}
		def := flag.Default
		if v, ok := os.LookupEnv(flag.EnvVar); ok {
			def = v
		}
		cmd.PersistentFlags().StringVar(flag.Target, flag.Name, def, flag.Usage)
	}
	return nil
}

// ValidateEnv checks that the resolved flag values are usable.
func ValidateEnv() error {
	switch strings.ToLower(LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("unknown log level %q", LogLevel)
	}
	return nil
}
