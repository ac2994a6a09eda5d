// Package config locates the modsweep config directory and loads settings
// from config.yaml, MODSWEEP_* environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "modsweep"
	// FileName is the config file name without extension.
	FileName = "config"
	// EnvPrefix prefixes environment overrides, e.g. MODSWEEP_KEEP=2.
	EnvPrefix = "MODSWEEP"
)

// Config is the resolved settings.
type Config struct {
	Provider string `mapstructure:"provider"`
	Scope    string `mapstructure:"scope"`
	Keep     int    `mapstructure:"keep"`
	Pwsh     string `mapstructure:"pwsh"`
	DB       string `mapstructure:"db"`
	// ModulePaths overrides $PSModulePath when non-empty.
	ModulePaths []string `mapstructure:"module_paths"`
	// UnknownScopeAsSystem treats unclassifiable install paths as
	// machine-wide, so they are gated on elevation.
	UnknownScopeAsSystem bool     `mapstructure:"unknown_scope_as_system"`
	SystemMarkers        []string `mapstructure:"system_markers"`
	UserMarkers          []string `mapstructure:"user_markers"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Dir returns the modsweep config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/modsweep if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// DefaultDBPath returns ~/.modsweep/modsweep.db.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, AppName+".db"), nil
}

// Default returns the built-in settings.
func Default() *Config {
	db, _ := DefaultDBPath()
	return &Config{
		Provider: "Auto",
		Scope:    "All",
		Keep:     1,
		Pwsh:     "pwsh",
		DB:       db,
	}
}

// Load reads settings. An explicit path must exist; otherwise config.yaml
// in Dir() is used when present, and defaults apply when it is not.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("provider", defaults.Provider)
	v.SetDefault("scope", defaults.Scope)
	v.SetDefault("keep", defaults.Keep)
	v.SetDefault("pwsh", defaults.Pwsh)
	v.SetDefault("db", defaults.DB)
	v.SetDefault("module_paths", []string{})
	v.SetDefault("unknown_scope_as_system", false)
	v.SetDefault("system_markers", []string{})
	v.SetDefault("user_markers", []string{})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config directory: %w", err)
		}
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Keep < 1 {
		return nil, fmt.Errorf("invalid keep %d in config: must be at least 1", cfg.Keep)
	}
	cfg.DB = expandHome(cfg.DB)
	for i, p := range cfg.ModulePaths {
		cfg.ModulePaths[i] = expandHome(p)
	}

	return &cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
