// Package config resolves betterrest settings from flags, environment,
// an optional .env file and an optional .betterrest.yaml.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"betterrest/internal/clock"
)

const (
	EnvPrefix = "BETTERREST"

	DefaultTimeFormat = "24h"
	DefaultLocation   = "Local"
	DefaultCacheSize  = 1024
)

// Config keys, with the command-line flag each one is bound to.
var flagKeys = map[string]string{
	"model_path":  "model",
	"port":        "port",
	"time_format": "time-format",
	"location":    "location",
	"cache_size":  "cache-size",
	"watch_model": "watch-model",
	"debug":       "debug",
}

type Config struct {
	ModelPath  string
	Port       int
	TimeFormat string
	Location   string
	CacheSize  int
	WatchModel bool
	Debug      bool

	// ConfigFile is the settings file that was read, if any.
	ConfigFile string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		TimeFormat: DefaultTimeFormat,
		Location:   DefaultLocation,
		CacheSize:  DefaultCacheSize,
		WatchModel: true,
	}
}

// Load merges, lowest precedence first: defaults, .betterrest.yaml, .env and
// BETTERREST_* environment variables, then any flags set on the command line.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	def := Default()
	v := viper.New()
	v.SetDefault("model_path", def.ModelPath)
	v.SetDefault("port", def.Port)
	v.SetDefault("time_format", def.TimeFormat)
	v.SetDefault("location", def.Location)
	v.SetDefault("cache_size", def.CacheSize)
	v.SetDefault("watch_model", def.WatchModel)
	v.SetDefault("debug", def.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	explicit := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(".betterrest") // .yaml is implicit
		if override := os.Getenv(EnvPrefix + "_CONFIG_PATH"); override != "" {
			v.AddConfigPath(override)
		}
		v.AddConfigPath("./")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || explicit != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		ModelPath:  strings.TrimSpace(v.GetString("model_path")),
		Port:       v.GetInt("port"),
		TimeFormat: v.GetString("time_format"),
		Location:   v.GetString("location"),
		CacheSize:  v.GetInt("cache_size"),
		WatchModel: v.GetBool("watch_model"),
		Debug:      v.GetBool("debug"),
		ConfigFile: v.ConfigFileUsed(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be repaired silently.
func (c *Config) Validate() error {
	if _, err := clock.LayoutFor(c.TimeFormat); err != nil {
		return err
	}
	if _, err := c.Loc(); err != nil {
		return err
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must be >= 0")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535")
	}
	return nil
}

// Layout returns the time layout for TimeFormat, falling back to 24h.
func (c *Config) Layout() string {
	l, err := clock.LayoutFor(c.TimeFormat)
	if err != nil {
		return clock.Layout24h
	}
	return l
}

// Loc resolves Location. Empty and "Local" mean the host's zone.
func (c *Config) Loc() (*time.Location, error) {
	name := strings.TrimSpace(c.Location)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", name, err)
	}
	return loc, nil
}
