// Package config loads bundleboard settings: defaults first, then an optional
// YAML file, then BUNDLEBOARD_* environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the daemon and observer need at startup.
type Config struct {
	HTTPPort       string   `mapstructure:"http_port"`
	DataFile       string   `mapstructure:"data_file"`
	CacheDir       string   `mapstructure:"cache_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Ambassadors    []string `mapstructure:"ambassadors"`
	Assignees      []string `mapstructure:"assignees"`
	Verbose        bool     `mapstructure:"verbose"`
}

// Load reads configuration. path may be empty, in which case defaults and
// environment variables apply; a named file that cannot be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", "3000")
	v.SetDefault("data_file", "data/cards.json")
	v.SetDefault("cache_dir", "data/observer-cache")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("ambassadors", []string{})
	v.SetDefault("assignees", []string{"Greg", "Caz", "Justin", "Ansley"})
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("BUNDLEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
