package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// OKTYV_SERVER_PORT overrides server.port.
const envPrefix = "OKTYV"

// configSearchPaths are the standard locations probed when no explicit
// config file is given.
var configSearchPaths = []string{
	"./config.yml",
	"./config/config.yml",
	"./cmd/oktyvd/config.yml",
}

// envSearchPaths are the standard .env locations.
var envSearchPaths = []string{
	".env.oktyv",
	".env",
}

// Load reads configuration from the given YAML file (or the first standard
// location that exists when path is empty), applies .env files and
// environment overrides, then fills defaults and validates.
func Load(path string) (*Config, error) {
	if path == "" {
		path = firstExisting(configSearchPaths)
	}
	if envFile := firstExisting(envSearchPaths); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "[config] warning: failed to load %s: %v\n", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
