// Package config loads the oktyv server configuration from YAML, .env files,
// and environment variables, and aggregates each package's config struct.
package config

import (
	"fmt"

	"github.com/dwasnwk/oktyv/engine"
	"github.com/dwasnwk/oktyv/logger"
	"github.com/dwasnwk/oktyv/observability"
	"github.com/dwasnwk/oktyv/server"
	"github.com/dwasnwk/oktyv/tool/filetool"
	"github.com/dwasnwk/oktyv/tool/shelltool"
	"github.com/dwasnwk/oktyv/tool/vault"
)

// Config is the root configuration for the oktyv server.
type Config struct {
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Logging   logger.Config        `yaml:"logging" mapstructure:"logging"`
	Engine    engine.Config        `yaml:"engine" mapstructure:"engine"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
	Auth      server.AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Vault     vault.Config         `yaml:"vault" mapstructure:"vault"`
	Files     filetool.Config      `yaml:"files" mapstructure:"files"`
	Shell     shelltool.Config     `yaml:"shell" mapstructure:"shell"`
}

// ApplyDefaults applies defaults across all sections.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Vault.ApplyDefaults()
	c.Files.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth is enabled")
	}
	return nil
}
