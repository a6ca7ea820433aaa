package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models shiftflow.yml.
type Config struct {
	Business struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"business"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		JobSecret              string `yaml:"job_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"auth"`
	Jobs struct {
		SchedulerCron string `yaml:"scheduler_cron"`
		ArchiveCron   string `yaml:"archive_cron"`
	} `yaml:"jobs"`
}

const configName = "shiftflow.yml"

// Path returns the config file path inside the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".shiftflow", configName)
}

// Default returns a config with working defaults for a single-location shop.
func Default(businessName string) *Config {
	cfg := &Config{}
	cfg.Business.Name = businessName
	cfg.Business.Timezone = "America/New_York"
	// every 15 minutes; weekly archive Monday 02:00 business time
	cfg.Jobs.SchedulerCron = "*/15 * * * *"
	cfg.Jobs.ArchiveCron = "0 2 * * 1"
	return cfg
}

// Load reads and validates config from the workspace, falling back to
// defaults when no file exists.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default("shiftflow"), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates raw config bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Business.Timezone == "" {
		cfg.Business.Timezone = "America/New_York"
	}
	if cfg.Jobs.SchedulerCron == "" {
		cfg.Jobs.SchedulerCron = "*/15 * * * *"
	}
	if cfg.Jobs.ArchiveCron == "" {
		cfg.Jobs.ArchiveCron = "0 2 * * 1"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("config.business.timezone %q: %w", c.Business.Timezone, err)
	}
	return nil
}

// Location resolves the business timezone. Validate must have accepted the
// config first; an unknown zone at this point is a programmer error.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		panic(fmt.Sprintf("business timezone %q: %v", c.Business.Timezone, err))
	}
	return loc
}

// Save writes the config into the workspace.
func (c *Config) Save(workspace string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
