package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DumpTimeout.Duration == 0 {
		c.DumpTimeout.Duration = DefaultDumpTimeout
	}
	if c.RestoreTimeout.Duration == 0 {
		c.RestoreTimeout.Duration = DefaultRestoreTimeout
	}
	if c.IndexPath == "" && c.LocalPath != "" {
		c.IndexPath = filepath.Join(c.LocalPath, "catalog.db")
	}
	if c.Retention.Daily == 0 {
		c.Retention.Daily = 7
	}
	if c.Retention.Weekly == 0 {
		c.Retention.Weekly = 4
	}
	if c.Retention.Monthly == 0 {
		c.Retention.Monthly = 12
	}
	if c.Remote.Prefix == "" {
		c.Remote.Prefix = "backups/"
	}
}
