package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultDumpTimeout    = 30 * time.Minute
	DefaultRestoreTimeout = 30 * time.Minute
)

type Config struct {
	LocalPath      string          `json:"local_path"`
	IndexPath      string          `json:"index_path,omitempty"`
	Schedule       string          `json:"schedule"`
	DatabaseURL    string          `json:"database_url"`
	DumpTimeout    Duration        `json:"dump_timeout,omitempty"`
	RestoreTimeout Duration        `json:"restore_timeout,omitempty"`
	MinFreeSpace   SizeArgument    `json:"min_free_space,omitempty"`
	Remote         RemoteConfig    `json:"remote,omitempty"`
	Retention      RetentionConfig `json:"retention,omitempty"`
}

type RemoteConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

type RetentionConfig struct {
	Daily   int `json:"daily,omitempty"`
	Weekly  int `json:"weekly,omitempty"`
	Monthly int `json:"monthly,omitempty"`
}

// Duration unmarshals strings like "30m" or "1h30m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Validate checks the config for fatal startup errors. An invalid schedule
// or database URL must never fall back to a default silently.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return fmt.Errorf("config: local_path is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: database_url is required")
	}
	if _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return fmt.Errorf("config: invalid database_url: %w", err)
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("config: invalid schedule %q: %w", c.Schedule, err)
		}
	}
	if c.Remote.Enabled {
		if c.Remote.Endpoint == "" || c.Remote.Bucket == "" {
			return fmt.Errorf("config: remote storage enabled but endpoint or bucket missing")
		}
		if c.Remote.AccessKey == "" || c.Remote.SecretKey == "" {
			return fmt.Errorf("config: remote storage enabled but credentials missing")
		}
	}
	if c.Retention.Daily < 0 || c.Retention.Weekly < 0 || c.Retention.Monthly < 0 {
		return fmt.Errorf("config: retention counts must not be negative")
	}
	return nil
}

func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("local_path", c.LocalPath)
	e.Str("schedule", c.Schedule)
	e.Bool("remote", c.Remote.Enabled)
	if c.Remote.Enabled {
		e.Str("remote_bucket", c.Remote.Bucket)
		e.Str("remote_prefix", c.Remote.Prefix)
	}
	e.Dur("dump_timeout", c.DumpTimeout.Duration)
	e.Dur("restore_timeout", c.RestoreTimeout.Duration)
}
