package main

import (
	"context"
	"fmt"

	"github.com/ledgerbot/backupd/catalog"
	"github.com/ledgerbot/backupd/config"
	"github.com/ledgerbot/backupd/engine"
	"github.com/ledgerbot/backupd/postgres"
	"github.com/ledgerbot/backupd/retention"
	"github.com/ledgerbot/backupd/storage"
	"github.com/rs/zerolog"
)

// buildEngine wires storage, catalog and database tooling from a config
// file. Every command goes through here so they all see the same stack.
func buildEngine(ctx context.Context, cfgPath string, logger zerolog.Logger) (*engine.Engine, *config.Config, error) {
	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load config: %w", err)
	}

	local, err := storage.NewLocalBackend(cfg.LocalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open backup directory: %w", err)
	}

	var remote storage.Backend
	if cfg.Remote.Enabled {
		s3, err := storage.NewS3Backend(storage.S3Config{
			Endpoint:  cfg.Remote.Endpoint,
			Region:    cfg.Remote.Region,
			Bucket:    cfg.Remote.Bucket,
			Prefix:    cfg.Remote.Prefix,
			AccessKey: cfg.Remote.AccessKey,
			SecretKey: cfg.Remote.SecretKey,
			UseSSL:    cfg.Remote.UseSSL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("could not set up remote storage: %w", err)
		}
		if err := s3.Ping(ctx); err != nil {
			if storage.IsAuthError(err) {
				return nil, nil, fmt.Errorf("remote storage rejected credentials: %w", err)
			}
			logger.Warn().Err(err).Msg("remote storage unreachable, continuing with local storage only")
		}
		remote = s3
	}

	db, err := newSQLite(cfg.IndexPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open artifact index: %w", err)
	}

	cat := catalog.New(catalog.Params{
		DB:     db,
		Local:  local,
		Remote: remote,
		Logger: logger,
	})

	dbParams, err := config.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	tool := postgres.NewTool(dbParams, &postgres.ExecRunner{Logger: logger}, logger)

	eng := engine.New(engine.Params{
		Catalog: cat,
		Local:   local,
		Remote:  remote,
		Tool:    tool,
		Policy: retention.Policy{
			Daily:   cfg.Retention.Daily,
			Weekly:  cfg.Retention.Weekly,
			Monthly: cfg.Retention.Monthly,
		},
		DumpTimeout:    cfg.DumpTimeout.Duration,
		RestoreTimeout: cfg.RestoreTimeout.Duration,
		MinFreeSpace:   cfg.MinFreeSpace.Size,
		Logger:         logger,
	})
	return eng, cfg, nil
}
