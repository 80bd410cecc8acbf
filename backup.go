package main

import (
	"context"

	"github.com/rs/zerolog"
)

func backupCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	eng, cfg, err := buildEngine(ctx, args.Backup.Config, logger)
	if err != nil {
		return err
	}
	logger.Info().Object("config", *cfg).Msg("loaded config")

	record, err := eng.RequestBackup(ctx)
	if err != nil {
		return err
	}

	logger.Info().Object("backup", record).Msg("backup complete")
	return nil
}
