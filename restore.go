package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerbot/backupd/engine"
	"github.com/rs/zerolog"
)

func restoreCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	eng, _, err := buildEngine(ctx, args.Restore.Config, logger)
	if err != nil {
		return err
	}

	err = eng.RequestRestore(ctx, engine.RestoreRequest{
		Selector:     args.Restore.ID,
		ConfirmToken: args.Restore.Confirm,
	})
	if errors.Is(err, engine.ErrConfirmationRequired) {
		// Spell out the required flag so the operator can re-run immediately.
		return fmt.Errorf("refusing to overwrite the database: %w", err)
	}
	return err
}
