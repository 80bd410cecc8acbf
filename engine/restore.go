package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerbot/backupd/catalog"
	"github.com/ledgerbot/backupd/fileutils"
	"github.com/ledgerbot/backupd/storage"
	"github.com/rs/zerolog"
)

// RestoreRequest selects which backup to restore and carries the caller's
// confirmation. Selector is a record id; empty selects the latest backup.
// ConfirmToken must equal the resolved record's id before anything
// destructive happens.
type RestoreRequest struct {
	Selector     string
	ConfirmToken string
}

// RequestRestore replaces the live database with the selected backup. The
// target database is dropped and recreated; there is no partial rollback
// once that point is passed.
func (e *Engine) RequestRestore(ctx context.Context, req RestoreRequest) error {
	if err := e.lock.Acquire(HolderRestore); err != nil {
		return err
	}
	defer e.lock.Release(HolderRestore)

	startTime := e.now()
	logger := e.logger.With().Str("run", "restore").Logger()
	logger.Info().Msg("starting restore")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("restore cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("restore finished")
		}
	}()

	if err := e.catalog.Refresh(ctx); err != nil {
		logger.Error().Err(err).Msg("restore failed")
		return err
	}

	record, err := e.resolve(req.Selector)
	if err != nil {
		logger.Error().Err(err).Str("selector", req.Selector).Msg("restore failed")
		return err
	}
	logger = logger.With().Str("name", record.Name).Logger()

	if req.ConfirmToken != record.ID {
		logger.Error().Str("expected", record.ID).Msg("restore rejected: confirmation token mismatch")
		return fmt.Errorf("%w: pass --confirm %s to restore %s",
			ErrConfirmationRequired, record.ID, record.Name)
	}

	dumpPath, cleanup, err := e.stageArtifact(ctx, logger, record)
	if err != nil {
		logger.Error().Err(err).Msg("restore failed")
		return err
	}
	defer cleanup()

	if err := e.tool.TerminateConnections(ctx); err != nil {
		logger.Warn().Err(err).Msg("could not terminate active connections")
	}

	if err := e.tool.DropAndRecreate(ctx); err != nil {
		logger.Error().Err(err).Msg("could not recreate database, manual intervention required")
		return err
	}

	restoreCtx := ctx
	if e.restoreTimeout > 0 {
		var cancel context.CancelFunc
		restoreCtx, cancel = context.WithTimeout(ctx, e.restoreTimeout)
		defer cancel()
	}
	if err := e.tool.Restore(restoreCtx, dumpPath); err != nil {
		logger.Error().Err(err).Msg("restore failed, database may be incomplete, manual intervention required")
		return err
	}

	return nil
}

func (e *Engine) resolve(selector string) (catalog.Record, error) {
	if selector == "" {
		record, ok := e.catalog.Latest()
		if !ok {
			return catalog.Record{}, fmt.Errorf("%w: no backups available", ErrNotFound)
		}
		return record, nil
	}
	record, ok := e.catalog.Find(selector)
	if !ok {
		return catalog.Record{}, fmt.Errorf("%w: no backup with id %q", ErrNotFound, selector)
	}
	return record, nil
}

// stageArtifact fetches the artifact, verifies its checksum and decompresses
// it into a scratch directory. Everything here runs before the database is
// touched so a corrupt artifact can never take down a healthy database.
func (e *Engine) stageArtifact(
	ctx context.Context,
	logger zerolog.Logger,
	record catalog.Record,
) (string, func(), error) {
	scratch, err := os.MkdirTemp("", "restore-*")
	if err != nil {
		return "", nil, fmt.Errorf("could not create scratch directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn().Err(err).Str("path", scratch).Msg("could not remove scratch directory")
		}
	}

	archivePath := filepath.Join(scratch, record.Name)
	if err := e.fetchArtifact(ctx, logger, record, archivePath); err != nil {
		cleanup()
		return "", nil, err
	}

	if record.Checksum == "" {
		logger.Warn().Msg("no checksum on record, skipping integrity check")
	} else {
		actual, err := fileutils.ComputeFileChecksum(archivePath)
		if err != nil {
			cleanup()
			return "", nil, fmt.Errorf("could not checksum artifact: %w", err)
		}
		if actual != record.Checksum {
			cleanup()
			return "", nil, fmt.Errorf("%w: checksum mismatch on %s: have %s, want %s",
				ErrCorruptArtifact, record.Name, actual, record.Checksum)
		}
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer archive.Close()

	dumpPath := filepath.Join(scratch, "restore.dump")
	if err := fileutils.DecompressToFile(dumpPath, archive); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, record.Name, err)
	}

	return dumpPath, cleanup, nil
}

// fetchArtifact copies the artifact into dst, preferring the local backend
// and falling back to the remote copy.
func (e *Engine) fetchArtifact(
	ctx context.Context,
	logger zerolog.Logger,
	record catalog.Record,
	dst string,
) error {
	if record.Local {
		err := e.copyFromBackend(ctx, e.local, record.Name, dst)
		if err == nil {
			return nil
		}
		if !record.Remote || e.remote == nil {
			return err
		}
		logger.Warn().Err(err).Msg("local copy unreadable, falling back to remote")
	}

	if record.Remote && e.remote != nil {
		if err := e.copyFromBackend(ctx, e.remote, record.Name, dst); err != nil {
			return err
		}
		return nil
	}

	return fmt.Errorf("%w: %s is not present on any backend", ErrNotFound, record.Name)
}

func (e *Engine) copyFromBackend(ctx context.Context, backend storage.Backend, name string, dst string) error {
	r, err := backend.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s missing from %s storage", ErrNotFound, name, backend.Name())
		}
		return err
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, r)
	return errors.Join(copyErr, f.Close())
}
