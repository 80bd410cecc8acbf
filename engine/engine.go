package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/klauspost/compress/gzip"
	"github.com/ledgerbot/backupd/catalog"
	"github.com/ledgerbot/backupd/fileutils"
	"github.com/ledgerbot/backupd/retention"
	"github.com/ledgerbot/backupd/storage"
	"github.com/rs/zerolog"
)

// DatabaseTool is what the engine needs from the external dump/restore
// tooling.
type DatabaseTool interface {
	Dump(ctx context.Context, w io.Writer) error
	TerminateConnections(ctx context.Context) error
	DropAndRecreate(ctx context.Context) error
	Restore(ctx context.Context, dumpPath string) error
}

// Engine runs backups and restores. All runs converge on one RunLock;
// catalog reads stay lock-free for external collaborators.
type Engine struct {
	lock    *RunLock
	catalog *catalog.Catalog
	local   *storage.LocalBackend
	remote  storage.Backend
	tool    DatabaseTool
	policy  retention.Policy

	dumpTimeout    time.Duration
	restoreTimeout time.Duration
	minFreeSpace   int64

	now    func() time.Time
	logger zerolog.Logger
}

type Params struct {
	Catalog *catalog.Catalog
	Local   *storage.LocalBackend
	// Remote is the optional replication target; nil disables replication.
	Remote storage.Backend
	Tool   DatabaseTool
	Policy retention.Policy

	DumpTimeout    time.Duration
	RestoreTimeout time.Duration
	MinFreeSpace   int64

	// Now is replaceable in tests; defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

func New(params Params) *Engine {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		lock:           NewRunLock(params.Logger),
		catalog:        params.Catalog,
		local:          params.Local,
		remote:         params.Remote,
		tool:           params.Tool,
		policy:         params.Policy,
		dumpTimeout:    params.DumpTimeout,
		restoreTimeout: params.RestoreTimeout,
		minFreeSpace:   params.MinFreeSpace,
		now:            now,
		logger:         params.Logger,
	}
}

// BackupSummary is one catalog record annotated with its retention tier.
type BackupSummary struct {
	catalog.Record
	Tier retention.Tier
}

// ListBackups returns all known backups, newest first. Reads do not take the
// run lock; during a run they see the last published snapshot.
func (e *Engine) ListBackups(ctx context.Context) ([]BackupSummary, error) {
	if err := e.catalog.Refresh(ctx); err != nil {
		return nil, err
	}

	records := e.catalog.Records()
	decision := e.policy.Evaluate(records, e.now())

	summaries := make([]BackupSummary, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		summaries = append(summaries, BackupSummary{
			Record: records[i],
			Tier:   decision.Tier(records[i].ID),
		})
	}
	return summaries, nil
}

// RequestBackup runs the dump → compress → persist → replicate → rotate
// pipeline once. Fails fast with ErrLockHeld when a run is already active.
func (e *Engine) RequestBackup(ctx context.Context) (catalog.Record, error) {
	if err := e.lock.Acquire(HolderBackup); err != nil {
		return catalog.Record{}, err
	}
	defer e.lock.Release(HolderBackup)

	startTime := e.now()
	logger := e.logger.With().Str("run", "backup").Logger()
	logger.Info().Msg("starting backup")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("backup cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("backup finished")
		}
	}()

	if err := e.preflight(); err != nil {
		logger.Error().Err(err).Msg("backup failed")
		return catalog.Record{}, err
	}

	if err := e.catalog.Refresh(ctx); err != nil {
		logger.Error().Err(err).Msg("backup failed")
		return catalog.Record{}, err
	}

	name := storage.ArtifactName(startTime)
	partial := filepath.Join(e.local.Root(), name+".partial")

	size, err := e.dumpCompressed(ctx, partial)
	if err != nil {
		os.Remove(partial)
		logger.Error().Err(err).Msg("backup failed")
		return catalog.Record{}, err
	}

	checksum, err := fileutils.ComputeFileChecksum(partial)
	if err != nil {
		os.Remove(partial)
		logger.Error().Err(err).Msg("backup failed")
		return catalog.Record{}, fmt.Errorf("could not checksum artifact: %w", err)
	}

	if err := e.local.PutFile(name, partial); err != nil {
		os.Remove(partial)
		logger.Error().Err(err).Msg("backup failed")
		return catalog.Record{}, err
	}

	record := catalog.Record{
		ID:        startTime.UTC().Format("20060102150405"),
		Name:      name,
		CreatedAt: startTime.UTC().Truncate(time.Second),
		Size:      size,
		Checksum:  checksum,
		Local:     true,
	}
	if err := e.catalog.Publish(ctx, record); err != nil {
		logger.Warn().Err(err).Msg("artifact stored but could not be indexed")
	}

	logger.Info().
		Str("name", name).
		Str("size", units.HumanSize(float64(size))).
		Str("checksum", checksum).
		Msg("backup stored locally")

	if replicated := e.replicate(ctx, logger, name); replicated {
		record.Remote = true
	}

	e.rotate(ctx, logger)

	return record, nil
}

func (e *Engine) preflight() error {
	if e.minFreeSpace <= 0 {
		return nil
	}
	free, err := e.local.FreeSpace()
	if err != nil {
		return err
	}
	if free < e.minFreeSpace {
		return fmt.Errorf("not enough space in backup directory: %s free, %s required",
			units.HumanSize(float64(free)), units.HumanSize(float64(e.minFreeSpace)))
	}
	return nil
}

// dumpCompressed streams the dump tool's output through gzip into path and
// returns the compressed size.
func (e *Engine) dumpCompressed(ctx context.Context, path string) (int64, error) {
	dumpCtx := ctx
	if e.dumpTimeout > 0 {
		var cancel context.CancelFunc
		dumpCtx, cancel = context.WithTimeout(ctx, e.dumpTimeout)
		defer cancel()
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("could not create artifact file: %w", err)
	}

	zw := gzip.NewWriter(out)
	dumpErr := e.tool.Dump(dumpCtx, zw)
	err = errors.Join(dumpErr, zw.Close(), out.Close())
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("could not stat artifact file: %w", err)
	}
	return info.Size(), nil
}

// replicate copies the freshly stored artifact to the remote backend.
// Strictly best-effort: failures degrade to a warning and never fail the
// run that already succeeded locally.
func (e *Engine) replicate(ctx context.Context, logger zerolog.Logger, name string) bool {
	if e.remote == nil {
		return false
	}

	f, err := e.local.Get(ctx, name)
	if err != nil {
		logger.Warn().Err(err).Str("name", name).Msg("replication skipped: could not reopen artifact")
		return false
	}
	defer f.Close()

	var size int64 = -1
	if file, ok := f.(*os.File); ok {
		if info, statErr := file.Stat(); statErr == nil {
			size = info.Size()
		}
	}

	if err := e.remote.Put(ctx, name, f, size); err != nil {
		if storage.IsAuthError(err) {
			logger.Warn().Err(err).Str("name", name).Msg("replication failed: remote credentials rejected")
		} else {
			logger.Warn().Err(err).Str("name", name).Msg("replication failed")
		}
		return false
	}

	e.catalog.MarkReplicated(name)
	logger.Info().Str("name", name).Msg("replicated to remote storage")
	return true
}

// rotate prunes expired records from every backend they live on. Deletion
// failures are logged and never roll back the backup that triggered the
// rotation.
func (e *Engine) rotate(ctx context.Context, logger zerolog.Logger) {
	decision := e.policy.Evaluate(e.catalog.Records(), e.now())
	if len(decision.Delete) == 0 {
		return
	}

	deleted := 0
	for _, rec := range decision.Delete {
		failed := false
		if rec.Local {
			if err := e.local.Delete(ctx, rec.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
				logger.Warn().Err(err).Str("name", rec.Name).Msg("could not delete expired local artifact")
				failed = true
			}
		}
		if rec.Remote && e.remote != nil {
			if err := e.remote.Delete(ctx, rec.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
				logger.Warn().Err(err).Str("name", rec.Name).Msg("could not delete expired remote artifact")
				failed = true
			}
		}
		if !failed {
			e.catalog.Forget(ctx, rec.Name)
			deleted++
		}
	}

	logger.Info().
		Int("deleted", deleted).
		Int("kept", len(decision.Keep)).
		Msg("rotated old backups")
}
