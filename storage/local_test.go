package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerbot/backupd/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactName(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	name := storage.ArtifactName(at)
	assert.Equal(t, "backup_20260314092653.dump.gz", name)

	parsed, err := storage.ParseArtifactName(name)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(at))
}

func TestArtifactName_LexicographicOrder(t *testing.T) {
	earlier := storage.ArtifactName(time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC))
	later := storage.ArtifactName(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestParseArtifactName_Bad(t *testing.T) {
	for _, name := range []string{
		"backup_2026.dump.gz",
		"backup_20260314092653.dump",
		"snapshot_20260314092653.dump.gz",
		"backup_2026031409265X.dump.gz",
	} {
		_, err := storage.ParseArtifactName(name)
		assert.Error(t, err, name)
	}
}

func TestLocalBackend_PutListGetDelete(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	payload := []byte("compressed dump bytes")
	name := storage.ArtifactName(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	require.NoError(t, backend.Put(ctx, name, bytes.NewReader(payload), int64(len(payload))))

	objects, err := backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, name, objects[0].Name)
	assert.Equal(t, int64(len(payload)), objects[0].Size)

	rc, err := backend.Get(ctx, name)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	require.NoError(t, backend.Delete(ctx, name))
	assert.ErrorIs(t, backend.Delete(ctx, name), storage.ErrNotFound)

	_, err = backend.Get(ctx, name)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalBackend_ListIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := storage.NewLocalBackend(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.db"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup_20260102030405.dump.gz.tmp"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "backup_20260102030405.dump.gz"), []byte("x"), 0600))

	objects, err := backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "backup_20260102030405.dump.gz", objects[0].Name)
}

func TestLocalBackend_ListOrdered(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	times := []time.Time{
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, at := range times {
		name := storage.ArtifactName(at)
		require.NoError(t, backend.Put(ctx, name, bytes.NewReader([]byte("x")), 1))
	}

	objects, err := backend.List(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	assert.True(t, objects[0].CreatedAt.Before(objects[1].CreatedAt))
	assert.True(t, objects[1].CreatedAt.Before(objects[2].CreatedAt))
}
