package fileutils_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ledgerbot/backupd/fileutils"
)

var watchData = []byte(`{"schedule": "0 3 * * *"}`)

func TestWatchFile_NotChanged(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(testPath, watchData, 0600)
	if err != nil {
		t.Fatal(err)
	}

	notify := make(chan struct{})
	defer close(notify)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, notify, func(err error) {
		t.Fatal(err)
	})
	if err != nil {
		t.Fatal(err)
	}

	notify <- struct{}{}

	select {
	case <-watcher:
		t.Errorf("expected no change")
	case <-time.After(1 * time.Second):
		// ok
	}
}

func TestWatchFile_Changed(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(testPath, watchData, 0600)
	if err != nil {
		t.Fatal(err)
	}

	notify := make(chan struct{})
	defer close(notify)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := fileutils.WatchFile(ctx, testPath, notify, func(err error) {
		t.Fatal(err)
	})
	if err != nil {
		t.Fatal(err)
	}

	err = os.WriteFile(testPath, []byte(`{"schedule": "0 4 * * *"}`), 0600)
	if err != nil {
		t.Fatal(err)
	}

	notify <- struct{}{}

	select {
	case <-watcher:
		// ok
	case <-time.After(1 * time.Second):
		t.Errorf("expected change")
	}
}

func TestWatchFile_MissingFile(t *testing.T) {
	_, err := fileutils.WatchFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), nil, nil)
	if err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestVerifyWritable(t *testing.T) {
	if err := fileutils.VerifyWritable(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := fileutils.VerifyWritable(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
