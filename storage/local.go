package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/ledgerbot/backupd/fileutils"
)

// LocalBackend stores artifacts as files under a root directory. It is the
// mandatory primary target; any failure here is fatal for the run.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("could not create backup directory %q: %w", root, err)
	}
	if err := fileutils.VerifyWritable(root); err != nil {
		return nil, fmt.Errorf("backup directory %q is not writable: %w", root, err)
	}
	return &LocalBackend{root: root}, nil
}

func (l *LocalBackend) Name() string { return "local" }

func (l *LocalBackend) Root() string { return l.root }

// Put writes to a temp file and renames it into place, so a crashed or
// cancelled write never leaves a partially visible artifact.
func (l *LocalBackend) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	final := filepath.Join(l.root, name)
	tmp := final + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("local: could not create %q: %w", tmp, err)
	}

	_, err = io.Copy(out, r)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("local: could not write %q: %w", name, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("local: could not publish %q: %w", name, err)
	}
	return nil
}

// PutFile atomically publishes a fully written temp file living on the same
// filesystem as the root directory.
func (l *LocalBackend) PutFile(name string, srcPath string) error {
	if err := os.Rename(srcPath, filepath.Join(l.root, name)); err != nil {
		return fmt.Errorf("local: could not publish %q: %w", name, err)
	}
	return nil
}

// FreeSpace reports the bytes available to unprivileged writers on the
// filesystem holding the backup directory.
func (l *LocalBackend) FreeSpace() (int64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(l.root, &st); err != nil {
		return 0, fmt.Errorf("local: could not stat filesystem of %q: %w", l.root, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

func (l *LocalBackend) List(ctx context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("local: could not list %q: %w", l.root, err)
	}

	var objects []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsArtifactName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		createdAt, err := ParseArtifactName(entry.Name())
		if err != nil {
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: createdAt,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

func (l *LocalBackend) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("local: %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("local: could not open %q: %w", name, err)
	}
	return f, nil
}

func (l *LocalBackend) Delete(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(l.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("local: %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("local: could not delete %q: %w", name, err)
	}
	return nil
}
