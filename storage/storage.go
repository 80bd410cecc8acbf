package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	artifactPrefix  = "backup_"
	artifactSuffix  = ".dump.gz"
	timestampLayout = "20060102150405"
)

// ObjectInfo describes one stored backup artifact.
type ObjectInfo struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Backend stores backup artifacts. Implementations must make artifacts fully
// visible or not at all: a failed Put leaves no partial object behind.
type Backend interface {
	Name() string
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	List(ctx context.Context) ([]ObjectInfo, error)
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// ArtifactName builds the canonical artifact name for a backup taken at t.
// Second-precision UTC timestamps keep lexicographic and chronological order
// identical.
func ArtifactName(t time.Time) string {
	return artifactPrefix + t.UTC().Format(timestampLayout) + artifactSuffix
}

// ParseArtifactName extracts the creation time from a canonical artifact name.
func ParseArtifactName(name string) (time.Time, error) {
	if !IsArtifactName(name) {
		return time.Time{}, fmt.Errorf("%q is not a backup artifact name", name)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, artifactPrefix), artifactSuffix)
	t, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a backup artifact name: %w", name, err)
	}
	return t.UTC(), nil
}

// IsArtifactName reports whether name follows the backup naming convention.
func IsArtifactName(name string) bool {
	return strings.HasPrefix(name, artifactPrefix) &&
		strings.HasSuffix(name, artifactSuffix) &&
		len(name) == len(artifactPrefix)+len(timestampLayout)+len(artifactSuffix)
}
