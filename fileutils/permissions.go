package fileutils

import (
	"fmt"
	"os"
)

// VerifyWritable proves dirPath accepts new files before a run depends on
// it. A read-only backup directory should fail startup, not the first dump.
func VerifyWritable(dirPath string) error {
	probe, err := os.CreateTemp(dirPath, ".writable-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dirPath, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
