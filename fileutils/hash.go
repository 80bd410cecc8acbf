package fileutils

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash"
)

// ComputeHash returns the hash of the reader.
// It will read the entire contents of the reader. It will not close the reader.
func ComputeHash(r io.Reader) (uint64, error) {
	hash := xxhash.New()
	_, err := io.Copy(hash, r)
	if err != nil {
		return 0, err
	}
	return hash.Sum64(), nil
}

// ComputeFileHash returns the hash of the file at path.
func ComputeFileHash(path string) (uint64, error) {
	var err error
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}

	defer func() {
		closeErr := file.Close()
		err = errors.Join(err, closeErr)
	}()

	var hash uint64
	hash, err = ComputeHash(file)

	return hash, err
}

// HashHex renders a hash the way it is stored in the catalog index.
func HashHex(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// ComputeFileChecksum returns the hex checksum of the file at path.
func ComputeFileChecksum(path string) (string, error) {
	hash, err := ComputeFileHash(path)
	if err != nil {
		return "", err
	}
	return HashHex(hash), nil
}
