package fileutils

import (
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
)

// DecompressToFile decompresses the gzip stream r into a new file at path.
// The file is removed again when the copy fails partway.
func DecompressToFile(path string, r io.Reader) (err error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, zr.Close())
	}()

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(path)
		return err
	}
	return out.Close()
}
