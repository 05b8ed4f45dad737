// Package checksum computes the content digest that keys the analysis cache.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

const chunkSize = 64 * 1024

// File returns the lowercase hex SHA-256 of the file at path. The file is
// streamed, so size does not matter.
func File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	return Reader(file)
}

// Reader digests everything r yields.
func Reader(r io.Reader) (string, error) {
	hash := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(hash, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
