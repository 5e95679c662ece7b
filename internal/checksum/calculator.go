package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Calculator is an interface for computing content checksums.
type Calculator interface {
	// Sum computes the checksum of in-memory content.
	Sum(content []byte) string

	// File computes the checksum of a file, streaming its content.
	File(path string) (string, error)
}

// SHA256 implements Calculator using hex-encoded SHA-256.
//
// SHA256 is a zero-size type and is safe for concurrent use by multiple
// goroutines. Value semantics avoid heap allocations.
type SHA256 struct{}

// New creates a new SHA-256 based calculator.
func New() SHA256 {
	return SHA256{}
}

// Sum computes SHA-256 of the given content.
func (c SHA256) Sum(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// File computes SHA-256 of a file without reading it fully into memory.
func (c SHA256) File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
