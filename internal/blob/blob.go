// Package blob implements the content-addressed document store. Every
// blob lives at .beads/blobs/<sha256-hex>; the address is the content, so
// the store needs no locking and writes are naturally idempotent.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/beadify/beadify/internal/types"
)

// Store reads and writes blobs under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first write, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the blob directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Write stores content under its SHA-256 hash and returns the hash as
// 64 lowercase hex characters. If the blob already exists the write is
// skipped; concurrent writers racing on the same content produce
// identical files, so whichever wins is correct.
func (s *Store) Write(content []byte) (string, error) {
	hash := Hash(content)
	path := filepath.Join(s.dir, hash)

	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &types.IOError{Action: "create blob directory", Path: s.dir, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", &types.IOError{Action: "create blob", Path: path, Err: err}
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return "", &types.IOError{Action: "write blob", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", &types.IOError{Action: "sync blob", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &types.IOError{Action: "close blob", Path: path, Err: err}
	}

	return hash, nil
}

// Read returns the content stored under hash. The hash is validated
// syntactically before touching the filesystem.
func (s *Store) Read(hash string) ([]byte, error) {
	if err := ValidateHash(hash); err != nil {
		return nil, err
	}

	path := filepath.Join(s.dir, hash)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.BlobNotFoundError{Hash: hash}
		}
		return nil, &types.IOError{Action: "read blob", Path: path, Err: err}
	}
	return content, nil
}

// Hash computes the content address: SHA-256 as lowercase hex.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ValidateHash checks that hash is exactly 64 lowercase hex characters.
func ValidateHash(hash string) error {
	if len(hash) != 64 {
		return &types.InvalidHashError{Hash: hash, Reason: "must be 64 characters"}
	}
	for _, c := range hash {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return &types.InvalidHashError{Hash: hash, Reason: "must contain only lowercase hexadecimal characters"}
		}
	}
	return nil
}
