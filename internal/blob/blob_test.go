package blob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/beadify/beadify/internal/types"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "blobs"))
}

func TestWriteAndRead(t *testing.T) {
	store := setupStore(t)

	content := []byte("hello blob")
	hash, err := store.Write(content)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64", len(hash))
	}

	got, err := store.Read(hash)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read = %q, want %q", got, content)
	}
}

func TestWriteIdempotent(t *testing.T) {
	store := setupStore(t)

	content := []byte("hello blob")
	hash1, err := store.Write(content)
	if err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	hash2, err := store.Write(content)
	if err != nil {
		t.Fatalf("second Write failed: %v", err)
	}
	if hash1 != hash2 {
		t.Errorf("hashes differ: %s vs %s", hash1, hash2)
	}

	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("blob count = %d, want 1", len(entries))
	}
}

func TestDifferentContentDifferentHash(t *testing.T) {
	store := setupStore(t)

	hash1, err := store.Write([]byte("first"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	hash2, err := store.Write([]byte("second"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if hash1 == hash2 {
		t.Error("different content produced the same hash")
	}
}

func TestKnownHashValue(t *testing.T) {
	store := setupStore(t)

	hash, err := store.Write([]byte("test"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	want := "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"
	if hash != want {
		t.Errorf("hash = %s, want %s", hash, want)
	}
}

func TestReadMissingBlob(t *testing.T) {
	store := setupStore(t)

	_, err := store.Read("0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, types.ErrBlobNotFound) {
		t.Errorf("err = %v, want ErrBlobNotFound", err)
	}
}

func TestValidateHash(t *testing.T) {
	tests := []struct {
		name    string
		hash    string
		wantErr bool
	}{
		{"valid", "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", false},
		{"too short", "abc123", true},
		{"uppercase", "9F86D081884C7D659A2FEAA0C55AD015A3BF4F1B2B0B822CD15D6C15B0F00A08", true},
		{"non-hex", "zzzz0000000000000000000000000000000000000000000000000000000000zz", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHash(tt.hash)
			if tt.wantErr && !errors.Is(err, types.ErrInvalidHash) {
				t.Errorf("err = %v, want ErrInvalidHash", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
