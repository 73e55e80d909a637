package cas

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreAndRetrieve(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	data := []byte("<score-partwise version=\"4.0\"/>")
	hash, err := store.Store(data)
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if hash != Hash(data) {
		t.Errorf("Store() hash = %s, want %s", hash, Hash(data))
	}

	got, err := store.Retrieve(hash)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Retrieve() = %q, want %q", got, data)
	}
}

func TestStoreDeduplicates(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	data := []byte("same bytes")
	h1, err := store.Store(data)
	if err != nil {
		t.Fatalf("first Store() error = %v", err)
	}
	h2, err := store.Store(data)
	if err != nil {
		t.Fatalf("second Store() error = %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
}

func TestRetrieveMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	missing := Hash([]byte("never stored"))
	if _, err := store.Retrieve(missing); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrBlobNotFound", err)
	}
}

func TestRetrieveInvalidHash(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for _, bad := range []string{"", "zzzz", "ABCDEF", Hash([]byte("x"))[:60]} {
		if _, err := store.Retrieve(bad); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Retrieve(%q) error = %v, want ErrInvalidHash", bad, err)
		}
	}
}

func TestRetrieveDetectsCorruption(t *testing.T) {
	root := t.TempDir()
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	hash, err := store.Store([]byte("original content"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	blobPath := filepath.Join(root, "blobs", "blake3", hash[:2], hash)
	if err := os.WriteFile(blobPath, []byte("tampered"), 0644); err != nil {
		t.Fatalf("tamper write error = %v", err)
	}

	if _, err := store.Retrieve(hash); !errors.Is(err, ErrCorruptBlob) {
		t.Errorf("Retrieve() error = %v, want ErrCorruptBlob", err)
	}
}

func TestExists(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	hash, err := store.Store([]byte("present"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if !store.Exists(hash) {
		t.Error("Exists() = false for stored blob")
	}
	if store.Exists(Hash([]byte("absent"))) {
		t.Error("Exists() = true for missing blob")
	}
	if store.Exists("not a hash") {
		t.Error("Exists() = true for invalid hash")
	}
}

func TestHashStability(t *testing.T) {
	a := Hash([]byte("abc"))
	b := Hash([]byte("abc"))
	if a != b {
		t.Errorf("Hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Hash length = %d, want 64", len(a))
	}
	if a == Hash([]byte("abd")) {
		t.Error("different inputs produced the same hash")
	}
}
