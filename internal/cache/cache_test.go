package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/annostore/annostore/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestCache(t *testing.T, maxBytes int64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestPutGetRoundTrip(t *testing.T) {
	c := newTestCache(t, 1<<20)
	blob := bytes.Repeat([]byte("annotation data "), 100)

	key, err := c.Put("UIKit", blob)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(key, "UIKit_") {
		t.Errorf("key %q should start with the module name", key)
	}

	got, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if !bytes.Equal(got, blob) {
		t.Error("round-tripped blob differs")
	}
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(t, 1<<20)
	_, ok, err := c.Get("Foundation_0000000000000000")
	if err != nil {
		t.Fatalf("miss must not be an error, got %v", err)
	}
	if ok {
		t.Error("missing key reported present")
	}
}

func TestKeyIsContentAddressed(t *testing.T) {
	k1 := Key("M", []byte("one"))
	k2 := Key("M", []byte("two"))
	k3 := Key("M", []byte("one"))
	if k1 == k2 {
		t.Error("different content must produce different keys")
	}
	if k1 != k3 {
		t.Error("same content must produce the same key")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	c := newTestCache(t, 1<<20)
	blob := []byte("same payload")
	k1, err := c.Put("M", blob)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := c.Put("M", blob)
	if err != nil {
		t.Fatal(err)
	}
	if k1 != k2 {
		t.Errorf("keys differ: %q vs %q", k1, k2)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestReopenFindsExistingEntries(t *testing.T) {
	dir := t.TempDir()
	blob := []byte("persisted annotation data")

	first, err := New(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	key, err := first.Put("AppKit", blob)
	if err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := New(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	got, ok, err := second.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get after reopen = (%v, %v)", ok, err)
	}
	if !bytes.Equal(got, blob) {
		t.Error("reopened entry differs")
	}
}

func TestCorruptEntryReportsError(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	key, err := c.Put("M", []byte("valid data"))
	if err != nil {
		t.Fatal(err)
	}
	// Clobber the stored file with bytes that are not valid snappy.
	path := filepath.Join(dir, key+entryExt)
	if err := os.WriteFile(path, []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0644); err != nil {
		t.Fatal(err)
	}

	_, ok, err := c.Get(key)
	if ok {
		t.Error("corrupt entry reported present")
	}
	if errors.GetCode(err) != errors.CodeCorruptEntry {
		t.Errorf("got %v, want CORRUPT_ENTRY", err)
	}
	// The entry is dropped, so the next Get is a clean miss.
	if _, ok, err := c.Get(key); ok || err != nil {
		t.Errorf("entry should be dropped after corruption, got (%v, %v)", ok, err)
	}
}

func TestEvictionKeepsCacheUnderCap(t *testing.T) {
	// Cap small enough that a handful of incompressible entries overflow it.
	c := newTestCache(t, 4096)

	var keys []string
	for i := 0; i < 16; i++ {
		blob := make([]byte, 1024)
		for j := range blob {
			blob[j] = byte(i*31 + j*17)
		}
		key, err := c.Put("M", blob)
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, key)
		time.Sleep(time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.SizeBytes() > 4096 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if size := c.SizeBytes(); size > 4096 {
		t.Fatalf("cache still %d bytes after eviction", size)
	}
	if c.Len() >= len(keys) {
		t.Errorf("no entries evicted, Len = %d", c.Len())
	}
}

func TestNewRejectsBadCap(t *testing.T) {
	if _, err := New(t.TempDir(), 0); err == nil {
		t.Error("zero cap should be rejected")
	}
}
