package disktable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	annoerrors "github.com/annostore/annostore/internal/errors"
)

func buildTable(t *testing.T, pairs map[string]string) *Table {
	t.Helper()
	b := NewBuilder()
	for k, v := range pairs {
		b.Insert([]byte(k), []byte(v))
	}
	tbl, err := Open(b.Emit())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return tbl
}

func TestRoundTrip(t *testing.T) {
	pairs := map[string]string{
		"NSView":                      "class",
		"NSString":                    "class",
		"NSCopying":                   "protocol",
		"initWith":                    "selector",
		"":                            "empty key",
		"x":                           "",
		"longer-key-with-some-length": "value",
	}
	tbl := buildTable(t, pairs)

	if tbl.Len() != len(pairs) {
		t.Errorf("Len = %d, want %d", tbl.Len(), len(pairs))
	}
	for k, v := range pairs {
		data, ok, err := tbl.Lookup([]byte(k))
		if err != nil {
			t.Fatalf("Lookup(%q) error: %v", k, err)
		}
		if !ok {
			t.Fatalf("Lookup(%q) missing", k)
		}
		if string(data) != v {
			t.Errorf("Lookup(%q) = %q, want %q", k, data, v)
		}
	}
}

func TestLookupAbsentKey(t *testing.T) {
	tbl := buildTable(t, map[string]string{"present": "yes"})
	data, ok, err := tbl.Lookup([]byte("absent"))
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if ok || data != nil {
		t.Errorf("Lookup(absent) = (%q, %v), want (nil, false)", data, ok)
	}
}

func TestEmptyBuilder(t *testing.T) {
	b := NewBuilder()
	blob := b.Emit()
	tbl, err := Open(blob)
	if err != nil {
		t.Fatalf("Open of empty table failed: %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("empty table Len = %d", tbl.Len())
	}
	_, ok, err := tbl.Lookup([]byte("anything"))
	if err != nil || ok {
		t.Errorf("lookup in empty table = (%v, %v)", ok, err)
	}
}

func TestNilTableBehavesEmpty(t *testing.T) {
	var tbl *Table
	if tbl.Len() != 0 {
		t.Error("nil table Len should be 0")
	}
	_, ok, err := tbl.Lookup([]byte("k"))
	if err != nil || ok {
		t.Error("nil table lookup should miss without error")
	}
	if err := tbl.Walk(func(key, data []byte) error { return fmt.Errorf("unexpected") }); err != nil {
		t.Error("nil table walk should visit nothing")
	}
}

func TestOpenEmptyBlobYieldsNilTable(t *testing.T) {
	tbl, err := Open(nil)
	if err != nil {
		t.Fatalf("Open(nil) error: %v", err)
	}
	if tbl != nil {
		t.Error("Open(nil) should yield a nil table")
	}
}

func TestWalkVisitsEveryEntryOnce(t *testing.T) {
	pairs := map[string]string{}
	for i := 0; i < 100; i++ {
		pairs[fmt.Sprintf("key-%03d", i)] = fmt.Sprintf("value-%03d", i)
	}
	tbl := buildTable(t, pairs)

	seen := map[string]string{}
	err := tbl.Walk(func(key, data []byte) error {
		k := string(key)
		if _, dup := seen[k]; dup {
			return fmt.Errorf("key %q visited twice", k)
		}
		seen[k] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(seen) != len(pairs) {
		t.Fatalf("walked %d entries, want %d", len(seen), len(pairs))
	}
	for k, v := range pairs {
		if seen[k] != v {
			t.Errorf("walked %q = %q, want %q", k, seen[k], v)
		}
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	tbl := buildTable(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	sentinel := fmt.Errorf("stop")
	visits := 0
	err := tbl.Walk(func(key, data []byte) error {
		visits++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Walk returned %v, want sentinel", err)
	}
	if visits != 1 {
		t.Errorf("callback ran %d times after error, want 1", visits)
	}
}

func TestDeterministicEmit(t *testing.T) {
	build := func() []byte {
		b := NewBuilder()
		for i := 0; i < 20; i++ {
			b.Insert([]byte(fmt.Sprintf("k%d", i)), []byte(fmt.Sprintf("v%d", i)))
		}
		return b.Emit()
	}
	first := build()
	second := build()
	if string(first) != string(second) {
		t.Error("Emit is not deterministic for identical insertion order")
	}
}

func TestBucketCountFor(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 1},
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 4},
		{8, 4},
		{9, 8},
		{100, 64},
	}
	for _, tt := range tests {
		if got := bucketCountFor(tt.n); got != tt.want {
			t.Errorf("bucketCountFor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestOpenRejectsCorruptBlobs(t *testing.T) {
	valid := func() []byte {
		b := NewBuilder()
		b.Insert([]byte("key"), []byte("value"))
		return b.Emit()
	}

	t.Run("too short", func(t *testing.T) {
		_, err := Open([]byte{1, 2, 3})
		if annoerrors.GetCode(err) != annoerrors.CodeMalformedTable {
			t.Errorf("got %v, want MALFORMED_TABLE", err)
		}
	})

	t.Run("root out of range", func(t *testing.T) {
		blob := valid()
		binary.LittleEndian.PutUint32(blob[len(blob)-4:], uint32(len(blob)))
		_, err := Open(blob)
		if annoerrors.GetCode(err) != annoerrors.CodeMalformedTable {
			t.Errorf("got %v, want MALFORMED_TABLE", err)
		}
	})

	t.Run("bucket count not power of two", func(t *testing.T) {
		blob := valid()
		root := binary.LittleEndian.Uint32(blob[len(blob)-4:])
		binary.LittleEndian.PutUint32(blob[root:], 3)
		_, err := Open(blob)
		if annoerrors.GetCode(err) != annoerrors.CodeMalformedTable {
			t.Errorf("got %v, want MALFORMED_TABLE", err)
		}
	})

	t.Run("bucket table exceeds blob", func(t *testing.T) {
		blob := valid()
		root := binary.LittleEndian.Uint32(blob[len(blob)-4:])
		binary.LittleEndian.PutUint32(blob[root:], 1<<20)
		_, err := Open(blob)
		if annoerrors.GetCode(err) != annoerrors.CodeMalformedTable {
			t.Errorf("got %v, want MALFORMED_TABLE", err)
		}
	})
}

func TestLookupDetectsTruncatedEntry(t *testing.T) {
	b := NewBuilder()
	b.Insert([]byte("key"), []byte("value"))
	blob := b.Emit()

	// Inflate the entry's data length so it overruns the blob.
	binary.LittleEndian.PutUint16(blob[6:], 0xFFFF)
	tbl, err := Open(blob)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, _, err = tbl.Lookup([]byte("key"))
	if annoerrors.GetCode(err) != annoerrors.CodeTruncated {
		t.Errorf("got %v, want TRUNCATED", err)
	}
}

func TestHashMatchesBetweenBuilderAndReader(t *testing.T) {
	// Collision-heavy table: force everything into few buckets and verify
	// chain walking still distinguishes keys.
	b := NewBuilder()
	for i := 0; i < 4; i++ {
		b.Insert([]byte{byte(i)}, []byte{byte(i * 10)})
	}
	tbl, err := Open(b.Emit())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		data, ok, err := tbl.Lookup([]byte{byte(i)})
		if err != nil || !ok {
			t.Fatalf("Lookup(%d) = (%v, %v)", i, ok, err)
		}
		if data[0] != byte(i*10) {
			t.Errorf("Lookup(%d) = %d, want %d", i, data[0], i*10)
		}
	}
}
