package disktable

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/annostore/annostore/internal/errors"
)

// Table resolves point lookups against a serialized table without
// decoding it. It borrows the blob and holds no mutable state, so any
// number of lookups may run concurrently.
type Table struct {
	blob        []byte
	root        uint32
	bucketCount uint32
	entryCount  uint32
}

// Open validates the blob framing and locates the bucket table root. It
// does not touch any entry. A nil or empty blob yields a nil Table, which
// behaves as an always-empty table.
func Open(blob []byte) (*Table, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < 16 {
		return nil, errors.NewDecodeError(errors.CodeMalformedTable,
			fmt.Sprintf("table blob too short: %d bytes", len(blob)))
	}
	root := binary.LittleEndian.Uint32(blob[len(blob)-4:])
	if root < 4 || int(root)+8 > len(blob)-4 {
		return nil, errors.NewDecodeError(errors.CodeMalformedTable,
			fmt.Sprintf("table root offset %d out of range", root))
	}
	bucketCount := binary.LittleEndian.Uint32(blob[root:])
	entryCount := binary.LittleEndian.Uint32(blob[root+4:])
	if bucketCount == 0 || bucketCount&(bucketCount-1) != 0 {
		return nil, errors.NewDecodeError(errors.CodeMalformedTable,
			fmt.Sprintf("bucket count %d is not a power of two", bucketCount))
	}
	if int(root)+8+int(bucketCount)*8 > len(blob)-4 {
		return nil, errors.NewDecodeError(errors.CodeMalformedTable,
			fmt.Sprintf("bucket table of %d buckets exceeds blob", bucketCount))
	}
	return &Table{blob: blob, root: root, bucketCount: bucketCount, entryCount: entryCount}, nil
}

// Len returns the number of entries. A nil table is empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return int(t.entryCount)
}

// Lookup hashes the encoded key, walks the matching bucket chain, and
// returns the entry's data bytes. The second result is false when the key
// is absent; absence is not an error.
func (t *Table) Lookup(key []byte) ([]byte, bool, error) {
	if t == nil {
		return nil, false, nil
	}
	bucket := Hash(key) & (t.bucketCount - 1)
	refOff := int(t.root) + 8 + int(bucket)*8
	off := binary.LittleEndian.Uint32(t.blob[refOff:])
	count := binary.LittleEndian.Uint32(t.blob[refOff+4:])
	if count == 0 {
		return nil, false, nil
	}

	pos := int(off)
	for i := uint32(0); i < count; i++ {
		entryKey, data, next, err := t.entryAt(pos)
		if err != nil {
			return nil, false, err
		}
		if bytes.Equal(entryKey, key) {
			return data, true, nil
		}
		pos = next
	}
	return nil, false, nil
}

// Walk visits every entry in bucket order, decoding each exactly once.
func (t *Table) Walk(fn func(key, data []byte) error) error {
	if t == nil {
		return nil
	}
	for bucket := uint32(0); bucket < t.bucketCount; bucket++ {
		refOff := int(t.root) + 8 + int(bucket)*8
		pos := int(binary.LittleEndian.Uint32(t.blob[refOff:]))
		count := binary.LittleEndian.Uint32(t.blob[refOff+4:])
		for i := uint32(0); i < count; i++ {
			key, data, next, err := t.entryAt(pos)
			if err != nil {
				return err
			}
			if err := fn(key, data); err != nil {
				return err
			}
			pos = next
		}
	}
	return nil
}

// entryAt decodes the entry header at pos and returns the key and data
// slices plus the offset of the following entry. Every read is bounded by
// the blob length so corrupt length prefixes surface as decode errors.
func (t *Table) entryAt(pos int) (key, data []byte, next int, err error) {
	if pos < 4 || pos+4 > len(t.blob) {
		return nil, nil, 0, errors.NewDecodeError(errors.CodeTruncated,
			fmt.Sprintf("entry header at offset %d out of range", pos))
	}
	keyLen := int(binary.LittleEndian.Uint16(t.blob[pos:]))
	dataLen := int(binary.LittleEndian.Uint16(t.blob[pos+2:]))
	start := pos + 4
	if start+keyLen+dataLen > len(t.blob) {
		return nil, nil, 0, errors.NewDecodeError(errors.CodeTruncated,
			fmt.Sprintf("entry at offset %d overruns blob", pos))
	}
	key = t.blob[start : start+keyLen]
	data = t.blob[start+keyLen : start+keyLen+dataLen]
	return key, data, start + keyLen + dataLen, nil
}
