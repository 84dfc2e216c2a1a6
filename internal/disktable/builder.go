// Package disktable implements the serialized bucketed hash table used by
// every lookup block: a builder that emits the table once, and a reader
// that resolves point lookups directly against the serialized bytes.
//
// Blob layout, all integers little-endian, offsets relative to the blob:
//
//	uint32 0                          reserved; keeps offset 0 invalid
//	entries                           per entry: uint16 keyLen, uint16
//	                                  dataLen, key bytes, data bytes,
//	                                  grouped contiguously per bucket
//	bucket table at root offset R     uint32 bucketCount (power of two),
//	                                  uint32 entryCount, then per bucket
//	                                  uint32 firstEntryOffset and
//	                                  uint32 entryCount (0,0 if empty)
//	uint32 R                          trailing root offset
package disktable

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

type entry struct {
	key  []byte
	data []byte
}

// Builder accumulates key/value pairs and serializes them once. Keys are
// opaque encoded bytes; equal keys must be inserted at most once.
type Builder struct {
	entries []entry
}

// NewBuilder creates an empty table builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Insert records one encoded key/value pair.
func (b *Builder) Insert(key, data []byte) {
	b.entries = append(b.entries, entry{key: key, data: data})
}

// Len returns the number of inserted entries.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Emit serializes the table. The output is deterministic for a given
// insertion order.
func (b *Builder) Emit() []byte {
	bucketCount := bucketCountFor(len(b.entries))
	mask := uint32(bucketCount - 1)

	buckets := make([][]entry, bucketCount)
	for _, e := range b.entries {
		i := Hash(e.key) & mask
		buckets[i] = append(buckets[i], e)
	}

	// Reserve offset 0 with a four-byte zero so no entry or bucket table
	// can sit there.
	blob := make([]byte, 4, 64+32*len(b.entries))

	type bucketRef struct {
		offset uint32
		count  uint32
	}
	refs := make([]bucketRef, bucketCount)
	for i, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		refs[i] = bucketRef{offset: uint32(len(blob)), count: uint32(len(bucket))}
		for _, e := range bucket {
			blob = binary.LittleEndian.AppendUint16(blob, uint16(len(e.key)))
			blob = binary.LittleEndian.AppendUint16(blob, uint16(len(e.data)))
			blob = append(blob, e.key...)
			blob = append(blob, e.data...)
		}
	}

	root := uint32(len(blob))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(bucketCount))
	blob = binary.LittleEndian.AppendUint32(blob, uint32(len(b.entries)))
	for _, ref := range refs {
		blob = binary.LittleEndian.AppendUint32(blob, ref.offset)
		blob = binary.LittleEndian.AppendUint32(blob, ref.count)
	}
	blob = binary.LittleEndian.AppendUint32(blob, root)
	return blob
}

// Hash is the table hash function applied to encoded key bytes. The
// reader must apply the identical function, so it is fixed here.
func Hash(key []byte) uint32 {
	return murmur3.Sum32(key)
}

// bucketCountFor picks the bucket table size for n entries: the smallest
// power of two that keeps the average chain at or below two entries.
func bucketCountFor(n int) int {
	count := 1
	for count*2 < n {
		count *= 2
	}
	return count
}
