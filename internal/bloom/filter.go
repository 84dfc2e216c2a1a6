// Package bloom provides a probabilistic key-set filter used by the
// compiled-notes cache to answer definite misses without touching disk.
// It guarantees no false negatives: if a key was added, Contains always
// returns true.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter is a fixed-size bloom filter over byte keys. Safe for
// concurrent use.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with the given number of bits and hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a filter sized for the expected number of
// keys and target false positive rate, using the standard formulas
// m = -n*ln(p)/ln(2)^2 and k = (m/n)*ln(2).
func NewWithEstimates(expectedKeys int, targetFPR float64) *Filter {
	if expectedKeys <= 0 {
		expectedKeys = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedKeys)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	numBits := int(math.Ceil(m))
	if numBits < 64 {
		numBits = 64
	}
	numHashes := int(math.Ceil(k))
	if numHashes < 1 {
		numHashes = 1
	}
	return New(numBits, numHashes)
}

// Add records a key.
func (f *Filter) Add(key []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h1, h2 := hash128(key)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
	f.count++
}

// Contains reports whether the key might have been added. False means
// the key was definitely never added.
func (f *Filter) Contains(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h1, h2 := hash128(key)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of keys added.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// hash128 computes a murmur3 128-bit hash as two 64-bit values for
// double hashing.
func hash128(key []byte) (uint64, uint64) {
	h := murmur3.New128()
	h.Write(key)
	return h.Sum128()
}
