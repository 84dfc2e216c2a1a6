// Package cache stores compiled notes containers on disk so repeated
// builds can reuse them instead of re-serializing. Entries are
// snappy-compressed, keyed by module name plus a content fingerprint,
// and evicted oldest-first when the cache exceeds its size cap.
package cache

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"
	"github.com/google/uuid"

	"github.com/annostore/annostore/internal/bloom"
	"github.com/annostore/annostore/internal/errors"
)

// entryExt is the file extension for cached compiled notes.
const entryExt = ".notesc"

type entry struct {
	path       string
	size       int64
	lastAccess time.Time
}

// Cache is a size-capped directory of compressed compiled-notes blobs.
// Safe for concurrent use.
type Cache struct {
	dir      string
	maxBytes int64

	mu         sync.Mutex
	entries    map[string]*entry
	totalBytes int64

	// filter answers definite misses without a disk probe. Keys only
	// accumulate; a rebuilt cache reseeds it from the directory scan.
	filter *bloom.Filter

	evictChan chan struct{}
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New opens (or creates) a cache directory and rebuilds the in-memory
// index from its contents.
func New(dir string, maxBytes int64) (*Cache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("maxBytes must be positive, got %d", maxBytes)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	c := &Cache{
		dir:       dir,
		maxBytes:  maxBytes,
		entries:   make(map[string]*entry),
		filter:    bloom.NewWithEstimates(4096, 0.01),
		evictChan: make(chan struct{}, 64),
		stopChan:  make(chan struct{}),
	}
	if err := c.scanExisting(); err != nil {
		return nil, fmt.Errorf("failed to scan cache dir: %w", err)
	}

	c.wg.Add(1)
	go c.evictionWorker()
	return c, nil
}

// Key derives the cache key for a module's compiled blob: the module
// name plus an xxhash64 content fingerprint.
func Key(moduleName string, blob []byte) string {
	return fmt.Sprintf("%s_%016x", moduleName, xxhash.Sum64(blob))
}

// Put stores a compiled blob and returns its cache key. The entry is
// written to a temporary file first and renamed into place, so readers
// never observe a partial entry.
func (c *Cache) Put(moduleName string, blob []byte) (string, error) {
	key := Key(moduleName, blob)
	path := filepath.Join(c.dir, key+entryExt)
	compressed := snappy.Encode(nil, blob)

	tmp := filepath.Join(c.dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return "", errors.NewCacheError(errors.CodeCacheWriteFailed,
			fmt.Sprintf("failed to write temp entry for %s", key), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.NewCacheError(errors.CodeCacheWriteFailed,
			fmt.Sprintf("failed to publish entry %s", key), err)
	}

	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		c.totalBytes -= old.size
	}
	c.entries[key] = &entry{path: path, size: int64(len(compressed)), lastAccess: time.Now()}
	c.totalBytes += int64(len(compressed))
	over := c.totalBytes > c.maxBytes
	c.mu.Unlock()

	c.filter.Add([]byte(key))
	if over {
		select {
		case c.evictChan <- struct{}{}:
		default:
		}
	}
	return key, nil
}

// Get returns the decompressed blob for a key, or ok=false on a miss.
// A cached file that fails to decompress is treated as corrupt: the
// entry is dropped and an error is returned.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	if !c.filter.Contains([]byte(key)) {
		return nil, false, nil
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		e.lastAccess = time.Now()
	}
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	compressed, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.drop(key)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	blob, err := snappy.Decode(nil, compressed)
	if err != nil {
		c.drop(key)
		os.Remove(e.path)
		return nil, false, errors.NewCacheError(errors.CodeCorruptEntry,
			fmt.Sprintf("cache entry %s failed to decompress", key), err)
	}
	return blob, true, nil
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SizeBytes returns the total compressed size of all indexed entries.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// Close stops the eviction worker. The cache directory stays valid for
// a later New.
func (c *Cache) Close() {
	close(c.stopChan)
	c.wg.Wait()
}

func (c *Cache) drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.totalBytes -= e.size
		delete(c.entries, key)
	}
}

// scanExisting rebuilds the index and bloom filter from entries already
// on disk.
func (c *Cache) scanExisting() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, entryExt) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, entryExt)
		c.entries[key] = &entry{
			path:       filepath.Join(c.dir, name),
			size:       info.Size(),
			lastAccess: info.ModTime(),
		}
		c.totalBytes += info.Size()
		c.filter.Add([]byte(key))
	}
	return nil
}

// evictionWorker drops least-recently-used entries until the cache is
// back under its size cap.
func (c *Cache) evictionWorker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopChan:
			return
		case <-c.evictChan:
			c.evictLRU()
		}
	}
}

func (c *Cache) evictLRU() {
	c.mu.Lock()
	type victim struct {
		key string
		e   *entry
	}
	victims := make([]victim, 0, len(c.entries))
	for key, e := range c.entries {
		victims = append(victims, victim{key: key, e: e})
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].e.lastAccess.Before(victims[j].e.lastAccess)
	})

	var evicted []victim
	for _, v := range victims {
		if c.totalBytes <= c.maxBytes {
			break
		}
		c.totalBytes -= v.e.size
		delete(c.entries, v.key)
		evicted = append(evicted, v)
	}
	c.mu.Unlock()

	for _, v := range evicted {
		if err := os.Remove(v.e.path); err != nil && !os.IsNotExist(err) {
			log.Printf("cache: failed to remove evicted entry %s: %v", v.key, err)
		}
	}
}
