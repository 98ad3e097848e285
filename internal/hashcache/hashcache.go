// Package hashcache provides an optional persistent cache for Tier2
// streaming digests, so repeated scans of a mostly-unchanged tree skip
// re-hashing multi-gigabyte files. Grounded on dupedog's internal/cache
// (open existing read-only DB + new write-only DB, atomic rename on
// Close, self-cleaning: only entries looked up this run survive).
package hashcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/bioscan/internal/bioscan"
)

const bucketName = "stream_sha256"

// Cache persists full-file SHA-256 digests keyed by (path, size, mtime_ns).
// Any change to those invalidates the entry.
type Cache struct {
	readDB  *bolt.DB
	writeDB *bolt.DB
	path    string
	enabled bool
}

// Open opens the existing cache at path (if any) for reading, and creates
// path+".new" for writing. Open("") returns a disabled cache whose Lookup/
// Store are no-ops.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}

	if _, err := os.Stat(path); err == nil {
		readDB, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: true, Timeout: time.Second})
		if err == nil {
			c.readDB = readDB
		}
	}

	writeDB, err := bolt.Open(path+".new", 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}
	c.writeDB = writeDB

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces the old cache with
// the new one, provided the write database closed cleanly.
func (c *Cache) Close() error {
	var firstErr error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if err := os.Rename(c.path+".new", c.path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func makeKey(fm bioscan.FileMeta) []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(fm.Path)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.BigEndian, fm.Size)
	_ = binary.Write(buf, binary.BigEndian, fm.ModTimeNs)
	return buf.Bytes()
}

// Lookup returns the cached hex-encoded SHA-256 digest for fm, or "" if
// absent. On a hit, the entry is copied into the write database
// (self-cleaning: only entries used this run survive Close).
func (c *Cache) Lookup(fm bioscan.FileMeta) (string, error) {
	if !c.enabled || c.readDB == nil {
		return "", nil
	}

	key := makeKey(fm)
	var hash string
	err := c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			hash = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("cache lookup: %w", err)
	}
	if hash == "" {
		return "", nil
	}
	_ = c.Store(fm, hash)
	return hash, nil
}

// Store saves fm's hex-encoded digest into the write database.
func (c *Cache) Store(fm bioscan.FileMeta, hash string) error {
	if !c.enabled || c.writeDB == nil || hash == "" {
		return nil
	}
	err := c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(fm), []byte(hash))
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
