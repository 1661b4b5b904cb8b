// Package cache keeps the tags of analysed files on disk so that
// unchanged files are not analysed again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"pydiatra/internal/models"
)

// Increment when the Entry layout changes.
const schemaVersion uint16 = 1

// Key identifies one analysis: the file path and content together with
// the version of the tool and of its reference data.
type Key [sha256.Size]byte

// NewKey hashes src with everything else that affects the result. The
// path is part of the key because it is part of every tag.
func NewKey(version, path string, src []byte) Key {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s\x00%s\x00", schemaVersion, version, path)
	h.Write(src)
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// Entry is what is stored per key. Only public tags are stored.
type Entry struct {
	Schema uint16
	Tags   []models.Tag
}

// Cache is a directory of msgpack files. A nil *Cache is valid and
// caches nothing. Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	dir    string
	logger *zap.Logger
}

// Open returns a cache rooted at dir, creating it if needed. An empty dir
// selects $XDG_CACHE_HOME/pydiatra or ~/.cache/pydiatra.
func Open(dir string, logger *zap.Logger) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("locating cache directory: %w", err)
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "pydiatra")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{dir: dir, logger: logger}, nil
}

func (c *Cache) pathFor(k Key) string {
	s := k.String()
	return filepath.Join(c.dir, s[:2], s+".mp")
}

// Get returns the tags stored for k.
func (c *Cache) Get(k Key) ([]models.Tag, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.pathFor(k))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("cache read failed", zap.Stringer("key", k), zap.Error(err))
		}
		return nil, false
	}
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil || e.Schema != schemaVersion {
		c.logger.Debug("ignoring stale cache entry", zap.Stringer("key", k), zap.Error(err))
		return nil, false
	}
	return e.Tags, true
}

// Put stores tags for k. The file is replaced atomically.
func (c *Cache) Put(k Key, tags []models.Tag) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(k)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := msgpack.Marshal(&Entry{Schema: schemaVersion, Tags: tags})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
