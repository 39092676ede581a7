package cache

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const fileSuffix = ".entry"

// FileCache stores each entry in its own file below a directory.
type FileCache struct {
	dir string
}

// NewFileCache creates a FileCache in dir, creating the directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

type fileEntry struct {
	Data      []byte    `msgpack:"data"`
	ExpiresAt time.Time `msgpack:"expires_at"`
}

func (e fileEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get implements Cache. Corrupt and expired entries are removed and
// reported as misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry fileEntry
	if err := msgpack.Unmarshal(raw, &entry); err != nil || entry.expired(time.Now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return entry.Data, true, nil
}

// Set implements Cache. The entry is written to a temporary file and renamed
// so that concurrent readers never see a partial entry.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := fileEntry{Data: data}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	raw, err := msgpack.Marshal(entry)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete implements Cache.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *FileCache) Close() error {
	return nil
}

// Stats describes the contents of a FileCache.
type Stats struct {
	Entries int
	Expired int
	Bytes   int64
}

// Stats walks the cache directory.
func (c *FileCache) Stats() (Stats, error) {
	var st Stats
	now := time.Now()
	err := c.walk(func(path string, info fs.FileInfo) {
		st.Entries++
		st.Bytes += info.Size()
		raw, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var entry fileEntry
		if msgpack.Unmarshal(raw, &entry) != nil || entry.expired(now) {
			st.Expired++
		}
	})
	return st, err
}

// Clear removes every entry and returns how many were removed. Only expired
// entries are removed when expiredOnly is set.
func (c *FileCache) Clear(expiredOnly bool) (int, error) {
	count := 0
	now := time.Now()
	err := c.walk(func(path string, info fs.FileInfo) {
		if expiredOnly {
			raw, err := os.ReadFile(path)
			if err != nil {
				return
			}
			var entry fileEntry
			if msgpack.Unmarshal(raw, &entry) == nil && !entry.expired(now) {
				return
			}
		}
		if os.Remove(path) == nil {
			count++
		}
	})
	if err != nil {
		return count, err
	}

	// Drop shard directories that are now empty.
	shards, _ := os.ReadDir(c.dir)
	for _, s := range shards {
		if s.IsDir() {
			_ = os.Remove(filepath.Join(c.dir, s.Name()))
		}
	}
	return count, nil
}

func (c *FileCache) walk(fn func(path string, info fs.FileInfo)) error {
	return filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == c.dir {
				return err
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, fileSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fn(path, info)
		return nil
	})
}

// path shards entries by the first two hex characters of the key hash.
func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+fileSuffix)
}

var _ Cache = (*FileCache)(nil)
