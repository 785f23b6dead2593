package version

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/garden-io/garden-core/pkg/gardenerr"
	"github.com/garden-io/garden-core/pkg/task"
)

// entry is the on-disk JSON shape for one cached task result.
type entry struct {
	Result   json.RawMessage `json:"result"`
	StoredAt time.Time       `json:"storedAt"`
}

// Cache is the on-disk result cache keyed by (kind, name, version, mode).
// It is consulted by plugin handlers, not the solver, so each handler can
// decide for itself whether a cached result still applies.
type Cache struct {
	baseDir string
	ttl     time.Duration
}

// DefaultTTL is used when NewCache is given a zero ttl.
const DefaultTTL = 24 * time.Hour

func NewCache(baseDir string, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Cache{baseDir: baseDir, ttl: ttl}
}

// DefaultCacheDir returns "<projectRoot>/.garden/cache", the conventional
// location for the per-project result cache.
func DefaultCacheDir(projectRoot string) string {
	return filepath.Join(projectRoot, ".garden", "cache")
}

func (c *Cache) path(key task.CacheKey) string {
	return filepath.Join(c.baseDir, string(key.Kind), key.Name, key.Mode, key.Version+".json")
}

// Get returns the cached result for key, ok=false if absent, expired (and
// lazily removed), or corrupt.
func (c *Cache) Get(key task.CacheKey, out any) (bool, error) {
	p := c.path(key)
	b, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, gardenerr.Wrap(gardenerr.KindFilesystem, err, "reading cache entry").At(gardenerr.Location{File: p})
	}

	var e entry
	if err := json.Unmarshal(b, &e); err != nil {
		_ = os.Remove(p)
		return false, nil
	}
	if time.Since(e.StoredAt) > c.ttl {
		_ = os.Remove(p)
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(e.Result, out); err != nil {
			return false, gardenerr.Wrap(gardenerr.KindPlugin, err, "decoding cached result").At(gardenerr.Location{File: p})
		}
	}
	return true, nil
}

// Set stores result under key, overwriting any existing entry.
func (c *Cache) Set(key task.CacheKey, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindPlugin, err, "encoding result for cache")
	}
	e := entry{Result: raw, StoredAt: time.Now()}
	b, err := json.Marshal(e)
	if err != nil {
		return gardenerr.Wrap(gardenerr.KindPlugin, err, "encoding cache entry")
	}

	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "creating cache directory").At(gardenerr.Location{File: filepath.Dir(p)})
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "writing cache entry").At(gardenerr.Location{File: tmp})
	}
	if err := os.Rename(tmp, p); err != nil {
		return gardenerr.Wrap(gardenerr.KindFilesystem, err, "installing cache entry").At(gardenerr.Location{File: p})
	}
	return nil
}

// GC walks the cache directory and removes every entry older than the
// configured TTL. It is lazy, not scheduled — callers invoke it
// opportunistically (e.g. once per CLI invocation) per "entries...
// are garbage-collected lazily".
func (c *Cache) GC() (removed int, err error) {
	walkErr := filepath.WalkDir(c.baseDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".json" {
			return nil
		}
		b, readErr := os.ReadFile(p)
		if readErr != nil {
			return nil
		}
		var e entry
		if jsonErr := json.Unmarshal(b, &e); jsonErr != nil {
			_ = os.Remove(p)
			removed++
			return nil
		}
		if time.Since(e.StoredAt) > c.ttl {
			_ = os.Remove(p)
			removed++
		}
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return removed, gardenerr.Wrap(gardenerr.KindFilesystem, walkErr, "garbage-collecting cache")
	}
	return removed, nil
}
