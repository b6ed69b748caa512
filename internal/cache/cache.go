package cache

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Errors shared by the cache levels.
var (
	// ErrTooLarge is returned when a value exceeds a level's capacity.
	ErrTooLarge = errors.New("value too large for cache")
)

// Config sizes the cache. Audio dominates the entries (a minute of
// mono PCM is ~2.6 MB raw), so the defaults lean generous on disk and
// modest in memory.
type Config struct {
	Dir         string        `yaml:"dir" env:"FABLECAST_CACHE_DIR"`
	MemoryBytes int64         `yaml:"memory_bytes" env:"FABLECAST_CACHE_MEMORY" envDefault:"67108864"`
	DiskBytes   int64         `yaml:"disk_bytes" env:"FABLECAST_CACHE_DISK" envDefault:"536870912"`
	TTL         time.Duration `yaml:"ttl" env:"FABLECAST_CACHE_TTL" envDefault:"168h"`
	// Compression is the zstd level for disk entries; 0 disables.
	Compression int `yaml:"compression" env:"FABLECAST_CACHE_COMPRESSION" envDefault:"3"`
}

// DefaultConfig returns the stock cache configuration with the cache
// directory under the user cache root.
func DefaultConfig() Config {
	cfg := Config{
		MemoryBytes: 64 << 20,
		DiskBytes:   512 << 20,
		TTL:         7 * 24 * time.Hour,
		Compression: 3,
	}
	if root, err := os.UserCacheDir(); err == nil {
		cfg.Dir = filepath.Join(root, "fablecast")
	}
	return cfg
}

// Stats reports one level's counters.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate is hits over lookups, 0 when no lookups happened.
func (s Stats) HitRate() float64 {
	lookups := s.Hits + s.Misses
	if lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(lookups)
}
