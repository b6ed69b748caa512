package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const sweepInterval = time.Hour

// Cache fronts the disk level with the memory level. Reads promote
// disk hits into memory; writes land in both. It satisfies the store
// interfaces the speech and illustrate packages consume.
type Cache struct {
	memory *Memory
	disk   *Disk
	ttl    time.Duration

	stopSweep chan struct{}
	sweepWG   sync.WaitGroup
	closeOnce sync.Once
}

// New opens a two-level cache per cfg and starts the TTL sweeper.
func New(cfg Config) (*Cache, error) {
	disk, err := NewDisk(cfg.Dir, cfg.DiskBytes, cfg.Compression)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		memory:    NewMemory(cfg.MemoryBytes),
		disk:      disk,
		ttl:       cfg.TTL,
		stopSweep: make(chan struct{}),
	}
	if c.ttl > 0 {
		c.sweepWG.Add(1)
		go c.sweepLoop()
	}
	return c, nil
}

// Get looks in memory, then disk. A disk hit is promoted so the next
// lookup stays off the filesystem.
func (c *Cache) Get(key string) ([]byte, bool) {
	if data, ok := c.memory.Get(key); ok {
		return data, true
	}
	data, ok := c.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := c.memory.Put(key, data); err != nil {
		log.Debug("cache promotion skipped", "key", key, "err", err)
	}
	return data, true
}

// Put stores in both levels. A value too large for memory can still
// live on disk.
func (c *Cache) Put(key string, value []byte) error {
	if err := c.memory.Put(key, value); err != nil && err != ErrTooLarge {
		return err
	}
	return c.disk.Put(key, value)
}

// Delete removes key from both levels.
func (c *Cache) Delete(key string) {
	c.memory.Delete(key)
	c.disk.Delete(key)
}

// Clear empties both levels.
func (c *Cache) Clear() error {
	c.memory.Clear()
	return c.disk.Clear()
}

// Stats returns per-level snapshots.
func (c *Cache) Stats() (memory, disk Stats) {
	return c.memory.Stats(), c.disk.Stats()
}

// Close stops the sweeper and persists the disk index.
func (c *Cache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stopSweep)
		c.sweepWG.Wait()
		err = c.disk.Close()
	})
	return err
}

func (c *Cache) sweepLoop() {
	defer c.sweepWG.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			m := c.memory.Sweep(c.ttl)
			d := c.disk.Sweep(c.ttl)
			if m+d > 0 {
				log.Debug("cache sweep", "memory", m, "disk", d)
			}
		}
	}
}
