package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "index.gob"

// Disk is the second cache level: files under a directory, zstd
// compressed when that pays off, with a gob index for lookups.
type Disk struct {
	mu       sync.Mutex
	dir      string
	capacity int64
	size     int64
	index    map[string]*diskEntry
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	stats    Stats
}

type diskEntry struct {
	Key        string
	File       string // relative to dir
	Size       int64  // bytes on disk
	Compressed bool
	AddedAt    time.Time
	LastAccess time.Time
}

// NewDisk opens (or creates) a disk cache in dir. level is the zstd
// compression level; 0 stores entries raw.
func NewDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if level > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		d.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
	}

	// A missing or corrupt index just means starting cold.
	if err := d.loadIndex(); err != nil {
		d.index = make(map[string]*diskEntry)
	}
	for _, entry := range d.index {
		d.size += entry.Size
	}
	return d, nil
}

// Get reads a value back from disk. Entries whose file vanished or no
// longer decompresses are dropped from the index.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, entry.File))
	if err != nil {
		d.drop(entry)
		d.stats.Misses++
		return nil, false
	}
	if entry.Compressed {
		if d.decoder == nil {
			d.drop(entry)
			d.stats.Misses++
			return nil, false
		}
		data, err = d.decoder.DecodeAll(data, nil)
		if err != nil {
			d.drop(entry)
			d.stats.Misses++
			return nil, false
		}
	}

	entry.LastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put writes a value to disk, compressing when it helps.
func (d *Disk) Put(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	payload := value
	compressed := false
	// Tiny values gain nothing from compression.
	if d.encoder != nil && len(value) > 1024 {
		if c := d.encoder.EncodeAll(value, nil); len(c) < len(value) {
			payload = c
			compressed = true
		}
	}

	size := int64(len(payload))
	if size > d.capacity {
		return ErrTooLarge
	}

	if old, ok := d.index[key]; ok {
		d.drop(old)
	}
	for d.size+size > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	file := fileNameFor(key)
	if err := writeAtomic(filepath.Join(d.dir, file), payload); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		Key:        key,
		File:       file,
		Size:       size,
		Compressed: compressed,
		AddedAt:    now,
		LastAccess: now,
	}
	d.size += size
	return nil
}

// Delete removes key and its file.
func (d *Disk) Delete(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok := d.index[key]; ok {
		d.drop(entry)
	}
}

// Clear removes every entry and persists the empty index.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range d.index {
		os.Remove(filepath.Join(d.dir, entry.File))
	}
	d.index = make(map[string]*diskEntry)
	d.size = 0
	return d.saveIndex()
}

// Sweep drops entries older than maxAge.
func (d *Disk) Sweep(maxAge time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	swept := 0
	for _, entry := range d.index {
		if entry.AddedAt.Before(cutoff) {
			d.drop(entry)
			swept++
		}
	}
	return swept
}

// Stats returns a snapshot of the counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Size = d.size
	s.Items = len(d.index)
	return s
}

// Close persists the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveIndex()
}

// drop, evictOldest, loadIndex and saveIndex require the lock.

func (d *Disk) drop(entry *diskEntry) {
	os.Remove(filepath.Join(d.dir, entry.File))
	d.size -= entry.Size
	delete(d.index, entry.Key)
}

func (d *Disk) evictOldest() {
	var oldest *diskEntry
	for _, entry := range d.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest != nil {
		d.drop(oldest)
		d.stats.Evictions++
	}
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(&d.index)
}

func (d *Disk) saveIndex() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func fileNameFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".bin"
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
