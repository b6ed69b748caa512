package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}

	value := bytes.Repeat([]byte("speechspeech"), 500) // compressible
	if err := d.Put("k", value); err != nil {
		t.Fatal(err)
	}
	got, ok := d.Get("k")
	if !ok || !bytes.Equal(got, value) {
		t.Fatalf("Get = %d bytes, ok=%v", len(got), ok)
	}

	// Repetitive audio-like data should be stored compressed.
	if s := d.Stats(); s.Size >= int64(len(value)) {
		t.Errorf("on-disk size %d not smaller than input %d", s.Size, len(value))
	}
}

func TestDiskPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Put("k", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d2, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := d2.Get("k")
	if !ok || string(got) != "persisted" {
		t.Errorf("after reopen Get = %q, %v", got, ok)
	}
}

func TestDiskDropsEntryWhenFileVanishes(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Put("k", []byte("data")); err != nil {
		t.Fatal(err)
	}
	// Delete the backing file out from under the index.
	if err := os.Remove(filepath.Join(dir, fileNameFor("k"))); err != nil {
		t.Fatal(err)
	}

	if _, ok := d.Get("k"); ok {
		t.Error("hit for entry with missing file")
	}
	if s := d.Stats(); s.Items != 0 {
		t.Errorf("stale entry kept in index: %+v", s)
	}
}

func TestDiskEvictsLRU(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 24, 0)
	if err != nil {
		t.Fatal(err)
	}
	d.Put("a", bytes.Repeat([]byte("x"), 10))
	time.Sleep(5 * time.Millisecond)
	d.Put("b", bytes.Repeat([]byte("y"), 10))
	time.Sleep(5 * time.Millisecond)
	d.Get("a") // warm a

	d.Put("c", bytes.Repeat([]byte("z"), 10))
	if _, ok := d.Get("b"); ok {
		t.Error("b should have been evicted as coldest")
	}
	if _, ok := d.Get("a"); !ok {
		t.Error("a evicted despite recent access")
	}
}

func TestDiskSweep(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	d.Put("old", []byte("x"))
	d.index["old"].AddedAt = time.Now().Add(-2 * time.Hour)
	d.Put("new", []byte("y"))

	if swept := d.Sweep(time.Hour); swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
	if _, ok := d.Get("old"); ok {
		t.Error("old entry survived sweep")
	}
}

func TestDiskClear(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	d.Put("a", []byte("x"))
	if err := d.Clear(); err != nil {
		t.Fatal(err)
	}
	if s := d.Stats(); s.Items != 0 || s.Size != 0 {
		t.Errorf("stats after Clear = %+v", s)
	}
	// Only the index file should remain.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != indexFile {
			t.Errorf("leftover file %s after Clear", e.Name())
		}
	}
}
