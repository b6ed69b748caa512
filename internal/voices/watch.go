package voices

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// debounce coalesces the event bursts a single download produces.
const debounce = 300 * time.Millisecond

// Watcher re-scans the voices directory when models appear or
// disappear and delivers fresh catalogs on Catalogs.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	Catalogs chan []Voice
}

// NewWatcher builds a watcher for dir. The directory must exist before
// watching starts.
func NewWatcher(dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	log.Debug("watching voices dir", "dir", dir)
	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		Catalogs: make(chan []Voice, 1),
	}, nil
}

// Run delivers catalogs until the context ends. The current catalog is
// sent immediately so consumers do not need a separate initial scan.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.Catalogs)
	w.emit(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".onnx") {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug("voices dir changed", "file", event.Name, "op", event.Op)
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				timer.Reset(debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.emit(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Debug("voices watcher error", "dir", w.dir, "err", err)
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) emit(ctx context.Context) {
	catalog, err := Scan(w.dir)
	if err != nil {
		log.Warn("voices rescan failed", "dir", w.dir, "err", err)
		return
	}
	// Replace any undelivered catalog so a slow consumer always sees
	// the newest state.
	select {
	case <-w.Catalogs:
	default:
	}
	select {
	case w.Catalogs <- catalog:
	case <-ctx.Done():
	}
}
