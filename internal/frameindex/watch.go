package frameindex

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long after the last filesystem event the watcher waits
// before re-indexing, so a burst of frames landing on disk triggers one
// rebuild instead of dozens.
const watchSettle = 2 * time.Second

// Watch rebuilds the index whenever new FITS files appear under dir or its
// immediate subdirectories, invoking onUpdate with each rebuilt index. It
// blocks until ctx is cancelled.
func Watch(ctx context.Context, dir string, opts Options, onUpdate func(*Index)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}
	children, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.IsDir() {
			if err := watcher.Add(filepath.Join(dir, c.Name())); err != nil {
				log.Printf("frameindex: cannot watch %s: %v", c.Name(), err)
			}
		}
	}

	var settle *time.Timer
	var settleC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// New subdirectories join the watch; new frames arm the
			// settle timer.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						log.Printf("frameindex: cannot watch %s: %v", ev.Name, err)
					}
					continue
				}
			}
			if !strings.HasSuffix(ev.Name, ".fits") {
				continue
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Rename) {
				if settle == nil {
					settle = time.NewTimer(watchSettle)
					settleC = settle.C
				} else {
					settle.Reset(watchSettle)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("frameindex: watch error: %v", err)

		case <-settleC:
			settle = nil
			settleC = nil
			ix, err := Build(dir, opts)
			if err != nil {
				log.Printf("frameindex: rebuild failed: %v", err)
				continue
			}
			onUpdate(ix)
		}
	}
}
