package vaultindex

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/averonn/folderbase/internal/host"
)

const (
	debounceDelay = 100 * time.Millisecond
	// renamePairWindow is how long a removal's checksum is remembered so
	// a following create of identical content is reported as a rename.
	renamePairWindow = 500 * time.Millisecond
)

// watcher turns raw filesystem events into metadata events, debouncing
// rapid writes per path and pairing remove+create into renames.
type watcher struct {
	ix  *Index
	fsw *fsnotify.Watcher
	log zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	removed map[string]removedNote // checksum -> note, for rename pairing
	stopped bool
	done    chan struct{}
}

type removedNote struct {
	path string
	at   time.Time
}

func newWatcher(ix *Index, log zerolog.Logger) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{
		ix:      ix,
		fsw:     fsw,
		log:     log.With().Str("component", "vaultwatch").Logger(),
		timers:  make(map[string]*time.Timer),
		removed: make(map[string]removedNote),
		done:    make(chan struct{}),
	}

	// Watch every directory in the vault; fsnotify is not recursive.
	err = filepath.WalkDir(ix.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != ix.root {
			return filepath.SkipDir
		}
		return fsw.Add(p)
	})
	if err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *watcher) run() {
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("watch error")
			}
		}
	}()
}

func (w *watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	_ = w.fsw.Close()
	<-w.done
}

func (w *watcher) handle(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.handleRemove(event.Name)
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		w.debounce(event.Name)
	}
}

// debounce coalesces the write bursts editors produce into one reindex per
// path.
func (w *watcher) debounce(absPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[absPath]; ok {
		t.Stop()
	}
	w.timers[absPath] = time.AfterFunc(debounceDelay, func() {
		w.mu.Lock()
		delete(w.timers, absPath)
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped {
			w.handleUpsert(absPath)
		}
	})
}

func (w *watcher) handleUpsert(absPath string) {
	rel, err := w.ix.relPath(absPath)
	if err != nil {
		return
	}

	changed, err := w.ix.reindexFile(absPath)
	if err != nil {
		w.log.Warn().Err(err).Str("file", rel).Msg("reindex failed")
		return
	}
	if !changed {
		return
	}

	// A create of content we just saw removed is a rename.
	if rec, recErr := w.ix.buildRecord(absPath); recErr == nil {
		w.mu.Lock()
		old, ok := w.removed[rec.checksum]
		if ok {
			delete(w.removed, rec.checksum)
		}
		w.mu.Unlock()
		if ok && time.Since(old.at) <= renamePairWindow && old.path != rel {
			_ = w.ix.deleteRecord(old.path)
			w.ix.emit(host.MetadataEvent{Type: host.MetadataRenamed, Path: rel, OldPath: old.path})
			return
		}
	}

	w.ix.emit(host.MetadataEvent{Type: host.MetadataChanged, Path: rel})
}

func (w *watcher) handleRemove(absPath string) {
	rel, err := w.ix.relPath(absPath)
	if err != nil {
		return
	}

	if sum, ok := w.ix.checksumOf(rel); ok {
		w.mu.Lock()
		w.removed[sum] = removedNote{path: rel, at: time.Now()}
		w.mu.Unlock()
	}

	// Deletion is reported after the pairing window so a rename does not
	// surface as delete+change.
	time.AfterFunc(renamePairWindow, func() {
		w.mu.Lock()
		stopped := w.stopped
		var stale bool
		for sum, rn := range w.removed {
			if rn.path == rel {
				delete(w.removed, sum)
				stale = true
				break
			}
		}
		w.mu.Unlock()
		if stopped || !stale {
			// Already consumed by a rename pairing.
			return
		}
		if err := w.ix.deleteRecord(rel); err != nil {
			w.log.Warn().Err(err).Str("file", rel).Msg("delete failed")
			return
		}
		w.ix.emit(host.MetadataEvent{Type: host.MetadataDeleted, Path: rel})
	})
}
