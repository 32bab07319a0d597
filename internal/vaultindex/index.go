// Package vaultindex is a local implementation of the host metadata-index
// and vault contracts, used by the CLI harness and integration tests: a
// sqlite-persisted frontmatter cache over a directory of markdown notes,
// kept live by a filesystem watcher.
package vaultindex

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
)

// Index implements host.MetadataIndex and host.Vault over a vault directory.
type Index struct {
	root string
	db   *sql.DB
	log  zerolog.Logger

	mu         sync.Mutex
	ready      bool
	readySubs  []func()
	changeSubs []func(host.MetadataEvent)

	watcher *watcher
}

var (
	_ host.MetadataIndex = (*Index)(nil)
	_ host.Vault         = (*Index)(nil)
)

// Open prepares an index over a vault directory, backed by a sqlite cache
// at dbPath. No scanning happens until Start.
func Open(root, dbPath string, log zerolog.Logger) (*Index, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vaultindex: vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vaultindex: vault root %s is not a directory", root)
	}

	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &Index{
		root: root,
		db:   db,
		log:  log.With().Str("component", "vaultindex").Logger(),
	}, nil
}

// Start runs the initial scan, marks the index ready, and begins watching
// the vault for changes. Change events are never emitted before ready.
func (ix *Index) Start(ctx context.Context) error {
	if err := ix.scan(ctx); err != nil {
		return err
	}

	w, err := newWatcher(ix, ix.log)
	if err != nil {
		return err
	}
	ix.watcher = w

	ix.mu.Lock()
	ix.ready = true
	subs := make([]func(), len(ix.readySubs))
	copy(subs, ix.readySubs)
	ix.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn()
		}
	}

	w.run()
	ix.log.Info().Msg("index ready")
	return nil
}

// Close stops the watcher and closes the cache database.
func (ix *Index) Close() error {
	if ix.watcher != nil {
		ix.watcher.stop()
	}
	return ix.db.Close()
}

// scan walks the vault and reindexes every markdown note, in bounded
// parallel. Unchanged notes (checksum match) are skipped.
func (ix *Index) scan(ctx context.Context) error {
	var paths []string
	err := filepath.WalkDir(ix.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != ix.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".md") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("vaultindex: walk vault: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	recs := make(chan record, len(paths))
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := ix.buildRecord(p)
			if err != nil {
				// One unreadable note must not fail the scan.
				ix.log.Warn().Err(err).Str("file", p).Msg("note skipped")
				return nil
			}
			recs <- rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(recs)

	// Writes stay on one goroutine: the cache is modest and sqlite
	// prefers a single writer.
	for rec := range recs {
		if sum, ok := ix.checksumOf(rec.path); ok && sum == rec.checksum {
			continue
		}
		if err := ix.upsertRecord(rec); err != nil {
			return err
		}
	}

	ix.log.Debug().Int("notes", len(paths)).Msg("vault scanned")
	return nil
}

// buildRecord parses one note into its cache record.
func (ix *Index) buildRecord(absPath string) (record, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return record{}, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return record{}, err
	}

	rel, err := ix.relPath(absPath)
	if err != nil {
		return record{}, err
	}

	content := string(data)
	fm, _, err := note.ExtractFrontmatter(content)
	if err != nil {
		return record{}, err
	}
	if fm == nil {
		fm = map[string]any{}
	}

	return record{
		path:        rel,
		folder:      folderOf(rel),
		checksum:    strconv.FormatUint(xxhash.Sum64String(content), 16),
		frontmatter: fm,
		tags:        note.Tags(fm),
		mtime:       info.ModTime(),
	}, nil
}

func (ix *Index) relPath(absPath string) (string, error) {
	rel, err := filepath.Rel(ix.root, absPath)
	if err != nil {
		return "", fmt.Errorf("vaultindex: %s outside vault: %w", absPath, err)
	}
	return filepath.ToSlash(rel), nil
}

func folderOf(rel string) string {
	dir := filepath.ToSlash(filepath.Dir(rel))
	return dir
}

// OnIndexReady implements host.MetadataIndex. Subscribing after ready fires
// immediately.
func (ix *Index) OnIndexReady(fn func()) (cancel func()) {
	ix.mu.Lock()
	if ix.ready {
		ix.mu.Unlock()
		fn()
		return func() {}
	}
	ix.readySubs = append(ix.readySubs, fn)
	idx := len(ix.readySubs) - 1
	ix.mu.Unlock()

	return func() {
		ix.mu.Lock()
		if idx < len(ix.readySubs) {
			ix.readySubs[idx] = nil
		}
		ix.mu.Unlock()
	}
}

// OnMetadataChange implements host.MetadataIndex.
func (ix *Index) OnMetadataChange(fn func(host.MetadataEvent)) (cancel func()) {
	ix.mu.Lock()
	ix.changeSubs = append(ix.changeSubs, fn)
	idx := len(ix.changeSubs) - 1
	ix.mu.Unlock()

	return func() {
		ix.mu.Lock()
		if idx < len(ix.changeSubs) {
			ix.changeSubs[idx] = nil
		}
		ix.mu.Unlock()
	}
}

func (ix *Index) emit(evt host.MetadataEvent) {
	ix.mu.Lock()
	if !ix.ready {
		ix.mu.Unlock()
		return
	}
	subs := make([]func(host.MetadataEvent), len(ix.changeSubs))
	copy(subs, ix.changeSubs)
	ix.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(evt)
		}
	}
}

// FileMetadata implements host.MetadataIndex.
func (ix *Index) FileMetadata(path string) (map[string]any, error) {
	ix.mu.Lock()
	ready := ix.ready
	ix.mu.Unlock()
	if !ready {
		return nil, host.ErrIndexNotReady
	}
	return ix.frontmatterOf(path)
}

// NotesIn implements host.MetadataIndex.
func (ix *Index) NotesIn(folder string) ([]note.SourceNote, error) {
	ix.mu.Lock()
	ready := ix.ready
	ix.mu.Unlock()
	if !ready {
		return nil, host.ErrIndexNotReady
	}
	return ix.notesInFolder(folder)
}

// AllNotes lists every indexed note. CLI-only; not part of the host
// contract.
func (ix *Index) AllNotes() ([]note.SourceNote, error) {
	ix.mu.Lock()
	ready := ix.ready
	ix.mu.Unlock()
	if !ready {
		return nil, host.ErrIndexNotReady
	}
	return ix.queryNotes(`ORDER BY path`)
}

// NotesTagged implements host.MetadataIndex.
func (ix *Index) NotesTagged(tag string) ([]note.SourceNote, error) {
	ix.mu.Lock()
	ready := ix.ready
	ix.mu.Unlock()
	if !ready {
		return nil, host.ErrIndexNotReady
	}
	return ix.notesWithTag(tag)
}

// ReadFile implements host.Vault with vault-relative paths.
func (ix *Index) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(path)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateFile implements host.Vault. Creating over an existing note fails.
func (ix *Index) CreateFile(path, content string) error {
	abs := filepath.Join(ix.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("vaultindex: create %s: %w", path, err)
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("vaultindex: create %s: %w", path, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("vaultindex: write %s: %w", path, err)
	}
	return f.Close()
}

// reindexFile re-parses one note after a watcher event. It reports whether
// the cached record actually changed.
func (ix *Index) reindexFile(absPath string) (changed bool, err error) {
	rec, err := ix.buildRecord(absPath)
	if err != nil {
		return false, err
	}
	if sum, ok := ix.checksumOf(rec.path); ok && sum == rec.checksum {
		return false, nil
	}
	if err := ix.upsertRecord(rec); err != nil {
		return false, err
	}
	return true, nil
}
