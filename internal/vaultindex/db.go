package vaultindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite

	"github.com/averonn/folderbase/internal/note"
)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	path        TEXT PRIMARY KEY,
	folder      TEXT NOT NULL,
	checksum    TEXT NOT NULL,
	frontmatter TEXT NOT NULL,
	tags        TEXT NOT NULL,
	mtime       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notes_folder ON notes(folder);
`

// openDB opens (creating if needed) the frontmatter cache database.
func openDB(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("vaultindex: database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("vaultindex: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("vaultindex: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vaultindex: connect: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("vaultindex: init schema: %w", err)
	}
	return db, nil
}

type record struct {
	path        string
	folder      string
	checksum    string
	frontmatter map[string]any
	tags        []string
	mtime       time.Time
}

func (ix *Index) upsertRecord(rec record) error {
	fm, err := json.Marshal(rec.frontmatter)
	if err != nil {
		return fmt.Errorf("vaultindex: encode frontmatter for %s: %w", rec.path, err)
	}
	tags, err := json.Marshal(rec.tags)
	if err != nil {
		return fmt.Errorf("vaultindex: encode tags for %s: %w", rec.path, err)
	}

	_, err = ix.db.Exec(`
		INSERT INTO notes (path, folder, checksum, frontmatter, tags, mtime)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			folder = excluded.folder,
			checksum = excluded.checksum,
			frontmatter = excluded.frontmatter,
			tags = excluded.tags,
			mtime = excluded.mtime`,
		rec.path, rec.folder, rec.checksum, string(fm), string(tags), rec.mtime.Unix())
	if err != nil {
		return fmt.Errorf("vaultindex: upsert %s: %w", rec.path, err)
	}
	return nil
}

func (ix *Index) deleteRecord(path string) error {
	if _, err := ix.db.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("vaultindex: delete %s: %w", path, err)
	}
	return nil
}

func (ix *Index) checksumOf(path string) (string, bool) {
	var sum string
	err := ix.db.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&sum)
	if err != nil {
		return "", false
	}
	return sum, true
}

func (ix *Index) frontmatterOf(path string) (map[string]any, error) {
	var raw string
	err := ix.db.QueryRow(`SELECT frontmatter FROM notes WHERE path = ?`, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("vaultindex: %s not indexed", path)
	}
	if err != nil {
		return nil, fmt.Errorf("vaultindex: lookup %s: %w", path, err)
	}

	var fm map[string]any
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("vaultindex: decode frontmatter of %s: %w", path, err)
	}
	return fm, nil
}

func (ix *Index) queryNotes(where string, args ...any) ([]note.SourceNote, error) {
	rows, err := ix.db.Query(`SELECT path, frontmatter, mtime FROM notes `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("vaultindex: query notes: %w", err)
	}
	defer rows.Close()

	var out []note.SourceNote
	for rows.Next() {
		var (
			path  string
			raw   string
			mtime int64
		)
		if err := rows.Scan(&path, &raw, &mtime); err != nil {
			return nil, fmt.Errorf("vaultindex: scan note: %w", err)
		}
		var fm map[string]any
		if err := json.Unmarshal([]byte(raw), &fm); err != nil {
			return nil, fmt.Errorf("vaultindex: decode frontmatter of %s: %w", path, err)
		}
		out = append(out, note.SourceNote{
			Path:        path,
			Frontmatter: fm,
			ModTime:     time.Unix(mtime, 0),
		})
	}
	return out, rows.Err()
}

// notesInFolder lists notes under a folder, recursively. The vault root is
// addressed as "." and matches only top-level notes, mirroring how database
// documents default their source to their own directory.
func (ix *Index) notesInFolder(folder string) ([]note.SourceNote, error) {
	if folder == "" || folder == "." {
		return ix.queryNotes(`WHERE instr(path, '/') = 0 ORDER BY path`)
	}
	folder = strings.TrimSuffix(folder, "/")
	return ix.queryNotes(`WHERE path LIKE ? ORDER BY path`, folder+"/%")
}

func (ix *Index) notesWithTag(tag string) ([]note.SourceNote, error) {
	all, err := ix.queryNotes(`ORDER BY path`)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, n := range all {
		for _, t := range note.Tags(n.Frontmatter) {
			if t == tag {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}
