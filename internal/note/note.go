// Package note models database documents: markdown notes whose frontmatter
// carries the database marker and whose body embeds a local settings block.
package note

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// MarkerKey is the frontmatter key that marks a note as a database document.
const MarkerKey = "database-plugin"

// View types registered with the host workspace.
const (
	ViewTypeDatabase = "folderbase-view"
	ViewTypeMarkdown = "markdown"
)

// Sentinel markers bounding the local settings block inside the document body.
const (
	settingsOpen  = "<!-- folderbase:settings"
	settingsClose = "-->"
)

const frontmatterFence = "---"

// ErrNotDatabase is returned when a note lacks the database marker key.
var ErrNotDatabase = errors.New("note: missing database marker")

// Column describes one column of the grid.
type Column struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	Hidden   bool   `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Position int    `yaml:"position,omitempty" json:"position,omitempty"`
}

// SortRule orders rows by a column key.
type SortRule struct {
	Key  string `yaml:"key" json:"key"`
	Desc bool   `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// Condition is a single row filter predicate.
type Condition struct {
	Key   string `yaml:"key" json:"key"`
	Op    string `yaml:"op" json:"op"` // eq, ne, contains, empty, not-empty
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// FilterSet combines conditions with a conjunction ("and" or "or").
type FilterSet struct {
	Conjunction string      `yaml:"conjunction,omitempty" json:"conjunction,omitempty"`
	Conditions  []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Source names where rows come from: every note under a folder, or every
// note carrying a tag. Folder takes precedence when both are set.
type Source struct {
	Folder string `yaml:"folder,omitempty" json:"folder,omitempty"`
	Tag    string `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// Config is the per-database column/layout configuration parsed from
// frontmatter.
type Config struct {
	Name    string     `yaml:"name,omitempty" json:"name,omitempty"`
	Source  Source     `yaml:"source,omitempty" json:"source,omitempty"`
	Columns []Column   `yaml:"columns,omitempty" json:"columns,omitempty"`
	Sorts   []SortRule `yaml:"sorts,omitempty" json:"sorts,omitempty"`
	Filters FilterSet  `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// LocalSettings are the per-database knobs stored in the sentinel-bounded
// block of the document body, as opposed to global plugin settings.
type LocalSettings struct {
	PageSize       int  `yaml:"page_size" json:"page_size"`
	ShowFileColumn bool `yaml:"show_file_column" json:"show_file_column"`
	StickyHeader   bool `yaml:"sticky_header" json:"sticky_header"`
}

// DefaultLocalSettings returns the local settings embedded into newly
// created database documents.
func DefaultLocalSettings() LocalSettings {
	return LocalSettings{
		PageSize:       10,
		ShowFileColumn: true,
		StickyHeader:   true,
	}
}

// Database is a parsed database document. Err is set instead of failing the
// parse outright when the document is marked as a database but its
// configuration cannot be decoded; views render a degraded state from it.
type Database struct {
	Path        string
	Config      Config
	Local       LocalSettings
	ContentHash uint64
	Err         error
}

// SourceNote is one candidate row: a note's path and cached frontmatter as
// known to the metadata index.
type SourceNote struct {
	Path        string
	Frontmatter map[string]any
	ModTime     time.Time
}

// Row is one rendered grid row.
type Row struct {
	Path  string
	Cells map[string]string
}

// Snapshot is the consistent unit delivered to view observers: configuration
// plus derived rows, tagged with the hash of the content it came from.
type Snapshot struct {
	Path        string
	Config      Config
	Local       LocalSettings
	Rows        []Row
	ContentHash uint64
	Err         error
}

// Hash returns the content hash used to gate no-op reconciliations.
func Hash(content string) uint64 {
	return xxhash.Sum64String(content)
}

// IsDatabaseFrontmatter reports whether cached frontmatter carries the
// database marker key with a truthy value.
func IsDatabaseFrontmatter(fm map[string]any) bool {
	v, ok := fm[MarkerKey]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	default:
		return true
	}
}

// ParseDatabase parses a database document. It returns ErrNotDatabase when
// the marker key is absent. Decode failures past the marker check do not
// fail the call: the returned Database carries the error and whatever
// configuration could be recovered.
func ParseDatabase(path, content string) (*Database, error) {
	db := &Database{
		Path:        path,
		Local:       DefaultLocalSettings(),
		ContentHash: Hash(content),
	}

	fmRaw, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("note: %s: %w", path, err)
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(fmRaw), &fm); err != nil {
		return nil, fmt.Errorf("note: %s: invalid frontmatter: %w", path, err)
	}
	if !IsDatabaseFrontmatter(fm) {
		return nil, fmt.Errorf("note: %s: %w", path, ErrNotDatabase)
	}

	if err := yaml.Unmarshal([]byte(fmRaw), &db.Config); err != nil {
		db.Err = fmt.Errorf("note: %s: invalid configuration: %w", path, err)
		return db, nil
	}

	if block, ok := settingsBlock(body); ok {
		local := DefaultLocalSettings()
		if err := yaml.Unmarshal([]byte(block), &local); err != nil {
			db.Err = fmt.Errorf("note: %s: invalid local settings: %w", path, err)
			return db, nil
		}
		db.Local = local
	}

	return db, nil
}

// ExtractFrontmatter decodes a note's YAML frontmatter into a generic map.
// Notes without frontmatter yield ok=false, not an error.
func ExtractFrontmatter(content string) (fm map[string]any, ok bool, err error) {
	raw, _, splitErr := splitFrontmatter(content)
	if splitErr != nil {
		return nil, false, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, false, fmt.Errorf("note: invalid frontmatter: %w", err)
	}
	return fm, true, nil
}

// Tags extracts the "tags" frontmatter key as a string list; scalar and
// list forms are both accepted.
func Tags(fm map[string]any) []string {
	switch t := fm["tags"].(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// splitFrontmatter separates the YAML frontmatter from the body. A missing
// or unterminated fence is an error: a database document always has one.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	if !strings.HasPrefix(content, frontmatterFence+"\n") {
		return "", "", errors.New("no frontmatter")
	}
	rest := content[len(frontmatterFence)+1:]
	idx := strings.Index(rest, "\n"+frontmatterFence)
	if idx < 0 {
		return "", "", errors.New("unterminated frontmatter")
	}
	frontmatter = rest[:idx]
	body = rest[idx+len(frontmatterFence)+1:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}
	return frontmatter, body, nil
}

// settingsBlock extracts the YAML payload between the settings sentinels.
func settingsBlock(body string) (string, bool) {
	start := strings.Index(body, settingsOpen)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(settingsOpen):]
	end := strings.Index(rest, settingsClose)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
