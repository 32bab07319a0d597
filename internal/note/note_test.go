package note

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectsDoc = `---
database-plugin: basic
name: Projects
source:
  folder: Projects
columns:
  - key: status
    label: Status
  - key: priority
    type: number
sorts:
  - key: priority
    desc: true
---

# Projects

<!-- folderbase:settings
page_size: 25
show_file_column: false
sticky_header: true
-->
`

func TestParseDatabase(t *testing.T) {
	db, err := ParseDatabase("Projects.md", projectsDoc)
	require.NoError(t, err)
	require.NoError(t, db.Err)

	assert.Equal(t, "Projects", db.Config.Name)
	assert.Equal(t, "Projects", db.Config.Source.Folder)
	require.Len(t, db.Config.Columns, 2)
	assert.Equal(t, "status", db.Config.Columns[0].Key)
	assert.Equal(t, "Status", db.Config.Columns[0].Label)
	require.Len(t, db.Config.Sorts, 1)
	assert.True(t, db.Config.Sorts[0].Desc)

	assert.Equal(t, 25, db.Local.PageSize)
	assert.False(t, db.Local.ShowFileColumn)
	assert.True(t, db.Local.StickyHeader)
	assert.NotZero(t, db.ContentHash)
}

func TestParseDatabaseWithoutSettingsBlockUsesDefaults(t *testing.T) {
	doc := "---\ndatabase-plugin: basic\nname: Tasks\n---\nbody\n"
	db, err := ParseDatabase("Tasks.md", doc)
	require.NoError(t, err)
	assert.Equal(t, DefaultLocalSettings(), db.Local)
}

func TestParseDatabaseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "# just a note\n"},
		{"unterminated frontmatter", "---\ndatabase-plugin: basic\n"},
		{"missing marker", "---\nname: Plain\n---\nbody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDatabase("note.md", tt.content)
			assert.Error(t, err)
		})
	}
}

func TestParseDatabaseMissingMarkerIsErrNotDatabase(t *testing.T) {
	_, err := ParseDatabase("note.md", "---\nname: Plain\n---\nbody\n")
	assert.ErrorIs(t, err, ErrNotDatabase)
}

func TestParseDatabaseDegradesOnBadLocalSettings(t *testing.T) {
	doc := "---\ndatabase-plugin: basic\n---\n\n<!-- folderbase:settings\npage_size: [nope\n-->\n"
	db, err := ParseDatabase("Broken.md", doc)
	require.NoError(t, err)
	assert.Error(t, db.Err)
}

func TestIsDatabaseFrontmatter(t *testing.T) {
	tests := []struct {
		name string
		fm   map[string]any
		want bool
	}{
		{"absent", map[string]any{}, false},
		{"bool true", map[string]any{MarkerKey: true}, true},
		{"bool false", map[string]any{MarkerKey: false}, false},
		{"string basic", map[string]any{MarkerKey: "basic"}, true},
		{"string false", map[string]any{MarkerKey: "false"}, false},
		{"empty string", map[string]any{MarkerKey: ""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDatabaseFrontmatter(tt.fm))
		})
	}
}

func TestExtractFrontmatter(t *testing.T) {
	fm, ok, err := ExtractFrontmatter("---\ntags: [work, todo]\n---\nbody\n")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"work", "todo"}, Tags(fm))

	_, ok, err = ExtractFrontmatter("plain body\n")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTagsScalarForm(t *testing.T) {
	assert.Equal(t, []string{"work"}, Tags(map[string]any{"tags": "work"}))
	assert.Nil(t, Tags(map[string]any{"tags": 7}))
	assert.Nil(t, Tags(map[string]any{}))
}

func TestHashIsStableAndContentSensitive(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
}

func TestDefaultDocumentRoundTrips(t *testing.T) {
	doc := DefaultDocument("Projects", "Projects", DefaultLocalSettings())

	db, err := ParseDatabase("Projects.md", doc)
	require.NoError(t, err)
	require.NoError(t, db.Err)
	assert.Equal(t, "Projects", db.Config.Name)
	assert.Equal(t, "Projects", db.Config.Source.Folder)
	assert.Equal(t, DefaultLocalSettings(), db.Local)
}
