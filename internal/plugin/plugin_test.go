package plugin

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/host/hosttest"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/settings"
	"github.com/averonn/folderbase/internal/viewmode"
)

const tasksDoc = `---
database-plugin: basic
name: Tasks
source:
  folder: Tasks
columns:
  - key: status
---
`

const tasksDocEdited = `---
database-plugin: basic
name: Tasks (edited)
source:
  folder: Tasks
columns:
  - key: status
---
`

type pluginFixture struct {
	ws    *hosttest.Workspace
	index *hosttest.Index
	vault *hosttest.Vault
	store *hosttest.Store
	p     *Plugin
}

func newPluginFixture(t *testing.T, listenDelay time.Duration) *pluginFixture {
	t.Helper()
	f := &pluginFixture{
		ws:    hosttest.NewWorkspace(),
		index: hosttest.NewIndex(),
		vault: hosttest.NewVault(),
		store: &hosttest.Store{},
	}
	f.vault.Put("Tasks.md", tasksDoc)
	f.index.Frontmatter["Tasks.md"] = map[string]any{note.MarkerKey: "basic"}
	f.index.SetFolder("Tasks", []note.SourceNote{
		{Path: "Tasks/Ship.md", Frontmatter: map[string]any{"status": "open"}},
	})

	f.p = New(Options{
		Workspace:   f.ws,
		Index:       f.index,
		Vault:       f.vault,
		Store:       f.store,
		ListenDelay: listenDelay,
		Log:         zerolog.Nop(),
	})
	require.NoError(t, f.p.Load())
	t.Cleanup(f.p.Unload)
	return f
}

// waitFor polls until cond holds; timer-driven plugin paths have no
// completion signal to block on.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLoadRegistersViewTypeAndMountsMainWindow(t *testing.T) {
	f := newPluginFixture(t, time.Hour)

	assert.True(t, f.p.Loaded())
	assert.Equal(t, []string{note.ViewTypeDatabase}, f.ws.RegisteredTypes)
	assert.True(t, f.p.Registry().Mounted(f.ws.Main))

	// Layout-ready re-mount stays idempotent.
	f.ws.FireLayoutReady()
	assert.Len(t, f.ws.Main.Roots, 1)
}

func TestSameFileAcrossTwoWindows(t *testing.T) {
	f := newPluginFixture(t, time.Hour)

	second := hosttest.NewWindow("second")
	f.ws.FireWindowOpen(second)
	require.True(t, f.p.Registry().Mounted(second))

	v1 := hosttest.NewView("v1", "Tasks.md", f.ws.Main)
	v2 := hosttest.NewView("v2", "Tasks.md", second)
	require.NoError(t, f.p.AttachView(v1))
	require.NoError(t, f.p.AttachView(v2))

	// One manager backs both windows' views.
	assert.Equal(t, 1, f.p.Managers().Len())
	m, ok := f.p.Managers().Get("Tasks.md")
	require.True(t, ok)
	assert.Equal(t, 2, m.ViewCount())

	// An external edit reaches both views.
	f.vault.Put("Tasks.md", tasksDocEdited)
	m.Reconcile(host.MetadataEvent{Type: host.MetadataChanged, Path: "Tasks.md"})
	require.Len(t, v1.Snapshots(), 2)
	require.Len(t, v2.Snapshots(), 2)
	assert.Equal(t, "Tasks (edited)", v2.Snapshots()[1].Snap.Config.Name)

	// Closing one window releases only its view; the manager survives for
	// the other window.
	f.ws.FireWindowClose(second)
	assert.Equal(t, 1, v2.Destroyed)
	assert.Zero(t, v1.Destroyed)
	assert.Equal(t, 1, f.p.Managers().Len())
	assert.Equal(t, 1, m.ViewCount())

	f.p.DetachView(v1)
	assert.Zero(t, f.p.Managers().Len())
}

func TestMetadataListenerWaitsForListenDelay(t *testing.T) {
	f := newPluginFixture(t, 30*time.Millisecond)

	v := hosttest.NewView("v1", "Tasks.md", f.ws.Main)
	require.NoError(t, f.p.AttachView(v))

	f.index.FireReady()
	assert.Zero(t, f.index.ChangeSubscribers(), "listener must not register before the delay")

	waitFor(t, func() bool { return f.index.ChangeSubscribers() == 1 })

	// Live events now flow through to the manager.
	f.index.SetFolder("Tasks", []note.SourceNote{
		{Path: "Tasks/Ship.md", Frontmatter: map[string]any{"status": "closed"}},
	})
	f.index.FireChange(host.MetadataEvent{Type: host.MetadataChanged, Path: "Tasks/Ship.md"})
	waitFor(t, func() bool {
		snaps := v.Snapshots()
		if len(snaps) == 0 {
			return false
		}
		last := snaps[len(snaps)-1].Snap
		return len(last.Rows) == 1 && last.Rows[0].Cells["status"] == "closed"
	})
}

func TestDuplicateIndexReadyKeepsOneTimer(t *testing.T) {
	f := newPluginFixture(t, 30*time.Millisecond)

	f.index.FireReady()
	f.index.FireReady()

	waitFor(t, func() bool { return f.index.ChangeSubscribers() >= 1 })
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, f.index.ChangeSubscribers())
}

func TestActiveLeafChangeFlushesPendingAndUpdatesStatusBars(t *testing.T) {
	f := newPluginFixture(t, time.Hour)

	v := hosttest.NewView("v1", "Tasks.md", f.ws.Main)
	require.NoError(t, f.p.AttachView(v))

	// Focus the database view so the external edit defers.
	f.ws.ActiveID = "v1"
	f.vault.Put("Tasks.md", tasksDocEdited)
	m, ok := f.p.Managers().Get("Tasks.md")
	require.True(t, ok)
	m.Reconcile(host.MetadataEvent{Type: host.MetadataChanged, Path: "Tasks.md"})
	require.True(t, m.HasPending())

	f.ws.ActiveID = ""
	f.ws.FireActiveLeafChange()

	assert.False(t, m.HasPending())
	assert.Equal(t, "Tasks (edited)", m.Snapshot().Config.Name)
	assert.Equal(t, 1, v.StatusBarCalls)
}

func TestSettingsChangeForcesRefresh(t *testing.T) {
	f := newPluginFixture(t, time.Hour)

	v := hosttest.NewView("v1", "Tasks.md", f.ws.Main)
	require.NoError(t, f.p.AttachView(v))
	require.Len(t, v.Snapshots(), 1)

	require.NoError(t, f.p.Settings().Update(func(s *settings.Settings) { s.RowLimit = 1 }))

	snaps := v.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, host.SnapshotRefresh, snaps[1].Reason)
}

func TestFileMenuTogglesViewMode(t *testing.T) {
	f := newPluginFixture(t, time.Hour)
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Tasks.md"}

	// First menu on a database note offers the markdown escape hatch.
	menu := &hosttest.Menu{}
	f.ws.FireFileMenu(menu, "Tasks.md", "pane-more-options", leaf)
	require.True(t, menu.Select("Open as markdown"))

	mode, ok := f.p.Modes().Get("leaf-1")
	require.True(t, ok)
	assert.Equal(t, viewmode.ModeMarkdown, mode)
	require.Len(t, f.ws.SetViewStateCalls, 1)
	assert.Equal(t, note.ViewTypeMarkdown, f.ws.SetViewStateCalls[0].State.Type,
		"the recorded override must keep the interceptor from re-promoting")

	// With the override in place, the menu offers the way back.
	menu = &hosttest.Menu{}
	f.ws.FireFileMenu(menu, "Tasks.md", "pane-more-options", leaf)
	require.True(t, menu.Select("Open as database view"))

	mode, _ = f.p.Modes().Get("leaf-1")
	assert.Equal(t, viewmode.Mode(note.ViewTypeDatabase), mode)
	require.Len(t, f.ws.SetViewStateCalls, 2)
	assert.Equal(t, note.ViewTypeDatabase, f.ws.SetViewStateCalls[1].State.Type)
}

func TestFileMenuIgnoresPlainNotes(t *testing.T) {
	f := newPluginFixture(t, time.Hour)

	menu := &hosttest.Menu{}
	f.ws.FireFileMenu(menu, "Readme.md", "pane-more-options", &hosttest.Leaf{LeafID: "leaf-1", Path: "Readme.md"})
	assert.Empty(t, menu.Items)
}

func TestCreateDatabaseWritesParsableDocument(t *testing.T) {
	f := newPluginFixture(t, time.Hour)

	require.NoError(t, f.p.CreateDatabase("Boards/Sprint.md", "Sprint", "Boards"))

	content, ok := f.vault.Created["Boards/Sprint.md"]
	require.True(t, ok)
	db, err := note.ParseDatabase("Boards/Sprint.md", content)
	require.NoError(t, err)
	require.NoError(t, db.Err)
	assert.Equal(t, "Sprint", db.Config.Name)
	assert.Equal(t, "Boards", db.Config.Source.Folder)
	assert.Equal(t, note.DefaultLocalSettings(), db.Local)
}

func TestUnloadResetsLeavesAndState(t *testing.T) {
	f := newPluginFixture(t, 10*time.Millisecond)

	dbLeaf := &hosttest.Leaf{
		LeafID: "leaf-1",
		Path:   "Tasks.md",
		State:  host.ViewState{Type: note.ViewTypeDatabase},
	}
	mdLeaf := &hosttest.Leaf{
		LeafID: "leaf-2",
		Path:   "Readme.md",
		State:  host.ViewState{Type: note.ViewTypeMarkdown},
	}
	f.ws.Leaves = []host.Leaf{dbLeaf, mdLeaf}

	v := hosttest.NewView("v1", "Tasks.md", f.ws.Main)
	require.NoError(t, f.p.AttachView(v))
	f.p.Modes().Set("leaf-1", viewmode.Mode(note.ViewTypeDatabase))

	f.index.FireReady()
	waitFor(t, func() bool { return f.index.ChangeSubscribers() == 1 })

	f.p.Unload()

	assert.False(t, f.p.Loaded())
	assert.Equal(t, note.ViewTypeMarkdown, dbLeaf.State.Type, "database leaves reset to markdown")
	require.Len(t, f.ws.SetViewStateCalls, 1, "markdown leaves stay untouched")
	assert.Zero(t, f.p.Modes().Len())
	assert.Zero(t, f.p.Managers().Len())
	assert.False(t, f.p.Registry().Mounted(f.ws.Main))
	assert.Equal(t, 1, v.Destroyed)

	// Post-unload index events are dropped.
	f.index.FireChange(host.MetadataEvent{Type: host.MetadataChanged, Path: "Tasks.md"})
	assert.Zero(t, f.p.Managers().Len())

	// Unload is idempotent.
	f.p.Unload()
	assert.Len(t, f.ws.SetViewStateCalls, 1)
}

func TestUnloadBeforeListenDelayCancelsTimer(t *testing.T) {
	f := newPluginFixture(t, 30*time.Millisecond)

	f.index.FireReady()
	f.p.Unload()

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, f.index.ChangeSubscribers(), "stopped timer must not register a listener")
}
