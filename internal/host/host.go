// Package host declares the narrow contracts this plugin consumes from the
// note application: workspace and leaf dispatch, the metadata index, the
// persisted settings store, file storage, and the view surface. Consumers
// depend on these interfaces; concrete adapters live at the edges.
package host

import (
	"errors"

	"github.com/averonn/folderbase/internal/note"
)

// ErrIndexNotReady is returned by MetadataIndex lookups before the index has
// finished its initial build. Callers that can fail open must treat it as
// "not a database note", never as a hard failure.
var ErrIndexNotReady = errors.New("host: metadata index not ready")

// Window identifies one OS window of the host application.
type Window interface {
	ID() string

	// CreateRoot allocates a render root under this window's document
	// body. The caller owns the returned root exclusively.
	CreateRoot(cssClass string) (Root, error)
}

// Root is an exclusively owned render-root element.
type Root interface {
	// Unmount tears down the component tree mounted on the root.
	Unmount()
	// Remove detaches the root element from the window's document.
	Remove()
}

// ViewState is a leaf's requested display state.
type ViewState struct {
	Type  string
	State map[string]any
}

// Leaf is one host pane slot that displays a file in some view type.
type Leaf interface {
	ID() string
	// FilePath returns the backing file's path, or "" when the leaf has
	// no backing file.
	FilePath() string
	ViewState() ViewState
}

// MetadataEventType classifies a metadata index notification.
type MetadataEventType string

const (
	// MetadataChanged: the index re-parsed one file.
	MetadataChanged MetadataEventType = "changed"
	// MetadataRenamed: a file moved; OldPath carries the previous path.
	MetadataRenamed MetadataEventType = "renamed"
	// MetadataDeleted: a file was removed from the index.
	MetadataDeleted MetadataEventType = "deleted"
	// MetadataRebuilt: the index rebuilt wholesale; per-file granularity
	// is unavailable.
	MetadataRebuilt MetadataEventType = "rebuilt"
)

// MetadataEvent is one change notification from the host's metadata index.
type MetadataEvent struct {
	Type    MetadataEventType
	Path    string
	OldPath string
}

// MetadataIndex is the host's eventually consistent frontmatter index.
type MetadataIndex interface {
	// OnIndexReady registers a callback fired once the initial build
	// completes. The returned func cancels the registration.
	OnIndexReady(fn func()) (cancel func())

	// OnMetadataChange registers a live change listener. The returned
	// func cancels the registration.
	OnMetadataChange(fn func(MetadataEvent)) (cancel func())

	// FileMetadata returns the cached frontmatter for a path, or
	// ErrIndexNotReady before the initial build completes.
	FileMetadata(path string) (map[string]any, error)

	// NotesIn lists the indexed notes under a folder.
	NotesIn(folder string) ([]note.SourceNote, error)

	// NotesTagged lists the indexed notes carrying a tag.
	NotesTagged(tag string) ([]note.SourceNote, error)
}

// SettingsStore persists the plugin's opaque settings blob.
type SettingsStore interface {
	LoadData() ([]byte, error)
	SaveData(data []byte) error
}

// Vault is the host's file storage, scoped to what this plugin needs.
type Vault interface {
	ReadFile(path string) (string, error)
	CreateFile(path, content string) error
}

// Menu is a host context menu under construction.
type Menu interface {
	AddItem(title string, onSelect func())
}

// Workspace is the host's window/leaf manager.
type Workspace interface {
	OnLayoutReady(fn func()) (cancel func())
	OnWindowOpen(fn func(Window)) (cancel func())
	OnWindowClose(fn func(Window)) (cancel func())
	OnActiveLeafChange(fn func()) (cancel func())
	OnFileMenu(fn func(menu Menu, filePath string, source string, leaf Leaf)) (cancel func())

	MainWindow() Window
	LeavesOfType(viewType string) []Leaf

	// ActiveViewID returns the view ID of the focused leaf when that leaf
	// displays the given view type.
	ActiveViewID(viewType string) (string, bool)

	// RegisterViewType announces a view type so the host can route leaves
	// to the plugin's view factory.
	RegisterViewType(viewType string) error

	// SetViewState and DetachLeaf are the raw dispatch operations. All
	// plugin code must route through dispatch.Interceptor instead of
	// calling these directly.
	SetViewState(leaf Leaf, state ViewState) error
	DetachLeaf(leaf Leaf) error
}

// SnapshotReason tags why a snapshot is being delivered to a view.
type SnapshotReason int

const (
	// SnapshotInitial: first delivery after the view registered.
	SnapshotInitial SnapshotReason = iota
	// SnapshotRefresh: a forced re-parse (settings change, manual reload).
	SnapshotRefresh
	// SnapshotExternal: reconciliation after an external change.
	SnapshotExternal
	// SnapshotDeferred: an external change landed while this file was
	// focused; the snapshot is parked and only lightweight chrome (status
	// bar) should update until it is flushed.
	SnapshotDeferred
)

// View is the surface contract a mounted database view implements. The
// rendering itself is outside this module; the core only coordinates.
type View interface {
	ID() string
	FilePath() string
	Window() Window

	// Destroy releases the view's resources. Errors are isolated by the
	// caller; a failing view must not block sibling teardown.
	Destroy() error

	OnPaneMenu(menu Menu, source string)

	// ApplySnapshot delivers a consistent state snapshot. Views must
	// render from delivered snapshots only, never reach into the manager
	// asynchronously.
	ApplySnapshot(snap *note.Snapshot, reason SnapshotReason)

	HandleUpdateStatusBar()

	// Command targets forwarded by the command router.
	NextPage()
	PreviousPage()
	AddRow()
	OpenSettings()
	ToggleFilters()
	OpenFilters()
}
