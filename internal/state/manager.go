// Package state owns canonical per-database-file state: one Manager per
// open database document, an observer list of views, and serialized
// reconciliation against the host's metadata index.
package state

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/settings"
)

// Status is a Manager's lifecycle state.
type Status int

const (
	StatusUnloaded Status = iota
	StatusLoading
	StatusReady
	StatusReconciling
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusReconciling:
		return "reconciling"
	case StatusDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrDisposed is returned by operations on a disposed Manager.
var ErrDisposed = errors.New("state: manager disposed")

// SettingsProvider pulls the current global settings. The manager does not
// own settings; it re-reads them on every derivation.
type SettingsProvider func() settings.Settings

// Deps are the collaborators a Manager derives state from.
type Deps struct {
	Vault    host.Vault
	Index    host.MetadataIndex
	Settings SettingsProvider
	// ActiveFile resolves the path of the currently focused file, or "".
	// Reconciliations of the focused file defer their push.
	ActiveFile func() string
	Log        zerolog.Logger
}

// Manager is the canonical owner of one database file's parsed
// configuration and rows. Exactly one Manager exists per file at a time;
// Managers (the index) enforces that.
type Manager struct {
	mu       sync.Mutex
	path     string
	status   Status
	snapshot *note.Snapshot
	pending  *note.Snapshot
	views    []host.View

	// Reconciliation serialization: one in flight, later arrivals queue
	// (coalescing superseded ones) and run strictly in arrival order.
	inFlight bool
	queue    []host.MetadataEvent

	deps    Deps
	dispose func()
	log     zerolog.Logger
}

func newManager(filePath string, deps Deps, dispose func()) *Manager {
	return &Manager{
		path:    filePath,
		status:  StatusUnloaded,
		deps:    deps,
		dispose: dispose,
		log:     deps.Log.With().Str("component", "state").Str("file", filePath).Logger(),
	}
}

// Path returns the backing file's current path.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Status returns the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Snapshot returns the last applied snapshot. Pending (deferred) snapshots
// are not visible here until flushed.
func (m *Manager) Snapshot() *note.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// load performs the initial Unloaded→Loading→Ready derivation.
func (m *Manager) load() {
	m.mu.Lock()
	if m.status != StatusUnloaded {
		m.mu.Unlock()
		return
	}
	m.status = StatusLoading
	m.mu.Unlock()

	snap := m.derive()

	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return
	}
	m.snapshot = snap
	m.status = StatusReady
	m.mu.Unlock()
	m.log.Debug().Int("rows", len(snap.Rows)).Msg("database loaded")
}

// RegisterView adds a view to the observer set. A Ready manager delivers
// its current snapshot immediately so the new observer never renders stale
// or partial state.
func (m *Manager) RegisterView(v host.View) error {
	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	for _, existing := range m.views {
		if existing.ID() == v.ID() {
			m.mu.Unlock()
			return nil
		}
	}
	m.views = append(m.views, v)
	snap := m.snapshot
	ready := m.status == StatusReady || m.status == StatusReconciling
	m.mu.Unlock()

	if ready && snap != nil {
		v.ApplySnapshot(snap, host.SnapshotInitial)
	}
	return nil
}

// UnregisterView removes a view from the observer set. Removing the last
// view disposes the manager: the dispose callback fires exactly once and
// the manager accepts no further operations.
func (m *Manager) UnregisterView(v host.View) {
	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return
	}
	for i, existing := range m.views {
		if existing.ID() == v.ID() {
			m.views = append(m.views[:i], m.views[i+1:]...)
			break
		}
	}
	empty := len(m.views) == 0
	var dispose func()
	if empty {
		m.status = StatusDisposed
		dispose = m.dispose
		m.dispose = nil
	}
	m.mu.Unlock()

	if dispose != nil {
		dispose()
		m.log.Debug().Msg("manager disposed")
	}
}

// ViewCount reports the number of registered observers.
func (m *Manager) ViewCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// ForceRefresh re-derives state and re-delivers it to every observer,
// bypassing the hash gate and the focused-deferral policy. Used after
// global settings change, since settings affect derivation.
func (m *Manager) ForceRefresh() error {
	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	m.mu.Unlock()

	snap := m.derive()

	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	m.snapshot = snap
	m.pending = nil
	views := m.viewsLocked()
	m.mu.Unlock()

	for _, v := range views {
		v.ApplySnapshot(snap, host.SnapshotRefresh)
	}
	return nil
}

// Reconcile handles one external metadata event for this file. Events are
// processed strictly in arrival order; while one reconciliation is in
// flight, later events queue, and superseded duplicates coalesce (renames
// never do — they carry path state).
func (m *Manager) Reconcile(evt host.MetadataEvent) {
	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return
	}
	if m.inFlight {
		m.enqueueLocked(evt)
		m.mu.Unlock()
		return
	}
	m.inFlight = true
	m.mu.Unlock()

	for {
		m.reconcileOne(evt)

		m.mu.Lock()
		if len(m.queue) == 0 || m.status == StatusDisposed {
			m.inFlight = false
			m.queue = nil
			m.mu.Unlock()
			return
		}
		evt = m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
	}
}

func (m *Manager) enqueueLocked(evt host.MetadataEvent) {
	if evt.Type != host.MetadataRenamed {
		for _, queued := range m.queue {
			if queued.Type == evt.Type && queued.Path == evt.Path {
				// Already queued: the trailing run sees the same
				// file content (last write wins).
				return
			}
		}
	}
	m.queue = append(m.queue, evt)
}

func (m *Manager) reconcileOne(evt host.MetadataEvent) {
	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return
	}
	m.status = StatusReconciling
	prev := m.snapshot
	m.mu.Unlock()

	snap := m.derive()

	active := false
	if m.deps.ActiveFile != nil {
		active = m.deps.ActiveFile() == snap.Path
	}

	m.mu.Lock()
	if m.status == StatusDisposed {
		m.mu.Unlock()
		return
	}
	// Hash gate: unchanged content with unchanged derived rows is a
	// spurious wakeup from the index; keep the prior snapshot.
	if prev != nil && snap.Err == nil && prev.Err == nil &&
		prev.ContentHash == snap.ContentHash && reflect.DeepEqual(prev.Rows, snap.Rows) {
		m.status = StatusReady
		m.mu.Unlock()
		m.log.Trace().Str("event", string(evt.Type)).Msg("reconcile skipped, state unchanged")
		return
	}

	reason := host.SnapshotExternal
	if active {
		// The user may have in-progress edits in the focused view:
		// park the snapshot and deliver a deferred notice only.
		m.pending = snap
		reason = host.SnapshotDeferred
	} else {
		m.snapshot = snap
		m.pending = nil
	}
	m.status = StatusReady
	views := m.viewsLocked()
	m.mu.Unlock()

	for _, v := range views {
		v.ApplySnapshot(snap, reason)
	}
	m.log.Debug().
		Str("event", string(evt.Type)).
		Bool("deferred", reason == host.SnapshotDeferred).
		Int("rows", len(snap.Rows)).
		Msg("reconciled")
}

// FlushPending applies a deferred snapshot, if any. Wired to focus changes:
// once the user leaves the view (or comes back to it), the parked external
// state lands.
func (m *Manager) FlushPending() {
	m.mu.Lock()
	if m.status == StatusDisposed || m.pending == nil {
		m.mu.Unlock()
		return
	}
	snap := m.pending
	m.snapshot = snap
	m.pending = nil
	views := m.viewsLocked()
	m.mu.Unlock()

	for _, v := range views {
		v.ApplySnapshot(snap, host.SnapshotExternal)
	}
	m.log.Debug().Msg("deferred snapshot applied")
}

// HasPending reports whether a deferred snapshot is parked.
func (m *Manager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// rekey points the manager at a renamed backing file.
func (m *Manager) rekey(newPath string) {
	m.mu.Lock()
	m.path = newPath
	m.log = m.deps.Log.With().Str("component", "state").Str("file", newPath).Logger()
	m.mu.Unlock()
}

// WatchesPath reports whether an event for the given path concerns this
// manager: its own backing file, a note under its source folder, or any
// note when rows come from a tag (tag membership can change with any edit).
func (m *Manager) WatchesPath(p string) bool {
	m.mu.Lock()
	filePath := m.path
	snap := m.snapshot
	m.mu.Unlock()

	if p == filePath {
		return true
	}
	if snap == nil {
		return false
	}
	if snap.Config.Source.Tag != "" {
		return true
	}
	return folderContains(m.sourceFolder(snap), p)
}

func (m *Manager) sourceFolder(snap *note.Snapshot) string {
	if snap.Config.Source.Folder != "" {
		return snap.Config.Source.Folder
	}
	// Default source: the database file's own folder.
	return path.Dir(snap.Path)
}

func folderContains(folder, p string) bool {
	if folder == "" || folder == "." {
		return !strings.Contains(p, "/")
	}
	return strings.HasPrefix(p, folder+"/")
}

func (m *Manager) viewsLocked() []host.View {
	out := make([]host.View, len(m.views))
	copy(out, m.views)
	return out
}

// derive re-reads the backing file and rebuilds configuration plus rows. A
// failure never panics or propagates: the snapshot carries the error and
// the affected views degrade while the rest of the plugin keeps working.
func (m *Manager) derive() *note.Snapshot {
	m.mu.Lock()
	filePath := m.path
	m.mu.Unlock()

	content, err := m.deps.Vault.ReadFile(filePath)
	if err != nil {
		return &note.Snapshot{Path: filePath, Err: fmt.Errorf("state: read %s: %w", filePath, err)}
	}

	db, err := note.ParseDatabase(filePath, content)
	if err != nil {
		return &note.Snapshot{Path: filePath, ContentHash: note.Hash(content), Err: err}
	}

	snap := &note.Snapshot{
		Path:        filePath,
		Config:      db.Config,
		Local:       db.Local,
		ContentHash: db.ContentHash,
		Err:         db.Err,
	}

	notes, err := m.sourceNotes(db)
	if err != nil {
		// Index not ready or query failure: deliver configuration with
		// an empty row set rather than failing.
		m.log.Debug().Err(err).Msg("row source unavailable")
		return snap
	}
	notes = excludeSelf(notes, filePath)

	rows := note.BuildRows(db.Config, notes)
	if m.deps.Settings != nil {
		if limit := m.deps.Settings().RowLimit; limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
	}
	snap.Rows = rows
	return snap
}

func (m *Manager) sourceNotes(db *note.Database) ([]note.SourceNote, error) {
	switch {
	case db.Config.Source.Folder != "":
		return m.deps.Index.NotesIn(db.Config.Source.Folder)
	case db.Config.Source.Tag != "":
		return m.deps.Index.NotesTagged(db.Config.Source.Tag)
	default:
		return m.deps.Index.NotesIn(path.Dir(db.Path))
	}
}

func excludeSelf(notes []note.SourceNote, self string) []note.SourceNote {
	out := notes[:0]
	for _, n := range notes {
		if n.Path != self {
			out = append(out, n)
		}
	}
	return out
}
