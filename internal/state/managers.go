package state

import (
	"sync"

	"github.com/averonn/folderbase/internal/host"
)

// Managers is the process-wide index of live Managers, keyed by backing
// file path. It enforces the single-manager invariant: at most one Manager
// exists per database file, created lazily on first view registration and
// removed when its last view unregisters.
type Managers struct {
	mu     sync.Mutex
	byPath map[string]*Manager
	deps   Deps
}

// NewManagers creates an empty index.
func NewManagers(deps Deps) *Managers {
	return &Managers{
		byPath: make(map[string]*Manager),
		deps:   deps,
	}
}

// Acquire returns the Manager for a file, creating and loading it when none
// exists, and registers the view as an observer.
func (s *Managers) Acquire(filePath string, v host.View) *Manager {
	s.mu.Lock()
	m, ok := s.byPath[filePath]
	created := false
	if !ok {
		m = newManager(filePath, s.deps, nil)
		m.dispose = func() { s.removeManager(m) }
		s.byPath[filePath] = m
		created = true
	}
	s.mu.Unlock()

	if created {
		m.load()
	}
	// Ignoring ErrDisposed: a concurrent Release of the last other view
	// can dispose the manager between creation and registration; the
	// caller retries through Acquire on the next registration anyway.
	_ = m.RegisterView(v)
	return m
}

// Release unregisters a view from the file's Manager, if one exists.
// Disposal on empty removes the Manager from the index.
func (s *Managers) Release(filePath string, v host.View) {
	s.mu.Lock()
	m, ok := s.byPath[filePath]
	s.mu.Unlock()
	if !ok {
		return
	}
	m.UnregisterView(v)
}

func (s *Managers) removeManager(m *Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cur := range s.byPath {
		if cur == m {
			delete(s.byPath, key)
			return
		}
	}
}

// Get returns the Manager for a file, if one exists.
func (s *Managers) Get(filePath string) (*Manager, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byPath[filePath]
	return m, ok
}

// Len reports how many Managers are live.
func (s *Managers) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPath)
}

// Each calls fn for every live Manager.
func (s *Managers) Each(fn func(*Manager)) {
	s.mu.Lock()
	managers := make([]*Manager, 0, len(s.byPath))
	for _, m := range s.byPath {
		managers = append(managers, m)
	}
	s.mu.Unlock()

	for _, m := range managers {
		fn(m)
	}
}

// ForceRefreshAll re-derives and re-delivers every Manager's state. Wired
// to global settings changes.
func (s *Managers) ForceRefreshAll() {
	s.Each(func(m *Manager) { _ = m.ForceRefresh() })
}

// FlushPendingAll applies any deferred snapshots. Wired to focus changes.
func (s *Managers) FlushPendingAll() {
	s.Each(func(m *Manager) { m.FlushPending() })
}

// Reset disposes every live Manager and clears the index. Called on plugin
// unload; per-view release normally empties the index before this runs.
func (s *Managers) Reset() {
	s.mu.Lock()
	managers := make([]*Manager, 0, len(s.byPath))
	for _, m := range s.byPath {
		managers = append(managers, m)
	}
	s.byPath = make(map[string]*Manager)
	s.mu.Unlock()

	for _, m := range managers {
		m.mu.Lock()
		m.status = StatusDisposed
		m.views = nil
		m.dispose = nil
		m.mu.Unlock()
	}
}

// HandleMetadataEvent routes one index notification to the Managers it
// concerns. Events for files with no interested Manager are no-ops, never
// errors: leaves and windows close asynchronously relative to pending
// callbacks.
func (s *Managers) HandleMetadataEvent(evt host.MetadataEvent) {
	if evt.Type == host.MetadataRebuilt {
		s.Each(func(m *Manager) { m.Reconcile(evt) })
		return
	}

	if evt.Type == host.MetadataRenamed && evt.OldPath != "" {
		s.mu.Lock()
		if m, ok := s.byPath[evt.OldPath]; ok {
			delete(s.byPath, evt.OldPath)
			s.byPath[evt.Path] = m
			m.rekey(evt.Path)
		}
		s.mu.Unlock()
	}

	s.Each(func(m *Manager) {
		if m.WatchesPath(evt.Path) || (evt.OldPath != "" && m.WatchesPath(evt.OldPath)) {
			m.Reconcile(evt)
		}
	})
}
