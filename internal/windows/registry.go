// Package windows tracks per-OS-window plugin state: the render root
// allocated in each window, the database views mounted there, and the
// receivers notified when a window's view set changes.
package windows

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/averonn/folderbase/internal/host"
)

const rootCSSClass = "folderbase-root"

type entry struct {
	window    host.Window
	root      host.Root
	views     map[string]host.View // by view ID
	order     []string             // insertion order, for stable fan-out
	receivers []func([]host.View)
}

// Registry owns one entry per open window. It is created on plugin load and
// fully cleared on unload; views never mutate it directly.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry // by window ID
	log     zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		log:     log.With().Str("component", "windows").Logger(),
	}
}

// Mount allocates a render root for a window and registers an empty entry.
// Mounting an already-mounted window is a no-op.
func (r *Registry) Mount(w host.Window) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[w.ID()]; ok {
		return nil
	}

	root, err := w.CreateRoot(rootCSSClass)
	if err != nil {
		return fmt.Errorf("windows: mount %s: %w", w.ID(), err)
	}

	r.entries[w.ID()] = &entry{
		window: w,
		root:   root,
		views:  make(map[string]host.View),
	}
	r.log.Debug().Str("window_id", w.ID()).Msg("window mounted")
	return nil
}

// Unmount destroys every view mounted in a window, tears down its render
// root, and deletes the entry. Unmounting an unknown window is a no-op. A
// view failing (or panicking) during destroy never blocks cleanup of its
// siblings or the entry itself.
func (r *Registry) Unmount(w host.Window) {
	r.mu.Lock()
	e, ok := r.entries[w.ID()]
	if ok {
		delete(r.entries, w.ID())
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	for _, id := range e.order {
		v, ok := e.views[id]
		if !ok {
			continue
		}
		r.destroyView(v)
	}

	e.root.Unmount()
	e.root.Remove()
	e.views = nil
	e.receivers = nil
	r.log.Debug().Str("window_id", w.ID()).Msg("window unmounted")
}

func (r *Registry) destroyView(v host.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("view_id", v.ID()).Interface("panic", rec).
				Msg("view panicked during destroy")
		}
	}()
	if err := v.Destroy(); err != nil {
		r.log.Warn().Err(err).Str("view_id", v.ID()).Msg("view destroy failed")
	}
}

// AddView places a view into its window's entry and notifies that window's
// receivers with the fresh view list. The window must be mounted.
func (r *Registry) AddView(v host.View) error {
	w := v.Window()
	if w == nil {
		return fmt.Errorf("windows: view %s has no window", v.ID())
	}

	r.mu.Lock()
	e, ok := r.entries[w.ID()]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("windows: window %s not mounted", w.ID())
	}
	if _, exists := e.views[v.ID()]; !exists {
		e.order = append(e.order, v.ID())
	}
	e.views[v.ID()] = v
	views, receivers := e.snapshotLocked()
	r.mu.Unlock()

	notify(receivers, views)
	return nil
}

// RemoveView deletes a view from whichever window currently holds it and
// notifies that window's receivers. The owning window is located by
// membership scan: a closing view may hold a stale window reference.
// Removing an unknown view is a no-op.
func (r *Registry) RemoveView(v host.View) {
	r.mu.Lock()
	var (
		views     []host.View
		receivers []func([]host.View)
		found     bool
	)
	for _, e := range r.entries {
		if _, ok := e.views[v.ID()]; !ok {
			continue
		}
		delete(e.views, v.ID())
		for i, id := range e.order {
			if id == v.ID() {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
		views, receivers = e.snapshotLocked()
		found = true
		break
	}
	r.mu.Unlock()

	if found {
		notify(receivers, views)
	}
}

// Subscribe registers a receiver for one window's view-set changes. The
// returned func cancels the subscription. Subscribing to an unmounted
// window returns a no-op cancel.
func (r *Registry) Subscribe(w host.Window, fn func([]host.View)) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[w.ID()]
	if !ok {
		return func() {}
	}
	e.receivers = append(e.receivers, fn)
	idx := len(e.receivers) - 1

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.entries[w.ID()]; ok && cur == e && idx < len(cur.receivers) {
			cur.receivers[idx] = nil
		}
	}
}

// ViewsFor returns the views mounted in a window, in mount order.
func (r *Registry) ViewsFor(w host.Window) []host.View {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[w.ID()]
	if !ok {
		return nil
	}
	views, _ := e.snapshotLocked()
	return views
}

// FindViewByID looks a view up by ID. With a window hint only that window is
// searched; without one every window is, returning the first match.
func (r *Registry) FindViewByID(id string, w host.Window) (host.View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w != nil {
		e, ok := r.entries[w.ID()]
		if !ok {
			return nil, false
		}
		v, ok := e.views[id]
		return v, ok
	}
	for _, e := range r.entries {
		if v, ok := e.views[id]; ok {
			return v, true
		}
	}
	return nil, false
}

// Mounted reports whether a window has a registry entry.
func (r *Registry) Mounted(w host.Window) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[w.ID()]
	return ok
}

// Windows returns the mounted windows.
func (r *Registry) Windows() []host.Window {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]host.Window, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.window)
	}
	return out
}

// Reset unmounts every window. Called on plugin unload.
func (r *Registry) Reset() {
	for _, w := range r.Windows() {
		r.Unmount(w)
	}
}

func (e *entry) snapshotLocked() ([]host.View, []func([]host.View)) {
	views := make([]host.View, 0, len(e.views))
	for _, id := range e.order {
		if v, ok := e.views[id]; ok {
			views = append(views, v)
		}
	}
	receivers := make([]func([]host.View), len(e.receivers))
	copy(receivers, e.receivers)
	return views, receivers
}

func notify(receivers []func([]host.View), views []host.View) {
	for _, fn := range receivers {
		if fn != nil {
			fn(views)
		}
	}
}
