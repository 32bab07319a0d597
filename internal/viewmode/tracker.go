// Package viewmode remembers explicitly forced display modes per leaf or
// file, so automatic view-type promotion does not fight manual choices.
package viewmode

import "sync"

// Mode is a forced display mode. ModeMarkdown pins a leaf to the plain
// markdown view; any other value is the database view-type key it was
// promoted to.
type Mode string

// ModeMarkdown pins a leaf/file to the generic markdown view.
const ModeMarkdown Mode = "markdown"

// Tracker maps a leaf ID (or file path, for overrides recorded before a
// leaf exists) to its forced mode. Presence of an entry suppresses
// automatic mode forcing for that key.
type Tracker struct {
	mu    sync.RWMutex
	modes map[string]Mode
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{modes: make(map[string]Mode)}
}

// Set records a forced mode for a key.
func (t *Tracker) Set(key string, mode Mode) {
	if key == "" {
		return
	}
	t.mu.Lock()
	t.modes[key] = mode
	t.mu.Unlock()
}

// Get returns the forced mode for a key, if any.
func (t *Tracker) Get(key string) (Mode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mode, ok := t.modes[key]
	return mode, ok
}

// Clear removes the entry for a key. Clearing an absent key is a no-op.
func (t *Tracker) Clear(key string) {
	t.mu.Lock()
	delete(t.modes, key)
	t.mu.Unlock()
}

// Len reports the number of recorded overrides.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.modes)
}

// Reset drops every override. Called on plugin unload.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.modes = make(map[string]Mode)
	t.mu.Unlock()
}
