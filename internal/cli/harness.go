// Package cli hosts the folderbase command-line harness: a headless
// workspace implementation that lets the plugin core run against a vault
// directory without a note application.
package cli

import (
	"sync"

	"github.com/averonn/folderbase/internal/host"
)

// HeadlessWorkspace is a minimal host.Workspace for CLI runs: one main
// window, no leaves, and explicit focus control.
type HeadlessWorkspace struct {
	mu       sync.Mutex
	window   *HeadlessWindow
	activeID string
	active   bool
}

// NewHeadlessWorkspace creates a workspace with one main window.
func NewHeadlessWorkspace() *HeadlessWorkspace {
	return &HeadlessWorkspace{window: &HeadlessWindow{id: "main"}}
}

// SetActiveView marks a view ID as focused.
func (w *HeadlessWorkspace) SetActiveView(id string) {
	w.mu.Lock()
	w.activeID = id
	w.active = id != ""
	w.mu.Unlock()
}

func (w *HeadlessWorkspace) OnLayoutReady(fn func()) (cancel func()) {
	fn()
	return func() {}
}

func (w *HeadlessWorkspace) OnWindowOpen(func(host.Window)) (cancel func())  { return func() {} }
func (w *HeadlessWorkspace) OnWindowClose(func(host.Window)) (cancel func()) { return func() {} }
func (w *HeadlessWorkspace) OnActiveLeafChange(func()) (cancel func())       { return func() {} }
func (w *HeadlessWorkspace) OnFileMenu(func(host.Menu, string, string, host.Leaf)) (cancel func()) {
	return func() {}
}

func (w *HeadlessWorkspace) MainWindow() host.Window                      { return w.window }
func (w *HeadlessWorkspace) LeavesOfType(string) []host.Leaf              { return nil }
func (w *HeadlessWorkspace) RegisterViewType(string) error                { return nil }
func (w *HeadlessWorkspace) SetViewState(host.Leaf, host.ViewState) error { return nil }
func (w *HeadlessWorkspace) DetachLeaf(host.Leaf) error                   { return nil }

func (w *HeadlessWorkspace) ActiveViewID(string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeID, w.active
}

// HeadlessWindow is a window without a document; roots are no-ops.
type HeadlessWindow struct {
	id string
}

func (w *HeadlessWindow) ID() string { return w.id }

func (w *HeadlessWindow) CreateRoot(string) (host.Root, error) {
	return noopRoot{}, nil
}

type noopRoot struct{}

func (noopRoot) Unmount() {}
func (noopRoot) Remove()  {}
