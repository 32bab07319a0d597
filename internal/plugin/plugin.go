// Package plugin is the root controller: it owns the process-wide
// registries (window registry, view-mode tracker, manager index), wires
// them to the host's workspace and metadata index, and drives the
// load/unload lifecycle.
package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/averonn/folderbase/internal/command"
	"github.com/averonn/folderbase/internal/dispatch"
	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/settings"
	"github.com/averonn/folderbase/internal/state"
	"github.com/averonn/folderbase/internal/viewmode"
	"github.com/averonn/folderbase/internal/windows"
)

// DefaultListenDelay is how long after index-ready the plugin waits before
// subscribing to live metadata changes. Subscribing immediately races the
// index's settling writes and produces spurious or incomplete change
// events; a fixed delay lets it stabilize first.
const DefaultListenDelay = 2500 * time.Millisecond

// Options configures a Plugin.
type Options struct {
	Workspace host.Workspace
	Index     host.MetadataIndex
	Vault     host.Vault
	Store     host.SettingsStore

	// ListenDelay overrides DefaultListenDelay; tests shrink it.
	ListenDelay time.Duration

	Log zerolog.Logger
}

// Plugin coordinates every component for its loaded lifetime. All state it
// owns is created on Load and fully cleared on Unload.
type Plugin struct {
	workspace host.Workspace
	index     host.MetadataIndex
	vault     host.Vault

	settings    *settings.Service
	registry    *windows.Registry
	modes       *viewmode.Tracker
	managers    *state.Managers
	interceptor *dispatch.Interceptor
	router      *command.Router

	loaded      atomic.Bool
	listenDelay time.Duration

	mu          sync.Mutex
	delayTimer  *time.Timer
	cancels     []func()
	indexCancel func()

	log zerolog.Logger
}

// New wires a Plugin from its host collaborators. Nothing runs until Load.
func New(opts Options) *Plugin {
	log := opts.Log.With().Str("component", "plugin").Logger()

	delay := opts.ListenDelay
	if delay <= 0 {
		delay = DefaultListenDelay
	}

	p := &Plugin{
		workspace:   opts.Workspace,
		index:       opts.Index,
		vault:       opts.Vault,
		settings:    settings.NewService(opts.Store, opts.Log),
		registry:    windows.NewRegistry(opts.Log),
		modes:       viewmode.NewTracker(),
		listenDelay: delay,
		log:         log,
	}

	p.managers = state.NewManagers(state.Deps{
		Vault:      opts.Vault,
		Index:      opts.Index,
		Settings:   p.settings.Current,
		ActiveFile: p.activeFile,
		Log:        opts.Log,
	})
	p.interceptor = dispatch.NewInterceptor(opts.Workspace, p.modes, opts.Index, p.loaded.Load, opts.Log)
	p.router = command.NewRouter(opts.Workspace, p.registry, opts.Log)

	return p
}

// Dispatcher returns the interception layer all view-state and detach
// operations must route through.
func (p *Plugin) Dispatcher() *dispatch.Interceptor { return p.interceptor }

// Router returns the command router for host palette registration.
func (p *Plugin) Router() *command.Router { return p.router }

// Settings returns the settings service.
func (p *Plugin) Settings() *settings.Service { return p.settings }

// Managers exposes the manager index; views and tests use it read-only.
func (p *Plugin) Managers() *state.Managers { return p.managers }

// Modes returns the view-mode tracker.
func (p *Plugin) Modes() *viewmode.Tracker { return p.modes }

// Registry returns the window registry.
func (p *Plugin) Registry() *windows.Registry { return p.registry }

// Loaded reports whether the plugin is between Load and Unload.
func (p *Plugin) Loaded() bool { return p.loaded.Load() }

// Load brings the plugin up: settings, view-type registration, the main
// window's render root, workspace subscriptions, and the delayed metadata
// listener.
func (p *Plugin) Load() error {
	p.settings.Load()

	if err := p.workspace.RegisterViewType(note.ViewTypeDatabase); err != nil {
		return fmt.Errorf("plugin: register view type: %w", err)
	}

	if err := p.registry.Mount(p.workspace.MainWindow()); err != nil {
		return fmt.Errorf("plugin: mount main window: %w", err)
	}

	p.loaded.Store(true)

	p.addCancel(p.workspace.OnLayoutReady(func() {
		// Mount is idempotent; layout-ready may race the direct mount
		// above depending on when the host loads the plugin.
		_ = p.registry.Mount(p.workspace.MainWindow())
	}))
	p.addCancel(p.workspace.OnWindowOpen(p.handleWindowOpen))
	p.addCancel(p.workspace.OnWindowClose(p.handleWindowClose))
	p.addCancel(p.workspace.OnActiveLeafChange(p.handleActiveLeafChange))
	p.addCancel(p.workspace.OnFileMenu(p.handleFileMenu))
	p.addCancel(p.settings.Subscribe(p.handleSettingsChanged))
	p.addCancel(p.index.OnIndexReady(p.handleIndexReady))

	p.log.Info().Msg("plugin loaded")
	return nil
}

// Unload tears everything down. The loaded flag drops first so the
// interceptor stops promoting while leaves are force-reset to markdown.
func (p *Plugin) Unload() {
	if !p.loaded.CompareAndSwap(true, false) {
		return
	}

	p.mu.Lock()
	if p.delayTimer != nil {
		p.delayTimer.Stop()
		p.delayTimer = nil
	}
	cancels := p.cancels
	p.cancels = nil
	if p.indexCancel != nil {
		cancels = append(cancels, p.indexCancel)
		p.indexCancel = nil
	}
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	// Force every database leaf back to the generic markdown view via raw
	// dispatch; the gated interceptor no longer fights this.
	for _, leaf := range p.workspace.LeavesOfType(note.ViewTypeDatabase) {
		if err := p.workspace.SetViewState(leaf, host.ViewState{Type: note.ViewTypeMarkdown}); err != nil {
			p.log.Warn().Err(err).Str("leaf_id", leaf.ID()).Msg("leaf reset failed")
		}
	}

	p.registry.Reset()
	p.modes.Reset()
	p.managers.Reset()
	p.log.Info().Msg("plugin unloaded")
}

// AttachView registers a newly mounted view: it joins its window's registry
// entry and becomes an observer of its file's manager (created lazily).
func (p *Plugin) AttachView(v host.View) error {
	if err := p.registry.AddView(v); err != nil {
		return err
	}
	p.managers.Acquire(v.FilePath(), v)
	return nil
}

// DetachView unwinds AttachView. Detaching an unknown view is a no-op.
func (p *Plugin) DetachView(v host.View) {
	p.managers.Release(v.FilePath(), v)
	p.registry.RemoveView(v)
}

// CreateDatabase writes a new database document embedding the default local
// settings block.
func (p *Plugin) CreateDatabase(filePath, name, sourceFolder string) error {
	content := note.DefaultDocument(name, sourceFolder, note.DefaultLocalSettings())
	if err := p.vault.CreateFile(filePath, content); err != nil {
		return fmt.Errorf("plugin: create database %s: %w", filePath, err)
	}
	return nil
}

func (p *Plugin) addCancel(cancel func()) {
	p.mu.Lock()
	p.cancels = append(p.cancels, cancel)
	p.mu.Unlock()
}

// activeFile resolves the path of the focused database view's file, or "".
func (p *Plugin) activeFile() string {
	v, ok := p.router.ActiveView()
	if !ok {
		return ""
	}
	return v.FilePath()
}

func (p *Plugin) handleWindowOpen(w host.Window) {
	if err := p.registry.Mount(w); err != nil {
		p.log.Error().Err(err).Str("window_id", w.ID()).Msg("window mount failed")
	}
}

func (p *Plugin) handleWindowClose(w host.Window) {
	// Release manager registrations before the registry destroys the
	// views, so dispose-on-empty runs even when a view's own destroy
	// hook fails.
	for _, v := range p.registry.ViewsFor(w) {
		p.managers.Release(v.FilePath(), v)
	}
	p.registry.Unmount(w)
}

func (p *Plugin) handleActiveLeafChange() {
	p.managers.FlushPendingAll()
	for _, w := range p.registry.Windows() {
		for _, v := range p.registry.ViewsFor(w) {
			v.HandleUpdateStatusBar()
		}
	}
}

func (p *Plugin) handleSettingsChanged(settings.Settings) {
	// Settings feed derivation (row limits, implicit columns), so every
	// manager re-derives and re-delivers.
	p.managers.ForceRefreshAll()
}

func (p *Plugin) handleIndexReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded.Load() || p.delayTimer != nil {
		return
	}
	p.delayTimer = time.AfterFunc(p.listenDelay, p.startMetadataListener)
	p.log.Debug().Dur("delay", p.listenDelay).Msg("index ready, listener scheduled")
}

func (p *Plugin) startMetadataListener() {
	if !p.loaded.Load() {
		return
	}

	cancel := p.index.OnMetadataChange(func(evt host.MetadataEvent) {
		if !p.loaded.Load() {
			return
		}
		p.managers.HandleMetadataEvent(evt)
	})

	p.mu.Lock()
	p.indexCancel = cancel
	p.mu.Unlock()

	// Managers created before the index finished building derived empty
	// row sets; reconcile them against the settled index.
	p.managers.HandleMetadataEvent(host.MetadataEvent{Type: host.MetadataRebuilt})
	p.log.Debug().Msg("metadata listener registered")
}

func (p *Plugin) handleFileMenu(menu host.Menu, filePath, source string, leaf host.Leaf) {
	if filePath == "" {
		return
	}

	fm, err := p.index.FileMetadata(filePath)
	if err != nil || !note.IsDatabaseFrontmatter(fm) {
		return
	}

	key := filePath
	if leaf != nil {
		key = leaf.ID()
	}

	if mode, ok := p.modes.Get(key); ok && mode == viewmode.ModeMarkdown {
		menu.AddItem("Open as database view", func() {
			p.modes.Set(key, viewmode.Mode(note.ViewTypeDatabase))
			p.reopen(leaf, note.ViewTypeDatabase)
		})
		return
	}

	menu.AddItem("Open as markdown", func() {
		p.modes.Set(key, viewmode.ModeMarkdown)
		p.reopen(leaf, note.ViewTypeMarkdown)
	})
}

func (p *Plugin) reopen(leaf host.Leaf, viewType string) {
	if leaf == nil {
		return
	}
	if err := p.interceptor.SetViewState(leaf, host.ViewState{Type: viewType}); err != nil {
		p.log.Warn().Err(err).Str("leaf_id", leaf.ID()).Msg("reopen failed")
	}
}
