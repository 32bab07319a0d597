// Package hosttest provides hand-rolled fakes of the host contracts for
// tests.
package hosttest

import (
	"sync"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
)

// Root records teardown calls.
type Root struct {
	mu           sync.Mutex
	UnmountCalls int
	RemoveCalls  int
}

func (r *Root) Unmount() {
	r.mu.Lock()
	r.UnmountCalls++
	r.mu.Unlock()
}

func (r *Root) Remove() {
	r.mu.Lock()
	r.RemoveCalls++
	r.mu.Unlock()
}

// Window is a fake host.Window handing out recording roots.
type Window struct {
	WindowID      string
	CreateRootErr error

	mu    sync.Mutex
	Roots []*Root
}

func NewWindow(id string) *Window { return &Window{WindowID: id} }

func (w *Window) ID() string { return w.WindowID }

func (w *Window) CreateRoot(string) (host.Root, error) {
	if w.CreateRootErr != nil {
		return nil, w.CreateRootErr
	}
	root := &Root{}
	w.mu.Lock()
	w.Roots = append(w.Roots, root)
	w.mu.Unlock()
	return root, nil
}

// Applied is one recorded snapshot delivery.
type Applied struct {
	Snap   *note.Snapshot
	Reason host.SnapshotReason
}

// View is a recording fake of the view contract.
type View struct {
	ViewID     string
	Path       string
	Win        host.Window
	DestroyErr error
	// DestroyPanics makes Destroy panic, for teardown-isolation tests.
	DestroyPanics bool

	mu             sync.Mutex
	Destroyed      int
	AppliedSnaps   []Applied
	StatusBarCalls int
	Commands       []string
}

func NewView(id, path string, win host.Window) *View {
	return &View{ViewID: id, Path: path, Win: win}
}

func (v *View) ID() string          { return v.ViewID }
func (v *View) FilePath() string    { return v.Path }
func (v *View) Window() host.Window { return v.Win }

func (v *View) Destroy() error {
	v.mu.Lock()
	v.Destroyed++
	v.mu.Unlock()
	if v.DestroyPanics {
		panic("destroy panic")
	}
	return v.DestroyErr
}

func (v *View) OnPaneMenu(host.Menu, string) {}

func (v *View) ApplySnapshot(snap *note.Snapshot, reason host.SnapshotReason) {
	v.mu.Lock()
	v.AppliedSnaps = append(v.AppliedSnaps, Applied{Snap: snap, Reason: reason})
	v.mu.Unlock()
}

func (v *View) HandleUpdateStatusBar() {
	v.mu.Lock()
	v.StatusBarCalls++
	v.mu.Unlock()
}

func (v *View) command(name string) {
	v.mu.Lock()
	v.Commands = append(v.Commands, name)
	v.mu.Unlock()
}

func (v *View) NextPage()      { v.command("next-page") }
func (v *View) PreviousPage()  { v.command("previous-page") }
func (v *View) AddRow()        { v.command("add-row") }
func (v *View) OpenSettings()  { v.command("open-settings") }
func (v *View) ToggleFilters() { v.command("toggle-filters") }
func (v *View) OpenFilters()   { v.command("open-filters") }

// Snapshots returns a copy of the recorded deliveries.
func (v *View) Snapshots() []Applied {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Applied, len(v.AppliedSnaps))
	copy(out, v.AppliedSnaps)
	return out
}

// Leaf is a fake host.Leaf.
type Leaf struct {
	LeafID string
	Path   string
	State  host.ViewState
}

func (l *Leaf) ID() string                { return l.LeafID }
func (l *Leaf) FilePath() string          { return l.Path }
func (l *Leaf) ViewState() host.ViewState { return l.State }

// DispatchCall records one forwarded dispatch operation.
type DispatchCall struct {
	Leaf  host.Leaf
	State host.ViewState
}

// Workspace is a fake host.Workspace with controllable event firing.
type Workspace struct {
	Main     *Window
	ActiveID string

	mu                sync.Mutex
	layoutReady       []func()
	windowOpen        []func(host.Window)
	windowClose       []func(host.Window)
	activeLeafChange  []func()
	fileMenu          []func(host.Menu, string, string, host.Leaf)
	Leaves            []host.Leaf
	SetViewStateCalls []DispatchCall
	DetachedLeaves    []host.Leaf
	RegisteredTypes   []string
}

func NewWorkspace() *Workspace {
	return &Workspace{Main: NewWindow("main")}
}

func (w *Workspace) OnLayoutReady(fn func()) (cancel func()) {
	w.mu.Lock()
	w.layoutReady = append(w.layoutReady, fn)
	w.mu.Unlock()
	return func() {}
}

func (w *Workspace) OnWindowOpen(fn func(host.Window)) (cancel func()) {
	w.mu.Lock()
	w.windowOpen = append(w.windowOpen, fn)
	w.mu.Unlock()
	return func() {}
}

func (w *Workspace) OnWindowClose(fn func(host.Window)) (cancel func()) {
	w.mu.Lock()
	w.windowClose = append(w.windowClose, fn)
	w.mu.Unlock()
	return func() {}
}

func (w *Workspace) OnActiveLeafChange(fn func()) (cancel func()) {
	w.mu.Lock()
	w.activeLeafChange = append(w.activeLeafChange, fn)
	w.mu.Unlock()
	return func() {}
}

func (w *Workspace) OnFileMenu(fn func(host.Menu, string, string, host.Leaf)) (cancel func()) {
	w.mu.Lock()
	w.fileMenu = append(w.fileMenu, fn)
	w.mu.Unlock()
	return func() {}
}

func (w *Workspace) MainWindow() host.Window { return w.Main }

func (w *Workspace) LeavesOfType(viewType string) []host.Leaf {
	var out []host.Leaf
	for _, l := range w.Leaves {
		if l.ViewState().Type == viewType {
			out = append(out, l)
		}
	}
	return out
}

func (w *Workspace) ActiveViewID(string) (string, bool) {
	return w.ActiveID, w.ActiveID != ""
}

func (w *Workspace) RegisterViewType(viewType string) error {
	w.mu.Lock()
	w.RegisteredTypes = append(w.RegisteredTypes, viewType)
	w.mu.Unlock()
	return nil
}

func (w *Workspace) SetViewState(leaf host.Leaf, state host.ViewState) error {
	w.mu.Lock()
	w.SetViewStateCalls = append(w.SetViewStateCalls, DispatchCall{Leaf: leaf, State: state})
	w.mu.Unlock()
	if l, ok := leaf.(*Leaf); ok {
		l.State = state
	}
	return nil
}

func (w *Workspace) DetachLeaf(leaf host.Leaf) error {
	w.mu.Lock()
	w.DetachedLeaves = append(w.DetachedLeaves, leaf)
	w.mu.Unlock()
	return nil
}

// FireLayoutReady invokes registered layout-ready callbacks.
func (w *Workspace) FireLayoutReady() {
	for _, fn := range w.snapshotLayout() {
		fn()
	}
}

// FireWindowOpen invokes registered window-open callbacks.
func (w *Workspace) FireWindowOpen(win host.Window) {
	w.mu.Lock()
	fns := make([]func(host.Window), len(w.windowOpen))
	copy(fns, w.windowOpen)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(win)
	}
}

// FireWindowClose invokes registered window-close callbacks.
func (w *Workspace) FireWindowClose(win host.Window) {
	w.mu.Lock()
	fns := make([]func(host.Window), len(w.windowClose))
	copy(fns, w.windowClose)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(win)
	}
}

// FireActiveLeafChange invokes registered active-leaf-change callbacks.
func (w *Workspace) FireActiveLeafChange() {
	w.mu.Lock()
	fns := make([]func(), len(w.activeLeafChange))
	copy(fns, w.activeLeafChange)
	w.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// FireFileMenu invokes registered file-menu callbacks.
func (w *Workspace) FireFileMenu(menu host.Menu, filePath, source string, leaf host.Leaf) {
	w.mu.Lock()
	fns := make([]func(host.Menu, string, string, host.Leaf), len(w.fileMenu))
	copy(fns, w.fileMenu)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(menu, filePath, source, leaf)
	}
}

func (w *Workspace) snapshotLayout() []func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	fns := make([]func(), len(w.layoutReady))
	copy(fns, w.layoutReady)
	return fns
}

// Index is a fake host.MetadataIndex backed by in-memory maps.
type Index struct {
	mu          sync.Mutex
	Ready       bool
	Frontmatter map[string]map[string]any
	ByFolder    map[string][]note.SourceNote
	ByTag       map[string][]note.SourceNote
	MetadataErr error

	readySubs  []func()
	changeSubs []func(host.MetadataEvent)
}

func NewIndex() *Index {
	return &Index{
		Ready:       true,
		Frontmatter: make(map[string]map[string]any),
		ByFolder:    make(map[string][]note.SourceNote),
		ByTag:       make(map[string][]note.SourceNote),
	}
}

func (ix *Index) OnIndexReady(fn func()) (cancel func()) {
	ix.mu.Lock()
	ix.readySubs = append(ix.readySubs, fn)
	ix.mu.Unlock()
	return func() {}
}

func (ix *Index) OnMetadataChange(fn func(host.MetadataEvent)) (cancel func()) {
	ix.mu.Lock()
	ix.changeSubs = append(ix.changeSubs, fn)
	ix.mu.Unlock()
	return func() {}
}

// FireReady marks the index ready and invokes ready subscribers.
func (ix *Index) FireReady() {
	ix.mu.Lock()
	ix.Ready = true
	fns := make([]func(), len(ix.readySubs))
	copy(fns, ix.readySubs)
	ix.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// FireChange invokes change subscribers.
func (ix *Index) FireChange(evt host.MetadataEvent) {
	ix.mu.Lock()
	fns := make([]func(host.MetadataEvent), len(ix.changeSubs))
	copy(fns, ix.changeSubs)
	ix.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

// ChangeSubscribers reports how many live change listeners exist.
func (ix *Index) ChangeSubscribers() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.changeSubs)
}

func (ix *Index) FileMetadata(path string) (map[string]any, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.MetadataErr != nil {
		return nil, ix.MetadataErr
	}
	if !ix.Ready {
		return nil, host.ErrIndexNotReady
	}
	fm, ok := ix.Frontmatter[path]
	if !ok {
		return map[string]any{}, nil
	}
	return fm, nil
}

func (ix *Index) NotesIn(folder string) ([]note.SourceNote, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.Ready {
		return nil, host.ErrIndexNotReady
	}
	return append([]note.SourceNote(nil), ix.ByFolder[folder]...), nil
}

func (ix *Index) NotesTagged(tag string) ([]note.SourceNote, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.Ready {
		return nil, host.ErrIndexNotReady
	}
	return append([]note.SourceNote(nil), ix.ByTag[tag]...), nil
}

// SetFolder replaces a folder's notes.
func (ix *Index) SetFolder(folder string, notes []note.SourceNote) {
	ix.mu.Lock()
	ix.ByFolder[folder] = notes
	ix.mu.Unlock()
}

// Vault is a fake host.Vault backed by a map.
type Vault struct {
	mu      sync.Mutex
	Files   map[string]string
	Created map[string]string
}

func NewVault() *Vault {
	return &Vault{Files: make(map[string]string), Created: make(map[string]string)}
}

func (v *Vault) ReadFile(path string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	content, ok := v.Files[path]
	if !ok {
		return "", &NotFoundError{Path: path}
	}
	return content, nil
}

func (v *Vault) CreateFile(path, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Files[path] = content
	v.Created[path] = content
	return nil
}

// Put sets a file's content without recording a create.
func (v *Vault) Put(path, content string) {
	v.mu.Lock()
	v.Files[path] = content
	v.mu.Unlock()
}

// NotFoundError reports a missing vault file.
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string { return "vault: " + e.Path + " not found" }

// Store is a fake host.SettingsStore.
type Store struct {
	mu      sync.Mutex
	Data    []byte
	LoadErr error
	SaveErr error
	Saved   [][]byte
}

func (s *Store) LoadData() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	return s.Data, nil
}

func (s *Store) SaveData(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Data = data
	s.Saved = append(s.Saved, data)
	return nil
}

// Menu records added items and can invoke them by title.
type Menu struct {
	mu    sync.Mutex
	Items []MenuItem
}

// MenuItem is one recorded menu entry.
type MenuItem struct {
	Title    string
	OnSelect func()
}

func (m *Menu) AddItem(title string, onSelect func()) {
	m.mu.Lock()
	m.Items = append(m.Items, MenuItem{Title: title, OnSelect: onSelect})
	m.mu.Unlock()
}

// Select invokes the item with the given title, reporting whether it exists.
func (m *Menu) Select(title string) bool {
	m.mu.Lock()
	items := append([]MenuItem(nil), m.Items...)
	m.mu.Unlock()
	for _, item := range items {
		if item.Title == title {
			item.OnSelect()
			return true
		}
	}
	return false
}
