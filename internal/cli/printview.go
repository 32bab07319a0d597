package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
)

// PrintView is a host.View that renders every delivered snapshot to a
// writer. It stands in for the grid UI during CLI watch runs.
type PrintView struct {
	id     string
	path   string
	window host.Window
	out    io.Writer
	mu     sync.Mutex
}

var _ host.View = (*PrintView)(nil)

// NewPrintView creates a printing view for one database file.
func NewPrintView(id, filePath string, window host.Window, out io.Writer) *PrintView {
	return &PrintView{id: id, path: filePath, window: window, out: out}
}

func (v *PrintView) ID() string          { return v.id }
func (v *PrintView) FilePath() string    { return v.path }
func (v *PrintView) Window() host.Window { return v.window }
func (v *PrintView) Destroy() error      { return nil }

func (v *PrintView) OnPaneMenu(host.Menu, string) {}
func (v *PrintView) HandleUpdateStatusBar()       {}

// ApplySnapshot renders the snapshot, or a one-line notice for deferred
// deliveries.
func (v *PrintView) ApplySnapshot(snap *note.Snapshot, reason host.SnapshotReason) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if reason == host.SnapshotDeferred {
		fmt.Fprintf(v.out, "%s: external changes pending\n", snap.Path)
		return
	}
	fmt.Fprint(v.out, RenderSnapshot(snap))
}

func (v *PrintView) NextPage()      {}
func (v *PrintView) PreviousPage()  {}
func (v *PrintView) AddRow()        {}
func (v *PrintView) OpenSettings()  {}
func (v *PrintView) ToggleFilters() {}
func (v *PrintView) OpenFilters()   {}
