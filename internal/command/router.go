// Package command routes palette/hotkey commands to the currently active
// database view, wherever its window lives.
package command

import (
	"github.com/rs/zerolog"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/windows"
)

// ID names a routed command.
type ID string

const (
	NextPage      ID = "next-page"
	PreviousPage  ID = "previous-page"
	AddRow        ID = "add-row"
	OpenSettings  ID = "open-settings"
	ToggleFilters ID = "toggle-filters"
	OpenFilters   ID = "open-filters"
)

// Definition is one palette entry: a stable ID, a display name, and whether
// the command currently applies. The host grays out unavailable commands
// instead of surfacing errors.
type Definition struct {
	ID   ID
	Name string
}

// Definitions lists every routed command for host registration.
func Definitions() []Definition {
	return []Definition{
		{NextPage, "Go to next page"},
		{PreviousPage, "Go to previous page"},
		{AddRow, "Add new row"},
		{OpenSettings, "Open database settings"},
		{ToggleFilters, "Enable or disable filters"},
		{OpenFilters, "Open filters"},
	}
}

// Router resolves "the active database view" and forwards commands to it.
type Router struct {
	workspace host.Workspace
	registry  *windows.Registry
	log       zerolog.Logger
}

// NewRouter creates a router over the workspace and window registry.
func NewRouter(workspace host.Workspace, registry *windows.Registry, log zerolog.Logger) *Router {
	return &Router{
		workspace: workspace,
		registry:  registry,
		log:       log.With().Str("component", "command").Logger(),
	}
}

// ActiveView resolves the focused database view: the workspace names the
// focused view of the database type, and the registry locates it across all
// mounted windows. Returns false when the focused view is not a database
// view or is no longer mounted.
func (r *Router) ActiveView() (host.View, bool) {
	id, ok := r.workspace.ActiveViewID(note.ViewTypeDatabase)
	if !ok {
		return nil, false
	}
	return r.registry.FindViewByID(id, nil)
}

// Available reports whether routed commands currently apply. The host's
// palette calls this to gray entries out.
func (r *Router) Available() bool {
	_, ok := r.ActiveView()
	return ok
}

// Run forwards a command to the active database view. Running with no
// active view is a no-op returning false — never an error.
func (r *Router) Run(id ID) bool {
	v, ok := r.ActiveView()
	if !ok {
		return false
	}

	switch id {
	case NextPage:
		v.NextPage()
	case PreviousPage:
		v.PreviousPage()
	case AddRow:
		v.AddRow()
	case OpenSettings:
		v.OpenSettings()
	case ToggleFilters:
		v.ToggleFilters()
	case OpenFilters:
		v.OpenFilters()
	default:
		r.log.Warn().Str("command", string(id)).Msg("unknown command")
		return false
	}
	return true
}
