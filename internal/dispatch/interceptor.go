// Package dispatch wraps the host workspace's view-state and detach
// operations. All plugin code dispatches through the Interceptor, which
// promotes markdown views of database-marked notes to the database view
// type while honoring explicit user overrides.
package dispatch

import (
	"github.com/rs/zerolog"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/viewmode"
)

// Dispatcher is the raw host dispatch surface the interceptor wraps.
type Dispatcher interface {
	SetViewState(leaf host.Leaf, state host.ViewState) error
	DetachLeaf(leaf host.Leaf) error
}

// Interceptor rewrites view-state requests for database-marked notes and
// cleans up mode overrides when leaves close. Interception is a best-effort
// convenience: any failure reading cached metadata fails open, forwarding
// the original request unmodified.
type Interceptor struct {
	next   Dispatcher
	modes  *viewmode.Tracker
	index  host.MetadataIndex
	loaded func() bool
	log    zerolog.Logger
}

// NewInterceptor wraps a dispatcher. loaded gates interception: during
// plugin shutdown every database leaf is force-reset to markdown, and the
// interceptor must not fight that sequence.
func NewInterceptor(next Dispatcher, modes *viewmode.Tracker, index host.MetadataIndex, loaded func() bool, log zerolog.Logger) *Interceptor {
	return &Interceptor{
		next:   next,
		modes:  modes,
		index:  index,
		loaded: loaded,
		log:    log.With().Str("component", "dispatch").Logger(),
	}
}

// SetViewState forwards a view-state request, rewriting its type from
// markdown to the database view when the target file carries the database
// marker and no explicit markdown override is recorded for the leaf.
func (i *Interceptor) SetViewState(leaf host.Leaf, state host.ViewState) error {
	if !i.shouldPromote(leaf, state) {
		return i.next.SetViewState(leaf, state)
	}

	state.Type = note.ViewTypeDatabase
	i.modes.Set(leaf.ID(), viewmode.Mode(note.ViewTypeDatabase))
	i.log.Debug().Str("leaf_id", leaf.ID()).Str("file", leaf.FilePath()).
		Msg("promoted markdown request to database view")
	return i.next.SetViewState(leaf, state)
}

func (i *Interceptor) shouldPromote(leaf host.Leaf, state host.ViewState) bool {
	if !i.loaded() {
		return false
	}
	if state.Type != note.ViewTypeMarkdown {
		return false
	}
	filePath := leaf.FilePath()
	if filePath == "" {
		return false
	}
	if mode, ok := i.modes.Get(leaf.ID()); ok && mode == viewmode.ModeMarkdown {
		return false
	}
	if mode, ok := i.modes.Get(filePath); ok && mode == viewmode.ModeMarkdown {
		return false
	}

	fm, err := i.index.FileMetadata(filePath)
	if err != nil {
		// Index not ready or lookup failed: treat as not a database
		// note and forward unmodified.
		i.log.Debug().Err(err).Str("file", filePath).Msg("metadata unavailable, forwarding as-is")
		return false
	}
	return note.IsDatabaseFrontmatter(fm)
}

// DetachLeaf clears any mode override for the leaf (an override is
// meaningless once the leaf is gone), then forwards the detach.
func (i *Interceptor) DetachLeaf(leaf host.Leaf) error {
	i.modes.Clear(leaf.ID())
	if filePath := leaf.FilePath(); filePath != "" {
		i.modes.Clear(filePath)
	}
	return i.next.DetachLeaf(leaf)
}
