package dispatch

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/host/hosttest"
	"github.com/averonn/folderbase/internal/note"
	"github.com/averonn/folderbase/internal/viewmode"
)

type interceptorFixture struct {
	ws     *hosttest.Workspace
	modes  *viewmode.Tracker
	index  *hosttest.Index
	loaded bool
	ic     *Interceptor
}

func newInterceptorFixture() *interceptorFixture {
	f := &interceptorFixture{
		ws:     hosttest.NewWorkspace(),
		modes:  viewmode.NewTracker(),
		index:  hosttest.NewIndex(),
		loaded: true,
	}
	f.index.Frontmatter["Projects.md"] = map[string]any{note.MarkerKey: "basic"}
	f.ic = NewInterceptor(f.ws, f.modes, f.index, func() bool { return f.loaded }, zerolog.Nop())
	return f
}

func markdownState() host.ViewState {
	return host.ViewState{Type: note.ViewTypeMarkdown, State: map[string]any{"file": "Projects.md"}}
}

func TestPromotesMarkdownRequestForDatabaseNote(t *testing.T) {
	f := newInterceptorFixture()
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Projects.md"}

	require.NoError(t, f.ic.SetViewState(leaf, markdownState()))

	require.Len(t, f.ws.SetViewStateCalls, 1)
	got := f.ws.SetViewStateCalls[0].State
	assert.Equal(t, note.ViewTypeDatabase, got.Type)
	assert.Equal(t, "Projects.md", got.State["file"], "state payload passes through untouched")

	mode, ok := f.modes.Get("leaf-1")
	require.True(t, ok, "promotion is recorded so later dispatches stay consistent")
	assert.Equal(t, viewmode.Mode(note.ViewTypeDatabase), mode)
}

func TestPlainNotePassesThrough(t *testing.T) {
	f := newInterceptorFixture()
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Readme.md"}

	require.NoError(t, f.ic.SetViewState(leaf, markdownState()))

	require.Len(t, f.ws.SetViewStateCalls, 1)
	assert.Equal(t, note.ViewTypeMarkdown, f.ws.SetViewStateCalls[0].State.Type)
	assert.Zero(t, f.modes.Len())
}

func TestMarkdownOverrideSuppressesPromotion(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"override keyed by leaf", "leaf-1"},
		{"override keyed by file path", "Projects.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInterceptorFixture()
			f.modes.Set(tt.key, viewmode.ModeMarkdown)
			leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Projects.md"}

			require.NoError(t, f.ic.SetViewState(leaf, markdownState()))

			require.Len(t, f.ws.SetViewStateCalls, 1)
			assert.Equal(t, note.ViewTypeMarkdown, f.ws.SetViewStateCalls[0].State.Type)
		})
	}
}

func TestNonMarkdownRequestsAreNeverRewritten(t *testing.T) {
	f := newInterceptorFixture()
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Projects.md"}

	require.NoError(t, f.ic.SetViewState(leaf, host.ViewState{Type: "graph"}))

	require.Len(t, f.ws.SetViewStateCalls, 1)
	assert.Equal(t, "graph", f.ws.SetViewStateCalls[0].State.Type)
}

func TestFileLessLeafPassesThrough(t *testing.T) {
	f := newInterceptorFixture()
	leaf := &hosttest.Leaf{LeafID: "leaf-1"}

	require.NoError(t, f.ic.SetViewState(leaf, host.ViewState{Type: note.ViewTypeMarkdown}))

	require.Len(t, f.ws.SetViewStateCalls, 1)
	assert.Equal(t, note.ViewTypeMarkdown, f.ws.SetViewStateCalls[0].State.Type)
}

func TestMetadataFailureFailsOpen(t *testing.T) {
	f := newInterceptorFixture()
	f.index.MetadataErr = errors.New("index offline")
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Projects.md"}

	require.NoError(t, f.ic.SetViewState(leaf, markdownState()))

	require.Len(t, f.ws.SetViewStateCalls, 1)
	assert.Equal(t, note.ViewTypeMarkdown, f.ws.SetViewStateCalls[0].State.Type,
		"lookup failures must forward the original request")
}

func TestUnloadedPluginForwardsUnmodified(t *testing.T) {
	f := newInterceptorFixture()
	f.loaded = false
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Projects.md"}

	require.NoError(t, f.ic.SetViewState(leaf, markdownState()))

	require.Len(t, f.ws.SetViewStateCalls, 1)
	assert.Equal(t, note.ViewTypeMarkdown, f.ws.SetViewStateCalls[0].State.Type)
}

func TestDetachLeafClearsOverridesAndForwards(t *testing.T) {
	f := newInterceptorFixture()
	f.modes.Set("leaf-1", viewmode.ModeMarkdown)
	f.modes.Set("Projects.md", viewmode.ModeMarkdown)
	leaf := &hosttest.Leaf{LeafID: "leaf-1", Path: "Projects.md"}

	require.NoError(t, f.ic.DetachLeaf(leaf))

	assert.Zero(t, f.modes.Len())
	require.Len(t, f.ws.DetachedLeaves, 1)
	assert.Equal(t, leaf, f.ws.DetachedLeaves[0])

	// A reopened leaf with the same file promotes again.
	require.NoError(t, f.ic.SetViewState(leaf, markdownState()))
	assert.Equal(t, note.ViewTypeDatabase, f.ws.SetViewStateCalls[0].State.Type)
}
