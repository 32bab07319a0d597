package windows

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averonn/folderbase/internal/host"
	"github.com/averonn/folderbase/internal/host/hosttest"
)

func newRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestMountIsIdempotent(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")

	require.NoError(t, r.Mount(w))
	require.NoError(t, r.Mount(w))

	assert.Len(t, w.Roots, 1, "second mount must not allocate another root")
	assert.True(t, r.Mounted(w))
}

func TestMountSurfacesRootAllocationFailure(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")
	w.CreateRootErr = errors.New("no document body")

	assert.Error(t, r.Mount(w))
	assert.False(t, r.Mounted(w))
}

func TestUnmountDestroysViewsAndRoot(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")
	require.NoError(t, r.Mount(w))

	v1 := hosttest.NewView("v1", "A.md", w)
	v2 := hosttest.NewView("v2", "B.md", w)
	require.NoError(t, r.AddView(v1))
	require.NoError(t, r.AddView(v2))

	r.Unmount(w)

	assert.Equal(t, 1, v1.Destroyed)
	assert.Equal(t, 1, v2.Destroyed)
	assert.Equal(t, 1, w.Roots[0].UnmountCalls)
	assert.Equal(t, 1, w.Roots[0].RemoveCalls)
	assert.False(t, r.Mounted(w))

	// Idempotent: a second unmount is a no-op.
	r.Unmount(w)
	assert.Equal(t, 1, v1.Destroyed)
}

func TestUnmountIsolatesDestroyFailures(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")
	require.NoError(t, r.Mount(w))

	failing := hosttest.NewView("v1", "A.md", w)
	failing.DestroyErr = errors.New("teardown failed")
	panicking := hosttest.NewView("v2", "B.md", w)
	panicking.DestroyPanics = true
	healthy := hosttest.NewView("v3", "C.md", w)

	require.NoError(t, r.AddView(failing))
	require.NoError(t, r.AddView(panicking))
	require.NoError(t, r.AddView(healthy))

	assert.NotPanics(t, func() { r.Unmount(w) })

	assert.Equal(t, 1, healthy.Destroyed, "healthy view must still be destroyed")
	assert.Equal(t, 1, w.Roots[0].RemoveCalls, "root cleanup must still run")
	assert.False(t, r.Mounted(w))
}

func TestWindowIsolation(t *testing.T) {
	r := newRegistry()
	winA := hosttest.NewWindow("a")
	winB := hosttest.NewWindow("b")
	require.NoError(t, r.Mount(winA))
	require.NoError(t, r.Mount(winB))

	viewA := hosttest.NewView("va", "A.md", winA)
	viewB := hosttest.NewView("vb", "B.md", winB)
	require.NoError(t, r.AddView(viewA))
	require.NoError(t, r.AddView(viewB))

	r.Unmount(winA)

	assert.Zero(t, viewB.Destroyed, "window B's view must be untouched")
	assert.True(t, r.Mounted(winB))
	assert.Len(t, r.ViewsFor(winB), 1)
	_, ok := r.FindViewByID("vb", nil)
	assert.True(t, ok)
}

func TestAddRemoveViewNotifiesReceivers(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")
	require.NoError(t, r.Mount(w))

	var lists [][]host.View
	cancel := r.Subscribe(w, func(views []host.View) {
		lists = append(lists, views)
	})

	v1 := hosttest.NewView("v1", "A.md", w)
	v2 := hosttest.NewView("v2", "B.md", w)
	require.NoError(t, r.AddView(v1))
	require.NoError(t, r.AddView(v2))
	r.RemoveView(v1)

	require.Len(t, lists, 3)
	assert.Len(t, lists[0], 1)
	assert.Len(t, lists[1], 2)
	require.Len(t, lists[2], 1)
	assert.Equal(t, "v2", lists[2][0].ID())

	cancel()
	r.RemoveView(v2)
	assert.Len(t, lists, 3, "cancelled receiver must not fire")
}

func TestRemoveViewLocatesOwningWindowByMembership(t *testing.T) {
	r := newRegistry()
	winA := hosttest.NewWindow("a")
	winB := hosttest.NewWindow("b")
	require.NoError(t, r.Mount(winA))
	require.NoError(t, r.Mount(winB))

	// The view reports window B, but was registered while in window A:
	// removal must go by membership, not by the stale reference.
	v := hosttest.NewView("v1", "A.md", winA)
	require.NoError(t, r.AddView(v))
	v.Win = winB

	r.RemoveView(v)
	assert.Empty(t, r.ViewsFor(winA))
}

func TestRemoveUnknownViewIsNoOp(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")
	require.NoError(t, r.Mount(w))

	assert.NotPanics(t, func() {
		r.RemoveView(hosttest.NewView("ghost", "G.md", w))
	})
}

func TestAddViewRequiresMountedWindow(t *testing.T) {
	r := newRegistry()
	w := hosttest.NewWindow("main")
	assert.Error(t, r.AddView(hosttest.NewView("v1", "A.md", w)))
}

func TestFindViewByID(t *testing.T) {
	r := newRegistry()
	winA := hosttest.NewWindow("a")
	winB := hosttest.NewWindow("b")
	require.NoError(t, r.Mount(winA))
	require.NoError(t, r.Mount(winB))

	v := hosttest.NewView("vb", "B.md", winB)
	require.NoError(t, r.AddView(v))

	got, ok := r.FindViewByID("vb", nil)
	require.True(t, ok)
	assert.Equal(t, v.ID(), got.ID())

	_, ok = r.FindViewByID("vb", winA)
	assert.False(t, ok, "window hint must scope the search")

	_, ok = r.FindViewByID("missing", nil)
	assert.False(t, ok)
}
