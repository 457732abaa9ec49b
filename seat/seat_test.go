package seat_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/seat"
	"github.com/Alia5/goxkb/xkb"
)

const (
	kcLShift keymap.Keycode = 50
	kcCaps   keymap.Keycode = 66
	kcA      keymap.Keycode = 38
)

func newRegistry(t *testing.T) *seat.Registry {
	t.Helper()
	ctx, err := xkb.NewContext(xkb.NoDefaultIncludes | xkb.NoEnvironmentNames)
	require.NoError(t, err)
	require.NoError(t, ctx.IncludePathAppend(xkb.BuiltinIncludePath))
	reg := seat.NewRegistry(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(reg.Close)
	return reg
}

func TestDigest(t *testing.T) {
	a := seat.Digest("xkb_keymap {};")
	assert.Len(t, a, 64)
	assert.Equal(t, a, seat.Digest("xkb_keymap {};"))
	assert.NotEqual(t, a, seat.Digest("xkb_keymap { };"))
}

func TestSeatKeyPublishes(t *testing.T) {
	reg := newRegistry(t)
	s, err := reg.Create(&rules.Names{Layout: "us"}, "")
	require.NoError(t, err)

	events, cancel := s.Subscribe(8)
	defer cancel()

	first := <-events
	assert.Equal(t, uint64(0), first.Serial)
	assert.Equal(t, xkb.StateComponent(0), first.Changed)

	ev, err := s.Key(kcLShift, xkb.KeyDown)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Serial)
	assert.True(t, ev.Changed.Has(xkb.ModsDepressed|xkb.ModsEffective))
	assert.Equal(t, keymap.ModMask(1), ev.State.DepressedMods)
	assert.Equal(t, ev, <-events)

	ev, err = s.Key(kcA, xkb.KeyDown)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Serial)
	assert.Equal(t, xkb.StateComponent(0), ev.Changed)
	assert.Equal(t, ev, <-events)

	assert.Equal(t, ev.Serial, s.Snapshot().Serial)
}

func TestSeatUnknownKey(t *testing.T) {
	reg := newRegistry(t)
	s, err := reg.Create(nil, "")
	require.NoError(t, err)

	_, err = s.Key(3, xkb.KeyDown)
	assert.ErrorIs(t, err, seat.ErrUnknownKey)
	assert.Equal(t, uint64(0), s.Snapshot().Serial)
}

func TestFollowerMirrorsSeat(t *testing.T) {
	reg := newRegistry(t)
	s, err := reg.Create(&rules.Names{Layout: "us,ru", Options: "grp:toggle"}, "")
	require.NoError(t, err)

	text, digest := s.Text()
	assert.Equal(t, seat.Digest(text), digest)

	ctx, err := xkb.NewContext(xkb.NoDefaultIncludes | xkb.NoEnvironmentNames)
	require.NoError(t, err)
	require.NoError(t, ctx.IncludePathAppend(xkb.BuiltinIncludePath))
	km, err := ctx.KeymapFromString(text)
	require.NoError(t, err)
	follower := xkb.NewState(km)
	km.Unref()
	defer follower.Unref()

	events, cancel := s.Subscribe(16)
	defer cancel()
	<-events

	for _, step := range []struct {
		kc  keymap.Keycode
		dir xkb.KeyDirection
	}{
		{kcCaps, xkb.KeyDown},
		{kcCaps, xkb.KeyUp},
		{kcLShift, xkb.KeyDown},
		{108, xkb.KeyDown},
		{108, xkb.KeyUp},
		{kcLShift, xkb.KeyUp},
	} {
		_, err := s.Key(step.kc, step.dir)
		require.NoError(t, err)
		ev := <-events
		c := ev.State
		follower.UpdateMask(c.DepressedMods, c.LatchedMods, c.LockedMods,
			keymap.LayoutIndex(c.DepressedLayout), keymap.LayoutIndex(c.LatchedLayout), keymap.LayoutIndex(c.LockedLayout))
		assert.Equal(t, c, follower.Components())
	}
	assert.Equal(t, keymap.LayoutIndex(1), follower.Components().EffectiveLayout)
}

func TestSlowSubscriberDropped(t *testing.T) {
	reg := newRegistry(t)
	s, err := reg.Create(nil, "")
	require.NoError(t, err)

	events, cancel := s.Subscribe(1)
	defer cancel()

	for range 3 {
		_, err := s.Key(kcA, xkb.KeyDown)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, s.Subscribers())

	var n int
	for range events {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestSubscribeCancel(t *testing.T) {
	reg := newRegistry(t)
	s, err := reg.Create(nil, "")
	require.NoError(t, err)

	events, cancel := s.Subscribe(4)
	assert.Equal(t, 1, s.Subscribers())
	cancel()
	cancel()
	assert.Equal(t, 0, s.Subscribers())

	_, ok := <-events
	assert.True(t, ok, "snapshot stays buffered")
	_, ok = <-events
	assert.False(t, ok)
}

func TestSeatClose(t *testing.T) {
	reg := newRegistry(t)
	s, err := reg.Create(nil, "")
	require.NoError(t, err)
	events, _ := s.Subscribe(4)
	<-events

	s.Close()
	_, ok := <-events
	assert.False(t, ok)

	_, err = s.Key(kcA, xkb.KeyDown)
	assert.ErrorIs(t, err, seat.ErrClosed)

	late, _ := s.Subscribe(4)
	_, ok = <-late
	assert.False(t, ok)
}

func TestRegistry(t *testing.T) {
	reg := newRegistry(t)

	a, err := reg.Create(nil, "")
	require.NoError(t, err)
	b, err := reg.Create(&rules.Names{Layout: "de"}, "")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), a.ID())
	assert.Equal(t, uint32(2), b.ID())
	assert.Nil(t, a.Names())
	assert.Equal(t, "de", b.Names().Layout)
	assert.Equal(t, []string{"German"}, b.Layouts())

	got, err := reg.Get(2)
	require.NoError(t, err)
	assert.Same(t, b, got)

	require.NoError(t, reg.Remove(1))
	assert.ErrorIs(t, reg.Remove(1), seat.ErrNotFound)
	_, err = reg.Get(1)
	assert.ErrorIs(t, err, seat.ErrNotFound)

	c, err := reg.Create(nil, "")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), c.ID(), "freed IDs are reused")

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, uint32(1), list[0].ID())
	assert.Equal(t, uint32(2), list[1].ID())
}

func TestRegistryCreateFromText(t *testing.T) {
	reg := newRegistry(t)
	src, err := reg.Create(&rules.Names{Layout: "us"}, "")
	require.NoError(t, err)
	text, digest := src.Text()

	s, err := reg.Create(nil, text)
	require.NoError(t, err)
	_, got := s.Text()
	assert.Equal(t, digest, got)
}

func TestRegistryCreateErrors(t *testing.T) {
	reg := newRegistry(t)

	_, err := reg.Create(&rules.Names{Layout: "us"}, "xkb_keymap {};")
	assert.ErrorIs(t, err, seat.ErrAmbiguousSource)

	_, err = reg.Create(nil, "xkb_keymap {")
	assert.Error(t, err)

	_, err = reg.Create(&rules.Names{Layout: "xx"}, "")
	assert.Error(t, err)
	assert.Empty(t, reg.List())
}
