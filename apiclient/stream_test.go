package apiclient_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	apiclient "github.com/Alia5/goxkb/apiclient"
	apitypes "github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/internal/server/api/handler"
	htesting "github.com/Alia5/goxkb/internal/testing"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/seat"
	"github.com/Alia5/goxkb/xkb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSeatServer(t *testing.T) (*apiclient.Client, *seat.Registry) {
	t.Helper()
	addr, reg, done := htesting.StartAPIServer(t, func(r *api.Router, reg *seat.Registry, apiSrv *api.Server) {
		r.Register("seat/create", handler.SeatCreate(reg))
		r.Register("seat/remove", handler.SeatRemove(reg))
		r.Register("seat/{id}/keymap", handler.SeatKeymap(reg))
		r.Register("seat/{id}/key", handler.SeatKey(reg))
		r.RegisterStream("seat/{id}/events", handler.SeatEvents(apiSrv.Config().StreamBuffer))
	})
	t.Cleanup(done)
	return apiclient.New(addr), reg
}

func followerState(t *testing.T, text string) *xkb.State {
	t.Helper()
	ctx, err := xkb.NewContext(xkb.NoDefaultIncludes | xkb.NoEnvironmentNames)
	require.NoError(t, err)
	require.NoError(t, ctx.IncludePathAppend(xkb.BuiltinIncludePath))
	km, err := ctx.KeymapFromString(text)
	require.NoError(t, err)
	st := xkb.NewState(km)
	km.Unref()
	t.Cleanup(st.Unref)
	return st
}

func TestOpenEventsNotSupportedWithMockTransport(t *testing.T) {
	c := testClient(map[string]string{}, nil, nil)
	_, err := c.OpenEvents(context.Background(), 1)
	assert.ErrorContains(t, err, "not supported with mock transport")
}

func TestEventStream(t *testing.T) {
	c, reg := startSeatServer(t)
	s, err := reg.Create(&rules.Names{Layout: "us"}, "")
	require.NoError(t, err)

	stream, err := c.OpenEvents(context.Background(), s.ID())
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.Serial)

	_, err = c.SeatKey(s.ID(), "xkb:66", xkb.KeyDown)
	require.NoError(t, err)
	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Serial)
	assert.Equal(t, uint32(2), ev.LockedMods)

	_, err = c.SeatRemove(s.ID())
	require.NoError(t, err)
	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventStreamUnknownSeat(t *testing.T) {
	c, _ := startSeatServer(t)
	stream, err := c.OpenEvents(context.Background(), 42)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Next()
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestFollow(t *testing.T) {
	c, _ := startSeatServer(t)
	created, err := c.SeatCreate(apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "us,ru", Options: "grp:toggle"}})
	require.NoError(t, err)
	km, err := c.SeatKeymap(created.ID)
	require.NoError(t, err)

	follower := followerState(t, km.Keymap)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan apitypes.ModifiersEvent, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Follow(ctx, created.ID, follower, func(ev *apitypes.ModifiersEvent, _ xkb.StateComponent) {
			events <- *ev
		})
	}()

	next := func() apitypes.ModifiersEvent {
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return apitypes.ModifiersEvent{}
		}
	}
	assert.Equal(t, uint64(0), next().Serial)

	for _, key := range []string{"xkb:50 down", "xkb:108 down", "xkb:108 up", "xkb:50 up"} {
		name, d, _ := strings.Cut(key, " ")
		kd, ok := xkb.ParseKeyDirection(d)
		require.True(t, ok)
		resp, err := c.SeatKey(created.ID, name, kd)
		require.NoError(t, err)
		assert.Equal(t, resp.Event, next())
	}

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Follow did not return")
	}

	c2 := follower.Components()
	assert.Equal(t, keymap.LayoutIndex(1), c2.EffectiveLayout)
	assert.Equal(t, int32(1), c2.LockedLayout)
	assert.Equal(t, keymap.ModMask(0), c2.DepressedMods)
}

func TestFollowKeymapMismatch(t *testing.T) {
	c, _ := startSeatServer(t)
	us, err := c.SeatCreate(apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "us"}})
	require.NoError(t, err)
	de, err := c.SeatCreate(apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "de"}})
	require.NoError(t, err)

	km, err := c.SeatKeymap(de.ID)
	require.NoError(t, err)
	follower := followerState(t, km.Keymap)

	err = c.Follow(context.Background(), us.ID, follower, nil)
	assert.ErrorIs(t, err, apiclient.ErrKeymapMismatch)
}

func TestApply(t *testing.T) {
	_, reg := startSeatServer(t)
	s, err := reg.Create(nil, "")
	require.NoError(t, err)
	text, _ := s.Text()
	st := followerState(t, text)

	changed := apiclient.Apply(st, &apitypes.ModifiersEvent{LockedMods: 2})
	assert.True(t, changed.Has(xkb.ModsLocked|xkb.ModsEffective))
	on, err := st.ModNameIsActive(keymap.ModNameCaps, xkb.ModsLocked)
	require.NoError(t, err)
	assert.True(t, on)
}
