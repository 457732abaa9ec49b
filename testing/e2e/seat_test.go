package e2e_test

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/apiclient"
	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/internal/cmd"
	"github.com/Alia5/goxkb/internal/server/api"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/xkb"
)

// freeAddr reserves a loopback port and releases it for the server.
func freeAddr(tb testing.TB) string {
	tb.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(tb, err)
	addr := ln.Addr().String()
	require.NoError(tb, ln.Close())
	return addr
}

// startServer runs the server command with one startup seat and waits
// until it answers pings.
func startServer(ctx context.Context, tb testing.TB, layouts ...string) *apiclient.Client {
	tb.Helper()
	addr := freeAddr(tb)
	s := cmd.Server{
		ApiServerConfig: api.ServerConfig{
			Addr:              addr,
			StreamBuffer:      64,
			ConnectionTimeout: 5 * time.Second,
		},
		ContextFlags: cmd.ContextFlags{
			Include:           []string{xkb.BuiltinIncludePath},
			NoDefaultIncludes: true,
			NoEnvironment:     true,
		},
		Seats: layouts,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.StartServer(ctx, slog.Default(), nil) }()

	c := apiclient.New(addr)
	for range 50 {
		if _, err := c.Ping(); err == nil {
			return c
		}
		select {
		case err := <-errCh:
			tb.Fatalf("server exited: %v", err)
		case <-time.After(100 * time.Millisecond):
		}
	}
	tb.Fatalf("server at %s did not come up", addr)
	return nil
}

// follower compiles the seat's keymap locally, the way a client would.
func follower(tb testing.TB, c *apiclient.Client, id uint32) *xkb.State {
	tb.Helper()
	resp, err := c.SeatKeymap(id)
	require.NoError(tb, err)
	ctx, err := xkb.NewContext(xkb.NoDefaultIncludes | xkb.NoEnvironmentNames)
	require.NoError(tb, err)
	require.NoError(tb, ctx.IncludePathAppend(xkb.BuiltinIncludePath))
	km, err := ctx.KeymapFromString(resp.Keymap)
	require.NoError(tb, err)
	st := xkb.NewState(km)
	km.Unref()
	tb.Cleanup(st.Unref)
	return st
}

func TestSeatRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	c := startServer(ctx, t, "us,ru")

	seats, err := c.SeatList()
	require.NoError(t, err)
	require.Len(t, seats.Seats, 1)
	id := seats.Seats[0].ID
	assert.Equal(t, []string{"English (US)", "Russian"}, seats.Seats[0].Layouts)

	st := follower(t, c, id)
	events := make(chan xkb.StateComponent, 16)
	followCtx, stopFollow := context.WithCancel(ctx)
	followDone := make(chan error, 1)
	go func() {
		followDone <- c.Follow(followCtx, id, st, func(_ *apitypes.ModifiersEvent, changed xkb.StateComponent) {
			events <- changed
		})
	}()
	// The snapshot arrives first.
	select {
	case <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot")
	}

	_, err = c.SeatKey(id, "xkb:66", xkb.KeyDown)
	require.NoError(t, err)
	select {
	case changed := <-events:
		assert.True(t, changed.Has(xkb.ModsLocked))
	case <-time.After(5 * time.Second):
		t.Fatal("follower saw no event")
	}
	on, err := st.LEDNameIsActive(keymap.LEDNameCaps)
	require.NoError(t, err)
	assert.True(t, on)

	stopFollow()
	assert.NoError(t, <-followDone)

	_, err = c.SeatRemove(id)
	require.NoError(t, err)
	_, err = c.SeatState(id)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func Benchmark_KeyToFollower(b *testing.B) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := startServer(ctx, b, "us")
	const id = 1

	st := follower(b, c, id)
	stream, err := c.OpenEvents(ctx, id)
	if err != nil {
		b.Fatalf("OpenEvents failed: %v", err)
	}
	defer stream.Close()
	if _, err := stream.Next(); err != nil {
		b.Fatalf("snapshot failed: %v", err)
	}

	for b.Loop() {
		for _, dir := range []xkb.KeyDirection{xkb.KeyDown, xkb.KeyUp} {
			if _, err := c.SeatKey(id, "xkb:50", dir); err != nil {
				b.Fatalf("SeatKey failed: %v", err)
			}
			ev, err := stream.Next()
			if err != nil {
				b.Fatalf("Next failed: %v", err)
			}
			apiclient.Apply(st, ev)
		}
	}
}
