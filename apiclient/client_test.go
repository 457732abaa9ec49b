package apiclient_test

import (
	"context"
	"errors"
	"testing"

	apiclient "github.com/Alia5/goxkb/apiclient"
	apitypes "github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/xkb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	path    string
	payload any
	params  map[string]string
}

// testClient constructs a client backed by a simple in-memory responder.
// responses maps unfilled path patterns to raw JSON lines. If err is
// non-nil, every request returns that error, simulating dial failures.
// Every request is recorded in *seen.
func testClient(responses map[string]string, err error, seen *[]request) *apiclient.Client {
	return apiclient.WithTransport(apiclient.NewMockTransport(func(path string, payload any, params map[string]string) (string, error) {
		if seen != nil {
			*seen = append(*seen, request{path: path, payload: payload, params: params})
		}
		if err != nil {
			return "", err
		}
		return responses[path], nil
	}))
}

func TestHighLevelClient(t *testing.T) {
	tests := []struct {
		name       string
		responses  map[string]string
		err        error
		call       func(c *apiclient.Client) (any, error)
		wantErr    string
		wantReq    *request
		assertFunc func(t *testing.T, got any)
	}{
		{
			name:      "ping",
			responses: map[string]string{"ping": `{"server":"goxkb","version":"dev"}`},
			call:      func(c *apiclient.Client) (any, error) { return c.Ping() },
			assertFunc: func(t *testing.T, got any) {
				assert.Equal(t, &apitypes.PingResponse{Server: "goxkb", Version: "dev"}, got)
			},
		},
		{
			name:      "seat create from names",
			responses: map[string]string{"seat/create": `{"id":1,"names":{"layout":"de"},"layouts":["German"],"digest":"ab"}`},
			call: func(c *apiclient.Client) (any, error) {
				return c.SeatCreate(apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "de"}})
			},
			wantReq: &request{path: "seat/create", payload: apitypes.SeatCreateRequest{Names: &apitypes.Names{Layout: "de"}}},
			assertFunc: func(t *testing.T, got any) {
				s := got.(*apitypes.Seat)
				assert.Equal(t, uint32(1), s.ID)
				assert.Equal(t, []string{"German"}, s.Layouts)
			},
		},
		{
			name:      "seat create with defaults sends no payload",
			responses: map[string]string{"seat/create": `{"id":2,"layouts":["English (US)"],"digest":"ab"}`},
			call:      func(c *apiclient.Client) (any, error) { return c.SeatCreate(apitypes.SeatCreateRequest{}) },
			wantReq:   &request{path: "seat/create"},
		},
		{
			name: "seat create error structured",
			responses: map[string]string{
				"seat/create": `{"status":400,"title":"Bad Request","detail":"names and keymap are mutually exclusive"}`,
			},
			call: func(c *apiclient.Client) (any, error) {
				return c.SeatCreate(apitypes.SeatCreateRequest{Names: &apitypes.Names{}, Keymap: "x"})
			},
			wantErr: "400 Bad Request: names and keymap are mutually exclusive",
		},
		{
			name:      "seat remove",
			responses: map[string]string{"seat/remove": `{"id":3}`},
			call:      func(c *apiclient.Client) (any, error) { return c.SeatRemove(3) },
			wantReq:   &request{path: "seat/remove", payload: "3"},
		},
		{
			name:      "seat key",
			responses: map[string]string{"seat/{id}/key": `{"keycode":50,"changed":["ModsDepressed","ModsEffective"],"event":{"serial":1,"changed":9,"depressedMods":1,"latchedMods":0,"lockedMods":0,"effectiveMods":1,"depressedLayout":0,"latchedLayout":0,"lockedLayout":0,"effectiveLayout":0,"leds":0}}`},
			call:      func(c *apiclient.Client) (any, error) { return c.SeatKey(4, "KEY_LEFTSHIFT", xkb.KeyDown) },
			wantReq:   &request{path: "seat/{id}/key", payload: "KEY_LEFTSHIFT down", params: map[string]string{"id": "4"}},
			assertFunc: func(t *testing.T, got any) {
				r := got.(*apitypes.SeatKeyResponse)
				assert.Equal(t, uint32(50), r.Keycode)
				assert.Equal(t, uint32(1), r.Event.DepressedMods)
			},
		},
		{
			name:      "seat state not found",
			responses: map[string]string{"seat/{id}/state": `{"status":404,"title":"Not Found","detail":"seat 9 not found"}`},
			call:      func(c *apiclient.Client) (any, error) { return c.SeatState(9) },
			wantErr:   "seat 9 not found",
		},
		{
			name:      "seat list empty",
			responses: map[string]string{"seat/list": `{"seats":[]}`},
			call:      func(c *apiclient.Client) (any, error) { return c.SeatList() },
			assertFunc: func(t *testing.T, got any) {
				assert.Empty(t, got.(*apitypes.SeatListResponse).Seats)
			},
		},
		{
			name:    "transport failure",
			err:     errors.New("dial fail"),
			call:    func(c *apiclient.Client) (any, error) { return c.SeatList() },
			wantErr: "dial fail",
		},
		{
			name:    "blank response error",
			call:    func(c *apiclient.Client) (any, error) { return c.SeatKeymap(1) },
			wantErr: "empty response",
		},
		{
			name:      "strict JSON decode",
			responses: map[string]string{"seat/list": `{"seats":[],"extra":true}`},
			call:      func(c *apiclient.Client) (any, error) { return c.SeatList() },
			wantErr:   "decode:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []request
			c := testClient(tt.responses, tt.err, &seen)
			got, err := tt.call(c)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantReq != nil {
				require.Len(t, seen, 1)
				assert.Equal(t, *tt.wantReq, seen[0])
			}
			if tt.assertFunc != nil {
				tt.assertFunc(t, got)
			}
		})
	}
}

func TestApiErrorIsReturnedTyped(t *testing.T) {
	c := testClient(map[string]string{"seat/{id}/keymap": `{"status":404,"title":"Not Found","detail":"seat 1 not found"}`}, nil, nil)
	_, err := c.SeatKeymap(1)
	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

func TestContextCancellation(t *testing.T) {
	c := apiclient.New("127.0.0.1:9") // address irrelevant due to early cancel
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SeatListCtx(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
