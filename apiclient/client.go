package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	apitypes "github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/xkb"
)

// Client provides a high-level interface to the seat API, handling request
// formatting, response parsing, and error handling.
type Client struct{ transport *Transport }

// New constructs a high-level API client using the internal low-level Transport.
// The addr parameter specifies the TCP address (host:port) of the API server.
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithConfig constructs a client with custom transport timeouts.
func NewWithConfig(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransportWithConfig(addr, cfg)}
}

// WithTransport constructs a Client using a custom Transport implementation.
// This is primarily useful for testing.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

func seatParams(id uint32) map[string]string {
	return map[string]string{"id": strconv.FormatUint(uint64(id), 10)}
}

// Ping returns the name and version of the server.
func (c *Client) Ping() (*apitypes.PingResponse, error) {
	return c.PingCtx(context.Background())
}

func (c *Client) PingCtx(ctx context.Context) (*apitypes.PingResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "ping", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.PingResponse](raw)
}

// SeatList returns every seat of the server ordered by ID.
func (c *Client) SeatList() (*apitypes.SeatListResponse, error) {
	return c.SeatListCtx(context.Background())
}

func (c *Client) SeatListCtx(ctx context.Context) (*apitypes.SeatListResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "seat/list", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.SeatListResponse](raw)
}

// SeatCreate creates a seat from RMLVO names or from keymap text. A zero
// request uses the server's default names.
func (c *Client) SeatCreate(req apitypes.SeatCreateRequest) (*apitypes.Seat, error) {
	return c.SeatCreateCtx(context.Background(), req)
}

func (c *Client) SeatCreateCtx(ctx context.Context, req apitypes.SeatCreateRequest) (*apitypes.Seat, error) {
	var payload any
	if req.Names != nil || req.Keymap != "" {
		payload = req
	}
	raw, err := c.transport.DoCtx(ctx, "seat/create", payload, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.Seat](raw)
}

// SeatRemove removes a seat. Its followers see their streams end.
func (c *Client) SeatRemove(id uint32) (*apitypes.SeatRemoveResponse, error) {
	return c.SeatRemoveCtx(context.Background(), id)
}

func (c *Client) SeatRemoveCtx(ctx context.Context, id uint32) (*apitypes.SeatRemoveResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "seat/remove", strconv.FormatUint(uint64(id), 10), nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.SeatRemoveResponse](raw)
}

// SeatKeymap returns the keymap text of a seat and its digest.
func (c *Client) SeatKeymap(id uint32) (*apitypes.SeatKeymapResponse, error) {
	return c.SeatKeymapCtx(context.Background(), id)
}

func (c *Client) SeatKeymapCtx(ctx context.Context, id uint32) (*apitypes.SeatKeymapResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "seat/{id}/keymap", nil, seatParams(id))
	if err != nil {
		return nil, err
	}
	return parse[apitypes.SeatKeymapResponse](raw)
}

// SeatKey sends a key event to a seat. key is an evdev name ("KEY_A"), an
// evdev number, "xkb:<keycode>" or "hid:<usage>".
func (c *Client) SeatKey(id uint32, key string, dir xkb.KeyDirection) (*apitypes.SeatKeyResponse, error) {
	return c.SeatKeyCtx(context.Background(), id, key, dir)
}

func (c *Client) SeatKeyCtx(ctx context.Context, id uint32, key string, dir xkb.KeyDirection) (*apitypes.SeatKeyResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "seat/{id}/key", key+" "+dir.String(), seatParams(id))
	if err != nil {
		return nil, err
	}
	return parse[apitypes.SeatKeyResponse](raw)
}

// SeatState returns the current state of a seat.
func (c *Client) SeatState(id uint32) (*apitypes.ModifiersEvent, error) {
	return c.SeatStateCtx(context.Background(), id)
}

func (c *Client) SeatStateCtx(ctx context.Context, id uint32) (*apitypes.ModifiersEvent, error) {
	raw, err := c.transport.DoCtx(ctx, "seat/{id}/state", nil, seatParams(id))
	if err != nil {
		return nil, err
	}
	return parse[apitypes.ModifiersEvent](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
