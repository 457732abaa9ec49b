package apiclient

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	apitypes "github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/seat"
	"github.com/Alia5/goxkb/xkb"
)

var (
	// ErrKeymapMismatch means the follower's keymap is not the seat's.
	ErrKeymapMismatch = errors.New("keymap does not match the seat")
	// ErrOutOfSync means an event was skipped; the follower must resync.
	ErrOutOfSync = errors.New("event serial out of sequence")
)

// EventStream is an open seat/{id}/events stream. The first event is the
// seat's state when the stream opened.
type EventStream struct {
	SeatID uint32

	conn net.Conn
	r    *bufio.Reader

	closeOnce sync.Once
	stop      func() bool
}

// OpenEvents connects to the event stream of a seat. Cancelling ctx closes
// the stream.
func (c *Client) OpenEvents(ctx context.Context, id uint32) (*EventStream, error) {
	if c.transport.mock != nil {
		return nil, fmt.Errorf("stream connections not supported with mock transport")
	}
	conn, err := c.transport.dial(ctx, fmt.Sprintf("seat/%d/events", id), nil)
	if err != nil {
		return nil, err
	}
	s := &EventStream{SeatID: id, conn: conn, r: bufio.NewReader(conn)}
	s.stop = context.AfterFunc(ctx, func() { _ = s.Close() })
	return s, nil
}

// Next blocks for the next event. It returns io.EOF once the server ends
// the stream.
func (s *EventStream) Next() (*apitypes.ModifiersEvent, error) {
	line, err := s.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) == "" {
			return nil, io.EOF
		}
		if line == "" {
			return nil, err
		}
	}
	return parse[apitypes.ModifiersEvent](strings.TrimSuffix(line, "\n"))
}

// Close closes the stream connection.
func (s *EventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		err = s.conn.Close()
	})
	return err
}

// Apply feeds ev into state. It returns the components that changed.
func Apply(state *xkb.State, ev *apitypes.ModifiersEvent) xkb.StateComponent {
	return state.UpdateMask(
		keymap.ModMask(ev.DepressedMods),
		keymap.ModMask(ev.LatchedMods),
		keymap.ModMask(ev.LockedMods),
		keymap.LayoutIndex(ev.DepressedLayout),
		keymap.LayoutIndex(ev.LatchedLayout),
		keymap.LayoutIndex(ev.LockedLayout),
	)
}

// Follow mirrors a seat into state until ctx is done or the seat goes
// away. state must have been created from a keymap whose text is the
// seat's keymap text; Follow checks the digest before applying anything.
// state must not be used concurrently while Follow runs unless fn is the
// only reader; fn, if not nil, is called after each event is applied.
//
// Follow returns nil when ctx is cancelled and io.EOF when the server
// ends the stream.
func (c *Client) Follow(ctx context.Context, id uint32, state *xkb.State, fn func(ev *apitypes.ModifiersEvent, changed xkb.StateComponent)) error {
	km, err := c.SeatKeymapCtx(ctx, id)
	if err != nil {
		return err
	}
	text, err := state.Keymap().Text()
	if err != nil {
		return fmt.Errorf("serialize keymap: %w", err)
	}
	if seat.Digest(text) != km.Digest {
		return ErrKeymapMismatch
	}

	stream, err := c.OpenEvents(ctx, id)
	if err != nil {
		return err
	}
	defer stream.Close()

	first := true
	var last uint64
	for {
		ev, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !first && ev.Serial != last+1 {
			return fmt.Errorf("%w: got %d after %d", ErrOutOfSync, ev.Serial, last)
		}
		first, last = false, ev.Serial
		changed := Apply(state, ev)
		if fn != nil {
			fn(ev, changed)
		}
	}
}
