// Package seat keeps authoritative keyboard states that other processes
// follow. A Seat owns a keymap and a master xkb.State; every key event it
// applies produces an Event holding the serialized state, which
// subscribers feed into their own State with UpdateMask.
package seat

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/xkb"
)

var (
	ErrClosed     = errors.New("seat closed")
	ErrUnknownKey = errors.New("key not in keymap")
	ErrNotFound   = errors.New("seat not found")
)

// Event is one state change of a seat. Serial increases by one per event;
// the snapshot a subscriber starts with carries the current serial.
type Event struct {
	Serial  uint64
	Changed xkb.StateComponent
	State   xkb.Components
}

// Digest returns the hex blake2b-256 sum of keymap text. Followers compare
// it with the digest of the text they compiled.
func Digest(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Seat is a keymap with one master State. It is safe for concurrent use.
type Seat struct {
	id    uint32
	names *rules.Names

	mu      sync.Mutex
	km      *keymap.Keymap
	state   *xkb.State
	text    string
	digest  string
	serial  uint64
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// New creates a seat for km, taking a reference of its own. names records
// what the keymap was built from and may be nil.
func New(id uint32, km *keymap.Keymap, names *rules.Names) (*Seat, error) {
	text, err := km.Text()
	if err != nil {
		return nil, fmt.Errorf("serialize keymap: %w", err)
	}
	s := &Seat{
		id:     id,
		km:     km,
		text:   text,
		digest: Digest(text),
		subs:   make(map[int]chan Event),
	}
	if names != nil {
		n := *names
		s.names = &n
	}
	s.state = xkb.NewState(km)
	return s, nil
}

func (s *Seat) ID() uint32 { return s.id }

// Names returns the names the keymap was built from, or nil.
func (s *Seat) Names() *rules.Names { return s.names }

// Keymap returns the seat's keymap. It stays valid until the seat is closed.
func (s *Seat) Keymap() *keymap.Keymap { return s.km }

// Text returns the serialized keymap and its digest.
func (s *Seat) Text() (text, digest string) { return s.text, s.digest }

// Layouts returns the layout names of the keymap.
func (s *Seat) Layouts() []string {
	out := make([]string, 0, s.km.NumLayouts())
	for i := range s.km.NumLayouts() {
		name, _ := s.km.LayoutName(i)
		out = append(out, name)
	}
	return out
}

// Key applies a key event to the master state and publishes the result.
// An event that changes nothing is still published, so followers see
// every serial.
func (s *Seat) Key(kc keymap.Keycode, dir xkb.KeyDirection) (Event, error) {
	if _, err := s.km.KeyName(kc); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrUnknownKey, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Event{}, ErrClosed
	}
	changed := s.state.UpdateKey(kc, dir)
	s.serial++
	ev := Event{Serial: s.serial, Changed: changed, State: s.state.Components()}
	s.publish(ev)
	return ev, nil
}

// publish hands ev to every subscriber. A subscriber whose buffer is full
// has fallen behind and is dropped; its channel is closed.
func (s *Seat) publish(ev Event) {
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(s.subs, id)
		}
	}
}

// Snapshot returns the current state as an event with no changes.
func (s *Seat) Snapshot() Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Event{Serial: s.serial, State: s.state.Components()}
}

// Subscribe returns a channel receiving the current snapshot followed by
// every later event, and a function ending the subscription. The channel
// is closed when the subscription ends, when the seat closes, or when the
// subscriber falls more than buffer events behind.
func (s *Seat) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer+1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	ch <- Event{Serial: s.serial, State: s.state.Components()}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Seat) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Closed reports whether Close was called.
func (s *Seat) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close ends every subscription and releases the keymap. Further key
// events fail with ErrClosed.
func (s *Seat) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.state.Unref()
}
