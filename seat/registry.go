package seat

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/xkb"
)

var ErrAmbiguousSource = errors.New("both names and keymap text given")

// Registry owns the seats of a server. Seats get the lowest free ID,
// starting at 1.
type Registry struct {
	ctx    *xkb.Context
	logger *slog.Logger

	// compileMu serializes use of ctx; a Context is not safe for
	// concurrent compilation.
	compileMu sync.Mutex

	mu    sync.Mutex
	seats map[uint32]*Seat
}

func NewRegistry(ctx *xkb.Context, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		ctx:    ctx,
		logger: logger,
		seats:  make(map[uint32]*Seat),
	}
}

// Create compiles a keymap from names or from keymap text and registers a
// seat for it. With neither given the context's default names are used.
func (r *Registry) Create(names *rules.Names, text string) (*Seat, error) {
	if names != nil && text != "" {
		return nil, ErrAmbiguousSource
	}
	km, err := r.compile(names, text)
	if err != nil {
		return nil, err
	}
	defer km.Unref()

	r.mu.Lock()
	id := r.nextFreeID()
	s, err := New(id, km, names)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.seats[id] = s
	r.mu.Unlock()

	r.logger.Info("Seat created", "seat", id, "layouts", s.Layouts())
	return s, nil
}

func (r *Registry) compile(names *rules.Names, text string) (*keymap.Keymap, error) {
	r.compileMu.Lock()
	defer r.compileMu.Unlock()
	if text != "" {
		return r.ctx.KeymapFromString(text)
	}
	if names == nil {
		names = &rules.Names{}
	}
	return r.ctx.KeymapFromNames(names)
}

// nextFreeID must be called with r.mu held.
func (r *Registry) nextFreeID() uint32 {
	id := uint32(1)
	for {
		if _, ok := r.seats[id]; !ok {
			return id
		}
		id++
	}
}

// Get returns the seat with the given ID.
func (r *Registry) Get(id uint32) (*Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.seats[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s, nil
}

// Remove unregisters a seat and closes it, ending its subscriptions.
func (r *Registry) Remove(id uint32) error {
	r.mu.Lock()
	s, ok := r.seats[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(r.seats, id)
	r.mu.Unlock()

	if n := s.Subscribers(); n > 0 {
		r.logger.Warn(fmt.Sprintf("Removing seat %d with %d follower(s) attached", id, n))
	}
	s.Close()
	return nil
}

// List returns the seats ordered by ID.
func (r *Registry) List() []*Seat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Seat, 0, len(r.seats))
	for _, s := range r.seats {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Seat) int { return int(a.id) - int(b.id) })
	return out
}

// Close removes every seat.
func (r *Registry) Close() {
	r.mu.Lock()
	seats := r.seats
	r.seats = make(map[uint32]*Seat)
	r.mu.Unlock()
	for _, s := range seats {
		s.Close()
	}
}
