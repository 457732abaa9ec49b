package xkb

import (
	"strconv"
	"strings"
)

// KeyDirection says whether a key went down or up.
type KeyDirection uint8

const (
	KeyUp KeyDirection = iota
	KeyDown
)

func (d KeyDirection) String() string {
	if d == KeyDown {
		return "down"
	}
	return "up"
}

// ParseKeyDirection accepts "down"/"press" and "up"/"release".
func ParseKeyDirection(s string) (KeyDirection, bool) {
	switch strings.ToLower(s) {
	case "down", "press", "pressed":
		return KeyDown, true
	case "up", "release", "released":
		return KeyUp, true
	}
	return KeyUp, false
}

// StateComponent is a set of state components, used both to report what
// an update changed and to select what a query looks at.
type StateComponent uint32

const (
	ModsDepressed StateComponent = 1 << iota
	ModsLatched
	ModsLocked
	ModsEffective
	LayoutDepressed
	LayoutLatched
	LayoutLocked
	LayoutEffective
	LEDs
)

var componentNames = []string{
	"ModsDepressed",
	"ModsLatched",
	"ModsLocked",
	"ModsEffective",
	"LayoutDepressed",
	"LayoutLatched",
	"LayoutLocked",
	"LayoutEffective",
	"LEDs",
}

// Has reports whether every component of o is in c.
func (c StateComponent) Has(o StateComponent) bool { return c&o == o }

func (c StateComponent) Union(o StateComponent) StateComponent { return c | o }

func (c StateComponent) Intersect(o StateComponent) StateComponent { return c & o }

// String names the components in bit order, joined with "|".
func (c StateComponent) String() string { return flagString(uint32(c), componentNames) }

// StateMatch selects how a set of modifiers is compared to the state.
type StateMatch uint32

const (
	// MatchAny is satisfied if any of the given entries is active.
	MatchAny StateMatch = 1 << 0
	// MatchAll is satisfied if all of the given entries are active.
	MatchAll StateMatch = 1 << 1
	// MatchNonExclusive allows entries outside the set to be active too.
	MatchNonExclusive StateMatch = 1 << 16
)

func (m StateMatch) Has(o StateMatch) bool { return m&o == o }

func (m StateMatch) Union(o StateMatch) StateMatch { return m | o }

func (m StateMatch) Intersect(o StateMatch) StateMatch { return m & o }

func (m StateMatch) String() string {
	names := make([]string, 17)
	names[0], names[1], names[16] = "MatchAny", "MatchAll", "MatchNonExclusive"
	return flagString(uint32(m), names)
}

func flagString(v uint32, names []string) string {
	if v == 0 {
		return "0"
	}
	var parts []string
	for i := 0; i < 32; i++ {
		bit := uint32(1) << i
		if v&bit == 0 {
			continue
		}
		if i < len(names) && names[i] != "" {
			parts = append(parts, names[i])
		} else {
			parts = append(parts, "0x"+strconv.FormatUint(uint64(bit), 16))
		}
	}
	return strings.Join(parts, "|")
}
