package xkb

import (
	"sync/atomic"

	"github.com/Alia5/goxkb/keymap"
)

// State tracks the modifiers, layouts and LEDs of one keyboard. It is not
// safe for concurrent mutation; concurrent queries without a concurrent
// update are fine.
//
// A State is driven either by key events (UpdateKey) or by serialized
// masks from another State (UpdateMask), never both.
type State struct {
	km       *keymap.Keymap
	released atomic.Bool

	baseMods    keymap.ModMask
	latchedMods keymap.ModMask
	lockedMods  keymap.ModMask
	mods        keymap.ModMask

	baseGroup    int32
	latchedGroup int32
	lockedGroup  int32
	group        int32

	leds keymap.LEDMask

	filters []*filter
	// setMods and clearMods collect what the filters of one event want
	// done to the depressed modifiers.
	setMods     keymap.ModMask
	clearMods   keymap.ModMask
	modKeyCount [keymap.MaxMods]int
}

// Components is a copy of every state component.
type Components struct {
	DepressedMods   keymap.ModMask     `json:"depressedMods"`
	LatchedMods     keymap.ModMask     `json:"latchedMods"`
	LockedMods      keymap.ModMask     `json:"lockedMods"`
	EffectiveMods   keymap.ModMask     `json:"effectiveMods"`
	DepressedLayout int32              `json:"depressedLayout"`
	LatchedLayout   int32              `json:"latchedLayout"`
	LockedLayout    int32              `json:"lockedLayout"`
	EffectiveLayout keymap.LayoutIndex `json:"effectiveLayout"`
	LEDs            keymap.LEDMask     `json:"leds"`
}

// NewState returns a zeroed State for km, holding a reference to it.
func NewState(km *keymap.Keymap) *State {
	s := &State{km: km.Ref()}
	s.updateDerived()
	return s
}

// Keymap returns the keymap the State was created with. The caller does
// not get a reference of its own.
func (s *State) Keymap() *keymap.Keymap { return s.km }

// Unref drops the State's keymap reference. Further calls do nothing.
func (s *State) Unref() {
	if s.released.CompareAndSwap(false, true) {
		s.km.Unref()
	}
}

// Components returns the current state.
func (s *State) Components() Components {
	return Components{
		DepressedMods:   s.baseMods,
		LatchedMods:     s.latchedMods,
		LockedMods:      s.lockedMods,
		EffectiveMods:   s.mods,
		DepressedLayout: s.baseGroup,
		LatchedLayout:   s.latchedGroup,
		LockedLayout:    s.lockedGroup,
		EffectiveLayout: keymap.LayoutIndex(s.group),
		LEDs:            s.leds,
	}
}

// UpdateKey applies a key press or release and reports which components
// changed. Every press must eventually be followed by one release of the
// same key; an unbalanced sequence leaves modifiers stuck until the
// missing events arrive.
//
// Query the keysyms of the key before calling UpdateKey for it, since the
// update may change the modifiers that select them.
func (s *State) UpdateKey(kc keymap.Keycode, dir KeyDirection) StateComponent {
	if _, err := s.km.KeyName(kc); err != nil {
		return 0
	}
	prev := s.Components()

	s.setMods, s.clearMods = 0, 0
	s.applyFilters(kc, dir)

	for i := range keymap.MaxMods {
		bit := keymap.ModMask(1) << i
		if s.setMods&bit != 0 {
			s.modKeyCount[i]++
			s.baseMods |= bit
		}
	}
	for i := range keymap.MaxMods {
		bit := keymap.ModMask(1) << i
		if s.clearMods&bit != 0 {
			s.modKeyCount[i]--
			if s.modKeyCount[i] <= 0 {
				s.baseMods &^= bit
				s.modKeyCount[i] = 0
			}
		}
	}
	s.setMods, s.clearMods = 0, 0

	s.updateDerived()
	return changedComponents(prev, s.Components())
}

// UpdateMask replaces the state with components serialized from another
// State. Modifier bits beyond the keymap's modifiers are dropped and
// virtual modifiers are resolved to the real ones they map to.
func (s *State) UpdateMask(depressedMods, latchedMods, lockedMods keymap.ModMask,
	depressedLayout, latchedLayout, lockedLayout keymap.LayoutIndex,
) StateComponent {
	prev := s.Components()

	s.baseMods = s.effectiveMask(depressedMods)
	s.latchedMods = s.effectiveMask(latchedMods)
	s.lockedMods = s.effectiveMask(lockedMods)

	s.baseGroup = int32(depressedLayout)
	s.latchedGroup = int32(latchedLayout)
	s.lockedGroup = int32(lockedLayout)

	s.updateDerived()
	return changedComponents(prev, s.Components())
}

// effectiveMask keeps the real modifiers of mask and adds the mappings of
// the virtual ones.
func (s *State) effectiveMask(mask keymap.ModMask) keymap.ModMask {
	n := s.km.NumMods()
	if n < keymap.MaxMods {
		mask &= keymap.ModMask(1)<<n - 1
	}
	out := mask & keymap.RealModsMask
	for i := keymap.ModIndex(keymap.NumRealMods); i < n; i++ {
		if mask&(1<<i) != 0 {
			m, _ := s.km.ModMapping(i)
			out |= m
		}
	}
	return out
}

func (s *State) updateDerived() {
	s.mods = s.baseMods | s.latchedMods | s.lockedMods

	n := int32(s.km.NumLayouts())
	s.lockedGroup = wrapGroup(s.lockedGroup, n)
	s.group = wrapGroup(s.baseGroup+s.latchedGroup+s.lockedGroup, n)

	s.updateLEDs()
}

func wrapGroup(g, n int32) int32 {
	if n <= 0 {
		return 0
	}
	g %= n
	if g < 0 {
		g += n
	}
	return g
}

func (s *State) updateLEDs() {
	s.leds = 0
	for i, led := range s.km.LEDs() {
		if led.Name == "" {
			continue
		}
		bit := keymap.LEDMask(1) << i

		if led.WhichMods != 0 && led.Mods.Mask != 0 {
			var mask keymap.ModMask
			if led.WhichMods&keymap.WhichBase != 0 {
				mask |= s.baseMods
			}
			if led.WhichMods&keymap.WhichLatched != 0 {
				mask |= s.latchedMods
			}
			if led.WhichMods&keymap.WhichLocked != 0 {
				mask |= s.lockedMods
			}
			if led.WhichMods&(keymap.WhichEffective|keymap.WhichCompat) != 0 {
				mask |= s.mods
			}
			if led.Mods.Mask&mask != 0 {
				s.leds |= bit
				continue
			}
		}

		if led.WhichGroups != 0 && led.Groups != 0 {
			var mask uint32
			if led.WhichGroups&(keymap.WhichEffective|keymap.WhichCompat) != 0 {
				mask |= groupBit(s.group)
			}
			if led.WhichGroups&keymap.WhichBase != 0 {
				mask |= groupBit(s.baseGroup)
			}
			if led.WhichGroups&keymap.WhichLatched != 0 {
				mask |= groupBit(s.latchedGroup)
			}
			if led.WhichGroups&keymap.WhichLocked != 0 {
				mask |= groupBit(s.lockedGroup)
			}
			if led.Groups&mask != 0 {
				s.leds |= bit
			}
		}
	}
}

// groupBit is the bit of a layout in an LED group mask; layout values
// outside the mask contribute nothing.
func groupBit(g int32) uint32 {
	if g < 0 || g >= 32 {
		return 0
	}
	return 1 << g
}

func changedComponents(a, b Components) StateComponent {
	var c StateComponent
	if a.DepressedMods != b.DepressedMods {
		c |= ModsDepressed
	}
	if a.LatchedMods != b.LatchedMods {
		c |= ModsLatched
	}
	if a.LockedMods != b.LockedMods {
		c |= ModsLocked
	}
	if a.EffectiveMods != b.EffectiveMods {
		c |= ModsEffective
	}
	if a.DepressedLayout != b.DepressedLayout {
		c |= LayoutDepressed
	}
	if a.LatchedLayout != b.LatchedLayout {
		c |= LayoutLatched
	}
	if a.LockedLayout != b.LockedLayout {
		c |= LayoutLocked
	}
	if a.EffectiveLayout != b.EffectiveLayout {
		c |= LayoutEffective
	}
	if a.LEDs != b.LEDs {
		c |= LEDs
	}
	return c
}

// SerializeMods folds the selected modifier components into one mask. If
// ModsEffective is selected the effective mask is returned as is.
func (s *State) SerializeMods(which StateComponent) keymap.ModMask {
	if which&ModsEffective != 0 {
		return s.mods
	}
	var m keymap.ModMask
	if which&ModsDepressed != 0 {
		m |= s.baseMods
	}
	if which&ModsLatched != 0 {
		m |= s.latchedMods
	}
	if which&ModsLocked != 0 {
		m |= s.lockedMods
	}
	return m
}

// SerializeLayout folds the selected layout components into one value. If
// LayoutEffective is selected the effective layout is returned as is;
// otherwise the selected components are summed, which may wrap for
// negative values.
func (s *State) SerializeLayout(which StateComponent) keymap.LayoutIndex {
	if which&LayoutEffective != 0 {
		return keymap.LayoutIndex(s.group)
	}
	var g int32
	if which&LayoutDepressed != 0 {
		g += s.baseGroup
	}
	if which&LayoutLatched != 0 {
		g += s.latchedGroup
	}
	if which&LayoutLocked != 0 {
		g += s.lockedGroup
	}
	return keymap.LayoutIndex(g)
}

// ActiveLEDs returns the mask of lit LEDs.
func (s *State) ActiveLEDs() keymap.LEDMask { return s.leds }
