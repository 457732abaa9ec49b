package xkb

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

// maxUTF8Len bounds the text of one key, terminator included.
const maxUTF8Len = 64

// KeyLayout returns the layout kc uses in the current state.
func (s *State) KeyLayout(kc keymap.Keycode) (keymap.LayoutIndex, error) {
	if _, err := s.km.KeyName(kc); err != nil {
		return keymap.LayoutInvalid, fmt.Errorf("%w: %w", keymap.ErrInvalidLayoutIndex, err)
	}
	l := s.km.KeyLayout(kc, s.group)
	if l == keymap.LayoutInvalid {
		return l, fmt.Errorf("%w: key %d has no layouts", keymap.ErrInvalidLayoutIndex, kc)
	}
	return l, nil
}

// KeyLevel returns the level of kc in layout selected by the current
// modifiers.
func (s *State) KeyLevel(kc keymap.Keycode, layout keymap.LayoutIndex) (keymap.LevelIndex, error) {
	if _, err := s.km.KeyName(kc); err != nil {
		return keymap.LevelInvalid, fmt.Errorf("%w: %w", keymap.ErrInvalidLayoutIndex, err)
	}
	if layout >= s.km.NumLayoutsForKey(kc) {
		return keymap.LevelInvalid, fmt.Errorf("%w: key %d has %d layouts, asked for %d",
			keymap.ErrInvalidLayoutIndex, kc, s.km.NumLayoutsForKey(kc), layout)
	}
	return s.km.KeyLevel(kc, layout, s.mods), nil
}

// KeySyms returns the keysyms kc produces in the current state, without
// any transformation. It returns nil for a key that produces nothing.
func (s *State) KeySyms(kc keymap.Keycode) []keysym.Keysym {
	layout, err := s.KeyLayout(kc)
	if err != nil {
		return nil
	}
	level, err := s.KeyLevel(kc, layout)
	if err != nil {
		return nil
	}
	syms, err := s.km.KeySymsByLevel(kc, layout, level)
	if err != nil {
		return nil
	}
	return syms
}

// KeyOneSym returns the single keysym of kc, capitalized if Caps Lock is
// active and not consumed by the key. Keys producing zero or several
// keysyms yield NoSymbol.
func (s *State) KeyOneSym(kc keymap.Keycode) keysym.Keysym {
	syms := s.KeySyms(kc)
	if len(syms) != 1 {
		return keysym.NoSymbol
	}
	sym := syms[0]
	if s.capsTransform(kc) {
		sym = sym.ToUpper()
	}
	return sym
}

// KeyUTF8 returns the text kc produces. Capitalization applies as for
// KeyOneSym and an active, unconsumed Control turns single ASCII
// characters into control characters. A key without text yields "".
func (s *State) KeyUTF8(kc keymap.Keycode) (string, error) {
	syms := s.KeySyms(kc)
	if len(syms) == 1 {
		syms = []keysym.Keysym{s.KeyOneSym(kc)}
	}
	var buf []byte
	for _, sym := range syms {
		t := sym.UTF8()
		if t == "" {
			return "", nil
		}
		buf = append(buf, t...)
	}
	if len(buf)+1 > maxUTF8Len {
		return "", fmt.Errorf("%w: key %d text needs %d bytes", keysym.ErrBufferTooSmall, kc, len(buf)+1)
	}
	if !utf8.Valid(buf) {
		return "", nil
	}
	if len(buf) == 1 && buf[0] <= 0x7f && s.ctrlTransform(kc) {
		buf[0] = toControl(buf[0])
	}
	return string(buf), nil
}

// KeyUTF32 returns the character kc produces, or 0 if it produces none or
// more than one keysym.
func (s *State) KeyUTF32(kc keymap.Keycode) rune {
	sym := s.KeyOneSym(kc)
	r := sym.UTF32()
	if r >= 0 && r <= 0x7f && s.ctrlTransform(kc) {
		r = rune(toControl(byte(r)))
	}
	return r
}

func (s *State) capsTransform(kc keymap.Keycode) bool {
	return s.mods&(1<<keymap.ModLock) != 0 && s.KeyConsumedMods(kc)&(1<<keymap.ModLock) == 0
}

func (s *State) ctrlTransform(kc keymap.Keycode) bool {
	return s.mods&(1<<keymap.ModControl) != 0 && s.KeyConsumedMods(kc)&(1<<keymap.ModControl) == 0
}

// toControl maps an ASCII character to the control character typed with
// Control held.
func toControl(c byte) byte {
	switch {
	case (c >= '@' && c < 0x7f) || c == ' ':
		return c & 0x1f
	case c == '2':
		return 0
	case c >= '3' && c <= '7':
		return c - ('3' - 0x1b)
	case c == '8':
		return 0x7f
	case c == '/':
		return '_' & 0x1f
	}
	return c
}

// modBits returns the real modifiers a modifier index stands for.
func (s *State) modBits(idx keymap.ModIndex) (keymap.ModMask, error) {
	return s.km.ModMapping(idx)
}

// ModIndexIsActive reports whether a modifier is active in the selected
// components. A virtual modifier is active when all the real modifiers it
// maps to are; an unmapped one never is.
func (s *State) ModIndexIsActive(idx keymap.ModIndex, which StateComponent) (bool, error) {
	bits, err := s.modBits(idx)
	if err != nil {
		return false, err
	}
	return bits != 0 && s.SerializeMods(which)&bits == bits, nil
}

func (s *State) ModNameIsActive(name string, which StateComponent) (bool, error) {
	idx, err := s.km.ModIndex(name)
	if err != nil {
		return false, err
	}
	return s.ModIndexIsActive(idx, which)
}

// ModIndicesAreActive checks a set of modifiers against the selected
// components. With MatchAny one of them must be active, with MatchAll all
// of them. Unless MatchNonExclusive is given no other modifier may be
// active.
func (s *State) ModIndicesAreActive(idxs []keymap.ModIndex, which StateComponent, match StateMatch) (bool, error) {
	var wanted keymap.ModMask
	unmapped := false
	for _, idx := range idxs {
		bits, err := s.modBits(idx)
		if err != nil {
			return false, err
		}
		if bits == 0 {
			unmapped = true
		}
		wanted |= bits
	}
	if unmapped && !match.Has(MatchAny) {
		return false, nil
	}
	return s.matchMods(which, match, wanted), nil
}

func (s *State) ModNamesAreActive(names []string, which StateComponent, match StateMatch) (bool, error) {
	idxs := make([]keymap.ModIndex, 0, len(names))
	for _, name := range names {
		idx, err := s.km.ModIndex(name)
		if err != nil {
			return false, err
		}
		idxs = append(idxs, idx)
	}
	return s.ModIndicesAreActive(idxs, which, match)
}

func (s *State) matchMods(which StateComponent, match StateMatch, wanted keymap.ModMask) bool {
	active := s.SerializeMods(which)
	if !match.Has(MatchNonExclusive) && active&^wanted != 0 {
		return false
	}
	if match.Has(MatchAny) {
		return active&wanted != 0
	}
	return active&wanted == wanted
}

// LayoutIndexIsActive reports whether idx is the layout of any of the
// selected components.
func (s *State) LayoutIndexIsActive(idx keymap.LayoutIndex, which StateComponent) (bool, error) {
	if idx >= s.km.NumLayouts() {
		return false, fmt.Errorf("%w: %d of %d", keymap.ErrInvalidLayoutIndex, idx, s.km.NumLayouts())
	}
	g := int32(idx)
	active := (which&LayoutEffective != 0 && s.group == g) ||
		(which&LayoutDepressed != 0 && s.baseGroup == g) ||
		(which&LayoutLatched != 0 && s.latchedGroup == g) ||
		(which&LayoutLocked != 0 && s.lockedGroup == g)
	return active, nil
}

func (s *State) LayoutNameIsActive(name string, which StateComponent) (bool, error) {
	idx, err := s.km.LayoutIndex(name)
	if err != nil {
		return false, err
	}
	return s.LayoutIndexIsActive(idx, which)
}

// LEDIndexIsActive reports whether an LED is lit. An LED slot without a
// name is not a valid index.
func (s *State) LEDIndexIsActive(idx keymap.LEDIndex) (bool, error) {
	name, err := s.km.LEDName(idx)
	if err != nil {
		return false, err
	}
	if name == "" {
		return false, fmt.Errorf("%w: LED %d has no name", keymap.ErrInvalidLEDIndex, idx)
	}
	return s.leds&(1<<idx) != 0, nil
}

func (s *State) LEDNameIsActive(name string) (bool, error) {
	idx, err := s.km.LEDIndex(name)
	if err != nil {
		return false, err
	}
	return s.LEDIndexIsActive(idx)
}

// KeyConsumedMods returns the modifiers that take part in choosing kc's
// level in its current layout; they should be ignored when matching
// shortcuts. It returns 0 for an invalid keycode.
func (s *State) KeyConsumedMods(kc keymap.Keycode) keymap.ModMask {
	layout := s.km.KeyLayout(kc, s.group)
	if layout == keymap.LayoutInvalid {
		return 0
	}
	return s.km.KeyConsumedMods(kc, layout, s.mods)
}

// ModIndexIsConsumed reports whether a modifier is consumed by kc. A
// virtual modifier is consumed when all the real modifiers it maps to are.
func (s *State) ModIndexIsConsumed(kc keymap.Keycode, idx keymap.ModIndex) (bool, error) {
	if _, err := s.km.KeyName(kc); err != nil {
		return false, err
	}
	bits, err := s.modBits(idx)
	if err != nil {
		return false, err
	}
	return bits != 0 && s.KeyConsumedMods(kc)&bits == bits, nil
}

// ModMaskRemoveConsumed clears the modifiers kc consumes from mask.
func (s *State) ModMaskRemoveConsumed(kc keymap.Keycode, mask keymap.ModMask) keymap.ModMask {
	if _, err := s.km.KeyName(kc); err != nil {
		return 0
	}
	return mask &^ s.KeyConsumedMods(kc)
}

// IsLookupMiss reports whether err says a name has no match, as opposed
// to an index being out of range.
func IsLookupMiss(err error) bool {
	var le *keymap.LookupError
	return errors.As(err, &le)
}
