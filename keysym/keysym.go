// Package keysym maps keysyms, the symbolic meanings a key can produce, to
// their canonical names and to Unicode text.
package keysym

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Keysym identifies a symbolic key meaning. Values are 29 bits wide.
type Keysym uint32

// MaxNameLength bounds keysym names, terminator included.
const MaxNameLength = 64

const (
	NoSymbol Keysym = 0

	maxValue       Keysym = 0x1fffffff
	unicodeOffset  Keysym = 0x01000000
	unicodeMin     Keysym = 0x01000100
	unicodeMax     Keysym = 0x0110ffff
	maxUnicodeRune rune   = 0x10ffff
)

var (
	// ErrInvalidKeysym is returned when a value is outside the keysym space.
	ErrInvalidKeysym = errors.New("invalid keysym")
	// ErrBufferTooSmall is returned when a name does not fit MaxNameLength.
	ErrBufferTooSmall = errors.New("keysym name exceeds buffer")
)

// Flags alter FromName matching.
type Flags uint32

const (
	NoFlags         Flags = 0
	CaseInsensitive Flags = 1 << 0
)

// Name returns the canonical name of ks. Keysyms without a table entry are
// named by value: U+XXXX for Unicode keysyms and 0x%08x otherwise.
func (ks Keysym) Name() (string, error) {
	if ks > maxValue {
		return "", fmt.Errorf("%w: 0x%08x", ErrInvalidKeysym, uint32(ks))
	}
	name, ok := nameOf(ks)
	if !ok {
		switch {
		case ks >= unicodeMin && ks <= unicodeMax:
			if ks&0xff0000 != 0 {
				name = fmt.Sprintf("U%08X", uint32(ks&0xffffff))
			} else {
				name = fmt.Sprintf("U%04X", uint32(ks&0xffffff))
			}
		default:
			name = fmt.Sprintf("0x%08x", uint32(ks))
		}
	}
	if len(name)+1 > MaxNameLength {
		return "", fmt.Errorf("%w: %d bytes", ErrBufferTooSmall, len(name)+1)
	}
	return name, nil
}

// String implements fmt.Stringer.
func (ks Keysym) String() string {
	name, err := ks.Name()
	if err != nil {
		return fmt.Sprintf("0x%08x", uint32(ks))
	}
	return name
}

// FromName resolves a keysym name. Unknown names yield NoSymbol.
//
// Besides table names it accepts Unicode notation ("U20AC", "U+20AC") and
// raw hexadecimal values ("0x1008ff13"). With CaseInsensitive, a lower case
// keysym wins over its upper case form when both match.
func FromName(name string, flags Flags) Keysym {
	if name == "" {
		return NoSymbol
	}
	if ks, ok := lookupName(name); ok {
		return ks
	}
	if flags&CaseInsensitive != 0 {
		if ks, ok := lookupNameFold(name); ok {
			return ks
		}
	}

	switch {
	case name[0] == 'U' || (flags&CaseInsensitive != 0 && name[0] == 'u'):
		hex := strings.TrimPrefix(name[1:], "+")
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || hex == "" {
			return NoSymbol
		}
		r := rune(v)
		switch {
		case r < 0x20 || (r > 0x7e && r < 0xa0):
			return NoSymbol
		case r < 0x100:
			return Keysym(r)
		case r > maxUnicodeRune:
			return NoSymbol
		}
		return Keysym(r) | unicodeOffset
	case len(name) > 2 && name[0] == '0' && (name[1] == 'x' || name[1] == 'X'):
		v, err := strconv.ParseUint(name[2:], 16, 32)
		if err != nil || Keysym(v) > maxValue {
			return NoSymbol
		}
		return Keysym(v)
	}
	return NoSymbol
}

// IsKeypad reports whether ks is on the keypad block (KP_Space to KP_Equal).
func (ks Keysym) IsKeypad() bool {
	return ks >= KPSpace && ks <= KPEqual
}

// IsModifier reports whether ks is a modifier, lock or group switch keysym.
func (ks Keysym) IsModifier() bool {
	return (ks >= ShiftL && ks <= HyperR) ||
		(ks >= ISOLock && ks <= ISOLevel5Lock) ||
		ks == ModeSwitch ||
		ks == NumLock
}
