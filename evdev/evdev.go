// Package evdev names Linux input key codes and converts them to the XKB
// keycodes the evdev keycodes file assigns.
package evdev

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Alia5/goxkb/keymap"
)

// Code is a Linux input event key code.
type Code uint16

// XKBOffset is the distance between an evdev code and its XKB keycode.
const XKBOffset = 8

var ErrUnknownKey = errors.New("unknown key")

// ToXKB returns the XKB keycode of c.
func ToXKB(c Code) keymap.Keycode { return keymap.Keycode(c) + XKBOffset }

// FromXKB returns the evdev code of an XKB keycode.
func FromXKB(kc keymap.Keycode) (Code, bool) {
	if kc < XKBOffset || kc-XKBOffset > 0xffff {
		return 0, false
	}
	return Code(kc - XKBOffset), true
}

// XKB is shorthand for ToXKB(c).
func (c Code) XKB() keymap.Keycode { return ToXKB(c) }

// String returns the KEY_ name of c, or its number if it has none.
func (c Code) String() string {
	if n, ok := codeName(c); ok {
		return n
	}
	return strconv.Itoa(int(c))
}

// Lookup finds a code by name. The KEY_ prefix is optional and case is
// ignored, so "KEY_A", "key_a" and "a" all name the same key. Names are
// only known on Linux; elsewhere keys are given by number.
func Lookup(name string) (Code, bool) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "KEY_") {
		n = "KEY_" + n
	}
	return codeByName(n)
}

// Parse reads a key given as an evdev name ("KEY_A"), an evdev number
// ("30"), an XKB keycode ("xkb:38") or a HID usage ("hid:0x04"), and
// returns its XKB keycode.
func Parse(s string) (keymap.Keycode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return keymap.KeycodeInvalid, fmt.Errorf("%w: empty key", ErrUnknownKey)
	}
	prefix, rest, found := strings.Cut(s, ":")
	if found {
		switch strings.ToLower(prefix) {
		case "xkb":
			n, err := strconv.ParseUint(rest, 0, 32)
			if err != nil {
				return keymap.KeycodeInvalid, fmt.Errorf("%w: %q: %w", ErrUnknownKey, s, err)
			}
			return keymap.Keycode(n), nil
		case "hid":
			n, err := strconv.ParseUint(rest, 0, 8)
			if err != nil {
				return keymap.KeycodeInvalid, fmt.Errorf("%w: %q: %w", ErrUnknownKey, s, err)
			}
			c, ok := FromHID(uint8(n))
			if !ok {
				return keymap.KeycodeInvalid, fmt.Errorf("%w: no key for HID usage %#02x", ErrUnknownKey, n)
			}
			return c.XKB(), nil
		case "evdev":
			s = rest
		default:
			return keymap.KeycodeInvalid, fmt.Errorf("%w: %q", ErrUnknownKey, s)
		}
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return Code(n).XKB(), nil
	}
	if c, ok := Lookup(s); ok {
		return c.XKB(), nil
	}
	return keymap.KeycodeInvalid, fmt.Errorf("%w: %q", ErrUnknownKey, s)
}
