package keysym

import (
	"cmp"
	"slices"
	"sync"
	"unicode"
	"unicode/utf8"
)

func legacyToRune(ks Keysym) rune {
	i, ok := slices.BinarySearchFunc(ucsEntries[:], ks, func(e ucsEntry, ks Keysym) int {
		return cmp.Compare(e.ks, ks)
	})
	if !ok {
		return 0
	}
	return ucsEntries[i].r
}

// The lowest keysym wins when several produce the same code point.
var legacyByRune = sync.OnceValue(func() map[rune]Keysym {
	m := make(map[rune]Keysym, len(ucsEntries))
	for _, e := range ucsEntries {
		if _, ok := m[e.r]; !ok {
			m[e.r] = e.ks
		}
	}
	return m
})

// UTF32 returns the code point ks produces, or 0 if it produces none.
func (ks Keysym) UTF32() rune {
	switch {
	case (ks >= 0x20 && ks <= 0x7e) || (ks >= 0xa0 && ks <= 0xff):
		return rune(ks)
	case ks == KPSpace:
		return ' '
	case (ks >= BackSpace && ks <= Clear) ||
		(ks >= KPMultiply && ks <= KP9) ||
		ks == Return || ks == Escape || ks == Delete ||
		ks == KPTab || ks == KPEnter || ks == KPEqual:
		return rune(ks & 0x7f)
	case ks >= unicodeOffset && ks <= unicodeMax:
		return rune(ks - unicodeOffset)
	}
	return legacyToRune(ks)
}

// UTF8 returns the text ks produces; empty when it produces none.
func (ks Keysym) UTF8() string {
	r := ks.UTF32()
	if r == 0 || !utf8.ValidRune(r) {
		return ""
	}
	return string(r)
}

// FromRune returns the keysym producing r, preferring legacy keysyms over
// the Unicode keysym range.
func FromRune(r rune) Keysym {
	switch {
	case (r >= 0x20 && r <= 0x7e) || (r >= 0xa0 && r <= 0xff):
		return Keysym(r)
	case (r >= 0x08 && r <= 0x0b) || r == 0x0d || r == 0x1b:
		return Keysym(r) | 0xff00
	case r == 0x7f:
		return Delete
	case r < 0, r > maxUnicodeRune,
		r >= 0xd800 && r <= 0xdfff,
		r >= 0xfdd0 && r <= 0xfdef,
		r&0xfffe == 0xfffe:
		return NoSymbol
	}
	if ks, ok := legacyByRune()[r]; ok {
		return ks
	}
	return Keysym(r) | unicodeOffset
}

func convertCase(ks Keysym) (lower, upper Keysym) {
	lower, upper = ks, ks
	if ks == Ssharp || (ks >= 0xff00 && ks <= 0xffff) {
		return
	}
	r := ks.UTF32()
	if r == 0 {
		return
	}
	if lr := unicode.ToLower(r); lr != r {
		lower = FromRune(lr)
	}
	if ur := unicode.ToUpper(r); ur != r {
		upper = FromRune(ur)
	}
	return
}

// ToUpper returns the upper case form of ks, or ks itself.
func (ks Keysym) ToUpper() Keysym {
	_, upper := convertCase(ks)
	return upper
}

// ToLower returns the lower case form of ks, or ks itself.
func (ks Keysym) ToLower() Keysym {
	lower, _ := convertCase(ks)
	return lower
}

// IsLower reports whether ks is the lower case form of a cased pair.
func (ks Keysym) IsLower() bool {
	lower, upper := convertCase(ks)
	return lower != upper && ks == lower
}

// IsUpper reports whether ks is the upper case form of a cased pair.
func (ks Keysym) IsUpper() bool {
	lower, upper := convertCase(ks)
	return lower != upper && ks == upper
}
