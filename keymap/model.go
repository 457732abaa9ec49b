package keymap

import (
	"github.com/Alia5/goxkb/keysym"
)

// Keycode identifies a physical key position.
type Keycode uint32

// ModIndex, LayoutIndex, LevelIndex and LEDIndex are dense indices assigned
// at compile time.
type (
	ModIndex    uint32
	LayoutIndex uint32
	LevelIndex  uint32
	LEDIndex    uint32
)

// ModMask is a bitmask over modifier indices. State masks only carry real
// modifiers (bits 0 to 7).
type ModMask uint32

// LEDMask is a bitmask over LED indices.
type LEDMask uint32

const (
	KeycodeInvalid Keycode     = 0xffffffff
	LayoutInvalid  LayoutIndex = 0xffffffff
	LevelInvalid   LevelIndex  = 0xffffffff
	ModInvalid     ModIndex    = 0xffffffff
	LEDInvalid     LEDIndex    = 0xffffffff

	MaxMods    = 32
	MaxLEDs    = 32
	MaxLayouts = 4
)

// Real modifiers, always present at these indices.
const (
	ModShift ModIndex = iota
	ModLock
	ModControl
	ModMod1
	ModMod2
	ModMod3
	ModMod4
	ModMod5

	NumRealMods = 8
)

// RealModsMask covers the eight real modifiers.
const RealModsMask ModMask = 0xff

// Well-known modifier and LED names.
const (
	ModNameShift = "Shift"
	ModNameCaps  = "Lock"
	ModNameCtrl  = "Control"
	ModNameAlt   = "Mod1"
	ModNameNum   = "Mod2"
	ModNameLogo  = "Mod4"

	LEDNameCaps   = "Caps Lock"
	LEDNameNum    = "Num Lock"
	LEDNameScroll = "Scroll Lock"
)

// RealModNames lists the real modifiers in index order.
var RealModNames = [NumRealMods]string{
	"Shift", "Lock", "Control", "Mod1", "Mod2", "Mod3", "Mod4", "Mod5",
}

// ModKind tells real and virtual modifiers apart.
type ModKind uint8

const (
	ModReal ModKind = iota
	ModVirtual
)

// Mod is a named modifier. Virtual modifiers map onto real ones.
type Mod struct {
	Name    string
	Kind    ModKind
	Mapping ModMask
}

// Mods pairs a modifier set as written (bits are modifier indices, virtual
// ones included) with the real mask it resolves to.
type Mods struct {
	Mods ModMask
	Mask ModMask
}

// KeyTypeEntry maps a modifier combination to a level.
type KeyTypeEntry struct {
	Level    LevelIndex
	Mods     Mods
	Preserve Mods
}

// Active reports whether the entry can match. An entry written only with
// virtual modifiers that map to nothing never matches.
func (e KeyTypeEntry) Active() bool {
	return e.Mods.Mods == 0 || e.Mods.Mask != 0
}

// KeyType decides which level of a key a modifier state selects.
type KeyType struct {
	Name       string
	Mods       Mods
	NumLevels  LevelIndex
	LevelNames []string
	Entries    []KeyTypeEntry
}

// EntryFor returns the entry matching the given effective modifiers.
func (t *KeyType) EntryFor(mods ModMask) (KeyTypeEntry, bool) {
	mods &= t.Mods.Mask
	for _, e := range t.Entries {
		if e.Active() && e.Mods.Mask == mods {
			return e, true
		}
	}
	return KeyTypeEntry{}, false
}

// ActionType enumerates the supported key actions.
type ActionType uint8

const (
	ActionNone ActionType = iota
	ActionModSet
	ActionModLatch
	ActionModLock
	ActionGroupSet
	ActionGroupLatch
	ActionGroupLock
	ActionTerminate
)

var actionTypeNames = [...]string{
	ActionNone:       "NoAction",
	ActionModSet:     "SetMods",
	ActionModLatch:   "LatchMods",
	ActionModLock:    "LockMods",
	ActionGroupSet:   "SetGroup",
	ActionGroupLatch: "LatchGroup",
	ActionGroupLock:  "LockGroup",
	ActionTerminate:  "Terminate",
}

func (t ActionType) String() string {
	if int(t) < len(actionTypeNames) {
		return actionTypeNames[t]
	}
	return "Unknown"
}

// ActionFlags modify how an action behaves.
type ActionFlags uint16

const (
	ActionLockClear ActionFlags = 1 << iota
	ActionLatchToLock
	ActionLockNoLock
	ActionLockNoUnlock
	ActionModsLookupModMap
	ActionAbsoluteSwitch
)

// Action is what a key does to the state when pressed at a given level.
type Action struct {
	Type  ActionType
	Flags ActionFlags
	Mods  Mods
	Group int32
}

// BreaksLatch reports whether pressing a key with this action cancels a
// pending latch.
func (a Action) BreaksLatch() bool {
	switch a.Type {
	case ActionNone, ActionTerminate:
		return true
	}
	return false
}

// Level is one shift level of a key in one layout.
type Level struct {
	Syms   []keysym.Keysym
	Action Action
}

// Group holds a key's levels for one layout.
type Group struct {
	Type         int
	ExplicitType bool
	Levels       []Level
}

// RangeExceed says how an out-of-range layout index is brought back into
// the key's layouts.
type RangeExceed uint8

const (
	RangeWrap RangeExceed = iota
	RangeSaturate
	RangeRedirect
)

// Explicit marks key properties set directly in the symbols section, which
// compat interprets must not override.
type Explicit uint8

const (
	ExplicitInterp Explicit = 1 << iota
	ExplicitVModMap
	ExplicitRepeat
)

// Key is the compiled description of one keycode.
type Key struct {
	Keycode         Keycode
	Name            string
	Explicit        Explicit
	ModMap          ModMask
	VModMap         ModMask
	Repeats         bool
	OutOfRange      RangeExceed
	OutOfRangeGroup LayoutIndex
	Groups          []Group
}

// MatchOp is the predicate of a compat interpret.
type MatchOp uint8

const (
	MatchNoneOf MatchOp = iota
	MatchAnyOfOrNone
	MatchAnyOf
	MatchAllOf
	MatchExactly
)

var matchOpNames = [...]string{
	MatchNoneOf:      "NoneOf",
	MatchAnyOfOrNone: "AnyOfOrNone",
	MatchAnyOf:       "AnyOf",
	MatchAllOf:       "AllOf",
	MatchExactly:     "Exactly",
}

func (m MatchOp) String() string {
	if int(m) < len(matchOpNames) {
		return matchOpNames[m]
	}
	return "Unknown"
}

// Matches applies the predicate to a key's modifier map.
func (m MatchOp) Matches(want, have ModMask) bool {
	switch m {
	case MatchNoneOf:
		return have&want == 0
	case MatchAnyOfOrNone:
		return have == 0 || have&want != 0
	case MatchAnyOf:
		return have&want != 0
	case MatchAllOf:
		return have&want == want
	case MatchExactly:
		return have == want
	}
	return false
}

// Interpret assigns actions to keys by keysym and modifier map.
type Interpret struct {
	Sym          keysym.Keysym
	Match        MatchOp
	Mods         ModMask
	VirtualMod   ModIndex
	Action       Action
	LevelOneOnly bool
	Repeat       bool
}

// Which selects the state components an LED observes.
type Which uint8

const (
	WhichBase Which = 1 << iota
	WhichLatched
	WhichLocked
	WhichEffective
	WhichCompat
)

// LED is an indicator bound to modifier or layout state.
type LED struct {
	Name        string
	WhichGroups Which
	Groups      uint32
	WhichMods   Which
	Mods        Mods
	Ctrls       uint32
}
