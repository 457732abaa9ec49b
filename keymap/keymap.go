// Package keymap holds compiled, immutable keymaps and answers queries about
// them: keycode bounds, modifier, layout and LED names, per-key symbol
// tables and repeat flags.
package keymap

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Alia5/goxkb/keysym"
)

var (
	ErrInvalidKeycode     = errors.New("invalid keycode")
	ErrInvalidModIndex    = errors.New("invalid modifier index")
	ErrModNotFound        = errors.New("modifier does not exist")
	ErrInvalidLayoutIndex = errors.New("invalid layout index")
	ErrLayoutNotFound     = errors.New("layout does not exist")
	ErrInvalidLEDIndex    = errors.New("invalid LED index")
	ErrLEDNotFound        = errors.New("LED does not exist")
	ErrInvalidLevelIndex  = errors.New("invalid level index")
	ErrKeymapRead         = errors.New("keymap cannot be rendered as text")
	ErrInvalidDesc        = errors.New("invalid keymap description")
)

// LookupError reports a name that matched no modifier, layout or LED.
type LookupError struct {
	Kind string
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s %q does not exist", e.Kind, e.Name)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Desc is the resolved content of a keymap, as produced by a compiler.
type Desc struct {
	KeycodesName string
	TypesName    string
	CompatName   string
	SymbolsName  string

	MinKeycode Keycode
	MaxKeycode Keycode
	Keys       []Key
	Aliases    map[string]string

	Types      []KeyType
	Mods       []Mod
	GroupNames []string
	LEDs       []LED
	Interprets []Interpret
}

// Keymap is an immutable compiled keymap. It is reference counted: New
// returns it with one reference and every holder that calls Ref must call
// Unref when done.
type Keymap struct {
	refs atomic.Int32

	keycodesName string
	typesName    string
	compatName   string
	symbolsName  string

	min, max Keycode
	keys     []Key
	byName   map[string]Keycode
	aliases  map[string]string

	types      []KeyType
	mods       []Mod
	groupNames []string
	numGroups  LayoutIndex
	leds       []LED
	interprets []Interpret

	keycodes func() []Keycode
}

// New validates d and builds a Keymap from it. The Keymap takes ownership
// of d's slices.
func New(d *Desc) (*Keymap, error) {
	if d.MinKeycode > d.MaxKeycode {
		return nil, fmt.Errorf("%w: minimum keycode %d above maximum %d", ErrInvalidDesc, d.MinKeycode, d.MaxKeycode)
	}
	if len(d.Mods) < NumRealMods || len(d.Mods) > MaxMods {
		return nil, fmt.Errorf("%w: %d modifiers", ErrInvalidDesc, len(d.Mods))
	}
	if len(d.LEDs) > MaxLEDs {
		return nil, fmt.Errorf("%w: %d LEDs", ErrInvalidDesc, len(d.LEDs))
	}
	for i, t := range d.Types {
		if t.NumLevels == 0 {
			return nil, fmt.Errorf("%w: type %q has no levels", ErrInvalidDesc, t.Name)
		}
		for _, e := range t.Entries {
			if e.Level >= t.NumLevels {
				return nil, fmt.Errorf("%w: type %d maps to level %d of %d", ErrInvalidDesc, i, e.Level+1, t.NumLevels)
			}
		}
	}

	km := &Keymap{
		keycodesName: d.KeycodesName,
		typesName:    d.TypesName,
		compatName:   d.CompatName,
		symbolsName:  d.SymbolsName,
		min:          d.MinKeycode,
		max:          d.MaxKeycode,
		keys:         make([]Key, int(d.MaxKeycode-d.MinKeycode)+1),
		byName:       make(map[string]Keycode, len(d.Keys)+len(d.Aliases)),
		aliases:      d.Aliases,
		types:        d.Types,
		mods:         d.Mods,
		groupNames:   d.GroupNames,
		leds:         d.LEDs,
		interprets:   d.Interprets,
	}
	for _, k := range d.Keys {
		if k.Keycode < d.MinKeycode || k.Keycode > d.MaxKeycode {
			return nil, fmt.Errorf("%w: key <%s> keycode %d out of range", ErrInvalidDesc, k.Name, k.Keycode)
		}
		if k.Name == "" {
			return nil, fmt.Errorf("%w: keycode %d has no name", ErrInvalidDesc, k.Keycode)
		}
		if len(k.Groups) > MaxLayouts {
			return nil, fmt.Errorf("%w: key <%s> has %d layouts", ErrInvalidDesc, k.Name, len(k.Groups))
		}
		for gi, g := range k.Groups {
			if g.Type < 0 || g.Type >= len(d.Types) {
				return nil, fmt.Errorf("%w: key <%s> layout %d has no type", ErrInvalidDesc, k.Name, gi+1)
			}
			if LevelIndex(len(g.Levels)) != d.Types[g.Type].NumLevels {
				return nil, fmt.Errorf("%w: key <%s> layout %d has %d levels, type %q wants %d",
					ErrInvalidDesc, k.Name, gi+1, len(g.Levels), d.Types[g.Type].Name, d.Types[g.Type].NumLevels)
			}
		}
		km.keys[k.Keycode-d.MinKeycode] = k
		km.byName[k.Name] = k.Keycode
		if n := LayoutIndex(len(k.Groups)); n > km.numGroups {
			km.numGroups = n
		}
	}
	for alias, target := range d.Aliases {
		if kc, ok := km.byName[target]; ok {
			if _, taken := km.byName[alias]; !taken {
				km.byName[alias] = kc
			}
		}
	}
	km.keycodes = sync.OnceValue(func() []Keycode {
		out := make([]Keycode, 0, len(km.byName))
		for i := range km.keys {
			if km.keys[i].Name != "" {
				out = append(out, km.keys[i].Keycode)
			}
		}
		return out
	})
	km.refs.Store(1)
	return km, nil
}

// Ref takes a reference and returns km.
func (km *Keymap) Ref() *Keymap {
	km.refs.Add(1)
	return km
}

// Unref drops a reference. The Keymap must not be used by the caller
// afterwards.
func (km *Keymap) Unref() {
	if km.refs.Add(-1) < 0 {
		panic("keymap: Unref of released keymap")
	}
}

// Refs returns the current number of references.
func (km *Keymap) Refs() int { return int(km.refs.Load()) }

func (km *Keymap) MinKeycode() Keycode { return km.min }
func (km *Keymap) MaxKeycode() Keycode { return km.max }

// key returns the definition of kc, or nil if kc is not assigned.
func (km *Keymap) key(kc Keycode) *Key {
	if kc < km.min || kc > km.max {
		return nil
	}
	k := &km.keys[kc-km.min]
	if k.Name == "" {
		return nil
	}
	return k
}

// Keys yields the assigned keycodes in ascending order.
func (km *Keymap) Keys() iter.Seq[Keycode] {
	return func(yield func(Keycode) bool) {
		for _, kc := range km.keycodes() {
			if !yield(kc) {
				return
			}
		}
	}
}

// Keycodes returns a copy of the assigned keycodes in ascending order.
func (km *Keymap) Keycodes() []Keycode { return slices.Clone(km.keycodes()) }

// ForEachKey calls fn for every assigned keycode in ascending order.
func (km *Keymap) ForEachKey(fn func(km *Keymap, kc Keycode)) {
	for kc := range km.Keys() {
		fn(km, kc)
	}
}

// KeyName returns the name of kc, without angle brackets.
func (km *Keymap) KeyName(kc Keycode) (string, error) {
	k := km.key(kc)
	if k == nil {
		return "", fmt.Errorf("%w: %d", ErrInvalidKeycode, kc)
	}
	return k.Name, nil
}

// KeyByName resolves a key name or alias.
func (km *Keymap) KeyByName(name string) (Keycode, error) {
	kc, ok := km.byName[name]
	if !ok {
		return KeycodeInvalid, &LookupError{Kind: "key", Name: name, Err: ErrInvalidKeycode}
	}
	return kc, nil
}

func (km *Keymap) NumMods() ModIndex { return ModIndex(len(km.mods)) }

func (km *Keymap) ModName(idx ModIndex) (string, error) {
	if idx >= km.NumMods() {
		return "", fmt.Errorf("%w: %d of %d", ErrInvalidModIndex, idx, km.NumMods())
	}
	return km.mods[idx].Name, nil
}

func (km *Keymap) ModIndex(name string) (ModIndex, error) {
	for i, m := range km.mods {
		if m.Name == name {
			return ModIndex(i), nil
		}
	}
	return ModInvalid, &LookupError{Kind: "modifier", Name: name, Err: ErrModNotFound}
}

// Mod returns the definition of a modifier.
func (km *Keymap) Mod(idx ModIndex) (Mod, error) {
	if idx >= km.NumMods() {
		return Mod{}, fmt.Errorf("%w: %d of %d", ErrInvalidModIndex, idx, km.NumMods())
	}
	return km.mods[idx], nil
}

// ModMapping returns the real modifiers idx stands for: its own bit for a
// real modifier, its mapping for a virtual one.
func (km *Keymap) ModMapping(idx ModIndex) (ModMask, error) {
	m, err := km.Mod(idx)
	if err != nil {
		return 0, err
	}
	if m.Kind == ModReal {
		return 1 << idx, nil
	}
	return m.Mapping, nil
}

// NumLayouts is the largest number of layouts of any key.
func (km *Keymap) NumLayouts() LayoutIndex { return km.numGroups }

// LayoutName returns the name of a layout; unnamed layouts yield "".
func (km *Keymap) LayoutName(idx LayoutIndex) (string, error) {
	if idx >= km.numGroups {
		return "", fmt.Errorf("%w: %d of %d", ErrInvalidLayoutIndex, idx, km.numGroups)
	}
	if int(idx) >= len(km.groupNames) {
		return "", nil
	}
	return km.groupNames[idx], nil
}

// LayoutIndex returns the lowest index of a layout with the given name.
func (km *Keymap) LayoutIndex(name string) (LayoutIndex, error) {
	for i, n := range km.groupNames {
		if LayoutIndex(i) >= km.numGroups {
			break
		}
		if n == name && n != "" {
			return LayoutIndex(i), nil
		}
	}
	return LayoutInvalid, &LookupError{Kind: "layout", Name: name, Err: ErrLayoutNotFound}
}

func (km *Keymap) NumLEDs() LEDIndex { return LEDIndex(len(km.leds)) }

// LEDName returns the name of an LED; an LED slot may exist without a name,
// which yields "".
func (km *Keymap) LEDName(idx LEDIndex) (string, error) {
	if idx >= km.NumLEDs() {
		return "", fmt.Errorf("%w: %d of %d", ErrInvalidLEDIndex, idx, km.NumLEDs())
	}
	return km.leds[idx].Name, nil
}

func (km *Keymap) LEDIndex(name string) (LEDIndex, error) {
	for i, l := range km.leds {
		if l.Name == name && name != "" {
			return LEDIndex(i), nil
		}
	}
	return LEDInvalid, &LookupError{Kind: "LED", Name: name, Err: ErrLEDNotFound}
}

// LEDs returns a copy of the LED table.
func (km *Keymap) LEDs() []LED { return slices.Clone(km.leds) }

// NumLayoutsForKey returns 0 for an unassigned keycode.
func (km *Keymap) NumLayoutsForKey(kc Keycode) LayoutIndex {
	k := km.key(kc)
	if k == nil {
		return 0
	}
	return LayoutIndex(len(k.Groups))
}

// NumLevelsForKey returns the level count of kc in layout, which is first
// brought into range the way the key's out-of-range policy says. It returns
// 0 for an unassigned keycode.
func (km *Keymap) NumLevelsForKey(kc Keycode, layout LayoutIndex) LevelIndex {
	k := km.key(kc)
	if k == nil {
		return 0
	}
	g := WrapLayout(int32(layout), k)
	if g == LayoutInvalid {
		return 0
	}
	return LevelIndex(len(k.Groups[g].Levels))
}

// KeySymsByLevel returns the keysyms of one level. Unlike the state
// lookups it does not wrap layouts: an index outside the key's declared
// layouts or levels is an error, so a genuinely empty level is never
// confused with a bad query.
func (km *Keymap) KeySymsByLevel(kc Keycode, layout LayoutIndex, level LevelIndex) ([]keysym.Keysym, error) {
	k := km.key(kc)
	if k == nil {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeycode, kc)
	}
	if int(layout) >= len(k.Groups) {
		return nil, fmt.Errorf("%w: key %d has %d layouts, asked for %d", ErrInvalidLayoutIndex, kc, len(k.Groups), layout)
	}
	levels := k.Groups[layout].Levels
	if int(level) >= len(levels) {
		return nil, fmt.Errorf("%w: key %d layout %d has %d levels, asked for %d", ErrInvalidLevelIndex, kc, layout, len(levels), level)
	}
	return slices.Clone(levels[level].Syms), nil
}

// KeyRepeats reports whether kc repeats when held. Unassigned keycodes do
// not.
func (km *Keymap) KeyRepeats(kc Keycode) bool {
	k := km.key(kc)
	return k != nil && k.Repeats
}

// KeyModMap returns the real modifiers kc is bound to by modifier_map.
func (km *Keymap) KeyModMap(kc Keycode) ModMask {
	if k := km.key(kc); k != nil {
		return k.ModMap
	}
	return 0
}

// WrapLayout brings a possibly negative or oversized layout value into the
// key's layouts following its out-of-range policy.
func WrapLayout(layout int32, k *Key) LayoutIndex {
	n := int32(len(k.Groups))
	if n == 0 {
		return LayoutInvalid
	}
	if layout >= 0 && layout < n {
		return LayoutIndex(layout)
	}
	switch k.OutOfRange {
	case RangeRedirect:
		if int32(k.OutOfRangeGroup) >= n {
			return 0
		}
		return k.OutOfRangeGroup
	case RangeSaturate:
		if layout < 0 {
			return 0
		}
		return LayoutIndex(n - 1)
	default:
		r := layout % n
		if r < 0 {
			r += n
		}
		return LayoutIndex(r)
	}
}
