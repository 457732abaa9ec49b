package keymap_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

const (
	kcAC01 keymap.Keycode = 38
	kcLFSH keymap.Keycode = 50
	kcSPCE keymap.Keycode = 65
	kcCAPS keymap.Keycode = 66
	kcKP7  keymap.Keycode = 79
)

const (
	vmodNumLock    keymap.ModIndex = 8
	vmodLevelThree keymap.ModIndex = 9
)

func sym(name string) keysym.Keysym { return keysym.FromName(name, keysym.NoFlags) }

func levels(syms ...keysym.Keysym) []keymap.Level {
	out := make([]keymap.Level, len(syms))
	for i, ks := range syms {
		out[i] = keymap.Level{Syms: []keysym.Keysym{ks}}
	}
	return out
}

func testDesc() *keymap.Desc {
	shift := keymap.ModMask(1 << keymap.ModShift)
	lock := keymap.ModMask(1 << keymap.ModLock)
	mod2 := keymap.ModMask(1 << keymap.ModMod2)

	mods := make([]keymap.Mod, 0, 10)
	for _, n := range keymap.RealModNames {
		mods = append(mods, keymap.Mod{Name: n, Kind: keymap.ModReal})
	}
	mods = append(mods,
		keymap.Mod{Name: "NumLock", Kind: keymap.ModVirtual, Mapping: mod2},
		keymap.Mod{Name: "LevelThree", Kind: keymap.ModVirtual},
	)

	return &keymap.Desc{
		KeycodesName: "test",
		TypesName:    "test",
		CompatName:   "test",
		SymbolsName:  "test",
		MinKeycode:   8,
		MaxKeycode:   255,
		Aliases:      map[string]string{"LatA": "AC01", "Gone": "NOPE"},
		Mods:         mods,
		GroupNames:   []string{"English (US)", "Russian"},
		Types: []keymap.KeyType{
			{Name: "ONE_LEVEL", NumLevels: 1, LevelNames: []string{"Any"}},
			{
				Name: "TWO_LEVEL", Mods: keymap.Mods{Mods: shift, Mask: shift}, NumLevels: 2,
				Entries: []keymap.KeyTypeEntry{{Level: 1, Mods: keymap.Mods{Mods: shift, Mask: shift}}},
			},
			{
				Name: "ALPHABETIC", Mods: keymap.Mods{Mods: shift | lock, Mask: shift | lock}, NumLevels: 2,
				Entries: []keymap.KeyTypeEntry{
					{Level: 1, Mods: keymap.Mods{Mods: shift, Mask: shift}},
					{Level: 1, Mods: keymap.Mods{Mods: lock, Mask: lock}},
				},
			},
			{
				Name:      "KEYPAD",
				Mods:      keymap.Mods{Mods: shift | 1<<vmodNumLock | 1<<vmodLevelThree, Mask: shift | mod2},
				NumLevels: 2,
				Entries: []keymap.KeyTypeEntry{
					{Level: 1, Mods: keymap.Mods{Mods: 1 << vmodNumLock, Mask: mod2}},
					{Level: 1, Mods: keymap.Mods{Mods: shift | 1<<vmodNumLock, Mask: shift | mod2}, Preserve: keymap.Mods{Mods: shift, Mask: shift}},
					{Level: 1, Mods: keymap.Mods{Mods: 1 << vmodLevelThree}},
				},
			},
		},
		Keys: []keymap.Key{
			{
				Keycode: kcAC01, Name: "AC01", Repeats: true,
				Groups: []keymap.Group{
					{Type: 2, Levels: levels(keysym.LowerA, keysym.UpperA)},
					{Type: 2, Levels: levels(0x06c6, 0x06e6)},
				},
			},
			{
				Keycode: kcLFSH, Name: "LFSH", ModMap: shift,
				Groups: []keymap.Group{{Type: 0, Levels: []keymap.Level{{
					Syms:   []keysym.Keysym{keysym.ShiftL},
					Action: keymap.Action{Type: keymap.ActionModSet, Flags: keymap.ActionModsLookupModMap | keymap.ActionLockClear, Mods: keymap.Mods{Mods: shift, Mask: shift}},
				}}}},
			},
			{
				Keycode: kcSPCE, Name: "SPCE", Repeats: true,
				Groups: []keymap.Group{{Type: 0, Levels: levels(keysym.Space)}},
			},
			{
				Keycode: kcCAPS, Name: "CAPS", ModMap: lock, Explicit: keymap.ExplicitInterp,
				Groups: []keymap.Group{{Type: 0, Levels: []keymap.Level{{
					Syms:   []keysym.Keysym{keysym.CapsLock},
					Action: keymap.Action{Type: keymap.ActionModLock, Mods: keymap.Mods{Mods: lock, Mask: lock}},
				}}}},
			},
			{
				Keycode: kcKP7, Name: "KP7", Repeats: true, OutOfRange: keymap.RangeSaturate,
				Groups: []keymap.Group{{Type: 3, Levels: levels(sym("KP_Home"), keysym.KP0+7)}},
			},
		},
		LEDs: []keymap.LED{
			{Name: keymap.LEDNameCaps, WhichMods: keymap.WhichLocked, Mods: keymap.Mods{Mods: lock, Mask: lock}},
			{},
			{Name: keymap.LEDNameNum, WhichMods: keymap.WhichLocked, Mods: keymap.Mods{Mods: 1 << vmodNumLock, Mask: mod2}},
		},
		Interprets: []keymap.Interpret{
			{
				Sym: keysym.CapsLock, Match: keymap.MatchAnyOfOrNone, Mods: keymap.RealModsMask, VirtualMod: keymap.ModInvalid,
				Action: keymap.Action{Type: keymap.ActionModLock, Flags: keymap.ActionModsLookupModMap},
			},
			{
				Match: keymap.MatchAnyOf, Mods: keymap.RealModsMask, VirtualMod: keymap.ModInvalid, LevelOneOnly: true,
				Action: keymap.Action{Type: keymap.ActionModSet, Flags: keymap.ActionModsLookupModMap | keymap.ActionLockClear},
			},
		},
	}
}

func newTestKeymap(t *testing.T) *keymap.Keymap {
	t.Helper()
	km, err := keymap.New(testDesc())
	require.NoError(t, err)
	return km
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *keymap.Desc)
	}{
		{name: "inverted range", mutate: func(d *keymap.Desc) { d.MinKeycode, d.MaxKeycode = 300, 8 }},
		{name: "missing real mods", mutate: func(d *keymap.Desc) { d.Mods = d.Mods[:5] }},
		{name: "too many layouts", mutate: func(d *keymap.Desc) {
			g := d.Keys[2].Groups[0]
			d.Keys[2].Groups = []keymap.Group{g, g, g, g, g}
		}},
		{name: "level count mismatch", mutate: func(d *keymap.Desc) { d.Keys[2].Groups[0].Type = 1 }},
		{name: "unknown type", mutate: func(d *keymap.Desc) { d.Keys[2].Groups[0].Type = 42 }},
		{name: "keycode out of range", mutate: func(d *keymap.Desc) { d.Keys[2].Keycode = 300 }},
		{name: "unnamed key", mutate: func(d *keymap.Desc) { d.Keys[2].Name = "" }},
		{name: "entry beyond levels", mutate: func(d *keymap.Desc) { d.Types[1].Entries[0].Level = 5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDesc()
			tt.mutate(d)
			_, err := keymap.New(d)
			assert.ErrorIs(t, err, keymap.ErrInvalidDesc)
		})
	}
}

func TestKeyIteration(t *testing.T) {
	km := newTestKeymap(t)

	assert.Equal(t, keymap.Keycode(8), km.MinKeycode())
	assert.Equal(t, keymap.Keycode(255), km.MaxKeycode())

	want := []keymap.Keycode{kcAC01, kcLFSH, kcSPCE, kcCAPS, kcKP7}
	assert.Equal(t, want, slices.Collect(km.Keys()))
	assert.Equal(t, want, km.Keycodes())

	var visited []keymap.Keycode
	km.ForEachKey(func(got *keymap.Keymap, kc keymap.Keycode) {
		assert.Same(t, km, got)
		visited = append(visited, kc)
	})
	assert.Equal(t, want, visited)

	var first []keymap.Keycode
	for kc := range km.Keys() {
		first = append(first, kc)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, want[:2], first)
}

func TestKeyNames(t *testing.T) {
	km := newTestKeymap(t)

	name, err := km.KeyName(kcSPCE)
	require.NoError(t, err)
	assert.Equal(t, "SPCE", name)

	_, err = km.KeyName(9)
	assert.ErrorIs(t, err, keymap.ErrInvalidKeycode)
	_, err = km.KeyName(0)
	assert.ErrorIs(t, err, keymap.ErrInvalidKeycode)

	kc, err := km.KeyByName("LatA")
	require.NoError(t, err)
	assert.Equal(t, kcAC01, kc)

	_, err = km.KeyByName("Gone")
	assert.ErrorIs(t, err, keymap.ErrInvalidKeycode)
}

func TestModLookups(t *testing.T) {
	km := newTestKeymap(t)

	assert.Equal(t, keymap.ModIndex(10), km.NumMods())

	idx, err := km.ModIndex("NumLock")
	require.NoError(t, err)
	assert.Equal(t, vmodNumLock, idx)

	idx, err = km.ModIndex(keymap.ModNameCtrl)
	require.NoError(t, err)
	assert.Equal(t, keymap.ModControl, idx)

	idx, err = km.ModIndex("Hyper")
	assert.ErrorIs(t, err, keymap.ErrModNotFound)
	assert.NotErrorIs(t, err, keymap.ErrInvalidModIndex)
	assert.Equal(t, keymap.ModInvalid, idx)
	var lookup *keymap.LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "Hyper", lookup.Name)

	name, err := km.ModName(keymap.ModMod4)
	require.NoError(t, err)
	assert.Equal(t, "Mod4", name)

	_, err = km.ModName(99)
	assert.ErrorIs(t, err, keymap.ErrInvalidModIndex)
	assert.NotErrorIs(t, err, keymap.ErrModNotFound)

	mapping, err := km.ModMapping(vmodNumLock)
	require.NoError(t, err)
	assert.Equal(t, keymap.ModMask(1<<keymap.ModMod2), mapping)

	mapping, err = km.ModMapping(keymap.ModLock)
	require.NoError(t, err)
	assert.Equal(t, keymap.ModMask(1<<keymap.ModLock), mapping)
}

func TestLayoutLookups(t *testing.T) {
	km := newTestKeymap(t)

	assert.Equal(t, keymap.LayoutIndex(2), km.NumLayouts())

	name, err := km.LayoutName(1)
	require.NoError(t, err)
	assert.Equal(t, "Russian", name)

	_, err = km.LayoutName(2)
	assert.ErrorIs(t, err, keymap.ErrInvalidLayoutIndex)

	idx, err := km.LayoutIndex("English (US)")
	require.NoError(t, err)
	assert.Equal(t, keymap.LayoutIndex(0), idx)

	_, err = km.LayoutIndex("German")
	assert.ErrorIs(t, err, keymap.ErrLayoutNotFound)

	assert.Equal(t, keymap.LayoutIndex(2), km.NumLayoutsForKey(kcAC01))
	assert.Equal(t, keymap.LayoutIndex(1), km.NumLayoutsForKey(kcSPCE))
	assert.Equal(t, keymap.LayoutIndex(0), km.NumLayoutsForKey(9))
}

func TestLEDLookups(t *testing.T) {
	km := newTestKeymap(t)

	assert.Equal(t, keymap.LEDIndex(3), km.NumLEDs())

	name, err := km.LEDName(1)
	require.NoError(t, err)
	assert.Empty(t, name)

	_, err = km.LEDName(3)
	assert.ErrorIs(t, err, keymap.ErrInvalidLEDIndex)

	idx, err := km.LEDIndex(keymap.LEDNameNum)
	require.NoError(t, err)
	assert.Equal(t, keymap.LEDIndex(2), idx)

	_, err = km.LEDIndex("")
	assert.ErrorIs(t, err, keymap.ErrLEDNotFound)
	_, err = km.LEDIndex(keymap.LEDNameScroll)
	assert.ErrorIs(t, err, keymap.ErrLEDNotFound)

	leds := km.LEDs()
	leds[0].Name = "changed"
	name, _ = km.LEDName(0)
	assert.Equal(t, keymap.LEDNameCaps, name)
}

func TestKeySymsByLevel(t *testing.T) {
	km := newTestKeymap(t)

	tests := []struct {
		name    string
		kc      keymap.Keycode
		layout  keymap.LayoutIndex
		level   keymap.LevelIndex
		want    []keysym.Keysym
		wantErr error
	}{
		{name: "first level", kc: kcAC01, want: []keysym.Keysym{keysym.LowerA}},
		{name: "second level", kc: kcAC01, level: 1, want: []keysym.Keysym{keysym.UpperA}},
		{name: "second layout", kc: kcAC01, layout: 1, level: 1, want: []keysym.Keysym{0x06e6}},
		{name: "layout not wrapped", kc: kcSPCE, layout: 1, wantErr: keymap.ErrInvalidLayoutIndex},
		{name: "level out of range", kc: kcSPCE, level: 1, wantErr: keymap.ErrInvalidLevelIndex},
		{name: "unassigned keycode", kc: 9, wantErr: keymap.ErrInvalidKeycode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := km.KeySymsByLevel(tt.kc, tt.layout, tt.level)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	syms, err := km.KeySymsByLevel(kcSPCE, 0, 0)
	require.NoError(t, err)
	syms[0] = keysym.NoSymbol
	syms, _ = km.KeySymsByLevel(kcSPCE, 0, 0)
	assert.Equal(t, []keysym.Keysym{keysym.Space}, syms)
}

func TestNumLevelsForKey(t *testing.T) {
	km := newTestKeymap(t)

	assert.Equal(t, keymap.LevelIndex(2), km.NumLevelsForKey(kcAC01, 0))
	assert.Equal(t, keymap.LevelIndex(2), km.NumLevelsForKey(kcAC01, 3))
	assert.Equal(t, keymap.LevelIndex(1), km.NumLevelsForKey(kcSPCE, 1))
	assert.Equal(t, keymap.LevelIndex(0), km.NumLevelsForKey(9, 0))
}

func TestKeyRepeatsAndModMap(t *testing.T) {
	km := newTestKeymap(t)

	assert.True(t, km.KeyRepeats(kcSPCE))
	assert.False(t, km.KeyRepeats(kcCAPS))
	assert.False(t, km.KeyRepeats(9))

	assert.Equal(t, keymap.ModMask(1<<keymap.ModLock), km.KeyModMap(kcCAPS))
	assert.Equal(t, keymap.ModMask(0), km.KeyModMap(kcSPCE))
}

func TestKeyLevel(t *testing.T) {
	km := newTestKeymap(t)
	shift := keymap.ModMask(1 << keymap.ModShift)
	lock := keymap.ModMask(1 << keymap.ModLock)
	ctrl := keymap.ModMask(1 << keymap.ModControl)
	mod2 := keymap.ModMask(1 << keymap.ModMod2)

	tests := []struct {
		name     string
		kc       keymap.Keycode
		mods     keymap.ModMask
		level    keymap.LevelIndex
		consumed keymap.ModMask
	}{
		{name: "no mods", kc: kcAC01, level: 0, consumed: shift | lock},
		{name: "shift", kc: kcAC01, mods: shift, level: 1, consumed: shift | lock},
		{name: "shift ignores control", kc: kcAC01, mods: shift | ctrl, level: 1, consumed: shift | lock},
		{name: "unlisted combination", kc: kcAC01, mods: shift | lock, level: 0, consumed: shift | lock},
		{name: "keypad numlock", kc: kcKP7, mods: mod2, level: 1, consumed: shift | mod2},
		{name: "keypad preserves shift", kc: kcKP7, mods: shift | mod2, level: 1, consumed: mod2},
		{name: "keypad shift only", kc: kcKP7, mods: shift, level: 0, consumed: shift | mod2},
		{name: "one level", kc: kcSPCE, mods: shift, level: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.level, km.KeyLevel(tt.kc, 0, tt.mods))
			assert.Equal(t, tt.consumed, km.KeyConsumedMods(tt.kc, 0, tt.mods))
		})
	}

	assert.Equal(t, keymap.LevelInvalid, km.KeyLevel(9, 0, 0))
	assert.Equal(t, keymap.LevelInvalid, km.KeyLevel(kcSPCE, 1, 0))
}

func TestKeyLayout(t *testing.T) {
	km := newTestKeymap(t)

	assert.Equal(t, keymap.LayoutIndex(1), km.KeyLayout(kcAC01, 1))
	assert.Equal(t, keymap.LayoutIndex(0), km.KeyLayout(kcAC01, 2))
	assert.Equal(t, keymap.LayoutIndex(1), km.KeyLayout(kcAC01, -1))
	assert.Equal(t, keymap.LayoutIndex(0), km.KeyLayout(kcKP7, 3))
	assert.Equal(t, keymap.LayoutInvalid, km.KeyLayout(0, 0))
}

func TestWrapLayout(t *testing.T) {
	three := make([]keymap.Group, 3)
	tests := []struct {
		name   string
		key    keymap.Key
		layout int32
		want   keymap.LayoutIndex
	}{
		{name: "in range", key: keymap.Key{Groups: three}, layout: 2, want: 2},
		{name: "wrap high", key: keymap.Key{Groups: three}, layout: 4, want: 1},
		{name: "wrap negative", key: keymap.Key{Groups: three}, layout: -1, want: 2},
		{name: "saturate high", key: keymap.Key{Groups: three, OutOfRange: keymap.RangeSaturate}, layout: 7, want: 2},
		{name: "saturate negative", key: keymap.Key{Groups: three, OutOfRange: keymap.RangeSaturate}, layout: -3, want: 0},
		{name: "redirect", key: keymap.Key{Groups: three, OutOfRange: keymap.RangeRedirect, OutOfRangeGroup: 1}, layout: 5, want: 1},
		{name: "redirect out of range", key: keymap.Key{Groups: three, OutOfRange: keymap.RangeRedirect, OutOfRangeGroup: 4}, layout: 5, want: 0},
		{name: "no layouts", key: keymap.Key{}, layout: 0, want: keymap.LayoutInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keymap.WrapLayout(tt.layout, &tt.key))
		})
	}
}

func TestEntryForSkipsUnmappedVirtualMods(t *testing.T) {
	d := testDesc()
	keypad := &d.Types[3]

	e, ok := keypad.EntryFor(0)
	assert.False(t, ok, "entry with unmapped modifier must not match the empty state")
	assert.Equal(t, keymap.KeyTypeEntry{}, e)
	assert.False(t, keypad.Entries[2].Active())
	assert.True(t, keypad.Entries[0].Active())
}

func TestMatchOp(t *testing.T) {
	shift := keymap.ModMask(1 << keymap.ModShift)
	lock := keymap.ModMask(1 << keymap.ModLock)

	tests := []struct {
		op         keymap.MatchOp
		want, have keymap.ModMask
		match      bool
	}{
		{op: keymap.MatchNoneOf, want: shift, have: lock, match: true},
		{op: keymap.MatchNoneOf, want: shift, have: shift | lock, match: false},
		{op: keymap.MatchAnyOfOrNone, want: shift, have: 0, match: true},
		{op: keymap.MatchAnyOfOrNone, want: shift, have: lock, match: false},
		{op: keymap.MatchAnyOf, want: shift | lock, have: lock, match: true},
		{op: keymap.MatchAnyOf, want: shift, have: 0, match: false},
		{op: keymap.MatchAllOf, want: shift | lock, have: shift, match: false},
		{op: keymap.MatchAllOf, want: shift, have: shift | lock, match: true},
		{op: keymap.MatchExactly, want: shift, have: shift | lock, match: false},
		{op: keymap.MatchExactly, want: shift, have: shift, match: true},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.match, tt.op.Matches(tt.want, tt.have))
		})
	}
}

func TestRefCounting(t *testing.T) {
	km := newTestKeymap(t)
	assert.Equal(t, 1, km.Refs())

	assert.Same(t, km, km.Ref())
	assert.Equal(t, 2, km.Refs())

	km.Unref()
	km.Unref()
	assert.Equal(t, 0, km.Refs())
	assert.Panics(t, km.Unref)
}

func TestText(t *testing.T) {
	km := newTestKeymap(t)

	text, err := km.Text()
	require.NoError(t, err)

	for _, want := range []string{
		"xkb_keycodes \"test\" {",
		"minimum = 8;",
				"indicator 1 = \"Caps Lock\";",
		"indicator 3 = \"Num Lock\";",
		"virtual_modifiers NumLock=Mod2,LevelThree;",
		"type \"KEYPAD\" {",
		"preserve[Shift+NumLock]= Shift;",
		"level_name[Level1]= \"Any\";",
		"interpret Caps_Lock+AnyOfOrNone(all) {",
		"interpret Any+AnyOf(all) {",
		"useModMapMods=level1;",
		"action= LockMods(modifiers=modMapMods);",
		"whichModState= locked;",
		"name[Group2]=\"Russian\";",
		"symbols[Group1]= [ a, A ]",
		"symbols[Group2]= [ Cyrillic_ef, Cyrillic_EF ]",
		"actions[Group1]= [ SetMods(modifiers=modMapMods,clearLocks) ]",
		"actions[Group1]= [ LockMods(modifiers=Lock) ]",
		"groupsClamp",
		"repeat= No",
		"modifier_map Lock { <CAPS> };",
	} {
		assert.Contains(t, text, want)
	}
	assert.Regexp(t, `<SPCE>\s+= 65;`, text)
	assert.Regexp(t, `alias <LatA>\s+= <AC01>;`, text)
	assert.NotContains(t, text, "<Gone>")
}

func TestTextRejectsUnquotableNames(t *testing.T) {
	d := testDesc()
	d.GroupNames[0] = `Bad "name"`
	km, err := keymap.New(d)
	require.NoError(t, err)

	_, err = km.Text()
	assert.ErrorIs(t, err, keymap.ErrKeymapRead)
}
