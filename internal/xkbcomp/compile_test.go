package xkbcomp_test

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/internal/xkbcomp"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

func sym(name string) keysym.Keysym { return keysym.FromName(name, keysym.NoFlags) }

func syms(names ...string) []keysym.Keysym {
	out := make([]keysym.Keysym, len(names))
	for i, n := range names {
		out[i] = sym(n)
	}
	return out
}

var includeTree = fstest.MapFS{
	"keycodes/evdev": {Data: []byte(`
default xkb_keycodes "evdev" {
	minimum = 8;
	maximum = 255;
	<ESC>  = 9;
	<AE01> = 10;
	<AD01> = 24;
	<AC01> = 38;
	<LFSH> = 50;
	<SPCE> = 65;
	<CAPS> = 66;
	indicator 1 = "Caps Lock";
};
`)},
	"keycodes/aliases": {Data: []byte(`
xkb_keycodes "qwerty" {
	alias <LatQ> = <AD01>;
	alias <LatA> = <AC01>;
};
`)},
	"types/basic": {Data: []byte(`
default xkb_types "basic" {
	virtual_modifiers NumLock;
	type "ONE_LEVEL" { modifiers = None; level_name[Level1] = "Any"; };
	type "TWO_LEVEL" { modifiers = Shift; map[Shift] = Level2; };
	type "ALPHABETIC" { modifiers = Shift+Lock; map[Shift] = Level2; map[Lock] = Level2; };
	type "KEYPAD" { modifiers = Shift+NumLock; map[Shift] = Level2; map[NumLock] = Level2; };
};
`)},
	"types/complete": {Data: []byte(`
default xkb_types "complete" {
	include "basic"
	virtual_modifiers LevelThree;
	type "FOUR_LEVEL" {
		modifiers = Shift+LevelThree;
		map[Shift] = Level2;
		map[LevelThree] = Level3;
		map[Shift+LevelThree] = Level4;
	};
};
`)},
	"compat/complete": {Data: []byte(`
default xkb_compatibility "complete" {
	interpret Shift_L { action = SetMods(modifiers = modMapMods); };
	interpret Caps_Lock { action = LockMods(modifiers = Lock); };
	indicator "Caps Lock" { whichModState = Locked; modifiers = Lock; };
};
`)},
	"symbols/pc": {Data: []byte(`
default partial modifier_keys xkb_symbols "pc105" {
	key <ESC>  { [ Escape ] };
	key <LFSH> { [ Shift_L ] };
	key <CAPS> { [ Caps_Lock ] };
	key <SPCE> { [ space ] };
	modifier_map Shift { Shift_L };
	modifier_map Lock { Caps_Lock };
};
`)},
	"symbols/us": {Data: []byte(`
default partial alphanumeric_keys xkb_symbols "basic" {
	name[Group1] = "English (US)";
	key <AE01> { [ 1, exclam ] };
	key <LatQ> { [ q, Q ] };
	key <AC01> { [ a, A ] };
};

partial alphanumeric_keys xkb_symbols "alt" {
	include "us(basic)"
	name[Group1] = "English (alt)";
	key <AE01> { [ 1, at ] };
};
`)},
	"symbols/ru": {Data: []byte(`
default partial alphanumeric_keys xkb_symbols "basic" {
	name[Group1] = "Russian";
	key <AD01> { [ Cyrillic_shorti, Cyrillic_SHORTI ] };
	key <AC01> { [ Cyrillic_ef, Cyrillic_EF ] };
};
`)},
	"symbols/loop": {Data: []byte(`xkb_symbols "loop" { include "loop" };`)},
	"symbols/broken": {Data: []byte("xkb_symbols {\n\tkey <AE01> { [ a ] }\n};\n")},
}

func treeIncluder(fsys fs.FS) xkbcomp.Includer {
	return xkbcomp.IncluderFunc(func(kind xkbcomp.Kind, file string) (string, []byte, error) {
		name := path.Join(kind.Dir(), file)
		src, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil, xkbcomp.ErrIncludeNotFound
		}
		return name, src, err
	})
}

func components(symbols string) xkbcomp.Components {
	return xkbcomp.Components{
		Keycodes: "evdev+aliases(qwerty)",
		Types:    "complete",
		Compat:   "complete",
		Symbols:  symbols,
	}
}

// recordHandler collects log records for assertions.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.records))
	for i, r := range h.records {
		out[i] = r.Message
	}
	return out
}

func compileBasic(t *testing.T, opts xkbcomp.Options) *keymap.Keymap {
	t.Helper()
	src, err := os.ReadFile("testdata/basic.xkb")
	require.NoError(t, err)
	km, err := xkbcomp.Compile("basic.xkb", src, opts)
	require.NoError(t, err)
	return km
}

func modBit(t *testing.T, km *keymap.Keymap, name string) keymap.ModMask {
	t.Helper()
	idx, err := km.ModIndex(name)
	require.NoError(t, err)
	return 1 << idx
}

func TestCompileBasic(t *testing.T) {
	km := compileBasic(t, xkbcomp.Options{})

	assert.Equal(t, keymap.Keycode(9), km.MinKeycode())
	assert.Equal(t, keymap.Keycode(133), km.MaxKeycode())
	assert.Len(t, km.Keycodes(), 16)
	assert.Equal(t, keymap.ModIndex(11), km.NumMods())
	assert.Equal(t, keymap.LayoutIndex(2), km.NumLayouts())

	name, err := km.LayoutName(1)
	require.NoError(t, err)
	assert.Equal(t, "Russian", name)

	t.Run("aliases", func(t *testing.T) {
		kc, err := km.KeyByName("AC00")
		require.NoError(t, err)
		assert.Equal(t, keymap.Keycode(66), kc)

		kc, err = km.KeyByName("LatQ")
		require.NoError(t, err)
		assert.Equal(t, keymap.Keycode(24), kc)

		_, err = km.KeyByName("Bad")
		assert.ErrorIs(t, err, keymap.ErrInvalidKeycode)
	})

	t.Run("virtual modifier mappings", func(t *testing.T) {
		tests := []struct {
			vmod string
			want keymap.ModMask
		}{
			{vmod: "NumLock", want: 1 << keymap.ModMod2},
			{vmod: "Alt", want: 1 << keymap.ModMod1},
			{vmod: "LevelThree", want: 1 << keymap.ModMod5},
		}
		for _, tt := range tests {
			idx, err := km.ModIndex(tt.vmod)
			require.NoError(t, err, tt.vmod)
			mapping, err := km.ModMapping(idx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mapping, tt.vmod)
		}
	})

	t.Run("key types", func(t *testing.T) {
		tests := []struct {
			kc     keymap.Keycode
			layout keymap.LayoutIndex
			want   string
		}{
			{kc: 9, want: "ONE_LEVEL"},
			{kc: 10, want: "TWO_LEVEL"},
			{kc: 10, layout: 1, want: "TWO_LEVEL"},
			{kc: 24, want: "ALPHABETIC"},
			{kc: 38, want: "FOUR_LEVEL_SEMIALPHABETIC"},
			{kc: 79, want: "KEYPAD"},
			{kc: 80, want: "KEYPAD"},
			{kc: 108, want: "TWO_LEVEL"},
		}
		for _, tt := range tests {
			got, err := km.KeyTypeName(tt.kc, tt.layout)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "keycode %d layout %d", tt.kc, tt.layout)
		}
	})

	t.Run("symbols", func(t *testing.T) {
		got, err := km.KeySymsByLevel(24, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, syms("Cyrillic_SHORTI"), got)

		got, err = km.KeySymsByLevel(38, 0, 3)
		require.NoError(t, err)
		assert.Equal(t, syms("numbersign"), got)

		got, err = km.KeySymsByLevel(11, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, syms("at"), got)

		_, err = km.KeySymsByLevel(11, 1, 0)
		assert.ErrorIs(t, err, keymap.ErrInvalidLayoutIndex)
	})

	t.Run("levels", func(t *testing.T) {
		shift := keymap.ModMask(1 << keymap.ModShift)
		lock := keymap.ModMask(1 << keymap.ModLock)
		mod2 := keymap.ModMask(1 << keymap.ModMod2)
		mod5 := keymap.ModMask(1 << keymap.ModMod5)

		assert.Equal(t, keymap.LevelIndex(2), km.KeyLevel(38, 0, lock|mod5))
		assert.Equal(t, shift|mod5, km.KeyConsumedMods(38, 0, lock|mod5))
		assert.Equal(t, keymap.LevelIndex(3), km.KeyLevel(38, 0, shift|mod5))
		assert.Equal(t, keymap.LevelIndex(1), km.KeyLevel(79, 0, mod2))
		assert.Equal(t, keymap.LevelIndex(0), km.KeyLevel(79, 0, shift|mod2))
	})

	t.Run("modifier map", func(t *testing.T) {
		assert.Equal(t, keymap.ModMask(1<<keymap.ModShift), km.KeyModMap(50))
		assert.Equal(t, keymap.ModMask(1<<keymap.ModShift), km.KeyModMap(62))
		assert.Equal(t, keymap.ModMask(1<<keymap.ModLock), km.KeyModMap(66))
		assert.Equal(t, keymap.ModMask(1<<keymap.ModMod2), km.KeyModMap(77))
		assert.Equal(t, keymap.ModMask(0), km.KeyModMap(65))
	})

	t.Run("repeat", func(t *testing.T) {
		assert.True(t, km.KeyRepeats(65), "default interpret repeats")
		assert.True(t, km.KeyRepeats(9))
		assert.False(t, km.KeyRepeats(66), "explicit repeat")
		assert.False(t, km.KeyRepeats(50), "interpret default")
	})

	t.Run("interpret actions", func(t *testing.T) {
		shift := keymap.ModMask(1 << keymap.ModShift)
		assert.Equal(t, keymap.Action{
			Type:  keymap.ActionModSet,
			Flags: keymap.ActionModsLookupModMap | keymap.ActionLockClear,
			Mods:  keymap.Mods{Mods: shift, Mask: shift},
		}, km.LevelAction(50, 0, 0))

		lock := keymap.ModMask(1 << keymap.ModLock)
		assert.Equal(t, keymap.Action{
			Type: keymap.ActionModLock,
			Mods: keymap.Mods{Mods: lock, Mask: lock},
		}, km.LevelAction(66, 0, 0))

		numLock := modBit(t, km, "NumLock")
		act := km.LevelAction(77, 0, 0)
		assert.Equal(t, keymap.ActionModLock, act.Type)
		assert.Equal(t, keymap.Mods{Mods: numLock, Mask: 1 << keymap.ModMod2}, act.Mods)

		levelThree := modBit(t, km, "LevelThree")
		act = km.LevelAction(108, 0, 0)
		assert.Equal(t, keymap.ActionModSet, act.Type)
		assert.Equal(t, keymap.Mods{Mods: levelThree, Mask: 1 << keymap.ModMod5}, act.Mods)

		assert.Equal(t, keymap.ActionNone, km.LevelAction(65, 0, 0).Type)
	})

	t.Run("explicit actions", func(t *testing.T) {
		mod4 := keymap.ModMask(1 << keymap.ModMod4)
		assert.Equal(t, keymap.Action{
			Type: keymap.ActionModSet,
			Mods: keymap.Mods{Mods: mod4, Mask: mod4},
		}, km.LevelAction(133, 0, 0))
		assert.False(t, km.KeyRepeats(133))
	})

	t.Run("leds", func(t *testing.T) {
		leds := km.LEDs()
		require.Len(t, leds, 5)
		names := make([]string, len(leds))
		for i, l := range leds {
			names[i] = l.Name
		}
		assert.Equal(t, []string{"Caps Lock", "Num Lock", "Scroll Lock", "Shift Lock", "Group 2"}, names)

		assert.Equal(t, keymap.WhichLocked, leds[1].WhichMods)
		assert.Equal(t, keymap.ModMask(1<<keymap.ModMod2), leds[1].Mods.Mask)
		assert.Equal(t, uint32(0xfe), leds[4].Groups)
		assert.Equal(t, keymap.WhichEffective, leds[4].WhichGroups)
	})
}

func TestCompileComponents(t *testing.T) {
	opts := xkbcomp.Options{Includer: treeIncluder(includeTree)}

	tests := []struct {
		name    string
		symbols string
		check   func(t *testing.T, km *keymap.Keymap)
	}{
		{
			name:    "single layout",
			symbols: "pc+us",
			check: func(t *testing.T, km *keymap.Keymap) {
				assert.Equal(t, keymap.LayoutIndex(1), km.NumLayouts())
				got, err := km.KeySymsByLevel(24, 0, 1)
				require.NoError(t, err)
				assert.Equal(t, syms("Q"), got)
				typ, err := km.KeyTypeName(38, 0)
				require.NoError(t, err)
				assert.Equal(t, "ALPHABETIC", typ)
				assert.False(t, km.KeyRepeats(50))
				assert.True(t, km.KeyRepeats(65))
			},
		},
		{
			name:    "second layout",
			symbols: "pc+us+ru:2",
			check: func(t *testing.T, km *keymap.Keymap) {
				assert.Equal(t, keymap.LayoutIndex(2), km.NumLayouts())
				name, err := km.LayoutName(1)
				require.NoError(t, err)
				assert.Equal(t, "Russian", name)
				got, err := km.KeySymsByLevel(24, 1, 0)
				require.NoError(t, err)
				assert.Equal(t, syms("Cyrillic_shorti"), got)
				got, err = km.KeySymsByLevel(24, 0, 0)
				require.NoError(t, err)
				assert.Equal(t, syms("q"), got)
			},
		},
		{
			name:    "override",
			symbols: "pc+us+ru",
			check: func(t *testing.T, km *keymap.Keymap) {
				assert.Equal(t, keymap.LayoutIndex(1), km.NumLayouts())
				name, err := km.LayoutName(0)
				require.NoError(t, err)
				assert.Equal(t, "Russian", name)
				got, err := km.KeySymsByLevel(24, 0, 0)
				require.NoError(t, err)
				assert.Equal(t, syms("Cyrillic_shorti"), got)
				got, err = km.KeySymsByLevel(10, 0, 1)
				require.NoError(t, err)
				assert.Equal(t, syms("exclam"), got)
			},
		},
		{
			name:    "augment",
			symbols: "pc+us|ru",
			check: func(t *testing.T, km *keymap.Keymap) {
				name, err := km.LayoutName(0)
				require.NoError(t, err)
				assert.Equal(t, "English (US)", name)
				got, err := km.KeySymsByLevel(24, 0, 0)
				require.NoError(t, err)
				assert.Equal(t, syms("q"), got)
			},
		},
		{
			name:    "named section with nested include",
			symbols: "pc+us(alt)",
			check: func(t *testing.T, km *keymap.Keymap) {
				name, err := km.LayoutName(0)
				require.NoError(t, err)
				assert.Equal(t, "English (alt)", name)
				got, err := km.KeySymsByLevel(10, 0, 1)
				require.NoError(t, err)
				assert.Equal(t, syms("at"), got)
				got, err = km.KeySymsByLevel(38, 0, 1)
				require.NoError(t, err)
				assert.Equal(t, syms("A"), got)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := xkbcomp.CompileComponents(components(tt.symbols), opts)
			require.NoError(t, err)

			kc, err := km.KeyByName("LatA")
			require.NoError(t, err)
			assert.Equal(t, keymap.Keycode(38), kc)
			assert.Equal(t, keymap.ModMask(1<<keymap.ModShift), km.KeyModMap(50))

			tt.check(t, km)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	opts := xkbcomp.Options{Includer: treeIncluder(includeTree)}

	tests := []struct {
		name    string
		comps   xkbcomp.Components
		wantErr error
	}{
		{name: "missing file", comps: components("pc+nope"), wantErr: xkbcomp.ErrIncludeNotFound},
		{name: "missing section", comps: components("us(nope)"), wantErr: xkbcomp.ErrNoSection},
		{name: "include cycle", comps: components("loop"), wantErr: xkbcomp.ErrIncludeDepth},
		{name: "syntax error", comps: components("broken"), wantErr: xkbcomp.ErrSyntax},
		{name: "bad include statement", comps: components("us:7"), wantErr: xkbcomp.ErrSyntax},
		{name: "empty component", comps: xkbcomp.Components{Keycodes: "evdev"}, wantErr: xkbcomp.ErrSemantic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := xkbcomp.CompileComponents(tt.comps, opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("syntax error position", func(t *testing.T) {
		_, err := xkbcomp.CompileComponents(components("broken"), opts)
		var xerr *xkbcomp.Error
		require.ErrorAs(t, err, &xerr)
		assert.Equal(t, "symbols/broken", xerr.File)
		assert.Equal(t, xkbcomp.Pos{Line: 3, Col: 1}, xerr.Pos)
	})

	t.Run("no includer", func(t *testing.T) {
		_, err := xkbcomp.CompileComponents(components("us"), xkbcomp.Options{})
		assert.ErrorIs(t, err, xkbcomp.ErrIncludeNotFound)
	})
}

func TestCompileRejectsIncompleteKeymap(t *testing.T) {
	_, err := xkbcomp.Compile("partial", []byte(`xkb_keymap {
	xkb_keycodes { <A> = 38; };
	xkb_types { };
	xkb_compat { };
};`), xkbcomp.Options{})
	assert.ErrorIs(t, err, xkbcomp.ErrSemantic)
}

func TestCompileSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "keycode out of range", body: `xkb_keycodes { <A> = 5000; };`},
		{name: "indicator index", body: `xkb_keycodes { indicator 40 = "X"; };`},
		{name: "unknown predicate", body: `xkb_compat { interpret a+Sometimes(Shift) { }; };`},
		{name: "real modifier as virtual", body: `xkb_types { virtual_modifiers Shift; };`},
	}
	sections := map[string]string{
		"keycodes": `xkb_keycodes { <A> = 38; };`,
		"types":    `xkb_types { };`,
		"compat":   `xkb_compat { };`,
		"symbols":  `xkb_symbols { };`,
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "xkb_keymap {\n" + tt.body + "\n"
			for _, k := range []string{"keycodes", "types", "compat", "symbols"} {
				if !containsKind(tt.body, k) {
					src += sections[k] + "\n"
				}
			}
			src += "};"
			_, err := xkbcomp.Compile("bad", []byte(src), xkbcomp.Options{})
			assert.ErrorIs(t, err, xkbcomp.ErrSemantic)
		})
	}
}

func containsKind(body, kind string) bool {
	prefix := "xkb_" + kind
	return len(body) >= len(prefix) && body[:len(prefix)] == prefix
}

func TestCompileWarnings(t *testing.T) {
	tests := []struct {
		verbosity int
		want      bool
	}{
		{verbosity: 0, want: false},
		{verbosity: 1, want: true},
	}
	for _, tt := range tests {
		h := &recordHandler{}
		compileBasic(t, xkbcomp.Options{Logger: slog.New(h), Verbosity: tt.verbosity})
		if tt.want {
			assert.Contains(t, h.messages(), "alias target not defined, alias ignored")
		} else {
			assert.NotContains(t, h.messages(), "alias target not defined, alias ignored")
		}
	}

	h := &recordHandler{}
	_, err := xkbcomp.Compile("warn", []byte(`xkb_keymap {
	xkb_keycodes { <A> = 38; };
	xkb_types { };
	xkb_compat { };
	xkb_symbols { key <A> { [ notakeysym ] }; key <B> { [ b ] }; };
};`), xkbcomp.Options{Logger: slog.New(h)})
	require.NoError(t, err)
	assert.Contains(t, h.messages(), "unrecognized keysym")
	assert.Contains(t, h.messages(), "key not defined in keycodes, symbols ignored")
}

func TestCompileUnsupportedActions(t *testing.T) {
	km, err := xkbcomp.Compile("actions", []byte(`xkb_keymap {
	xkb_keycodes { <A> = 38; <B> = 39; };
	xkb_types { };
	xkb_compat { };
	xkb_symbols {
		key <A> { [ a ], actions[Group1] = [ MovePtr(x=1, y=1) ] };
		key <B> { [ b ], actions[Group1] = [ LockGroup(group=+1) ] };
	};
};`), xkbcomp.Options{})
	require.NoError(t, err)
	assert.Equal(t, keymap.Action{}, km.LevelAction(38, 0, 0))
	assert.Equal(t, keymap.Action{Type: keymap.ActionGroupLock, Group: 1}, km.LevelAction(39, 0, 0))
}

func TestTextRoundTrip(t *testing.T) {
	km := compileBasic(t, xkbcomp.Options{})
	text, err := km.Text()
	require.NoError(t, err)

	again, err := xkbcomp.Compile("roundtrip", []byte(text), xkbcomp.Options{})
	require.NoError(t, err, text)

	assert.Equal(t, km.MinKeycode(), again.MinKeycode())
	assert.Equal(t, km.MaxKeycode(), again.MaxKeycode())
	assert.Equal(t, km.Keycodes(), again.Keycodes())
	assert.Equal(t, km.NumMods(), again.NumMods())
	assert.Equal(t, km.NumLayouts(), again.NumLayouts())
	assert.Equal(t, km.LEDs(), again.LEDs())

	for i := range km.NumMods() {
		want, err := km.ModMapping(i)
		require.NoError(t, err)
		got, err := again.ModMapping(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "modifier %d", i)
	}
	for kc := range km.Keys() {
		assert.Equal(t, km.KeyRepeats(kc), again.KeyRepeats(kc), "keycode %d", kc)
		assert.Equal(t, km.KeyModMap(kc), again.KeyModMap(kc), "keycode %d", kc)
		for layout := range km.NumLayoutsForKey(kc) {
			wantType, _ := km.KeyTypeName(kc, layout)
			gotType, _ := again.KeyTypeName(kc, layout)
			assert.Equal(t, wantType, gotType, "keycode %d", kc)
			for level := range km.NumLevelsForKey(kc, layout) {
				want, err := km.KeySymsByLevel(kc, layout, level)
				require.NoError(t, err)
				got, err := again.KeySymsByLevel(kc, layout, level)
				require.NoError(t, err)
				assert.Equal(t, want, got, "keycode %d layout %d level %d", kc, layout, level)
				assert.Equal(t, km.LevelAction(kc, layout, level), again.LevelAction(kc, layout, level))
			}
		}
	}
}
