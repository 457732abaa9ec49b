package xkb_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/goxkb/internal/xkbcomp"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/xkb"
)

const minimalKeymap = `xkb_keymap {
	xkb_keycodes { <SPCE> = 65; <AC01> = 38; };
	xkb_types { include "basic" };
	xkb_compat { };
	xkb_symbols {
		key <SPCE> { [ space ] };
		key <AC01> { [ a, A ] };
	};
};
`

// builtinContext searches the embedded data only.
func builtinContext(t *testing.T, env map[string]string, flags xkb.ContextFlags) *xkb.Context {
	t.Helper()
	ctx, err := xkb.NewContext(flags|xkb.NoDefaultIncludes, xkb.WithGetenv(envFunc(env)))
	require.NoError(t, err)
	require.NoError(t, ctx.IncludePathAppend(xkb.BuiltinIncludePath))
	return ctx
}

func symName(t *testing.T, km *keymap.Keymap, kc keymap.Keycode) string {
	t.Helper()
	syms, err := km.KeySymsByLevel(kc, 0, 0)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	name, err := syms[0].Name()
	require.NoError(t, err)
	return name
}

func TestKeymapFromNamesDefaults(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	km, err := ctx.KeymapFromNames(nil)
	require.NoError(t, err)
	defer km.Unref()

	name, err := km.LayoutName(0)
	require.NoError(t, err)
	assert.Equal(t, "English (US)", name)
	assert.Equal(t, keymap.LayoutIndex(1), km.NumLayouts())

	s := xkb.NewState(km)
	defer s.Unref()
	assert.Equal(t, keysym.Space, s.KeyOneSym(kcSpace))
	assert.Equal(t, keysym.LowerA, s.KeyOneSym(kcA))

	tap(s, kcCaps)
	assert.True(t, modActive(t, s, keymap.ModNameCaps, xkb.ModsLocked))
	assert.Equal(t, keysym.UpperA, s.KeyOneSym(kcA))
	on, err := s.LEDNameIsActive(keymap.LEDNameCaps)
	require.NoError(t, err)
	assert.True(t, on)

	tap(s, kcCaps)
	assert.Equal(t, xkb.Components{}, withoutLEDs(s.Components()))
}

func withoutLEDs(c xkb.Components) xkb.Components {
	c.LEDs = 0
	return c
}

func TestKeymapFromNamesTwoLayouts(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	km, err := ctx.KeymapFromNames(&rules.Names{Layout: "us,ru", Options: "grp:toggle"})
	require.NoError(t, err)
	defer km.Unref()

	require.Equal(t, keymap.LayoutIndex(2), km.NumLayouts())
	idx, err := km.LayoutIndex("Russian")
	require.NoError(t, err)
	assert.Equal(t, keymap.LayoutIndex(1), idx)

	s := xkb.NewState(km)
	defer s.Unref()
	assert.Equal(t, keysym.FromName("q", keysym.NoFlags), s.KeyOneSym(kcQ))

	changed := s.UpdateKey(kcNext, xkb.KeyDown)
	assert.NotZero(t, changed&xkb.LayoutLocked)
	s.UpdateKey(kcNext, xkb.KeyUp)

	active, err := s.LayoutNameIsActive("Russian", xkb.LayoutEffective)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, keysym.FromName("Cyrillic_shorti", keysym.NoFlags), s.KeyOneSym(kcQ))

	tap(s, kcNext)
	assert.Equal(t, keymap.LayoutIndex(0), s.SerializeLayout(xkb.LayoutEffective))
}

func TestKeymapFromNamesEnvironment(t *testing.T) {
	env := map[string]string{
		rules.EnvLayout:  "de",
		rules.EnvOptions: "grp:toggle",
	}

	km, err := builtinContext(t, env, xkb.NoFlags).KeymapFromNames(nil)
	require.NoError(t, err)
	name, err := km.LayoutName(0)
	require.NoError(t, err)
	assert.Equal(t, "German", name)

	km, err = builtinContext(t, env, xkb.NoEnvironmentNames).KeymapFromNames(nil)
	require.NoError(t, err)
	name, err = km.LayoutName(0)
	require.NoError(t, err)
	assert.Equal(t, "English (US)", name)

	// An explicit layout wins over the environment.
	km, err = builtinContext(t, env, xkb.NoFlags).KeymapFromNames(&rules.Names{Layout: "ru"})
	require.NoError(t, err)
	name, err = km.LayoutName(0)
	require.NoError(t, err)
	assert.Equal(t, "Russian", name)
}

func TestKeymapFromNamesErrors(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	tests := []struct {
		name    string
		names   rules.Names
		wantErr error
	}{
		{name: "unknown rules", names: rules.Names{Rules: "nope"}, wantErr: rules.ErrRulesNotFound},
		{name: "unknown layout", names: rules.Names{Layout: "xx"}, wantErr: xkbcomp.ErrIncludeNotFound},
		{name: "too many layouts", names: rules.Names{Layout: "us,us,us,us,us"}, wantErr: rules.ErrTooManyLayouts},
		{name: "too many variants", names: rules.Names{Layout: "us", Variant: "dvorak,basic"}, wantErr: rules.ErrTooManyVariants},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := ctx.KeymapFromNames(&tt.names)
			assert.Nil(t, km)
			assert.ErrorIs(t, err, xkb.ErrKeymapCreation)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKeymapFromNamesUnknownOption(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	ctx.SetLogLevel(xkb.LogWarning)
	rec := &logRecorder{}
	ctx.SetLogFunc(rec.fn)

	km, err := ctx.KeymapFromNames(&rules.Names{Options: "no:such_option"})
	require.NoError(t, err)
	km.Unref()

	e, ok := rec.find(`"no:such_option"`)
	require.True(t, ok)
	assert.Equal(t, xkb.LogWarning, e.level)
}

func TestKeymapFromString(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	km, err := ctx.KeymapFromString(minimalKeymap)
	require.NoError(t, err)
	assert.Equal(t, keymap.Keycode(38), km.MinKeycode())
	assert.Equal(t, keymap.Keycode(65), km.MaxKeycode())
	assert.Equal(t, "a", symName(t, km, 38))
}

func TestKeymapFromStringSyntaxError(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.KeymapFromString("xkb_keymap { xkb_keycodes { <SPCE> = ; }; };")
	require.Error(t, err)
	assert.ErrorIs(t, err, xkb.ErrKeymapCreation)
	assert.ErrorIs(t, err, xkbcomp.ErrSyntax)

	var cerr *xkbcomp.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "(string)", cerr.File)
	assert.Equal(t, 1, cerr.Pos.Line)
}

func TestKeymapFromBuffer(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	buf := append([]byte(minimalKeymap), 0, 0, 0)

	km, err := ctx.KeymapFromBuffer(buf, len(buf))
	require.NoError(t, err)
	assert.Equal(t, "space", symName(t, km, 65))

	for _, n := range []int{-1, len(buf) + 1} {
		_, err := ctx.KeymapFromBuffer(buf, n)
		assert.ErrorIs(t, err, xkb.ErrInvalidLength)
		assert.ErrorIs(t, err, xkb.ErrKeymapCreation)
	}

	_, err = ctx.KeymapFromBuffer(buf, len(minimalKeymap)/2)
	assert.ErrorIs(t, err, xkb.ErrKeymapCreation)
}

func TestKeymapFromReader(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	km, err := ctx.KeymapFromReader(strings.NewReader(minimalKeymap))
	require.NoError(t, err)
	assert.Equal(t, "a", symName(t, km, 38))
}

func TestKeymapFromFilePaddedWithNUL(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	p := filepath.Join(t.TempDir(), "keymap.xkb")
	require.NoError(t, os.WriteFile(p, append([]byte(minimalKeymap), bytes.Repeat([]byte{0}, 100)...), 0o644))
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()

	km, err := ctx.KeymapFromFile(f)
	require.NoError(t, err)
	assert.Equal(t, "space", symName(t, km, 65))
}

func TestKeymapFromEmptyFile(t *testing.T) {
	ctx := newTestContext(t)
	p := filepath.Join(t.TempDir(), "empty.xkb")
	require.NoError(t, os.WriteFile(p, nil, 0o644))
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()

	_, err = ctx.KeymapFromFile(f)
	assert.ErrorIs(t, err, xkb.ErrKeymapCreation)
}

// Serialized keymaps compile back to the same keymap.
func TestKeymapTextRoundTrip(t *testing.T) {
	ctx := builtinContext(t, nil, xkb.NoFlags)
	sources := map[string]func() (*keymap.Keymap, error){
		"sample": func() (*keymap.Keymap, error) { return loadSample(t), nil },
		"us": func() (*keymap.Keymap, error) {
			return ctx.KeymapFromNames(nil)
		},
		"us,ru": func() (*keymap.Keymap, error) {
			return ctx.KeymapFromNames(&rules.Names{Layout: "us,ru", Options: "grp:toggle"})
		},
		"de": func() (*keymap.Keymap, error) {
			return ctx.KeymapFromNames(&rules.Names{Layout: "de"})
		},
	}
	for name, load := range sources {
		t.Run(name, func(t *testing.T) {
			km, err := load()
			require.NoError(t, err)
			text, err := km.Text()
			require.NoError(t, err)

			again, err := newTestContext(t).KeymapFromString(text)
			require.NoError(t, err)
			text2, err := again.Text()
			require.NoError(t, err)
			assert.Equal(t, text, text2)

			assertSameSymbols(t, km, again)
		})
	}
}

// assertSameSymbols compares the keysyms of every key, layout and level.
func assertSameSymbols(t *testing.T, a, b *keymap.Keymap) {
	t.Helper()
	require.Equal(t, a.Keycodes(), b.Keycodes())
	for kc := range a.Keys() {
		require.Equal(t, a.NumLayoutsForKey(kc), b.NumLayoutsForKey(kc), "key %d", kc)
		for l := range a.NumLayoutsForKey(kc) {
			require.Equal(t, a.NumLevelsForKey(kc, l), b.NumLevelsForKey(kc, l), "key %d layout %d", kc, l)
			for lv := range a.NumLevelsForKey(kc, l) {
				sa, err := a.KeySymsByLevel(kc, l, lv)
				require.NoError(t, err)
				sb, err := b.KeySymsByLevel(kc, l, lv)
				require.NoError(t, err)
				assert.Equal(t, sa, sb, "key %d layout %d level %d", kc, l, lv)
			}
		}
	}
}

// The keysyms a State reports are those of the key's level in its layout.
func TestKeySymsMatchLevel(t *testing.T) {
	s := newSampleState(t)
	km := s.Keymap()

	sequences := [][]keymap.Keycode{
		nil,
		{kcLSh},
		{kcCaps},
		{kcNext},
		{kcLSh, kcLCtrl},
		{kcNum, kcLSh},
	}
	for _, held := range sequences {
		for _, kc := range held {
			s.UpdateKey(kc, xkb.KeyDown)
		}
		for kc := range km.Keys() {
			layout, err := s.KeyLayout(kc)
			require.NoError(t, err)
			level, err := s.KeyLevel(kc, layout)
			require.NoError(t, err)
			want, err := km.KeySymsByLevel(kc, layout, level)
			require.NoError(t, err)
			assert.Equal(t, want, s.KeySyms(kc), "key %d held %v", kc, held)
		}
		for _, kc := range held {
			s.UpdateKey(kc, xkb.KeyUp)
		}
	}
}

const multiSymKeymap = `xkb_keymap {
	xkb_keycodes { <SPCE> = 65; <AC01> = 38; <AC02> = 39; };
	xkb_types { include "basic" };
	xkb_compat { };
	xkb_symbols {
		key <SPCE> { [ space ] };
		key <AC01> { [ a, A ] };
		key <AC02> { [ { a, b }, { A, B } ] };
	};
};
`

// A level may hold several keysyms; they stay ordered and produce their
// text together.
func TestMultiKeysymLevel(t *testing.T) {
	const kcAC02 keymap.Keycode = 39

	km, err := builtinContext(t, nil, xkb.NoFlags).KeymapFromString(multiSymKeymap)
	require.NoError(t, err)
	defer km.Unref()

	syms, err := km.KeySymsByLevel(kcAC02, 0, 0)
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, []keysym.Keysym{keysym.LowerA, 'b'}, syms)

	syms, err = km.KeySymsByLevel(kcAC02, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []keysym.Keysym{keysym.UpperA, 'B'}, syms)

	s := xkb.NewState(km)
	defer s.Unref()
	assert.Equal(t, []keysym.Keysym{keysym.LowerA, 'b'}, s.KeySyms(kcAC02))
	assert.Equal(t, keysym.NoSymbol, s.KeyOneSym(kcAC02))
	assert.Equal(t, rune(0), s.KeyUTF32(kcAC02))
	text, err := s.KeyUTF8(kcAC02)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
	assert.Equal(t, keysym.LowerA, s.KeyOneSym(kcA))

	serialized, err := km.Text()
	require.NoError(t, err)
	assert.Contains(t, serialized, "{ a, b }")

	again, err := newTestContext(t).KeymapFromString(serialized)
	require.NoError(t, err)
	defer again.Unref()
	syms, err = again.KeySymsByLevel(kcAC02, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []keysym.Keysym{keysym.LowerA, 'b'}, syms)
	assertSameSymbols(t, km, again)
}
