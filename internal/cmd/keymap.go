package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/xkb"
)

// ContextFlags configures the xkb.Context commands compile with.
type ContextFlags struct {
	Include           []string `help:"Extra XKB include directory, searched before the defaults" env:"XKBCLI_INCLUDE"`
	NoDefaultIncludes bool     `help:"Do not search the default include directories or the builtin data"`
	NoEnvironment     bool     `help:"Ignore the XKB_DEFAULT_* environment variables"`
	XkbLogLevel       string   `help:"Level of keymap compiler messages (critical, error, warning, info, debug)" default:"warning" env:"XKB_LOG_LEVEL"`
	XkbVerbosity      int      `help:"Verbosity of keymap compiler warnings (0-10)" default:"0" env:"XKB_LOG_VERBOSITY"`
}

// NewContext builds a Context logging through logger.
func (f *ContextFlags) NewContext(logger *slog.Logger) (*xkb.Context, error) {
	var flags xkb.ContextFlags
	if f.NoDefaultIncludes {
		flags |= xkb.NoDefaultIncludes
	}
	if f.NoEnvironment {
		flags |= xkb.NoEnvironmentNames
	}
	ctx, err := xkb.NewContext(flags, xkb.WithLogger(logger), xkb.WithIncludePaths(f.Include...))
	if err != nil {
		return nil, err
	}
	if f.XkbLogLevel != "" {
		level, err := xkb.ParseLogLevel(f.XkbLogLevel)
		if err != nil {
			return nil, err
		}
		ctx.SetLogLevel(level)
	}
	ctx.SetLogVerbosity(f.XkbVerbosity)
	return ctx, nil
}

// KeymapSource selects a keymap either by RMLVO names or by a keymap file.
type KeymapSource struct {
	ContextFlags `embed:""`

	File    string `help:"Compile this keymap file instead of resolving names" short:"f" type:"existingfile"`
	Rules   string `help:"Rules file name" placeholder:"evdev"`
	Model   string `help:"Keyboard model" placeholder:"pc105"`
	Layout  string `help:"Comma separated layouts" short:"l" placeholder:"us"`
	Variant string `help:"Comma separated variants, one per layout"`
	Options string `help:"Comma separated options"`
}

// Names returns the RMLVO flags; empty fields take the defaults.
func (s *KeymapSource) Names() *rules.Names {
	return &rules.Names{
		Rules:   s.Rules,
		Model:   s.Model,
		Layout:  s.Layout,
		Variant: s.Variant,
		Options: s.Options,
	}
}

func (s *KeymapSource) hasNames() bool {
	return s.Rules != "" || s.Model != "" || s.Layout != "" || s.Variant != "" || s.Options != ""
}

// Load compiles the selected keymap.
func (s *KeymapSource) Load(ctx *xkb.Context) (*keymap.Keymap, error) {
	if s.File == "" {
		return ctx.KeymapFromNames(s.Names())
	}
	if s.hasNames() {
		return nil, fmt.Errorf("--file cannot be combined with RMLVO names")
	}
	f, err := os.Open(s.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ctx.KeymapFromFile(f)
}
