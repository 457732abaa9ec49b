package xkb

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/Alia5/goxkb/internal/xkbcomp"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/rules"
)

// KeymapFromNames builds a keymap from RMLVO names. Empty fields, or all
// of them when names is nil, are filled from the environment (unless the
// Context has NoEnvironmentNames) and then from the built-in defaults.
func (c *Context) KeymapFromNames(names *rules.Names) (*keymap.Keymap, error) {
	n := c.defaultNames(names)
	table, err := c.loadRules(n.Rules)
	if err != nil {
		return nil, c.creationError(err)
	}
	comps, err := table.Resolve(n)
	if err != nil {
		return nil, c.creationError(err)
	}
	for _, opt := range comps.Unmatched {
		c.logf(LogWarning, "rules %q: unrecognized option %q ignored", n.Rules, opt)
	}
	c.logf(LogDebug, "compiling %s: keycodes %q, types %q, compat %q, symbols %q",
		n, comps.Keycodes, comps.Types, comps.Compat, comps.Symbols)

	km, err := xkbcomp.CompileComponents(xkbcomp.Components{
		Keycodes: comps.Keycodes,
		Types:    comps.Types,
		Compat:   comps.Compat,
		Symbols:  comps.Symbols,
	}, c.compileOptions())
	if err != nil {
		return nil, c.creationError(err)
	}
	return km, nil
}

// KeymapFromString compiles keymap text.
func (c *Context) KeymapFromString(s string) (*keymap.Keymap, error) {
	return c.compile("(string)", []byte(s))
}

// KeymapFromBuffer compiles the first length bytes of buf. Trailing NUL
// bytes are ignored.
func (c *Context) KeymapFromBuffer(buf []byte, length int) (*keymap.Keymap, error) {
	if length < 0 || length > len(buf) {
		return nil, c.creationError(fmt.Errorf("%w: %d bytes in a buffer of %d", ErrInvalidLength, length, len(buf)))
	}
	return c.compile("(buffer)", bytes.TrimRight(buf[:length], "\x00"))
}

// KeymapFromFile compiles the keymap text in f, memory mapped where the
// platform allows it.
func (c *Context) KeymapFromFile(f *os.File) (*keymap.Keymap, error) {
	data, unmap, err := mapFile(f)
	if err != nil {
		return nil, c.creationError(fmt.Errorf("reading %s: %w", f.Name(), err))
	}
	defer unmap()
	return c.compile(f.Name(), bytes.TrimRight(data, "\x00"))
}

// KeymapFromReader compiles the keymap text read from r.
func (c *Context) KeymapFromReader(r io.Reader) (*keymap.Keymap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, c.creationError(err)
	}
	return c.compile("(reader)", data)
}

func (c *Context) compile(name string, src []byte) (*keymap.Keymap, error) {
	km, err := xkbcomp.Compile(name, src, c.compileOptions())
	if err != nil {
		return nil, c.creationError(err)
	}
	return km, nil
}

func (c *Context) creationError(err error) error {
	c.logf(LogError, "%v", err)
	return fmt.Errorf("%w: %w", ErrKeymapCreation, err)
}

// readFile is the fallback of mapFile.
func readFile(f *os.File) ([]byte, func(), error) {
	data, err := io.ReadAll(f)
	return data, func() {}, err
}
