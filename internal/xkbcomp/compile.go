// Package xkbcomp compiles XKB keymap text into keymap descriptions.
//
// The compiler reads a keymap file or a set of section include statements,
// resolves include statements through an Includer, and reduces keycodes,
// types, compat and symbols sections into a keymap.Keymap.
package xkbcomp

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Alia5/goxkb/keymap"
)

// maxIncludeDepth bounds nested include statements, which also stops
// include cycles.
const maxIncludeDepth = 15

// Includer loads the source of an included file. file is the file part of
// an include statement ("us", "evdev"); name is returned for diagnostics.
// Implementations return an error wrapping ErrIncludeNotFound when no such
// file exists.
type Includer interface {
	Include(kind Kind, file string) (name string, src []byte, err error)
}

// IncluderFunc adapts a function to the Includer interface.
type IncluderFunc func(kind Kind, file string) (string, []byte, error)

func (f IncluderFunc) Include(kind Kind, file string) (string, []byte, error) {
	return f(kind, file)
}

// Options configure a compilation.
type Options struct {
	// Includer resolves include statements. Without one any include
	// statement fails.
	Includer Includer
	// Logger receives warnings. Nil discards them.
	Logger *slog.Logger
	// Verbosity gates warnings: a warning of verbosity v is only logged
	// when v <= Verbosity.
	Verbosity int
}

// Components are the include statements of the four keymap sections, as
// produced by rules resolution.
type Components struct {
	Keycodes string
	Types    string
	Compat   string
	Symbols  string
}

type compiler struct {
	opts  Options
	log   *slog.Logger
	files map[string]*file

	mods []keymap.Mod
	// explicit marks virtual modifiers given a mapping by a
	// virtual_modifiers statement.
	explicit keymap.ModMask
}

func newCompiler(opts Options) *compiler {
	c := &compiler{
		opts:  opts,
		log:   opts.Logger,
		files: map[string]*file{},
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	for _, n := range keymap.RealModNames {
		c.mods = append(c.mods, keymap.Mod{Name: n, Kind: keymap.ModReal})
	}
	return c
}

// Compile compiles keymap source. src holds an xkb_keymap block or the
// four sections at top level; name labels diagnostics.
func Compile(name string, src []byte, opts Options) (*keymap.Keymap, error) {
	f, err := parse(name, src)
	if err != nil {
		return nil, err
	}
	c := newCompiler(opts)
	var sections [KindGeometry]*section
	for _, sec := range f.sections {
		if sec.kind == KindGeometry {
			continue
		}
		if sections[sec.kind] != nil {
			c.warn(0, sec.file, sec.pos, "more than one section of a kind in keymap, ignoring the later one", "kind", sec.kind.String())
			continue
		}
		sections[sec.kind] = sec
	}
	for k, sec := range sections {
		if sec == nil {
			return nil, errorf(ErrSemantic, name, Pos{Line: 1, Col: 1}, "required section %s missing", Kind(k))
		}
	}
	return c.compile(sections)
}

// CompileComponents compiles the keymap made of the given section include
// statements.
func CompileComponents(comps Components, opts Options) (*keymap.Keymap, error) {
	c := newCompiler(opts)
	var sections [KindGeometry]*section
	for k, stmt := range []string{comps.Keycodes, comps.Types, comps.Compat, comps.Symbols} {
		if stmt == "" {
			return nil, errorf(ErrSemantic, "", Pos{}, "no include statement for %s", Kind(k))
		}
		pos := Pos{Line: 1, Col: 1}
		sections[k] = &section{
			kind:  Kind(k),
			name:  stmt,
			file:  "(components)",
			pos:   pos,
			decls: []decl{&includeDecl{pos: pos, merge: mergeDefault, stmt: stmt}},
		}
	}
	return c.compile(sections)
}

func (c *compiler) compile(sections [KindGeometry]*section) (*keymap.Keymap, error) {
	kc, err := c.compileKeycodes(sections[KindKeycodes])
	if err != nil {
		return nil, err
	}
	types, err := c.compileTypes(sections[KindTypes])
	if err != nil {
		return nil, err
	}
	compat, err := c.compileCompat(sections[KindCompat])
	if err != nil {
		return nil, err
	}
	syms, err := c.compileSymbols(sections[KindSymbols], kc)
	if err != nil {
		return nil, err
	}
	desc, err := c.build(kc, sections[KindTypes].name, types, compat, syms)
	if err != nil {
		return nil, err
	}
	return keymap.New(desc)
}

// warn logs a diagnostic if the configured verbosity admits it.
func (c *compiler) warn(verbosity int, file string, pos Pos, msg string, args ...any) {
	if verbosity > c.opts.Verbosity {
		return
	}
	if file == "" {
		file = "(input)"
	}
	attrs := make([]any, 0, len(args)+6)
	attrs = append(attrs, "file", file, "pos", pos.String(), "verbosity", verbosity)
	c.log.Warn(msg, append(attrs, args...)...)
}

// modIndex looks a modifier up by name. Real modifier names match case
// insensitively.
func (c *compiler) modIndex(name string) (keymap.ModIndex, bool) {
	for i, m := range c.mods {
		if m.Kind == keymap.ModReal && strings.EqualFold(m.Name, name) {
			return keymap.ModIndex(i), true
		}
		if m.Name == name {
			return keymap.ModIndex(i), true
		}
	}
	return keymap.ModInvalid, false
}

func (c *compiler) allModsMask() keymap.ModMask {
	return keymap.ModMask(uint64(1)<<len(c.mods) - 1)
}

// declareVMods handles a virtual_modifiers statement.
func (c *compiler) declareVMods(file string, list *vmodList) error {
	for _, d := range list.decls {
		idx, ok := c.modIndex(d.name)
		if ok && idx < keymap.NumRealMods {
			return c.semanticf(file, d.pos, "can't declare real modifier %q as virtual", d.name)
		}
		if !ok {
			if len(c.mods) >= keymap.MaxMods {
				return c.semanticf(file, d.pos, "too many modifiers, can't declare %q", d.name)
			}
			c.mods = append(c.mods, keymap.Mod{Name: d.name, Kind: keymap.ModVirtual})
			idx = keymap.ModIndex(len(c.mods) - 1)
		}
		if d.value == nil {
			continue
		}
		mapping, err := c.evalModMask(file, d.value, true)
		if err != nil {
			return err
		}
		bit := keymap.ModMask(1) << idx
		m := &c.mods[idx]
		if c.explicit&bit != 0 && m.Mapping != mapping && !d.merge.clobber() {
			c.warn(1, file, d.pos, "virtual modifier defined multiple times, keeping the first mapping", "mod", d.name)
			continue
		}
		m.Mapping = mapping
		c.explicit |= bit
	}
	return nil
}

// resolve computes the real modifier mask of a modifier set.
func (c *compiler) resolve(mods keymap.ModMask) keymap.ModMask {
	mask := mods & keymap.RealModsMask
	for i := keymap.NumRealMods; i < len(c.mods); i++ {
		if mods&(1<<uint(i)) != 0 {
			mask |= c.mods[i].Mapping
		}
	}
	return mask
}

func (c *compiler) resolveMods(m keymap.Mods) keymap.Mods {
	return keymap.Mods{Mods: m.Mods, Mask: c.resolve(m.Mods)}
}

// includeItem is one file reference of an include statement.
type includeItem struct {
	file    string
	section string
	group   int // explicit target group, -1 for none
	merge   mergeMode
}

// parseIncludeStmt splits "pc+us(intl):2|compose(ralt)" into its items.
// The first item merges the way the statement does; later items override
// after '+' and augment after '|'.
func parseIncludeStmt(stmt string, merge mergeMode) ([]includeItem, error) {
	var items []includeItem
	rest := stmt
	for rest != "" {
		it := includeItem{group: -1, merge: merge}
		end := strings.IndexAny(rest, "+|")
		part := rest
		if end >= 0 {
			part = rest[:end]
		}
		if len(items) > 0 {
			switch stmt[len(stmt)-len(rest)-1] {
			case '+':
				it.merge = mergeOverride
			case '|':
				it.merge = mergeAugment
			}
		}
		if i := strings.IndexByte(part, ':'); i >= 0 {
			g, err := strconv.Atoi(part[i+1:])
			if err != nil || g < 1 || g > keymap.MaxLayouts {
				return nil, fmt.Errorf("bad group %q in include %q", part[i+1:], stmt)
			}
			it.group = g - 1
			part = part[:i]
		}
		if i := strings.IndexByte(part, '('); i >= 0 {
			if !strings.HasSuffix(part, ")") {
				return nil, fmt.Errorf("unterminated map name in include %q", stmt)
			}
			it.section = part[i+1 : len(part)-1]
			part = part[:i]
		}
		if part == "" {
			return nil, fmt.Errorf("empty file name in include %q", stmt)
		}
		it.file = part
		items = append(items, it)
		if end < 0 {
			break
		}
		rest = rest[end+1:]
		if rest == "" {
			return nil, fmt.Errorf("trailing operator in include %q", stmt)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("empty include statement")
	}
	return items, nil
}

// findSection loads an included file and picks the section named by the
// include, the one flagged default, or the first one.
func (c *compiler) findSection(kind Kind, it includeItem, from string, pos Pos) (*section, error) {
	if c.opts.Includer == nil {
		return nil, errorf(ErrIncludeNotFound, from, pos, "can't include %s %q: no include paths", kind.Dir(), it.file)
	}
	key := kind.Dir() + "/" + it.file
	f, ok := c.files[key]
	if !ok {
		name, src, err := c.opts.Includer.Include(kind, it.file)
		if err != nil {
			if errors.Is(err, ErrIncludeNotFound) {
				return nil, errorf(ErrIncludeNotFound, from, pos, "can't find %s file %q", kind.Dir(), it.file)
			}
			return nil, &Error{File: from, Pos: pos, Msg: fmt.Sprintf("reading %s file %q: %v", kind.Dir(), it.file, err), Err: err}
		}
		if f, err = parse(name, src); err != nil {
			return nil, err
		}
		c.files[key] = f
	}
	var first, dflt *section
	for _, sec := range f.sections {
		if sec.kind != kind {
			continue
		}
		if it.section != "" {
			if sec.name == it.section {
				return sec, nil
			}
			continue
		}
		if first == nil {
			first = sec
		}
		if dflt == nil && sec.flags&flagDefault != 0 {
			dflt = sec
		}
	}
	switch {
	case it.section != "":
		return nil, errorf(ErrNoSection, from, pos, "no %s section %q in file %q", kind, it.section, it.file)
	case dflt != nil:
		return dflt, nil
	case first != nil:
		return first, nil
	}
	return nil, errorf(ErrNoSection, from, pos, "no %s section in file %q", kind, it.file)
}

// sectionHandler drives one section kind through the include machinery.
// Each included file is compiled into a fresh info which is then merged
// into the including one.
type sectionHandler[I any] struct {
	newInfo func() I
	decl    func(info I, file string, d decl) error
	merge   func(into, from I, merge mergeMode, group int)
}

func processSection[I any](c *compiler, h sectionHandler[I], info I, sec *section, depth int) error {
	for _, d := range sec.decls {
		inc, ok := d.(*includeDecl)
		if !ok {
			if err := h.decl(info, sec.file, d); err != nil {
				return err
			}
			continue
		}
		if depth >= maxIncludeDepth {
			return errorf(ErrIncludeDepth, sec.file, inc.pos, "include depth exceeded at %q", inc.stmt)
		}
		items, err := parseIncludeStmt(inc.stmt, inc.merge)
		if err != nil {
			return errorf(ErrSyntax, sec.file, inc.pos, "%v", err)
		}
		for _, it := range items {
			inner, err := c.findSection(sec.kind, it, sec.file, inc.pos)
			if err != nil {
				return err
			}
			sub := h.newInfo()
			if err := processSection(c, h, sub, inner, depth+1); err != nil {
				return err
			}
			h.merge(info, sub, it.merge, it.group)
		}
	}
	return nil
}

// itemMerge is the merge an item of an included info gets when merged with
// mode.
func itemMerge(own, mode mergeMode) mergeMode {
	if mode == mergeDefault {
		return own
	}
	return mode
}
