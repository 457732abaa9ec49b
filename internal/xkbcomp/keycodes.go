package xkbcomp

import (
	"maps"
	"slices"
	"strings"

	"github.com/Alia5/goxkb/keymap"
)

const maxKeycode = 0xfff

type keyNameInfo struct {
	code  keymap.Keycode
	merge mergeMode
}

type aliasInfo struct {
	target string
	merge  mergeMode
	file   string
	pos    Pos
}

type ledNameInfo struct {
	name  string
	merge mergeMode
}

type keycodesInfo struct {
	names   map[string]keyNameInfo
	codes   map[keymap.Keycode]string
	aliases map[string]aliasInfo
	leds    map[int]ledNameInfo
}

func newKeycodesInfo() *keycodesInfo {
	return &keycodesInfo{
		names:   map[string]keyNameInfo{},
		codes:   map[keymap.Keycode]string{},
		aliases: map[string]aliasInfo{},
		leds:    map[int]ledNameInfo{},
	}
}

func (c *compiler) addKeyName(info *keycodesInfo, file string, pos Pos, name string, code keymap.Keycode, merge mergeMode) {
	if old, ok := info.codes[code]; ok {
		if old == name {
			return
		}
		if !merge.clobber() {
			c.warn(1, file, pos, "multiple names for keycode, keeping the first", "keycode", code, "name", old, "ignored", name)
			return
		}
		c.warn(1, file, pos, "multiple names for keycode, using the last", "keycode", code, "name", name, "ignored", old)
		delete(info.names, old)
	}
	if old, ok := info.names[name]; ok {
		if !merge.clobber() {
			c.warn(1, file, pos, "key name assigned to multiple keycodes, keeping the first", "name", name, "keycode", old.code)
			return
		}
		delete(info.codes, old.code)
	}
	info.names[name] = keyNameInfo{code: code, merge: merge}
	info.codes[code] = name
}

func (c *compiler) addAlias(info *keycodesInfo, alias string, a aliasInfo) {
	if old, ok := info.aliases[alias]; ok && old.target != a.target {
		if !a.merge.clobber() {
			c.warn(1, a.file, a.pos, "multiple definitions for alias, keeping the first", "alias", alias, "target", old.target)
			return
		}
		c.warn(1, a.file, a.pos, "multiple definitions for alias, using the last", "alias", alias, "target", a.target)
	}
	info.aliases[alias] = a
}

func (c *compiler) addLEDName(info *keycodesInfo, file string, pos Pos, idx int, l ledNameInfo) {
	for i, old := range info.leds {
		if i != idx && strings.EqualFold(old.name, l.name) {
			if !l.merge.clobber() {
				c.warn(1, file, pos, "indicator name defined twice, keeping the first", "name", l.name, "index", i+1)
				return
			}
			delete(info.leds, i)
		}
	}
	if old, ok := info.leds[idx]; ok && old.name != l.name && !l.merge.clobber() {
		c.warn(1, file, pos, "multiple names for indicator, keeping the first", "index", idx+1, "name", old.name)
		return
	}
	info.leds[idx] = l
}

func (c *compiler) keycodesDecl(info *keycodesInfo, file string, d decl) error {
	switch d := d.(type) {
	case *keycodeDecl:
		if d.code < 0 || d.code > maxKeycode {
			return c.semanticf(file, d.pos, "keycode %d of <%s> out of range 0..%d", d.code, d.name, maxKeycode)
		}
		c.addKeyName(info, file, d.pos, d.name, keymap.Keycode(d.code), d.merge)
	case *aliasDecl:
		c.addAlias(info, d.alias, aliasInfo{target: d.target, merge: d.merge, file: file, pos: d.pos})
	case *ledNameDecl:
		if d.index < 1 || d.index > keymap.MaxLEDs {
			return c.semanticf(file, d.pos, "indicator index %d out of range 1..%d", d.index, keymap.MaxLEDs)
		}
		name, err := c.evalString(file, d.name)
		if err != nil {
			return err
		}
		c.addLEDName(info, file, d.pos, int(d.index-1), ledNameInfo{name: name, merge: d.merge})
	case *varDecl:
		_, field, _ := d.lhs.lhsParts()
		switch strings.ToLower(field) {
		case "minimum", "maximum":
			// Bounds are derived from the defined keys; declared ones are
			// only checked.
			v, err := c.evalInt(file, d.value)
			if err != nil {
				return err
			}
			if v < 0 || v > maxKeycode {
				return c.semanticf(file, d.pos, "%s keycode %d out of range 0..%d", field, v, maxKeycode)
			}
		default:
			c.warn(0, file, d.pos, "unknown field in keycodes section, ignored", "field", field)
		}
	case *vmodList:
		c.warn(0, file, d.pos, "virtual_modifiers in keycodes section, ignored")
	default:
		c.warn(0, file, d.declPos(), "statement not allowed in keycodes section, ignored")
	}
	return nil
}

func (c *compiler) mergeKeycodes(into, from *keycodesInfo, merge mergeMode, _ int) {
	codes := slices.Sorted(maps.Keys(from.codes))
	for _, code := range codes {
		name := from.codes[code]
		c.addKeyName(into, "", Pos{}, name, code, itemMerge(from.names[name].merge, merge))
	}
	for _, alias := range slices.Sorted(maps.Keys(from.aliases)) {
		a := from.aliases[alias]
		a.merge = itemMerge(a.merge, merge)
		c.addAlias(into, alias, a)
	}
	for _, idx := range slices.Sorted(maps.Keys(from.leds)) {
		l := from.leds[idx]
		l.merge = itemMerge(l.merge, merge)
		c.addLEDName(into, "", Pos{}, idx, l)
	}
}

// keycodesResult is the reduced keycodes section.
type keycodesResult struct {
	name     string
	min, max keymap.Keycode
	names    map[string]keymap.Keycode
	codes    map[keymap.Keycode]string
	aliases  map[string]string
	ledNames map[int]string
}

// lookup resolves a key name or alias to a keycode.
func (r *keycodesResult) lookup(name string) (keymap.Keycode, bool) {
	if kc, ok := r.names[name]; ok {
		return kc, true
	}
	if target, ok := r.aliases[name]; ok {
		kc, ok := r.names[target]
		return kc, ok
	}
	return keymap.KeycodeInvalid, false
}

func (c *compiler) compileKeycodes(sec *section) (*keycodesResult, error) {
	info := newKeycodesInfo()
	h := sectionHandler[*keycodesInfo]{
		newInfo: newKeycodesInfo,
		decl:    c.keycodesDecl,
		merge:   c.mergeKeycodes,
	}
	if err := processSection(c, h, info, sec, 0); err != nil {
		return nil, err
	}

	res := &keycodesResult{
		name:     sec.name,
		min:      8,
		max:      255,
		names:    make(map[string]keymap.Keycode, len(info.names)),
		codes:    info.codes,
		aliases:  map[string]string{},
		ledNames: map[int]string{},
	}
	for i, code := range slices.Sorted(maps.Keys(info.codes)) {
		if i == 0 {
			res.min = code
		}
		res.max = code
		res.names[info.codes[code]] = code
	}
	for alias, a := range info.aliases {
		if _, ok := res.names[a.target]; !ok {
			c.warn(1, a.file, a.pos, "alias target not defined, alias ignored", "alias", alias, "target", a.target)
			continue
		}
		if _, ok := res.names[alias]; ok {
			c.warn(1, a.file, a.pos, "alias shadows a real key name, alias ignored", "alias", alias)
			continue
		}
		res.aliases[alias] = a.target
	}
	for idx, l := range info.leds {
		res.ledNames[idx] = l.name
	}
	return res, nil
}
