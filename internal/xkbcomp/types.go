package xkbcomp

import (
	"strings"

	"github.com/Alia5/goxkb/keymap"
)

type typeInfo struct {
	name       string
	merge      mergeMode
	file       string
	pos        Pos
	mods       keymap.ModMask
	entries    []keymap.KeyTypeEntry
	levelNames []string
}

func (t *typeInfo) entry(mods keymap.ModMask) *keymap.KeyTypeEntry {
	for i := range t.entries {
		if t.entries[i].Mods.Mods == mods {
			return &t.entries[i]
		}
	}
	return nil
}

func (t *typeInfo) numLevels() keymap.LevelIndex {
	n := keymap.LevelIndex(max(len(t.levelNames), 1))
	for _, e := range t.entries {
		n = max(n, e.Level+1)
	}
	return n
}

type typesInfo struct {
	types []*typeInfo
}

func newTypesInfo() *typesInfo { return &typesInfo{} }

func (info *typesInfo) find(name string) int {
	for i, t := range info.types {
		if t.name == name {
			return i
		}
	}
	return -1
}

func (c *compiler) addType(info *typesInfo, t *typeInfo) {
	i := info.find(t.name)
	if i < 0 {
		info.types = append(info.types, t)
		return
	}
	if !t.merge.clobber() {
		c.warn(1, t.file, t.pos, "multiple definitions of key type, keeping the first", "type", t.name)
		return
	}
	c.warn(1, t.file, t.pos, "multiple definitions of key type, using the last", "type", t.name)
	info.types[i] = t
}

func (c *compiler) typesDecl(info *typesInfo, file string, d decl) error {
	switch d := d.(type) {
	case *vmodList:
		return c.declareVMods(file, d)
	case *typeDecl:
		t, err := c.evalType(file, d)
		if err != nil {
			return err
		}
		c.addType(info, t)
	case *varDecl:
		_, field, _ := d.lhs.lhsParts()
		c.warn(0, file, d.pos, "global assignment in types section, ignored", "field", field)
	default:
		c.warn(0, file, d.declPos(), "statement not allowed in types section, ignored")
	}
	return nil
}

func (c *compiler) evalType(file string, d *typeDecl) (*typeInfo, error) {
	t := &typeInfo{name: d.name, merge: d.merge, file: file, pos: d.pos}

	// Entries are checked against the type's modifiers, so read those
	// first wherever they appear.
	for _, v := range d.body {
		if _, field, _ := v.lhs.lhsParts(); strings.EqualFold(field, "modifiers") {
			mods, err := c.evalModMask(file, v.value, false)
			if err != nil {
				return nil, err
			}
			t.mods = mods
		}
	}

	for _, v := range d.body {
		elem, field, index := v.lhs.lhsParts()
		if elem != "" && !strings.EqualFold(elem, "type") {
			c.warn(0, file, v.pos, "unknown element in key type, ignored", "element", elem)
			continue
		}
		switch strings.ToLower(field) {
		case "modifiers":
		case "map":
			if index == nil {
				return nil, c.semanticf(file, v.pos, "map entry without modifiers in type %q", t.name)
			}
			mods, err := c.typeEntryMods(file, t, index)
			if err != nil {
				return nil, err
			}
			level, err := c.evalLevel(file, v.value)
			if err != nil {
				return nil, err
			}
			if e := t.entry(mods); e != nil {
				if e.Level != level {
					c.warn(1, file, v.pos, "multiple map entries for modifiers in key type, using the last", "type", t.name)
				}
				e.Level = level
			} else {
				t.entries = append(t.entries, keymap.KeyTypeEntry{Level: level, Mods: keymap.Mods{Mods: mods}})
			}
		case "preserve":
			if index == nil {
				return nil, c.semanticf(file, v.pos, "preserve entry without modifiers in type %q", t.name)
			}
			mods, err := c.typeEntryMods(file, t, index)
			if err != nil {
				return nil, err
			}
			preserve, err := c.evalModMask(file, v.value, false)
			if err != nil {
				return nil, err
			}
			if preserve&^mods != 0 {
				c.warn(1, file, v.pos, "preserve modifiers not part of the map entry, ignored", "type", t.name)
				preserve &= mods
			}
			e := t.entry(mods)
			if e == nil {
				t.entries = append(t.entries, keymap.KeyTypeEntry{Mods: keymap.Mods{Mods: mods}})
				e = &t.entries[len(t.entries)-1]
			}
			e.Preserve.Mods = preserve
		case "level_name", "levelname":
			if index == nil {
				return nil, c.semanticf(file, v.pos, "level name without level in type %q", t.name)
			}
			level, err := c.evalLevel(file, index)
			if err != nil {
				return nil, err
			}
			name, err := c.evalString(file, v.value)
			if err != nil {
				return nil, err
			}
			for keymap.LevelIndex(len(t.levelNames)) <= level {
				t.levelNames = append(t.levelNames, "")
			}
			t.levelNames[level] = name
		default:
			c.warn(0, file, v.pos, "unknown field in key type, ignored", "type", t.name, "field", field)
		}
	}
	return t, nil
}

func (c *compiler) typeEntryMods(file string, t *typeInfo, index *expr) (keymap.ModMask, error) {
	mods, err := c.evalModMask(file, index, false)
	if err != nil {
		return 0, err
	}
	if mods&^t.mods != 0 {
		c.warn(1, file, index.pos, "map entry uses modifiers outside the type, ignoring them", "type", t.name)
		mods &= t.mods
	}
	return mods, nil
}

func (c *compiler) mergeTypes(into, from *typesInfo, merge mergeMode, _ int) {
	for _, t := range from.types {
		t.merge = itemMerge(t.merge, merge)
		c.addType(into, t)
	}
}

// Types every keymap has, in this order at the start of the type table.
// A section definition of the same name replaces the builtin one.
const (
	typeOneLevel   = "ONE_LEVEL"
	typeTwoLevel   = "TWO_LEVEL"
	typeAlphabetic = "ALPHABETIC"
	typeKeypad     = "KEYPAD"
)

func (c *compiler) canonicalTypes() []*typeInfo {
	shift := keymap.ModMask(1) << keymap.ModShift
	lock := keymap.ModMask(1) << keymap.ModLock
	keypad := &typeInfo{
		name:       typeKeypad,
		mods:       shift,
		entries:    []keymap.KeyTypeEntry{{Level: 1, Mods: keymap.Mods{Mods: shift}}},
		levelNames: []string{"Base", "Number"},
	}
	if idx, ok := c.modIndex("NumLock"); ok {
		num := keymap.ModMask(1) << idx
		keypad.mods |= num
		keypad.entries = append(keypad.entries, keymap.KeyTypeEntry{Level: 1, Mods: keymap.Mods{Mods: num}})
	}
	return []*typeInfo{
		{name: typeOneLevel, levelNames: []string{"Any"}},
		{
			name:       typeTwoLevel,
			mods:       shift,
			entries:    []keymap.KeyTypeEntry{{Level: 1, Mods: keymap.Mods{Mods: shift}}},
			levelNames: []string{"Base", "Shift"},
		},
		{
			name: typeAlphabetic,
			mods: shift | lock,
			entries: []keymap.KeyTypeEntry{
				{Level: 1, Mods: keymap.Mods{Mods: shift}},
				{Level: 1, Mods: keymap.Mods{Mods: lock}},
			},
			levelNames: []string{"Base", "Caps"},
		},
		keypad,
	}
}

func (c *compiler) compileTypes(sec *section) ([]*typeInfo, error) {
	info := newTypesInfo()
	h := sectionHandler[*typesInfo]{
		newInfo: newTypesInfo,
		decl:    c.typesDecl,
		merge:   c.mergeTypes,
	}
	if err := processSection(c, h, info, sec, 0); err != nil {
		return nil, err
	}

	out := c.canonicalTypes()
	for i, t := range out {
		if j := info.find(t.name); j >= 0 {
			out[i] = info.types[j]
		}
	}
	for _, t := range info.types {
		switch t.name {
		case typeOneLevel, typeTwoLevel, typeAlphabetic, typeKeypad:
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
