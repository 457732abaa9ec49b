package xkbcomp

import (
	"strings"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

// Fields set on an interpret or LED map, used when merging definitions.
const (
	interpAction uint8 = 1 << iota
	interpVMod
	interpRepeat
	interpLevelOneOnly
)

const (
	ledMods uint8 = 1 << iota
	ledWhichMods
	ledGroups
	ledWhichGroups
	ledCtrls
)

type interpInfo struct {
	keymap.Interpret
	defined uint8
	merge   mergeMode
	file    string
	pos     Pos
}

func (si *interpInfo) sameAs(o *interpInfo) bool {
	return si.Sym == o.Sym && si.Match == o.Match && si.Mods == o.Mods
}

type ledMapInfo struct {
	keymap.LED
	defined uint8
	merge   mergeMode
	file    string
	pos     Pos
}

type compatInfo struct {
	interps    []*interpInfo
	leds       []*ledMapInfo
	dfltInterp interpInfo
	dfltAction actionDefaults
}

func newCompatInfo() *compatInfo {
	return &compatInfo{
		dfltInterp: interpInfo{Interpret: keymap.Interpret{VirtualMod: keymap.ModInvalid}},
		dfltAction: actionDefaults{},
	}
}

func (c *compiler) addInterp(info *compatInfo, si *interpInfo) {
	for _, old := range info.interps {
		if !old.sameAs(si) {
			continue
		}
		clobber := si.merge.clobber()
		if si.merge == mergeReplace {
			*old = *si
			return
		}
		take := func(bit uint8) bool {
			if si.defined&bit == 0 {
				return false
			}
			if old.defined&bit != 0 && !clobber {
				return false
			}
			old.defined |= bit
			return true
		}
		if take(interpAction) {
			old.Action = si.Action
		}
		if take(interpVMod) {
			old.VirtualMod = si.VirtualMod
		}
		if take(interpRepeat) {
			old.Repeat = si.Repeat
		}
		if take(interpLevelOneOnly) {
			old.LevelOneOnly = si.LevelOneOnly
		}
		return
	}
	info.interps = append(info.interps, si)
}

func (c *compiler) addLEDMap(info *compatInfo, l *ledMapInfo) {
	for _, old := range info.leds {
		if !strings.EqualFold(old.Name, l.Name) {
			continue
		}
		if l.merge == mergeReplace {
			*old = *l
			return
		}
		clobber := l.merge.clobber()
		take := func(bit uint8) bool {
			if l.defined&bit == 0 || (old.defined&bit != 0 && !clobber) {
				return false
			}
			old.defined |= bit
			return true
		}
		if take(ledMods) {
			old.Mods = l.Mods
		}
		if take(ledWhichMods) {
			old.WhichMods = l.WhichMods
		}
		if take(ledGroups) {
			old.Groups = l.Groups
		}
		if take(ledWhichGroups) {
			old.WhichGroups = l.WhichGroups
		}
		if take(ledCtrls) {
			old.Ctrls = l.Ctrls
		}
		return
	}
	info.leds = append(info.leds, l)
}

func (c *compiler) compatDecl(info *compatInfo, file string, d decl) error {
	switch d := d.(type) {
	case *vmodList:
		return c.declareVMods(file, d)
	case *interpDecl:
		return c.evalInterp(info, file, d)
	case *ledMapDecl:
		return c.evalLEDMap(info, file, d)
	case *groupCompatDecl:
		c.warn(1, file, d.pos, "group compatibility map ignored", "group", d.group)
	case *varDecl:
		elem, field, _ := d.lhs.lhsParts()
		switch strings.ToLower(elem) {
		case "interpret":
			return c.interpField(&info.dfltInterp, file, field, d.value)
		case "indicator":
			c.warn(1, file, d.pos, "indicator defaults ignored", "field", field)
			return nil
		}
		if ok, err := c.actionDefault(info.dfltAction, file, d); ok || err != nil {
			return err
		}
		c.warn(0, file, d.pos, "unknown global field in compat section, ignored", "element", elem, "field", field)
	default:
		c.warn(0, file, d.declPos(), "statement not allowed in compat section, ignored")
	}
	return nil
}

// evalMatch reads the predicate of an interpret: "AnyOf(Shift+Lock)",
// "any" or a bare modifier set meaning Exactly.
func (c *compiler) evalMatch(file string, e *expr) (keymap.MatchOp, keymap.ModMask, error) {
	if e == nil {
		return keymap.MatchAnyOfOrNone, keymap.RealModsMask, nil
	}
	if e.kind == exprIdent && strings.EqualFold(e.name, "any") {
		return keymap.MatchAnyOf, keymap.RealModsMask, nil
	}
	if e.kind != exprCall {
		mods, err := c.evalModMask(file, e, true)
		return keymap.MatchExactly, mods, err
	}
	var op keymap.MatchOp
	switch strings.ToLower(e.name) {
	case "noneof":
		op = keymap.MatchNoneOf
	case "anyofornone":
		op = keymap.MatchAnyOfOrNone
	case "anyof":
		op = keymap.MatchAnyOf
	case "allof":
		op = keymap.MatchAllOf
	case "exactly":
		op = keymap.MatchExactly
	default:
		return 0, 0, c.semanticf(file, e.pos, "unknown interpret predicate %q", e.name)
	}
	if len(e.args) != 1 {
		return 0, 0, c.semanticf(file, e.pos, "interpret predicate %s takes one argument", e.name)
	}
	mods, err := c.evalModMask(file, e.args[0], true)
	return op, mods, err
}

func (c *compiler) evalInterp(info *compatInfo, file string, d *interpDecl) error {
	si := info.dfltInterp
	si.merge, si.file, si.pos = d.merge, file, d.pos
	sym, err := c.evalKeysym(file, d.sym)
	if err != nil {
		return err
	}
	si.Sym = sym
	if si.Match, si.Mods, err = c.evalMatch(file, d.match); err != nil {
		return err
	}
	for _, v := range d.body {
		elem, field, _ := v.lhs.lhsParts()
		if elem != "" && !strings.EqualFold(elem, "interpret") {
			c.warn(0, file, v.pos, "unknown element in interpret, ignored", "element", elem)
			continue
		}
		if strings.EqualFold(field, "action") {
			act, err := c.evalAction(file, v.value, info.dfltAction)
			if err != nil {
				return err
			}
			si.Action = act
			si.defined |= interpAction
			continue
		}
		if err := c.interpField(&si, file, field, v.value); err != nil {
			return err
		}
	}
	c.addInterp(info, &si)
	return nil
}

func (c *compiler) interpField(si *interpInfo, file, field string, value *expr) error {
	switch strings.ToLower(field) {
	case "virtualmodifier", "virtualmod":
		if value.kind != exprIdent {
			return c.semanticf(file, value.pos, "expected a virtual modifier name, got %s", exprText(value))
		}
		idx, ok := c.modIndex(value.name)
		if !ok || idx < keymap.NumRealMods {
			return c.semanticf(file, value.pos, "%q is not a virtual modifier", value.name)
		}
		si.VirtualMod = idx
		si.defined |= interpVMod
	case "repeat":
		on, err := c.evalBool(file, value)
		if err != nil {
			return err
		}
		si.Repeat = on
		si.defined |= interpRepeat
	case "usemodmapmods", "usemodmap":
		if value.kind != exprIdent {
			return c.semanticf(file, value.pos, "expected level1 or anylevel, got %s", exprText(value))
		}
		switch strings.ToLower(value.name) {
		case "level1", "levelone":
			si.LevelOneOnly = true
		case "anylevel", "any":
			si.LevelOneOnly = false
		default:
			return c.semanticf(file, value.pos, "expected level1 or anylevel, got %s", value.name)
		}
		si.defined |= interpLevelOneOnly
	case "locking":
		c.warn(1, file, value.pos, "interpret locking field ignored")
	case "action":
		return c.semanticf(file, value.pos, "interpret action can't be set as a default")
	default:
		c.warn(0, file, value.pos, "unknown interpret field, ignored", "field", field)
	}
	return nil
}

func (c *compiler) evalLEDMap(info *compatInfo, file string, d *ledMapDecl) error {
	l := &ledMapInfo{LED: keymap.LED{Name: d.name}, merge: d.merge, file: file, pos: d.pos}
	for _, v := range d.body {
		elem, field, _ := v.lhs.lhsParts()
		if elem != "" && !strings.EqualFold(elem, "indicator") {
			c.warn(0, file, v.pos, "unknown element in indicator, ignored", "element", elem)
			continue
		}
		var err error
		switch strings.ToLower(field) {
		case "modifiers", "mods":
			var mods keymap.ModMask
			mods, err = c.evalModMask(file, v.value, false)
			l.Mods = keymap.Mods{Mods: mods}
			l.defined |= ledMods
		case "whichmodstate", "whichmodifierstate":
			l.WhichMods, err = c.evalWhich(file, v.value)
			l.defined |= ledWhichMods
		case "groups":
			l.Groups, err = c.evalGroupMask(file, v.value)
			l.defined |= ledGroups
		case "whichgroupstate":
			l.WhichGroups, err = c.evalWhich(file, v.value)
			l.defined |= ledWhichGroups
		case "controls", "ctrls":
			l.Ctrls, err = c.evalControls(file, v.value)
			l.defined |= ledCtrls
		case "allowexplicit", "driveskeyboard", "driveskbd", "ledsdrivekbd", "indicatordriveskbd", "index":
			c.warn(1, file, v.pos, "indicator field ignored", "indicator", d.name, "field", field)
		default:
			c.warn(0, file, v.pos, "unknown indicator field, ignored", "indicator", d.name, "field", field)
		}
		if err != nil {
			return err
		}
	}
	c.addLEDMap(info, l)
	return nil
}

func (c *compiler) mergeCompat(into, from *compatInfo, merge mergeMode, _ int) {
	for _, si := range from.interps {
		si.merge = itemMerge(si.merge, merge)
		c.addInterp(into, si)
	}
	for _, l := range from.leds {
		l.merge = itemMerge(l.merge, merge)
		c.addLEDMap(into, l)
	}
}

type compatResult struct {
	name    string
	interps []keymap.Interpret
	leds    []*ledMapInfo
}

// matchRank orders predicates from most to least specific.
var matchRank = map[keymap.MatchOp]int{
	keymap.MatchExactly:     0,
	keymap.MatchAllOf:       1,
	keymap.MatchNoneOf:      2,
	keymap.MatchAnyOf:       3,
	keymap.MatchAnyOfOrNone: 4,
}

func (c *compiler) compileCompat(sec *section) (*compatResult, error) {
	info := newCompatInfo()
	h := sectionHandler[*compatInfo]{
		newInfo: newCompatInfo,
		decl:    c.compatDecl,
		merge:   c.mergeCompat,
	}
	if err := processSection(c, h, info, sec, 0); err != nil {
		return nil, err
	}
	res := &compatResult{name: sec.name, leds: info.leds}

	// Interprets for a specific keysym come first, then those for any
	// keysym, each group ordered by predicate.
	for _, anySym := range []bool{false, true} {
		for rank := 0; rank < len(matchRank); rank++ {
			for _, si := range info.interps {
				if (si.Sym == keysym.NoSymbol) == anySym && matchRank[si.Match] == rank {
					res.interps = append(res.interps, si.Interpret)
				}
			}
		}
	}
	return res, nil
}
