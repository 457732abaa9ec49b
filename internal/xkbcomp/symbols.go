package xkbcomp

import (
	"slices"
	"strings"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

type levelInfo struct {
	syms   []keysym.Keysym
	action keymap.Action
}

const (
	groupSyms uint8 = 1 << iota
	groupActions
	groupType
)

type groupInfo struct {
	defined uint8
	typ     string
	levels  []levelInfo
}

func (g *groupInfo) ensureLevels(n int) {
	for len(g.levels) < n {
		g.levels = append(g.levels, levelInfo{})
	}
}

const (
	keyRepeat uint8 = 1 << iota
	keyVMods
	keyGroupsRange
	keyDefaultType
)

type keyInfo struct {
	name     string
	merge    mergeMode
	file     string
	pos      Pos
	defined  uint8
	groups   []groupInfo
	repeat   bool
	vmods    keymap.ModMask
	rng      keymap.RangeExceed
	redirect keymap.LayoutIndex
	dfltType string
}

func (k *keyInfo) clone() *keyInfo {
	n := *k
	n.groups = make([]groupInfo, len(k.groups))
	for i, g := range k.groups {
		n.groups[i] = g
		n.groups[i].levels = slices.Clone(g.levels)
	}
	return &n
}

func (k *keyInfo) group(i keymap.LayoutIndex) *groupInfo {
	for keymap.LayoutIndex(len(k.groups)) <= i {
		k.groups = append(k.groups, groupInfo{})
	}
	return &k.groups[i]
}

// modMapEntry binds a real modifier to a key given by name or by keysym.
type modMapEntry struct {
	mod   keymap.ModIndex
	key   string
	sym   keysym.Keysym
	bySym bool
	merge mergeMode
	file  string
	pos   Pos
}

type groupNameInfo struct {
	name  string
	merge mergeMode
}

type symbolsInfo struct {
	kc         *keycodesResult
	keys       map[string]*keyInfo
	order      []string
	groupNames map[keymap.LayoutIndex]groupNameInfo
	modMap     []modMapEntry
	dflt       keyInfo
	dfltAction actionDefaults
}

func (c *compiler) newSymbolsInfo(kc *keycodesResult) func() *symbolsInfo {
	return func() *symbolsInfo {
		return &symbolsInfo{
			kc:         kc,
			keys:       map[string]*keyInfo{},
			groupNames: map[keymap.LayoutIndex]groupNameInfo{},
			dfltAction: actionDefaults{},
		}
	}
}

func (c *compiler) addGroupName(info *symbolsInfo, g keymap.LayoutIndex, n groupNameInfo) {
	if old, ok := info.groupNames[g]; ok && old.name != n.name && !n.merge.clobber() {
		return
	}
	info.groupNames[g] = n
}

// mergeKey combines a new definition of a key with an existing one.
func (c *compiler) mergeKey(old, k *keyInfo) {
	if k.merge == mergeReplace {
		*old = *k
		return
	}
	clobber := k.merge.clobber()
	for gi := range k.groups {
		ng := &k.groups[gi]
		og := old.group(keymap.LayoutIndex(gi))
		if ng.defined&groupType != 0 && (clobber || og.defined&groupType == 0) {
			og.typ = ng.typ
			og.defined |= groupType
		}
		og.ensureLevels(len(ng.levels))
		for li, nl := range ng.levels {
			ol := &og.levels[li]
			if len(nl.syms) > 0 && (clobber || len(ol.syms) == 0) {
				ol.syms = nl.syms
			}
			if nl.action.Type != keymap.ActionNone && (clobber || ol.action.Type == keymap.ActionNone) {
				ol.action = nl.action
			}
		}
		og.defined |= ng.defined & (groupSyms | groupActions)
	}
	take := func(bit uint8) bool {
		if k.defined&bit == 0 || (old.defined&bit != 0 && !clobber) {
			return false
		}
		old.defined |= bit
		return true
	}
	if take(keyRepeat) {
		old.repeat = k.repeat
	}
	if take(keyVMods) {
		old.vmods = k.vmods
	}
	if take(keyGroupsRange) {
		old.rng, old.redirect = k.rng, k.redirect
	}
	if take(keyDefaultType) {
		old.dfltType = k.dfltType
	}
}

func (c *compiler) addKey(info *symbolsInfo, k *keyInfo) {
	if old, ok := info.keys[k.name]; ok {
		c.mergeKey(old, k)
		return
	}
	info.keys[k.name] = k
	info.order = append(info.order, k.name)
}

func (c *compiler) addModMapEntry(info *symbolsInfo, e modMapEntry) {
	info.modMap = append(info.modMap, e)
}

func (c *compiler) symbolsDecl(info *symbolsInfo, file string, d decl) error {
	switch d := d.(type) {
	case *vmodList:
		return c.declareVMods(file, d)
	case *keySymsDecl:
		return c.evalKey(info, file, d)
	case *modMapDecl:
		return c.evalModMap(info, file, d)
	case *varDecl:
		return c.symbolsVar(info, file, d)
	default:
		c.warn(0, file, d.declPos(), "statement not allowed in symbols section, ignored")
	}
	return nil
}

// symbolsVar handles global assignments: group names and key defaults.
func (c *compiler) symbolsVar(info *symbolsInfo, file string, d *varDecl) error {
	elem, field, index := d.lhs.lhsParts()
	switch {
	case elem == "" && (strings.EqualFold(field, "name") || strings.EqualFold(field, "groupname")):
		if index == nil {
			return c.semanticf(file, d.pos, "group name without group index")
		}
		g, err := c.evalGroup(file, index)
		if err != nil {
			return err
		}
		name, err := c.evalString(file, d.value)
		if err != nil {
			return err
		}
		c.addGroupName(info, g, groupNameInfo{name: name, merge: d.merge})
		return nil
	case strings.EqualFold(elem, "key"):
		return c.keyField(info, &info.dflt, file, d.pos, field, index, d.value)
	}
	if ok, err := c.actionDefault(info.dfltAction, file, d); ok || err != nil {
		return err
	}
	c.warn(0, file, d.pos, "unknown global field in symbols section, ignored", "element", elem, "field", field)
	return nil
}

func (c *compiler) evalKey(info *symbolsInfo, file string, d *keySymsDecl) error {
	kc, ok := info.kc.lookup(d.name)
	if !ok {
		c.warn(0, file, d.pos, "key not defined in keycodes, symbols ignored", "key", "<"+d.name+">")
		return nil
	}
	k := info.dflt.clone()
	k.name = info.kc.codes[kc]
	k.merge, k.file, k.pos = d.merge, file, d.pos

	next := keymap.LayoutIndex(0)
	for _, v := range d.body {
		if v.lhs == nil {
			if next >= keymap.MaxLayouts {
				return c.semanticf(file, v.pos, "too many groups for key <%s>", d.name)
			}
			if err := c.setSymbols(k, file, next, v.value); err != nil {
				return err
			}
			next++
			continue
		}
		elem, field, index := v.lhs.lhsParts()
		if elem != "" && !strings.EqualFold(elem, "key") {
			c.warn(0, file, v.pos, "unknown element in key, ignored", "element", elem)
			continue
		}
		if index == nil && strings.EqualFold(field, "symbols") {
			if err := c.setSymbols(k, file, next, v.value); err != nil {
				return err
			}
			next++
			continue
		}
		if err := c.keyField(info, k, file, v.pos, field, index, v.value); err != nil {
			return err
		}
	}
	c.addKey(info, k)
	return nil
}

func (c *compiler) setSymbols(k *keyInfo, file string, g keymap.LayoutIndex, value *expr) error {
	if value.kind != exprList {
		return c.semanticf(file, value.pos, "expected a list of symbols, got %s", exprText(value))
	}
	grp := k.group(g)
	if grp.defined&groupSyms != 0 {
		c.warn(1, file, value.pos, "symbols for group defined twice, using the last", "key", k.name, "group", g+1)
	}
	grp.ensureLevels(len(value.args))
	for i := len(value.args); i < len(grp.levels); i++ {
		grp.levels[i].syms = nil
	}
	for i, item := range value.args {
		syms, err := c.evalLevelSyms(file, item)
		if err != nil {
			return err
		}
		grp.levels[i].syms = syms
	}
	grp.defined |= groupSyms
	return nil
}

// evalLevelSyms evaluates one entry of a symbols list: a keysym or a
// braced list of keysyms.
func (c *compiler) evalLevelSyms(file string, item *expr) ([]keysym.Keysym, error) {
	items := []*expr{item}
	if item.kind == exprMulti {
		items = item.args
	}
	var syms []keysym.Keysym
	for _, it := range items {
		ks, err := c.evalKeysym(file, it)
		if err != nil {
			return nil, err
		}
		if ks != keysym.NoSymbol {
			syms = append(syms, ks)
		}
	}
	return syms, nil
}

func (c *compiler) setActions(info *symbolsInfo, k *keyInfo, file string, g keymap.LayoutIndex, value *expr) error {
	if value.kind != exprList {
		return c.semanticf(file, value.pos, "expected a list of actions, got %s", exprText(value))
	}
	grp := k.group(g)
	grp.ensureLevels(len(value.args))
	for i, item := range value.args {
		act, err := c.evalAction(file, item, info.dfltAction)
		if err != nil {
			return err
		}
		grp.levels[i].action = act
	}
	grp.defined |= groupActions
	return nil
}

func (c *compiler) keyGroupIndex(k *keyInfo, file string, pos Pos, index *expr, what string) (keymap.LayoutIndex, error) {
	if index == nil {
		for i := range k.groups {
			if k.groups[i].defined&groupSyms == 0 {
				return keymap.LayoutIndex(i), nil
			}
		}
		if len(k.groups) >= keymap.MaxLayouts {
			return 0, c.semanticf(file, pos, "too many groups of %s for key <%s>", what, k.name)
		}
		return keymap.LayoutIndex(len(k.groups)), nil
	}
	return c.evalGroup(file, index)
}

// keyField applies one field of a key body, or of the key defaults when k
// is the info's default key.
func (c *compiler) keyField(info *symbolsInfo, k *keyInfo, file string, pos Pos, field string, index, value *expr) error {
	switch strings.ToLower(field) {
	case "type":
		name, err := c.evalString(file, value)
		if err != nil {
			return err
		}
		if index == nil {
			k.dfltType = name
			k.defined |= keyDefaultType
			return nil
		}
		g, err := c.evalGroup(file, index)
		if err != nil {
			return err
		}
		grp := k.group(g)
		grp.typ = name
		grp.defined |= groupType
	case "symbols":
		g, err := c.keyGroupIndex(k, file, pos, index, "symbols")
		if err != nil {
			return err
		}
		return c.setSymbols(k, file, g, value)
	case "actions":
		g, err := c.keyGroupIndex(k, file, pos, index, "actions")
		if err != nil {
			return err
		}
		return c.setActions(info, k, file, g, value)
	case "virtualmods", "virtualmodifiers", "vmods":
		mods, err := c.evalModMask(file, value, false)
		if err != nil {
			return err
		}
		k.vmods = mods &^ keymap.RealModsMask
		k.defined |= keyVMods
	case "repeat", "repeats", "repeating":
		if value.kind == exprIdent && strings.EqualFold(value.name, "default") {
			k.defined &^= keyRepeat
			return nil
		}
		on, err := c.evalBool(file, value)
		if err != nil {
			return err
		}
		k.repeat = on
		k.defined |= keyRepeat
	case "groupswrap", "wrapgroups":
		on, err := c.evalBool(file, value)
		if err != nil {
			return err
		}
		k.rng = keymap.RangeSaturate
		if on {
			k.rng = keymap.RangeWrap
		}
		k.defined |= keyGroupsRange
	case "groupsclamp", "clampgroups":
		on, err := c.evalBool(file, value)
		if err != nil {
			return err
		}
		k.rng = keymap.RangeWrap
		if on {
			k.rng = keymap.RangeSaturate
		}
		k.defined |= keyGroupsRange
	case "groupsredirect", "redirectgroups":
		g, err := c.evalGroup(file, value)
		if err != nil {
			return err
		}
		k.rng, k.redirect = keymap.RangeRedirect, g
		k.defined |= keyGroupsRange
	case "locking", "lock", "locks", "radiogroup", "permanentradiogroup", "allownone",
		"overlay", "overlay1", "overlay2":
		c.warn(1, file, pos, "key field ignored", "key", k.name, "field", field)
	default:
		c.warn(0, file, pos, "unknown key field, ignored", "key", k.name, "field", field)
	}
	return nil
}

func (c *compiler) evalModMap(info *symbolsInfo, file string, d *modMapDecl) error {
	mod, ok := c.modIndex(d.mod)
	if !ok || mod >= keymap.NumRealMods {
		return c.semanticf(file, d.pos, "modifier_map needs a real modifier, got %q", d.mod)
	}
	for _, item := range d.keys {
		e := modMapEntry{mod: mod, merge: d.merge, file: file, pos: item.pos}
		switch item.kind {
		case exprKeyName:
			e.key = item.name
		case exprIdent, exprInt:
			ks, err := c.evalKeysym(file, item)
			if err != nil {
				return err
			}
			if ks == keysym.NoSymbol {
				continue
			}
			e.sym, e.bySym = ks, true
		default:
			return c.semanticf(file, item.pos, "expected a key name or keysym in modifier_map, got %s", exprText(item))
		}
		c.addModMapEntry(info, e)
	}
	return nil
}

func (c *compiler) mergeSymbols(into, from *symbolsInfo, merge mergeMode, group int) {
	if group >= 0 {
		g := keymap.LayoutIndex(group)
		for _, k := range from.keys {
			if len(k.groups) == 0 {
				continue
			}
			first := k.groups[0]
			k.groups = make([]groupInfo, g+1)
			k.groups[g] = first
		}
		names := map[keymap.LayoutIndex]groupNameInfo{}
		if n, ok := from.groupNames[0]; ok {
			names[g] = n
		}
		from.groupNames = names
	}
	for _, name := range from.order {
		k := from.keys[name]
		k.merge = itemMerge(k.merge, merge)
		c.addKey(into, k)
	}
	for g, n := range from.groupNames {
		n.merge = itemMerge(n.merge, merge)
		c.addGroupName(into, g, n)
	}
	for _, e := range from.modMap {
		e.merge = itemMerge(e.merge, merge)
		c.addModMapEntry(into, e)
	}
}

type symbolsResult struct {
	name       string
	keys       map[string]*keyInfo
	groupNames map[keymap.LayoutIndex]string
	modMap     []modMapEntry
}

func (c *compiler) compileSymbols(sec *section, kc *keycodesResult) (*symbolsResult, error) {
	newInfo := c.newSymbolsInfo(kc)
	info := newInfo()
	h := sectionHandler[*symbolsInfo]{
		newInfo: newInfo,
		decl:    c.symbolsDecl,
		merge:   c.mergeSymbols,
	}
	if err := processSection(c, h, info, sec, 0); err != nil {
		return nil, err
	}
	res := &symbolsResult{
		name:       sec.name,
		keys:       info.keys,
		groupNames: map[keymap.LayoutIndex]string{},
		modMap:     info.modMap,
	}
	for g, n := range info.groupNames {
		res.groupNames[g] = n.name
	}
	return res, nil
}
