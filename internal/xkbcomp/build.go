package xkbcomp

import (
	"maps"
	"slices"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

// build reduces the compiled sections into a keymap description: it
// assigns key types, applies compat interprets and the modifier map,
// resolves virtual modifiers and allocates LEDs.
func (c *compiler) build(kc *keycodesResult, typesName string, typeInfos []*typeInfo, compat *compatResult, syms *symbolsResult) (*keymap.Desc, error) {
	desc := &keymap.Desc{
		KeycodesName: kc.name,
		TypesName:    typesName,
		CompatName:   compat.name,
		SymbolsName:  syms.name,
		MinKeycode:   kc.min,
		MaxKeycode:   kc.max,
		Aliases:      kc.aliases,
		Interprets:   compat.interps,
	}

	types := make([]keymap.KeyType, len(typeInfos))
	typeIndex := make(map[string]int, len(typeInfos))
	for i, t := range typeInfos {
		types[i] = keymap.KeyType{
			Name:       t.name,
			Mods:       keymap.Mods{Mods: t.mods},
			NumLevels:  t.numLevels(),
			LevelNames: t.levelNames,
			Entries:    slices.Clone(t.entries),
		}
		if _, dup := typeIndex[t.name]; !dup {
			typeIndex[t.name] = i
		}
	}

	codes := slices.Sorted(maps.Keys(kc.codes))
	keys := make([]keymap.Key, 0, len(codes))
	byCode := make(map[keymap.Keycode]int, len(codes))
	for _, code := range codes {
		k := keymap.Key{Keycode: code, Name: kc.codes[code]}
		if ki, ok := syms.keys[k.Name]; ok {
			if err := c.buildKey(&k, ki, types, typeIndex); err != nil {
				return nil, err
			}
		}
		byCode[code] = len(keys)
		keys = append(keys, k)
	}

	c.applyModMap(keys, byCode, kc, syms.modMap)
	for i := range keys {
		c.applyInterps(&keys[i], compat.interps)
	}

	// A virtual modifier maps to its declared real modifiers plus the
	// modifier map of every key bound to it.
	for i := keymap.NumRealMods; i < len(c.mods); i++ {
		bit := keymap.ModMask(1) << i
		for _, k := range keys {
			if k.VModMap&bit != 0 {
				c.mods[i].Mapping |= k.ModMap
			}
		}
	}

	for i := range types {
		t := &types[i]
		t.Mods = c.resolveMods(t.Mods)
		for j := range t.Entries {
			e := &t.Entries[j]
			e.Mods = c.resolveMods(e.Mods)
			e.Preserve = c.resolveMods(e.Preserve)
		}
	}
	for i := range keys {
		k := &keys[i]
		for gi := range k.Groups {
			for li := range k.Groups[gi].Levels {
				c.resolveAction(&k.Groups[gi].Levels[li].Action, k.ModMap)
			}
		}
	}
	for i := range desc.Interprets {
		c.resolveAction(&desc.Interprets[i].Action, 0)
	}

	var numGroups keymap.LayoutIndex
	for _, k := range keys {
		numGroups = max(numGroups, keymap.LayoutIndex(len(k.Groups)))
	}
	for g := keymap.LayoutIndex(0); g < numGroups; g++ {
		desc.GroupNames = append(desc.GroupNames, syms.groupNames[g])
	}

	leds, err := c.buildLEDs(kc, compat)
	if err != nil {
		return nil, err
	}

	desc.Keys = keys
	desc.Types = types
	desc.Mods = c.mods
	desc.LEDs = leds
	return desc, nil
}

func (c *compiler) resolveAction(a *keymap.Action, modMap keymap.ModMask) {
	switch a.Type {
	case keymap.ActionModSet, keymap.ActionModLatch, keymap.ActionModLock:
		if a.Flags&keymap.ActionModsLookupModMap != 0 {
			a.Mods = keymap.Mods{Mods: modMap, Mask: modMap}
			return
		}
		a.Mods = c.resolveMods(a.Mods)
	}
}

// buildKey copies a key's symbols into k, choosing a type for every group.
func (c *compiler) buildKey(k *keymap.Key, ki *keyInfo, types []keymap.KeyType, typeIndex map[string]int) error {
	last := -1
	for gi, g := range ki.groups {
		if g.defined != 0 || len(g.levels) > 0 {
			last = gi
		}
	}
	explicitActions := false
	for gi := 0; gi <= last; gi++ {
		g := ki.groups[gi]
		if g.defined&groupActions != 0 {
			explicitActions = true
		}
		typ := c.keyType(ki, g, types, typeIndex)
		n := int(types[typ].NumLevels)
		if len(g.levels) > n {
			c.warn(1, ki.file, ki.pos, "key type has fewer levels than the key, extra levels dropped",
				"key", k.Name, "group", gi+1, "type", types[typ].Name)
		}
		levels := make([]keymap.Level, n)
		for li := 0; li < n && li < len(g.levels); li++ {
			levels[li] = keymap.Level{Syms: g.levels[li].syms, Action: g.levels[li].action}
		}
		k.Groups = append(k.Groups, keymap.Group{
			Type:         typ,
			ExplicitType: g.defined&groupType != 0 || ki.defined&keyDefaultType != 0,
			Levels:       levels,
		})
	}

	if explicitActions {
		k.Explicit |= keymap.ExplicitInterp
	}
	if ki.defined&keyRepeat != 0 {
		k.Repeats = ki.repeat
		k.Explicit |= keymap.ExplicitRepeat
	}
	if ki.defined&keyVMods != 0 {
		k.VModMap = ki.vmods
		k.Explicit |= keymap.ExplicitVModMap
	}
	if ki.defined&keyGroupsRange != 0 {
		k.OutOfRange = ki.rng
		k.OutOfRangeGroup = ki.redirect
		if ki.rng == keymap.RangeRedirect && int(ki.redirect) >= len(k.Groups) {
			c.warn(1, ki.file, ki.pos, "redirect target beyond key's groups, using the first group", "key", k.Name)
			k.OutOfRangeGroup = 0
		}
	}
	return nil
}

// keyType picks the type of one group: the one named for the group, the
// key's default type, or one chosen from the group's symbols.
func (c *compiler) keyType(ki *keyInfo, g groupInfo, types []keymap.KeyType, typeIndex map[string]int) int {
	name := ""
	switch {
	case g.defined&groupType != 0:
		name = g.typ
	case ki.defined&keyDefaultType != 0:
		name = ki.dfltType
	}
	if name != "" {
		if i, ok := typeIndex[name]; ok {
			return i
		}
		c.warn(0, ki.file, ki.pos, "key type not defined, choosing one automatically", "key", ki.name, "type", name)
	}
	width := len(g.levels)
	if i, ok := typeIndex[automaticType(g.levels)]; ok {
		return i
	}
	for i, t := range types {
		if int(t.NumLevels) >= width {
			return i
		}
	}
	return 0
}

func levelSym(levels []levelInfo, i int) keysym.Keysym {
	if i >= len(levels) || len(levels[i].syms) != 1 {
		return keysym.NoSymbol
	}
	return levels[i].syms[0]
}

func isLowerUpper(lower, upper keysym.Keysym) bool {
	return lower.IsLower() && upper.IsUpper() && lower.ToUpper() == upper
}

// automaticType names the type a group's symbols call for.
func automaticType(levels []levelInfo) string {
	s0, s1 := levelSym(levels, 0), levelSym(levels, 1)
	switch n := len(levels); {
	case n <= 1:
		return typeOneLevel
	case n == 2:
		if isLowerUpper(s0, s1) {
			return typeAlphabetic
		}
		if s0.IsKeypad() || s1.IsKeypad() {
			return typeKeypad
		}
		return typeTwoLevel
	case n <= 4:
		s2, s3 := levelSym(levels, 2), levelSym(levels, 3)
		if isLowerUpper(s0, s1) {
			if isLowerUpper(s2, s3) {
				return "FOUR_LEVEL_ALPHABETIC"
			}
			return "FOUR_LEVEL_SEMIALPHABETIC"
		}
		if s0.IsKeypad() || s1.IsKeypad() {
			return "FOUR_LEVEL_KEYPAD"
		}
		return "FOUR_LEVEL"
	}
	return ""
}

// applyModMap binds real modifiers to keys. An entry by keysym picks the
// key producing it at the lowest group and level, then the lowest keycode.
func (c *compiler) applyModMap(keys []keymap.Key, byCode map[keymap.Keycode]int, kc *keycodesResult, entries []modMapEntry) {
	bound := map[keymap.Keycode]bool{}
	for _, e := range entries {
		code := keymap.KeycodeInvalid
		if e.bySym {
			code = findKeyForSym(keys, e.sym)
			if code == keymap.KeycodeInvalid {
				c.warn(1, e.file, e.pos, "modifier_map keysym not found on any key, ignored", "keysym", e.sym.String())
				continue
			}
		} else {
			var ok bool
			if code, ok = kc.lookup(e.key); !ok {
				c.warn(1, e.file, e.pos, "modifier_map key not defined, ignored", "key", "<"+e.key+">")
				continue
			}
		}
		k := &keys[byCode[code]]
		bit := keymap.ModMask(1) << e.mod
		if bound[code] && k.ModMap != bit {
			if !e.merge.clobber() {
				c.warn(1, e.file, e.pos, "key bound to two modifiers, keeping the first", "key", k.Name)
				continue
			}
			c.warn(1, e.file, e.pos, "key bound to two modifiers, using the last", "key", k.Name)
		}
		k.ModMap = bit
		bound[code] = true
	}
}

func findKeyForSym(keys []keymap.Key, sym keysym.Keysym) keymap.Keycode {
	for g := 0; g < keymap.MaxLayouts; g++ {
		for l := 0; l < 32; l++ {
			for _, k := range keys {
				if g >= len(k.Groups) || l >= len(k.Groups[g].Levels) {
					continue
				}
				if slices.Contains(k.Groups[g].Levels[l].Syms, sym) {
					return k.Keycode
				}
			}
		}
	}
	return keymap.KeycodeInvalid
}

// defaultInterpret applies to levels no interpret matches.
var defaultInterpret = keymap.Interpret{
	Match:      keymap.MatchAnyOfOrNone,
	VirtualMod: keymap.ModInvalid,
	Repeat:     true,
}

func findInterp(k *keymap.Key, group, level int, interps []keymap.Interpret) *keymap.Interpret {
	syms := k.Groups[group].Levels[level].Syms
	if len(syms) == 0 {
		return nil
	}
	sym := keysym.NoSymbol
	if len(syms) == 1 {
		sym = syms[0]
	}
	for i := range interps {
		si := &interps[i]
		if si.Sym != keysym.NoSymbol && si.Sym != sym {
			continue
		}
		mods := k.ModMap
		if si.LevelOneOnly && level != 0 {
			mods = 0
		}
		if si.Match.Matches(si.Mods, mods) {
			return si
		}
	}
	return &defaultInterpret
}

// applyInterps sets actions, repeat and virtual modifiers of keys whose
// symbols section left them implicit.
func (c *compiler) applyInterps(k *keymap.Key, interps []keymap.Interpret) {
	if k.Explicit&keymap.ExplicitInterp != 0 {
		return
	}
	var vmods keymap.ModMask
	for g := range k.Groups {
		for l := range k.Groups[g].Levels {
			si := findInterp(k, g, l, interps)
			if si == nil {
				continue
			}
			if g == 0 && l == 0 && k.Explicit&keymap.ExplicitRepeat == 0 {
				k.Repeats = si.Repeat
			}
			if si.VirtualMod != keymap.ModInvalid && (g == 0 && l == 0 || !si.LevelOneOnly) {
				vmods |= keymap.ModMask(1) << si.VirtualMod
			}
			if si.Action.Type != keymap.ActionNone {
				k.Groups[g].Levels[l].Action = si.Action
			}
		}
	}
	if k.Explicit&keymap.ExplicitVModMap == 0 {
		k.VModMap = vmods
	}
}

// buildLEDs places compat indicator maps in the slots the keycodes section
// named, or in the first free slot.
func (c *compiler) buildLEDs(kc *keycodesResult, compat *compatResult) ([]keymap.LED, error) {
	var leds [keymap.MaxLEDs]keymap.LED
	used := 0
	for idx, name := range kc.ledNames {
		leds[idx].Name = name
		used = max(used, idx+1)
	}
	for _, l := range compat.leds {
		slot := -1
		for i := range keymap.MaxLEDs {
			if leds[i].Name == l.Name && l.Name != "" {
				slot = i
				break
			}
		}
		if slot < 0 {
			for i := range keymap.MaxLEDs {
				if leds[i].Name == "" {
					slot = i
					break
				}
			}
		}
		if slot < 0 {
			return nil, c.semanticf(l.file, l.pos, "too many indicators, can't place %q", l.Name)
		}
		led := l.LED
		if led.Mods.Mods != 0 && led.WhichMods == 0 {
			led.WhichMods = keymap.WhichEffective
		}
		if led.Groups != 0 && led.WhichGroups == 0 {
			led.WhichGroups = keymap.WhichEffective
		}
		led.Mods = c.resolveMods(led.Mods)
		leds[slot] = led
		used = max(used, slot+1)
	}
	return slices.Clone(leds[:used]), nil
}
