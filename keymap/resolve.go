package keymap

// KeyLayout resolves an effective layout value against kc's layouts. It
// returns LayoutInvalid for an unassigned keycode or a key without layouts.
func (km *Keymap) KeyLayout(kc Keycode, effective int32) LayoutIndex {
	k := km.key(kc)
	if k == nil {
		return LayoutInvalid
	}
	return WrapLayout(effective, k)
}

func (km *Keymap) keyType(kc Keycode, layout LayoutIndex) *KeyType {
	k := km.key(kc)
	if k == nil || int(layout) >= len(k.Groups) {
		return nil
	}
	return &km.types[k.Groups[layout].Type]
}

// KeyLevel returns the level of kc in layout selected by the effective
// modifiers. Modifier combinations the key type does not list select the
// first level.
func (km *Keymap) KeyLevel(kc Keycode, layout LayoutIndex, mods ModMask) LevelIndex {
	t := km.keyType(kc, layout)
	if t == nil {
		return LevelInvalid
	}
	if e, ok := t.EntryFor(mods); ok {
		return e.Level
	}
	return 0
}

// KeyConsumedMods returns the modifiers that took part in selecting kc's
// level in layout: the key type's modifiers minus those the matching entry
// preserves.
func (km *Keymap) KeyConsumedMods(kc Keycode, layout LayoutIndex, mods ModMask) ModMask {
	t := km.keyType(kc, layout)
	if t == nil {
		return 0
	}
	var preserve ModMask
	if e, ok := t.EntryFor(mods); ok {
		preserve = e.Preserve.Mask
	}
	return t.Mods.Mask &^ preserve
}

// LevelAction returns the action bound to a level, or a NoAction action.
func (km *Keymap) LevelAction(kc Keycode, layout LayoutIndex, level LevelIndex) Action {
	k := km.key(kc)
	if k == nil || int(layout) >= len(k.Groups) {
		return Action{}
	}
	levels := k.Groups[layout].Levels
	if int(level) >= len(levels) {
		return Action{}
	}
	return levels[level].Action
}

// KeyTypeName returns the name of the type of kc in layout.
func (km *Keymap) KeyTypeName(kc Keycode, layout LayoutIndex) (string, error) {
	k := km.key(kc)
	if k == nil {
		return "", ErrInvalidKeycode
	}
	if int(layout) >= len(k.Groups) {
		return "", ErrInvalidLayoutIndex
	}
	return km.types[k.Groups[layout].Type].Name, nil
}
