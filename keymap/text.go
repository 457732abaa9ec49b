package keymap

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Alia5/goxkb/keysym"
)

// Text renders km as keymap text that compiles back to an equivalent
// keymap. Every key is written with explicit types, repeat flags and
// actions so the result does not depend on compat interpretation.
func (km *Keymap) Text() (string, error) {
	w := &textWriter{km: km}
	w.line(0, "xkb_keymap {")
	for _, section := range []func() error{w.keycodes, w.types, w.compat, w.symbols} {
		if err := section(); err != nil {
			return "", err
		}
		w.buf.WriteByte('\n')
	}
	w.line(0, "};")
	return w.buf.String(), nil
}

type textWriter struct {
	km  *Keymap
	buf strings.Builder
}

func (w *textWriter) line(indent int, format string, args ...any) {
	for range indent {
		w.buf.WriteByte('\t')
	}
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteByte('\n')
}

func quote(s string) (string, error) {
	if strings.ContainsAny(s, "\"\\\n") {
		return "", fmt.Errorf("%w: string %q needs escaping", ErrKeymapRead, s)
	}
	return `"` + s + `"`, nil
}

func sectionName(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	q, err := quote(name)
	if err != nil {
		return "", err
	}
	return " " + q, nil
}

func keyName(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "<> \t\n") {
		return "", fmt.Errorf("%w: key name %q", ErrKeymapRead, name)
	}
	return "<" + name + ">", nil
}

func (w *textWriter) keycodes() error {
	name, err := sectionName(w.km.keycodesName)
	if err != nil {
		return err
	}
	w.line(0, "xkb_keycodes%s {", name)
	w.line(1, "minimum = %d;", w.km.min)
	w.line(1, "maximum = %d;", w.km.max)
	for kc := range w.km.Keys() {
		n, err := keyName(w.km.key(kc).Name)
		if err != nil {
			return err
		}
		w.line(1, "%-20s = %d;", n, kc)
	}
	for i, led := range w.km.leds {
		if led.Name == "" {
			continue
		}
		q, err := quote(led.Name)
		if err != nil {
			return err
		}
		w.line(1, "indicator %d = %s;", i+1, q)
	}
	aliases := make([]string, 0, len(w.km.aliases))
	for a := range w.km.aliases {
		aliases = append(aliases, a)
	}
	slices.Sort(aliases)
	for _, a := range aliases {
		target := w.km.aliases[a]
		kc, ok := w.km.byName[target]
		if !ok || w.km.key(kc).Name != target {
			continue
		}
		if real, ok := w.km.byName[a]; ok && w.km.key(real).Name == a {
			continue
		}
		an, err := keyName(a)
		if err != nil {
			return err
		}
		w.line(1, "alias %-14s = <%s>;", an, target)
	}
	w.line(0, "};")
	return nil
}

// modsText writes a modifier set given as modifier indices.
func (w *textWriter) modsText(mods ModMask) string {
	if mods == 0 {
		return "none"
	}
	var parts []string
	for i, m := range w.km.mods {
		if mods&(1<<uint(i)) != 0 {
			parts = append(parts, m.Name)
		}
	}
	return strings.Join(parts, "+")
}

func (w *textWriter) vmodDecl(indent int) {
	var vmods []string
	for _, m := range w.km.mods {
		if m.Kind != ModVirtual {
			continue
		}
		if m.Mapping != 0 {
			vmods = append(vmods, m.Name+"="+w.modsText(m.Mapping))
		} else {
			vmods = append(vmods, m.Name)
		}
	}
	if len(vmods) > 0 {
		w.line(indent, "virtual_modifiers %s;", strings.Join(vmods, ","))
		w.buf.WriteByte('\n')
	}
}

func (w *textWriter) types() error {
	name, err := sectionName(w.km.typesName)
	if err != nil {
		return err
	}
	w.line(0, "xkb_types%s {", name)
	w.vmodDecl(1)
	for _, t := range w.km.types {
		q, err := quote(t.Name)
		if err != nil {
			return err
		}
		w.line(1, "type %s {", q)
		w.line(2, "modifiers= %s;", w.modsText(t.Mods.Mods))
		for _, e := range t.Entries {
			w.line(2, "map[%s]= Level%d;", w.modsText(e.Mods.Mods), e.Level+1)
			if e.Preserve.Mods != 0 {
				w.line(2, "preserve[%s]= %s;", w.modsText(e.Mods.Mods), w.modsText(e.Preserve.Mods))
			}
		}
		for i, ln := range t.LevelNames {
			if ln == "" {
				continue
			}
			q, err := quote(ln)
			if err != nil {
				return err
			}
			w.line(2, "level_name[Level%d]= %s;", i+1, q)
		}
		w.line(1, "};")
	}
	w.line(0, "};")
	return nil
}

func (w *textWriter) actionText(a Action) string {
	var args []string
	switch a.Type {
	case ActionModSet, ActionModLatch, ActionModLock:
		if a.Flags&ActionModsLookupModMap != 0 {
			args = append(args, "modifiers=modMapMods")
		} else {
			args = append(args, "modifiers="+w.modsText(a.Mods.Mods))
		}
	case ActionGroupSet, ActionGroupLatch, ActionGroupLock:
		if a.Flags&ActionAbsoluteSwitch != 0 {
			args = append(args, fmt.Sprintf("group=%d", a.Group+1))
		} else {
			args = append(args, fmt.Sprintf("group=%+d", a.Group))
		}
	case ActionTerminate:
		return "Terminate()"
	default:
		return "NoAction()"
	}
	switch a.Type {
	case ActionModSet, ActionModLatch, ActionGroupSet, ActionGroupLatch:
		if a.Flags&ActionLockClear != 0 {
			args = append(args, "clearLocks")
		}
		if a.Flags&ActionLatchToLock != 0 {
			args = append(args, "latchToLock")
		}
	case ActionModLock:
		switch a.Flags & (ActionLockNoLock | ActionLockNoUnlock) {
		case ActionLockNoLock:
			args = append(args, "affect=unlock")
		case ActionLockNoUnlock:
			args = append(args, "affect=lock")
		case ActionLockNoLock | ActionLockNoUnlock:
			args = append(args, "affect=neither")
		}
	}
	return a.Type.String() + "(" + strings.Join(args, ",") + ")"
}

func whichText(which Which) string {
	var parts []string
	for _, p := range []struct {
		bit  Which
		name string
	}{
		{WhichBase, "base"},
		{WhichLatched, "latched"},
		{WhichLocked, "locked"},
		{WhichEffective, "effective"},
		{WhichCompat, "compat"},
	} {
		if which&p.bit != 0 {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

func realModsText(mask ModMask) string {
	switch mask & RealModsMask {
	case 0:
		return "none"
	case RealModsMask:
		return "all"
	}
	var parts []string
	for i, n := range RealModNames {
		if mask&(1<<uint(i)) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "+")
}

func (w *textWriter) compat() error {
	name, err := sectionName(w.km.compatName)
	if err != nil {
		return err
	}
	w.line(0, "xkb_compatibility%s {", name)
	w.vmodDecl(1)
	w.line(1, "interpret.useModMapMods= AnyLevel;")
	w.line(1, "interpret.repeat= False;")
	for _, si := range w.km.interprets {
		sym := "Any"
		if si.Sym != keysym.NoSymbol {
			s, err := si.Sym.Name()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrKeymapRead, err)
			}
			sym = s
		}
		w.line(1, "interpret %s+%s(%s) {", sym, si.Match, realModsText(si.Mods))
		if si.VirtualMod != ModInvalid && int(si.VirtualMod) < len(w.km.mods) {
			w.line(2, "virtualModifier= %s;", w.km.mods[si.VirtualMod].Name)
		}
		if si.LevelOneOnly {
			w.line(2, "useModMapMods=level1;")
		}
		if si.Repeat {
			w.line(2, "repeat= True;")
		}
		w.line(2, "action= %s;", w.actionText(si.Action))
		w.line(1, "};")
	}
	for _, led := range w.km.leds {
		if led.Name == "" || (led.WhichMods == 0 && led.WhichGroups == 0 && led.Mods.Mods == 0 && led.Groups == 0) {
			continue
		}
		q, err := quote(led.Name)
		if err != nil {
			return err
		}
		w.line(1, "indicator %s {", q)
		if led.WhichGroups != 0 {
			w.line(2, "whichGroupState= %s;", whichText(led.WhichGroups))
		}
		if led.Groups != 0 {
			w.line(2, "groups= 0x%02x;", led.Groups)
		}
		if led.WhichMods != 0 {
			w.line(2, "whichModState= %s;", whichText(led.WhichMods))
		}
		if led.Mods.Mods != 0 {
			w.line(2, "modifiers= %s;", w.modsText(led.Mods.Mods))
		}
		w.line(1, "};")
	}
	w.line(0, "};")
	return nil
}

func symText(ks keysym.Keysym) (string, error) {
	name, err := ks.Name()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeymapRead, err)
	}
	return name, nil
}

func levelSymsText(syms []keysym.Keysym) (string, error) {
	switch len(syms) {
	case 0:
		return "NoSymbol", nil
	case 1:
		return symText(syms[0])
	}
	parts := make([]string, len(syms))
	for i, ks := range syms {
		s, err := symText(ks)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

func (w *textWriter) symbols() error {
	name, err := sectionName(w.km.symbolsName)
	if err != nil {
		return err
	}
	w.line(0, "xkb_symbols%s {", name)
	for i, gn := range w.km.groupNames {
		if gn == "" {
			continue
		}
		q, err := quote(gn)
		if err != nil {
			return err
		}
		w.line(1, "name[Group%d]=%s;", i+1, q)
	}
	w.buf.WriteByte('\n')

	modmap := make([][]string, NumRealMods)
	for kc := range w.km.Keys() {
		k := w.km.key(kc)
		kn, err := keyName(k.Name)
		if err != nil {
			return err
		}
		for i := range NumRealMods {
			if k.ModMap&(1<<uint(i)) != 0 {
				modmap[i] = append(modmap[i], kn)
			}
		}

		var fields []string
		if k.Repeats {
			fields = append(fields, "repeat= Yes")
		} else {
			fields = append(fields, "repeat= No")
		}
		if k.VModMap != 0 {
			fields = append(fields, "virtualMods= "+w.modsText(k.VModMap))
		}
		switch k.OutOfRange {
		case RangeSaturate:
			fields = append(fields, "groupsClamp")
		case RangeRedirect:
			fields = append(fields, fmt.Sprintf("groupsRedirect= Group%d", k.OutOfRangeGroup+1))
		}

		withActions := k.Explicit&ExplicitInterp != 0
		for _, g := range k.Groups {
			for _, l := range g.Levels {
				if l.Action.Type != ActionNone {
					withActions = true
				}
			}
		}
		for gi, g := range k.Groups {
			tq, err := quote(w.km.types[g.Type].Name)
			if err != nil {
				return err
			}
			fields = append(fields, fmt.Sprintf("type[Group%d]= %s", gi+1, tq))
			levels := make([]string, len(g.Levels))
			for li, l := range g.Levels {
				if levels[li], err = levelSymsText(l.Syms); err != nil {
					return err
				}
			}
			fields = append(fields, fmt.Sprintf("symbols[Group%d]= [ %s ]", gi+1, strings.Join(levels, ", ")))
			if withActions {
				actions := make([]string, len(g.Levels))
				for li, l := range g.Levels {
					actions[li] = w.actionText(l.Action)
				}
				fields = append(fields, fmt.Sprintf("actions[Group%d]= [ %s ]", gi+1, strings.Join(actions, ", ")))
			}
		}
		w.line(1, "key %s {", kn)
		for i, f := range fields {
			sep := ","
			if i == len(fields)-1 {
				sep = ""
			}
			w.line(2, "%s%s", f, sep)
		}
		w.line(1, "};")
	}
	for i, keys := range modmap {
		if len(keys) == 0 {
			continue
		}
		w.line(1, "modifier_map %s { %s };", RealModNames[i], strings.Join(keys, ", "))
	}
	w.line(0, "};")
	return nil
}
