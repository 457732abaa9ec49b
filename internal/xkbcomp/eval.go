package xkbcomp

import (
	"strconv"
	"strings"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

func (c *compiler) semanticf(file string, pos Pos, format string, args ...any) *Error {
	return errorf(ErrSemantic, file, pos, format, args...)
}

func exprText(e *expr) string {
	switch e.kind {
	case exprIdent:
		return e.name
	case exprInt:
		return strconv.FormatInt(e.num, 10)
	case exprString:
		return strconv.Quote(e.name)
	case exprKeyName:
		return "<" + e.name + ">"
	case exprField:
		return e.name + "." + e.field
	case exprArray:
		return e.name + "[...]"
	case exprCall:
		return e.name + "(...)"
	}
	return "expression"
}

func (c *compiler) evalBool(file string, e *expr) (bool, error) {
	switch e.kind {
	case exprBool:
		return e.flag, nil
	case exprInt:
		return e.num != 0, nil
	case exprNot:
		v, err := c.evalBool(file, e.args[0])
		return !v, err
	case exprIdent:
		switch strings.ToLower(e.name) {
		case "true", "yes", "on":
			return true, nil
		case "false", "no", "off":
			return false, nil
		}
	}
	return false, c.semanticf(file, e.pos, "expected a boolean, got %s", exprText(e))
}

func (c *compiler) evalInt(file string, e *expr) (int64, error) {
	switch e.kind {
	case exprInt:
		return e.num, nil
	case exprNeg, exprUnaryPlus:
		v, err := c.evalInt(file, e.args[0])
		if e.kind == exprNeg {
			v = -v
		}
		return v, err
	case exprAdd, exprSub, exprMul, exprDiv:
		l, err := c.evalInt(file, e.args[0])
		if err != nil {
			return 0, err
		}
		r, err := c.evalInt(file, e.args[1])
		if err != nil {
			return 0, err
		}
		switch e.kind {
		case exprAdd:
			return l + r, nil
		case exprSub:
			return l - r, nil
		case exprMul:
			return l * r, nil
		}
		if r == 0 {
			return 0, c.semanticf(file, e.pos, "division by zero")
		}
		return l / r, nil
	}
	return 0, c.semanticf(file, e.pos, "expected an integer, got %s", exprText(e))
}

func (c *compiler) evalString(file string, e *expr) (string, error) {
	if e.kind != exprString {
		return "", c.semanticf(file, e.pos, "expected a string, got %s", exprText(e))
	}
	return e.name, nil
}

// evalIndexed reads values like Level2, Group1 or plain integers, all
// 1-based, and returns them 0-based.
func (c *compiler) evalIndexed(file string, e *expr, prefix string, max int64) (uint32, error) {
	var n int64
	switch {
	case e.kind == exprIdent && len(e.name) > len(prefix) && strings.EqualFold(e.name[:len(prefix)], prefix):
		v, err := strconv.ParseInt(e.name[len(prefix):], 10, 32)
		if err != nil {
			return 0, c.semanticf(file, e.pos, "malformed %s %q", strings.ToLower(prefix), e.name)
		}
		n = v
	default:
		v, err := c.evalInt(file, e)
		if err != nil {
			return 0, c.semanticf(file, e.pos, "expected a %s, got %s", strings.ToLower(prefix), exprText(e))
		}
		n = v
	}
	if n < 1 || n > max {
		return 0, c.semanticf(file, e.pos, "%s %d out of range 1..%d", strings.ToLower(prefix), n, max)
	}
	return uint32(n - 1), nil
}

const maxLevels = 32

func (c *compiler) evalLevel(file string, e *expr) (keymap.LevelIndex, error) {
	v, err := c.evalIndexed(file, e, "Level", maxLevels)
	return keymap.LevelIndex(v), err
}

func (c *compiler) evalGroup(file string, e *expr) (keymap.LayoutIndex, error) {
	v, err := c.evalIndexed(file, e, "Group", keymap.MaxLayouts)
	return keymap.LayoutIndex(v), err
}

func (c *compiler) evalGroupMask(file string, e *expr) (uint32, error) {
	switch e.kind {
	case exprIdent:
		switch strings.ToLower(e.name) {
		case "none":
			return 0, nil
		case "all":
			return 0xff, nil
		}
	case exprInt:
		return uint32(e.num), nil
	case exprAdd, exprSub:
		l, err := c.evalGroupMask(file, e.args[0])
		if err != nil {
			return 0, err
		}
		r, err := c.evalGroupMask(file, e.args[1])
		if err != nil {
			return 0, err
		}
		if e.kind == exprAdd {
			return l | r, nil
		}
		return l &^ r, nil
	}
	g, err := c.evalGroup(file, e)
	if err != nil {
		return 0, err
	}
	return 1 << g, nil
}

// evalModMask resolves a modifier expression to a mask over modifier
// indices. With realOnly, virtual modifiers are rejected and "all" means
// the eight real modifiers.
func (c *compiler) evalModMask(file string, e *expr, realOnly bool) (keymap.ModMask, error) {
	switch e.kind {
	case exprInt:
		return keymap.ModMask(e.num), nil
	case exprIdent:
		switch strings.ToLower(e.name) {
		case "none":
			return 0, nil
		case "all":
			if realOnly {
				return keymap.RealModsMask, nil
			}
			return c.allModsMask(), nil
		}
		idx, ok := c.modIndex(e.name)
		if !ok {
			return 0, c.semanticf(file, e.pos, "unknown modifier %q", e.name)
		}
		if realOnly && idx >= keymap.NumRealMods {
			return 0, c.semanticf(file, e.pos, "virtual modifier %q where only real modifiers are allowed", e.name)
		}
		return 1 << idx, nil
	case exprAdd, exprSub:
		l, err := c.evalModMask(file, e.args[0], realOnly)
		if err != nil {
			return 0, err
		}
		r, err := c.evalModMask(file, e.args[1], realOnly)
		if err != nil {
			return 0, err
		}
		if e.kind == exprAdd {
			return l | r, nil
		}
		return l &^ r, nil
	case exprInvert:
		v, err := c.evalModMask(file, e.args[0], realOnly)
		if err != nil {
			return 0, err
		}
		if realOnly {
			return ^v & keymap.RealModsMask, nil
		}
		return ^v & c.allModsMask(), nil
	}
	return 0, c.semanticf(file, e.pos, "expected modifiers, got %s", exprText(e))
}

// evalKeysym resolves a keysym name or number. Unknown names are reported
// and yield NoSymbol.
func (c *compiler) evalKeysym(file string, e *expr) (keysym.Keysym, error) {
	switch e.kind {
	case exprInt:
		if e.num >= 0 && e.num <= 9 {
			return keysym.Zero + keysym.Keysym(e.num), nil
		}
		if e.num < 0 || e.num > 0x1fffffff {
			return keysym.NoSymbol, c.semanticf(file, e.pos, "keysym value %#x out of range", e.num)
		}
		return keysym.Keysym(e.num), nil
	case exprIdent:
		switch strings.ToLower(e.name) {
		case "any", "nosymbol", "none":
			return keysym.NoSymbol, nil
		}
		if ks := keysym.FromName(e.name, keysym.NoFlags); ks != keysym.NoSymbol {
			return ks, nil
		}
		if ks := keysym.FromName(e.name, keysym.CaseInsensitive); ks != keysym.NoSymbol {
			c.warn(1, file, e.pos, "keysym name matched case-insensitively", "name", e.name, "keysym", ks.String())
			return ks, nil
		}
		c.warn(0, file, e.pos, "unrecognized keysym", "name", e.name)
		return keysym.NoSymbol, nil
	}
	return keysym.NoSymbol, c.semanticf(file, e.pos, "expected a keysym, got %s", exprText(e))
}

var whichNames = map[string]keymap.Which{
	"none":      0,
	"base":      keymap.WhichBase,
	"latched":   keymap.WhichLatched,
	"locked":    keymap.WhichLocked,
	"effective": keymap.WhichEffective,
	"compat":    keymap.WhichCompat,
	"any":       keymap.WhichBase | keymap.WhichLatched | keymap.WhichLocked | keymap.WhichEffective | keymap.WhichCompat,
}

func (c *compiler) evalWhich(file string, e *expr) (keymap.Which, error) {
	switch e.kind {
	case exprIdent:
		if w, ok := whichNames[strings.ToLower(e.name)]; ok {
			return w, nil
		}
	case exprAdd:
		l, err := c.evalWhich(file, e.args[0])
		if err != nil {
			return 0, err
		}
		r, err := c.evalWhich(file, e.args[1])
		return l | r, err
	}
	return 0, c.semanticf(file, e.pos, "expected a state component, got %s", exprText(e))
}

var controlNames = map[string]uint32{
	"none":            0,
	"repeatkeys":      1 << 0,
	"repeat":          1 << 0,
	"autorepeat":      1 << 0,
	"slowkeys":        1 << 1,
	"bouncekeys":      1 << 2,
	"stickykeys":      1 << 3,
	"mousekeys":       1 << 4,
	"mousekeysaccel":  1 << 5,
	"accessxkeys":     1 << 6,
	"accessxtimeout":  1 << 7,
	"accessxfeedback": 1 << 8,
	"audiblebell":     1 << 9,
	"overlay1":        1 << 10,
	"overlay2":        1 << 11,
	"ignoregrouplock": 1 << 12,
	"all":             1<<13 - 1,
}

func (c *compiler) evalControls(file string, e *expr) (uint32, error) {
	switch e.kind {
	case exprIdent:
		if v, ok := controlNames[strings.ToLower(e.name)]; ok {
			return v, nil
		}
	case exprAdd, exprSub:
		l, err := c.evalControls(file, e.args[0])
		if err != nil {
			return 0, err
		}
		r, err := c.evalControls(file, e.args[1])
		if err != nil {
			return 0, err
		}
		if e.kind == exprAdd {
			return l | r, nil
		}
		return l &^ r, nil
	}
	return 0, c.semanticf(file, e.pos, "expected controls, got %s", exprText(e))
}
