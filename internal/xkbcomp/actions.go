package xkbcomp

import (
	"strings"

	"github.com/Alia5/goxkb/keymap"
)

var actionNames = map[string]keymap.ActionType{
	"noaction":        keymap.ActionNone,
	"setmods":         keymap.ActionModSet,
	"latchmods":       keymap.ActionModLatch,
	"lockmods":        keymap.ActionModLock,
	"setgroup":        keymap.ActionGroupSet,
	"latchgroup":      keymap.ActionGroupLatch,
	"lockgroup":       keymap.ActionGroupLock,
	"terminate":       keymap.ActionTerminate,
	"terminateserver": keymap.ActionTerminate,
}

// Actions that parse as XKB but have no effect on keyboard state here.
var ignoredActions = map[string]bool{
	"moveptr": true, "movepointer": true, "ptrbtn": true, "pointerbutton": true,
	"lockptrbtn": true, "lockpointerbutton": true, "lockptrbutton": true,
	"lockpointerbtn": true, "setptrdflt": true, "setpointerdefault": true,
	"isolock": true, "switchscreen": true, "setcontrols": true,
	"lockcontrols": true, "actionmessage": true, "messageaction": true,
	"message": true, "redirect": true, "redirectkey": true, "devbtn": true,
	"devicebtn": true, "devicebutton": true, "devbutton": true,
	"lockdevbtn": true, "lockdevicebtn": true, "lockdevicebutton": true,
	"lockdevbutton": true, "devval": true, "deviceval": true,
	"devicevaluator": true, "devvaluator": true, "private": true,
}

// actionDefaults holds per-action field defaults set by statements like
// "setMods.clearLocks = True;".
type actionDefaults map[keymap.ActionType]keymap.Action

func (c *compiler) evalAction(file string, e *expr, dflt actionDefaults) (keymap.Action, error) {
	name := e.name
	if e.kind != exprCall && e.kind != exprIdent {
		return keymap.Action{}, c.semanticf(file, e.pos, "expected an action, got %s", exprText(e))
	}
	lname := strings.ToLower(name)
	typ, ok := actionNames[lname]
	if !ok {
		if ignoredActions[lname] {
			c.warn(1, file, e.pos, "action has no effect on keyboard state, ignored", "action", name)
		} else {
			c.warn(0, file, e.pos, "unknown action, ignored", "action", name)
		}
		return keymap.Action{}, nil
	}
	act := dflt[typ]
	act.Type = typ
	for _, arg := range e.args {
		if err := c.actionField(file, &act, arg); err != nil {
			return keymap.Action{}, err
		}
	}
	return act, nil
}

// actionField applies one argument: "field=value", "field" or "!field".
func (c *compiler) actionField(file string, act *keymap.Action, arg *expr) error {
	var field string
	var value *expr
	switch arg.kind {
	case exprAssign:
		lhs := arg.args[0]
		if lhs.kind != exprIdent {
			c.warn(0, file, arg.pos, "unsupported action field, ignored", "action", act.Type.String(), "field", exprText(lhs))
			return nil
		}
		field, value = lhs.name, arg.args[1]
	case exprIdent:
		field, value = arg.name, &expr{kind: exprBool, pos: arg.pos, flag: true}
	case exprNot, exprInvert:
		if arg.args[0].kind != exprIdent {
			return c.semanticf(file, arg.pos, "expected a field name after '!'")
		}
		field, value = arg.args[0].name, &expr{kind: exprBool, pos: arg.pos, flag: false}
	default:
		return c.semanticf(file, arg.pos, "malformed action argument %s", exprText(arg))
	}
	return c.setActionField(file, act, field, value)
}

func (c *compiler) setActionField(file string, act *keymap.Action, field string, value *expr) error {
	lfield := strings.ToLower(field)
	setFlag := func(flag keymap.ActionFlags) error {
		on, err := c.evalBool(file, value)
		if err != nil {
			return err
		}
		if on {
			act.Flags |= flag
		} else {
			act.Flags &^= flag
		}
		return nil
	}

	switch act.Type {
	case keymap.ActionModSet, keymap.ActionModLatch, keymap.ActionModLock:
		switch lfield {
		case "modifiers", "mods":
			if value.kind == exprIdent {
				switch strings.ToLower(value.name) {
				case "usemodmapmods", "modmapmods":
					act.Flags |= keymap.ActionModsLookupModMap
					act.Mods = keymap.Mods{}
					return nil
				}
			}
			mods, err := c.evalModMask(file, value, false)
			if err != nil {
				return err
			}
			act.Flags &^= keymap.ActionModsLookupModMap
			act.Mods = keymap.Mods{Mods: mods}
			return nil
		case "clearlocks":
			if act.Type != keymap.ActionModLock {
				return setFlag(keymap.ActionLockClear)
			}
		case "latchtolock":
			if act.Type == keymap.ActionModLatch {
				return setFlag(keymap.ActionLatchToLock)
			}
		case "affect":
			if act.Type == keymap.ActionModLock {
				return c.setAffect(file, act, value)
			}
		}
	case keymap.ActionGroupSet, keymap.ActionGroupLatch, keymap.ActionGroupLock:
		switch lfield {
		case "group":
			return c.setActionGroup(file, act, value)
		case "clearlocks":
			if act.Type != keymap.ActionGroupLock {
				return setFlag(keymap.ActionLockClear)
			}
		case "latchtolock":
			if act.Type == keymap.ActionGroupLatch {
				return setFlag(keymap.ActionLatchToLock)
			}
		}
	}
	c.warn(0, file, value.pos, "field not valid for action, ignored", "action", act.Type.String(), "field", field)
	return nil
}

func (c *compiler) setAffect(file string, act *keymap.Action, value *expr) error {
	if value.kind != exprIdent {
		return c.semanticf(file, value.pos, "expected lock, unlock, both or neither, got %s", exprText(value))
	}
	act.Flags &^= keymap.ActionLockNoLock | keymap.ActionLockNoUnlock
	switch strings.ToLower(value.name) {
	case "lock":
		act.Flags |= keymap.ActionLockNoUnlock
	case "unlock":
		act.Flags |= keymap.ActionLockNoLock
	case "both":
	case "neither":
		act.Flags |= keymap.ActionLockNoLock | keymap.ActionLockNoUnlock
	default:
		return c.semanticf(file, value.pos, "expected lock, unlock, both or neither, got %s", value.name)
	}
	return nil
}

// setActionGroup reads "group=+1" and "group=-1" as relative changes and
// "group=2" or "group=Group2" as an absolute layout.
func (c *compiler) setActionGroup(file string, act *keymap.Action, value *expr) error {
	if value.kind == exprNeg || value.kind == exprUnaryPlus {
		delta, err := c.evalInt(file, value)
		if err != nil {
			return err
		}
		if delta < -keymap.MaxLayouts || delta > keymap.MaxLayouts {
			return c.semanticf(file, value.pos, "relative group %d out of range", delta)
		}
		act.Flags &^= keymap.ActionAbsoluteSwitch
		act.Group = int32(delta)
		return nil
	}
	g, err := c.evalGroup(file, value)
	if err != nil {
		return err
	}
	act.Flags |= keymap.ActionAbsoluteSwitch
	act.Group = int32(g)
	return nil
}

// actionDefault handles "setMods.clearLocks = True;" style statements.
// It reports false when elem names no action.
func (c *compiler) actionDefault(dflt actionDefaults, file string, v *varDecl) (bool, error) {
	elem, field, _ := v.lhs.lhsParts()
	typ, ok := actionNames[strings.ToLower(elem)]
	if !ok {
		return false, nil
	}
	act := dflt[typ]
	act.Type = typ
	if err := c.setActionField(file, &act, field, v.value); err != nil {
		return true, err
	}
	dflt[typ] = act
	return true, nil
}
