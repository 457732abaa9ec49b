package xkb

import "github.com/Alia5/goxkb/keymap"

type latchState uint8

const (
	noLatch latchState = iota
	latchKeyDown
	latchPending
)

// filter tracks the action of one pressed key until the key is released,
// or for latches until the latch is used up.
type filter struct {
	key    keymap.Keycode
	action keymap.Action
	refcnt int
	active bool

	latch latchState
	// priv is what a lock found already locked, or the base group a
	// SetGroup replaced.
	priv      keymap.ModMask
	prevGroup int32
}

// applyFilters runs an event through the live filters and, for a press no
// filter consumed, starts a filter for the key's action.
func (s *State) applyFilters(kc keymap.Keycode, dir KeyDirection) {
	send := true
	for _, f := range s.filters {
		if !f.active {
			continue
		}
		if !s.runFilter(f, kc, dir) {
			send = false
		}
	}
	if !send || dir == KeyUp {
		return
	}

	act := s.keyAction(kc)
	switch act.Type {
	case keymap.ActionModSet, keymap.ActionModLatch, keymap.ActionModLock,
		keymap.ActionGroupSet, keymap.ActionGroupLatch, keymap.ActionGroupLock:
	default:
		return
	}
	f := s.allocFilter()
	*f = filter{key: kc, action: act, refcnt: 1, active: true}
	s.startFilter(f)
}

func (s *State) allocFilter() *filter {
	for _, f := range s.filters {
		if !f.active {
			return f
		}
	}
	f := &filter{}
	s.filters = append(s.filters, f)
	return f
}

// keyAction is the action of kc at its current layout and level.
func (s *State) keyAction(kc keymap.Keycode) keymap.Action {
	layout := s.km.KeyLayout(kc, s.group)
	if layout == keymap.LayoutInvalid {
		return keymap.Action{}
	}
	level := s.km.KeyLevel(kc, layout, s.mods)
	if level == keymap.LevelInvalid {
		return keymap.Action{}
	}
	return s.km.LevelAction(kc, layout, level)
}

func (s *State) startFilter(f *filter) {
	a := &f.action
	switch a.Type {
	case keymap.ActionModSet:
		s.setMods |= a.Mods.Mask
	case keymap.ActionModLatch:
		f.latch = latchKeyDown
		s.setMods |= a.Mods.Mask
	case keymap.ActionModLock:
		f.priv = s.lockedMods & a.Mods.Mask
		s.setMods |= a.Mods.Mask
		if a.Flags&keymap.ActionLockNoLock == 0 {
			s.lockedMods |= a.Mods.Mask
		}
	case keymap.ActionGroupSet:
		f.prevGroup = s.baseGroup
		if a.Flags&keymap.ActionAbsoluteSwitch != 0 {
			s.baseGroup = a.Group
		} else {
			s.baseGroup += a.Group
		}
	case keymap.ActionGroupLatch:
		f.latch = latchKeyDown
		s.baseGroup += a.Group
	case keymap.ActionGroupLock:
		s.lockGroup(a)
	}
}

func (s *State) lockGroup(a *keymap.Action) {
	if a.Flags&keymap.ActionAbsoluteSwitch != 0 {
		s.lockedGroup = a.Group
	} else {
		s.lockedGroup += a.Group
	}
}

// runFilter feeds an event to f. It returns false when f consumed the
// event, which keeps the key's own action from running.
func (s *State) runFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	switch f.action.Type {
	case keymap.ActionModSet:
		return s.modSetFilter(f, kc, dir)
	case keymap.ActionModLatch:
		return s.modLatchFilter(f, kc, dir)
	case keymap.ActionModLock:
		return s.modLockFilter(f, kc, dir)
	case keymap.ActionGroupSet:
		return s.groupSetFilter(f, kc, dir)
	case keymap.ActionGroupLatch:
		return s.groupLatchFilter(f, kc, dir)
	case keymap.ActionGroupLock:
		return s.groupLockFilter(f, kc, dir)
	}
	f.active = false
	return true
}

// release counts a press or release of f's own key. It returns true once
// the last press of the key is released.
func (f *filter) release(dir KeyDirection) bool {
	if dir == KeyDown {
		f.refcnt++
		return false
	}
	f.refcnt--
	return f.refcnt <= 0
}

func (s *State) modSetFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	if kc != f.key {
		// Locks are only cleared when nothing else was pressed meanwhile.
		f.action.Flags &^= keymap.ActionLockClear
		return true
	}
	if !f.release(dir) {
		return false
	}
	s.clearMods |= f.action.Mods.Mask
	if f.action.Flags&keymap.ActionLockClear != 0 {
		s.lockedMods &^= f.action.Mods.Mask
	}
	f.active = false
	return true
}

func (s *State) modLockFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	if kc != f.key {
		return true
	}
	if !f.release(dir) {
		return false
	}
	s.clearMods |= f.action.Mods.Mask
	if f.action.Flags&keymap.ActionLockNoUnlock == 0 {
		s.lockedMods &^= f.priv
	}
	f.active = false
	return true
}

func (s *State) modLatchFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	mask := f.action.Mods.Mask
	switch {
	case dir == KeyDown && f.latch == latchPending:
		act := s.keyAction(kc)
		if act.Type == keymap.ActionModLatch && act.Flags == f.action.Flags && act.Mods.Mask == mask {
			// Pressing the same latch again turns it into a lock or a
			// plain set, owned by the new key.
			f.action = act
			f.key = kc
			f.refcnt = 1
			if act.Flags&keymap.ActionLatchToLock != 0 {
				f.action.Type = keymap.ActionModLock
				f.priv = 0
				s.lockedMods |= mask
			} else {
				f.action.Type = keymap.ActionModSet
			}
			s.setMods |= mask
			s.latchedMods &^= mask
			return false
		}
		if act.BreaksLatch() {
			s.latchedMods &^= mask
			f.active = false
			return true
		}
	case dir == KeyUp && kc == f.key:
		if f.latch == noLatch ||
			(f.action.Flags&keymap.ActionLockClear != 0 && s.lockedMods&mask == mask) {
			if f.latch == latchPending {
				s.latchedMods &^= mask
			} else {
				s.clearMods |= mask
			}
			s.lockedMods &^= mask
			f.active = false
		} else {
			f.latch = latchPending
			s.clearMods |= mask
			s.latchedMods |= mask
		}
	case dir == KeyDown && f.latch == latchKeyDown:
		// Another key went down while the latch key is held: act as a
		// plain modifier and drop the latch on release.
		f.latch = noLatch
	}
	return true
}

func (s *State) groupSetFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	if kc != f.key {
		f.action.Flags &^= keymap.ActionLockClear
		return true
	}
	if !f.release(dir) {
		return false
	}
	if f.action.Flags&keymap.ActionAbsoluteSwitch != 0 {
		s.baseGroup = f.prevGroup
	} else {
		s.baseGroup -= f.action.Group
	}
	if f.action.Flags&keymap.ActionLockClear != 0 {
		s.lockedGroup = 0
	}
	f.active = false
	return true
}

func (s *State) groupLockFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	if kc != f.key {
		return true
	}
	if !f.release(dir) {
		return false
	}
	f.active = false
	return true
}

func (s *State) groupLatchFilter(f *filter, kc keymap.Keycode, dir KeyDirection) bool {
	delta := f.action.Group
	switch {
	case dir == KeyDown && f.latch == latchPending:
		act := s.keyAction(kc)
		if act.Type == keymap.ActionGroupLatch && act.Group == delta && act.Flags == f.action.Flags {
			if act.Flags&keymap.ActionLatchToLock != 0 && delta != 0 {
				f.action = act
				f.action.Type = keymap.ActionGroupLock
				f.key = kc
				f.refcnt = 1
				s.latchedGroup -= delta
				s.lockGroup(&f.action)
				return false
			}
		} else if act.BreaksLatch() {
			s.latchedGroup -= delta
			f.active = false
			return true
		}
	case dir == KeyUp && kc == f.key:
		if f.latch == noLatch ||
			(f.action.Flags&keymap.ActionLockClear != 0 && s.lockedGroup != 0) {
			if f.latch == latchPending {
				s.latchedGroup -= delta
			} else {
				s.baseGroup -= delta
			}
			if f.action.Flags&keymap.ActionLockClear != 0 {
				s.lockedGroup = 0
			}
			f.active = false
		} else if f.latch == latchKeyDown {
			f.latch = latchPending
			s.baseGroup -= delta
			s.latchedGroup += delta
		}
	case dir == KeyDown && f.latch == latchKeyDown:
		f.latch = noLatch
	}
	return true
}
