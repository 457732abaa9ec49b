package handler

import (
	"strings"

	"github.com/Alia5/goxkb/apitypes"
	"github.com/Alia5/goxkb/rules"
	"github.com/Alia5/goxkb/seat"
	"github.com/Alia5/goxkb/xkb"
)

func modifiersEvent(ev seat.Event) apitypes.ModifiersEvent {
	c := ev.State
	return apitypes.ModifiersEvent{
		Serial:          ev.Serial,
		Changed:         uint32(ev.Changed),
		DepressedMods:   uint32(c.DepressedMods),
		LatchedMods:     uint32(c.LatchedMods),
		LockedMods:      uint32(c.LockedMods),
		EffectiveMods:   uint32(c.EffectiveMods),
		DepressedLayout: c.DepressedLayout,
		LatchedLayout:   c.LatchedLayout,
		LockedLayout:    c.LockedLayout,
		EffectiveLayout: uint32(c.EffectiveLayout),
		LEDs:            uint32(c.LEDs),
	}
}

// componentNames splits a component set into its names; an empty set gives
// an empty, non-nil slice.
func componentNames(c xkb.StateComponent) []string {
	if c == 0 {
		return []string{}
	}
	return strings.Split(c.String(), "|")
}

func seatInfo(s *seat.Seat) apitypes.Seat {
	_, digest := s.Text()
	out := apitypes.Seat{ID: s.ID(), Layouts: s.Layouts(), Digest: digest}
	if n := s.Names(); n != nil {
		out.Names = &apitypes.Names{
			Rules:   n.Rules,
			Model:   n.Model,
			Layout:  n.Layout,
			Variant: n.Variant,
			Options: n.Options,
		}
	}
	return out
}

func ruleNames(n *apitypes.Names) *rules.Names {
	if n == nil {
		return nil
	}
	return &rules.Names{
		Rules:   n.Rules,
		Model:   n.Model,
		Layout:  n.Layout,
		Variant: n.Variant,
		Options: n.Options,
	}
}
