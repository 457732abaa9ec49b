package keysym

import (
	"slices"
	"strings"
	"sync"
)

// Commonly used keysyms.
const (
	Space      Keysym = 0x0020
	Exclam     Keysym = 0x0021
	Apostrophe Keysym = 0x0027
	Zero       Keysym = 0x0030
	One        Keysym = 0x0031
	Nine       Keysym = 0x0039
	UpperA     Keysym = 0x0041
	UpperZ     Keysym = 0x005a
	Grave      Keysym = 0x0060
	LowerA     Keysym = 0x0061
	LowerZ     Keysym = 0x007a
	Ssharp     Keysym = 0x00df
	Ydiaeresis Keysym = 0x00ff

	BackSpace  Keysym = 0xff08
	Tab        Keysym = 0xff09
	Linefeed   Keysym = 0xff0a
	Clear      Keysym = 0xff0b
	Return     Keysym = 0xff0d
	Pause      Keysym = 0xff13
	ScrollLock Keysym = 0xff14
	SysReq     Keysym = 0xff15
	Escape     Keysym = 0xff1b
	MultiKey   Keysym = 0xff20
	Home       Keysym = 0xff50
	Left       Keysym = 0xff51
	Up         Keysym = 0xff52
	Right      Keysym = 0xff53
	Down       Keysym = 0xff54
	Prior      Keysym = 0xff55
	Next       Keysym = 0xff56
	End        Keysym = 0xff57
	Insert     Keysym = 0xff63
	Menu       Keysym = 0xff67
	ModeSwitch Keysym = 0xff7e
	NumLock    Keysym = 0xff7f
	Delete     Keysym = 0xffff

	KPSpace    Keysym = 0xff80
	KPTab      Keysym = 0xff89
	KPEnter    Keysym = 0xff8d
	KPMultiply Keysym = 0xffaa
	KPDivide   Keysym = 0xffaf
	KP0        Keysym = 0xffb0
	KP9        Keysym = 0xffb9
	KPEqual    Keysym = 0xffbd

	F1  Keysym = 0xffbe
	F12 Keysym = 0xffc9
	F35 Keysym = 0xffe0

	ShiftL    Keysym = 0xffe1
	ShiftR    Keysym = 0xffe2
	ControlL  Keysym = 0xffe3
	ControlR  Keysym = 0xffe4
	CapsLock  Keysym = 0xffe5
	ShiftLock Keysym = 0xffe6
	MetaL     Keysym = 0xffe7
	MetaR     Keysym = 0xffe8
	AltL      Keysym = 0xffe9
	AltR      Keysym = 0xffea
	SuperL    Keysym = 0xffeb
	SuperR    Keysym = 0xffec
	HyperL    Keysym = 0xffed
	HyperR    Keysym = 0xffee

	ISOLock           Keysym = 0xfe01
	ISOLevel2Latch    Keysym = 0xfe02
	ISOLevel3Shift    Keysym = 0xfe03
	ISOLevel3Latch    Keysym = 0xfe04
	ISOLevel3Lock     Keysym = 0xfe05
	ISOGroupLatch     Keysym = 0xfe06
	ISOGroupLock      Keysym = 0xfe07
	ISONextGroup      Keysym = 0xfe08
	ISONextGroupLock  Keysym = 0xfe09
	ISOPrevGroup      Keysym = 0xfe0a
	ISOPrevGroupLock  Keysym = 0xfe0b
	ISOFirstGroup     Keysym = 0xfe0c
	ISOFirstGroupLock Keysym = 0xfe0d
	ISOLastGroup      Keysym = 0xfe0e
	ISOLastGroupLock  Keysym = 0xfe0f
	ISOLevel5Shift    Keysym = 0xfe11
	ISOLevel5Latch    Keysym = 0xfe12
	ISOLevel5Lock     Keysym = 0xfe13
	ISOLeftTab        Keysym = 0xfe20

	DeadGrave  Keysym = 0xfe50
	DeadOgonek Keysym = 0xfe5c

	TerminateServer Keysym = 0xfed5

	CyrillicYu       Keysym = 0x06c0
	CyrillicHardsign Keysym = 0x06ff

	EuroSign Keysym = 0x20ac
)

//go:generate go run gen.go -o table_gen.go /usr/include/X11/keysymdef.h /usr/include/X11/XF86keysym.h

type entry struct {
	name string
	ks   Keysym
}

type ucsEntry struct {
	ks Keysym
	r  rune
}

type tables struct {
	entries []entry
	byName  map[string]Keysym
	byValue map[Keysym]string
	folded  map[string][]Keysym
}

// The first name listed for a value is the one Name returns.
var loadTables = sync.OnceValue(func() *tables {
	entries := make([]entry, 0, len(namedEntries)+1)
	entries = append(entries, entry{"NoSymbol", NoSymbol})
	entries = append(entries, namedEntries[:]...)

	t := &tables{
		entries: entries,
		byName:  make(map[string]Keysym, len(entries)),
		byValue: make(map[Keysym]string, len(entries)),
		folded:  make(map[string][]Keysym),
	}
	for _, e := range entries {
		t.byName[e.name] = e.ks
		if _, ok := t.byValue[e.ks]; !ok {
			t.byValue[e.ks] = e.name
		}
		key := strings.ToLower(e.name)
		if !slices.Contains(t.folded[key], e.ks) {
			t.folded[key] = append(t.folded[key], e.ks)
		}
	}
	for _, v := range t.folded {
		slices.Sort(v)
	}
	return t
})

func nameOf(ks Keysym) (string, bool) {
	name, ok := loadTables().byValue[ks]
	return name, ok
}

func lookupName(name string) (Keysym, bool) {
	ks, ok := loadTables().byName[name]
	return ks, ok
}

func lookupNameFold(name string) (Keysym, bool) {
	candidates := loadTables().folded[strings.ToLower(name)]
	if len(candidates) == 0 {
		return NoSymbol, false
	}
	for _, ks := range candidates {
		if ks.IsLower() {
			return ks, true
		}
	}
	return candidates[0], true
}

// Named pairs a keysym with one of its names.
type Named struct {
	Name   string
	Keysym Keysym
}

// All returns every named keysym in canonical order, aliases included.
func All() []Named {
	t := loadTables()
	out := make([]Named, len(t.entries))
	for i, e := range t.entries {
		out[i] = Named{Name: e.name, Keysym: e.ks}
	}
	return out
}
