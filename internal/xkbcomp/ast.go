package xkbcomp

// mergeMode says how a definition combines with an earlier one of the same
// name.
type mergeMode uint8

const (
	mergeDefault mergeMode = iota
	mergeAugment
	mergeOverride
	mergeReplace
)

// clobber reports whether a new definition wins over an existing one.
func (m mergeMode) clobber() bool { return m != mergeAugment }

// Kind names a keymap section type.
type Kind uint8

const (
	KindKeycodes Kind = iota
	KindTypes
	KindCompat
	KindSymbols
	KindGeometry
)

var kindDirs = [...]string{
	KindKeycodes: "keycodes",
	KindTypes:    "types",
	KindCompat:   "compat",
	KindSymbols:  "symbols",
	KindGeometry: "geometry",
}

// Dir is the include directory holding sections of this kind.
func (k Kind) Dir() string { return kindDirs[k] }

func (k Kind) String() string { return "xkb_" + kindDirs[k] }

var sectionKeywords = map[string]Kind{
	"xkb_keycodes":          KindKeycodes,
	"xkb_types":             KindTypes,
	"xkb_compatibility":     KindCompat,
	"xkb_compat":            KindCompat,
	"xkb_compatibility_map": KindCompat,
	"xkb_compat_map":        KindCompat,
	"xkb_symbols":           KindSymbols,
	"xkb_geometry":          KindGeometry,
}

type sectionFlags uint16

const (
	flagDefault sectionFlags = 1 << iota
	flagPartial
	flagHidden
	flagAlphanumericKeys
	flagModifierKeys
	flagKeypadKeys
	flagFunctionKeys
	flagAlternateGroup
)

var sectionFlagKeywords = map[string]sectionFlags{
	"default":           flagDefault,
	"partial":           flagPartial,
	"hidden":            flagHidden,
	"alphanumeric_keys": flagAlphanumericKeys,
	"modifier_keys":     flagModifierKeys,
	"keypad_keys":       flagKeypadKeys,
	"function_keys":     flagFunctionKeys,
	"alternate_group":   flagAlternateGroup,
}

type section struct {
	kind  Kind
	name  string
	flags sectionFlags
	file  string
	pos   Pos
	decls []decl
}

// file is a parsed source: either the sections of an xkb_keymap block or
// the top-level sections of a component file.
type file struct {
	name     string
	keymap   bool
	sections []*section
}

type decl interface{ declPos() Pos }

type (
	includeDecl struct {
		pos   Pos
		merge mergeMode
		stmt  string
	}
	// varDecl is an assignment, or a bare flag when value is a boolean.
	// A key body's unnamed symbol list has a nil lhs.
	varDecl struct {
		pos   Pos
		merge mergeMode
		lhs   *expr
		value *expr
	}
	keycodeDecl struct {
		pos   Pos
		merge mergeMode
		name  string
		code  int64
	}
	aliasDecl struct {
		pos           Pos
		merge         mergeMode
		alias, target string
	}
	ledNameDecl struct {
		pos     Pos
		merge   mergeMode
		index   int64
		name    *expr
		virtual bool
	}
	vmodDecl struct {
		pos   Pos
		merge mergeMode
		name  string
		value *expr
	}
	typeDecl struct {
		pos   Pos
		merge mergeMode
		name  string
		body  []*varDecl
	}
	interpDecl struct {
		pos   Pos
		merge mergeMode
		sym   *expr
		match *expr
		body  []*varDecl
	}
	ledMapDecl struct {
		pos   Pos
		merge mergeMode
		name  string
		body  []*varDecl
	}
	keySymsDecl struct {
		pos   Pos
		merge mergeMode
		name  string
		body  []*varDecl
	}
	modMapDecl struct {
		pos   Pos
		merge mergeMode
		mod   string
		keys  []*expr
	}
	groupCompatDecl struct {
		pos   Pos
		merge mergeMode
		group int64
		value *expr
	}
)

func (d *includeDecl) declPos() Pos     { return d.pos }
func (d *varDecl) declPos() Pos         { return d.pos }
func (d *keycodeDecl) declPos() Pos     { return d.pos }
func (d *aliasDecl) declPos() Pos       { return d.pos }
func (d *ledNameDecl) declPos() Pos     { return d.pos }
func (d *vmodDecl) declPos() Pos        { return d.pos }
func (d *typeDecl) declPos() Pos        { return d.pos }
func (d *interpDecl) declPos() Pos      { return d.pos }
func (d *ledMapDecl) declPos() Pos      { return d.pos }
func (d *keySymsDecl) declPos() Pos     { return d.pos }
func (d *modMapDecl) declPos() Pos      { return d.pos }
func (d *groupCompatDecl) declPos() Pos { return d.pos }

type exprKind uint8

const (
	exprIdent exprKind = iota
	exprInt
	exprFloat
	exprString
	exprKeyName
	exprBool
	exprField // name.field, optionally indexed
	exprArray // name[index]
	exprCall  // name(args)
	exprList  // [ items ]
	exprMulti // { items } inside a keysym list
	exprAssign
	exprAdd
	exprSub
	exprMul
	exprDiv
	exprNeg
	exprUnaryPlus
	exprNot
	exprInvert
)

type expr struct {
	kind  exprKind
	pos   Pos
	name  string
	field string
	index *expr
	num   int64
	flag  bool
	args  []*expr
}

// lhsParts splits an assignment target into element, field and index.
// "key.type[Group1]" gives ("key", "type", Group1); "repeat" gives
// ("", "repeat", nil).
func (e *expr) lhsParts() (elem, field string, index *expr) {
	switch e.kind {
	case exprIdent:
		return "", e.name, nil
	case exprArray:
		return "", e.name, e.index
	case exprField:
		return e.name, e.field, e.index
	}
	return "", "", nil
}
