package xkbcomp

import (
	"strings"
)

// parser is a recursive descent parser over the lexer's token stream with
// arbitrary lookahead.
type parser struct {
	lx  *lexer
	buf []token
}

// parse reads a whole source file.
func parse(name string, src []byte) (*file, error) {
	p := &parser{lx: newLexer(name, src)}
	f := &file{name: name}

	if kind, err := p.peekKeymapStart(); err != nil {
		return nil, err
	} else if kind {
		f.keymap = true
		if err := p.parseKeymap(f); err != nil {
			return nil, err
		}
		return f, nil
	}
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if t.kind == tokEOF {
			break
		}
		sec, err := p.parseSection()
		if err != nil {
			return nil, err
		}
		f.sections = append(f.sections, sec)
	}
	if len(f.sections) == 0 {
		return nil, errorf(ErrSyntax, name, Pos{Line: 1, Col: 1}, "no sections in file")
	}
	return f, nil
}

func (p *parser) peek(n int) (token, error) {
	for len(p.buf) <= n {
		t, err := p.lx.next()
		if err != nil {
			return token{}, err
		}
		p.buf = append(p.buf, t)
	}
	return p.buf[n], nil
}

func (p *parser) next() (token, error) {
	t, err := p.peek(0)
	if err != nil {
		return token{}, err
	}
	p.buf = p.buf[1:]
	return t, nil
}

func (p *parser) errorf(pos Pos, format string, args ...any) *Error {
	return errorf(ErrSyntax, p.lx.file, pos, format, args...)
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t, err := p.next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, p.errorf(t.pos, "expected %s, got %s", kind, t)
	}
	return t, nil
}

// accept consumes the next token if it has the given kind.
func (p *parser) accept(kind tokenKind) (bool, error) {
	t, err := p.peek(0)
	if err != nil {
		return false, err
	}
	if t.kind != kind {
		return false, nil
	}
	p.buf = p.buf[1:]
	return true, nil
}

func (p *parser) peekIsKeyword(n int, words ...string) (bool, error) {
	t, err := p.peek(n)
	if err != nil {
		return false, err
	}
	if t.kind != tokIdent {
		return false, nil
	}
	for _, w := range words {
		if strings.EqualFold(t.text, w) {
			return true, nil
		}
	}
	return false, nil
}

func (p *parser) peekKeymapStart() (bool, error) {
	for i := 0; ; i++ {
		t, err := p.peek(i)
		if err != nil {
			return false, err
		}
		if t.kind != tokIdent {
			return false, nil
		}
		word := strings.ToLower(t.text)
		if _, ok := sectionFlagKeywords[word]; ok {
			continue
		}
		return word == "xkb_keymap" || word == "xkb_semantics" || word == "xkb_layout", nil
	}
}

func (p *parser) parseFlags() (sectionFlags, error) {
	var flags sectionFlags
	for {
		t, err := p.peek(0)
		if err != nil {
			return 0, err
		}
		if t.kind != tokIdent {
			return flags, nil
		}
		f, ok := sectionFlagKeywords[strings.ToLower(t.text)]
		if !ok {
			return flags, nil
		}
		flags |= f
		p.buf = p.buf[1:]
	}
}

func (p *parser) optionalName() (string, error) {
	t, err := p.peek(0)
	if err != nil {
		return "", err
	}
	if t.kind != tokString {
		return "", nil
	}
	p.buf = p.buf[1:]
	return t.text, nil
}

func (p *parser) parseKeymap(f *file) error {
	if _, err := p.parseFlags(); err != nil {
		return err
	}
	if _, err := p.expect(tokIdent); err != nil {
		return err
	}
	if _, err := p.optionalName(); err != nil {
		return err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return err
	}
	for {
		t, err := p.peek(0)
		if err != nil {
			return err
		}
		if t.kind == tokRBrace {
			p.buf = p.buf[1:]
			break
		}
		sec, err := p.parseSection()
		if err != nil {
			return err
		}
		f.sections = append(f.sections, sec)
	}
	if _, err := p.accept(tokSemi); err != nil {
		return err
	}
	if _, err := p.expect(tokEOF); err != nil {
		return err
	}
	return nil
}

func (p *parser) parseSection() (*section, error) {
	flags, err := p.parseFlags()
	if err != nil {
		return nil, err
	}
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	kind, ok := sectionKeywords[strings.ToLower(t.text)]
	if t.kind != tokIdent || !ok {
		return nil, p.errorf(t.pos, "expected section keyword, got %s", t)
	}
	sec := &section{kind: kind, flags: flags, file: p.lx.file, pos: t.pos}
	if sec.name, err = p.optionalName(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	if kind == KindGeometry {
		if err := p.skipBlock(); err != nil {
			return nil, err
		}
	} else {
		for {
			t, err := p.peek(0)
			if err != nil {
				return nil, err
			}
			if t.kind == tokRBrace {
				p.buf = p.buf[1:]
				break
			}
			if t.kind == tokEOF {
				return nil, p.errorf(t.pos, "unexpected end of file in %s", kind)
			}
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			sec.decls = append(sec.decls, d)
		}
	}
	if _, err := p.accept(tokSemi); err != nil {
		return nil, err
	}
	return sec, nil
}

// skipBlock consumes tokens up to the brace closing an already opened block.
func (p *parser) skipBlock() error {
	depth := 1
	for depth > 0 {
		t, err := p.next()
		if err != nil {
			return err
		}
		switch t.kind {
		case tokLBrace:
			depth++
		case tokRBrace:
			depth--
		case tokEOF:
			return p.errorf(t.pos, "unexpected end of file in block")
		}
	}
	return nil
}

var mergeKeywords = map[string]mergeMode{
	"include":   mergeDefault,
	"augment":   mergeAugment,
	"override":  mergeOverride,
	"replace":   mergeReplace,
	"alternate": mergeAugment,
}

func (p *parser) parseDecl() (decl, error) {
	t, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	merge := mergeDefault
	if t.kind == tokIdent {
		if m, ok := mergeKeywords[strings.ToLower(t.text)]; ok {
			n, err := p.peek(1)
			if err != nil {
				return nil, err
			}
			if n.kind == tokString {
				p.buf = p.buf[2:]
				if _, err := p.accept(tokSemi); err != nil {
					return nil, err
				}
				return &includeDecl{pos: t.pos, merge: m, stmt: n.text}, nil
			}
			if strings.EqualFold(t.text, "include") {
				return nil, p.errorf(n.pos, "expected include string, got %s", n)
			}
			merge = m
			p.buf = p.buf[1:]
			if t, err = p.peek(0); err != nil {
				return nil, err
			}
		}
	}

	if t.kind == tokKeyName {
		return p.parseKeycode(merge)
	}
	if t.kind != tokIdent {
		return p.parseVarStatement(merge)
	}
	n, err := p.peek(1)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(t.text) {
	case "alias":
		return p.parseAlias(merge)
	case "indicator":
		switch n.kind {
		case tokInt:
			return p.parseLEDName(merge, false)
		case tokString:
			return p.parseLEDMap(merge)
		}
	case "virtual":
		if ok, err := p.peekIsKeyword(1, "indicator"); err != nil {
			return nil, err
		} else if ok {
			p.buf = p.buf[1:]
			return p.parseLEDName(merge, true)
		}
	case "virtual_modifiers":
		return p.parseVMods(merge)
	case "type":
		if n.kind == tokString {
			return p.parseType(merge)
		}
	case "interpret":
		if n.kind != tokDot {
			return p.parseInterp(merge)
		}
	case "key":
		if n.kind == tokKeyName {
			return p.parseKeySyms(merge)
		}
	case "modifier_map", "modmap", "mod_map":
		return p.parseModMap(merge)
	case "group":
		if n.kind == tokInt {
			return p.parseGroupCompat(merge)
		}
	}
	return p.parseVarStatement(merge)
}

func (p *parser) parseKeycode(merge mergeMode) (decl, error) {
	name, err := p.next()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	code, err := p.expect(tokInt)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return &keycodeDecl{pos: name.pos, merge: merge, name: name.text, code: code.num}, nil
}

func (p *parser) parseAlias(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	alias, err := p.expect(tokKeyName)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	target, err := p.expect(tokKeyName)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return &aliasDecl{pos: kw.pos, merge: merge, alias: alias.text, target: target.text}, nil
}

func (p *parser) parseLEDName(merge mergeMode, virtual bool) (decl, error) {
	kw, _ := p.next()
	idx, err := p.expect(tokInt)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	name, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return &ledNameDecl{pos: kw.pos, merge: merge, index: idx.num, name: name, virtual: virtual}, nil
}

func (p *parser) parseLEDMap(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	name, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ledMapDecl{pos: kw.pos, merge: merge, name: name.text, body: body}, nil
}

// parseVMods reads a virtual_modifiers statement.
func (p *parser) parseVMods(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	list := &vmodList{pos: kw.pos}
	for {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		d := &vmodDecl{pos: name.pos, merge: merge, name: name.text}
		if ok, err := p.accept(tokEquals); err != nil {
			return nil, err
		} else if ok {
			if d.value, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
		list.decls = append(list.decls, d)
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokSemi {
			return list, nil
		}
		if t.kind != tokComma {
			return nil, p.errorf(t.pos, "expected ',' or ';', got %s", t)
		}
	}
}

// vmodList groups the modifiers of one virtual_modifiers statement.
type vmodList struct {
	pos   Pos
	decls []*vmodDecl
}

func (d *vmodList) declPos() Pos { return d.pos }

func (p *parser) parseType(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	name, _ := p.next()
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &typeDecl{pos: kw.pos, merge: merge, name: name.text, body: body}, nil
}

func (p *parser) parseInterp(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	d := &interpDecl{pos: kw.pos, merge: merge}
	switch t.kind {
	case tokIdent:
		d.sym = &expr{kind: exprIdent, pos: t.pos, name: t.text}
	case tokInt:
		d.sym = &expr{kind: exprInt, pos: t.pos, num: t.num}
	default:
		return nil, p.errorf(t.pos, "expected keysym in interpret, got %s", t)
	}
	if ok, err := p.accept(tokPlus); err != nil {
		return nil, err
	} else if ok {
		if d.match, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if d.body, err = p.parseBody(); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseKeySyms(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	name, _ := p.next()
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	d := &keySymsDecl{pos: kw.pos, merge: merge, name: name.text}
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.buf = p.buf[1:]
			break
		}
		var v *varDecl
		if t.kind == tokLBracket {
			list, err := p.parsePrimary()
			if err != nil {
				return nil, err
			}
			v = &varDecl{pos: t.pos, value: list}
		} else if v, err = p.parseVar(); err != nil {
			return nil, err
		}
		d.body = append(d.body, v)

		t, err = p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			break
		}
		if t.kind != tokComma {
			return nil, p.errorf(t.pos, "expected ',' or '}', got %s", t)
		}
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseModMap(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	mod, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	d := &modMapDecl{pos: kw.pos, merge: merge, mod: mod.text}
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.buf = p.buf[1:]
			break
		}
		e, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		d.keys = append(d.keys, e)
		if _, err := p.accept(tokComma); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseGroupCompat(merge mergeMode) (decl, error) {
	kw, _ := p.next()
	n, _ := p.next()
	if _, err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return &groupCompatDecl{pos: kw.pos, merge: merge, group: n.num, value: v}, nil
}

// parseBody reads a braced list of ';'-terminated statements followed by
// ';'.
func (p *parser) parseBody() ([]*varDecl, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var body []*varDecl
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.buf = p.buf[1:]
			break
		}
		v, err := p.parseVar()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokSemi); err != nil {
			return nil, err
		}
		body = append(body, v)
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *parser) parseVarStatement(merge mergeMode) (decl, error) {
	v, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokSemi); err != nil {
		return nil, err
	}
	v.merge = merge
	return v, nil
}

// parseVar reads "lhs = expr", "lhs" or "!lhs".
func (p *parser) parseVar() (*varDecl, error) {
	t, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if t.kind == tokExclam {
		p.buf = p.buf[1:]
		lhs, err := p.parseLhs()
		if err != nil {
			return nil, err
		}
		return &varDecl{pos: t.pos, lhs: lhs, value: &expr{kind: exprBool, pos: t.pos, flag: false}}, nil
	}
	lhs, err := p.parseLhs()
	if err != nil {
		return nil, err
	}
	if ok, err := p.accept(tokEquals); err != nil {
		return nil, err
	} else if !ok {
		return &varDecl{pos: t.pos, lhs: lhs, value: &expr{kind: exprBool, pos: t.pos, flag: true}}, nil
	}
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &varDecl{pos: t.pos, lhs: lhs, value: v}, nil
}

func (p *parser) parseLhs() (*expr, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	e := &expr{kind: exprIdent, pos: t.pos, name: t.text}
	if ok, err := p.accept(tokDot); err != nil {
		return nil, err
	} else if ok {
		f, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		e.kind = exprField
		e.field = f.text
	}
	if ok, err := p.accept(tokLBracket); err != nil {
		return nil, err
	} else if ok {
		if e.index, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		if e.kind == exprIdent {
			e.kind = exprArray
		}
	}
	return e, nil
}

// parseExpr parses sums and differences.
func (p *parser) parseExpr() (*expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		var kind exprKind
		switch t.kind {
		case tokPlus:
			kind = exprAdd
		case tokMinus:
			kind = exprSub
		default:
			return left, nil
		}
		p.buf = p.buf[1:]
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &expr{kind: kind, pos: t.pos, args: []*expr{left, right}}
	}
}

func (p *parser) parseTerm() (*expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		var kind exprKind
		switch t.kind {
		case tokTimes:
			kind = exprMul
		case tokDivide:
			kind = exprDiv
		default:
			return left, nil
		}
		p.buf = p.buf[1:]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &expr{kind: kind, pos: t.pos, args: []*expr{left, right}}
	}
}

var unaryOps = map[tokenKind]exprKind{
	tokMinus:  exprNeg,
	tokPlus:   exprUnaryPlus,
	tokExclam: exprNot,
	tokInvert: exprInvert,
}

func (p *parser) parseUnary() (*expr, error) {
	t, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if kind, ok := unaryOps[t.kind]; ok {
		p.buf = p.buf[1:]
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &expr{kind: kind, pos: t.pos, args: []*expr{x}}, nil
	}
	if t.kind == tokLParen {
		p.buf = p.buf[1:]
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return x, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*expr, error) {
	t, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tokInt:
		p.buf = p.buf[1:]
		return &expr{kind: exprInt, pos: t.pos, num: t.num}, nil
	case tokFloat:
		p.buf = p.buf[1:]
		return &expr{kind: exprFloat, pos: t.pos, name: t.text}, nil
	case tokString:
		p.buf = p.buf[1:]
		return &expr{kind: exprString, pos: t.pos, name: t.text}, nil
	case tokKeyName:
		p.buf = p.buf[1:]
		return &expr{kind: exprKeyName, pos: t.pos, name: t.text}, nil
	case tokLBracket:
		p.buf = p.buf[1:]
		items, err := p.parseItems(tokRBracket)
		if err != nil {
			return nil, err
		}
		return &expr{kind: exprList, pos: t.pos, args: items}, nil
	case tokLBrace:
		p.buf = p.buf[1:]
		items, err := p.parseItems(tokRBrace)
		if err != nil {
			return nil, err
		}
		return &expr{kind: exprMulti, pos: t.pos, args: items}, nil
	case tokIdent:
		n, err := p.peek(1)
		if err != nil {
			return nil, err
		}
		if n.kind == tokLParen {
			p.buf = p.buf[2:]
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return &expr{kind: exprCall, pos: t.pos, name: t.text, args: args}, nil
		}
		return p.parseLhs()
	}
	return nil, p.errorf(t.pos, "unexpected %s in expression", t)
}

// parseItems reads comma separated list items up to the closing token.
func (p *parser) parseItems(end tokenKind) ([]*expr, error) {
	var items []*expr
	for {
		if ok, err := p.accept(end); err != nil {
			return nil, err
		} else if ok {
			return items, nil
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == end {
			return items, nil
		}
		if t.kind != tokComma {
			return nil, p.errorf(t.pos, "expected ',' or %s, got %s", end, t)
		}
	}
}

// parseCallArgs reads action arguments: "name=value", "name", "!name" or
// plain expressions, up to the closing parenthesis.
func (p *parser) parseCallArgs() ([]*expr, error) {
	var args []*expr
	for {
		if ok, err := p.accept(tokRParen); err != nil {
			return nil, err
		} else if ok {
			return args, nil
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if ok, err := p.accept(tokEquals); err != nil {
			return nil, err
		} else if ok {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			arg = &expr{kind: exprAssign, pos: arg.pos, args: []*expr{arg, v}}
		}
		args = append(args, arg)
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRParen {
			return args, nil
		}
		if t.kind != tokComma {
			return nil, p.errorf(t.pos, "expected ',' or ')', got %s", t)
		}
	}
}
