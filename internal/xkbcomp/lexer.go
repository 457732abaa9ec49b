package xkbcomp

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokFloat
	tokString
	tokKeyName
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokSemi
	tokComma
	tokEquals
	tokPlus
	tokMinus
	tokTimes
	tokDivide
	tokExclam
	tokInvert
	tokDot
)

var tokenNames = [...]string{
	tokEOF:      "end of file",
	tokIdent:    "identifier",
	tokInt:      "integer",
	tokFloat:    "float",
	tokString:   "string",
	tokKeyName:  "key name",
	tokLBrace:   "'{'",
	tokRBrace:   "'}'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokSemi:     "';'",
	tokComma:    "','",
	tokEquals:   "'='",
	tokPlus:     "'+'",
	tokMinus:    "'-'",
	tokTimes:    "'*'",
	tokDivide:   "'/'",
	tokExclam:   "'!'",
	tokInvert:   "'~'",
	tokDot:      "'.'",
}

func (k tokenKind) String() string { return tokenNames[k] }

var punct = map[byte]tokenKind{
	'{': tokLBrace, '}': tokRBrace, '[': tokLBracket, ']': tokRBracket,
	'(': tokLParen, ')': tokRParen, ';': tokSemi, ',': tokComma,
	'=': tokEquals, '+': tokPlus, '-': tokMinus, '*': tokTimes,
	'/': tokDivide, '!': tokExclam, '~': tokInvert, '.': tokDot,
}

type token struct {
	kind tokenKind
	text string
	num  int64
	pos  Pos
}

func (t token) String() string {
	switch t.kind {
	case tokIdent, tokFloat:
		return t.text
	case tokInt:
		return strconv.FormatInt(t.num, 10)
	case tokString:
		return strconv.Quote(t.text)
	case tokKeyName:
		return "<" + t.text + ">"
	}
	return t.kind.String()
}

// lexer turns XKB source into tokens. It tracks line and column for
// diagnostics and skips //, # and /* */ comments.
type lexer struct {
	file string
	src  []byte
	off  int
	line int
	col  int
}

func newLexer(file string, src []byte) *lexer {
	return &lexer{file: file, src: src, line: 1, col: 1}
}

func (l *lexer) peekByte(n int) byte {
	if l.off+n >= len(l.src) {
		return 0
	}
	return l.src[l.off+n]
}

func (l *lexer) advance() {
	if l.off >= len(l.src) {
		return
	}
	if l.src[l.off] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.off++
}

func (l *lexer) pos() Pos { return Pos{Line: l.line, Col: l.col} }

func (l *lexer) errorf(pos Pos, format string, args ...any) *Error {
	return errorf(ErrSyntax, l.file, pos, format, args...)
}

func (l *lexer) skipSpaceAndComments() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			l.advance()
		case c == '#' || (c == '/' && l.peekByte(1) == '/'):
			for l.off < len(l.src) && l.src[l.off] != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByte(1) == '*':
			start := l.pos()
			l.advance()
			l.advance()
			for {
				if l.off >= len(l.src) {
					return l.errorf(start, "unterminated comment")
				}
				if l.src[l.off] == '*' && l.peekByte(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) next() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	pos := l.pos()
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: pos}, nil
	}
	c := l.src[l.off]
	switch {
	case isIdentStart(c):
		start := l.off
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.advance()
		}
		return token{kind: tokIdent, text: string(l.src[start:l.off]), pos: pos}, nil
	case isDigit(c):
		return l.number(pos)
	case c == '"':
		return l.quoted(pos)
	case c == '<':
		return l.keyName(pos)
	}
	if k, ok := punct[c]; ok {
		l.advance()
		return token{kind: k, pos: pos}, nil
	}
	r, _ := utf8.DecodeRune(l.src[l.off:])
	return token{}, l.errorf(pos, "unexpected character %q", r)
}

func (l *lexer) number(pos Pos) (token, error) {
	start := l.off
	if l.src[l.off] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.advance()
		l.advance()
		for l.off < len(l.src) && strings.IndexByte("0123456789abcdefABCDEF", l.src[l.off]) >= 0 {
			l.advance()
		}
		text := string(l.src[start:l.off])
		n, err := strconv.ParseInt(text[2:], 16, 64)
		if err != nil {
			return token{}, l.errorf(pos, "malformed number %s", text)
		}
		return token{kind: tokInt, text: text, num: n, pos: pos}, nil
	}
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.advance()
	}
	if l.off < len(l.src) && l.src[l.off] == '.' && isDigit(l.peekByte(1)) {
		l.advance()
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance()
		}
		return token{kind: tokFloat, text: string(l.src[start:l.off]), pos: pos}, nil
	}
	text := string(l.src[start:l.off])
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return token{}, l.errorf(pos, "malformed number %s", text)
	}
	return token{kind: tokInt, text: text, num: n, pos: pos}, nil
}

var stringEscapes = map[byte]byte{
	'\\': '\\', '"': '"', 'n': '\n', 't': '\t', 'r': '\r',
	'b': '\b', 'f': '\f', 'v': '\v', 'e': 0x1b,
}

func (l *lexer) quoted(pos Pos) (token, error) {
	l.advance()
	var sb strings.Builder
	for {
		if l.off >= len(l.src) || l.src[l.off] == '\n' {
			return token{}, l.errorf(pos, "unterminated string")
		}
		c := l.src[l.off]
		if c == '"' {
			l.advance()
			return token{kind: tokString, text: sb.String(), pos: pos}, nil
		}
		if c != '\\' {
			sb.WriteByte(c)
			l.advance()
			continue
		}
		l.advance()
		e := l.peekByte(0)
		if r, ok := stringEscapes[e]; ok {
			sb.WriteByte(r)
			l.advance()
			continue
		}
		if e >= '0' && e <= '7' {
			var v int
			for i := 0; i < 3 && l.peekByte(0) >= '0' && l.peekByte(0) <= '7'; i++ {
				v = v*8 + int(l.peekByte(0)-'0')
				l.advance()
			}
			if v > 0xff {
				return token{}, l.errorf(pos, "octal escape out of range")
			}
			sb.WriteByte(byte(v))
			continue
		}
		return token{}, l.errorf(l.pos(), "unknown escape sequence \\%c", e)
	}
}

func (l *lexer) keyName(pos Pos) (token, error) {
	l.advance()
	start := l.off
	for l.off < len(l.src) && l.src[l.off] != '>' {
		if c := l.src[l.off]; c == ' ' || c == '\t' || c == '\n' {
			return token{}, l.errorf(pos, "unterminated key name")
		}
		l.advance()
	}
	if l.off >= len(l.src) {
		return token{}, l.errorf(pos, "unterminated key name")
	}
	name := string(l.src[start:l.off])
	l.advance()
	if name == "" {
		return token{}, l.errorf(pos, "empty key name")
	}
	return token{kind: tokKeyName, text: name, pos: pos}, nil
}
