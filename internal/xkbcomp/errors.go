package xkbcomp

import (
	"errors"
	"fmt"
)

var (
	ErrSyntax          = errors.New("syntax error")
	ErrIncludeNotFound = errors.New("include not found")
	ErrIncludeDepth    = errors.New("include depth exceeded")
	ErrNoSection       = errors.New("no matching section")
	ErrSemantic        = errors.New("invalid keymap")
)

// Pos is a 1-based line and column in a source file.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Error is a compiler diagnostic tied to a source location.
type Error struct {
	File string
	Pos  Pos
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	file := e.File
	if file == "" {
		file = "(input)"
	}
	return fmt.Sprintf("%s:%s: %s", file, e.Pos, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(kind error, file string, pos Pos, format string, args ...any) *Error {
	return &Error{File: file, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: kind}
}
