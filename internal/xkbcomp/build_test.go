package xkbcomp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Alia5/goxkb/keysym"
)

func levelsOf(names ...string) []levelInfo {
	out := make([]levelInfo, len(names))
	for i, n := range names {
		if n == "" {
			continue
		}
		out[i].syms = []keysym.Keysym{keysym.FromName(n, keysym.NoFlags)}
	}
	return out
}

func TestAutomaticType(t *testing.T) {
	tests := []struct {
		name   string
		levels []levelInfo
		want   string
	}{
		{name: "empty", levels: nil, want: typeOneLevel},
		{name: "one level", levels: levelsOf("Escape"), want: typeOneLevel},
		{name: "letter pair", levels: levelsOf("a", "A"), want: typeAlphabetic},
		{name: "digit and symbol", levels: levelsOf("1", "exclam"), want: typeTwoLevel},
		{name: "keypad", levels: levelsOf("KP_Home", "KP_7"), want: typeKeypad},
		{name: "upper first", levels: levelsOf("A", "a"), want: typeTwoLevel},
		{name: "four letters", levels: levelsOf("a", "A", "ssharp", "EuroSign"), want: "FOUR_LEVEL_SEMIALPHABETIC"},
		{name: "two letter pairs", levels: levelsOf("a", "A", "b", "B"), want: "FOUR_LEVEL_ALPHABETIC"},
		{name: "four keypad", levels: levelsOf("KP_Delete", "KP_Decimal", "KP_Separator", ""), want: "FOUR_LEVEL_KEYPAD"},
		{name: "three symbols", levels: levelsOf("1", "exclam", "onesuperior"), want: "FOUR_LEVEL"},
		{name: "too wide", levels: levelsOf("a", "b", "c", "d", "e"), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, automaticType(tt.levels))
		})
	}
}

func TestKeycodeOutOfRange(t *testing.T) {
	c := newCompiler(Options{})
	_, err := c.compileKeycodes(&section{kind: KindKeycodes, name: "k", decls: []decl{
		&keycodeDecl{name: "A", code: 38},
		&keycodeDecl{name: "B", code: 9000},
	}})
	assert.ErrorIs(t, err, ErrSemantic)
}
