package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Alia5/goxkb/keysym"
)

// Keysym looks up keysyms by name, value or character.
type Keysym struct {
	Keysyms         []string `arg:"" name:"keysym" help:"Keysym name (a, U+20AC), value (0x61, 97) or a single character"`
	CaseInsensitive bool     `help:"Match names case insensitively" short:"i"`
}

// Run is called by Kong when the keysym command is executed.
func (k *Keysym) Run() error {
	return k.Execute(os.Stdout)
}

// Execute prints value, name and UTF-8 text of each keysym. Unknown inputs
// are reported on their line and make the command fail at the end.
func (k *Keysym) Execute(stdout io.Writer) error {
	flags := keysym.NoFlags
	if k.CaseInsensitive {
		flags = keysym.CaseInsensitive
	}
	var unknown []string
	for _, arg := range k.Keysyms {
		ks, ok := ParseKeysym(arg, flags)
		if !ok {
			fmt.Fprintf(stdout, "%s: unknown keysym\n", arg)
			unknown = append(unknown, arg)
			continue
		}
		fmt.Fprintf(stdout, "0x%08x %s %q\n", uint32(ks), ks, ks.UTF8())
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown keysyms: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// ParseKeysym reads a keysym name, a decimal value or a single character.
// Names win over characters, so "a" is the keysym named a.
func ParseKeysym(s string, flags keysym.Flags) (keysym.Keysym, bool) {
	if ks := keysym.FromName(s, flags); ks != keysym.NoSymbol {
		return ks, true
	}
	if s == "NoSymbol" {
		return keysym.NoSymbol, true
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return keysym.Keysym(n), true
	}
	if r, size := utf8.DecodeRuneInString(s); size == len(s) && r != utf8.RuneError {
		if ks := keysym.FromRune(r); ks != keysym.NoSymbol {
			return ks, true
		}
	}
	return keysym.NoSymbol, false
}
