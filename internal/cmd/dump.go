package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"

	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/keysym"
)

// Dump prints the key table of a keymap: per key its keycode, name and the
// keysyms of every level of every layout.
type Dump struct {
	KeymapSource `embed:""`

	Raw bool `help:"Dump the compiled keymap structure instead of the key table"`
}

// Run is called by Kong when the dump command is executed.
func (d *Dump) Run(logger *slog.Logger) error {
	return d.Execute(logger, os.Stdout)
}

func (d *Dump) Execute(logger *slog.Logger, stdout io.Writer) error {
	xctx, err := d.NewContext(logger)
	if err != nil {
		return err
	}
	km, err := d.Load(xctx)
	if err != nil {
		return err
	}
	defer km.Unref()

	if d.Raw {
		cfg := spew.ConfigState{Indent: "  ", DisableMethods: true, SortKeys: true}
		cfg.Fdump(stdout, km)
		return nil
	}
	return WriteKeyTable(stdout, km)
}

// WriteKeyTable writes one row per key. Levels are separated by spaces and
// layouts by " | "; a level with several keysyms shows them in braces.
func WriteKeyTable(w io.Writer, km *keymap.Keymap) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEYCODE\tNAME\tSYMBOLS")
	for kc := range km.Keys() {
		name, err := km.KeyName(kc)
		if err != nil {
			return err
		}
		var layouts []string
		for layout := range km.NumLayoutsForKey(kc) {
			var levels []string
			for level := range km.NumLevelsForKey(kc, layout) {
				syms, err := km.KeySymsByLevel(kc, layout, level)
				if err != nil {
					return err
				}
				levels = append(levels, levelText(syms))
			}
			layouts = append(layouts, strings.Join(levels, " "))
		}
		fmt.Fprintf(tw, "%d\t<%s>\t%s\n", kc, name, strings.Join(layouts, " | "))
	}
	return tw.Flush()
}

func levelText(syms []keysym.Keysym) string {
	switch len(syms) {
	case 0:
		return "NoSymbol"
	case 1:
		return syms[0].String()
	}
	names := make([]string, len(syms))
	for i, ks := range syms {
		names[i] = ks.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}
