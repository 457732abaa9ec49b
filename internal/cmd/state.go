package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Alia5/goxkb/evdev"
	"github.com/Alia5/goxkb/keymap"
	"github.com/Alia5/goxkb/xkb"
)

// State runs key events read from stdin through a keyboard state and
// prints what each event produces.
type State struct {
	KeymapSource `embed:""`
}

// Run is called by Kong when the state command is executed.
func (s *State) Run(logger *slog.Logger) error {
	prompt := term.IsTerminal(int(os.Stdin.Fd()))
	if prompt {
		fmt.Fprintln(os.Stderr, `Enter "down <key>", "up <key>" or just "<key>" to tap. Keys are KEY_ names, evdev numbers, xkb:<keycode> or hid:<usage>.`)
	}
	return s.Execute(logger, os.Stdin, os.Stdout, prompt)
}

// Execute reads events from in until EOF. A line that cannot be parsed is
// reported and skipped.
func (s *State) Execute(logger *slog.Logger, in io.Reader, out io.Writer, prompt bool) error {
	xctx, err := s.NewContext(logger)
	if err != nil {
		return err
	}
	km, err := s.Load(xctx)
	if err != nil {
		return err
	}
	st := xkb.NewState(km)
	km.Unref()
	defer st.Unref()

	sc := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(out, "> ")
		}
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kc, dirs, err := parseEvent(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		for _, dir := range dirs {
			fmt.Fprintln(out, describeEvent(st, kc, dir))
		}
	}
	if prompt {
		fmt.Fprintln(out)
	}
	return sc.Err()
}

// parseEvent accepts "<dir> <key>", "<key> <dir>" or "<key>", the last
// meaning a press followed by a release.
func parseEvent(line string) (keymap.Keycode, []xkb.KeyDirection, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 1:
		kc, err := evdev.Parse(fields[0])
		return kc, []xkb.KeyDirection{xkb.KeyDown, xkb.KeyUp}, err
	case 2:
		if dir, ok := xkb.ParseKeyDirection(fields[0]); ok {
			kc, err := evdev.Parse(fields[1])
			return kc, []xkb.KeyDirection{dir}, err
		}
		if dir, ok := xkb.ParseKeyDirection(fields[1]); ok {
			kc, err := evdev.Parse(fields[0])
			return kc, []xkb.KeyDirection{dir}, err
		}
	}
	return keymap.KeycodeInvalid, nil, fmt.Errorf("cannot parse %q", line)
}

// describeEvent applies one event and renders it. Keysyms and text are
// taken before the update, as a client would see them.
func describeEvent(st *xkb.State, kc keymap.Keycode, dir xkb.KeyDirection) string {
	km := st.Keymap()
	name, err := km.KeyName(kc)
	if err != nil {
		return fmt.Sprintf("%d %s: not in keymap", kc, dir)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d <%s> %s", kc, name, dir)
	if dir == xkb.KeyDown {
		fmt.Fprintf(&b, " keysyms=[%s]", levelText(st.KeySyms(kc)))
		if text, err := st.KeyUTF8(kc); err == nil && text != "" {
			fmt.Fprintf(&b, " utf8=%q", text)
		}
	}

	changed := st.UpdateKey(kc, dir)
	if changed != 0 {
		fmt.Fprintf(&b, " changed=%s", changed)
	}

	var mods []string
	for idx := range km.NumMods() {
		if on, _ := st.ModIndexIsActive(idx, xkb.ModsEffective); on {
			n, _ := km.ModName(idx)
			mods = append(mods, n)
		}
	}
	layout := st.SerializeLayout(xkb.LayoutEffective)
	layoutName, _ := km.LayoutName(layout)
	var leds []string
	for idx := range km.NumLEDs() {
		if on, _ := st.LEDIndexIsActive(idx); on {
			n, _ := km.LEDName(idx)
			leds = append(leds, n)
		}
	}
	fmt.Fprintf(&b, " mods=[%s] layout=%d(%s) leds=[%s]",
		strings.Join(mods, ","), layout, layoutName, strings.Join(leds, ","))
	return b.String()
}
