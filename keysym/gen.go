//go:build ignore

// gen reads the X11 keysym headers and writes the name and Unicode tables
// used by package keysym.
//
//	go run gen.go -o table_gen.go /usr/include/X11/keysymdef.h /usr/include/X11/XF86keysym.h
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Lines look like
//
//	#define XK_Greek_alpha  0x07e1  /* U+03B1 GREEK SMALL LETTER ALPHA */
//	#define XF86XK_Eject    _EVDEVK(0x0A2)
//
// A code point in parentheses is only an approximation and is skipped.
var defineRe = regexp.MustCompile(
	`^#define\s+(XF86XK_|XK_)([A-Za-z0-9_]+)\s+(?:0x([0-9A-Fa-f]+)|_EVDEVK\(0x([0-9A-Fa-f]+)\))\s*(?:/\*\s*(\(?)U\+([0-9A-Fa-f]{4,6}))?`)

const evdevBase = 0x10081000

type define struct {
	name  string
	value uint32
	ucs   rune
}

func main() {
	out := flag.String("o", "table_gen.go", "output file")
	flag.Parse()
	if flag.NArg() == 0 {
		slog.Error("no keysym headers given")
		os.Exit(2)
	}

	var defs []define
	var sources []string
	for _, path := range flag.Args() {
		d, err := parseHeader(path)
		if err != nil {
			slog.Error("parse header", "path", path, "error", err)
			os.Exit(1)
		}
		defs = append(defs, d...)
		sources = append(sources, filepath.Base(path))
	}

	src, err := render(defs, sources)
	if err != nil {
		slog.Error("render tables", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, src, 0o644); err != nil {
		slog.Error("write tables", "path", *out, "error", err)
		os.Exit(1)
	}
	slog.Info("Generated keysym tables", "names", len(defs), "output", *out)
}

func parseHeader(path string) ([]define, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var defs []define
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := defineRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		d := define{name: m[2]}
		if m[1] == "XF86XK_" {
			d.name = "XF86" + d.name
		}
		if m[3] != "" {
			v, err := strconv.ParseUint(m[3], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.name, err)
			}
			d.value = uint32(v)
		} else {
			v, err := strconv.ParseUint(m[4], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.name, err)
			}
			d.value = evdevBase + uint32(v)
		}
		if m[6] != "" && m[5] == "" {
			v, err := strconv.ParseUint(m[6], 16, 32)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", d.name, err)
			}
			d.ucs = rune(v)
		}
		defs = append(defs, d)
	}
	return defs, sc.Err()
}

// Only legacy keysyms need a code point table: Latin-1, the function keys
// and the Unicode keysym range convert arithmetically.
func needsTable(v uint32) bool {
	return v >= 0x100 && v < 0xfe00
}

func render(defs []define, sources []string) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// Code generated by gen.go from %s; DO NOT EDIT.\n\n", strings.Join(sources, ", "))
	b.WriteString("package keysym\n\n")

	b.WriteString("var namedEntries = [...]entry{\n")
	for _, d := range defs {
		fmt.Fprintf(&b, "\t{%q, 0x%04x},\n", d.name, d.value)
	}
	b.WriteString("}\n\n")

	seen := make(map[uint32]bool)
	var ucs []define
	for _, d := range defs {
		if d.ucs == 0 || !needsTable(d.value) || seen[d.value] {
			continue
		}
		seen[d.value] = true
		ucs = append(ucs, d)
	}
	slices.SortFunc(ucs, func(a, b define) int { return int(a.value) - int(b.value) })

	b.WriteString("var ucsEntries = [...]ucsEntry{\n")
	for _, d := range ucs {
		fmt.Fprintf(&b, "\t{0x%04x, 0x%04x},\n", d.value, d.ucs)
	}
	b.WriteString("}\n")

	return format.Source(b.Bytes())
}
