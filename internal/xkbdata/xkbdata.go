// Package xkbdata embeds the builtin XKB data set: the keycodes, types,
// compat and symbols files and the rules tables used when no include path
// provides them.
package xkbdata

import (
	"embed"
	"io/fs"
)

//go:embed keycodes types compat symbols rules
var files embed.FS

// FS returns the builtin data laid out as <kind>/<file>.
func FS() fs.FS { return files }
