//go:build linux

package evdev

import goevdev "github.com/holoplot/go-evdev"

func codeName(c Code) (string, bool) {
	n, ok := goevdev.KEYToString[goevdev.EvCode(c)]
	return n, ok
}

func codeByName(name string) (Code, bool) {
	c, ok := goevdev.KEYFromString[name]
	return Code(c), ok
}
