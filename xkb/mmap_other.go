//go:build !unix

package xkb

import "os"

func mapFile(f *os.File) ([]byte, func(), error) {
	return readFile(f)
}
