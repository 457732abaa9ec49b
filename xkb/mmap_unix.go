//go:build unix

package xkb

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps f read-only. Pipes, empty files and files that cannot be
// mapped are read instead.
func mapFile(f *os.File) ([]byte, func(), error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 || int64(int(fi.Size())) != fi.Size() {
		return readFile(f)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return readFile(f)
	}
	return data, func() { _ = unix.Munmap(data) }, nil
}
