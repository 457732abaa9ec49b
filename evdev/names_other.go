//go:build !linux

package evdev

// The kernel key names come with the Linux input library; other systems
// only take numeric codes.

func codeName(Code) (string, bool) { return "", false }

func codeByName(string) (Code, bool) { return 0, false }
