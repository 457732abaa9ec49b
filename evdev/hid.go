package evdev

// HID keyboard modifier byte bits (boot protocol report, byte 0).
const (
	HIDModLeftCtrl   = 0x01
	HIDModLeftShift  = 0x02
	HIDModLeftAlt    = 0x04
	HIDModLeftGUI    = 0x08
	HIDModRightCtrl  = 0x10
	HIDModRightShift = 0x20
	HIDModRightAlt   = 0x40
	HIDModRightGUI   = 0x80
)

// hidModifiers lists the key behind each modifier bit, lowest bit first:
// KEY_LEFTCTRL, KEY_LEFTSHIFT, KEY_LEFTALT, KEY_LEFTMETA and their right
// hand counterparts.
var hidModifiers = [8]Code{29, 42, 56, 125, 97, 54, 100, 126}

// hidUsages maps HID Keyboard/Keypad page usages to key codes, following
// the kernel's usbkbd table.
var hidUsages = map[uint8]Code{
	0x04: 30,  // KEY_A
	0x05: 48,  // KEY_B
	0x06: 46,  // KEY_C
	0x07: 32,  // KEY_D
	0x08: 18,  // KEY_E
	0x09: 33,  // KEY_F
	0x0A: 34,  // KEY_G
	0x0B: 35,  // KEY_H
	0x0C: 23,  // KEY_I
	0x0D: 36,  // KEY_J
	0x0E: 37,  // KEY_K
	0x0F: 38,  // KEY_L
	0x10: 50,  // KEY_M
	0x11: 49,  // KEY_N
	0x12: 24,  // KEY_O
	0x13: 25,  // KEY_P
	0x14: 16,  // KEY_Q
	0x15: 19,  // KEY_R
	0x16: 31,  // KEY_S
	0x17: 20,  // KEY_T
	0x18: 22,  // KEY_U
	0x19: 47,  // KEY_V
	0x1A: 17,  // KEY_W
	0x1B: 45,  // KEY_X
	0x1C: 21,  // KEY_Y
	0x1D: 44,  // KEY_Z
	0x1E: 2,   // KEY_1
	0x1F: 3,   // KEY_2
	0x20: 4,   // KEY_3
	0x21: 5,   // KEY_4
	0x22: 6,   // KEY_5
	0x23: 7,   // KEY_6
	0x24: 8,   // KEY_7
	0x25: 9,   // KEY_8
	0x26: 10,  // KEY_9
	0x27: 11,  // KEY_0
	0x28: 28,  // KEY_ENTER
	0x29: 1,   // KEY_ESC
	0x2A: 14,  // KEY_BACKSPACE
	0x2B: 15,  // KEY_TAB
	0x2C: 57,  // KEY_SPACE
	0x2D: 12,  // KEY_MINUS
	0x2E: 13,  // KEY_EQUAL
	0x2F: 26,  // KEY_LEFTBRACE
	0x30: 27,  // KEY_RIGHTBRACE
	0x31: 43,  // KEY_BACKSLASH
	0x32: 43,  // KEY_BACKSLASH
	0x33: 39,  // KEY_SEMICOLON
	0x34: 40,  // KEY_APOSTROPHE
	0x35: 41,  // KEY_GRAVE
	0x36: 51,  // KEY_COMMA
	0x37: 52,  // KEY_DOT
	0x38: 53,  // KEY_SLASH
	0x39: 58,  // KEY_CAPSLOCK
	0x3A: 59,  // KEY_F1
	0x3B: 60,  // KEY_F2
	0x3C: 61,  // KEY_F3
	0x3D: 62,  // KEY_F4
	0x3E: 63,  // KEY_F5
	0x3F: 64,  // KEY_F6
	0x40: 65,  // KEY_F7
	0x41: 66,  // KEY_F8
	0x42: 67,  // KEY_F9
	0x43: 68,  // KEY_F10
	0x44: 87,  // KEY_F11
	0x45: 88,  // KEY_F12
	0x46: 99,  // KEY_SYSRQ
	0x47: 70,  // KEY_SCROLLLOCK
	0x48: 119, // KEY_PAUSE
	0x49: 110, // KEY_INSERT
	0x4A: 102, // KEY_HOME
	0x4B: 104, // KEY_PAGEUP
	0x4C: 111, // KEY_DELETE
	0x4D: 107, // KEY_END
	0x4E: 109, // KEY_PAGEDOWN
	0x4F: 106, // KEY_RIGHT
	0x50: 105, // KEY_LEFT
	0x51: 108, // KEY_DOWN
	0x52: 103, // KEY_UP
	0x53: 69,  // KEY_NUMLOCK
	0x54: 98,  // KEY_KPSLASH
	0x55: 55,  // KEY_KPASTERISK
	0x56: 74,  // KEY_KPMINUS
	0x57: 78,  // KEY_KPPLUS
	0x58: 96,  // KEY_KPENTER
	0x59: 79,  // KEY_KP1
	0x5A: 80,  // KEY_KP2
	0x5B: 81,  // KEY_KP3
	0x5C: 75,  // KEY_KP4
	0x5D: 76,  // KEY_KP5
	0x5E: 77,  // KEY_KP6
	0x5F: 71,  // KEY_KP7
	0x60: 72,  // KEY_KP8
	0x61: 73,  // KEY_KP9
	0x62: 82,  // KEY_KP0
	0x63: 83,  // KEY_KPDOT
	0x64: 86,  // KEY_102ND
	0x65: 127, // KEY_COMPOSE
	0x66: 116, // KEY_POWER
	0x67: 117, // KEY_KPEQUAL
	0x68: 183, // KEY_F13
	0x69: 184, // KEY_F14
	0x6A: 185, // KEY_F15
	0x6B: 186, // KEY_F16
	0x6C: 187, // KEY_F17
	0x6D: 188, // KEY_F18
	0x6E: 189, // KEY_F19
	0x6F: 190, // KEY_F20
	0x70: 191, // KEY_F21
	0x71: 192, // KEY_F22
	0x72: 193, // KEY_F23
	0x73: 194, // KEY_F24
	0x74: 134, // KEY_OPEN
	0x75: 138, // KEY_HELP
	0x76: 130, // KEY_PROPS
	0x77: 132, // KEY_FRONT
	0x78: 128, // KEY_STOP
	0x79: 129, // KEY_AGAIN
	0x7A: 131, // KEY_UNDO
	0x7B: 137, // KEY_CUT
	0x7C: 133, // KEY_COPY
	0x7D: 135, // KEY_PASTE
	0x7E: 136, // KEY_FIND
	0x7F: 113, // KEY_MUTE
	0x80: 115, // KEY_VOLUMEUP
	0x81: 114, // KEY_VOLUMEDOWN
	0x85: 121, // KEY_KPCOMMA
	0x87: 89,  // KEY_RO
	0x88: 93,  // KEY_KATAKANAHIRAGANA
	0x89: 124, // KEY_YEN
	0x8A: 92,  // KEY_HENKAN
	0x8B: 94,  // KEY_MUHENKAN
	0x8C: 95,  // KEY_KPJPCOMMA
	0x90: 122, // KEY_HANGEUL
	0x91: 123, // KEY_HANJA
	0x92: 90,  // KEY_KATAKANA
	0x93: 91,  // KEY_HIRAGANA
	0x94: 85,  // KEY_ZENKAKUHANKAKU
	0xB6: 179, // KEY_KPLEFTPAREN
	0xB7: 180, // KEY_KPRIGHTPAREN
	0xE0: 29,  // KEY_LEFTCTRL
	0xE1: 42,  // KEY_LEFTSHIFT
	0xE2: 56,  // KEY_LEFTALT
	0xE3: 125, // KEY_LEFTMETA
	0xE4: 97,  // KEY_RIGHTCTRL
	0xE5: 54,  // KEY_RIGHTSHIFT
	0xE6: 100, // KEY_RIGHTALT
	0xE7: 126, // KEY_RIGHTMETA
	0xE8: 164, // KEY_PLAYPAUSE
	0xE9: 166, // KEY_STOPCD
	0xEA: 165, // KEY_PREVIOUSSONG
	0xEB: 163, // KEY_NEXTSONG
}

// FromHID converts a HID keyboard usage to a key code.
func FromHID(usage uint8) (Code, bool) {
	c, ok := hidUsages[usage]
	return c, ok
}

// HIDModifierKeys returns the modifier keys held in a HID modifier byte,
// in bit order.
func HIDModifierKeys(mods uint8) []Code {
	var out []Code
	for i, c := range hidModifiers {
		if mods&(1<<i) != 0 {
			out = append(out, c)
		}
	}
	return out
}
