package hotkey

import "strconv"

// rawcodes returns the hook rawcodes for key on goos. Modifiers carry both
// the left and right variants.
func rawcodes(goos, key string) []uint16 {
	if goos == "darwin" {
		return darwinKeycodes[key]
	}
	return windowsKeycodes[key]
}

// darwinKeycodes are macOS virtual keycodes (kVK_*).
var darwinKeycodes = map[string][]uint16{
	"ctrl":  {59, 62},
	"alt":   {58, 61},
	"shift": {56, 60},
	"cmd":   {55, 54},

	"a": {0}, "s": {1}, "d": {2}, "f": {3}, "h": {4}, "g": {5}, "z": {6}, "x": {7},
	"c": {8}, "v": {9}, "b": {11}, "q": {12}, "w": {13}, "e": {14}, "r": {15},
	"y": {16}, "t": {17}, "o": {31}, "u": {32}, "i": {34}, "p": {35}, "l": {37},
	"j": {38}, "k": {40}, "n": {45}, "m": {46},

	"1": {18}, "2": {19}, "3": {20}, "4": {21}, "5": {23}, "6": {22}, "7": {26},
	"8": {28}, "9": {25}, "0": {29},

	"f1": {122}, "f2": {120}, "f3": {99}, "f4": {118}, "f5": {96}, "f6": {97},
	"f7": {98}, "f8": {100}, "f9": {101}, "f10": {109}, "f11": {103}, "f12": {111},
	"f13": {105}, "f14": {107}, "f15": {113}, "f16": {106}, "f17": {64},
	"f18": {79}, "f19": {80}, "f20": {90},

	"space":     {49},
	"enter":     {36},
	"return":    {36},
	"esc":       {53},
	"escape":    {53},
	"tab":       {48},
	"backspace": {51},
	"delete":    {117},
	"home":      {115},
	"end":       {119},
	"pageup":    {116},
	"pagedown":  {121},
	"left":      {123},
	"right":     {124},
	"down":      {125},
	"up":        {126},
}

// windowsKeycodes are Windows virtual key codes (VK_*).
var windowsKeycodes = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"insert":    {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pagedown":  {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},
}

func init() {
	// Letters are 0x41-0x5A, digits 0x30-0x39, F1-F24 0x70-0x87.
	for c := 'a'; c <= 'z'; c++ {
		windowsKeycodes[string(c)] = []uint16{uint16(65 + c - 'a')}
	}
	for c := '0'; c <= '9'; c++ {
		windowsKeycodes[string(c)] = []uint16{uint16(48 + c - '0')}
	}
	for i := 1; i <= 24; i++ {
		windowsKeycodes["f"+strconv.Itoa(i)] = []uint16{uint16(111 + i)}
	}
}
