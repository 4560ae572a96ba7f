//go:build darwin

package sound

// NewSystemPlayer plays the built-in alert sounds with afplay.
func NewSystemPlayer() *Player {
	return &Player{Command: "afplay", Dir: "/System/Library/Sounds", Ext: ".aiff", Names: DefaultNames}
}
