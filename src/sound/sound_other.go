//go:build !darwin

package sound

// NewSystemPlayer returns a player with no sound assets; Play reports ErrNoSound.
func NewSystemPlayer() *Player {
	return &Player{Names: DefaultNames}
}
