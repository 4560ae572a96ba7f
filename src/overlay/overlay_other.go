//go:build !windows

package overlay

import (
	"context"

	"screensnap/src/messages"
	"screensnap/src/selection"
)

type unsupportedSelector struct{}

func newPlatformSelector(messages.Poster) Selector { return unsupportedSelector{} }

func (unsupportedSelector) Begin(context.Context, func(selection.Outcome)) error {
	return ErrUnsupported
}
