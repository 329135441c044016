package particle

import (
	"errors"
	"fmt"
)

// ErrUnknownRenderType is returned for a RenderType outside the defined set.
var ErrUnknownRenderType = errors.New("particle: unknown render type")

// RenderType selects how a particle system is composited.
type RenderType uint8

const (
	RenderAlpha RenderType = iota
	RenderAlphaUnlit
	RenderAdditive

	renderTypeCount
)

// RenderTypes lists every render type in draw order.
var RenderTypes = [...]RenderType{RenderAlpha, RenderAlphaUnlit, RenderAdditive}

func (r RenderType) String() string {
	switch r {
	case RenderAlpha:
		return "alpha"
	case RenderAlphaUnlit:
		return "alpha-unlit"
	case RenderAdditive:
		return "additive"
	}
	return fmt.Sprintf("RenderType(%d)", uint8(r))
}

// Validate returns ErrUnknownRenderType for undefined values.
func (r RenderType) Validate() error {
	if r >= renderTypeCount {
		return fmt.Errorf("%w: %d", ErrUnknownRenderType, uint8(r))
	}
	return nil
}

// ParseRenderType maps the names returned by String back to render types.
func ParseRenderType(s string) (RenderType, error) {
	for _, r := range RenderTypes {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRenderType, s)
}
