package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neuroglm/physioreport/pkg/errors"
)

// Position is the crosshair position spec for a rendered overlay: either the
// global statistical maximum located by the renderer, or an explicit world
// coordinate in mm.
type Position struct {
	max   bool
	coord [3]float64
}

// MaxPosition returns the spec that follows the global statistic maximum.
func MaxPosition() Position {
	return Position{max: true}
}

// At returns an explicit world-coordinate position spec.
func At(x, y, z float64) Position {
	return Position{coord: [3]float64{x, y, z}}
}

// ParsePosition parses a position spec string: the literal "max", or a
// comma-separated 3-D world coordinate such as "0,-15,-32". Anything else
// is a configuration error; there is deliberately no silent default.
func ParsePosition(s string) (Position, error) {
	trimmed := strings.TrimSpace(s)
	if strings.EqualFold(trimmed, "max") {
		return MaxPosition(), nil
	}
	parts := strings.Split(trimmed, ",")
	if len(parts) != 3 {
		return Position{}, errors.New(errors.ErrCodeInvalidPosition,
			"invalid crosshair position %q (must be 'max' or 'x,y,z')", s)
	}
	var coord [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Position{}, errors.New(errors.ErrCodeInvalidPosition,
				"invalid crosshair coordinate %q in %q", p, s)
		}
		coord[i] = v
	}
	return Position{coord: coord}, nil
}

// IsMax reports whether the spec follows the statistic maximum.
func (p Position) IsMax() bool {
	return p.max
}

// String returns the canonical spec string.
func (p Position) String() string {
	if p.max {
		return "max"
	}
	return fmt.Sprintf("%g,%g,%g", p.coord[0], p.coord[1], p.coord[2])
}

// ResolveCrosshair decides the display coordinate for a rendered overlay:
// the extremum located by the renderer when the spec is "max", otherwise
// the explicit coordinate unchanged.
func ResolveCrosshair(p Position, res *RenderResult) [3]float64 {
	if p.max {
		return res.Extremum
	}
	return p.coord
}
