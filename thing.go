package mapedit

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Thing is a point entity (player start, monster, pickup). Things are
// independent of the line/sector subdivision.
type Thing struct {
	X, Y, Z int
	Type    int
	Angle   int
}

// Position returns the 2D position of the thing.
func (t *Thing) Position() mgl64.Vec2 {
	return mgl64.Vec2{float64(t.X), float64(t.Y)}
}

// Bounds returns the degenerate point bounds of the thing.
func (t *Thing) Bounds() AABB {
	p := t.Position()
	return AABB{Min: p, Max: p}
}
