package mapedit

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Vertex is a corner point of the planar subdivision. Coordinates are
// integers and within one map there is at most one vertex per coordinate
// pair.
type Vertex struct {
	X, Y int

	// Incident lines in insertion order. Non-owning back-references; the
	// map owns all geometry.
	lines []*Line
}

func vertexKey(x, y int) string {
	return fmt.Sprintf("%d,%d", x, y)
}

// Key returns the stable "x,y" identity key of the vertex.
func (v *Vertex) Key() string {
	return vertexKey(v.X, v.Y)
}

// Position returns the vertex position as a vector.
func (v *Vertex) Position() mgl64.Vec2 {
	return mgl64.Vec2{float64(v.X), float64(v.Y)}
}

// Bounds returns the degenerate point bounds of the vertex.
func (v *Vertex) Bounds() AABB {
	p := v.Position()
	return AABB{Min: p, Max: p}
}

// Lines returns a snapshot of the incident lines, safe to iterate while the
// incidence list is being mutated.
func (v *Vertex) Lines() []*Line {
	return append([]*Line(nil), v.lines...)
}

// Degree returns the number of incident lines.
func (v *Vertex) Degree() int {
	return len(v.lines)
}

func (v *Vertex) attachLine(l *Line) {
	for _, existing := range v.lines {
		if existing == l {
			panic(fmt.Sprintf("line %s already attached to vertex %s", l.Key(), v.Key()))
		}
	}
	v.lines = append(v.lines, l)
}

func (v *Vertex) detachLine(l *Line) {
	for i, existing := range v.lines {
		if existing == l {
			v.lines = append(v.lines[:i], v.lines[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("line %s missing from vertex %s incidence list", l.Key(), v.Key()))
}
