// Package debug provides debug visualization utilities.
package debug

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/tyviewer/internal/model"
)

// BoxVertexCount is the number of line vertices in one box (12 edges x 2).
const BoxVertexCount = 24

// RingSegments is the number of line segments per collider ring.
const RingSegments = 24

// Overlay holds line lists, three floats per vertex, for the parts of a
// model that are not drawn as meshes.
type Overlay struct {
	Bounds    []float32 // per subobject boxes
	Colliders []float32 // three rings per sphere
	Bones     []float32 // axis crosses
}

// Empty reports whether there is nothing to draw.
func (o *Overlay) Empty() bool {
	return len(o.Bounds) == 0 && len(o.Colliders) == 0 && len(o.Bones) == 0
}

// NewOverlay builds the overlay for m. Bone crosses are sized relative to
// the model extent.
func NewOverlay(m *model.Model) *Overlay {
	o := &Overlay{}
	for _, b := range m.Bounds {
		var max [3]float32
		for k := range max {
			max[k] = b.Corner[k] + b.Size[k]
		}
		o.Bounds = append(o.Bounds, BoxLines(b.Corner, max)...)
	}
	for _, c := range m.Colliders {
		o.Colliders = append(o.Colliders, SphereLines(c.Position, c.Radius)...)
	}

	min, max := m.Extent()
	size := math32.Max(max[0]-min[0], math32.Max(max[1]-min[1], max[2]-min[2])) * 0.02
	if size <= 0 {
		size = 0.1
	}
	for _, b := range m.Bones {
		o.Bones = append(o.Bones, CrossLines(b.Position, size)...)
	}
	return o
}

// BoxLines returns line vertices for the edges of an axis-aligned box.
func BoxLines(min, max [3]float32) []float32 {
	minX, minY, minZ := min[0], min[1], min[2]
	maxX, maxY, maxZ := max[0], max[1], max[2]
	return []float32{
		// Bottom face
		minX, minY, minZ, maxX, minY, minZ,
		maxX, minY, minZ, maxX, minY, maxZ,
		maxX, minY, maxZ, minX, minY, maxZ,
		minX, minY, maxZ, minX, minY, minZ,
		// Top face
		minX, maxY, minZ, maxX, maxY, minZ,
		maxX, maxY, minZ, maxX, maxY, maxZ,
		maxX, maxY, maxZ, minX, maxY, maxZ,
		minX, maxY, maxZ, minX, maxY, minZ,
		// Vertical edges
		minX, minY, minZ, minX, maxY, minZ,
		maxX, minY, minZ, maxX, maxY, minZ,
		maxX, minY, maxZ, maxX, maxY, maxZ,
		minX, minY, maxZ, minX, maxY, maxZ,
	}
}

// SphereLines approximates a sphere with one ring in each axis plane.
func SphereLines(center [3]float32, radius float32) []float32 {
	out := make([]float32, 0, 3*RingSegments*2*3)
	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		for i := 0; i < RingSegments; i++ {
			for _, step := range []int{i, i + 1} {
				a := float32(step) / RingSegments * 2 * math32.Pi
				p := center
				p[u] += radius * math32.Cos(a)
				p[v] += radius * math32.Sin(a)
				out = append(out, p[:]...)
			}
		}
	}
	return out
}

// CrossLines returns three axis-aligned segments of length 2*size through p.
func CrossLines(p [3]float32, size float32) []float32 {
	out := make([]float32, 0, 18)
	for axis := 0; axis < 3; axis++ {
		a, b := p, p
		a[axis] -= size
		b[axis] += size
		out = append(out, a[:]...)
		out = append(out, b[:]...)
	}
	return out
}
