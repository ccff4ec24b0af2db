// Package model assembles decoded TY model files into renderable meshes.
package model

import (
	"errors"
	"fmt"

	"github.com/Faultbox/tyviewer/pkg/formats"
)

// ErrInvalidMesh is returned by Validate when an index list is malformed.
var ErrInvalidMesh = errors.New("invalid mesh")

// Generation identifies which game a model was decoded for.
type Generation int

const (
	// TY1 models embed their geometry in the MDL file.
	TY1 Generation = iota + 1
	// TY2 models keep geometry in a companion MDG file.
	TY2
)

func (g Generation) String() string {
	switch g {
	case TY1:
		return "TY1"
	case TY2:
		return "TY2"
	default:
		return fmt.Sprintf("Generation(%d)", int(g))
	}
}

// Mesh is an indexed triangle list with one material.
type Mesh struct {
	Vertices []formats.Vertex
	Indices  []uint32
	Material string
	Enabled  bool

	// Lookup table slot for TY2 meshes, -1 otherwise.
	TextureIndex   int
	ComponentIndex int
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Bounds is an axis-aligned box given by its corner and size.
type Bounds struct {
	Corner [3]float32
	Size   [3]float32
}

// Model is a fully decoded model. It owns its meshes.
type Model struct {
	Name       string
	Generation Generation
	Format     formats.MDGFormat // zero for TY1 models

	Meshes []*Mesh

	BoundsCorner [3]float32
	BoundsSize   [3]float32

	Colliders []formats.Collider
	Bounds    []Bounds // per subobject
	Bones     []formats.Bone
}

// Validate checks that every index refers to a vertex of its own mesh and
// that index lists hold whole triangles.
func (m *Model) Validate() error {
	for i, mesh := range m.Meshes {
		if len(mesh.Indices)%3 != 0 {
			return fmt.Errorf("%w: mesh %d has %d indices", ErrInvalidMesh, i, len(mesh.Indices))
		}
		for _, idx := range mesh.Indices {
			if int(idx) >= len(mesh.Vertices) {
				return fmt.Errorf("%w: mesh %d index %d out of range (%d vertices)",
					ErrInvalidMesh, i, idx, len(mesh.Vertices))
			}
		}
	}
	return nil
}

// VertexCount returns the vertex total over all meshes.
func (m *Model) VertexCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		n += len(mesh.Vertices)
	}
	return n
}

// TriangleCount returns the triangle total over all meshes.
func (m *Model) TriangleCount() int {
	n := 0
	for _, mesh := range m.Meshes {
		n += mesh.TriangleCount()
	}
	return n
}

// Materials returns the distinct non-empty material names in mesh order.
func (m *Model) Materials() []string {
	var out []string
	seen := make(map[string]bool)
	for _, mesh := range m.Meshes {
		if mesh.Material == "" || seen[mesh.Material] {
			continue
		}
		seen[mesh.Material] = true
		out = append(out, mesh.Material)
	}
	return out
}

// SetEnabled toggles mesh i. It reports false when i is out of range.
func (m *Model) SetEnabled(i int, enabled bool) bool {
	if i < 0 || i >= len(m.Meshes) {
		return false
	}
	m.Meshes[i].Enabled = enabled
	return true
}

// Extent returns the axis-aligned box around every vertex. When the model has
// no vertices it falls back to the header bounds.
func (m *Model) Extent() (min, max [3]float32) {
	first := true
	for _, mesh := range m.Meshes {
		for _, v := range mesh.Vertices {
			if first {
				min, max = v.Position, v.Position
				first = false
				continue
			}
			for k := 0; k < 3; k++ {
				if v.Position[k] < min[k] {
					min[k] = v.Position[k]
				}
				if v.Position[k] > max[k] {
					max[k] = v.Position[k]
				}
			}
		}
	}
	if first {
		min = m.BoundsCorner
		for k := 0; k < 3; k++ {
			max[k] = m.BoundsCorner[k] + m.BoundsSize[k]
		}
	}
	return min, max
}
