// Package picking provides ray casting and mesh picking utilities.
package picking

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/tyviewer/internal/model"
)

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3 // Normalized direction
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// ScreenToRay converts screen coordinates to a world-space ray.
// screenX, screenY are pixel coordinates, viewportW/H are viewport dimensions.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj mgl32.Mat4) Ray {
	ndcX := 2.0*screenX/viewportW - 1.0
	ndcY := 1.0 - 2.0*screenY/viewportH // Flip Y

	near := unproject(invViewProj, mgl32.Vec4{ndcX, ndcY, -1, 1})
	far := unproject(invViewProj, mgl32.Vec4{ndcX, ndcY, 1, 1})

	dir := far.Sub(near)
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	return Ray{Origin: near, Direction: dir}
}

func unproject(inv mgl32.Mat4, p mgl32.Vec4) mgl32.Vec3 {
	w := inv.Mul4x1(p)
	if w[3] != 0 {
		return w.Vec3().Mul(1 / w[3])
	}
	return w.Vec3()
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float32, hit bool) {
	tmin := float32(-math32.MaxFloat32)
	tmax := float32(math32.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		if r.Direction[axis] != 0 {
			t1 := (box.Min[axis] - r.Origin[axis]) / r.Direction[axis]
			t2 := (box.Max[axis] - r.Origin[axis]) / r.Direction[axis]
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			if t1 > tmin {
				tmin = t1
			}
			if t2 < tmax {
				tmax = t2
			}
		} else if r.Origin[axis] < box.Min[axis] || r.Origin[axis] > box.Max[axis] {
			return 0, false
		}
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle returns the distance along the ray to triangle abc.
// Both windings hit; rays parallel to the triangle miss.
func (r Ray) IntersectTriangle(a, b, c mgl32.Vec3) (t float32, hit bool) {
	const eps = 1e-7
	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Direction.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	inv := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := r.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t = e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}

// MeshBounds returns the box around a mesh's vertices.
func MeshBounds(m *model.Mesh) AABB {
	var box AABB
	for i, v := range m.Vertices {
		p := mgl32.Vec3(v.Position)
		if i == 0 {
			box.Min, box.Max = p, p
			continue
		}
		for k := 0; k < 3; k++ {
			box.Min[k] = math32.Min(box.Min[k], p[k])
			box.Max[k] = math32.Max(box.Max[k], p[k])
		}
	}
	return box
}

// PickMesh returns the index of the nearest enabled mesh of m hit by the ray.
func PickMesh(r Ray, m *model.Model) (index int, t float32, hit bool) {
	index = -1
	for i, mesh := range m.Meshes {
		if !mesh.Enabled || len(mesh.Indices) < 3 {
			continue
		}
		if _, ok := r.IntersectAABB(MeshBounds(mesh)); !ok {
			continue
		}
		for k := 0; k+2 < len(mesh.Indices); k += 3 {
			a := mgl32.Vec3(mesh.Vertices[mesh.Indices[k]].Position)
			b := mgl32.Vec3(mesh.Vertices[mesh.Indices[k+1]].Position)
			c := mgl32.Vec3(mesh.Vertices[mesh.Indices[k+2]].Position)
			if triT, ok := r.IntersectTriangle(a, b, c); ok && (!hit || triT < t) {
				index, t, hit = i, triT, true
			}
		}
	}
	return index, t, hit
}
