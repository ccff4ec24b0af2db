package picking

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/tyviewer/internal/model"
	"github.com/Faultbox/tyviewer/pkg/formats"
)

func TestScreenToRay_Center(t *testing.T) {
	eye := mgl32.Vec3{0, 0, 10}
	view := mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 100)

	r := ScreenToRay(50, 50, 100, 100, proj.Mul4(view).Inv())
	if !r.Direction.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-4) {
		t.Errorf("Direction = %v, want -Z", r.Direction)
	}
	if math32.Abs(r.Origin[0]) > 1e-4 || math32.Abs(r.Origin[1]) > 1e-4 {
		t.Errorf("Origin = %v, want on the view axis", r.Origin)
	}
}

func TestIntersectAABB(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}
	tests := []struct {
		name   string
		ray    Ray
		wantT  float32
		wantOK bool
	}{
		{"hit", Ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}}, 4, true},
		{"inside", Ray{mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}}, 1, true},
		{"miss", Ray{mgl32.Vec3{3, 0, 5}, mgl32.Vec3{0, 0, -1}}, 0, false},
		{"behind", Ray{mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1}}, 0, false},
		{"parallel outside", Ray{mgl32.Vec3{0, 2, 5}, mgl32.Vec3{0, 0, -1}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.ray.IntersectAABB(box)
			if ok != tt.wantOK || (ok && math32.Abs(got-tt.wantT) > 1e-5) {
				t.Errorf("IntersectAABB = %v, %v; want %v, %v", got, ok, tt.wantT, tt.wantOK)
			}
		})
	}
}

func TestIntersectTriangle(t *testing.T) {
	a, b, c := mgl32.Vec3{-1, -1, 0}, mgl32.Vec3{1, -1, 0}, mgl32.Vec3{0, 1, 0}
	down := Ray{mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, -1}}

	if got, ok := down.IntersectTriangle(a, b, c); !ok || math32.Abs(got-3) > 1e-5 {
		t.Errorf("front winding = %v, %v", got, ok)
	}
	if _, ok := down.IntersectTriangle(a, c, b); !ok {
		t.Error("back winding should hit")
	}
	side := Ray{mgl32.Vec3{5, 5, 3}, mgl32.Vec3{0, 0, -1}}
	if _, ok := side.IntersectTriangle(a, b, c); ok {
		t.Error("ray outside the triangle hit")
	}
	grazing := Ray{mgl32.Vec3{0, 0, 3}, mgl32.Vec3{1, 0, 0}}
	if _, ok := grazing.IntersectTriangle(a, b, c); ok {
		t.Error("parallel ray hit")
	}
}

func quadAt(z float32, enabled bool) *model.Mesh {
	return &model.Mesh{
		Vertices: []formats.Vertex{
			{Position: [3]float32{-1, -1, z}}, {Position: [3]float32{1, -1, z}},
			{Position: [3]float32{-1, 1, z}}, {Position: [3]float32{1, 1, z}},
		},
		Indices: []uint32{0, 2, 1, 1, 2, 3},
		Enabled: enabled,
	}
}

func TestPickMesh(t *testing.T) {
	m := &model.Model{Meshes: []*model.Mesh{
		quadAt(0, true),
		quadAt(2, true),
		quadAt(4, false),
	}}
	r := Ray{mgl32.Vec3{0.5, 0.5, 10}, mgl32.Vec3{0, 0, -1}}

	i, dist, ok := PickMesh(r, m)
	if !ok || i != 1 || math32.Abs(dist-8) > 1e-5 {
		t.Errorf("PickMesh = %d, %v, %v; want mesh 1 at 8", i, dist, ok)
	}

	m.Meshes[1].Enabled = false
	if i, _, _ := PickMesh(r, m); i != 0 {
		t.Errorf("with mesh 1 hidden picked %d, want 0", i)
	}

	miss := Ray{mgl32.Vec3{5, 5, 10}, mgl32.Vec3{0, 0, -1}}
	if i, _, ok := PickMesh(miss, m); ok || i != -1 {
		t.Errorf("miss returned %d, %v", i, ok)
	}
}

func TestMeshBounds(t *testing.T) {
	box := MeshBounds(quadAt(3, true))
	if box.Min != (mgl32.Vec3{-1, -1, 3}) || box.Max != (mgl32.Vec3{1, 1, 3}) {
		t.Errorf("MeshBounds = %v", box)
	}
}
