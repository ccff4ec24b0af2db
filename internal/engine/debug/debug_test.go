package debug

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tyviewer/internal/model"
	"github.com/Faultbox/tyviewer/pkg/formats"
)

func TestBoxLines(t *testing.T) {
	lines := BoxLines([3]float32{0, 0, 0}, [3]float32{1, 2, 3})
	if len(lines) != BoxVertexCount*3 {
		t.Fatalf("len = %d, want %d", len(lines), BoxVertexCount*3)
	}
	for i := 0; i < len(lines); i += 3 {
		x, y, z := lines[i], lines[i+1], lines[i+2]
		if (x != 0 && x != 1) || (y != 0 && y != 2) || (z != 0 && z != 3) {
			t.Errorf("vertex %d = (%v, %v, %v) is not a box corner", i/3, x, y, z)
		}
	}
}

func TestSphereLines(t *testing.T) {
	center := [3]float32{1, 2, 3}
	lines := SphereLines(center, 2)
	if len(lines) != 3*RingSegments*2*3 {
		t.Fatalf("len = %d", len(lines))
	}
	for i := 0; i < len(lines); i += 3 {
		dx, dy, dz := lines[i]-center[0], lines[i+1]-center[1], lines[i+2]-center[2]
		if r := math32.Sqrt(dx*dx + dy*dy + dz*dz); math32.Abs(r-2) > 1e-4 {
			t.Fatalf("vertex %d at distance %v, want 2", i/3, r)
		}
	}
}

func TestCrossLines(t *testing.T) {
	lines := CrossLines([3]float32{5, 5, 5}, 1)
	want := []float32{4, 5, 5, 6, 5, 5, 5, 4, 5, 5, 6, 5, 5, 5, 4, 5, 5, 6}
	if len(lines) != len(want) {
		t.Fatalf("len = %d", len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %v, want %v", i, lines[i], want[i])
		}
	}
}

func TestNewOverlay(t *testing.T) {
	m := &model.Model{
		Meshes: []*model.Mesh{{Vertices: []formats.Vertex{
			{Position: [3]float32{0, 0, 0}}, {Position: [3]float32{10, 10, 10}},
		}}},
		Bounds:    []model.Bounds{{Size: [3]float32{1, 1, 1}}, {Corner: [3]float32{2, 2, 2}, Size: [3]float32{1, 1, 1}}},
		Colliders: []formats.Collider{{Radius: 1}},
		Bones:     []formats.Bone{{}, {}, {}},
	}
	o := NewOverlay(m)
	if got := len(o.Bounds) / 3; got != 2*BoxVertexCount {
		t.Errorf("bounds vertices = %d", got)
	}
	if got := len(o.Colliders) / 3; got != 3*RingSegments*2 {
		t.Errorf("collider vertices = %d", got)
	}
	if got := len(o.Bones) / 3; got != 3*6 {
		t.Errorf("bone vertices = %d", got)
	}
	// Cross size is 2% of the largest extent.
	if math32.Abs(o.Bones[0]+0.2) > 1e-5 {
		t.Errorf("bone cross starts at %v, want -0.2", o.Bones[0])
	}
	if o.Empty() {
		t.Error("overlay should not be empty")
	}
	if !NewOverlay(&model.Model{}).Empty() {
		t.Error("overlay of an empty model should be empty")
	}
}

func TestScreenshotCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	sc := NewScreenshotCapture(dir, "quad")
	sc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }

	// 2x2 image, bottom row red, top row blue in GL order.
	pixels := []byte{
		255, 0, 0, 255, 255, 0, 0, 255,
		0, 0, 255, 255, 0, 0, 255, 255,
	}
	path, err := sc.CaptureFromPixels(pixels, 2, 2)
	if err != nil {
		t.Fatalf("CaptureFromPixels: %v", err)
	}
	if want := filepath.Join(dir, "quad_2024-05-01_12-30-00.000.png"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); b == 0 || r != 0 {
		t.Error("top row should be blue after the flip")
	}
}

func TestScreenshotCapture_SizeMismatch(t *testing.T) {
	sc := NewScreenshotCapture(t.TempDir(), "x")
	if _, err := sc.CaptureFromPixels(make([]byte, 10), 2, 2); err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Errorf("err = %v", err)
	}
}
