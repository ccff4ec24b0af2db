package mesh

import (
	"testing"

	"github.com/Faultbox/tyviewer/internal/model"
	"github.com/Faultbox/tyviewer/pkg/formats"
)

func TestInterleave(t *testing.T) {
	m := &model.Mesh{Vertices: []formats.Vertex{
		{
			Position: [3]float32{1, 2, 3},
			Normal:   [3]float32{0, 1, 0},
			TexCoord: [2]float32{0.25, 0.75},
			Colour:   [4]float32{1, 0.5, 0, 1},
		},
		{Position: [3]float32{4, 5, 6}},
	}}

	got := Interleave(m)
	if len(got) != 2*Stride {
		t.Fatalf("len = %d, want %d", len(got), 2*Stride)
	}
	want := []float32{1, 2, 3, 0, 1, 0, 0.25, 0.75, 1, 0.5, 0, 1}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("got[%d] = %v, want %v", i, got[i], w)
		}
	}
	if got[Stride] != 4 || got[Stride+2] != 6 {
		t.Errorf("second vertex misplaced: %v", got[Stride:])
	}
}

func TestMaterialColor(t *testing.T) {
	a := MaterialColor("A048_Grass")
	if a != MaterialColor("A048_Grass") {
		t.Error("colour is not stable")
	}
	if a == MaterialColor("CM_wall") && a == MaterialColor("ty_body") {
		t.Error("different materials share one colour")
	}
	for _, name := range []string{"", "A048_Grass", "ty_body"} {
		c := MaterialColor(name)
		for k, v := range c {
			if v < 0 || v > 1 {
				t.Errorf("%q channel %d = %v", name, k, v)
			}
		}
	}
}

func TestHSV(t *testing.T) {
	tests := []struct {
		h    float32
		want [3]float32
	}{
		{0, [3]float32{1, 0, 0}},
		{1.0 / 3, [3]float32{0, 1, 0}},
		{2.0 / 3, [3]float32{0, 0, 1}},
	}
	for _, tt := range tests {
		got := hsv(tt.h, 1, 1)
		for k := range got {
			if d := got[k] - tt.want[k]; d > 1e-5 || d < -1e-5 {
				t.Errorf("hsv(%v) = %v, want %v", tt.h, got, tt.want)
				break
			}
		}
	}
}
