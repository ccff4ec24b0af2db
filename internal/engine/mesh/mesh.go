// Package mesh prepares decoded model meshes for GPU upload.
package mesh

import (
	"hash/fnv"

	"github.com/chewxy/math32"

	"github.com/Faultbox/tyviewer/internal/model"
)

// Stride is the number of floats per interleaved vertex:
// position(3) normal(3) texcoord(2) colour(4).
const Stride = 12

// Interleave packs mesh vertices into one float buffer laid out as Stride.
func Interleave(m *model.Mesh) []float32 {
	out := make([]float32, 0, len(m.Vertices)*Stride)
	for _, v := range m.Vertices {
		out = append(out, v.Position[:]...)
		out = append(out, v.Normal[:]...)
		out = append(out, v.TexCoord[:]...)
		out = append(out, v.Colour[:]...)
	}
	return out
}

// MaterialColor returns a stable tint for a material name. Meshes are drawn
// untextured, so the tint is what tells materials apart on screen.
func MaterialColor(name string) [3]float32 {
	if name == "" {
		return [3]float32{0.8, 0.8, 0.8}
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	hue := float32(h.Sum32()%360) / 360
	return hsv(hue, 0.45, 0.9)
}

func hsv(h, s, v float32) [3]float32 {
	i := math32.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch int(i) % 6 {
	case 0:
		return [3]float32{v, t, p}
	case 1:
		return [3]float32{q, v, p}
	case 2:
		return [3]float32{p, v, t}
	case 3:
		return [3]float32{p, q, v}
	case 4:
		return [3]float32{t, p, v}
	default:
		return [3]float32{v, p, q}
	}
}
