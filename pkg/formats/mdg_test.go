package formats

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Faultbox/tyviewer/pkg/formats/formatstest"
)

// ps2Fixture builds a PS2 MDG with a two-mesh chain in slot (0, 0).
func ps2Fixture(t *testing.T, loop bool) (mdg, mdl []byte) {
	t.Helper()
	g := formatstest.NewMDG()

	a := g.AddPS2Mesh(formatstest.PS2Mesh{
		AnimNodeList: 0xFFFF,
		Strips: []formatstest.PS2Strip{
			{
				Format:    formatstest.PS2NormalsUV,
				Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
				Normals:   [][3]int8{{0, 127, 0}, {0, 127, 0}, {0, 127, 0}},
				UVs:       [][2]int16{{2048, 1024}},
				Colours:   [][4]uint8{{127, 127, 127, 127}},
			},
			{
				Format:    formatstest.PS2UVOnly,
				Positions: [][3]float32{{2, 0, 0}, {3, 0, 0}, {2, 1, 0}, {3, 1, 0}},
				UVs:       [][2]int16{{4096, 4096}},
			},
		},
	})
	b := g.AddPS2Mesh(formatstest.PS2Mesh{
		AnimNodeList: 0,
		Strips: []formatstest.PS2Strip{{
			Format:    formatstest.PS2Skinned,
			Positions: [][3]float32{{5, 0, 0}, {6, 0, 0}, {5, 1, 0}},
			Normals:   [][3]int8{{127, 0, 0}},
			Bones:     []uint8{2, 10, 0},
			Bones2:    []uint16{4, 0, 40},
		}},
	})
	g.Link(a, b)
	if loop {
		g.Link(b, a)
	}

	header := formatstest.MDL3{
		Textures:      []string{"tex0"},
		Components:    []formatstest.Component{{Name: "root"}},
		Lookup:        map[formatstest.Slot]int32{{Texture: 0, Component: 0}: a},
		AnimNodeLists: [][]uint8{{4, 7}},
	}
	return g.Bytes(), header.Bytes()
}

func parseWithHeader(t *testing.T, mdg, mdl []byte) (*MDG, error) {
	t.Helper()
	model, err := ParseMDL3(mdl)
	if err != nil {
		t.Fatalf("ParseMDL3 failed: %v", err)
	}
	return ParseMDGWithMetadata(mdg, model.Meta, mdl)
}

func TestDetectMDGFormat(t *testing.T) {
	ps2, _ := ps2Fixture(t, false)
	if got := DetectMDGFormat(ps2); got != MDGFormatPS2 {
		t.Errorf("expected PS2, got %s", got)
	}

	late := append(make([]byte, 2000), ps2StripMarker...)
	if got := DetectMDGFormat(late); got != MDGFormatPC {
		t.Errorf("marker past the window: expected PC, got %s", got)
	}
	if got := DetectMDGFormat(nil); got != MDGFormatPC {
		t.Errorf("empty data: expected PC, got %s", got)
	}
}

func TestParseMDG_PS2(t *testing.T) {
	for _, loop := range []bool{false, true} {
		mdg, mdl := ps2Fixture(t, loop)
		result, err := parseWithHeader(t, mdg, mdl)
		if err != nil {
			t.Fatalf("loop=%v: ParseMDGWithMetadata failed: %v", loop, err)
		}
		if result.Format != MDGFormatPS2 {
			t.Errorf("expected PS2 format, got %s", result.Format)
		}
		if len(result.Meshes) != 3 {
			t.Fatalf("loop=%v: expected 3 meshes, got %d", loop, len(result.Meshes))
		}
		for i, m := range result.Meshes {
			if m.TextureIndex != 0 || m.ComponentIndex != 0 {
				t.Errorf("mesh %d: unexpected slot (%d, %d)", i, m.TextureIndex, m.ComponentIndex)
			}
		}
	}
}

func TestParseMDG_PS2Layouts(t *testing.T) {
	mdg, mdl := ps2Fixture(t, false)
	result, err := parseWithHeader(t, mdg, mdl)
	if err != nil {
		t.Fatalf("ParseMDGWithMetadata failed: %v", err)
	}

	lit := result.Meshes[0].Vertices
	if len(lit) != 3 {
		t.Fatalf("strip 0: expected 3 vertices, got %d", len(lit))
	}
	if lit[1].Position != [3]float32{1, 0, 0} {
		t.Errorf("strip 0 position: got %v", lit[1].Position)
	}
	if lit[0].Normal != [3]float32{0, 1, 0} {
		t.Errorf("strip 0 normal: got %v", lit[0].Normal)
	}
	if lit[0].TexCoord != [2]float32{0.5, 0.75} {
		t.Errorf("strip 0 uv: got %v", lit[0].TexCoord)
	}
	if lit[0].Colour != [4]float32{1, 1, 1, 1} {
		t.Errorf("strip 0 colour: got %v", lit[0].Colour)
	}

	flat := result.Meshes[1].Vertices
	if len(flat) != 4 {
		t.Fatalf("strip 1: expected 4 vertices, got %d", len(flat))
	}
	if flat[3].Position != [3]float32{3, 1, 0} {
		t.Errorf("strip 1 position: got %v", flat[3].Position)
	}
	if flat[0].Normal != [3]float32{0, 0, 1} {
		t.Errorf("UV-only strip should face +Z, got %v", flat[0].Normal)
	}
	if flat[0].TexCoord != [2]float32{1, 0} {
		t.Errorf("strip 1 uv: got %v", flat[0].TexCoord)
	}

	skinned := result.Meshes[2].Vertices
	if len(skinned) != 3 {
		t.Fatalf("strip 2: expected 3 vertices, got %d", len(skinned))
	}
	if skinned[0].Normal != [3]float32{1, 0, 0} {
		t.Errorf("strip 2 normal: got %v", skinned[0].Normal)
	}
	wantBones := [][2]float32{{16, 32}, {10, 20}, {10, 40}}
	for i, want := range wantBones {
		got := [2]float32{skinned[i].Skin[1], skinned[i].Skin[2]}
		if got != want {
			t.Errorf("vertex %d bones: got %v, want %v", i, got, want)
		}
	}
}

func TestParseMDG_PS2MissingStrips(t *testing.T) {
	g := formatstest.NewMDG()
	ref := g.AddPS2Mesh(formatstest.PS2Mesh{
		AnimNodeList:   0xFFFF,
		DeclaredStrips: 3,
		Strips: []formatstest.PS2Strip{{
			Format:    formatstest.PS2UVOnly,
			Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		}},
	})
	header := formatstest.MDL3{
		Textures:   []string{"t"},
		Components: []formatstest.Component{{}},
		Lookup:     map[formatstest.Slot]int32{{}: ref},
	}

	result, err := parseWithHeader(t, g.Bytes(), header.Bytes())
	if err != nil {
		t.Fatalf("ParseMDGWithMetadata failed: %v", err)
	}
	if len(result.Meshes) != 1 {
		t.Errorf("expected the one present strip, got %d meshes", len(result.Meshes))
	}
}

func TestRemapBone(t *testing.T) {
	tests := []struct {
		name  string
		index int
		list  []uint8
		shift uint
		want  int
	}{
		{"mapped", 1, []uint8{4, 7}, 1, 16},
		{"mapped shift 2", 0, []uint8{4, 7}, 2, 20},
		{"outside list", 5, []uint8{4, 7}, 1, 10},
		{"no list", 3, nil, 2, 12},
		{"overflows byte", 0, []uint8{255}, 1, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := remapBone(tt.index, tt.list, tt.shift); got != tt.want {
				t.Errorf("remapBone = %d, want %d", got, tt.want)
			}
		})
	}

	// The packed byte slot keeps only the low eight bits.
	if got := uint8(remapBone(0, []uint8{255}, 1)); got != 0 {
		t.Errorf("expected truncation to 0, got %d", got)
	}
}

func upNormal(positions ...[3]float32) []formatstest.PCVertex {
	out := make([]formatstest.PCVertex, len(positions))
	for i, p := range positions {
		out[i] = formatstest.PCVertex{
			UV:       [2]float32{float32(i) * 0.1, 0.25},
			Position: p,
			Normal:   [3]float32{0, 1, 0},
		}
	}
	return out
}

// pcFixture builds a PC MDG where one header is shared by two slots, a
// box helper is chained after it and a collision mesh sits in slot (1, 1).
func pcFixture() (mdg, mdl []byte) {
	g := formatstest.NewMDG()

	shared := g.AddPCMesh(formatstest.PCMesh{
		StripCounts: []uint16{0x0103, 3},
		Vertices: upNormal(
			[3]float32{1, 0, 1}, [3]float32{2, 0, 1}, [3]float32{1, 0, 2},
			[3]float32{3, 0, 3}, [3]float32{4, 0, 3}, [3]float32{3, 0, 4},
		),
	})
	box := g.AddPCMesh(formatstest.PCMesh{
		Vertices: upNormal(
			[3]float32{-1, -1, -1}, [3]float32{1, -1, -1}, [3]float32{-1, 1, -1}, [3]float32{1, 1, -1},
			[3]float32{-1, -1, 1}, [3]float32{1, -1, 1}, [3]float32{-1, 1, 1}, [3]float32{1, 1, 1},
		),
	})
	collision := g.AddPCMesh(formatstest.PCMesh{
		DupCount: 1,
		Vertices: upNormal(
			[3]float32{7, 1, 1}, [3]float32{8, 1, 1}, [3]float32{7, 2, 1}, [3]float32{8, 2, 1}, [3]float32{9, 3, 1},
		),
	})
	g.Link(shared, box)

	header := formatstest.MDL3{
		Textures:   []string{"grass", "CM_wall"},
		Components: []formatstest.Component{{Name: "a"}, {Name: "b"}},
		Lookup: map[formatstest.Slot]int32{
			{Texture: 0, Component: 0}: shared,
			{Texture: 0, Component: 1}: shared,
			{Texture: 1, Component: 1}: collision,
		},
	}
	return g.Bytes(), header.Bytes()
}

func TestParseMDG_PC(t *testing.T) {
	mdg, mdl := pcFixture()
	if DetectMDGFormat(mdg) != MDGFormatPC {
		t.Fatal("fixture should not look like PS2 data")
	}

	result, err := parseWithHeader(t, mdg, mdl)
	if err != nil {
		t.Fatalf("ParseMDGWithMetadata failed: %v", err)
	}
	if result.Format != MDGFormatPC {
		t.Errorf("expected PC format, got %s", result.Format)
	}
	if len(result.Meshes) != 2 {
		t.Fatalf("expected the shared mesh twice, got %d meshes", len(result.Meshes))
	}

	first, second := result.Meshes[0], result.Meshes[1]
	if first.TextureIndex != 0 || first.ComponentIndex != 0 || second.ComponentIndex != 1 {
		t.Errorf("unexpected slots (%d,%d) and (%d,%d)",
			first.TextureIndex, first.ComponentIndex, second.TextureIndex, second.ComponentIndex)
	}
	if len(first.Vertices) != 6 {
		t.Fatalf("expected 6 vertices, got %d", len(first.Vertices))
	}

	counts := first.StripVertexCounts
	if len(counts) != 2 || counts[0] != 3 || counts[1] != 3 {
		t.Errorf("expected strip counts [3 3], got %v", counts)
	}

	v := first.Vertices[1]
	if v.Position != [3]float32{2, 0, 1} || v.Normal != [3]float32{0, 1, 0} {
		t.Errorf("unexpected vertex %+v", v)
	}
	if v.TexCoord != [2]float32{0.1, 0.75} {
		t.Errorf("expected V-flipped uv, got %v", v.TexCoord)
	}
	if v.Colour != [4]float32{1, 1, 1, 1} {
		t.Errorf("expected white colour, got %v", v.Colour)
	}

	first.Vertices[0].Position[0] = 99
	if second.Vertices[0].Position[0] == 99 {
		t.Error("replayed meshes must not share vertex storage")
	}
}

func TestParseMDG_PCCursorAfterReuseAndCollision(t *testing.T) {
	g := formatstest.NewMDG()
	shared := g.AddPCMesh(formatstest.PCMesh{
		Vertices: upNormal([3]float32{1, 0, 1}, [3]float32{2, 0, 1}, [3]float32{1, 0, 2}, [3]float32{3, 0, 3}),
	})
	collision := g.AddPCMesh(formatstest.PCMesh{
		Vertices: upNormal([3]float32{7, 1, 1}, [3]float32{8, 1, 1}, [3]float32{7, 2, 1}, [3]float32{9, 3, 2}),
	})
	rock := g.AddPCMesh(formatstest.PCMesh{
		Vertices: upNormal(
			[3]float32{5, 5, 5}, [3]float32{6, 5, 5}, [3]float32{5, 6, 5}, [3]float32{7, 7, 6},
		),
	})

	header := formatstest.MDL3{
		Textures:   []string{"grass", "CM_wall", "rock"},
		Components: []formatstest.Component{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		Lookup: map[formatstest.Slot]int32{
			{Texture: 0, Component: 0}: shared,
			{Texture: 0, Component: 1}: shared,
			{Texture: 1, Component: 1}: collision,
			{Texture: 2, Component: 2}: rock,
		},
	}

	result, err := parseWithHeader(t, g.Bytes(), header.Bytes())
	if err != nil {
		t.Fatalf("ParseMDGWithMetadata failed: %v", err)
	}
	if len(result.Meshes) != 3 {
		t.Fatalf("expected shared mesh twice plus rock, got %d meshes", len(result.Meshes))
	}
	for _, m := range result.Meshes {
		if m.TextureIndex == 1 {
			t.Errorf("collision mesh emitted in slot (%d, %d)", m.TextureIndex, m.ComponentIndex)
		}
	}

	last := result.Meshes[2]
	if last.TextureIndex != 2 || last.ComponentIndex != 2 {
		t.Fatalf("expected rock in slot (2, 2), got (%d, %d)", last.TextureIndex, last.ComponentIndex)
	}
	want := [][3]float32{{5, 5, 5}, {6, 5, 5}, {5, 6, 5}, {7, 7, 6}}
	if len(last.Vertices) != len(want) {
		t.Fatalf("expected %d rock vertices, got %d", len(want), len(last.Vertices))
	}
	for i, p := range want {
		if last.Vertices[i].Position != p {
			t.Errorf("rock vertex %d = %v, want %v", i, last.Vertices[i].Position, p)
		}
	}
}

func TestParseMDG_PCShiftedTexCoords(t *testing.T) {
	// Vertices 0 and 1 form a seam whose UVs only agree one record later.
	records := []formatstest.PCVertex{
		{UV: [2]float32{0.9, 0.9}, Position: [3]float32{1, 1, 1}},
		{UV: [2]float32{0.2, 0.2}, Position: [3]float32{1, 1, 1}},
		{UV: [2]float32{0.2, 0.2}, Position: [3]float32{2, 1, 1}},
		{UV: [2]float32{0.4, 0.4}, Position: [3]float32{1, 2, 1}},
		{UV: [2]float32{0.6, 0.6}, Position: [3]float32{3, 2, 3}},
	}
	for i := range records {
		records[i].Normal = [3]float32{0, 0, 1}
	}

	g := formatstest.NewMDG()
	ref := g.AddPCMesh(formatstest.PCMesh{Vertices: records})
	header := formatstest.MDL3{
		Textures:   []string{"sign"},
		Components: []formatstest.Component{{Name: "a"}},
		Lookup:     map[formatstest.Slot]int32{{Texture: 0, Component: 0}: ref},
	}

	result, err := parseWithHeader(t, g.Bytes(), header.Bytes())
	if err != nil {
		t.Fatalf("ParseMDGWithMetadata failed: %v", err)
	}
	if len(result.Meshes) != 1 || len(result.Meshes[0].Vertices) != len(records) {
		t.Fatalf("expected one mesh of %d vertices, got %+v", len(records), result.Meshes)
	}

	for i, v := range result.Meshes[0].Vertices {
		src := i + 1
		if src == len(records) {
			src = i
		}
		uv := records[src].UV
		want := [2]float32{uv[0], 1 - uv[1]}
		if v.TexCoord != want {
			t.Errorf("vertex %d uv = %v, want %v (record %d)", i, v.TexCoord, want, src)
		}
	}
}

func TestUVShift(t *testing.T) {
	vertices := []Vertex{
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{0, 0, 0}},
		{Position: [3]float32{1, 0, 0}},
	}
	shifted := [][2]float32{{0, 0}, {0.5, 0.5}, {0.5, 0.5}}
	aligned := [][2]float32{{0.5, 0.5}, {0.5, 0.5}, {0, 0}}

	if !uvShift(vertices, shifted) {
		t.Error("expected shift when UVs agree one record later")
	}
	if uvShift(vertices, aligned) {
		t.Error("expected no shift when seam UVs already agree")
	}
	if uvShift(vertices[:1], shifted[:1]) {
		t.Error("expected no shift without seam pairs")
	}
}

func TestIsBoxLike(t *testing.T) {
	box := make([]Vertex, 0, 8)
	for _, x := range []float32{-1, 1} {
		for _, y := range []float32{0, 2} {
			for _, z := range []float32{-3, 3} {
				box = append(box, Vertex{Position: [3]float32{x, y, z}})
			}
		}
	}
	if !isBoxLike(box) {
		t.Error("expected box corners to be detected")
	}

	wedge := append(box, Vertex{Position: [3]float32{0, 1, 0}})
	if isBoxLike(wedge) {
		t.Error("a third value on an axis is not a box")
	}
}

func TestIsCollisionTexture(t *testing.T) {
	for name, want := range map[string]bool{
		"CM_floor": true,
		"cm_wall":  true,
		"Cm_wall":  false,
		"rock":     false,
		"":         false,
	} {
		if got := isCollisionTexture(name); got != want {
			t.Errorf("isCollisionTexture(%q) = %v, want %v", name, got, want)
		}
	}
}

func genericStrip() []byte {
	return formatstest.GenericStrip(
		[][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[][3]int8{{0, 0, 127}, {0, 0, 127}, {0, 0, 127}},
		[][2]int16{{4096, 0}},
		[][4]uint8{{127, 0, 0, 127}},
	)
}

func TestParseMDG_GenericWithoutMetadata(t *testing.T) {
	data := append([]byte("MDG3"), genericStrip()...)
	data = append(data, genericStrip()...)

	result, err := ParseMDG(data)
	if err != nil {
		t.Fatalf("ParseMDG failed: %v", err)
	}
	if result.Format != MDGFormatGeneric {
		t.Errorf("expected generic format, got %s", result.Format)
	}
	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}

	m := result.Meshes[0]
	if m.TextureIndex != -1 || m.ComponentIndex != -1 {
		t.Errorf("expected unassigned slot, got (%d, %d)", m.TextureIndex, m.ComponentIndex)
	}
	if m.Vertices[2].Position != [3]float32{0, 1, 0} {
		t.Errorf("unexpected position %v", m.Vertices[2].Position)
	}
	if m.Vertices[0].Normal != [3]float32{0, 0, 1} {
		t.Errorf("unexpected normal %v", m.Vertices[0].Normal)
	}
	if m.Vertices[0].TexCoord != [2]float32{1, 1} {
		t.Errorf("unexpected uv %v", m.Vertices[0].TexCoord)
	}
	if m.Vertices[0].Colour != [4]float32{1, 0, 0, 1} {
		t.Errorf("unexpected colour %v", m.Vertices[0].Colour)
	}
}

func TestParseMDG_PCFallsBackToGeneric(t *testing.T) {
	// The strip sits past the detection window and nothing looks like a
	// PC vertex block.
	data := append(make([]byte, 1100), genericStrip()...)
	header := formatstest.MDL3{
		Textures:   []string{"t"},
		Components: []formatstest.Component{{}},
		Lookup:     map[formatstest.Slot]int32{{}: 4},
	}

	result, err := parseWithHeader(t, data, header.Bytes())
	if err != nil {
		t.Fatalf("ParseMDGWithMetadata failed: %v", err)
	}
	if result.Format != MDGFormatGeneric || len(result.Meshes) != 1 {
		t.Errorf("expected one generic mesh, got %s with %d meshes", result.Format, len(result.Meshes))
	}
}

func TestParseMDG_NoMeshes(t *testing.T) {
	header := formatstest.MDL3{
		Textures:   []string{"t"},
		Components: []formatstest.Component{{}},
		Lookup:     map[formatstest.Slot]int32{{}: 4},
	}
	data := bytes.Repeat([]byte{0}, 512)

	_, err := parseWithHeader(t, data, header.Bytes())
	if !errors.Is(err, ErrNoMeshes) {
		t.Errorf("expected ErrNoMeshes, got %v", err)
	}
	if !errors.Is(err, ErrVertexBlockAbsent) {
		t.Errorf("expected the PC failure to be reported too, got %v", err)
	}

	if _, err := ParseMDG(nil); !errors.Is(err, ErrNoMeshes) {
		t.Errorf("empty file: expected ErrNoMeshes, got %v", err)
	}
}
