package model

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/Faultbox/tyviewer/pkg/formats"
	"github.com/Faultbox/tyviewer/pkg/formats/formatstest"
	"github.com/Faultbox/tyviewer/pkg/rkv"
	"github.com/Faultbox/tyviewer/pkg/rkv/rkvtest"
)

// memSource is an in-memory Source keyed by lower-case name.
type memSource map[string][]byte

func (s memSource) Contains(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

func (s memSource) Read(name string) ([]byte, error) {
	data, ok := s[strings.ToLower(name)]
	if !ok {
		return nil, rkv.ErrFileNotFound
	}
	return data, nil
}

func quadMDL() formatstest.MDL2 {
	return formatstest.MDL2{
		Name:   "quad",
		Bounds: [2][3]float32{{-1, -2, -3}, {2, 4, 6}},
		Subobjects: []formatstest.Subobject{{
			Name:   "body",
			Bounds: [3][3]float32{{0, 0, 0}, {1, 1, 0}, {0, 0, 0}},
			Meshes: []formatstest.Mesh{{
				Material: "A048_Grass",
				Segments: []formatstest.Segment{{
					Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
				}},
			}},
		}},
		Colliders: [][4]float32{{0, 1, 0, 2}},
		Bones:     [][3]float32{{0, 0.5, 0}},
	}
}

func TestLoader_TY1FromArchive(t *testing.T) {
	path := rkvtest.WriteFile(t, rkvtest.RKV1([]rkvtest.Entry{
		{Name: "Quad.mdl", Data: quadMDL().Bytes()},
		{Name: "A048_Grass.dds", Data: []byte("DDS ")},
	}, 1))
	archive, err := rkv.Open(path)
	if err != nil {
		t.Fatalf("rkv.Open failed: %v", err)
	}

	m, err := NewLoader(archive, nil).Load("quad.mdl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Generation != TY1 {
		t.Errorf("expected TY1, got %s", m.Generation)
	}
	if len(m.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(m.Meshes))
	}
	mesh := m.Meshes[0]
	if len(mesh.Vertices) != 4 || mesh.TriangleCount() != 2 {
		t.Errorf("expected 4 vertices and 2 triangles, got %d and %d", len(mesh.Vertices), mesh.TriangleCount())
	}
	if want := []uint32{0, 2, 1, 1, 3, 2}; !equalIndices(mesh.Indices, want) {
		t.Errorf("indices: got %v, want %v", mesh.Indices, want)
	}
	if mesh.Material != "A048_Grass" {
		t.Errorf("material: got %q", mesh.Material)
	}

	if m.BoundsCorner != [3]float32{-1, -2, -3} || m.BoundsSize != [3]float32{2, 4, 6} {
		t.Errorf("bounds: got %v / %v", m.BoundsCorner, m.BoundsSize)
	}
	if len(m.Bounds) != 1 || m.Bounds[0].Size != [3]float32{1, 1, 0} {
		t.Errorf("subobject bounds: got %+v", m.Bounds)
	}
	if len(m.Colliders) != 1 || m.Colliders[0].Radius != 2 {
		t.Errorf("colliders: got %+v", m.Colliders)
	}
	if len(m.Bones) != 1 || m.Bones[0].Position != [3]float32{0, 0.5, 0} {
		t.Errorf("bones: got %+v", m.Bones)
	}
}

func TestLoader_BoundsIndependentOfSubobjects(t *testing.T) {
	for _, count := range []int{0, 1, 3} {
		src := quadMDL()
		sub := src.Subobjects[0]
		src.Subobjects = nil
		for i := 0; i < count; i++ {
			src.Subobjects = append(src.Subobjects, sub)
		}

		m, err := NewLoader(memSource{"m.mdl": src.Bytes()}, nil).Load("m.mdl")
		if err != nil {
			t.Fatalf("%d subobjects: Load failed: %v", count, err)
		}
		if m.BoundsCorner != [3]float32{-1, -2, -3} || m.BoundsSize != [3]float32{2, 4, 6} {
			t.Errorf("%d subobjects: bounds %v / %v", count, m.BoundsCorner, m.BoundsSize)
		}
		if len(m.Meshes) != count {
			t.Errorf("%d subobjects: got %d meshes", count, len(m.Meshes))
		}
	}
}

func ps2Pair() (mdl, mdg []byte) {
	g := formatstest.NewMDG()
	ref := g.AddPS2Mesh(formatstest.PS2Mesh{
		AnimNodeList: 0xFFFF,
		Strips: []formatstest.PS2Strip{{
			Format:    formatstest.PS2UVOnly,
			Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		}},
	})
	header := formatstest.MDL3{
		Bounds:     [2][3]float32{{1, 1, 1}, {3, 3, 3}},
		Textures:   []string{"ty_body"},
		Components: []formatstest.Component{{Name: "root"}},
		Lookup:     map[formatstest.Slot]int32{{}: ref},
	}
	return header.Bytes(), g.Bytes()
}

func TestLoader_TY2(t *testing.T) {
	mdl, mdg := ps2Pair()
	src := memSource{"ty.mdl": mdl, "ty.mdg": mdg}

	m, err := NewLoader(src, nil).Load("TY.mdl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Generation != TY2 || m.Format != formats.MDGFormatPS2 {
		t.Errorf("expected TY2/PS2, got %s/%s", m.Generation, m.Format)
	}
	if len(m.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(m.Meshes))
	}
	mesh := m.Meshes[0]
	if mesh.Material != "ty_body" {
		t.Errorf("material: got %q", mesh.Material)
	}
	if want := []uint32{0, 1, 2, 2, 1, 3}; !equalIndices(mesh.Indices, want) {
		t.Errorf("indices: got %v, want %v", mesh.Indices, want)
	}
	if m.BoundsCorner != [3]float32{1, 1, 1} || m.BoundsSize != [3]float32{3, 3, 3} {
		t.Errorf("bounds: got %v / %v", m.BoundsCorner, m.BoundsSize)
	}
	if len(m.Bounds) != 1 {
		t.Errorf("expected component bounds, got %+v", m.Bounds)
	}
}

func TestLoader_TY2LegacyHeaderUsesGenericScan(t *testing.T) {
	header := quadMDL().Bytes()
	binary.LittleEndian.PutUint16(header[4:], 2000)

	strip := formatstest.GenericStrip(
		[][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		nil, nil, nil,
	)
	src := memSource{"old.mdl": header, "old.mdg": append([]byte("MDG3"), strip...)}

	m, err := NewLoader(src, nil).Load("old.mdl")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Generation != TY2 || m.Format != formats.MDGFormatGeneric {
		t.Errorf("expected TY2/generic, got %s/%s", m.Generation, m.Format)
	}
	if len(m.Meshes) != 1 || m.Meshes[0].TriangleCount() != 1 || m.Meshes[0].Material != "" {
		t.Errorf("unexpected meshes %+v", m.Meshes)
	}
}

func TestLoader_TY2NoGeometryFails(t *testing.T) {
	mdl, _ := ps2Pair()
	src := memSource{"ty.mdl": mdl, "ty.mdg": make([]byte, 600)}

	m, err := NewLoader(src, nil).Load("ty.mdl")
	if err == nil {
		t.Fatalf("expected failure, got model with %d meshes", len(m.Meshes))
	}
	if m != nil {
		t.Error("no partial model may be returned")
	}
	if !errors.Is(err, formats.ErrNoMeshes) {
		t.Errorf("expected ErrNoMeshes, got %v", err)
	}
}

func TestLoader_Errors(t *testing.T) {
	bad := quadMDL().Bytes()
	binary.LittleEndian.PutUint32(bad, 0)

	tests := []struct {
		name string
		src  memSource
		load string
		want error
	}{
		{"missing model", memSource{}, "nope.mdl", ErrModelNotFound},
		{"bad signature", memSource{"bad.mdl": bad}, "bad.mdl", formats.ErrInvalidMDLMagic},
		{"missing companion data", memSource{"x.mdl": quadMDL().Bytes(), "x.mdg": nil}, "x.mdl", formats.ErrNoMeshes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.src, nil).Load(tt.load)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// cancellingSource cancels the load it serves on the first read.
type cancellingSource struct {
	memSource
	cancel context.CancelFunc
	reads  int
}

func (s *cancellingSource) Read(name string) ([]byte, error) {
	s.reads++
	s.cancel()
	return s.memSource.Read(name)
}

func TestLoader_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &cancellingSource{memSource: memSource{"quad.mdl": quadMDL().Bytes()}, cancel: cancel}

	if _, err := NewLoader(src, nil).LoadContext(ctx, "quad.mdl"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled during read: err = %v, want context.Canceled", err)
	}
	if src.reads != 1 {
		t.Errorf("expected decoding to stop after one read, got %d", src.reads)
	}

	if _, err := NewLoader(src, nil).LoadContext(ctx, "quad.mdl"); !errors.Is(err, context.Canceled) {
		t.Errorf("already cancelled: err = %v", err)
	}
	if src.reads != 1 {
		t.Errorf("a cancelled load read %d more files", src.reads-1)
	}
}

func TestCompanionName(t *testing.T) {
	tests := map[string]string{
		"ty.mdl":            "ty.mdg",
		"Boss.MDL":          "Boss.mdg",
		"noext":             "noext.mdg",
		"dir/a.b/model.mdl": "dir/a.b/model.mdg",
	}
	for in, want := range tests {
		if got := companionName(in); got != want {
			t.Errorf("companionName(%q) = %q, want %q", in, got, want)
		}
	}
}
