package model

import (
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/pkg/formats"
	"github.com/Faultbox/tyviewer/pkg/strip"
)

// BuildTY1 turns every generation 1 mesh into a render mesh. Segments are
// concatenated; each segment of n vertices contributes n-2 triangles
// (t, t+2, t+1) relative to its first vertex.
func BuildTY1(mdl *formats.MDL) []*Mesh {
	var meshes []*Mesh
	for _, sub := range mdl.Subobjects {
		for _, src := range sub.Meshes {
			mesh := &Mesh{
				Vertices:       make([]formats.Vertex, 0, src.VertexCount()),
				Material:       src.Material,
				Enabled:        true,
				TextureIndex:   -1,
				ComponentIndex: -1,
			}
			for _, seg := range src.Segments {
				base := uint32(len(mesh.Vertices))
				mesh.Vertices = append(mesh.Vertices, seg.Vertices...)
				for t := uint32(0); int(t)+2 < len(seg.Vertices); t++ {
					mesh.Indices = append(mesh.Indices, base+t, base+t+2, base+t+1)
				}
			}
			meshes = append(meshes, mesh)
		}
	}
	return meshes
}

// BuildTY2 triangulates decoded MDG meshes. Materials come from the texture
// table when meta is available.
func BuildTY2(g *formats.MDG, meta *formats.MDL3Metadata, log *zap.Logger) []*Mesh {
	if log == nil {
		log = zap.NewNop()
	}

	meshes := make([]*Mesh, 0, len(g.Meshes))
	for i := range g.Meshes {
		src := &g.Meshes[i]
		indices, st := strip.Triangulate(src.Positions(), src.TexCoords(), src.StripVertexCounts)

		if st.Degenerate > 0 || st.UVMismatch > 0 {
			log.Debug("strip triangulation",
				zap.Int("mesh", i),
				zap.Stringer("convention", st.Convention),
				zap.Bool("derived", st.Derived),
				zap.Int("strips", st.Strips),
				zap.Int("emitted", st.Emitted()),
				zap.Int("degenerate", st.Degenerate),
				zap.Int("uvMismatch", st.UVMismatch))
		}

		var material string
		if meta != nil {
			material = meta.TextureName(src.TextureIndex)
		}

		meshes = append(meshes, &Mesh{
			Vertices:       src.Vertices,
			Indices:        indices,
			Material:       material,
			Enabled:        true,
			TextureIndex:   src.TextureIndex,
			ComponentIndex: src.ComponentIndex,
		})
	}
	return meshes
}

// newModel copies header data shared by both generations.
func newModel(name string, gen Generation, mdl *formats.MDL) *Model {
	m := &Model{
		Name:         name,
		Generation:   gen,
		BoundsCorner: mdl.Bounds.Position,
		BoundsSize:   mdl.Bounds.Size,
		Colliders:    mdl.Colliders,
		Bones:        mdl.Bones,
	}
	for _, sub := range mdl.Subobjects {
		m.Bounds = append(m.Bounds, Bounds{Corner: sub.Bounds.Position, Size: sub.Bounds.Size})
	}
	return m
}
