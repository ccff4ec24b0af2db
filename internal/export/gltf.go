package export

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/tyviewer/internal/model"
)

// ExportGLTF writes outDir/<base>/<base>.glb.
func ExportGLTF(m *model.Model, name string, outDir string) (string, error) {
	dir, base, err := modelDir(outDir, name)
	if err != nil {
		return "", err
	}
	doc, err := BuildGLTF(m, base)
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, base+".glb")
	if err := gltf.SaveBinary(doc, out); err != nil {
		return "", errors.Wrapf(err, "writing %s", out)
	}
	return out, nil
}

// EncodeGLB writes m as a binary glTF stream.
func EncodeGLB(w io.Writer, m *model.Model, base string) error {
	doc, err := BuildGLTF(m, base)
	if err != nil {
		return err
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return errors.Wrap(enc.Encode(doc), "encoding glb")
}

// BuildGLTF converts the enabled meshes of m into a document with one mesh
// and one node each. Meshes sharing a material share a glTF material.
func BuildGLTF(m *model.Model, base string) (*gltf.Document, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "building gltf")
	}
	doc := gltf.NewDocument()
	materials := make(map[string]uint32)

	for i, mesh := range m.Meshes {
		if !mesh.Enabled || len(mesh.Indices) == 0 {
			continue
		}
		n := len(mesh.Vertices)
		positions := make([][3]float32, n)
		normals := make([][3]float32, n)
		uvs := make([][2]float32, n)
		colours := make([][4]uint8, n)
		for j, v := range mesh.Vertices {
			positions[j] = v.Position
			normals[j] = normalize(v.Normal)
			uvs[j] = v.TexCoord
			for c := range colours[j] {
				colours[j][c] = toUnorm8(v.Colour[c])
			}
		}

		primitive := &gltf.Primitive{
			Indices: gltf.Index(modeler.WriteIndices(doc, mesh.Indices)),
			Attributes: map[string]uint32{
				"POSITION":   modeler.WritePosition(doc, positions),
				"NORMAL":     modeler.WriteNormal(doc, normals),
				"TEXCOORD_0": modeler.WriteTextureCoord(doc, uvs),
				"COLOR_0":    modeler.WriteColor(doc, colours),
			},
			Material: gltf.Index(materialIndex(doc, materials, mesh.Material)),
		}

		meshName := fmt.Sprintf("%s_mesh_%d", base, i)
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name:       meshName,
			Primitives: []*gltf.Primitive{primitive},
		})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name: meshName,
			Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
		})
	}
	return doc, nil
}

func materialIndex(doc *gltf.Document, known map[string]uint32, name string) uint32 {
	name = SanitizeName(name)
	if idx, ok := known[name]; ok {
		return idx
	}
	idx := uint32(len(doc.Materials))
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:        name,
		DoubleSided: true,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{1, 1, 1, 1},
		},
	})
	known[name] = idx
	return idx
}

// normalize returns a unit vector, or +Y for degenerate input.
func normalize(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l < 1e-6 || math32.IsNaN(l) || math32.IsInf(l, 0) {
		return [3]float32{0, 1, 0}
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

func toUnorm8(f float32) uint8 {
	switch {
	case !(f > 0):
		return 0
	case f >= 1:
		return 255
	}
	return uint8(math32.Round(f * 255))
}
