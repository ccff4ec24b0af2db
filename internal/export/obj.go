package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/internal/model"
)

// ExportOBJ writes outDir/<base>/<base>.obj and the matching .mtl, where base
// is name without directories or extension. Textures are copied next to the
// MTL when tex can supply them; missing textures are not an error.
func ExportOBJ(m *model.Model, name string, tex TextureSource, outDir string) (string, error) {
	dir, base, err := modelDir(outDir, name)
	if err != nil {
		return "", err
	}
	materials := m.Materials()

	mtlPath := filepath.Join(dir, base+".mtl")
	if err := writeFile(mtlPath, func(w io.Writer) error {
		return WriteMTL(w, base, materials)
	}); err != nil {
		return "", err
	}

	if tex != nil {
		copyTextures(dir, materials, tex)
	}

	objPath := filepath.Join(dir, base+".obj")
	if err := writeFile(objPath, func(w io.Writer) error {
		return WriteOBJ(w, base, m)
	}); err != nil {
		return "", err
	}
	return objPath, nil
}

// copyTextures writes each available texture under its sanitized file name.
func copyTextures(dir string, materials []string, tex TextureSource) {
	for _, mat := range materials {
		data, err := tex.Texture(mat)
		if err != nil || len(data) == 0 {
			exportLog.Debug("texture not available", zap.String("material", mat), zap.Error(err))
			continue
		}
		dst := filepath.Join(dir, TextureFile(mat))
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			exportLog.Warn("texture copy failed",
				zap.String("material", mat),
				zap.String("path", dst),
				zap.Error(err))
		}
	}
}

// WriteMTL writes one material entry per name.
func WriteMTL(w io.Writer, base string, materials []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# TYViewer export\n# Model: %s\n\n", base)
	for _, mat := range materials {
		fmt.Fprintf(bw, "newmtl %s\n", SanitizeName(mat))
		bw.WriteString("Ka 1.000 1.000 1.000\n")
		bw.WriteString("Kd 1.000 1.000 1.000\n")
		bw.WriteString("Ks 0.000 0.000 0.000\n")
		bw.WriteString("d 1.000\n")
		bw.WriteString("illum 1\n")
		fmt.Fprintf(bw, "map_Kd %s\n\n", TextureFile(mat))
	}
	return bw.Flush()
}

// WriteOBJ writes every mesh as its own group. Vertex, texcoord and normal
// streams stay aligned so a face uses the same index for all three. Meshes
// without a material get no usemtl and render with the viewer's default.
func WriteOBJ(w io.Writer, base string, m *model.Model) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# TYViewer export\n# Model: %s\nmtllib %s.mtl\n\n", base, base)

	offset := 1
	for i, mesh := range m.Meshes {
		fmt.Fprintf(bw, "g mesh_%d\n", i)
		if mesh.Material != "" {
			fmt.Fprintf(bw, "usemtl %s\n", SanitizeName(mesh.Material))
		}

		for _, v := range mesh.Vertices {
			fmt.Fprintf(bw, "v %s %s %s\n", ftoa(v.Position[0]), ftoa(v.Position[1]), ftoa(v.Position[2]))
		}
		for _, v := range mesh.Vertices {
			fmt.Fprintf(bw, "vt %s %s\n", ftoa(v.TexCoord[0]), ftoa(v.TexCoord[1]))
		}
		for _, v := range mesh.Vertices {
			fmt.Fprintf(bw, "vn %s %s %s\n", ftoa(v.Normal[0]), ftoa(v.Normal[1]), ftoa(v.Normal[2]))
		}

		for t := 0; t+2 < len(mesh.Indices); t += 3 {
			a := offset + int(mesh.Indices[t])
			b := offset + int(mesh.Indices[t+1])
			c := offset + int(mesh.Indices[t+2])
			fmt.Fprintf(bw, "f %d/%d/%d %d/%d/%d %d/%d/%d\n", a, a, a, b, b, b, c, c, c)
		}
		bw.WriteString("\n")
		offset += len(mesh.Vertices)
	}
	return bw.Flush()
}

func ftoa(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
