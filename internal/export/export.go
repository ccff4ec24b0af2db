// Package export writes decoded models to interchange formats.
package export

import (
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/Faultbox/tyviewer/internal/model"
)

// TextureSource resolves a material name to raw .dds bytes.
type TextureSource interface {
	Texture(material string) ([]byte, error)
}

// Format selects the exporter.
type Format string

const (
	FormatOBJ  Format = "obj"
	FormatGLTF Format = "gltf"
)

// ParseFormat accepts the names used by the config file and the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "obj":
		return FormatOBJ, nil
	case "gltf", "glb":
		return FormatGLTF, nil
	}
	return "", errors.Errorf("unknown export format %q", s)
}

// Export writes m with the given format and returns the path of the main file.
func Export(format Format, m *model.Model, name string, tex TextureSource, outDir string) (string, error) {
	switch format {
	case FormatOBJ:
		return ExportOBJ(m, name, tex, outDir)
	case FormatGLTF:
		return ExportGLTF(m, name, outDir)
	}
	return "", errors.Errorf("unknown export format %q", format)
}

// BaseName strips directories and the extension from an archive file name.
func BaseName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}

// SanitizeName makes a material name safe for OBJ and MTL statements and
// for use as a single file name.
func SanitizeName(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r), r == '/', r == '\\', r == ':':
			return '_'
		}
		return r
	}, s)
	if out == "" {
		return "material"
	}
	return out
}

// TextureFile returns the .dds file name a material's texture is copied to.
func TextureFile(material string) string {
	return SanitizeName(material) + ".dds"
}

func modelDir(outDir, name string) (string, string, error) {
	base := BaseName(name)
	if base == "" || base == "." || base == "/" {
		return "", "", errors.Errorf("invalid model name %q", name)
	}
	dir := filepath.Join(outDir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", errors.Wrapf(err, "creating %s", dir)
	}
	return dir, base, nil
}
