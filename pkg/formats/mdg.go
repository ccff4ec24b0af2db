// MDG (generation 2) geometry parser. Mesh chains are located through the
// MDL3 object lookup table; vertex data is stored either as PS2 VIF
// packets or as one interleaved PC vertex block.
package formats

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

// MDG format errors.
var (
	ErrNoMeshes          = errors.New("no meshes decoded")
	ErrTruncatedMDGData  = errors.New("truncated MDG data")
	ErrVertexBlockAbsent = errors.New("PC vertex block not found")
	ErrImplausibleStrips = errors.New("implausible strip count")
)

var (
	ps2StripMarker = []byte{0x00, 0x80, 0x02, 0x6C}
	normalsMarker  = []byte{0x03, 0x80}
)

const (
	ps2DetectWindow      = 1000
	ps2StripSearchWindow = 10000

	meshStripCountOffset = 0x6
	meshAnimListOffset   = 0x8
	meshNextOffset       = 0xC
	meshHeaderSize       = 0x10

	noAnimNodeList = 0xFFFF
)

// MDGFormat identifies which geometry layout decoded a file.
type MDGFormat int

const (
	MDGFormatPS2 MDGFormat = iota + 1
	MDGFormatPC
	MDGFormatGeneric
)

func (f MDGFormat) String() string {
	switch f {
	case MDGFormatPS2:
		return "PS2"
	case MDGFormatPC:
		return "PC"
	case MDGFormatGeneric:
		return "generic"
	default:
		return fmt.Sprintf("MDGFormat(%d)", int(f))
	}
}

// MeshData is one renderable run of strip-ordered vertices.
type MeshData struct {
	Vertices          []Vertex
	TextureIndex      int      // -1 when decoded without metadata
	ComponentIndex    int      // -1 when decoded without metadata
	StripVertexCounts []uint16 // declared strip lengths, nil if unknown or inconsistent
}

// Positions returns the vertex positions.
func (m *MeshData) Positions() [][3]float32 {
	out := make([][3]float32, len(m.Vertices))
	for i := range m.Vertices {
		out[i] = m.Vertices[i].Position
	}
	return out
}

// TexCoords returns the vertex texture coordinates.
func (m *MeshData) TexCoords() [][2]float32 {
	out := make([][2]float32, len(m.Vertices))
	for i := range m.Vertices {
		out[i] = m.Vertices[i].TexCoord
	}
	return out
}

// MDG is decoded generation 2 geometry.
type MDG struct {
	Format MDGFormat
	Meshes []MeshData
}

// DetectMDGFormat looks for a PS2 strip marker near the start of data.
func DetectMDGFormat(data []byte) MDGFormat {
	limit := len(data) - 3
	if limit > ps2DetectWindow {
		limit = ps2DetectWindow
	}
	if NewReader(data).Index(ps2StripMarker, 0, limit+3) >= 0 {
		return MDGFormatPS2
	}
	return MDGFormatPC
}

type mdgStrategy struct {
	format MDGFormat
	decode func(data []byte, meta *MDL3Metadata, mdl []byte) ([]MeshData, error)
}

// ParseMDGWithMetadata decodes MDG geometry using the MDL3 header it was
// shipped with. PS2 files are decoded by the chain walker alone; other
// files try the PC layout and then the generic marker scan.
func ParseMDGWithMetadata(data []byte, meta *MDL3Metadata, mdl []byte) (*MDG, error) {
	if meta == nil {
		return ParseMDG(data)
	}

	var strategies []mdgStrategy
	if DetectMDGFormat(data) == MDGFormatPS2 {
		strategies = []mdgStrategy{{MDGFormatPS2, decodePS2}}
	} else {
		strategies = []mdgStrategy{
			{MDGFormatPC, decodePC},
			{MDGFormatGeneric, decodeGenericStrategy},
		}
	}

	return runStrategies(data, meta, mdl, strategies)
}

// ParseMDG decodes MDG geometry without metadata by scanning for strip markers.
func ParseMDG(data []byte) (*MDG, error) {
	return runStrategies(data, nil, nil, []mdgStrategy{{MDGFormatGeneric, decodeGenericStrategy}})
}

func runStrategies(data []byte, meta *MDL3Metadata, mdl []byte, strategies []mdgStrategy) (*MDG, error) {
	var errs []error
	for _, s := range strategies {
		meshes, err := s.decode(data, meta, mdl)
		if err == nil && len(meshes) == 0 {
			err = ErrNoMeshes
		}
		if err != nil {
			decodeLog.Debug("MDG strategy failed",
				zap.Stringer("format", s.format),
				zap.Int("size", len(data)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.format, err))
			continue
		}

		decodeLog.Debug("decoded MDG",
			zap.Stringer("format", s.format),
			zap.Int("meshes", len(meshes)))
		return &MDG{Format: s.format, Meshes: meshes}, nil
	}
	return nil, errors.Join(errs...)
}

// nextMeshRef returns the chain link stored in the mesh header at ref, or 0.
func nextMeshRef(data []byte, ref int) int32 {
	if ref <= 0 || ref+meshNextOffset+4 > len(data) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(data[ref+meshNextOffset:]))
}

// walkChains visits every mesh header reachable from the lookup table in
// (texture, component) order. visit returns false to abandon the rest of
// the current chain. Links outside data and cycles end a chain.
func walkChains(meta *MDL3Metadata, mdl, data []byte, visit func(texture, component, ref int) bool) {
	for ti := 0; ti < int(meta.TextureCount); ti++ {
		for ci := 0; ci < int(meta.ComponentCount); ci++ {
			ref, ok := meta.MeshRef(mdl, ti, ci)
			if !ok || ref == 0 {
				continue
			}

			var seen map[int32]bool
			for ref != 0 {
				if ref < 0 || int(ref) >= len(data) {
					decodeLog.Debug("invalid mesh reference",
						zap.Int32("ref", ref),
						zap.Int("texture", ti),
						zap.Int("component", ci))
					break
				}
				if seen == nil {
					seen = make(map[int32]bool)
				}
				if seen[ref] {
					decodeLog.Debug("mesh chain loops", zap.Int32("ref", ref))
					break
				}
				seen[ref] = true

				if !visit(ti, ci, int(ref)) {
					break
				}
				ref = nextMeshRef(data, int(ref))
			}
		}
	}
}

func decodeGenericStrategy(data []byte, _ *MDL3Metadata, _ []byte) ([]MeshData, error) {
	return decodeGeneric(data), nil
}

// decodeGeneric scans every strip marker and tries a fixed PS2-like layout
// at each. Hits that do not fit are skipped.
func decodeGeneric(data []byte) []MeshData {
	r := NewReader(data)
	var meshes []MeshData

	for pos := r.Index(ps2StripMarker, 0, r.Len()); pos >= 0; pos = r.Index(ps2StripMarker, pos+1, r.Len()) {
		r.Reset()
		off := pos + len(ps2StripMarker)
		if !r.Has(off, 4) {
			continue
		}
		n := int(r.U32(off))
		off += 4
		if n == 0 || n > 100000 {
			continue
		}

		// Unknown block, then the position tag.
		off += 32 + 4
		if !r.Has(off, n*12) {
			continue
		}

		vertices := make([]Vertex, n)
		for i := range vertices {
			vertices[i].Position = r.Vec3(off + i*12)
		}
		off += n * 12

		np := r.Index(normalsMarker, off, r.Len())
		if np < 0 {
			continue
		}
		off = np + 4
		if !r.Has(off, n*4) {
			continue
		}
		for i := range vertices {
			vertices[i].Normal = byteNormal(r, off+i*4)
		}
		off += n*4 + 4

		if !r.Has(off, n*8) {
			continue
		}
		for i := range vertices {
			vertices[i].TexCoord = fixedUV(r, off+i*8)
		}
		off += n*8 + 4

		if !r.Has(off, n*4) {
			continue
		}
		for i := range vertices {
			vertices[i].Colour = byteColour(r, off+i*4)
		}

		meshes = append(meshes, MeshData{
			Vertices:       vertices,
			TextureIndex:   -1,
			ComponentIndex: -1,
		})
	}

	decodeLog.Debug("generic MDG scan finished", zap.Int("meshes", len(meshes)))
	return meshes
}

// fixedUV reads a 4.12 fixed-point UV pair with V flipped.
func fixedUV(r *Reader, off int) [2]float32 {
	u := float32(r.I16(off)) / 4096
	v := float32(r.I16(off+2)) / 4096
	return [2]float32{u, math32.Abs(v - 1)}
}

func byteNormal(r *Reader, off int) [3]float32 {
	return [3]float32{
		ByteToSingle(r.U8(off)),
		ByteToSingle(r.U8(off + 1)),
		ByteToSingle(r.U8(off + 2)),
	}
}

func byteColour(r *Reader, off int) [4]float32 {
	return [4]float32{
		ByteToSingle(r.U8(off)),
		ByteToSingle(r.U8(off + 1)),
		ByteToSingle(r.U8(off + 2)),
		ByteToSingle(r.U8(off + 3)),
	}
}
