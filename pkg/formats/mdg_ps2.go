package formats

import (
	"fmt"

	"go.uber.org/zap"
)

// PS2 strip packet layout after the marker.
const (
	ps2CountPadding = 3
	ps2WeightBlock  = 32
	ps2PreludeSkip  = 0x27

	ps2FormatNormalsUV = 0x6A
	ps2FormatUVOnly    = 0x65
)

// decodePS2 walks every lookup-table chain and decodes each strip packet
// into its own mesh.
func decodePS2(data []byte, meta *MDL3Metadata, mdl []byte) ([]MeshData, error) {
	r := NewReader(data)
	lists := meta.AnimNodeLists(mdl)
	var meshes []MeshData

	walkChains(meta, mdl, data, func(ti, ci, ref int) bool {
		r.Reset()
		if !r.Has(ref+meshStripCountOffset, 4) {
			decodeLog.Debug("PS2 mesh header truncated", zap.Int("ref", ref))
			return false
		}
		stripCount := int(r.U16(ref + meshStripCountOffset))
		listIndex := int(r.U16(ref + meshAnimListOffset))

		var list []uint8
		if listIndex != noAnimNodeList && listIndex < len(lists) {
			list = lists[listIndex]
		}

		off := ref + meshNextOffset
		for si := 0; si < stripCount; si++ {
			limit := off + ps2StripSearchWindow
			if limit > r.Len()-3 {
				limit = r.Len() - 3
			}
			pos := r.Index(ps2StripMarker, off, limit+3)
			if pos < 0 {
				decodeLog.Debug("PS2 strip marker not found",
					zap.Int("ref", ref),
					zap.Int("strip", si),
					zap.Int("from", off))
				break
			}
			off = pos + len(ps2StripMarker)

			if !r.Has(off, 1) {
				break
			}
			n := int(r.U8(off))
			off += 1 + ps2CountPadding

			if !r.Has(off, ps2WeightBlock) {
				break
			}
			off += ps2WeightBlock
			if !r.Has(off, ps2PreludeSkip) {
				break
			}
			off += ps2PreludeSkip

			vertices, next, err := parsePS2Strip(r, off, n, list)
			if err != nil {
				decodeLog.Debug("PS2 strip decode failed",
					zap.Int("ref", ref),
					zap.Int("strip", si),
					zap.Int("offset", off),
					zap.Int("vertices", n),
					zap.Error(err))
				break
			}
			off = next

			meshes = append(meshes, MeshData{
				Vertices:       vertices,
				TextureIndex:   ti,
				ComponentIndex: ci,
			})
		}
		return true
	})

	decodeLog.Debug("PS2 chains decoded", zap.Int("meshes", len(meshes)))
	return meshes, nil
}

// parsePS2Strip decodes n vertices starting at the position block and
// returns the offset just past the colour block.
func parsePS2Strip(r *Reader, off, n int, list []uint8) ([]Vertex, int, error) {
	need := func(size int, what string) error {
		if !r.Has(off, size) {
			return fmt.Errorf("%w: %s needs %d bytes at 0x%x", ErrTruncatedMDGData, what, size, off)
		}
		return nil
	}

	if err := need(n*12, "positions"); err != nil {
		return nil, 0, err
	}
	vertices := make([]Vertex, n)
	for i := range vertices {
		vertices[i].Position = r.Vec3(off + i*12)
	}
	off += n * 12

	// Two unknown bytes, then a two-byte marker whose high byte selects the layout.
	if err := need(4, "format marker"); err != nil {
		return nil, 0, err
	}
	format := r.U8(off + 3)
	off += 4

	switch format {
	case ps2FormatNormalsUV:
		if err := need(n*4, "normals"); err != nil {
			return nil, 0, err
		}
		for i := range vertices {
			vertices[i].Normal = byteNormal(r, off+i*4)
		}
		off += n*4 + 4 + n%4

		if err := need(n*8, "texcoords"); err != nil {
			return nil, 0, err
		}
		for i := range vertices {
			vertices[i].TexCoord = fixedUV(r, off+i*8)
		}
		off += n * 8

	case ps2FormatUVOnly:
		if err := need(n*8, "texcoords"); err != nil {
			return nil, 0, err
		}
		for i := range vertices {
			vertices[i].TexCoord = fixedUV(r, off+i*8)
			vertices[i].Normal = [3]float32{0, 0, 1}
		}
		off += n * 8

	default:
		if err := need(n*4, "normals"); err != nil {
			return nil, 0, err
		}
		for i := range vertices {
			p := off + i*4
			vertices[i].Normal = byteNormal(r, p)
			bone := int(r.U8(p+3)) >> 1
			vertices[i].Skin[1] = float32(uint8(remapBone(bone, list, 1)))
		}
		off += n*4 + 4

		if err := need(n*8, "texcoords"); err != nil {
			return nil, 0, err
		}
		for i := range vertices {
			p := off + i*8
			vertices[i].TexCoord = fixedUV(r, p)
			bone := int(r.U16(p+6)) >> 2
			vertices[i].Skin[2] = float32(uint16(remapBone(bone, list, 2)))
		}
		off += n * 8
	}

	if err := need(4, "colour prelude"); err != nil {
		return nil, 0, err
	}
	off += 4
	if err := need(n*4, "colours"); err != nil {
		return nil, 0, err
	}
	for i := range vertices {
		vertices[i].Colour = byteColour(r, off+i*4)
	}
	off += n * 4

	return vertices, off, r.Err()
}

// remapBone maps a packed bone index through the mesh's anim node list.
// Indices outside the list keep their packed value.
func remapBone(index int, list []uint8, shift uint) int {
	if index < len(list) {
		return (int(list[index]) + 1) << shift
	}
	return index << shift
}
