package formats

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/pkg/strip"
)

// PC vertex record, 48 bytes:
//
//	+0   flag
//	+4   u, v (float32)
//	+12  position (3 x float32)
//	+24  weight (float32)
//	+28  unknown (2 x float32)
//	+36  normal (3 x float32)
const (
	pcVertexStride   = 48
	pcProbeVertices  = 5
	pcProbeMinValid  = 4
	pcMaxStripCount  = 1000
	pcMaxCoordinate  = 1000
	pcNonZero        = 0.0001
	pcMinNormalLen   = 0.2
	pcMaxNormalLen   = 1.8
	pcBoxMaxPoints   = 8
	pcBoxMaxAxisVals = 2
)

// pcMesh is a mesh header decoded once and replayed for every reference.
type pcMesh struct {
	vertices    []Vertex
	stripCounts []uint16
	renderable  bool
}

// decodePC decodes the interleaved PC layout. Mesh headers may be shared
// between lookup-table slots while their vertex data is stored once, so
// headers are collected in first-seen order, decoded against one shared
// cursor, and then replayed per slot.
func decodePC(data []byte, meta *MDL3Metadata, mdl []byte) ([]MeshData, error) {
	r := NewReader(data)

	start, ok := findPCVertexBlock(r, pcHeaderEnd(r, meta, mdl))
	if !ok {
		return nil, ErrVertexBlockAbsent
	}
	decodeLog.Debug("PC vertex block located", zap.Int("offset", start))

	order := collectMeshRefs(r, meta, mdl)
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: lookup table references no mesh headers", ErrNoMeshes)
	}

	parsed, err := parsePCMeshes(r, order, start)
	if err != nil {
		return nil, err
	}

	var meshes []MeshData
	walkChains(meta, mdl, data, func(ti, ci, ref int) bool {
		m, ok := parsed[ref]
		if !ok || !m.renderable || isCollisionTexture(meta.TextureName(ti)) {
			return true
		}
		meshes = append(meshes, MeshData{
			Vertices:          append([]Vertex(nil), m.vertices...),
			TextureIndex:      ti,
			ComponentIndex:    ci,
			StripVertexCounts: m.stripCounts,
		})
		return true
	})

	decodeLog.Debug("PC meshes decoded",
		zap.Int("unique", len(order)),
		zap.Int("emitted", len(meshes)))
	return meshes, nil
}

// pcHeaderEnd returns the end of the furthest mesh header and its strip descriptors.
func pcHeaderEnd(r *Reader, meta *MDL3Metadata, mdl []byte) int {
	data := r.Bytes()
	end := 0
	visited := make(map[int]bool)
	walkChains(meta, mdl, data, func(_, _, ref int) bool {
		if visited[ref] {
			return false
		}
		visited[ref] = true

		if !r.Has(ref+meshStripCountOffset, 2) {
			return false
		}
		stripCount := int(r.U16(ref + meshStripCountOffset))
		if e := ref + meshHeaderSize + stripCount*2; e > end {
			end = e
		}
		return true
	})
	return end
}

// findPCVertexBlock scans 4-byte aligned offsets from `from` for a run of
// plausible vertices.
func findPCVertexBlock(r *Reader, from int) (int, bool) {
	for off := from &^ 3; off+pcVertexStride*pcProbeVertices <= r.Len(); off += 4 {
		valid := 0
		for v := 0; v < pcProbeVertices; v++ {
			if plausiblePCVertex(r, off+v*pcVertexStride) {
				valid++
			}
		}
		if valid >= pcProbeMinValid {
			return off, true
		}
	}
	return 0, false
}

func plausiblePCVertex(r *Reader, off int) bool {
	pos := r.Vec3(off + 12)
	nonZero := false
	for _, c := range pos {
		if math32.IsNaN(c) || math32.IsInf(c, 0) || math32.Abs(c) >= pcMaxCoordinate {
			return false
		}
		if math32.Abs(c) > pcNonZero {
			nonZero = true
		}
	}
	if !nonZero {
		return false
	}

	n := r.Vec3(off + 36)
	for _, c := range n {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	l := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	return l > pcMinNormalLen && l < pcMaxNormalLen
}

// collectMeshRefs lists unique mesh headers in first-seen traversal order.
func collectMeshRefs(r *Reader, meta *MDL3Metadata, mdl []byte) []int {
	data := r.Bytes()
	var order []int
	seen := make(map[int]bool)
	walkChains(meta, mdl, data, func(_, _, ref int) bool {
		if !seen[ref] {
			seen[ref] = true
			order = append(order, ref)
		}
		return true
	})
	return order
}

// parsePCMeshes decodes each header once, consuming vertex records from
// cursor in header order. A header with an implausible strip count or
// vertex data past the end of the file fails the whole layout.
func parsePCMeshes(r *Reader, order []int, cursor int) (map[int]*pcMesh, error) {
	parsed := make(map[int]*pcMesh, len(order))

	for _, ref := range order {
		r.Reset()
		if !r.Has(ref, 8) {
			continue
		}
		baseCount := int(r.U16(ref))
		dupCount := int(r.U16(ref + 4))
		stripCount := int(r.U16(ref + meshStripCountOffset))
		if stripCount > pcMaxStripCount {
			return nil, fmt.Errorf("%w: %d at mesh 0x%x", ErrImplausibleStrips, stripCount, ref)
		}

		total := baseCount + dupCount
		size := total * pcVertexStride
		if total == 0 {
			parsed[ref] = &pcMesh{}
			continue
		}
		if !r.Has(cursor, size) {
			decodeLog.Debug("PC vertex data exceeds file",
				zap.Int("ref", ref),
				zap.Int("cursor", cursor),
				zap.Int("need", size),
				zap.Int("have", r.Len()-cursor))
			return nil, fmt.Errorf("%w: mesh 0x%x needs %d bytes at 0x%x", ErrTruncatedMDGData, ref, size, cursor)
		}

		var counts []uint16
		if stripCount > 0 && r.Has(ref+meshHeaderSize, stripCount*2) {
			counts = make([]uint16, stripCount)
			for si := range counts {
				counts[si] = r.U16(ref+meshHeaderSize+si*2) & 0xFF
			}
		}

		m := decodePCVertices(r, cursor, total)
		m.renderable = total >= 3 && countNonZero(m.vertices) >= 3 && !isBoxLike(m.vertices)
		if strip.Resolve(counts, total) != strip.Unaligned {
			m.stripCounts = counts
		}

		parsed[ref] = m
		cursor += size
	}

	return parsed, nil
}

func decodePCVertices(r *Reader, off, total int) *pcMesh {
	vertices := make([]Vertex, total)
	uvs := make([][2]float32, total)

	for i := range vertices {
		p := off + i*pcVertexStride
		uvs[i] = [2]float32{r.F32(p + 4), 1 - r.F32(p+8)}
		vertices[i].Position = r.Vec3(p + 12)
		vertices[i].Skin = [3]float32{r.F32(p + 24), 0, 0}
		vertices[i].Normal = r.Vec3(p + 36)
		vertices[i].Colour = [4]float32{1, 1, 1, 1}
	}

	shift := uvShift(vertices, uvs)
	for i := range vertices {
		j := i
		if shift && i+1 < total {
			j = i + 1
		}
		vertices[i].TexCoord = uvs[j]
	}

	return &pcMesh{vertices: vertices}
}

// uvShift reports whether seam vertices (adjacent pairs at one position)
// agree on UV better when each UV is taken from the following record.
func uvShift(vertices []Vertex, uvs [][2]float32) bool {
	pairs, same0, same1 := 0, 0, 0
	for i := 0; i+1 < len(vertices); i++ {
		if !strip.SamePosition(vertices[i].Position, vertices[i+1].Position) {
			continue
		}
		pairs++
		if strip.SameUV(uvs[i], uvs[i+1]) {
			same0++
		}
		if i+2 < len(vertices) && strip.SameUV(uvs[i+1], uvs[i+2]) {
			same1++
		}
	}
	return pairs > 0 && same1 > same0
}

func countNonZero(vertices []Vertex) int {
	n := 0
	for _, v := range vertices {
		p := v.Position
		if math32.Abs(p[0]) > pcNonZero || math32.Abs(p[1]) > pcNonZero || math32.Abs(p[2]) > pcNonZero {
			n++
		}
	}
	return n
}

// isBoxLike detects bounding-box helper meshes: at most eight distinct
// corners with at most two distinct values per axis.
func isBoxLike(vertices []Vertex) bool {
	var axes [3]map[float32]struct{}
	for i := range axes {
		axes[i] = make(map[float32]struct{})
	}
	points := make(map[[3]int32]struct{})

	for _, v := range vertices {
		var q [3]int32
		for a, c := range v.Position {
			axes[a][c] = struct{}{}
			q[a] = int32(math32.Round(c * 1000))
		}
		points[q] = struct{}{}
	}

	return len(points) <= pcBoxMaxPoints &&
		len(axes[0]) <= pcBoxMaxAxisVals &&
		len(axes[1]) <= pcBoxMaxAxisVals &&
		len(axes[2]) <= pcBoxMaxAxisVals
}

// isCollisionTexture reports whether a texture marks collision geometry.
func isCollisionTexture(name string) bool {
	return strings.HasPrefix(name, "CM_") || strings.HasPrefix(name, "cm_")
}
