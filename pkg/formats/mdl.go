// MDL2 (generation 1) model parser. Vertex data is embedded in the file as
// segments of triangle strips.
package formats

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MDLMagic is "MDL2" read as a little-endian uint32.
const MDLMagic uint32 = 843859021

const (
	mdlSubobjectSize = 80
	mdlMeshSize      = 16
	mdlColliderSize  = 32
	mdlBoneSize      = 16

	segmentVertexCountOffset = 12
	segmentVertexListOffset  = 52
)

// MDL format errors.
var (
	ErrInvalidMDLMagic  = errors.New("invalid MDL magic: expected 'MDL2'")
	ErrTruncatedMDLData = errors.New("truncated MDL data")
	ErrImplausibleCount = errors.New("implausible MDL count")
	ErrInvalidOffset    = errors.New("implausible MDL offset")
)

// MDLHeader holds the fixed fields at the start of every MDL file.
type MDLHeader struct {
	Magic           uint32
	FragmentCount   uint16
	SubobjectCount  uint16
	ColliderCount   uint16
	BoneCount       uint16
	SubobjectOffset uint32
	ColliderOffset  uint32
	BoneOffset      uint32
}

// Segment is one strip of vertices inside a mesh.
type Segment struct {
	Vertices []Vertex
}

// Mesh is a run of segments sharing one material.
type Mesh struct {
	Material string
	Segments []Segment
}

// VertexCount returns the number of vertices over all segments.
func (m *Mesh) VertexCount() int {
	n := 0
	for _, s := range m.Segments {
		n += len(s.Vertices)
	}
	return n
}

// Subobject is a named part of a model. Generation 2 components decode
// into subobjects without meshes.
type Subobject struct {
	Bounds        Bounds
	Name          string
	Material      string
	TriangleCount uint32
	Meshes        []Mesh
}

// MDL is a decoded model header with, for generation 1, its geometry.
type MDL struct {
	Header     MDLHeader
	Bounds     Bounds
	Name       string
	Subobjects []Subobject
	Colliders  []Collider
	Bones      []Bone

	// Meta is set when the file decoded as an MDL3 header.
	Meta *MDL3Metadata
}

// IsMDL3 reports whether geometry lives in a companion MDG file described by Meta.
func (m *MDL) IsMDL3() bool {
	return m.Meta != nil
}

// ParseMDL parses a generation 1 model.
func ParseMDL(data []byte) (*MDL, error) {
	r := NewReader(data)
	if len(data) < 76 {
		return nil, fmt.Errorf("%w: header needs 76 bytes, have %d", ErrTruncatedMDLData, len(data))
	}

	header := readMDLHeader(r)
	if header.Magic != MDLMagic {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMDLMagic, header.Magic)
	}

	mdl := &MDL{
		Header: header,
		Bounds: readBounds(r, 32),
		Name:   r.CString(int(r.U32(68))),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading name: %w", err)
	}

	mdl.Subobjects = make([]Subobject, header.SubobjectCount)
	off := int(header.SubobjectOffset)
	for i := range mdl.Subobjects {
		sub, err := parseSubobject(data, off)
		if err != nil {
			return nil, fmt.Errorf("subobject %d at 0x%x: %w", i, off, err)
		}
		mdl.Subobjects[i] = sub
		off += mdlSubobjectSize
	}

	mdl.Colliders, mdl.Bones = ParseAttachments(data)
	return mdl, nil
}

func readMDLHeader(r *Reader) MDLHeader {
	return MDLHeader{
		Magic:           r.U32(0),
		FragmentCount:   r.U16(4),
		SubobjectCount:  r.U16(6),
		ColliderCount:   r.U16(8),
		BoneCount:       r.U16(10),
		SubobjectOffset: r.U32(12),
		ColliderOffset:  r.U32(16),
		BoneOffset:      r.U32(20),
	}
}

// readBounds reads position, size and origin triplets at 16-byte spacing.
func readBounds(r *Reader, off int) Bounds {
	return Bounds{
		Position: r.Vec3(off),
		Size:     r.Vec3(off + 16),
		Origin:   r.Vec3(off + 32),
	}
}

// ParseAttachments reads the collider and bone tables referenced by the
// header. Both generations store them identically. Entries running past
// the end of data are dropped.
func ParseAttachments(data []byte) ([]Collider, []Bone) {
	r := NewReader(data)
	if !r.Has(0, 24) {
		return nil, nil
	}
	header := readMDLHeader(r)

	var colliders []Collider
	for i := 0; i < int(header.ColliderCount); i++ {
		off := int(header.ColliderOffset) + i*mdlColliderSize
		if !r.Has(off, mdlColliderSize) {
			continue
		}
		colliders = append(colliders, Collider{
			Position: r.Vec3(off),
			Radius:   r.F32(off + 12),
		})
	}

	var bones []Bone
	for i := 0; i < int(header.BoneCount); i++ {
		off := int(header.BoneOffset) + i*mdlBoneSize
		if !r.Has(off, mdlBoneSize) {
			continue
		}
		bones = append(bones, Bone{Position: r.Vec3(off)})
	}

	return colliders, bones
}

// maxSubobjectOffset rejects subobject records placed implausibly far into the file.
const maxSubobjectOffset = 1000000

func parseSubobject(data []byte, off int) (Subobject, error) {
	if off > maxSubobjectOffset {
		return Subobject{}, fmt.Errorf("%w: subobject at 0x%x", ErrInvalidOffset, off)
	}

	r := NewReader(data)
	if !r.Has(off, mdlSubobjectSize) {
		return Subobject{}, fmt.Errorf("%w: subobject record at 0x%x", ErrTruncatedMDLData, off)
	}

	sub := Subobject{
		Bounds:        readBounds(r, off),
		Name:          r.CString(int(r.U32(off + 48))),
		Material:      r.CString(int(r.U32(off + 52))),
		TriangleCount: r.U32(off + 56),
	}
	if err := r.Err(); err != nil {
		return Subobject{}, fmt.Errorf("subobject names: %w", err)
	}

	meshCount := int(r.U16(off + 66))
	meshOffset := int(r.U32(off + 68))
	if !r.Has(meshOffset, meshCount*mdlMeshSize) {
		return Subobject{}, fmt.Errorf("%w: %d mesh records at 0x%x", ErrTruncatedMDLData, meshCount, meshOffset)
	}

	sub.Meshes = make([]Mesh, meshCount)
	for i := range sub.Meshes {
		mesh, err := parseMesh(r, meshOffset)
		if err != nil {
			return Subobject{}, fmt.Errorf("mesh %d: %w", i, err)
		}
		sub.Meshes[i] = mesh
		meshOffset += mdlMeshSize
	}

	return sub, nil
}

func parseMesh(r *Reader, off int) (Mesh, error) {
	mesh := Mesh{Material: r.CString(int(r.U32(off)))}
	segmentOffset := int(r.U32(off + 4))
	segmentCount := int(r.U32(off + 12))
	if err := r.Err(); err != nil {
		return Mesh{}, err
	}

	// Every segment occupies at least its fixed header.
	if !r.Has(segmentOffset, segmentCount*segmentVertexListOffset) {
		return Mesh{}, fmt.Errorf("%w: %d segments at 0x%x", ErrTruncatedMDLData, segmentCount, segmentOffset)
	}

	mesh.Segments = make([]Segment, segmentCount)
	for i := range mesh.Segments {
		seg, size, err := parseSegment(r, segmentOffset)
		if err != nil {
			return Mesh{}, fmt.Errorf("segment %d at 0x%x: %w", i, segmentOffset, err)
		}
		mesh.Segments[i] = seg
		segmentOffset += size
	}

	return mesh, nil
}

// segmentSize is the byte size of a segment holding n vertices.
func segmentSize(n int) int {
	return segmentVertexListOffset + n*12 + 4 + n*4 + 4 + n*8 + 4 + n*4
}

func parseSegment(r *Reader, off int) (Segment, int, error) {
	n := int(r.U32(off + segmentVertexCountOffset))
	if err := r.Err(); err != nil {
		return Segment{}, 0, err
	}

	size := segmentSize(n)
	if !r.Has(off, size) {
		decodeLog.Debug("segment exceeds buffer",
			zap.Int("offset", off),
			zap.Int("vertices", n),
			zap.Int("expected", size),
			zap.Int("available", r.Len()-off))
		return Segment{}, 0, fmt.Errorf("%w: %d vertices need %d bytes", ErrTruncatedMDLData, n, size)
	}

	positions := off + segmentVertexListOffset
	normals := positions + n*12 + 4
	texcoords := normals + n*4 + 4
	colours := texcoords + n*8 + 4

	vertices := make([]Vertex, n)
	for i := range vertices {
		v := &vertices[i]
		v.Position = r.Vec3(positions + i*12)

		v.Normal = byteNormal(r, normals+i*4)

		p := texcoords + i*8
		v.TexCoord = fixedUV(r, p)
		v.Skin = [3]float32{
			float32(r.I16(p+4)) / 4096,
			float32(r.I8(p + 6)),
			float32(r.I8(p + 7)),
		}

		v.Colour = byteColour(r, colours+i*4)
	}

	return Segment{Vertices: vertices}, size, r.Err()
}
