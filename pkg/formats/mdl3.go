// MDL3 (generation 2) header parser. Geometry is stored in a companion MDG
// file and located through the object lookup table.
package formats

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	mdl3MaxCount      = 1000
	mdl3ComponentSize = 0x40
	animNodeListSize  = 0x80

	// Legacy generation 2 headers beyond this offset hold no subobject records.
	legacySubobjectLimit = 10000
	legacyNameLimit      = 1000000
)

// MDL3Metadata holds the generation 2 header fields needed to decode MDG geometry.
type MDL3Metadata struct {
	ComponentCount uint16
	TextureCount   uint16
	AnimNodeCount  uint16
	RefPointCount  uint16
	MeshCount      uint16
	StripCount     uint16

	ComponentDescriptionsOffset uint16
	TextureListOffset           uint32
	RefPointsOffsetsOffset      uint32
	AnimNodeDataOffset          uint16
	AnimNodeListsOffset         uint32
	ObjectLookupTable           uint32 // [texture][component] table of mesh chain heads
	StringTableOffset           uint16

	TextureNames []string // by texture index
}

// TextureName returns the name of texture i, or "" when out of range.
func (m *MDL3Metadata) TextureName(i int) string {
	if i < 0 || i >= len(m.TextureNames) {
		return ""
	}
	return m.TextureNames[i]
}

// lookupOffset returns the lookup table slot of a (texture, component) pair.
func (m *MDL3Metadata) lookupOffset(texture, component int) int {
	return int(m.ObjectLookupTable) + texture*4*int(m.ComponentCount) + component*4
}

// MeshRef reads the head of the mesh chain for a (texture, component) pair
// from the MDL buffer. ok is false when the slot lies outside mdl.
func (m *MDL3Metadata) MeshRef(mdl []byte, texture, component int) (ref int32, ok bool) {
	off := m.lookupOffset(texture, component)
	r := NewReader(mdl)
	if !r.Has(off, 4) {
		return 0, false
	}
	return r.I32(off), true
}

// AnimNodeLists reads the per-mesh bone remap lists. Each list occupies a
// 0x80-byte slot: a count byte followed by that many node indices. Lists
// that fall outside mdl are returned empty.
func (m *MDL3Metadata) AnimNodeLists(mdl []byte) [][]uint8 {
	if m.AnimNodeListsOffset == 0 {
		return nil
	}

	r := NewReader(mdl)
	if !r.Has(0x10, 2) {
		return nil
	}
	count := int(r.U16(0x10))

	lists := make([][]uint8, count)
	for i := range lists {
		off := int(m.AnimNodeListsOffset) + i*animNodeListSize
		if !r.Has(off, 1) {
			continue
		}
		n := int(r.U8(off))
		if n >= animNodeListSize || !r.Has(off+1, n) {
			continue
		}
		list := make([]uint8, n)
		copy(list, mdl[off+1:off+1+n])
		lists[i] = list
	}
	return lists
}

// ParseMDL3 parses a generation 2 header. Components become subobjects
// carrying only bounds and names.
func ParseMDL3(data []byte) (*MDL, error) {
	r := NewReader(data)

	meta := &MDL3Metadata{
		ComponentCount: r.U16(0x4),
		TextureCount:   r.U16(0x6),
		AnimNodeCount:  r.U16(0x8),
		RefPointCount:  r.U16(0xA),
		MeshCount:      r.U16(0xE),
		StripCount:     r.U16(0x1E),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading counts: %w", err)
	}

	if meta.ComponentCount > mdl3MaxCount || meta.TextureCount > mdl3MaxCount ||
		meta.AnimNodeCount > mdl3MaxCount || meta.RefPointCount > mdl3MaxCount {
		return nil, fmt.Errorf("%w: components=%d textures=%d animNodes=%d refPoints=%d",
			ErrImplausibleCount, meta.ComponentCount, meta.TextureCount, meta.AnimNodeCount, meta.RefPointCount)
	}

	mdl := &MDL{
		Header: readMDLHeader(r),
		Bounds: Bounds{
			Position: r.Vec3(0x30),
			Size:     r.Vec3(0x40),
		},
		Meta: meta,
	}

	meta.ComponentDescriptionsOffset = r.U16(0x50)
	meta.TextureListOffset = r.U32(0x54)
	meta.RefPointsOffsetsOffset = r.U32(0x58)
	meta.AnimNodeDataOffset = r.U16(0x5C)
	meta.AnimNodeListsOffset = r.U32(0x64)
	meta.ObjectLookupTable = r.U32(0x68)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	meta.TextureNames = make([]string, meta.TextureCount)
	for i := range meta.TextureNames {
		nameOffset := r.U32(int(meta.TextureListOffset) + i*4)
		meta.TextureNames[i] = r.CString(int(nameOffset))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("reading texture names: %w", err)
	}

	if meta.ComponentDescriptionsOffset > 0 {
		off := int(meta.ComponentDescriptionsOffset) + 0x34
		if r.Has(off, 2) {
			meta.StringTableOffset = r.U16(off)
		}
	}

	mdl.Subobjects = make([]Subobject, meta.ComponentCount)
	for i := range mdl.Subobjects {
		off := int(meta.ComponentDescriptionsOffset) + i*mdl3ComponentSize
		if !r.Has(off, 0x34) {
			continue
		}
		sub := &mdl.Subobjects[i]
		sub.Bounds = readBounds(r, off)
		if nameOffset := r.U32(off + 0x30); nameOffset > 0 && r.Has(int(nameOffset), 1) {
			sub.Name = r.CString(int(nameOffset))
		}
	}

	mdl.Colliders, mdl.Bones = ParseAttachments(data)

	decodeLog.Debug("parsed MDL3 header",
		zap.Uint16("components", meta.ComponentCount),
		zap.Uint16("textures", meta.TextureCount),
		zap.Uint16("animNodes", meta.AnimNodeCount),
		zap.Uint16("refPoints", meta.RefPointCount),
		zap.Uint16("meshes", meta.MeshCount),
		zap.Uint16("strips", meta.StripCount),
		zap.Uint32("lookupTable", meta.ObjectLookupTable))

	return mdl, nil
}

// ParseTY2 parses a generation 2 model header. The MDL3 layout is tried
// first; files that fail it are read with the generation 1 layout under
// relaxed validation, substituting empty subobjects for records that do
// not decode.
func ParseTY2(data []byte) (*MDL, error) {
	mdl, err := ParseMDL3(data)
	if err == nil {
		return mdl, nil
	}
	decodeLog.Debug("MDL3 layout rejected, trying legacy layout", zap.Error(err))

	return parseLegacyTY2(data)
}

func parseLegacyTY2(data []byte) (*MDL, error) {
	r := NewReader(data)
	if !r.Has(0, 76) {
		return nil, fmt.Errorf("%w: header needs 76 bytes, have %d", ErrTruncatedMDLData, len(data))
	}

	header := readMDLHeader(r)
	if header.SubobjectCount > mdl3MaxCount || header.ColliderCount > mdl3MaxCount || header.BoneCount > mdl3MaxCount {
		return nil, fmt.Errorf("%w: subobjects=%d colliders=%d bones=%d",
			ErrImplausibleCount, header.SubobjectCount, header.ColliderCount, header.BoneCount)
	}

	mdl := &MDL{
		Header: header,
		Bounds: readBounds(r, 32),
	}

	if nameOffset := r.U32(68); nameOffset > 0 && nameOffset < legacyNameLimit && r.Has(int(nameOffset), 1) {
		mdl.Name = r.CString(int(nameOffset))
	}

	mdl.Subobjects = make([]Subobject, header.SubobjectCount)

	skip := header.SubobjectOffset > legacySubobjectLimit ||
		(header.SubobjectOffset == 0 && header.SubobjectCount > 0)
	if skip {
		decodeLog.Debug("legacy subobject offset implausible, using empty subobjects",
			zap.Uint32("offset", header.SubobjectOffset),
			zap.Uint16("count", header.SubobjectCount))
	} else {
		for i, sub := range parseSubobjects(data, int(header.SubobjectOffset), int(header.SubobjectCount)) {
			if sub.err != nil {
				decodeLog.Debug("subobject failed, substituting empty placeholder",
					zap.Int("index", i),
					zap.Int("offset", sub.offset),
					zap.Error(sub.err))
				continue
			}
			mdl.Subobjects[i] = sub.value
		}
	}

	mdl.Colliders, mdl.Bones = ParseAttachments(data)
	return mdl, nil
}

type subobjectResult struct {
	value  Subobject
	offset int
	err    error
}

// parseSubobjects decodes count consecutive records, keeping per-record failures.
func parseSubobjects(data []byte, off, count int) []subobjectResult {
	results := make([]subobjectResult, count)
	for i := range results {
		sub, err := parseSubobject(data, off)
		results[i] = subobjectResult{value: sub, offset: off, err: err}
		off += mdlSubobjectSize
	}
	return results
}
