package formatstest

// MDLMagic is the generation 1 signature.
const MDLMagic = 843859021

// Segment is one strip of an MDL2 mesh. Optional attribute slices may be
// shorter than Positions; missing entries are written as zeros.
type Segment struct {
	Positions [][3]float32
	Normals   [][3]int8
	UVs       [][2]int16 // raw 4.12 fixed point
	Skin      [][3]int16 // weight (4.12), bone, bone
	Colours   [][4]uint8
}

// Mesh is an MDL2 mesh record.
type Mesh struct {
	Material string
	Segments []Segment
}

// Subobject is an MDL2 subobject record.
type Subobject struct {
	Name          string
	Material      string
	Bounds        [3][3]float32 // position, size, origin
	TriangleCount uint32
	Meshes        []Mesh
}

// MDL2 describes a generation 1 model file.
type MDL2 struct {
	Name       string
	Bounds     [2][3]float32 // position, size
	Subobjects []Subobject
	Colliders  [][4]float32 // x, y, z, radius
	Bones      [][3]float32
}

const mdlHeaderSize = 0x70

// Bytes encodes the model.
func (m MDL2) Bytes() []byte {
	w := &writer{}
	w.alloc(mdlHeaderSize)
	w.u32(0, MDLMagic)
	w.u16(6, uint16(len(m.Subobjects)))
	w.u16(8, uint16(len(m.Colliders)))
	w.u16(10, uint16(len(m.Bones)))
	w.vec3(32, m.Bounds[0])
	w.vec3(48, m.Bounds[1])

	subOffset := w.alloc(len(m.Subobjects) * 80)
	w.u32(12, uint32(subOffset))

	for i, sub := range m.Subobjects {
		rec := subOffset + i*80
		w.vec3(rec, sub.Bounds[0])
		w.vec3(rec+16, sub.Bounds[1])
		w.vec3(rec+32, sub.Bounds[2])
		w.u32(rec+56, sub.TriangleCount)
		w.u16(rec+66, uint16(len(sub.Meshes)))

		meshOffset := w.alloc(len(sub.Meshes) * 16)
		w.u32(rec+68, uint32(meshOffset))

		for j, mesh := range sub.Meshes {
			mrec := meshOffset + j*16
			w.u32(mrec+12, uint32(len(mesh.Segments)))
			if len(mesh.Segments) > 0 {
				w.u32(mrec+4, uint32(w.len()))
			}
			for _, seg := range mesh.Segments {
				writeSegment(w, seg)
			}
			w.u32(mrec, uint32(w.cstring(mesh.Material)))
		}

		w.u32(rec+48, uint32(w.cstring(sub.Name)))
		w.u32(rec+52, uint32(w.cstring(sub.Material)))
	}

	// The name offset shares its slot with the origin Y of the bounds.
	w.u32(68, uint32(w.cstring(m.Name)))

	w.align(4)
	colliders := w.alloc(len(m.Colliders) * 32)
	w.u32(16, uint32(colliders))
	for i, c := range m.Colliders {
		w.vec3(colliders+i*32, [3]float32{c[0], c[1], c[2]})
		w.f32(colliders+i*32+12, c[3])
	}

	bones := w.alloc(len(m.Bones) * 16)
	w.u32(20, uint32(bones))
	for i, b := range m.Bones {
		w.vec3(bones+i*16, b)
	}

	return w.buf
}

func writeSegment(w *writer, seg Segment) {
	n := len(seg.Positions)
	size := 52 + n*12 + 4 + n*4 + 4 + n*8 + 4 + n*4
	off := w.alloc(size)
	w.u32(off+12, uint32(n))

	positions := off + 52
	normals := positions + n*12 + 4
	texcoords := normals + n*4 + 4
	colours := texcoords + n*8 + 4

	for i, p := range seg.Positions {
		w.vec3(positions+i*12, p)
	}
	for i, nrm := range seg.Normals {
		for a, c := range nrm {
			w.u8(normals+i*4+a, uint8(c))
		}
	}
	for i, uv := range seg.UVs {
		w.u16(texcoords+i*8, uint16(uv[0]))
		w.u16(texcoords+i*8+2, uint16(uv[1]))
	}
	for i, s := range seg.Skin {
		w.u16(texcoords+i*8+4, uint16(s[0]))
		w.u8(texcoords+i*8+6, uint8(int8(s[1])))
		w.u8(texcoords+i*8+7, uint8(int8(s[2])))
	}
	for i, c := range seg.Colours {
		for a, b := range c {
			w.u8(colours+i*4+a, b)
		}
	}
}

// Component is an MDL3 component description.
type Component struct {
	Name   string
	Bounds [3][3]float32
}

// Slot addresses an object lookup table entry.
type Slot struct {
	Texture   int
	Component int
}

// MDL3 describes a generation 2 model header.
type MDL3 struct {
	Bounds        [2][3]float32
	Textures      []string
	Components    []Component
	Lookup        map[Slot]int32 // mesh chain heads in the MDG file
	AnimNodeLists [][]uint8
	MeshCount     uint16
	StripCount    uint16
}

// Bytes encodes the header.
func (m MDL3) Bytes() []byte {
	w := &writer{}
	w.alloc(mdlHeaderSize)
	w.u16(0x4, uint16(len(m.Components)))
	w.u16(0x6, uint16(len(m.Textures)))
	w.u16(0xE, m.MeshCount)
	w.u16(0x10, uint16(len(m.AnimNodeLists)))
	w.u16(0x1E, m.StripCount)
	w.vec3(0x30, m.Bounds[0])
	w.vec3(0x40, m.Bounds[1])

	components := w.alloc(len(m.Components) * 0x40)
	w.u16(0x50, uint16(components))
	for i, c := range m.Components {
		rec := components + i*0x40
		w.vec3(rec, c.Bounds[0])
		w.vec3(rec+16, c.Bounds[1])
		w.vec3(rec+32, c.Bounds[2])
		if c.Name != "" {
			w.u32(rec+0x30, uint32(w.cstring(c.Name)))
		}
	}

	w.align(4)
	textures := w.alloc(len(m.Textures) * 4)
	w.u32(0x54, uint32(textures))
	for i, name := range m.Textures {
		w.u32(textures+i*4, uint32(w.cstring(name)))
	}

	w.align(4)
	table := w.alloc(len(m.Textures) * len(m.Components) * 4)
	w.u32(0x68, uint32(table))
	for slot, ref := range m.Lookup {
		w.u32(table+slot.Texture*4*len(m.Components)+slot.Component*4, uint32(ref))
	}

	if len(m.AnimNodeLists) > 0 {
		lists := w.alloc(len(m.AnimNodeLists) * 0x80)
		w.u32(0x64, uint32(lists))
		for i, list := range m.AnimNodeLists {
			w.u8(lists+i*0x80, uint8(len(list)))
			copy(w.buf[lists+i*0x80+1:], list)
		}
	}

	return w.buf
}
