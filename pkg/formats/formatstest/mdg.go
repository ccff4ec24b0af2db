package formatstest

// PS2 strip layouts.
const (
	PS2NormalsUV = 0x6A
	PS2UVOnly    = 0x65
	PS2Skinned   = 0x6C
)

var ps2StripMarker = []byte{0x00, 0x80, 0x02, 0x6C}

// PS2Strip is one VIF strip packet. Bones holds the raw fourth normal byte
// and Bones2 the raw last texcoord halfword of the skinned layout.
type PS2Strip struct {
	Format    byte
	Positions [][3]float32
	Normals   [][3]int8
	Bones     []uint8
	UVs       [][2]int16
	Bones2    []uint16
	Colours   [][4]uint8
}

// PS2Mesh is a PS2 mesh header followed by its strip packets.
type PS2Mesh struct {
	AnimNodeList uint16 // 0xFFFF for none
	Strips       []PS2Strip
	// DeclaredStrips overrides the header strip count when non-zero.
	DeclaredStrips uint16
}

// PCVertex is one 48-byte PC vertex record.
type PCVertex struct {
	UV       [2]float32
	Position [3]float32
	Weight   float32
	Normal   [3]float32
}

// PCMesh is a PC mesh header. Its vertex records are appended to the
// shared vertex block in the order meshes are added.
type PCMesh struct {
	DupCount    uint16
	StripCounts []uint16
	Vertices    []PCVertex
}

// MDG assembles a geometry file. Mesh references returned by the Add
// methods are absolute offsets suitable for an MDL3 lookup table.
type MDG struct {
	w        writer
	pcBlock  []PCVertex
	Trailing []byte // appended after the PC vertex block
}

// NewMDG starts an MDG file with a 4-byte preamble so no mesh sits at 0.
func NewMDG() *MDG {
	g := &MDG{}
	g.w.bytes([]byte("MDG3"))
	return g
}

// AddPS2Mesh writes a PS2 mesh header and its strip packets.
func (g *MDG) AddPS2Mesh(m PS2Mesh) int32 {
	w := &g.w
	w.align(4)
	ref := w.alloc(0x10)
	strips := m.DeclaredStrips
	if strips == 0 {
		strips = uint16(len(m.Strips))
	}
	w.u16(ref+6, strips)
	w.u16(ref+8, m.AnimNodeList)

	for _, s := range m.Strips {
		writePS2Strip(w, s)
	}
	return int32(ref)
}

func writePS2Strip(w *writer, s PS2Strip) {
	n := len(s.Positions)
	w.bytes(ps2StripMarker)
	off := w.alloc(4 + 32 + 0x27)
	w.u8(off, uint8(n))

	off = w.alloc(n * 12)
	for i, p := range s.Positions {
		w.vec3(off+i*12, p)
	}

	off = w.alloc(4)
	w.u8(off+2, 0x03)
	w.u8(off+3, s.Format)

	normals := func(withBones bool) {
		off := w.alloc(n * 4)
		for i := 0; i < n; i++ {
			if i < len(s.Normals) {
				for a, c := range s.Normals[i] {
					w.u8(off+i*4+a, uint8(c))
				}
			}
			if withBones && i < len(s.Bones) {
				w.u8(off+i*4+3, s.Bones[i])
			}
		}
	}
	uvs := func(withBones bool) {
		off := w.alloc(n * 8)
		for i := 0; i < n; i++ {
			if i < len(s.UVs) {
				w.u16(off+i*8, uint16(s.UVs[i][0]))
				w.u16(off+i*8+2, uint16(s.UVs[i][1]))
			}
			if withBones && i < len(s.Bones2) {
				w.u16(off+i*8+6, s.Bones2[i])
			}
		}
	}

	switch s.Format {
	case PS2NormalsUV:
		normals(false)
		w.alloc(4 + n%4)
		uvs(false)
	case PS2UVOnly:
		uvs(false)
	default:
		normals(true)
		w.alloc(4)
		uvs(true)
	}

	w.alloc(4)
	off = w.alloc(n * 4)
	for i, c := range s.Colours {
		for a, b := range c {
			w.u8(off+i*4+a, b)
		}
	}
}

// AddPCMesh writes a PC mesh header and queues its vertex records.
func (g *MDG) AddPCMesh(m PCMesh) int32 {
	w := &g.w
	w.align(4)
	ref := w.alloc(0x10 + len(m.StripCounts)*2)
	w.u16(ref, uint16(len(m.Vertices))-m.DupCount)
	w.u16(ref+4, m.DupCount)
	w.u16(ref+6, uint16(len(m.StripCounts)))
	for i, c := range m.StripCounts {
		w.u16(ref+0x10+i*2, c)
	}
	g.pcBlock = append(g.pcBlock, m.Vertices...)
	return int32(ref)
}

// Link chains the mesh at to after the mesh at from.
func (g *MDG) Link(from, to int32) {
	g.w.u32(int(from)+0xC, uint32(to))
}

// Bytes returns the file with the PC vertex block, if any, appended.
func (g *MDG) Bytes() []byte {
	w := writer{buf: append([]byte(nil), g.w.buf...)}
	if len(g.pcBlock) > 0 {
		w.align(4)
		off := w.alloc(len(g.pcBlock) * 48)
		for i, v := range g.pcBlock {
			p := off + i*48
			w.f32(p+4, v.UV[0])
			w.f32(p+8, v.UV[1])
			w.vec3(p+12, v.Position)
			w.f32(p+24, v.Weight)
			w.vec3(p+36, v.Normal)
		}
	}
	w.bytes(g.Trailing)
	return w.buf
}

// GenericStrip writes one marker-delimited strip in the layout the
// metadata-free scanner expects.
func GenericStrip(positions [][3]float32, normals [][3]int8, uvs [][2]int16, colours [][4]uint8) []byte {
	n := len(positions)
	w := &writer{}
	w.bytes(ps2StripMarker)
	off := w.alloc(4)
	w.u32(off, uint32(n))
	w.alloc(32 + 4)

	off = w.alloc(n * 12)
	for i, p := range positions {
		w.vec3(off+i*12, p)
	}

	w.bytes([]byte{0x03, 0x80, 0, 0})
	off = w.alloc(n * 4)
	for i, nrm := range normals {
		for a, c := range nrm {
			w.u8(off+i*4+a, uint8(c))
		}
	}

	w.alloc(4)
	off = w.alloc(n * 8)
	for i, uv := range uvs {
		w.u16(off+i*8, uint16(uv[0]))
		w.u16(off+i*8+2, uint16(uv[1]))
	}

	w.alloc(4)
	off = w.alloc(n * 4)
	for i, c := range colours {
		for a, b := range c {
			w.u8(off+i*4+a, b)
		}
	}
	return w.buf
}
