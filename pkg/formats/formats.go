// Package formats provides decoders for TY model files.
//
// Generation 1 models are self-contained MDL2 files. Generation 2 models
// split into an MDL3 header and an MDG geometry file whose layout is
// detected at load time.
package formats

// Bounds is an axis-aligned box as stored in model headers.
type Bounds struct {
	Position [3]float32
	Size     [3]float32
	Origin   [3]float32
}

// Vertex is the decoded form shared by every model layout.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	TexCoord [2]float32
	Skin     [3]float32 // weight, bone index, bone index
	Colour   [4]float32
}

// Collider is a bounding sphere attached to the model.
type Collider struct {
	Position [3]float32
	Radius   float32
}

// Bone is a skeleton node in its rest position.
type Bone struct {
	Position [3]float32
}
