// Package renderer draws decoded models with OpenGL.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/internal/engine/debug"
	"github.com/Faultbox/tyviewer/internal/engine/mesh"
	"github.com/Faultbox/tyviewer/internal/engine/shader"
	"github.com/Faultbox/tyviewer/internal/model"
)

const vertexShader = `
#version 410 core

layout (location = 0) in vec3 aPos;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aTexCoord;
layout (location = 3) in vec4 aColor;

uniform mat4 uViewProj;

out vec3 vNormal;
out vec4 vColor;

void main() {
	gl_Position = uViewProj * vec4(aPos, 1.0);
	vNormal = aNormal;
	vColor = aColor;
}
`

const fragmentShader = `
#version 410 core

in vec3 vNormal;
in vec4 vColor;

uniform vec3 uTint;
uniform vec3 uLightDir;
uniform bool uWireframe;

out vec4 FragColor;

void main() {
	if (uWireframe) {
		FragColor = vec4(uTint, 1.0);
		return;
	}
	float diffuse = 0.65;
	if (dot(vNormal, vNormal) > 1e-6) {
		diffuse = abs(dot(normalize(vNormal), uLightDir));
	}
	vec3 base = uTint;
	if (vColor.a > 0.0) {
		base *= clamp(vColor.rgb * 2.0, 0.0, 1.0);
	}
	FragColor = vec4(base * (0.35 + 0.65 * diffuse), 1.0);
}
`

// Config holds renderer configuration.
type Config struct {
	Width      int
	Height     int
	Background [3]float32
}

type gpuMesh struct {
	vao, vbo, ebo uint32
	indexCount    int32
	tint          [3]float32
}

// Renderer uploads one model at a time and draws its enabled meshes.
type Renderer struct {
	config  Config
	log     *zap.Logger
	program *shader.Program

	model  *model.Model
	meshes []gpuMesh

	overlay          *debug.Overlay
	lineVAO, lineVBO uint32

	Wireframe   bool
	ShowOverlay bool
}

// New creates a new renderer.
// Must be called after the OpenGL context is created.
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Renderer{config: cfg, log: log}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Disable(gl.CULL_FACE)
	bg := cfg.Background
	gl.ClearColor(bg[0], bg[1], bg[2], 1.0)

	var err error
	r.program, err = shader.NewProgram(vertexShader, fragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader program: %w", err)
	}

	gl.GenVertexArrays(1, &r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)
	gl.BindVertexArray(0)

	r.Resize(cfg.Width, cfg.Height)
	return r, nil
}

// Close releases every GL object.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	r.release()
	if r.lineVAO != 0 {
		gl.DeleteVertexArrays(1, &r.lineVAO)
	}
	if r.lineVBO != 0 {
		gl.DeleteBuffers(1, &r.lineVBO)
	}
	if r.program != nil {
		r.program.Delete()
	}
}

// Resize handles window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// SetModel replaces the uploaded model. Passing nil clears the scene.
func (r *Renderer) SetModel(m *model.Model) {
	r.release()
	r.model = m
	if m == nil {
		return
	}
	r.overlay = debug.NewOverlay(m)

	vertices := 0
	for _, src := range m.Meshes {
		r.meshes = append(r.meshes, upload(src))
		vertices += len(src.Vertices)
	}
	r.log.Debug("model uploaded",
		zap.String("model", m.Name),
		zap.Int("meshes", len(r.meshes)),
		zap.Int("vertices", vertices),
	)
}

func upload(src *model.Mesh) gpuMesh {
	g := gpuMesh{
		indexCount: int32(len(src.Indices)),
		tint:       mesh.MaterialColor(src.Material),
	}
	if len(src.Vertices) == 0 || len(src.Indices) == 0 {
		g.indexCount = 0
		return g
	}
	data := mesh.Interleave(src)

	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	gl.GenBuffers(1, &g.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STATIC_DRAW)

	gl.GenBuffers(1, &g.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(src.Indices)*4, unsafe.Pointer(&src.Indices[0]), gl.STATIC_DRAW)

	stride := int32(mesh.Stride * 4)
	attribs := []struct {
		size   int32
		offset int
	}{
		{3, 0}, // position
		{3, 3}, // normal
		{2, 6}, // texcoord
		{4, 8}, // colour
	}
	for i, a := range attribs {
		gl.VertexAttribPointerWithOffset(uint32(i), a.size, gl.FLOAT, false, stride, uintptr(a.offset*4))
		gl.EnableVertexAttribArray(uint32(i))
	}

	gl.BindVertexArray(0)
	return g
}

func (r *Renderer) release() {
	for i := range r.meshes {
		g := &r.meshes[i]
		if g.vao != 0 {
			gl.DeleteVertexArrays(1, &g.vao)
		}
		if g.vbo != 0 {
			gl.DeleteBuffers(1, &g.vbo)
		}
		if g.ebo != 0 {
			gl.DeleteBuffers(1, &g.ebo)
		}
	}
	r.meshes = r.meshes[:0]
	r.model = nil
	r.overlay = nil
}

// Draw renders the enabled meshes of the current model.
func (r *Renderer) Draw(viewProj mgl32.Mat4) {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	if r.model == nil {
		return
	}

	if r.Wireframe {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
	} else {
		gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
	}

	r.program.Use()
	gl.UniformMatrix4fv(r.program.Uniform("uViewProj"), 1, false, &viewProj[0])
	light := mgl32.Vec3{0.4, 0.8, 0.45}.Normalize()
	gl.Uniform3f(r.program.Uniform("uLightDir"), light[0], light[1], light[2])
	wire := int32(0)
	if r.Wireframe {
		wire = 1
	}
	gl.Uniform1i(r.program.Uniform("uWireframe"), wire)

	for i, g := range r.meshes {
		if g.indexCount == 0 || !r.model.Meshes[i].Enabled {
			continue
		}
		gl.Uniform3f(r.program.Uniform("uTint"), g.tint[0], g.tint[1], g.tint[2])
		gl.BindVertexArray(g.vao)
		gl.DrawElementsWithOffset(gl.TRIANGLES, g.indexCount, gl.UNSIGNED_INT, 0)
	}
	gl.BindVertexArray(0)
	gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)

	if r.ShowOverlay && r.overlay != nil {
		gl.Uniform1i(r.program.Uniform("uWireframe"), 1)
		r.drawLines(r.overlay.Bounds, [3]float32{1, 0.85, 0.2})
		r.drawLines(r.overlay.Colliders, [3]float32{0.2, 1, 0.4})
		r.drawLines(r.overlay.Bones, [3]float32{1, 0.3, 0.3})
	}
}

func (r *Renderer) drawLines(data []float32, color [3]float32) {
	if len(data) == 0 {
		return
	}
	gl.Uniform3f(r.program.Uniform("uTint"), color[0], color[1], color[2])
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(data)/3))
	gl.BindVertexArray(0)
}

// ReadPixels returns the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() (pixels []byte, width, height int) {
	width, height = r.config.Width, r.config.Height
	pixels = make([]byte, width*height*4)
	if len(pixels) == 0 {
		return pixels, width, height
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&pixels[0]))
	return pixels, width, height
}
