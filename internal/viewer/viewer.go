// Package viewer implements the interactive model viewer loop.
package viewer

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/internal/assets"
	"github.com/Faultbox/tyviewer/internal/config"
	"github.com/Faultbox/tyviewer/internal/engine/camera"
	"github.com/Faultbox/tyviewer/internal/engine/debug"
	"github.com/Faultbox/tyviewer/internal/engine/input"
	"github.com/Faultbox/tyviewer/internal/engine/picking"
	"github.com/Faultbox/tyviewer/internal/engine/renderer"
	"github.com/Faultbox/tyviewer/internal/engine/window"
	"github.com/Faultbox/tyviewer/internal/export"
	"github.com/Faultbox/tyviewer/internal/session"
)

// Viewer owns the window, the GL renderer and the session.
type Viewer struct {
	cfg     *config.Config
	log     *zap.Logger
	assets  *assets.Manager
	session *session.Session

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	shots    *debug.ScreenshotCapture

	running    bool
	screenshot bool
	status     string

	pressX, pressY int
}

// clickSlop is how far the mouse may move between press and release for
// the release to count as a click.
const clickSlop = 3

// New mounts the configured archives and opens the window.
func New(cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Viewer{
		cfg:    cfg,
		log:    log,
		assets: assets.NewManager(log.Named("assets")),
		camera: camera.NewOrbitCamera(cfg.Viewer.FOV),
		input:  input.New(),
		shots:  debug.NewScreenshotCapture(filepath.Join(cfg.Export.Directory, "screenshots"), "tyviewer"),
	}

	start, err := v.mountArchives()
	if err != nil {
		return nil, err
	}

	v.session, err = session.New(v.assets, start, log.Named("session"))
	if err != nil {
		return nil, err
	}

	v.window, err = window.New(window.Config{
		Title:      "TYViewer",
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	}, log.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	width, height := v.window.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:      width,
		Height:     height,
		Background: cfg.Viewer.Background,
	}, log.Named("renderer"))
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	first := v.session.Find(cfg.Viewer.Model)
	if first < 0 {
		first = 0
	}
	v.session.Select(first)
	return v, nil
}

// mountArchives mounts every configured archive and returns the slot to
// start in: the configured one if it mounted, otherwise any mounted slot.
func (v *Viewer) mountArchives() (assets.Slot, error) {
	var mounted []assets.Slot
	for _, slot := range []assets.Slot{assets.SlotTY1, assets.SlotTY2} {
		p := v.cfg.Archive(slot.String())
		if p == "" {
			continue
		}
		if err := v.assets.Mount(slot, p); err != nil {
			v.log.Warn("archive not mounted", zap.Stringer("slot", slot), zap.String("path", p), zap.Error(err))
			continue
		}
		mounted = append(mounted, slot)
	}
	if len(mounted) == 0 {
		return 0, errors.New("no archive could be mounted; set data.ty1_archive or data.ty2_archive")
	}

	want, err := assets.ParseSlot(v.cfg.Viewer.Slot)
	if err == nil {
		for _, slot := range mounted {
			if slot == want {
				return slot, nil
			}
		}
	}
	return mounted[0], nil
}

// Run starts the main loop and returns when the window closes.
func (v *Viewer) Run() error {
	v.running = true

	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")
	for v.running {
		if v.input.Update() {
			v.running = false
			break
		}
		for _, event := range v.input.Events() {
			v.handleEvent(event)
		}

		if changed, err := v.session.Poll(); err != nil {
			v.setStatus("load failed: %v", err)
		} else if changed {
			v.showCurrent()
		}

		view := v.camera.ViewMatrix()
		proj := v.camera.ProjectionMatrix(v.renderer.Aspect())
		v.renderer.Draw(proj.Mul4(view))
		if v.screenshot {
			v.screenshot = false
			v.capture()
		}
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.log.Debug("fps", zap.Int("count", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

// showCurrent uploads the session's model and frames it.
func (v *Viewer) showCurrent() {
	name, slot, m := v.session.Current()
	v.renderer.SetModel(m)
	min, max := m.Extent()
	v.camera.FitToBounds(mgl32.Vec3(min), mgl32.Vec3(max))
	v.cfg.Remember(slot.String(), name)
	v.shots.SetPrefix(strings.TrimSuffix(path.Base(name), path.Ext(name)))
	v.setStatus("%d meshes, %d triangles", len(m.Meshes), m.TriangleCount())
}

func (v *Viewer) handleEvent(event input.Event) {
	switch event.Type {
	case input.EventWindowResize:
		width, height := v.window.DrawableSize()
		v.renderer.Resize(width, height)

	case input.EventMouseMove:
		switch {
		case v.input.ButtonHeld(sdl.BUTTON_LEFT):
			v.camera.HandleDrag(float32(event.DeltaX), float32(event.DeltaY))
		case v.input.ButtonHeld(sdl.BUTTON_RIGHT), v.input.ButtonHeld(sdl.BUTTON_MIDDLE):
			v.camera.HandlePan(float32(event.DeltaX), float32(event.DeltaY))
		}

	case input.EventMouseDown:
		if event.Button == sdl.BUTTON_LEFT {
			v.pressX, v.pressY = event.MouseX, event.MouseY
		}

	case input.EventMouseUp:
		if event.Button == sdl.BUTTON_LEFT &&
			abs(event.MouseX-v.pressX) < clickSlop && abs(event.MouseY-v.pressY) < clickSlop {
			v.pick(event.MouseX, event.MouseY)
		}

	case input.EventMouseWheel:
		v.camera.HandleZoom(float32(event.DeltaY))

	case input.EventKeyDown:
		v.handleKey(event)
	}
}

func (v *Viewer) handleKey(event input.Event) {
	switch event.Key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false
	case sdl.SCANCODE_RIGHT, sdl.SCANCODE_DOWN:
		v.session.Next()
		v.updateTitle()
	case sdl.SCANCODE_LEFT, sdl.SCANCODE_UP:
		v.session.Prev()
		v.updateTitle()
	case sdl.SCANCODE_TAB:
		if event.Repeat {
			return
		}
		v.switchSlot()
	case sdl.SCANCODE_E:
		v.export(export.FormatOBJ)
	case sdl.SCANCODE_G:
		v.export(export.FormatGLTF)
	case sdl.SCANCODE_W:
		v.renderer.Wireframe = !v.renderer.Wireframe
	case sdl.SCANCODE_B:
		v.renderer.ShowOverlay = !v.renderer.ShowOverlay
		v.setStatus("bounds overlay %s", onOff(v.renderer.ShowOverlay))
	case sdl.SCANCODE_P:
		v.screenshot = true
	case sdl.SCANCODE_R:
		if _, _, m := v.session.Current(); m != nil {
			min, max := m.Extent()
			v.camera.FitToBounds(mgl32.Vec3(min), mgl32.Vec3(max))
		}
	case sdl.SCANCODE_F:
		v.window.ToggleFullscreen()
	default:
		if i, ok := meshKey(event.Key, event.Shift); ok {
			if enabled, ok := v.session.ToggleMesh(i); ok {
				v.setStatus("mesh %d %s", i, onOff(enabled))
			}
		}
	}
}

// meshKey maps 1..9,0 to meshes 0..9, and to 10..19 with shift held.
func meshKey(key sdl.Scancode, shift bool) (int, bool) {
	if key < sdl.SCANCODE_1 || key > sdl.SCANCODE_0 {
		return 0, false
	}
	i := int(key - sdl.SCANCODE_1)
	if shift {
		i += 10
	}
	return i, true
}

// pick reports the mesh under the cursor in the status line.
func (v *Viewer) pick(x, y int) {
	_, _, m := v.session.Current()
	if m == nil {
		return
	}
	width, height := v.window.Size()
	if width == 0 || height == 0 {
		return
	}
	view := v.camera.ViewMatrix()
	proj := v.camera.ProjectionMatrix(v.renderer.Aspect())
	ray := picking.ScreenToRay(float32(x), float32(y), float32(width), float32(height), proj.Mul4(view).Inv())

	i, _, ok := picking.PickMesh(ray, m)
	if !ok {
		v.setStatus("nothing under cursor")
		return
	}
	mesh := m.Meshes[i]
	v.setStatus("mesh %d %s (%d triangles)", i, mesh.Material, mesh.TriangleCount())
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (v *Viewer) switchSlot() {
	next := assets.SlotTY1
	if v.session.Slot() == assets.SlotTY1 {
		next = assets.SlotTY2
	}
	if err := v.session.SwitchSlot(next); err != nil {
		v.setStatus("%s archive not available", next)
		return
	}
	v.updateTitle()
}

func (v *Viewer) export(format export.Format) {
	out, err := v.session.Export(format, v.cfg.Export.Directory)
	if err != nil {
		v.log.Error("export failed", zap.Error(err))
		v.setStatus("export failed: %v", err)
		return
	}
	v.setStatus("exported %s", out)
}

func (v *Viewer) capture() {
	pixels, width, height := v.renderer.ReadPixels()
	out, err := v.shots.CaptureFromPixels(pixels, width, height)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		v.setStatus("screenshot failed: %v", err)
		return
	}
	v.setStatus("saved %s", out)
}

func (v *Viewer) setStatus(format string, args ...any) {
	v.status = fmt.Sprintf(format, args...)
	v.updateTitle()
}

// updateTitle shows the model, its position in the list and the status line.
func (v *Viewer) updateTitle() {
	name, _, m := v.session.Current()
	if pending := v.session.Pending(); pending != "" {
		name = pending + " (loading)"
	}
	title := fmt.Sprintf("TYViewer [%s] %d/%d %s", v.session.Slot(), v.session.Index()+1,
		len(v.session.Models()), path.Base(name))
	if m != nil && v.session.Pending() == "" {
		title += fmt.Sprintf(" %s", m.Generation)
		if m.Format != 0 {
			title += fmt.Sprintf("/%s", m.Format)
		}
	}
	if v.status != "" {
		title += " | " + v.status
	}
	v.window.SetTitle(title)
}

// Close saves the last model to the config file and releases everything.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.session != nil {
		v.session.Close()
	}
	if err := v.cfg.Save(); err != nil {
		v.log.Warn("failed to save config", zap.Error(err))
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
	v.assets.Close()
}
