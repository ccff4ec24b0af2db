// Package session tracks what the viewer shows: the active archive slot, the
// model list of that slot and the model on screen. Models decode on a
// background goroutine and are handed back through a single channel, so the
// render loop never blocks on a load.
package session

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/internal/assets"
	"github.com/Faultbox/tyviewer/internal/export"
	"github.com/Faultbox/tyviewer/internal/model"
)

// ErrNoModel is returned by operations that need a model on screen.
var ErrNoModel = errors.New("no model loaded")

// Content is the part of the asset manager a session needs.
type Content interface {
	ModelList(slot assets.Slot) []string
	LoadModel(ctx context.Context, slot assets.Slot, name string) (*model.Model, error)
	SetActive(slot assets.Slot) error
	TextureIn(slot assets.Slot, material string) ([]byte, error)
}

// slotTextures serves textures from the slot a model was loaded from, which
// may no longer be the active one.
type slotTextures struct {
	content Content
	slot    assets.Slot
}

func (t slotTextures) Texture(material string) ([]byte, error) {
	return t.content.TextureIn(t.slot, material)
}

// Result is the outcome of one background load.
type Result struct {
	Slot  assets.Slot
	Name  string
	Model *model.Model
	Err   error

	seq uint64
}

// Session is not safe for concurrent use. Only the loader goroutines it
// starts run concurrently, and they only send on results.
type Session struct {
	content Content
	log     *zap.Logger

	slot  assets.Slot
	names []string
	index int

	current     *model.Model
	currentName string
	currentSlot assets.Slot

	results chan Result
	seq     uint64
	cancel  context.CancelFunc
	pending string
}

// New creates a session showing slot. The slot must be mounted.
func New(content Content, slot assets.Slot, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		content: content,
		log:     log,
		results: make(chan Result),
		index:   -1,
	}
	if err := s.setSlot(slot); err != nil {
		return nil, err
	}
	return s, nil
}

// Slot returns the active archive slot.
func (s *Session) Slot() assets.Slot {
	return s.slot
}

// Models returns the model names of the active slot.
func (s *Session) Models() []string {
	return s.names
}

// Index returns the list position of the selected model, or -1.
func (s *Session) Index() int {
	return s.index
}

// Current returns the model on screen and the slot it came from. m is nil
// until the first load succeeds.
func (s *Session) Current() (name string, slot assets.Slot, m *model.Model) {
	return s.currentName, s.currentSlot, s.current
}

// Pending returns the name of the model being loaded, or "".
func (s *Session) Pending() string {
	return s.pending
}

func (s *Session) setSlot(slot assets.Slot) error {
	if err := s.content.SetActive(slot); err != nil {
		return err
	}
	s.slot = slot
	s.names = append([]string(nil), s.content.ModelList(slot)...)
	sort.Slice(s.names, func(i, j int) bool {
		return strings.ToLower(s.names[i]) < strings.ToLower(s.names[j])
	})
	s.index = -1
	return nil
}

// SwitchSlot makes slot active and starts loading its first model.
func (s *Session) SwitchSlot(slot assets.Slot) error {
	if slot == s.slot {
		return nil
	}
	if err := s.setSlot(slot); err != nil {
		return err
	}
	s.log.Info("switched archive", zap.Stringer("slot", slot), zap.Int("models", len(s.names)))
	if len(s.names) > 0 {
		s.Select(0)
	}
	return nil
}

// Find returns the list position of name, ignoring case, or -1.
func (s *Session) Find(name string) int {
	for i, n := range s.names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Select starts loading model i of the active slot. A newer request
// cancels any load still in flight.
func (s *Session) Select(i int) bool {
	if i < 0 || i >= len(s.names) {
		return false
	}
	s.index = i
	s.request(s.names[i])
	return true
}

// Next selects the following model, wrapping around.
func (s *Session) Next() bool {
	return s.step(1)
}

// Prev selects the preceding model, wrapping around.
func (s *Session) Prev() bool {
	return s.step(-1)
}

func (s *Session) step(delta int) bool {
	n := len(s.names)
	if n == 0 {
		return false
	}
	i := s.index
	if i < 0 {
		i = 0
		if delta < 0 {
			i = n - 1
		}
	} else {
		i = ((i+delta)%n + n) % n
	}
	return s.Select(i)
}

func (s *Session) request(name string) {
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.seq++
	s.pending = name

	seq, slot := s.seq, s.slot
	s.log.Debug("loading model", zap.String("model", name), zap.Stringer("slot", slot))
	go func() {
		m, err := s.content.LoadModel(ctx, slot, name)
		select {
		case s.results <- Result{Slot: slot, Name: name, Model: m, Err: err, seq: seq}:
		case <-ctx.Done():
		}
	}()
}

// Poll applies a finished load without blocking. It reports whether the
// model on screen changed. A failed load keeps the previous model and is
// returned as the error.
func (s *Session) Poll() (bool, error) {
	select {
	case r := <-s.results:
		return s.apply(r)
	default:
		return false, nil
	}
}

// Wait blocks until the pending load finishes or ctx ends.
func (s *Session) Wait(ctx context.Context) (bool, error) {
	for s.pending != "" {
		select {
		case r := <-s.results:
			if changed, err := s.apply(r); changed || err != nil {
				return changed, err
			}
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, nil
}

func (s *Session) apply(r Result) (bool, error) {
	if r.seq != s.seq {
		return false, nil
	}
	s.pending = ""
	if r.Err != nil {
		s.log.Warn("model load failed, keeping previous model",
			zap.String("model", r.Name), zap.Stringer("slot", r.Slot), zap.Error(r.Err))
		return false, r.Err
	}
	s.current, s.currentName, s.currentSlot = r.Model, r.Name, r.Slot
	s.log.Info("model ready",
		zap.String("model", r.Name),
		zap.Stringer("generation", r.Model.Generation),
		zap.Int("meshes", len(r.Model.Meshes)),
		zap.Int("triangles", r.Model.TriangleCount()),
	)
	return true, nil
}

// ToggleMesh flips the enabled flag of mesh i of the model on screen.
func (s *Session) ToggleMesh(i int) (enabled, ok bool) {
	if s.current == nil || i < 0 || i >= len(s.current.Meshes) {
		return false, false
	}
	enabled = !s.current.Meshes[i].Enabled
	s.current.SetEnabled(i, enabled)
	return enabled, true
}

// Export writes the model on screen to outDir with the textures of the
// archive it was loaded from.
func (s *Session) Export(format export.Format, outDir string) (string, error) {
	if s.current == nil {
		return "", ErrNoModel
	}
	tex := slotTextures{content: s.content, slot: s.currentSlot}
	out, err := export.Export(format, s.current, s.currentName, tex, outDir)
	if err != nil {
		return "", errors.Wrapf(err, "exporting %s", s.currentName)
	}
	s.log.Info("model exported", zap.String("model", s.currentName), zap.String("path", out))
	return out, nil
}

// Close abandons any load in flight.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
