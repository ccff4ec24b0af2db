package model

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/tyviewer/pkg/formats"
)

// ErrModelNotFound is returned when the source has no such model file.
var ErrModelNotFound = errors.New("model not found")

// Source provides archive entries by name. *rkv.Archive satisfies it.
type Source interface {
	Contains(name string) bool
	Read(name string) ([]byte, error)
}

// Loader decodes models from a Source. A Loader holds no per-model state
// and may be used from any goroutine the Source allows.
type Loader struct {
	src Source
	log *zap.Logger
}

// NewLoader creates a loader. A nil logger disables logging.
func NewLoader(src Source, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{src: src, log: log}
}

// Load decodes the named .mdl file. When an .mdg file with the same base
// name exists the model is decoded as TY2, otherwise as TY1. Either the
// whole model decodes or an error is returned.
func (l *Loader) Load(name string) (*Model, error) {
	return l.LoadContext(context.Background(), name)
}

// LoadContext is Load with cancellation. ctx is checked between the read,
// decode and build stages; a cancelled load returns ctx.Err().
func (l *Loader) LoadContext(ctx context.Context, name string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.src.Contains(name) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	data, err := l.src.Read(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var m *Model
	if mdgName := companionName(name); l.src.Contains(mdgName) {
		m, err = l.loadTY2(ctx, name, data, mdgName)
	} else {
		m, err = l.loadTY1(ctx, name, data)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	if len(m.Meshes) == 0 {
		l.log.Warn("model has no meshes", zap.String("model", name))
	}

	l.log.Info("model loaded",
		zap.String("model", name),
		zap.Stringer("generation", m.Generation),
		zap.Int("meshes", len(m.Meshes)),
		zap.Int("vertices", m.VertexCount()),
		zap.Int("triangles", m.TriangleCount()))
	return m, nil
}

func (l *Loader) loadTY1(ctx context.Context, name string, data []byte) (*Model, error) {
	mdl, err := formats.ParseMDL(data)
	if err != nil {
		l.log.Debug("MDL decode failed",
			zap.String("model", name),
			zap.Uint32("signature", signature(data)),
			zap.Uint32("expected", formats.MDLMagic),
			zap.Error(err))
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newModel(name, TY1, mdl)
	m.Meshes = BuildTY1(mdl)
	return m, nil
}

func (l *Loader) loadTY2(ctx context.Context, name string, data []byte, mdgName string) (*Model, error) {
	mdgData, err := l.src.Read(mdgName)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", mdgName, err)
	}

	mdl, err := formats.ParseTY2(data)
	if err != nil {
		l.log.Debug("TY2 header decode failed, trying TY1 layout",
			zap.String("model", name),
			zap.Error(err))
		mdl, err = formats.ParseMDL(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var geometry *formats.MDG
	if mdl.IsMDL3() {
		geometry, err = formats.ParseMDGWithMetadata(mdgData, mdl.Meta, data)
	} else {
		geometry, err = formats.ParseMDG(mdgData)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", mdgName, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := newModel(name, TY2, mdl)
	m.Format = geometry.Format
	m.Meshes = BuildTY2(geometry, mdl.Meta, l.log.With(zap.String("model", name)))
	return m, nil
}

// companionName returns the .mdg name paired with an .mdl name.
func companionName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ".mdg"
}

func signature(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return formats.NewReader(data).U32(0)
}
