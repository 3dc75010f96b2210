package renderer

import (
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/scene"
)

type noopBuffer struct{ size geom.Size }

func (b *noopBuffer) Size() geom.Size { return b.size }

// Noop accepts every request and draws nothing. Frames still complete so
// frame callbacks fire.
type Noop struct {
	Repaints int
}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Name() string { return "noop" }

func (*Noop) CreateRenderbuffer(o *scene.Output) (scene.Renderbuffer, error) {
	return &noopBuffer{size: o.Mode().Size()}, nil
}

func (*Noop) DestroyRenderbuffer(scene.Renderbuffer) {}

func (*Noop) AttachSurface(*scene.Surface, *scene.Buffer) error { return nil }

func (*Noop) DetachSurface(*scene.Surface) {}

func (r *Noop) RepaintOutput(*scene.Output, geom.Region, scene.Renderbuffer) error {
	r.Repaints++
	return nil
}
