package scene

import (
	"image"

	"github.com/bnema/waycomp/internal/geom"
)

// Renderbuffer is a renderer-owned target for one output.
type Renderbuffer interface {
	Size() geom.Size
}

// Renderer draws the paint list of an output. Damage is in global
// coordinates and the renderer must not touch pixels outside it.
type Renderer interface {
	Name() string
	CreateRenderbuffer(o *Output) (Renderbuffer, error)
	DestroyRenderbuffer(rb Renderbuffer)
	AttachSurface(s *Surface, b *Buffer) error
	DetachSurface(s *Surface)
	RepaintOutput(o *Output, damage geom.Region, rb Renderbuffer) error
}

// PixelReader is implemented by renderers that can service captures.
type PixelReader interface {
	ReadPixels(o *Output, rb Renderbuffer) (*image.RGBA, error)
}
