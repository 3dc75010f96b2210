package renderer

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/charmbracelet/log"
)

var errBadBuffer = errors.New("buffer storage does not match its size")

// FallbackColor is painted for content the renderer cannot sample.
var FallbackColor = scene.Color{R: 0.2, G: 0.1, B: 0, A: 1}

// Image is the renderbuffer of the software renderer.
type Image struct {
	*image.RGBA
}

func (i *Image) Size() geom.Size {
	b := i.Bounds()
	return geom.Size{W: int32(b.Dx()), H: int32(b.Dy())}
}

// source is a surface's content prepared for sampling.
type source struct {
	buf      *scene.Buffer
	fallback bool
}

// Pixman composites into in-memory RGBA images.
type Pixman struct {
	log      *log.Logger
	sources  map[uint32]*source
	warned   bool
	Repaints int
}

func NewPixman() *Pixman {
	return &Pixman{
		log:     logger.With("pixman"),
		sources: map[uint32]*source{},
	}
}

func (*Pixman) Name() string { return "pixman" }

func (p *Pixman) CreateRenderbuffer(o *scene.Output) (scene.Renderbuffer, error) {
	m := o.Mode()
	return &Image{image.NewRGBA(image.Rect(0, 0, int(m.Width), int(m.Height)))}, nil
}

func (*Pixman) DestroyRenderbuffer(scene.Renderbuffer) {}

// AttachSurface validates the buffer. Content that cannot be sampled is
// drawn with FallbackColor instead of failing the commit.
func (p *Pixman) AttachSurface(s *scene.Surface, b *scene.Buffer) error {
	if b == nil {
		delete(p.sources, s.ID())
		return nil
	}
	src := &source{buf: b}
	if err := checkBuffer(b); err != nil {
		src.fallback = true
		p.warnFallback(s, err)
	}
	p.sources[s.ID()] = src
	return nil
}

func (p *Pixman) DetachSurface(s *scene.Surface) {
	delete(p.sources, s.ID())
}

func (p *Pixman) warnFallback(s *scene.Surface, err error) {
	if p.warned {
		return
	}
	p.warned = true
	p.log.Warn("cannot sample surface content, using fallback color", "surface", s, "err", err)
}

func checkBuffer(b *scene.Buffer) error {
	switch b.Format {
	case scene.FormatSolid:
		return nil
	case scene.FormatARGB8888, scene.FormatXRGB8888:
		if b.Data == nil {
			return nil
		}
		if b.Stride < b.Width*4 || int64(len(b.Data)) < int64(b.Stride)*int64(b.Height) {
			return errBadBuffer
		}
		return nil
	}
	return errors.New("unsupported format " + b.Format.String())
}

// RepaintOutput redraws the damaged part of o back to front. Pixels outside
// damage are left untouched.
func (p *Pixman) RepaintOutput(o *scene.Output, damage geom.Region, rb scene.Renderbuffer) error {
	img, ok := rb.(*Image)
	if !ok {
		return errors.New("pixman: foreign renderbuffer")
	}
	p.Repaints++
	area := o.Area()
	views := o.Compositor().PaintList(o)
	for _, r := range damage.Rects() {
		r = r.Intersect(area)
		if r.Empty() {
			continue
		}
		fill(img, r.Translate(-area.X, -area.Y), color.RGBA{A: 0xff})
		for _, v := range views {
			clip := r.Intersect(v.BoundingBox())
			if clip.Empty() {
				continue
			}
			p.drawView(img, area, v, clip)
		}
	}
	return nil
}

func (p *Pixman) ReadPixels(_ *scene.Output, rb scene.Renderbuffer) (*image.RGBA, error) {
	img, ok := rb.(*Image)
	if !ok {
		return nil, errors.New("pixman: foreign renderbuffer")
	}
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out, nil
}

func (p *Pixman) drawView(dst *Image, area geom.Rect, v *scene.View, clip geom.Rect) {
	s := v.Surface()
	src := p.sources[s.ID()]
	if src == nil {
		return
	}
	alpha := float64(v.Alpha())
	size := s.Size()
	for y := clip.Y; y < clip.Y2(); y++ {
		for x := clip.X; x < clip.X2(); x++ {
			sp := v.FromGlobal(geom.GlobalPoint{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			if sp.X < 0 || sp.Y < 0 || sp.X >= float64(size.W) || sp.Y >= float64(size.H) {
				continue
			}
			c := p.sample(src, s, sp)
			blend(dst, int(x-area.X), int(y-area.Y), c, alpha)
		}
	}
}

// sample returns the premultiplied color of src at a surface-local point.
func (p *Pixman) sample(src *source, s *scene.Surface, sp geom.SurfacePoint) [4]float64 {
	b := src.buf
	if src.fallback {
		return premul(FallbackColor)
	}
	if b.IsSolid() || b.Data == nil {
		if b.IsSolid() {
			return premul(b.Solid)
		}
		return [4]float64{0, 0, 0, 0}
	}
	bp := geom.SurfaceToBuffer(sp, s.BufferTransform(), s.BufferScale(), s.Width(), s.Height())
	bx := min(int32(bp.X), b.Width-1)
	by := min(int32(bp.Y), b.Height-1)
	off := int(by)*int(b.Stride) + int(bx)*4
	px := b.Data[off : off+4 : off+4]
	a := float64(px[3]) / 255
	if b.Format == scene.FormatXRGB8888 {
		a = 1
	}
	return [4]float64{float64(px[2]) / 255, float64(px[1]) / 255, float64(px[0]) / 255, a}
}

func premul(c scene.Color) [4]float64 {
	a := float64(c.A)
	return [4]float64{float64(c.R) * a, float64(c.G) * a, float64(c.B) * a, a}
}

// blend composites a premultiplied color over the destination pixel.
func blend(dst *Image, x, y int, c [4]float64, alpha float64) {
	if !(image.Point{x, y}.In(dst.Bounds())) {
		return
	}
	i := dst.PixOffset(x, y)
	px := dst.Pix[i : i+4 : i+4]
	sa := c[3] * alpha
	for k := 0; k < 3; k++ {
		d := float64(px[k]) / 255
		px[k] = to8(c[k]*alpha + d*(1-sa))
	}
	px[3] = to8(sa + float64(px[3])/255*(1-sa))
}

func to8(v float64) uint8 {
	return uint8(math.Round(max(0, min(1, v)) * 255))
}

func fill(img *Image, r geom.Rect, c color.RGBA) {
	for y := r.Y; y < r.Y2(); y++ {
		for x := r.X; x < r.X2(); x++ {
			img.SetRGBA(int(x), int(y), c)
		}
	}
}
