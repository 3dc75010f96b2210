package scene

import (
	"github.com/bnema/waycomp/internal/geom"
)

// CurtainParams describes a solid-color compositor surface.
type CurtainParams struct {
	Color        Color
	Pos          geom.GlobalPoint
	Size         geom.Size
	CaptureInput bool
	Label        string
	// Committed, if set, runs on every commit of the curtain surface.
	Committed func(s *Surface, offset geom.SurfacePoint)
}

// Curtain is a solid-color surface with a single view, used for
// backgrounds, fullscreen backdrops, fades and focus dimming.
type Curtain struct {
	Surface *Surface
	View    *View
}

type curtainRole struct {
	RoleBase
	committed func(s *Surface, offset geom.SurfacePoint)
}

func (r *curtainRole) Kind() RoleKind { return RoleCurtain }

func (r *curtainRole) Committed(s *Surface, offset geom.SurfacePoint) {
	if r.committed != nil {
		r.committed(s, offset)
	}
}

// IsCurtain reports whether s is a compositor curtain.
func IsCurtain(s *Surface) bool { return s.RoleKind() == RoleCurtain }

// NewCurtain creates a mapped curtain surface. Its view is not in any layer.
func (c *Compositor) NewCurtain(p CurtainParams) *Curtain {
	s := c.CreateSurface(nil)
	_ = s.SetRole(&curtainRole{committed: p.Committed})
	s.SetLabel(p.Label)
	s.solidSize = p.Size
	if !p.CaptureInput {
		empty := geom.Region{}
		s.SetInputRegion(&empty)
	}
	s.Attach(NewSolidBuffer(p.Color), geom.SurfacePoint{})
	s.Damage(geom.Rect{W: p.Size.W, H: p.Size.H})
	_ = s.Commit()
	s.Map()

	v := c.CreateView(s)
	v.SetPosition(p.Pos.X, p.Pos.Y)
	return &Curtain{Surface: s, View: v}
}

// Resize changes the curtain area.
func (cu *Curtain) Resize(pos geom.GlobalPoint, size geom.Size) {
	cu.Surface.SetSolidSize(size.W, size.H)
	cu.View.SetPosition(pos.X, pos.Y)
}

// SetColor swaps in a new solid buffer.
func (cu *Curtain) SetColor(col Color) {
	cu.Surface.Attach(NewSolidBuffer(col), geom.SurfacePoint{})
	_ = cu.Surface.Commit()
}

// Destroy releases the view and the surface.
func (cu *Curtain) Destroy() {
	cu.View.Destroy()
	cu.Surface.Unref()
}
