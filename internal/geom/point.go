// Package geom holds the coordinate spaces and rectangle math shared by the
// scene graph and the shells.
//
// Surface-local, buffer and global coordinates are distinct types so that a
// value from one space can never be passed where another is expected without
// an explicit conversion.
package geom

import "fmt"

// SurfacePoint is a position in surface-local logical coordinates.
type SurfacePoint struct {
	X, Y float64
}

// BufferPoint is a position in buffer pixel coordinates.
type BufferPoint struct {
	X, Y float64
}

// GlobalPoint is a position in the compositor-wide coordinate space shared by
// all outputs.
type GlobalPoint struct {
	X, Y float64
}

func (p SurfacePoint) Add(o SurfacePoint) SurfacePoint { return SurfacePoint{p.X + o.X, p.Y + o.Y} }
func (p SurfacePoint) Sub(o SurfacePoint) SurfacePoint { return SurfacePoint{p.X - o.X, p.Y - o.Y} }
func (p SurfacePoint) IsZero() bool { return p.X == 0 && p.Y == 0 }

func (p GlobalPoint) Add(o GlobalPoint) GlobalPoint { return GlobalPoint{p.X + o.X, p.Y + o.Y} }
func (p GlobalPoint) Sub(o GlobalPoint) GlobalPoint { return GlobalPoint{p.X - o.X, p.Y - o.Y} }
func (p GlobalPoint) IsZero() bool { return p.X == 0 && p.Y == 0 }

// Offset moves a global point by a surface-local delta. Surfaces are never
// scaled relative to the global space, so the delta carries over unchanged.
func (p GlobalPoint) Offset(d SurfacePoint) GlobalPoint {
	return GlobalPoint{p.X + d.X, p.Y + d.Y}
}

func (p GlobalPoint) String() string { return fmt.Sprintf("(%g, %g)", p.X, p.Y) }
func (p SurfacePoint) String() string { return fmt.Sprintf("s(%g, %g)", p.X, p.Y) }
func (p BufferPoint) String() string { return fmt.Sprintf("b(%g, %g)", p.X, p.Y) }

// Size is a width/height pair in logical pixels.
type Size struct {
	W, H int32
}

func (s Size) IsZero() bool { return s.W == 0 && s.H == 0 }
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.W, s.H)
}
