package geom

import "fmt"

// BufferTransform is the wl_output.transform applied to a buffer.
type BufferTransform int32

const (
	TransformNormal BufferTransform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

func (t BufferTransform) Valid() bool { return t >= TransformNormal && t <= TransformFlipped270 }

// SwapsAxes reports whether the transform exchanges width and height.
func (t BufferTransform) SwapsAxes() bool { return t&1 == 1 }

func (t BufferTransform) String() string {
	names := [...]string{"normal", "90", "180", "270", "flipped", "flipped-90", "flipped-180", "flipped-270"}
	if !t.Valid() {
		return fmt.Sprintf("transform(%d)", int32(t))
	}
	return names[t]
}

// SurfaceSizeFromBuffer derives the logical surface size of a buffer.
func SurfaceSizeFromBuffer(bufW, bufH int32, t BufferTransform, scale int32) Size {
	if scale < 1 {
		scale = 1
	}
	w, h := bufW/scale, bufH/scale
	if t.SwapsAxes() {
		w, h = h, w
	}
	return Size{W: w, H: h}
}

// SurfaceToBuffer converts a surface-local point into buffer coordinates for
// a surface of logical size (w, h).
func SurfaceToBuffer(p SurfacePoint, t BufferTransform, scale int32, w, h int32) BufferPoint {
	x, y := p.X, p.Y
	fw, fh := float64(w), float64(h)
	switch t {
	case Transform90:
		x, y = fh-p.Y, p.X
	case Transform180:
		x, y = fw-p.X, fh-p.Y
	case Transform270:
		x, y = p.Y, fw-p.X
	case TransformFlipped:
		x = fw - p.X
	case TransformFlipped90:
		x, y = fh-p.Y, fw-p.X
	case TransformFlipped180:
		y = fh - p.Y
	case TransformFlipped270:
		x, y = p.Y, p.X
	}
	s := float64(max(scale, 1))
	return BufferPoint{X: x * s, Y: y * s}
}
