package geom

import "math"

// Matrix is a 2D affine transform stored as the top two rows of a 3x3
// matrix in row-major order: [a b tx; c d ty; 0 0 1].
type Matrix struct {
	A, B, TX float64
	C, D, TY float64
}

func Identity() Matrix { return Matrix{A: 1, D: 1} }

func Translation(tx, ty float64) Matrix { return Matrix{A: 1, D: 1, TX: tx, TY: ty} }

func Scaling(sx, sy float64) Matrix { return Matrix{A: sx, D: sy} }

// Rotation builds a rotation from a unit direction vector (cos, sin).
func Rotation(cos, sin float64) Matrix {
	return Matrix{A: cos, B: -sin, C: sin, D: cos}
}

// Then returns the transform that applies m first and n second.
func (m Matrix) Then(n Matrix) Matrix {
	return Matrix{
		A:  n.A*m.A + n.B*m.C,
		B:  n.A*m.B + n.B*m.D,
		TX: n.A*m.TX + n.B*m.TY + n.TX,
		C:  n.C*m.A + n.D*m.C,
		D:  n.C*m.B + n.D*m.D,
		TY: n.C*m.TX + n.D*m.TY + n.TY,
	}
}

func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.TX, m.C*x + m.D*y + m.TY
}

func (m Matrix) IsIdentity() bool { return m == Identity() }

// IsTranslation reports whether the matrix only moves points.
func (m Matrix) IsTranslation() bool {
	return m.A == 1 && m.B == 0 && m.C == 0 && m.D == 1
}

// Invert returns the inverse transform and false when the matrix is singular.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-12 {
		return Matrix{}, false
	}
	inv := Matrix{
		A: m.D / det,
		B: -m.B / det,
		C: -m.C / det,
		D: m.A / det,
	}
	inv.TX = -(inv.A*m.TX + inv.B*m.TY)
	inv.TY = -(inv.C*m.TX + inv.D*m.TY)
	return inv, true
}

// TransformRect maps r through m and returns the integer bounding box.
func (m Matrix) TransformRect(r Rect) Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.Apply(float64(r.X), float64(r.Y))
	xs[1], ys[1] = m.Apply(float64(r.X2()), float64(r.Y))
	xs[2], ys[2] = m.Apply(float64(r.X), float64(r.Y2()))
	xs[3], ys[3] = m.Apply(float64(r.X2()), float64(r.Y2()))
	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := 1; i < 4; i++ {
		minX = math.Min(minX, xs[i])
		maxX = math.Max(maxX, xs[i])
		minY = math.Min(minY, ys[i])
		maxY = math.Max(maxY, ys[i])
	}
	const eps = 1e-6
	return RectFromPoints(int32(math.Floor(minX+eps)), int32(math.Floor(minY+eps)),
		int32(math.Ceil(maxX-eps)), int32(math.Ceil(maxY-eps)))
}
