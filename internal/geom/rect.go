package geom

import "fmt"

// Rect is an integer rectangle. Which coordinate space it lives in is decided
// by the owner.
type Rect struct {
	X, Y, W, H int32
}

// RectFromPoints builds the rectangle spanning [x1,x2) x [y1,y2).
func RectFromPoints(x1, y1, x2, y2 int32) Rect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }
func (r Rect) X2() int32 { return r.X + r.W }
func (r Rect) Y2() int32 { return r.Y + r.H }
func (r Rect) Size() Size { return Size{r.W, r.H} }

// Contains reports whether the point lies inside the half-open rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= float64(r.X) && x < float64(r.X2()) &&
		y >= float64(r.Y) && y < float64(r.Y2())
}

func (r Rect) ContainsGlobal(p GlobalPoint) bool { return r.Contains(p.X, p.Y) }

func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X2(), o.X2())
	y2 := min(r.Y2(), o.Y2())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

func (r Rect) Overlaps(o Rect) bool { return !r.Intersect(o).Empty() }

// Union returns the bounding box of both rectangles. Empty inputs are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return RectFromPoints(min(r.X, o.X), min(r.Y, o.Y), max(r.X2(), o.X2()), max(r.Y2(), o.Y2()))
}

func (r Rect) Translate(dx, dy int32) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

func (r Rect) Area() int64 {
	if r.Empty() {
		return 0
	}
	return int64(r.W) * int64(r.H)
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d@%d,%d", r.W, r.H, r.X, r.Y)
}
