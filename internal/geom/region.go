package geom

import "slices"

// Region is a set of rectangles. Rectangles may overlap; queries treat the
// region as their union.
type Region struct {
	rects []Rect
}

// InfiniteRegion is large enough to cover any realistic global space.
var InfiniteRegion = RegionFromRect(Rect{X: -(1 << 29), Y: -(1 << 29), W: 1 << 30, H: 1 << 30})

func RegionFromRect(r Rect) Region {
	var reg Region
	reg.AddRect(r)
	return reg
}

func (g *Region) AddRect(r Rect) {
	if r.Empty() {
		return
	}
	for _, have := range g.rects {
		if have.Intersect(r) == r {
			return
		}
	}
	g.rects = append(g.rects, r)
}

func (g *Region) Union(o Region) {
	for _, r := range o.rects {
		g.AddRect(r)
	}
}

func (g *Region) Clear() { g.rects = g.rects[:0] }

func (g Region) Empty() bool { return len(g.rects) == 0 }

// Rects returns a copy of the rectangles making up the region.
func (g Region) Rects() []Rect { return slices.Clone(g.rects) }

func (g Region) Extents() Rect {
	var ext Rect
	for _, r := range g.rects {
		ext = ext.Union(r)
	}
	return ext
}

func (g Region) Contains(x, y float64) bool {
	for _, r := range g.rects {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}

// IntersectRect clips every rectangle of the region to r.
func (g Region) IntersectRect(r Rect) Region {
	var out Region
	for _, have := range g.rects {
		out.AddRect(have.Intersect(r))
	}
	return out
}

func (g Region) Translate(dx, dy int32) Region {
	out := Region{rects: make([]Rect, 0, len(g.rects))}
	for _, r := range g.rects {
		out.rects = append(out.rects, r.Translate(dx, dy))
	}
	return out
}

func (g Region) Clone() Region { return Region{rects: slices.Clone(g.rects)} }
