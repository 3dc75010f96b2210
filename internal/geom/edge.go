package geom

import "strings"

// Edge is a set of window edges, using the xdg_toplevel resize_edge bits.
type Edge uint32

const (
	EdgeNone   Edge = 0
	EdgeTop    Edge = 1
	EdgeBottom Edge = 2
	EdgeLeft   Edge = 4
	EdgeRight  Edge = 8

	EdgeTopLeft     = EdgeTop | EdgeLeft
	EdgeBottomLeft  = EdgeBottom | EdgeLeft
	EdgeTopRight    = EdgeTop | EdgeRight
	EdgeBottomRight = EdgeBottom | EdgeRight
	EdgeAll         = EdgeTop | EdgeBottom | EdgeLeft | EdgeRight
)

// ValidResize reports whether the edges describe a resize a user can
// perform: at least one edge, no opposite pair, nothing outside EdgeAll.
func (e Edge) ValidResize() bool {
	if e == EdgeNone || e > EdgeAll {
		return false
	}
	if e&(EdgeTop|EdgeBottom) == EdgeTop|EdgeBottom {
		return false
	}
	if e&(EdgeLeft|EdgeRight) == EdgeLeft|EdgeRight {
		return false
	}
	return true
}

func (e Edge) String() string {
	if e == EdgeNone {
		return "none"
	}
	var parts []string
	for _, n := range []struct {
		bit  Edge
		name string
	}{{EdgeTop, "top"}, {EdgeBottom, "bottom"}, {EdgeLeft, "left"}, {EdgeRight, "right"}} {
		if e&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Orientation is the tiled orientation of a toplevel.
type Orientation uint32

const (
	OrientationNone   Orientation = 0
	OrientationLeft   Orientation = 1
	OrientationRight  Orientation = 2
	OrientationTop    Orientation = 4
	OrientationBottom Orientation = 8
)

func (o Orientation) String() string {
	switch o {
	case OrientationNone:
		return "none"
	case OrientationLeft:
		return "left"
	case OrientationRight:
		return "right"
	case OrientationTop:
		return "top"
	case OrientationBottom:
		return "bottom"
	}
	return "mixed"
}
