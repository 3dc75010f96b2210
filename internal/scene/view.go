package scene

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/signal"
)

// Transform is an extra matrix applied to a view in surface-local space,
// before its position. Shells use it for rotation and scaling animations.
type Transform struct {
	Matrix geom.Matrix
}

// NewTransform wraps m.
func NewTransform(m geom.Matrix) *Transform { return &Transform{Matrix: m} }

// View is one placement of a surface in the scene.
type View struct {
	c       *Compositor
	surface *Surface
	layer   *Layer

	parent   *View
	children []*View

	pos        geom.GlobalPoint
	transforms []*Transform
	matrix     geom.Matrix
	inverse    geom.Matrix
	bbox       geom.Rect

	alpha   float32
	mapped  bool
	output  *Output
	pinned  *Output
	outputs *roaring.Bitmap

	destroyed bool

	Destroyed signal.Signal[*View]
}

// CreateView creates a root view of s. It is unmapped until moved into a
// layer.
func (c *Compositor) CreateView(s *Surface) *View {
	v := c.newView(s)
	for _, sub := range s.Subsurfaces() {
		sub.ensureViews()
	}
	return v
}

func (c *Compositor) newView(s *Surface) *View {
	v := &View{
		c:       c,
		surface: s,
		alpha:   1,
		matrix:  geom.Identity(),
		inverse: geom.Identity(),
		outputs: roaring.New(),
	}
	s.addView(v)
	v.updateTransform()
	return v
}

func (c *Compositor) createChildView(s *Surface, parent *View) *View {
	v := c.newView(s)
	v.parent = parent
	parent.children = append(parent.children, v)
	v.updateTransform()
	for _, sub := range s.Subsurfaces() {
		sub.ensureViews()
	}
	v.setMapped(parent.mapped)
	return v
}

func (v *View) Surface() *Surface { return v.surface }
func (v *View) Layer() *Layer { return v.layer }
func (v *View) Parent() *View { return v.parent }
func (v *View) Children() []*View { return slices.Clone(v.children) }
func (v *View) Position() geom.GlobalPoint { return v.pos }
func (v *View) Alpha() float32 { return v.alpha }
func (v *View) IsMapped() bool { return v.mapped }
func (v *View) Matrix() geom.Matrix { return v.matrix }
func (v *View) BoundingBox() geom.Rect { return v.bbox }
func (v *View) IsDestroyed() bool { return v.destroyed }

// Output is the output the view overlaps most, or the one pinned with
// SetOutput.
func (v *View) Output() *Output {
	if v.pinned != nil {
		return v.pinned
	}
	return v.output
}

// OnOutput reports whether the view's bounding box overlaps o.
func (v *View) OnOutput(o *Output) bool { return o != nil && v.outputs.Contains(o.ID) }

// Root follows parent views up to the root view.
func (v *View) Root() *View {
	for v.parent != nil {
		v = v.parent
	}
	return v
}

// SetPosition moves a root view, or sets the offset of a child view relative
// to its parent.
func (v *View) SetPosition(x, y float64) {
	v.setPos(geom.GlobalPoint{X: x, Y: y})
}

// SetPositionWithOffset places the view at pos shifted by a surface-local
// offset, as used when clients attach with a non-zero origin.
func (v *View) SetPositionWithOffset(pos geom.GlobalPoint, offset geom.SurfacePoint) {
	v.setPos(pos.Offset(offset))
}

func (v *View) setPos(p geom.GlobalPoint) {
	if v.pos == p {
		return
	}
	v.pos = p
	v.updateTransform()
}

// AddTransform appends t to the view's transform list.
func (v *View) AddTransform(t *Transform) {
	if slices.Contains(v.transforms, t) {
		return
	}
	v.transforms = append(v.transforms, t)
	v.updateTransform()
}

// RemoveTransform drops t if present.
func (v *View) RemoveTransform(t *Transform) {
	i := slices.Index(v.transforms, t)
	if i < 0 {
		return
	}
	v.transforms = slices.Delete(v.transforms, i, i+1)
	v.updateTransform()
}

// HasTransform reports whether t is applied to the view.
func (v *View) HasTransform(t *Transform) bool { return slices.Contains(v.transforms, t) }

// TransformChanged recomputes geometry after a Transform's matrix changed.
func (v *View) TransformChanged() { v.updateTransform() }

// SetAlpha sets the view opacity in [0, 1].
func (v *View) SetAlpha(a float32) {
	a = max(0, min(a, 1))
	if v.alpha == a {
		return
	}
	v.alpha = a
	v.damage()
}

// SetOutput pins the view to o regardless of its geometry. nil unpins.
func (v *View) SetOutput(o *Output) {
	v.pinned = o
}

// ToGlobal converts a surface-local point to global coordinates.
func (v *View) ToGlobal(p geom.SurfacePoint) geom.GlobalPoint {
	x, y := v.matrix.Apply(p.X, p.Y)
	return geom.GlobalPoint{X: x, Y: y}
}

// FromGlobal converts a global point to surface-local coordinates.
func (v *View) FromGlobal(p geom.GlobalPoint) geom.SurfacePoint {
	x, y := v.inverse.Apply(p.X, p.Y)
	return geom.SurfacePoint{X: x, Y: y}
}

// ContainsGlobal reports whether p hits the surface's input region.
func (v *View) ContainsGlobal(p geom.GlobalPoint) bool {
	if !v.bbox.ContainsGlobal(p) {
		return false
	}
	return v.surface.InputContains(v.FromGlobal(p))
}

func (v *View) localMatrix() geom.Matrix {
	m := geom.Identity()
	for _, t := range v.transforms {
		m = m.Then(t.Matrix)
	}
	pos := v.pos
	if v.parent != nil {
		if sub := v.surface.Subsurface(); sub != nil {
			pos = geom.GlobalPoint{X: sub.position.X, Y: sub.position.Y}
		}
	}
	m = m.Then(geom.Translation(pos.X, pos.Y))
	if v.parent != nil {
		m = m.Then(v.parent.matrix)
	}
	return m
}

// updateTransform recomputes matrix and bounding box, damaging the area the
// view leaves and the area it enters.
func (v *View) updateTransform() {
	if v.destroyed {
		return
	}
	v.damage()
	v.matrix = v.localMatrix()
	if inv, ok := v.matrix.Invert(); ok {
		v.inverse = inv
	}
	v.bbox = v.matrix.TransformRect(geom.Rect{W: v.surface.width, H: v.surface.height})
	v.updateOutputs()
	v.damage()
	for _, child := range v.children {
		child.updateTransform()
	}
}

func (v *View) updateOutputs() {
	v.outputs.Clear()
	v.output = nil
	var best int64
	for _, o := range v.c.outputs {
		area := v.bbox.Intersect(o.Area()).Area()
		if area <= 0 {
			continue
		}
		v.outputs.Add(o.ID)
		if area > best {
			best = area
			v.output = o
		}
	}
	v.surface.updateOutputs()
}

func (v *View) damage() {
	if v.mapped && !v.bbox.Empty() {
		v.c.damageRect(v.bbox)
	}
}

func (v *View) setMapped(parentMapped bool) {
	mapped := parentMapped && (v.parent == nil || v.surface.mapped)
	if v.parent == nil {
		mapped = v.layer != nil
	}
	if v.mapped == mapped {
		return
	}
	if !mapped {
		v.damage()
	}
	v.mapped = mapped
	if mapped {
		v.damage()
	}
	v.surface.updateOutputs()
	for _, child := range v.children {
		child.setMapped(mapped)
	}
	if !mapped {
		v.c.ViewUnmapped.Emit(v)
	}
}

// MoveToLayer puts a root view on top of l. A nil layer unmaps the view.
func (v *View) MoveToLayer(l *Layer) {
	v.MoveToLayerAt(l, 0)
}

// MoveToLayerAt inserts the view at index in l, 0 being the top.
func (v *View) MoveToLayerAt(l *Layer, index int) {
	if v.parent != nil || v.destroyed {
		return
	}
	if v.layer != nil {
		v.damage()
		v.layer.remove(v)
	}
	v.layer = l
	if l != nil {
		l.insert(v, index)
		v.damage()
	}
	v.setMapped(l != nil)
	v.c.ScheduleRepaintAll()
}

// PlaceAbove restacks v directly above other, joining other's layer.
func (v *View) PlaceAbove(other *View) {
	v.placeRelative(other, 0)
}

// PlaceBelow restacks v directly below other.
func (v *View) PlaceBelow(other *View) {
	v.placeRelative(other, 1)
}

func (v *View) placeRelative(other *View, after int) {
	if other == v || other.layer == nil || v.parent != nil {
		return
	}
	l := other.layer
	if v.layer != nil {
		v.damage()
		v.layer.remove(v)
	}
	v.layer = l
	l.insert(v, l.IndexOf(other)+after)
	v.setMapped(true)
	v.damage()
	v.c.ScheduleRepaintAll()
}

// Unmap removes the view from its layer, or hides a child view.
func (v *View) Unmap() {
	if v.parent == nil {
		if v.layer != nil {
			v.MoveToLayer(nil)
		} else if v.mapped {
			v.setMapped(false)
		}
		return
	}
	v.setMapped(false)
}

// Destroy unmaps and releases the view and every child view.
func (v *View) Destroy() {
	if v.destroyed {
		return
	}
	for _, child := range slices.Clone(v.children) {
		child.Destroy()
	}
	v.Unmap()
	v.destroyed = true
	if v.parent != nil {
		if i := slices.Index(v.parent.children, v); i >= 0 {
			v.parent.children = slices.Delete(v.parent.children, i, i+1)
		}
	}
	v.surface.removeView(v)
	v.Destroyed.Emit(v)
}

func (v *View) String() string {
	return fmt.Sprintf("view(%s)", v.surface.Label())
}
