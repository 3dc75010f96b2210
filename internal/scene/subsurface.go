package scene

import (
	"slices"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
)

// SubSurface is the wl_subsurface role: a surface positioned relative to a
// parent and composited with it.
type SubSurface struct {
	RoleBase

	surface *Surface
	parent  *Surface

	position        geom.SurfacePoint
	pendingPosition geom.SurfacePoint
	positionDirty   bool

	synchronized bool
	cached       SurfaceState
	hasCached    bool
	inert        bool
}

// GetSubsurface is wl_subcompositor.get_subsurface.
func (c *Compositor) GetSubsurface(surface, parent *Surface) (*SubSurface, error) {
	client := surface.client
	if surface == parent {
		return nil, client.Post(protocol.InterfaceSubcompositor, protocol.SubcompositorErrorBadSurface,
			"wl_surface@%d cannot be its own parent", surface.id)
	}
	if surface.Subsurface() != nil {
		return nil, client.Post(protocol.InterfaceSubcompositor, protocol.SubcompositorErrorBadSurface,
			"wl_surface@%d is already a sub-surface", surface.id)
	}
	if surface.role != nil {
		return nil, client.Post(protocol.InterfaceSubcompositor, protocol.SubcompositorErrorBadSurface,
			"wl_surface@%d already has role %s", surface.id, surface.RoleKind())
	}
	for p := parent; p != nil; {
		if p == surface {
			return nil, client.Post(protocol.InterfaceSubcompositor, protocol.SubcompositorErrorBadSurface,
				"wl_surface@%d is an ancestor of parent", surface.id)
		}
		sub := p.Subsurface()
		if sub == nil {
			break
		}
		p = sub.parent
	}

	sub := &SubSurface{surface: surface, parent: parent, synchronized: true}
	sub.cached.scale = 1
	if err := surface.SetRole(sub); err != nil {
		return nil, err
	}
	parent.pendingOrder = append(parent.pendingOrder, surface)
	if surface.label == "" {
		surface.label = "sub-surface"
	}
	return sub, nil
}

// Subsurface returns the sub-surface role of s or nil.
func (s *Surface) Subsurface() *SubSurface {
	sub, _ := s.role.(*SubSurface)
	return sub
}

// Subsurfaces returns the children of s, bottom to top.
func (s *Surface) Subsurfaces() []*SubSurface {
	var out []*SubSurface
	for _, child := range s.order {
		if child == s {
			continue
		}
		if sub := child.Subsurface(); sub != nil {
			out = append(out, sub)
		}
	}
	return out
}

// Order returns the committed stacking order of s and its children.
func (s *Surface) Order() []*Surface { return slices.Clone(s.order) }

func (sub *SubSurface) Kind() RoleKind { return RoleSubsurface }
func (sub *SubSurface) Surface() *Surface { return sub.surface }
func (sub *SubSurface) Parent() *Surface { return sub.parent }
func (sub *SubSurface) Position() geom.SurfacePoint { return sub.position }
func (sub *SubSurface) Synchronized() bool { return sub.synchronized }

// EffectivelySynchronized reports whether the sub-surface or any ancestor
// sub-surface is in synchronized mode.
func (sub *SubSurface) EffectivelySynchronized() bool {
	for s := sub; s != nil; {
		if s.synchronized {
			return true
		}
		if s.parent == nil {
			return false
		}
		s = s.parent.Subsurface()
	}
	return false
}

// SetPosition takes effect on the next parent commit.
func (sub *SubSurface) SetPosition(x, y float64) {
	sub.pendingPosition = geom.SurfacePoint{X: x, Y: y}
	sub.positionDirty = true
}

// PlaceAbove restacks the sub-surface directly above sibling, which must be
// the parent or another child of the same parent.
func (sub *SubSurface) PlaceAbove(sibling *Surface) error {
	return sub.restack(sibling, 1)
}

// PlaceBelow restacks the sub-surface directly below sibling.
func (sub *SubSurface) PlaceBelow(sibling *Surface) error {
	return sub.restack(sibling, 0)
}

func (sub *SubSurface) restack(sibling *Surface, after int) error {
	if sub.parent == nil {
		return nil
	}
	if sibling == sub.surface || !sub.isSibling(sibling) {
		return sub.surface.client.Post(protocol.InterfaceSubsurface, protocol.SubsurfaceErrorBadSurface,
			"wl_surface@%d is not a parent or sibling", sibling.id)
	}
	order := sub.parent.pendingOrder
	if i := slices.Index(order, sub.surface); i >= 0 {
		order = slices.Delete(order, i, i+1)
	}
	at := slices.Index(order, sibling) + after
	sub.parent.pendingOrder = slices.Insert(order, at, sub.surface)
	return nil
}

func (sub *SubSurface) isSibling(s *Surface) bool {
	if s == sub.parent {
		return true
	}
	other := s.Subsurface()
	return other != nil && other.parent == sub.parent
}

// SetSync switches to synchronized mode.
func (sub *SubSurface) SetSync() { sub.synchronized = true }

// SetDesync switches to desynchronized mode. Cached state is applied at once
// when no ancestor keeps the sub-surface synchronized.
func (sub *SubSurface) SetDesync() {
	if !sub.synchronized {
		return
	}
	sub.synchronized = false
	if !sub.EffectivelySynchronized() {
		sub.flushCache()
	}
}

func (sub *SubSurface) commit() {
	if sub.EffectivelySynchronized() {
		sub.surface.pending.mergeInto(&sub.cached)
		sub.surface.pending.reset()
		sub.hasCached = true
		return
	}
	if sub.hasCached {
		sub.surface.pending.mergeInto(&sub.cached)
		sub.surface.pending.reset()
		sub.flushCache()
		return
	}
	sub.surface.commitState(&sub.surface.pending)
	sub.surface.commitChildren()
}

func (sub *SubSurface) flushCache() {
	if !sub.hasCached {
		return
	}
	sub.hasCached = false
	sub.surface.commitState(&sub.cached)
	sub.cached.reset()
	sub.surface.commitChildren()
}

// parentCommit runs when the parent's state becomes current.
func (sub *SubSurface) parentCommit() {
	if sub.positionDirty {
		sub.positionDirty = false
		sub.position = sub.pendingPosition
		for _, v := range sub.surface.views {
			v.updateTransform()
		}
	}
	if sub.EffectivelySynchronized() {
		sub.flushCache()
	}
}

// Committed maps the sub-surface once it has content and a mapped parent.
func (sub *SubSurface) Committed(s *Surface, _ geom.SurfacePoint) {
	if s.buffer == nil {
		if s.mapped {
			s.Unmap()
		}
		return
	}
	if sub.parent == nil {
		return
	}
	sub.ensureViews()
	if !s.mapped && sub.parent.mapped {
		s.Map()
	}
}

// ensureViews gives the surface one view per parent view.
func (sub *SubSurface) ensureViews() {
	for _, pv := range sub.parent.views {
		if sub.viewFor(pv) == nil {
			sub.surface.c.createChildView(sub.surface, pv)
		}
	}
}

func (sub *SubSurface) viewFor(parent *View) *View {
	for _, v := range sub.surface.views {
		if v.parent == parent {
			return v
		}
	}
	return nil
}

// Destroy is wl_subsurface.destroy. The surface is unmapped and may take a
// new role.
func (sub *SubSurface) Destroy() {
	s := sub.surface
	s.Unmap()
	for _, v := range slices.Clone(s.views) {
		v.Destroy()
	}
	sub.destroy()
	s.ClearRole()
}

func (sub *SubSurface) destroy() {
	if sub.inert {
		return
	}
	sub.inert = true
	if p := sub.parent; p != nil {
		if i := slices.Index(p.pendingOrder, sub.surface); i >= 0 {
			p.pendingOrder = slices.Delete(p.pendingOrder, i, i+1)
		}
		if i := slices.Index(p.order, sub.surface); i >= 0 {
			p.order = slices.Delete(p.order, i, i+1)
		}
		sub.parent = nil
	}
}

// parentDestroyed leaves the sub-surface inert and unmapped.
func (sub *SubSurface) parentDestroyed() {
	sub.parent = nil
	sub.inert = true
	sub.surface.Unmap()
	for _, v := range slices.Clone(sub.surface.views) {
		v.Destroy()
	}
}
