package scene

import (
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/signal"
)

// FrameCallback is a wl_surface.frame request waiting for a repaint.
type FrameCallback struct {
	surface *Surface
	done    func(msec uint32)
	fired   bool
}

func (cb *FrameCallback) Fired() bool { return cb.fired }

func (cb *FrameCallback) fire(msec uint32) {
	if cb.fired {
		return
	}
	cb.fired = true
	if cb.surface != nil && cb.surface.client != nil {
		cb.surface.client.Send(protocol.FrameDone{Surface: cb.surface.Ref32(), Time: msec})
	}
	if cb.done != nil {
		cb.done(msec)
	}
}

// SurfaceState is the double-buffered part of a surface.
type SurfaceState struct {
	buffer        *Buffer
	newlyAttached bool
	offset        geom.SurfacePoint

	damageSurface geom.Region
	damageBuffer  geom.Region

	opaque    geom.Region
	opaqueSet bool
	input     *geom.Region
	inputSet  bool

	transform    geom.BufferTransform
	transformSet bool
	scale        int32
	scaleSet     bool

	frameCallbacks []*FrameCallback
}

func (st *SurfaceState) reset() {
	st.buffer = nil
	st.newlyAttached = false
	st.offset = geom.SurfacePoint{}
	st.damageSurface = geom.Region{}
	st.damageBuffer = geom.Region{}
	st.opaqueSet = false
	st.inputSet = false
	st.transformSet = false
	st.scaleSet = false
	st.frameCallbacks = nil
}

// mergeInto folds st on top of dst, as when a synchronized sub-surface
// caches several commits.
func (st *SurfaceState) mergeInto(dst *SurfaceState) {
	if st.newlyAttached {
		dst.buffer = st.buffer
		dst.newlyAttached = true
	}
	dst.offset = dst.offset.Add(st.offset)
	dst.damageSurface.Union(st.damageSurface)
	dst.damageBuffer.Union(st.damageBuffer)
	if st.opaqueSet {
		dst.opaque = st.opaque.Clone()
		dst.opaqueSet = true
	}
	if st.inputSet {
		dst.input = st.input
		dst.inputSet = true
	}
	if st.transformSet {
		dst.transform = st.transform
		dst.transformSet = true
	}
	if st.scaleSet {
		dst.scale = st.scale
		dst.scaleSet = true
	}
	dst.frameCallbacks = append(dst.frameCallbacks, st.frameCallbacks...)
}

// Surface is a client pixel source with pending and current state.
type Surface struct {
	c      *Compositor
	id     uint32
	client *protocol.Client

	pending SurfaceState

	buffer    *Buffer
	transform geom.BufferTransform
	scale     int32
	opaque    geom.Region
	input     *geom.Region
	width     int32
	height    int32
	solidSize geom.Size

	role  Role
	views []*View

	// order lists this surface and its sub-surfaces bottom to top.
	order        []*Surface
	pendingOrder []*Surface

	frameCallbacks []*FrameCallback

	mapped   bool
	output   *Output
	outputs  *roaring.Bitmap
	refs     int
	gone     bool
	released bool
	label    string

	// ResourceDestroyed fires when the client destroys the surface, even
	// if compositor references keep it alive for a while longer.
	ResourceDestroyed signal.Signal[*Surface]
	Destroyed         signal.Signal[*Surface]
	Committed         signal.Signal[*Surface]
}

// CreateSurface is wl_compositor.create_surface. client may be nil for
// compositor-internal surfaces.
func (c *Compositor) CreateSurface(client *protocol.Client) *Surface {
	c.nextSurfaceID++
	s := &Surface{
		c:       c,
		id:      c.nextSurfaceID,
		client:  client,
		scale:   1,
		outputs: roaring.New(),
		refs:    1,
	}
	s.pending.scale = 1
	s.order = []*Surface{s}
	s.pendingOrder = []*Surface{s}
	c.surfaces[s.id] = s
	return s
}

func (s *Surface) ID() uint32 { return s.id }
func (s *Surface) Ref32() protocol.SurfaceRef { return protocol.SurfaceRef(s.id) }
func (s *Surface) Client() *protocol.Client { return s.client }
func (s *Surface) Compositor() *Compositor { return s.c }
func (s *Surface) Buffer() *Buffer { return s.buffer }
func (s *Surface) Width() int32 { return s.width }
func (s *Surface) Height() int32 { return s.height }
func (s *Surface) Size() geom.Size { return geom.Size{W: s.width, H: s.height} }
func (s *Surface) Role() Role { return s.role }
func (s *Surface) IsMapped() bool { return s.mapped }
func (s *Surface) Output() *Output { return s.output }
func (s *Surface) Views() []*View { return slices.Clone(s.views) }
func (s *Surface) BufferTransform() geom.BufferTransform { return s.transform }
func (s *Surface) BufferScale() int32 { return s.scale }
func (s *Surface) Released() bool { return s.released }

// HasContent reports whether the surface currently has a buffer.
func (s *Surface) HasContent() bool { return s.buffer != nil }

// OnOutput reports whether any view of the surface overlaps o.
func (s *Surface) OnOutput(o *Output) bool { return o != nil && s.outputs.Contains(o.ID) }

// RoleKind returns the kind of the current role or RoleNone.
func (s *Surface) RoleKind() RoleKind {
	if s.role == nil {
		return RoleNone
	}
	return s.role.Kind()
}

// SetRole assigns a role. A surface keeps its role until ClearRole.
func (s *Surface) SetRole(r Role) error {
	if s.role != nil {
		return fmt.Errorf("%w: wl_surface@%d has role %s, cannot take %s",
			ErrRoleAssigned, s.id, s.role.Kind(), r.Kind())
	}
	s.role = r
	return nil
}

// SetRoleOrPost assigns a role and posts a protocol error on failure.
func (s *Surface) SetRoleOrPost(r Role, iface string, code uint32) error {
	if err := s.SetRole(r); err != nil {
		return s.client.Post(iface, code, "surface role already assigned")
	}
	return nil
}

func (s *Surface) ClearRole() { s.role = nil }

func (s *Surface) SetLabel(label string) { s.label = label }

func (s *Surface) Label() string {
	if s.label != "" {
		return s.label
	}
	return fmt.Sprintf("wl_surface@%d (%s)", s.id, s.RoleKind())
}

// Attach is wl_surface.attach. A nil buffer detaches content on commit.
func (s *Surface) Attach(b *Buffer, offset geom.SurfacePoint) {
	s.pending.buffer = b
	s.pending.newlyAttached = true
	s.pending.offset = s.pending.offset.Add(offset)
}

// SetOffset is wl_surface.offset.
func (s *Surface) SetOffset(offset geom.SurfacePoint) {
	s.pending.offset = offset
}

// Damage is wl_surface.damage in surface-local coordinates.
func (s *Surface) Damage(r geom.Rect) {
	s.pending.damageSurface.AddRect(r)
}

// DamageBuffer is wl_surface.damage_buffer in buffer coordinates.
func (s *Surface) DamageBuffer(r geom.Rect) {
	s.pending.damageBuffer.AddRect(r)
}

func (s *Surface) SetOpaqueRegion(r geom.Region) {
	s.pending.opaque = r.Clone()
	s.pending.opaqueSet = true
}

// SetInputRegion sets the input region. nil means infinite.
func (s *Surface) SetInputRegion(r *geom.Region) {
	if r != nil {
		clone := r.Clone()
		r = &clone
	}
	s.pending.input = r
	s.pending.inputSet = true
}

// ClearInput empties both the pending and the current input region, so the
// surface stops taking input without waiting for a commit.
func (s *Surface) ClearInput() {
	s.pending.input = &geom.Region{}
	s.pending.inputSet = true
	s.input = &geom.Region{}
}

// SetBufferTransform is wl_surface.set_buffer_transform.
func (s *Surface) SetBufferTransform(t geom.BufferTransform) error {
	if !t.Valid() {
		return s.client.Post(protocol.InterfaceSurface, protocol.SurfaceErrorInvalidTransform,
			"buffer transform must be a valid transform ('%d' specified)", int32(t))
	}
	s.pending.transform = t
	s.pending.transformSet = true
	return nil
}

// SetBufferScale is wl_surface.set_buffer_scale.
func (s *Surface) SetBufferScale(scale int32) error {
	if scale < 1 {
		return s.client.Post(protocol.InterfaceSurface, protocol.SurfaceErrorInvalidScale,
			"buffer scale must be at least one ('%d' specified)", scale)
	}
	s.pending.scale = scale
	s.pending.scaleSet = true
	return nil
}

// Frame is wl_surface.frame. done may be nil; the client still receives
// the callback event.
func (s *Surface) Frame(done func(msec uint32)) *FrameCallback {
	cb := &FrameCallback{surface: s, done: done}
	s.pending.frameCallbacks = append(s.pending.frameCallbacks, cb)
	return cb
}

// SetSolidSize fixes the size of a surface showing a solid-color buffer.
func (s *Surface) SetSolidSize(w, h int32) {
	s.solidSize = geom.Size{W: w, H: h}
	if s.buffer.IsSolid() {
		s.setSize(w, h)
	}
}

// PendingFrameCallbacks returns callbacks committed but not yet delivered.
func (s *Surface) PendingFrameCallbacks() int { return len(s.frameCallbacks) }

// Commit is wl_surface.commit.
func (s *Surface) Commit() error {
	if s.released {
		return nil
	}
	if s.pending.newlyAttached && s.pending.buffer != nil && s.role == nil {
		s.pending.reset()
		return s.client.Post(protocol.InterfaceDisplay, protocol.DisplayErrorInvalidObject,
			"wl_surface@%d: buffer committed without a role", s.id)
	}
	if sub := s.Subsurface(); sub != nil {
		sub.commit()
		return nil
	}
	s.commitState(&s.pending)
	s.commitChildren()
	return nil
}

// commitState makes st current and runs the role hook.
func (s *Surface) commitState(st *SurfaceState) {
	c := s.c
	oldW, oldH := s.width, s.height

	if st.transformSet {
		s.transform = st.transform
	}
	if st.scaleSet {
		s.scale = st.scale
	}
	if st.newlyAttached {
		s.attachBuffer(st.buffer)
	}
	s.recomputeSize()

	if st.opaqueSet {
		s.opaque = st.opaque.Clone()
	}
	if st.inputSet {
		s.input = st.input
	}

	damage := st.damageSurface.Clone()
	for _, r := range st.damageBuffer.Rects() {
		damage.AddRect(s.bufferRectToSurface(r))
	}
	if st.newlyAttached || oldW != s.width || oldH != s.height {
		damage.AddRect(geom.Rect{W: max(s.width, oldW), H: max(s.height, oldH)})
	}

	s.frameCallbacks = append(s.frameCallbacks, st.frameCallbacks...)
	offset := st.offset
	st.reset()

	if s.role != nil {
		s.role.Committed(s, offset)
	}

	for _, v := range s.views {
		v.updateTransform()
	}
	if !damage.Empty() {
		c.damageSurface(s, damage)
	}
	s.Committed.Emit(s)
}

func (s *Surface) attachBuffer(b *Buffer) {
	if s.buffer != nil && s.buffer != b {
		s.releaseBuffer()
	}
	s.buffer = b
	if b != nil && s.c.renderer != nil {
		if err := s.c.renderer.AttachSurface(s, b); err != nil {
			s.c.log.Warn("renderer attach failed", "surface", s.Label(), "err", err)
		}
	}
}

func (s *Surface) releaseBuffer() {
	if s.buffer == nil {
		return
	}
	s.buffer.released = true
	if s.client != nil {
		s.client.Send(protocol.BufferRelease{Surface: s.Ref32()})
	}
	s.buffer = nil
}

func (s *Surface) recomputeSize() {
	switch {
	case s.buffer == nil:
		s.setSize(0, 0)
	case s.buffer.IsSolid():
		s.setSize(s.solidSize.W, s.solidSize.H)
	default:
		sz := geom.SurfaceSizeFromBuffer(s.buffer.Width, s.buffer.Height, s.transform, s.scale)
		s.setSize(sz.W, sz.H)
	}
}

func (s *Surface) setSize(w, h int32) {
	if s.width == w && s.height == h {
		return
	}
	s.width, s.height = w, h
	for _, v := range s.views {
		v.updateTransform()
	}
}

func (s *Surface) bufferRectToSurface(r geom.Rect) geom.Rect {
	scale := max(s.scale, 1)
	r = geom.Rect{X: r.X / scale, Y: r.Y / scale, W: (r.W + scale - 1) / scale, H: (r.H + scale - 1) / scale}
	if s.transform.SwapsAxes() {
		r = geom.Rect{X: r.Y, Y: r.X, W: r.H, H: r.W}
	}
	return r
}

// commitChildren applies sub-surface order and synchronized child state after
// this surface's own state became current.
func (s *Surface) commitChildren() {
	if !slices.Equal(s.order, s.pendingOrder) {
		s.order = slices.Clone(s.pendingOrder)
		for _, v := range s.views {
			s.c.damageView(v)
		}
	}
	for _, child := range s.order {
		if child == s {
			continue
		}
		if sub := child.Subsurface(); sub != nil {
			sub.parentCommit()
		}
	}
}

// InputContains reports whether a surface-local point accepts input.
func (s *Surface) InputContains(p geom.SurfacePoint) bool {
	if p.X < 0 || p.Y < 0 || p.X >= float64(s.width) || p.Y >= float64(s.height) {
		return false
	}
	if s.input == nil {
		return true
	}
	return s.input.Contains(p.X, p.Y)
}

// IsOpaque reports whether the surface fully covers its area.
func (s *Surface) IsOpaque() bool {
	if s.buffer.Opaque() {
		return true
	}
	return s.opaque.Extents() == geom.Rect{W: s.width, H: s.height} && s.width > 0
}

// Map marks the surface as visible content. Root views still need a layer;
// sub-surfaces with content are mapped along with it.
func (s *Surface) Map() {
	if s.mapped {
		return
	}
	s.mapped = true
	for _, sub := range s.Subsurfaces() {
		if sub.surface.buffer != nil {
			sub.ensureViews()
			sub.surface.Map()
		}
	}
	for _, v := range s.views {
		if v.parent != nil {
			v.setMapped(v.parent.mapped)
		}
	}
}

// Unmap hides the surface and every view of it.
func (s *Surface) Unmap() {
	if !s.mapped {
		return
	}
	s.mapped = false
	for _, v := range slices.Clone(s.views) {
		v.Unmap()
	}
	s.c.SurfaceUnmapped.Emit(s)
}

// MainSurface follows sub-surface parents up to the root surface.
func (s *Surface) MainSurface() *Surface {
	for {
		sub := s.Subsurface()
		if sub == nil || sub.parent == nil {
			return s
		}
		s = sub.parent
	}
}

// Ref takes an extra reference, used by animations that outlive the client.
func (s *Surface) Ref() *Surface {
	s.refs++
	return s
}

// Unref drops a reference. The last one destroys the surface.
func (s *Surface) Unref() {
	if s.released {
		return
	}
	s.refs--
	if s.refs > 0 {
		return
	}
	s.finalize()
}

// Destroy is the client destroying its wl_surface. Later calls do nothing.
func (s *Surface) Destroy() {
	if s.gone {
		return
	}
	s.gone = true
	s.ResourceDestroyed.Emit(s)
	s.Unref()
}

// ClientGone reports whether the client has destroyed the surface.
func (s *Surface) ClientGone() bool { return s.gone }

func (s *Surface) finalize() {
	s.released = true
	s.Destroyed.Emit(s)

	for _, v := range slices.Clone(s.views) {
		v.Destroy()
	}
	if sub := s.Subsurface(); sub != nil {
		sub.destroy()
	}
	for _, child := range slices.Clone(s.pendingOrder) {
		if child == s {
			continue
		}
		if sub := child.Subsurface(); sub != nil {
			sub.parentDestroyed()
		}
	}
	s.mapped = false
	s.role = nil
	s.releaseBuffer()
	if s.c.renderer != nil {
		s.c.renderer.DetachSurface(s)
	}
	for _, cb := range s.frameCallbacks {
		cb.fired = true
	}
	s.frameCallbacks = nil
	delete(s.c.surfaces, s.id)
}

func (s *Surface) addView(v *View) {
	s.views = append(s.views, v)
}

func (s *Surface) removeView(v *View) {
	if i := slices.Index(s.views, v); i >= 0 {
		s.views = slices.Delete(s.views, i, i+1)
	}
	s.updateOutputs()
}

// updateOutputs recomputes the set of outputs the surface is shown on.
func (s *Surface) updateOutputs() {
	s.outputs.Clear()
	s.output = nil
	for _, v := range s.views {
		if !v.mapped {
			continue
		}
		s.outputs.Or(v.outputs)
		if s.output == nil {
			s.output = v.output
		}
	}
}

func (s *Surface) String() string { return s.Label() }
