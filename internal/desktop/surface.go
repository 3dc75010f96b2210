package desktop

import (
	"errors"
	"slices"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/signal"
)

var ErrDestroyed = errors.New("desktop surface destroyed")

type Kind int

const (
	KindToplevel Kind = iota
	KindPopup
)

func (k Kind) String() string {
	if k == KindPopup {
		return "popup"
	}
	return "toplevel"
}

// ToplevelState is the window state carried by a configure.
type ToplevelState struct {
	Maximized  bool
	Fullscreen bool
	Resizing   bool
	Activated  bool
	Tiled      geom.Orientation
	Width      int32
	Height     int32
}

type sentConfigure struct {
	serial uint32
	state  ToplevelState
}

// Surface is a toplevel or popup.
type Surface struct {
	d       *Desktop
	surface *scene.Surface
	client  *Client
	kind    Kind
	role    *role

	title string
	appID string

	parent   *Surface
	children []*Surface

	geometry        geom.Rect
	hasGeometry     bool
	pendingGeometry *geom.Rect
	minSize         geom.Size
	maxSize         geom.Size

	pending ToplevelState
	current ToplevelState
	sent    ToplevelState
	hasSent bool

	configureQueued bool
	configures      []sentConfigure
	acked           *ToplevelState
	everAcked       bool
	committed       bool

	// popup state
	positioner geom.Rect
	popupGrab  *popupGrab
	popupView  *scene.View

	xwayland bool
	wmName   string
	wmClass  string

	views     []*scene.View
	userData  any
	destroyed bool
	subs      signal.Bag

	Destroyed signal.Signal[*Surface]
}

type role struct {
	scene.RoleBase
	ds *Surface
}

func (r *role) Kind() scene.RoleKind {
	if r.ds.kind == KindPopup {
		return scene.RolePopup
	}
	return scene.RoleToplevel
}

func (r *role) Committed(s *scene.Surface, offset geom.SurfacePoint) {
	r.ds.committedHook(offset)
}

// CreateToplevel is xdg_surface.get_toplevel.
func (d *Desktop) CreateToplevel(s *scene.Surface) (*Surface, error) {
	ds, err := d.newSurface(s, KindToplevel)
	if err != nil {
		return nil, err
	}
	d.api.SurfaceAdded(ds)
	return ds, nil
}

// CreateXWaylandToplevel wraps an X11 window. The WM_NAME and WM_CLASS
// strings are kept for output routing.
func (d *Desktop) CreateXWaylandToplevel(s *scene.Surface, wmName, wmClass string) (*Surface, error) {
	ds, err := d.newSurface(s, KindToplevel)
	if err != nil {
		return nil, err
	}
	ds.xwayland = true
	ds.wmName = wmName
	ds.wmClass = wmClass
	d.api.SurfaceAdded(ds)
	return ds, nil
}

func (d *Desktop) newSurface(s *scene.Surface, kind Kind) (*Surface, error) {
	ds := &Surface{d: d, surface: s, kind: kind, client: d.Client(s.Client())}
	ds.role = &role{ds: ds}
	if err := s.SetRoleOrPost(ds.role, protocol.InterfaceXdgWmBase, protocol.XdgWmBaseErrorRole); err != nil {
		return nil, err
	}
	d.surfaces[s.ID()] = ds
	d.order = append(d.order, ds)
	ds.client.surfaces = append(ds.client.surfaces, ds)
	ds.subs.Add(s.ResourceDestroyed.Subscribe(func(*scene.Surface) { ds.Destroy() }))
	ds.subs.Add(s.Destroyed.Subscribe(func(*scene.Surface) { ds.Destroy() }))
	return ds, nil
}

func (ds *Surface) Desktop() *Desktop { return ds.d }
func (ds *Surface) Surface() *scene.Surface { return ds.surface }
func (ds *Surface) Client() *Client { return ds.client }
func (ds *Surface) Kind() Kind { return ds.kind }
func (ds *Surface) Title() string { return ds.title }
func (ds *Surface) AppID() string { return ds.appID }
func (ds *Surface) Parent() *Surface { return ds.parent }
func (ds *Surface) Children() []*Surface { return slices.Clone(ds.children) }
func (ds *Surface) MinSize() geom.Size { return ds.minSize }
func (ds *Surface) MaxSize() geom.Size { return ds.maxSize }
func (ds *Surface) IsXWayland() bool { return ds.xwayland }
func (ds *Surface) WMName() string { return ds.wmName }
func (ds *Surface) WMClass() string { return ds.wmClass }
func (ds *Surface) IsDestroyed() bool { return ds.destroyed }
func (ds *Surface) Views() []*scene.View { return slices.Clone(ds.views) }

// State returns the state the client last acknowledged and committed.
func (ds *Surface) State() ToplevelState { return ds.current }

// Pending returns the state the compositor wants the client to take.
func (ds *Surface) Pending() ToplevelState { return ds.pending }

func (ds *Surface) Maximized() bool { return ds.current.Maximized }
func (ds *Surface) Fullscreen() bool { return ds.current.Fullscreen }
func (ds *Surface) Resizing() bool { return ds.current.Resizing }
func (ds *Surface) Activated() bool { return ds.current.Activated }

// UserData is the shell's record for this surface.
func (ds *Surface) UserData() any { return ds.userData }
func (ds *Surface) SetUserData(v any) { ds.userData = v }

// Geometry returns the window geometry in surface coordinates. Without an
// explicit geometry it is the surface extent.
func (ds *Surface) Geometry() geom.Rect {
	if ds.hasGeometry {
		return ds.geometry
	}
	return geom.Rect{W: ds.surface.Width(), H: ds.surface.Height()}
}

func (ds *Surface) String() string {
	if ds.title != "" {
		return ds.title
	}
	if ds.appID != "" {
		return ds.appID
	}
	return ds.surface.Label()
}

// CreateView adds a placement for the surface. The shell owns its stacking.
func (ds *Surface) CreateView() *scene.View {
	v := ds.d.c.CreateView(ds.surface)
	ds.views = append(ds.views, v)
	v.Destroyed.Subscribe(func(v *scene.View) {
		if i := slices.Index(ds.views, v); i >= 0 {
			ds.views = slices.Delete(ds.views, i, i+1)
		}
	})
	return v
}

func (ds *Surface) SetTitle(title string) { ds.title = title }
func (ds *Surface) SetAppID(id string) { ds.appID = id }

// SetWindowGeometry is xdg_surface.set_window_geometry, applied on commit.
func (ds *Surface) SetWindowGeometry(r geom.Rect) error {
	if r.W <= 0 || r.H <= 0 {
		return ds.surface.Client().Post(protocol.InterfaceXdgSurface, protocol.XdgSurfaceErrorInvalidSize,
			"invalid window geometry size %dx%d", r.W, r.H)
	}
	ds.pendingGeometry = &r
	return nil
}

// SetMinSize is xdg_toplevel.set_min_size. Zero means unbounded.
func (ds *Surface) SetMinSize(w, h int32) error {
	if w < 0 || h < 0 {
		return ds.postInvalidSize(w, h)
	}
	ds.minSize = geom.Size{W: w, H: h}
	return nil
}

// SetMaxSize is xdg_toplevel.set_max_size. Zero means unbounded.
func (ds *Surface) SetMaxSize(w, h int32) error {
	if w < 0 || h < 0 {
		return ds.postInvalidSize(w, h)
	}
	ds.maxSize = geom.Size{W: w, H: h}
	return nil
}

func (ds *Surface) postInvalidSize(w, h int32) error {
	return ds.surface.Client().Post(protocol.InterfaceXdgToplevel, protocol.XdgToplevelErrorInvalidSize,
		"invalid size %dx%d", w, h)
}

// SetParent is xdg_toplevel.set_parent. Parent loops are rejected; clearing
// the parent of a root is a no-op.
func (ds *Surface) SetParent(parent *Surface) error {
	if parent == ds.parent {
		return nil
	}
	for p := parent; p != nil; p = p.parent {
		if p == ds {
			return ds.surface.Client().Post(protocol.InterfaceXdgToplevel, protocol.XdgToplevelErrorInvalidParent,
				"parent would create a loop")
		}
	}
	if parent != nil && parent.kind != KindToplevel {
		return ds.surface.Client().Post(protocol.InterfaceXdgToplevel, protocol.XdgToplevelErrorInvalidParent,
			"parent is not a toplevel")
	}
	ds.reparent(parent)
	ds.d.api.SetParent(ds, parent)
	return nil
}

func (ds *Surface) reparent(parent *Surface) {
	if old := ds.parent; old != nil {
		if i := slices.Index(old.children, ds); i >= 0 {
			old.children = slices.Delete(old.children, i, i+1)
		}
	}
	ds.parent = parent
	if parent != nil {
		parent.children = append(parent.children, ds)
	}
}

// Move is xdg_toplevel.move.
func (ds *Surface) Move(s *seat.Seat, serial uint32) { ds.d.api.Move(ds, s, serial) }

// Resize is xdg_toplevel.resize.
func (ds *Surface) Resize(s *seat.Seat, serial uint32, edges geom.Edge) error {
	if edges > geom.EdgeAll {
		return ds.surface.Client().Post(protocol.InterfaceXdgToplevel, protocol.XdgToplevelErrorInvalidResizeEdge,
			"invalid resize edge %d", uint32(edges))
	}
	ds.d.api.Resize(ds, s, serial, edges)
	return nil
}

func (ds *Surface) RequestMaximized(on bool) { ds.d.api.MaximizedRequested(ds, on) }
func (ds *Surface) RequestMinimized() { ds.d.api.MinimizedRequested(ds) }

// RequestFullscreen is set_fullscreen / unset_fullscreen. o may be nil.
func (ds *Surface) RequestFullscreen(on bool, o *scene.Output) {
	ds.d.api.FullscreenRequested(ds, on, o)
}

// SetXWaylandPosition forwards an X11 window placement.
func (ds *Surface) SetXWaylandPosition(pos geom.GlobalPoint) {
	ds.d.api.SetXWaylandPosition(ds, pos)
}

// Position asks the shell where the surface is.
func (ds *Surface) Position() geom.GlobalPoint { return ds.d.api.GetPosition(ds) }

// Compositor-side state changes. Each schedules a single configure for the
// end of the current dispatch.

func (ds *Surface) SetMaximized(on bool) {
	ds.pending.Maximized = on
	ds.scheduleConfigure()
}

func (ds *Surface) SetFullscreen(on bool) {
	ds.pending.Fullscreen = on
	ds.scheduleConfigure()
}

func (ds *Surface) SetActivated(on bool) {
	ds.pending.Activated = on
	ds.scheduleConfigure()
}

func (ds *Surface) SetResizing(on bool) {
	ds.pending.Resizing = on
	ds.scheduleConfigure()
}

func (ds *Surface) SetTiled(o geom.Orientation) {
	ds.pending.Tiled = o
	ds.scheduleConfigure()
}

// SetSize requests a window size. Zero lets the client choose.
func (ds *Surface) SetSize(w, h int32) {
	ds.pending.Width, ds.pending.Height = w, h
	ds.scheduleConfigure()
}

func (ds *Surface) scheduleConfigure() {
	if ds.configureQueued || ds.destroyed {
		return
	}
	ds.configureQueued = true
	ds.d.c.Loop().Post(ds.sendConfigure)
}

// sendConfigure emits a configure unless the client already has this state.
func (ds *Surface) sendConfigure() {
	ds.configureQueued = false
	if ds.destroyed {
		return
	}
	if ds.hasSent && ds.pending == ds.sent {
		return
	}
	serial := ds.d.seats.NextSerial()
	switch ds.kind {
	case KindPopup:
		r := ds.positioner
		ds.client.client.Send(protocol.PopupConfigure{Serial: serial, X: r.X, Y: r.Y, Width: r.W, Height: r.H})
	default:
		st := ds.pending
		ds.client.client.Send(protocol.Configure{
			Serial:     serial,
			Width:      st.Width,
			Height:     st.Height,
			Maximized:  st.Maximized,
			Fullscreen: st.Fullscreen,
			Resizing:   st.Resizing,
			Activated:  st.Activated,
			TiledEdges: uint32(st.Tiled),
		})
	}
	ds.configures = append(ds.configures, sentConfigure{serial: serial, state: ds.pending})
	ds.sent = ds.pending
	ds.hasSent = true
}

// ConfigurePending reports whether a configure is queued or unacknowledged.
func (ds *Surface) ConfigurePending() bool {
	return ds.configureQueued || len(ds.configures) > 0
}

// AckConfigure is xdg_surface.ack_configure. The acked state becomes
// current on the next commit.
func (ds *Surface) AckConfigure(serial uint32) error {
	i := slices.IndexFunc(ds.configures, func(c sentConfigure) bool { return c.serial == serial })
	if i < 0 {
		return ds.surface.Client().Post(protocol.InterfaceXdgSurface, protocol.XdgSurfaceErrorInvalidSerial,
			"wrong configure serial %d", serial)
	}
	st := ds.configures[i].state
	ds.acked = &st
	ds.everAcked = true
	ds.configures = slices.Delete(ds.configures, 0, i+1)
	return nil
}

// LastConfigureSerial returns the newest unacknowledged serial, or 0.
func (ds *Surface) LastConfigureSerial() uint32 {
	if len(ds.configures) == 0 {
		return 0
	}
	return ds.configures[len(ds.configures)-1].serial
}

func (ds *Surface) committedHook(offset geom.SurfacePoint) {
	if ds.destroyed {
		return
	}
	if ds.surface.HasContent() && !ds.everAcked {
		ds.surface.Client().Post(protocol.InterfaceXdgSurface, protocol.XdgSurfaceErrorUnconfiguredBuffer,
			"buffer committed before the first configure was acknowledged")
		return
	}
	if ds.acked != nil {
		ds.current = *ds.acked
		ds.acked = nil
	}
	if ds.pendingGeometry != nil {
		ds.geometry = *ds.pendingGeometry
		ds.hasGeometry = true
		ds.pendingGeometry = nil
	}
	if !ds.committed {
		ds.committed = true
		ds.scheduleConfigure()
	}
	if ds.kind == KindPopup {
		ds.popupCommitted()
		return
	}
	ds.d.api.Committed(ds, offset)
}

// Destroy tears the surface down. Children are handed to this surface's
// parent.
func (ds *Surface) Destroy() {
	if ds.destroyed {
		return
	}
	if ds.kind == KindPopup {
		ds.dismissFrom()
	}
	ds.destroyed = true
	ds.subs.Cancel()

	for _, child := range slices.Clone(ds.children) {
		child.reparent(ds.parent)
		if child.kind == KindToplevel {
			ds.d.api.SetParent(child, ds.parent)
		}
	}
	ds.reparent(nil)

	if ds.kind == KindToplevel {
		ds.d.api.SurfaceRemoved(ds)
	}
	if ds.popupView != nil {
		ds.popupView.Destroy()
		ds.popupView = nil
	}

	d := ds.d
	delete(d.surfaces, ds.surface.ID())
	if i := slices.Index(d.order, ds); i >= 0 {
		d.order = slices.Delete(d.order, i, i+1)
	}
	cl := ds.client
	if i := slices.Index(cl.surfaces, ds); i >= 0 {
		cl.surfaces = slices.Delete(cl.surfaces, i, i+1)
	}
	if ds.surface.Role() == scene.Role(ds.role) {
		ds.surface.ClearRole()
	}
	ds.Destroyed.Emit(ds)
}
