// Package desktop implements the window-management side of xdg toplevels and
// popups. It tracks client state, coalesces configures and forwards the
// requests a shell must decide on through the API interface.
package desktop

import (
	"time"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/charmbracelet/log"
)

// DefaultPingTimeout is how long a client has to answer a ping.
const DefaultPingTimeout = 10 * time.Second

// API is implemented by shells. Every call happens on the event loop.
type API interface {
	SurfaceAdded(ds *Surface)
	SurfaceRemoved(ds *Surface)
	Committed(ds *Surface, offset geom.SurfacePoint)
	Move(ds *Surface, s *seat.Seat, serial uint32)
	Resize(ds *Surface, s *seat.Seat, serial uint32, edges geom.Edge)
	// SetParent reports a parent change. parent may be nil.
	SetParent(ds *Surface, parent *Surface)
	FullscreenRequested(ds *Surface, fullscreen bool, o *scene.Output)
	MaximizedRequested(ds *Surface, maximized bool)
	MinimizedRequested(ds *Surface)
	PingTimeout(c *Client)
	Pong(c *Client)
	SetXWaylandPosition(ds *Surface, pos geom.GlobalPoint)
	GetPosition(ds *Surface) geom.GlobalPoint
}

// BaseAPI ignores every callback. Shells embed it and override what they
// handle.
type BaseAPI struct{}

func (BaseAPI) SurfaceAdded(*Surface) {}
func (BaseAPI) SurfaceRemoved(*Surface) {}
func (BaseAPI) Committed(*Surface, geom.SurfacePoint) {}
func (BaseAPI) Move(*Surface, *seat.Seat, uint32) {}
func (BaseAPI) Resize(*Surface, *seat.Seat, uint32, geom.Edge) {}
func (BaseAPI) SetParent(*Surface, *Surface) {}
func (BaseAPI) FullscreenRequested(*Surface, bool, *scene.Output) {}
func (BaseAPI) MaximizedRequested(*Surface, bool) {}
func (BaseAPI) MinimizedRequested(*Surface) {}
func (BaseAPI) PingTimeout(*Client) {}
func (BaseAPI) Pong(*Client) {}
func (BaseAPI) SetXWaylandPosition(*Surface, geom.GlobalPoint) {}
func (BaseAPI) GetPosition(*Surface) geom.GlobalPoint { return geom.GlobalPoint{} }

type Option func(*Desktop)

func WithPingTimeout(d time.Duration) Option {
	return func(dt *Desktop) { dt.pingTimeout = d }
}

// Desktop owns every desktop surface and desktop client.
type Desktop struct {
	c     *scene.Compositor
	seats *seat.Manager
	api   API
	log   *log.Logger

	pingTimeout time.Duration
	clients     map[*protocol.Client]*Client
	surfaces    map[uint32]*Surface
	order       []*Surface
	grabs       map[*seat.Seat]*popupGrab
}

func New(c *scene.Compositor, seats *seat.Manager, api API, opts ...Option) *Desktop {
	d := &Desktop{
		c:           c,
		seats:       seats,
		api:         api,
		log:         logger.With("desktop"),
		pingTimeout: DefaultPingTimeout,
		clients:     map[*protocol.Client]*Client{},
		surfaces:    map[uint32]*Surface{},
		grabs:       map[*seat.Seat]*popupGrab{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Desktop) Compositor() *scene.Compositor { return d.c }
func (d *Desktop) Seats() *seat.Manager { return d.seats }

// Surfaces returns every live desktop surface in creation order.
func (d *Desktop) Surfaces() []*Surface {
	out := make([]*Surface, 0, len(d.order))
	return append(out, d.order...)
}

// FromSurface returns the desktop surface wrapping s, or nil.
func (d *Desktop) FromSurface(s *scene.Surface) *Surface {
	if s == nil {
		return nil
	}
	return d.surfaces[s.ID()]
}

// Client is the desktop view of a protocol client.
type Client struct {
	d      *Desktop
	client *protocol.Client

	pingSerial   uint32
	pingTimer    *eventloop.Timer
	unresponsive bool
	surfaces     []*Surface
}

// Client returns the desktop client for pc, creating it on first use.
func (d *Desktop) Client(pc *protocol.Client) *Client {
	if cl, ok := d.clients[pc]; ok {
		return cl
	}
	cl := &Client{d: d, client: pc}
	cl.pingTimer = d.c.Loop().AddTimer(cl.pingExpired)
	d.clients[pc] = cl
	pc.Destroyed.Subscribe(func(*protocol.Client) { d.dropClient(cl) })
	return cl
}

func (d *Desktop) dropClient(cl *Client) {
	for _, ds := range append([]*Surface(nil), cl.surfaces...) {
		ds.Destroy()
	}
	cl.pingTimer.Remove()
	delete(d.clients, cl.client)
}

func (cl *Client) Protocol() *protocol.Client { return cl.client }
func (cl *Client) Unresponsive() bool { return cl.unresponsive }
func (cl *Client) PingPending() bool { return cl.pingSerial != 0 }

// Surfaces returns the client's desktop surfaces.
func (cl *Client) Surfaces() []*Surface {
	return append([]*Surface(nil), cl.surfaces...)
}

// Ping asks the client to prove it is responsive. A ping already in flight
// is not repeated.
func (cl *Client) Ping() {
	if cl.pingSerial != 0 {
		return
	}
	cl.pingSerial = cl.d.seats.NextSerial()
	cl.client.Send(protocol.Ping{Serial: cl.pingSerial})
	cl.pingTimer.Arm(cl.d.pingTimeout)
}

// Pong is xdg_wm_base.pong. Stale serials are ignored.
func (cl *Client) Pong(serial uint32) {
	if cl.pingSerial == 0 || serial != cl.pingSerial {
		return
	}
	cl.pingSerial = 0
	cl.pingTimer.Disarm()
	if cl.unresponsive {
		cl.unresponsive = false
		cl.d.api.Pong(cl)
	}
}

func (cl *Client) pingExpired() {
	cl.unresponsive = true
	cl.d.log.Debug("client unresponsive", "client", cl.client.Name)
	cl.d.api.PingTimeout(cl)
}
