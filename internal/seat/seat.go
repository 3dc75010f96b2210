// Package seat tracks input devices, their focus and the grabs that take
// over default event delivery.
package seat

import (
	"errors"
	"slices"

	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/signal"
	"github.com/charmbracelet/log"
)

var (
	ErrNoSeat       = errors.New("no such seat")
	ErrNoDevice     = errors.New("seat has no such device")
	ErrDeviceExists = errors.New("device already present")
)

// Capability mirrors the wl_seat capability bits.
type Capability uint32

const (
	CapPointer  Capability = 1
	CapKeyboard Capability = 2
	CapTouch    Capability = 4
)

// Manager owns every seat and the compositor-wide input bindings.
type Manager struct {
	c        *scene.Compositor
	log      *log.Logger
	seats    []*Seat
	serial   uint32
	Bindings *Bindings

	SeatAdded   signal.Signal[*Seat]
	SeatRemoved signal.Signal[*Seat]
	ToolAdded   signal.Signal[*TabletTool]

	subs signal.Bag
}

// NewManager creates a manager that drops focus from views as they unmap.
func NewManager(c *scene.Compositor) *Manager {
	m := &Manager{
		c:        c,
		log:      logger.With("seat"),
		Bindings: NewBindings(),
	}
	m.subs.Add(c.ViewUnmapped.Subscribe(m.viewUnmapped))
	m.subs.Add(c.SurfaceUnmapped.Subscribe(m.surfaceUnmapped))
	return m
}

func (m *Manager) Compositor() *scene.Compositor { return m.c }
func (m *Manager) Seats() []*Seat { return slices.Clone(m.seats) }

// NextSerial hands out display-wide event serials.
func (m *Manager) NextSerial() uint32 {
	m.serial++
	return m.serial
}

// Seat returns the named seat or nil.
func (m *Manager) Seat(name string) *Seat {
	for _, s := range m.seats {
		if s.name == name {
			return s
		}
	}
	return nil
}

// AddSeat creates an empty seat. Devices are added with the Init methods.
func (m *Manager) AddSeat(name string) *Seat {
	s := &Seat{m: m, c: m.c, name: name}
	m.seats = append(m.seats, s)
	m.log.Info("seat added", "seat", name)
	m.SeatAdded.Emit(s)
	return s
}

// RemoveSeat releases every device of s and leaves its client resources
// inert with no capabilities.
func (m *Manager) RemoveSeat(s *Seat) {
	i := slices.Index(m.seats, s)
	if i < 0 {
		return
	}
	s.ReleaseTabletTools()
	s.ReleaseTouch()
	s.ReleaseKeyboard()
	s.ReleasePointer()
	m.seats = slices.Delete(m.seats, i, i+1)
	s.removed = true
	for _, r := range s.resources {
		r.makeInert()
	}
	m.log.Info("seat removed", "seat", s.name)
	m.SeatRemoved.Emit(s)
	s.Destroyed.Emit(s)
}

// Close detaches from the compositor.
func (m *Manager) Close() { m.subs.Cancel() }

func (m *Manager) viewUnmapped(v *scene.View) {
	for _, s := range m.seats {
		if s.pointer != nil && s.pointer.focus == v {
			s.pointer.ClearFocus()
			s.pointer.Repick()
		}
		if s.touch != nil && s.touch.focus == v {
			s.touch.setFocus(nil)
		}
		for _, tool := range s.tools {
			if tool.focus == v {
				tool.setFocus(nil)
			}
		}
	}
}

func (m *Manager) surfaceUnmapped(surf *scene.Surface) {
	for _, s := range m.seats {
		if s.keyboard != nil && s.keyboard.focus == surf {
			s.keyboard.SetFocus(nil)
		}
	}
}

// Seat is a group of input devices sharing focus.
type Seat struct {
	m    *Manager
	c    *scene.Compositor
	name string

	pointer  *Pointer
	keyboard *Keyboard
	touch    *Touch
	tools    []*TabletTool

	resources []*SeatResource
	removed   bool

	// KeyboardFocusChanged fires after the keyboard focus moved. The argument
	// is the previous focus, possibly nil.
	KeyboardFocusChanged signal.Signal[*scene.Surface]
	CapsChanged          signal.Signal[*Seat]
	Destroyed            signal.Signal[*Seat]
}

func (s *Seat) Name() string { return s.name }
func (s *Seat) Manager() *Manager { return s.m }
func (s *Seat) Compositor() *scene.Compositor { return s.c }
func (s *Seat) Pointer() *Pointer { return s.pointer }
func (s *Seat) Keyboard() *Keyboard { return s.keyboard }
func (s *Seat) Touch() *Touch { return s.touch }
func (s *Seat) TabletTools() []*TabletTool { return slices.Clone(s.tools) }
func (s *Seat) Removed() bool { return s.removed }

// Capabilities reports which devices are present.
func (s *Seat) Capabilities() Capability {
	var caps Capability
	if s.pointer != nil {
		caps |= CapPointer
	}
	if s.keyboard != nil {
		caps |= CapKeyboard
	}
	if s.touch != nil {
		caps |= CapTouch
	}
	return caps
}

// KeyboardFocus returns the focused surface or nil.
func (s *Seat) KeyboardFocus() *scene.Surface {
	if s.keyboard == nil {
		return nil
	}
	return s.keyboard.focus
}

// Modifiers returns the held modifiers, or none without a keyboard.
func (s *Seat) Modifiers() Modifier {
	if s.keyboard == nil {
		return 0
	}
	return s.keyboard.mods
}

// SetKeyboardFocus focuses surf if the seat has a keyboard.
func (s *Seat) SetKeyboardFocus(surf *scene.Surface) {
	if s.keyboard != nil {
		s.keyboard.SetFocus(surf)
	}
}

// InitPointer adds a pointer device.
func (s *Seat) InitPointer() (*Pointer, error) {
	if s.pointer != nil {
		return nil, ErrDeviceExists
	}
	s.pointer = newPointer(s)
	s.capsChanged()
	return s.pointer, nil
}

// ReleasePointer removes the pointer, cancelling its grab.
func (s *Seat) ReleasePointer() {
	p := s.pointer
	if p == nil {
		return
	}
	p.CancelGrab()
	p.ClearFocus()
	s.pointer = nil
	p.Destroyed.Emit(p)
	s.capsChanged()
}

func (s *Seat) InitKeyboard() (*Keyboard, error) {
	if s.keyboard != nil {
		return nil, ErrDeviceExists
	}
	s.keyboard = newKeyboard(s)
	s.capsChanged()
	return s.keyboard, nil
}

func (s *Seat) ReleaseKeyboard() {
	k := s.keyboard
	if k == nil {
		return
	}
	k.CancelGrab()
	k.SetFocus(nil)
	s.keyboard = nil
	k.Destroyed.Emit(k)
	s.capsChanged()
}

func (s *Seat) InitTouch() (*Touch, error) {
	if s.touch != nil {
		return nil, ErrDeviceExists
	}
	s.touch = newTouch(s)
	s.capsChanged()
	return s.touch, nil
}

func (s *Seat) ReleaseTouch() {
	t := s.touch
	if t == nil {
		return
	}
	t.CancelGrab()
	t.setFocus(nil)
	s.touch = nil
	t.Destroyed.Emit(t)
	s.capsChanged()
}

// AddTabletTool adds a tablet tool. Tablets are not a wl_seat capability.
func (s *Seat) AddTabletTool(name string) *TabletTool {
	tool := newTabletTool(s, name)
	s.tools = append(s.tools, tool)
	s.m.ToolAdded.Emit(tool)
	return tool
}

// ReleaseTabletTools removes every tablet tool.
func (s *Seat) ReleaseTabletTools() {
	for _, tool := range s.tools {
		tool.CancelGrab()
		tool.setFocus(nil)
		tool.Destroyed.Emit(tool)
	}
	s.tools = nil
}

func (s *Seat) capsChanged() {
	caps := s.Capabilities()
	for _, r := range s.resources {
		r.sendCaps(caps)
	}
	s.CapsChanged.Emit(s)
}

func (s *Seat) activity() {
	s.c.ActivityNotify()
}

// SeatResource is a client's wl_seat object.
type SeatResource struct {
	seat    *Seat
	client  *protocol.Client
	inert   bool
	devices []*DeviceResource
}

// DeviceResource is a client's wl_pointer, wl_keyboard or wl_touch object.
type DeviceResource struct {
	Cap    Capability
	client *protocol.Client
	inert  bool
}

func (d *DeviceResource) Inert() bool { return d.inert }

// Bind is a client binding the wl_seat global. It immediately receives the
// current capabilities.
func (s *Seat) Bind(client *protocol.Client) *SeatResource {
	r := &SeatResource{seat: s, client: client, inert: s.removed}
	if !s.removed {
		s.resources = append(s.resources, r)
	}
	r.sendCaps(s.Capabilities())
	return r
}

func (r *SeatResource) Inert() bool { return r.inert }

func (r *SeatResource) sendCaps(caps Capability) {
	if r.inert {
		caps = 0
	}
	r.client.Send(protocol.SeatCapabilities{Caps: uint32(caps)})
	for _, d := range r.devices {
		if caps&d.Cap == 0 {
			d.inert = true
		}
	}
}

func (r *SeatResource) makeInert() {
	r.inert = true
	r.sendCaps(0)
}

// GetDevice is wl_seat.get_pointer, get_keyboard or get_touch. Requests for
// a missing capability or on a removed seat yield an inert object.
func (r *SeatResource) GetDevice(c Capability) *DeviceResource {
	d := &DeviceResource{
		Cap:    c,
		client: r.client,
		inert:  r.inert || r.seat.Capabilities()&c == 0,
	}
	r.devices = append(r.devices, d)
	return d
}

// Release is wl_seat.release.
func (r *SeatResource) Release() {
	s := r.seat
	if i := slices.Index(s.resources, r); i >= 0 {
		s.resources = slices.Delete(s.resources, i, i+1)
	}
	r.inert = true
}
