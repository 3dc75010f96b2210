// Package testdriver injects synthetic input into a seat and grabs output
// screenshots on behalf of test clients, the way the weston_test protocol
// extension does.
package testdriver

import (
	"errors"
	"fmt"
	"image"

	"github.com/bnema/waycomp/internal/geom"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/charmbracelet/log"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrNoOutput      = errors.New("no output to capture")
)

// TouchType is the wl_touch event a send_touch request synthesizes.
type TouchType uint32

const (
	TouchDown TouchType = iota
	TouchUp
	TouchMotion
)

func (t TouchType) String() string {
	switch t {
	case TouchDown:
		return "down"
	case TouchUp:
		return "up"
	case TouchMotion:
		return "motion"
	}
	return fmt.Sprintf("TouchType(%d)", uint32(t))
}

// Device names accepted by DeviceAdd and DeviceRelease.
const (
	DevicePointer  = "pointer"
	DeviceKeyboard = "keyboard"
	DeviceTouch    = "touch"
)

// Driver serves one client's test requests against a seat.
type Driver struct {
	c      *scene.Compositor
	seat   *seat.Seat
	client *protocol.Client
	log    *log.Logger

	// counts tracks how many times each device was added; the device goes
	// away when its count drops to zero.
	counts map[string]int
}

// New binds a driver for client to st. Devices already on the seat count
// once each.
func New(c *scene.Compositor, st *seat.Seat, client *protocol.Client) *Driver {
	d := &Driver{
		c:      c,
		seat:   st,
		client: client,
		log:    logger.With("test"),
		counts: make(map[string]int),
	}
	if st.Pointer() != nil {
		d.counts[DevicePointer] = 1
	}
	if st.Keyboard() != nil {
		d.counts[DeviceKeyboard] = 1
	}
	if st.Touch() != nil {
		d.counts[DeviceTouch] = 1
	}
	return d
}

func (d *Driver) Seat() *seat.Seat { return d.seat }

// MovePointer warps the pointer to a global position.
func (d *Driver) MovePointer(x, y float64) error {
	p := d.seat.Pointer()
	if p == nil {
		return fmt.Errorf("move_pointer: %w", seat.ErrNoDevice)
	}
	p.MoveTo(geom.GlobalPoint{X: x, Y: y})
	return nil
}

func (d *Driver) SendButton(button uint32, pressed bool) error {
	p := d.seat.Pointer()
	if p == nil {
		return fmt.Errorf("send_button: %w", seat.ErrNoDevice)
	}
	p.Button(button, pressed)
	return nil
}

func (d *Driver) SendAxis(axis uint32, value float64) error {
	p := d.seat.Pointer()
	if p == nil {
		return fmt.Errorf("send_axis: %w", seat.ErrNoDevice)
	}
	p.Axis(axis, value)
	return nil
}

func (d *Driver) SendKey(key uint32, pressed bool) error {
	k := d.seat.Keyboard()
	if k == nil {
		return fmt.Errorf("send_key: %w", seat.ErrNoDevice)
	}
	k.Key(key, pressed)
	return nil
}

// ActivateSurface gives surf keyboard focus. nil clears it.
func (d *Driver) ActivateSurface(surf *scene.Surface) {
	d.seat.SetKeyboardFocus(surf)
}

// SendTouch synthesizes a touch event. A touch-up carries no position; one
// with coordinates is a protocol error and is dropped.
func (d *Driver) SendTouch(id int32, x, y float64, typ TouchType) error {
	t := d.seat.Touch()
	if t == nil {
		return fmt.Errorf("send_touch: %w", seat.ErrNoDevice)
	}
	pos := geom.GlobalPoint{X: x, Y: y}
	switch typ {
	case TouchDown:
		t.Down(id, pos)
	case TouchMotion:
		t.Motion(id, pos)
	case TouchUp:
		if x != 0 || y != 0 {
			return d.client.Post(protocol.InterfaceTest, protocol.TestErrorTouchUpWithCoordinate,
				"touch up with coordinates (%g, %g)", x, y)
		}
		t.Up(id)
	default:
		return fmt.Errorf("send_touch: unknown type %s", typ)
	}
	return nil
}

// DeviceAdd adds one more device of the named kind to the seat.
func (d *Driver) DeviceAdd(name string) error {
	n, ok := d.count(name)
	if !ok {
		return fmt.Errorf("device_add %q: %w", name, ErrUnknownDevice)
	}
	d.counts[name] = n + 1
	if n > 0 {
		return nil
	}
	var err error
	switch name {
	case DevicePointer:
		_, err = d.seat.InitPointer()
	case DeviceKeyboard:
		_, err = d.seat.InitKeyboard()
	case DeviceTouch:
		_, err = d.seat.InitTouch()
	}
	if err != nil && !errors.Is(err, seat.ErrDeviceExists) {
		return fmt.Errorf("device_add %q: %w", name, err)
	}
	d.log.Debug("device added", "seat", d.seat.Name(), "device", name)
	return nil
}

// DeviceRelease drops one device of the named kind. The capability goes
// away with the last one.
func (d *Driver) DeviceRelease(name string) error {
	n, ok := d.count(name)
	if !ok {
		return fmt.Errorf("device_release %q: %w", name, ErrUnknownDevice)
	}
	if n == 0 {
		return fmt.Errorf("device_release %q: %w", name, seat.ErrNoDevice)
	}
	d.counts[name] = n - 1
	if n > 1 {
		return nil
	}
	switch name {
	case DevicePointer:
		d.seat.ReleasePointer()
	case DeviceKeyboard:
		d.seat.ReleaseKeyboard()
	case DeviceTouch:
		d.seat.ReleaseTouch()
	}
	d.log.Debug("device released", "seat", d.seat.Name(), "device", name)
	return nil
}

func (d *Driver) count(name string) (int, bool) {
	switch name {
	case DevicePointer, DeviceKeyboard, DeviceTouch:
		return d.counts[name], true
	}
	return 0, false
}

// CaptureScreenshot queues a capture of o, or of the default output when o
// is nil. done runs after the next repaint of that output.
func (d *Driver) CaptureScreenshot(o *scene.Output, done func(*image.RGBA, error)) error {
	if o == nil {
		o = d.c.DefaultOutput()
	}
	if o == nil {
		return ErrNoOutput
	}
	o.Capture(done)
	d.c.ScheduleRepaint(o)
	return nil
}
