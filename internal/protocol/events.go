package protocol

// Event is anything the compositor sends to a client.
type Event interface {
	EventName() string
}

// SurfaceRef identifies a surface in events without importing the scene.
type SurfaceRef uint32

type PointerEnter struct {
	Surface SurfaceRef
	X, Y    float64
	Serial  uint32
}

type PointerLeave struct {
	Surface SurfaceRef
	Serial  uint32
}

type PointerMotion struct {
	X, Y float64
}

type PointerButton struct {
	Button  uint32
	Pressed bool
	Serial  uint32
}

type PointerAxis struct {
	Axis  uint32
	Value float64
}

type KeyboardEnter struct {
	Surface SurfaceRef
	Serial  uint32
}

type KeyboardLeave struct {
	Surface SurfaceRef
	Serial  uint32
}

type KeyboardKey struct {
	Key     uint32
	Pressed bool
}

type TouchDown struct {
	Surface SurfaceRef
	ID      int32
	X, Y    float64
}

type TouchUp struct {
	ID int32
}

type TouchMotion struct {
	ID   int32
	X, Y float64
}

// SeatCapabilities mirrors wl_seat.capabilities.
type SeatCapabilities struct {
	Caps uint32
}

// Configure is an xdg_toplevel configure followed by its xdg_surface serial.
type Configure struct {
	Serial     uint32
	Width      int32
	Height     int32
	Maximized  bool
	Fullscreen bool
	Resizing   bool
	Activated  bool
	TiledEdges uint32
}

// PopupConfigure positions an xdg_popup relative to its parent.
type PopupConfigure struct {
	Serial              uint32
	X, Y, Width, Height int32
}

type PopupDone struct{}

type Ping struct {
	Serial uint32
}

// ShellConfigure asks a background or panel client for a size.
type ShellConfigure struct {
	Surface       SurfaceRef
	Width, Height int32
}

type PrepareLockSurface struct{}

type GrabCursor struct {
	Cursor uint32
}

// FrameDone is a fired wl_surface.frame callback.
type FrameDone struct {
	Surface SurfaceRef
	Time    uint32
}

type BufferRelease struct {
	Surface SurfaceRef
}

func (PointerEnter) EventName() string { return "wl_pointer.enter" }
func (PointerLeave) EventName() string { return "wl_pointer.leave" }
func (PointerMotion) EventName() string { return "wl_pointer.motion" }
func (PointerButton) EventName() string { return "wl_pointer.button" }
func (PointerAxis) EventName() string { return "wl_pointer.axis" }
func (KeyboardEnter) EventName() string { return "wl_keyboard.enter" }
func (KeyboardLeave) EventName() string { return "wl_keyboard.leave" }
func (KeyboardKey) EventName() string { return "wl_keyboard.key" }
func (TouchDown) EventName() string { return "wl_touch.down" }
func (TouchUp) EventName() string { return "wl_touch.up" }
func (TouchMotion) EventName() string { return "wl_touch.motion" }
func (SeatCapabilities) EventName() string { return "wl_seat.capabilities" }
func (Configure) EventName() string { return "xdg_toplevel.configure" }
func (PopupConfigure) EventName() string { return "xdg_popup.configure" }
func (PopupDone) EventName() string { return "xdg_popup.popup_done" }
func (Ping) EventName() string { return "xdg_wm_base.ping" }
func (ShellConfigure) EventName() string { return "weston_desktop_shell.configure" }
func (PrepareLockSurface) EventName() string { return "weston_desktop_shell.prepare_lock_surface" }
func (GrabCursor) EventName() string { return "weston_desktop_shell.grab_cursor" }
func (FrameDone) EventName() string { return "wl_callback.done" }
func (BufferRelease) EventName() string { return "wl_buffer.release" }

// EventsOf filters a client's history down to one event type.
func EventsOf[T Event](c *Client) []T {
	var out []T
	for _, ev := range c.Events() {
		if v, ok := ev.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
