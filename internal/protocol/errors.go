// Package protocol models the client side of the compositor: client handles,
// posted protocol errors and the events a client would receive. Wire encoding
// lives outside the core; requests arrive already parsed.
package protocol

import "fmt"

// Interface names used when posting errors.
const (
	InterfaceDisplay       = "wl_display"
	InterfaceSurface       = "wl_surface"
	InterfaceSubcompositor = "wl_subcompositor"
	InterfaceSubsurface    = "wl_subsurface"
	InterfaceSeat          = "wl_seat"
	InterfaceXdgWmBase     = "xdg_wm_base"
	InterfaceXdgSurface    = "xdg_surface"
	InterfaceXdgPopup      = "xdg_popup"
	InterfaceXdgToplevel   = "xdg_toplevel"
	InterfaceDesktopShell  = "weston_desktop_shell"
	InterfaceTest          = "weston_test"
)

// Error codes per interface.
const (
	DisplayErrorInvalidObject uint32 = 0
	DisplayErrorInvalidMethod uint32 = 1
	DisplayErrorNoMemory      uint32 = 2

	SurfaceErrorInvalidScale     uint32 = 0
	SurfaceErrorInvalidTransform uint32 = 1
	SurfaceErrorInvalidSize      uint32 = 2

	SubcompositorErrorBadSurface uint32 = 0
	SubsurfaceErrorBadSurface    uint32 = 0

	XdgWmBaseErrorRole                uint32 = 0
	XdgWmBaseErrorNotTheTopmost       uint32 = 2
	XdgWmBaseErrorInvalidPopupParent  uint32 = 3
	XdgSurfaceErrorUnconfiguredBuffer uint32 = 3
	XdgSurfaceErrorInvalidSerial      uint32 = 4
	XdgSurfaceErrorInvalidSize        uint32 = 5
	XdgPopupErrorInvalidGrab          uint32 = 0

	XdgToplevelErrorInvalidResizeEdge uint32 = 0
	XdgToplevelErrorInvalidParent     uint32 = 1
	XdgToplevelErrorInvalidSize       uint32 = 2

	DesktopShellErrorInvalidArgument uint32 = 0

	TestErrorTouchUpWithCoordinate uint32 = 0
)

// Error is a protocol error posted on a client resource.
type Error struct {
	Interface string
	Code      uint32
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Interface, e.Code, e.Message)
}

// Is matches on interface and code so callers can compare against a template
// error with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Interface == e.Interface && t.Code == e.Code
}

// NewError builds a protocol error with a formatted message.
func NewError(iface string, code uint32, format string, args ...any) *Error {
	return &Error{Interface: iface, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrBadSubsurface is the template for sub-compositor bad_surface errors.
var ErrBadSubsurface = &Error{Interface: InterfaceSubcompositor, Code: SubcompositorErrorBadSurface}

// ErrNoMemory is the template for out-of-memory posts.
var ErrNoMemory = &Error{Interface: InterfaceDisplay, Code: DisplayErrorNoMemory}
