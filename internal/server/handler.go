package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
)

var ErrNoLockScreen = errors.New("kiosk shell has no lock screen")

// CaptureTimeout bounds how long a capture request waits for a frame.
const CaptureTimeout = 4 * time.Second

// HandleRequest answers control socket requests. Everything touching the
// scene is marshalled onto the event loop.
func (s *Server) HandleRequest(ctx context.Context, req *ipc.Request) (*ipc.Response, error) {
	switch req.Type {
	case ipc.TypeStatus:
		var st *ipc.Status
		if err := s.loop.Call(ctx, func() error {
			st = s.Status()
			return nil
		}); err != nil {
			return nil, err
		}
		return &ipc.Response{Type: ipc.TypeStatus, Status: st}, nil

	case ipc.TypeLock:
		return nil, s.loop.Call(ctx, s.lock)

	case ipc.TypeUnlock:
		return nil, s.loop.Call(ctx, s.unlock)

	case ipc.TypeCapture:
		c, err := s.Capture(ctx, req.Output)
		if err != nil {
			return nil, err
		}
		return &ipc.Response{Type: ipc.TypeCapture, Capture: c}, nil
	}
	return nil, fmt.Errorf("%w: %q", ipc.ErrUnknownType, req.Type)
}

func (s *Server) lock() error {
	if s.desktop == nil {
		return ErrNoLockScreen
	}
	s.log.Info("lock requested")
	s.desktop.Lock()
	return nil
}

// unlock wakes the compositor; the shell reacts to the wake-up as it
// would to user input.
func (s *Server) unlock() error {
	s.log.Info("unlock requested")
	s.c.WakeUp()
	return nil
}

// Status snapshots the scene. It must run on the event loop.
func (s *Server) Status() *ipc.Status {
	out := &ipc.Status{Shell: s.ShellName(), Backend: BackendHeadless}
	if s.desktop != nil {
		out.Locked = s.desktop.Locked()
	}

	for _, o := range s.c.Outputs() {
		m, pos := o.Mode(), o.Position()
		out.Outputs = append(out.Outputs, ipc.OutputStatus{
			Name:    o.Name,
			X:       int32(pos.X),
			Y:       int32(pos.Y),
			Width:   m.Width,
			Height:  m.Height,
			Refresh: m.Refresh,
			Power:   o.Power().String(),
		})
	}

	for _, l := range s.c.Layers() {
		ls := ipc.LayerStatus{Name: l.Name(), Position: uint32(l.Position())}
		for _, v := range l.Views() {
			ls.Views = append(ls.Views, viewStatus(v))
		}
		out.Layers = append(out.Layers, ls)
	}

	for _, st := range s.seats.Seats() {
		ss := ipc.SeatStatus{
			Name:         st.Name(),
			Capabilities: capabilityNames(st.Capabilities()),
		}
		if surf := st.KeyboardFocus(); surf != nil {
			ss.Keyboard = surf.Label()
		}
		if p := st.Pointer(); p != nil && p.Focus() != nil {
			ss.Pointer = p.Focus().Surface().Label()
		}
		out.Seats = append(out.Seats, ss)
	}
	return out
}

func viewStatus(v *scene.View) ipc.ViewStatus {
	surf := v.Surface()
	size := surf.Size()
	pos := v.Position()
	vs := ipc.ViewStatus{
		Label:  surf.Label(),
		X:      pos.X,
		Y:      pos.Y,
		Width:  size.W,
		Height: size.H,
		Alpha:  float64(v.Alpha()),
		Mapped: v.IsMapped(),
	}
	if c := surf.Client(); c != nil {
		vs.Client = c.Name
	}
	if o := v.Output(); o != nil {
		vs.Output = o.Name
	}
	return vs
}

func capabilityNames(caps seat.Capability) []string {
	var names []string
	if caps&seat.CapPointer != 0 {
		names = append(names, "pointer")
	}
	if caps&seat.CapKeyboard != 0 {
		names = append(names, "keyboard")
	}
	if caps&seat.CapTouch != 0 {
		names = append(names, "touch")
	}
	return names
}

type captureResult struct {
	output string
	img    *image.RGBA
	err    error
}

// Capture renders the named output, or the default one, into a PNG.
func (s *Server) Capture(ctx context.Context, name string) (*ipc.Capture, error) {
	ctx, cancel := context.WithTimeout(ctx, CaptureTimeout)
	defer cancel()

	done := make(chan captureResult, 1)
	err := s.loop.Call(ctx, func() error {
		o := s.c.DefaultOutput()
		if name != "" {
			o = s.c.OutputByName(name)
		}
		if o == nil {
			if name == "" {
				return scene.ErrNoOutput
			}
			return fmt.Errorf("%w: %s", scene.ErrNoOutput, name)
		}
		o.Capture(func(img *image.RGBA, err error) {
			done <- captureResult{output: o.Name, img: img, err: err}
		})
		s.c.ScheduleRepaint(o)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var r captureResult
	select {
	case r = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("capture: %w", ctx.Err())
	}
	if r.err != nil {
		return nil, fmt.Errorf("capture %s: %w", r.output, r.err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, r.img); err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	b := r.img.Bounds()
	return &ipc.Capture{
		Output: r.output,
		Width:  b.Dx(),
		Height: b.Dy(),
		PNG:    buf.Bytes(),
	}, nil
}
