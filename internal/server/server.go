// Package server assembles a running compositor from the configuration and
// supervises the event loop and the control socket.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/helper"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/kiosk"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/scene"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/shell"
	"github.com/charmbracelet/log"
	"github.com/thejerf/suture/v4"
)

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrUnknownShell   = errors.New("unknown shell")
)

const (
	ShellDesktop = "desktop"
	ShellKiosk   = "kiosk"

	BackendHeadless = "headless"

	// SeatName is the seat every server starts with.
	SeatName = "seat0"
)

// Server is one compositor instance: its loop, backend, scene, seats and
// shell, plus the control socket.
type Server struct {
	cfg *config.Config
	log *log.Logger

	loop    *eventloop.Loop
	backend *headless.Backend
	c       *scene.Compositor
	seats   *seat.Manager
	seat    *seat.Seat

	desktop *shell.Shell
	kiosk   *kiosk.Shell
	helper  *helper.Launcher

	ipc       *ipc.SocketServer
	emergency *EmergencyUnlock

	mu      sync.Mutex
	exitErr error
	closed  bool
}

type options struct {
	loop      []eventloop.Option
	shell     []shell.Option
	kiosk     []kiosk.Option
	helper    []helper.Option
	socket    string
	trigger   string
	noTrigger bool
}

// Option tweaks how New assembles the server.
type Option func(*options)

func WithLoopOptions(opts ...eventloop.Option) Option {
	return func(o *options) { o.loop = append(o.loop, opts...) }
}

func WithShellOptions(opts ...shell.Option) Option {
	return func(o *options) { o.shell = append(o.shell, opts...) }
}

func WithKioskOptions(opts ...kiosk.Option) Option {
	return func(o *options) { o.kiosk = append(o.kiosk, opts...) }
}

func WithHelperOptions(opts ...helper.Option) Option {
	return func(o *options) { o.helper = append(o.helper, opts...) }
}

// WithSocketPath overrides core.socket.
func WithSocketPath(path string) Option {
	return func(o *options) { o.socket = path }
}

// WithUnlockTrigger sets the file whose appearance forces an unlock. An
// empty path disables the file trigger.
func WithUnlockTrigger(path string) Option {
	return func(o *options) {
		o.trigger = path
		o.noTrigger = path == ""
	}
}

// New builds every component named by cfg. Nothing runs until Run.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{cfg: cfg, log: logger.With("server")}

	switch cfg.Core.Backend {
	case BackendHeadless, "":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Core.Backend)
	}
	switch cfg.Core.Shell {
	case ShellDesktop, ShellKiosk, "":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShell, cfg.Core.Shell)
	}

	r, err := renderer.New(cfg.Core.Renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	s.loop = eventloop.New(o.loop...)
	s.c = scene.New(s.loop,
		scene.WithRenderer(r),
		scene.WithIdleTime(time.Duration(cfg.Core.IdleTime)*time.Second),
		scene.WithRepaintWindow(time.Duration(cfg.Core.RepaintWindow)*time.Millisecond),
	)

	s.backend = headless.New(s.c, HeadlessConfig(cfg.Headless))
	if err := s.backend.CreateOutputs(); err != nil {
		return nil, fmt.Errorf("failed to initialize backend: %w", err)
	}

	s.seats = seat.NewManager(s.c)
	s.seat = s.seats.AddSeat(SeatName)
	if _, err := s.seat.InitPointer(); err != nil {
		return nil, err
	}
	if _, err := s.seat.InitKeyboard(); err != nil {
		return nil, err
	}
	if _, err := s.seat.InitTouch(); err != nil {
		return nil, err
	}

	if cfg.Core.Shell == ShellKiosk {
		kcfg, err := KioskConfig(cfg)
		if err != nil {
			return nil, err
		}
		s.kiosk = kiosk.New(s.c, s.seats, kcfg, o.kiosk...)
	} else {
		scfg, err := ShellConfig(cfg.Shell)
		if err != nil {
			return nil, err
		}
		sopts := o.shell
		if scfg.Client != "" {
			s.helper = helper.New(s.loop, scfg.Client, o.helper...)
			sopts = append([]shell.Option{shell.WithHelper(s.helper)}, sopts...)
		}
		s.desktop = shell.New(s.c, s.seats, scfg, sopts...)
		if s.helper != nil {
			if err := s.helper.Start(); err != nil {
				s.log.Error("failed to launch shell client", "path", scfg.Client, "err", err)
			}
		}
	}

	socket := cfg.Core.Socket
	if o.socket != "" {
		socket = o.socket
	}
	if s.ipc, err = ipc.NewSocketServer(socket, s); err != nil {
		return nil, err
	}

	trigger := o.trigger
	if trigger == "" && !o.noTrigger {
		trigger = DefaultUnlockTrigger()
	}
	s.emergency = NewEmergencyUnlock(s, trigger)

	s.log.Info("compositor ready",
		"backend", BackendHeadless,
		"shell", s.ShellName(),
		"renderer", r.Name(),
		"outputs", len(s.c.Outputs()))
	return s, nil
}

func (s *Server) Loop() *eventloop.Loop { return s.loop }
func (s *Server) Compositor() *scene.Compositor { return s.c }
func (s *Server) Backend() *headless.Backend { return s.backend }
func (s *Server) Seats() *seat.Manager { return s.seats }
func (s *Server) Seat() *seat.Seat { return s.seat }
func (s *Server) DesktopShell() *shell.Shell { return s.desktop }
func (s *Server) KioskShell() *kiosk.Shell { return s.kiosk }
func (s *Server) Helper() *helper.Launcher { return s.helper }
func (s *Server) SocketPath() string { return s.ipc.Path() }
func (s *Server) Emergency() *EmergencyUnlock { return s.emergency }

func (s *Server) ShellName() string {
	if s.kiosk != nil {
		return ShellKiosk
	}
	return ShellDesktop
}

// Run serves until ctx is done or the compositor quits. A clean quit or a
// canceled ctx returns nil; a fatal exit reason, such as a helper that
// crashed during startup, is returned as is.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sup := suture.New("waycomp", suture.Spec{
		EventHook: func(e suture.Event) { s.log.Warn("supervisor", "event", e.String()) },
	})
	sup.Add(&loopService{s: s, stop: cancel})
	sup.Add(s.ipc)
	sup.Add(s.emergency)

	err := sup.Serve(ctx)
	s.Close()

	if exit := s.ExitErr(); exit != nil {
		return exit
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ExitErr is the reason the loop quit with, when it was not a clean quit.
func (s *Server) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

func (s *Server) setExitErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitErr = err
}

// Close tears the shell and seats down. The loop must not be running.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.helper != nil {
		s.helper.Stop()
	}
	if s.desktop != nil {
		s.desktop.Close()
	}
	if s.kiosk != nil {
		s.kiosk.Close()
	}
	s.seats.Close()
	s.log.Info("compositor stopped")
}

// loopService runs the event loop under the supervisor. The loop is never
// restarted: its exit ends the whole tree.
type loopService struct {
	s    *Server
	stop context.CancelFunc
}

func (l *loopService) Serve(ctx context.Context) error {
	err := l.s.loop.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if cleanExit(err) {
		l.s.log.Info("compositor exiting", "reason", err)
	} else {
		l.s.log.Error("compositor exiting", "err", err)
		l.s.setExitErr(err)
	}
	l.stop()
	return suture.ErrDoNotRestart
}

func (l *loopService) String() string { return l.s.loop.String() }

func cleanExit(err error) bool {
	return err == nil || errors.Is(err, eventloop.ErrQuit) || errors.Is(err, shell.ErrZapped)
}
