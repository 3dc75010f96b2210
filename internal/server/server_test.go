package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/helper"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/kiosk"
	"github.com/bnema/waycomp/internal/renderer"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.Core.Backend = "drm" },
			wantErr: ErrUnknownBackend,
		},
		{
			name:    "unknown shell",
			mutate:  func(c *config.Config) { c.Core.Shell = "ivi" },
			wantErr: ErrUnknownShell,
		},
		{
			name:    "unavailable renderer",
			mutate:  func(c *config.Config) { c.Core.Renderer = "vulkan" },
			wantErr: renderer.ErrRendererUnavailable,
		},
		{
			name:    "unknown renderer",
			mutate:  func(c *config.Config) { c.Core.Renderer = "software" },
			wantErr: renderer.ErrUnknownRenderer,
		},
		{
			name:   "bad panel position",
			mutate: func(c *config.Config) { c.Shell.PanelPosition = "middle" },
		},
		{
			name: "bad kiosk color",
			mutate: func(c *config.Config) {
				c.Core.Shell = ShellKiosk
				c.Shell.BackgroundColor = "blue"
			},
		},
		{
			name: "kiosk output without name",
			mutate: func(c *config.Config) {
				c.Core.Shell = ShellKiosk
				c.Outputs = []config.OutputConfig{{AppIDs: "a"}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			s, err := New(cfg, WithSocketPath(socketPath(t)), WithUnlockTrigger(""))

			require.Error(t, err)
			assert.Nil(t, s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNewDesktop(t *testing.T) {
	cfg := testConfig()
	cfg.Headless.Outputs = 2

	s := newServer(t, cfg)

	assert.Equal(t, ShellDesktop, s.ShellName())
	require.NotNil(t, s.DesktopShell())
	assert.Nil(t, s.KioskShell())
	assert.Nil(t, s.Helper())
	assert.Len(t, s.Compositor().Outputs(), 2)
	assert.Equal(t, "noop", s.Compositor().Renderer().Name())

	require.NotNil(t, s.Seat())
	assert.Equal(t, SeatName, s.Seat().Name())
	assert.Equal(t, seat.CapPointer|seat.CapKeyboard|seat.CapTouch, s.Seat().Capabilities())
	assert.NotNil(t, s.DesktopShell().Placeholder(s.Compositor().DefaultOutput()))
}

func TestNewStartsHelper(t *testing.T) {
	cfg := testConfig()
	cfg.Shell.Client = "/usr/libexec/waycomp-shell"
	sp := &fakeSpawner{}

	s := newServer(t, cfg, WithHelperOptions(helper.WithSpawner(sp)))

	require.NotNil(t, s.Helper())
	assert.True(t, s.Helper().Running())
	assert.Equal(t, "waycomp-shell", s.Helper().Client().Name)
	assert.Len(t, sp.procs, 1)

	_, err := s.DesktopShell().Bind(s.Helper().Client())
	assert.NoError(t, err, "the helper may bind the desktop shell")
}

func TestNewKiosk(t *testing.T) {
	cfg := testConfig()
	cfg.Core.Shell = ShellKiosk
	cfg.Shell.BackgroundColor = "#336699"
	cfg.Outputs = []config.OutputConfig{{Name: "headless-1", AppIDs: "org.example.player"}}

	s := newServer(t, cfg)

	assert.Equal(t, ShellKiosk, s.ShellName())
	assert.Nil(t, s.DesktopShell())
	require.NotNil(t, s.KioskShell())
	bg := s.KioskShell().Background(s.Compositor().DefaultOutput())
	require.NotNil(t, bg)
	assert.InDelta(t, float32(0x33)/255, bg.Surface.Buffer().Solid.R, 1e-6)
}

func TestShellConfig(t *testing.T) {
	in := config.DefaultConfig.Shell
	in.Client = "/bin/shell"
	in.BindingModifier = "alt"
	in.Animation = "zoom"
	in.FocusAnimation = "dim-layer"
	in.PanelPosition = "left"
	in.Locking = false

	got, err := ShellConfig(in)

	require.NoError(t, err)
	assert.Equal(t, shell.Config{
		Client:           "/bin/shell",
		AllowZap:         true,
		BindingModifier:  seat.ModAlt,
		Animation:        animation.Zoom,
		CloseAnimation:   animation.Fade,
		StartupAnimation: animation.Fade,
		FocusAnimation:   animation.DimLayer,
		PanelPosition:    shell.PanelLeft,
	}, got)
}

func TestKioskConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Shell.BackgroundColor = "0x80102030"
	cfg.Outputs = []config.OutputConfig{
		{Name: "headless-1", AppIDs: "a, b,,c"},
		{Name: "headless-2", X11WMName: "Player", X11WMClass: "mpv,vlc"},
	}

	got, err := KioskConfig(cfg)

	require.NoError(t, err)
	assert.Equal(t, kiosk.Config{
		BackgroundColor: 0x80102030,
		Outputs: []kiosk.OutputConfig{
			{Name: "headless-1", AppIDs: []string{"a", "b", "c"}},
			{Name: "headless-2", X11WMName: []string{"Player"}, X11WMClass: []string{"mpv", "vlc"}},
		},
	}, got)
}

func TestRunExitReasons(t *testing.T) {
	tests := []struct {
		name    string
		quit    func(s *Server, cancel context.CancelFunc)
		wantErr error
	}{
		{
			name: "context canceled",
			quit: func(_ *Server, cancel context.CancelFunc) { cancel() },
		},
		{
			name: "clean quit",
			quit: func(s *Server, _ context.CancelFunc) { s.Loop().Quit(nil) },
		},
		{
			name: "zapped",
			quit: func(s *Server, _ context.CancelFunc) { s.Loop().Quit(shell.ErrZapped) },
		},
		{
			name:    "fatal",
			quit:    func(s *Server, _ context.CancelFunc) { s.Loop().Quit(helper.ErrCrashedEarly) },
			wantErr: helper.ErrCrashedEarly,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(testConfig(), WithSocketPath(socketPath(t)), WithUnlockTrigger(""))
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()

			client, err := ipc.NewClientWithTimeout(s.SocketPath(), time.Second)
			require.NoError(t, err)
			require.Eventually(t, client.IsRunning, 5*time.Second, 20*time.Millisecond)

			tt.quit(s, cancel)

			select {
			case err := <-done:
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NoError(t, err)
				}
			case <-time.After(15 * time.Second):
				t.Fatal("Run did not return")
			}
			assert.False(t, client.IsRunning(), "socket is gone after Run")
		})
	}
}

func TestRunFailsWhenHelperCrashesEarly(t *testing.T) {
	cfg := testConfig()
	cfg.Shell.Client = "/usr/libexec/waycomp-shell"
	s, err := New(cfg,
		WithSocketPath(socketPath(t)),
		WithUnlockTrigger(""),
		WithHelperOptions(helper.WithSpawner(&fakeSpawner{crash: true})),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = s.Run(ctx)

	assert.ErrorIs(t, err, helper.ErrCrashedEarly)
	assert.ErrorIs(t, s.ExitErr(), helper.ErrCrashedEarly)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := New(testConfig(),
		WithLoopOptions(eventloop.WithClock(eventloop.NewManualClock(time.Unix(0, 0)))),
		WithSocketPath(socketPath(t)),
		WithUnlockTrigger(""),
	)
	require.NoError(t, err)

	s.Close()
	s.Close()
	assert.NoError(t, s.ExitErr())
}

func TestCleanExit(t *testing.T) {
	assert.True(t, cleanExit(nil))
	assert.True(t, cleanExit(eventloop.ErrQuit))
	assert.True(t, cleanExit(shell.ErrZapped))
	assert.False(t, cleanExit(helper.ErrCrashedEarly))
	assert.False(t, cleanExit(errors.New("backend lost")))
}
