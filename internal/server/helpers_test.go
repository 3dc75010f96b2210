package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/helper"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct{ exit chan error }

func (p *fakeProcess) Pid() int    { return 4242 }
func (p *fakeProcess) Wait() error { return <-p.exit }

func (p *fakeProcess) Kill() error {
	select {
	case p.exit <- errors.New("killed"):
	default:
	}
	return nil
}

// fakeSpawner hands out processes that run until killed, or that exit
// right away when crash is set.
type fakeSpawner struct {
	crash bool
	procs []*fakeProcess
}

func (s *fakeSpawner) Spawn(string, ...string) (helper.Process, error) {
	p := &fakeProcess{exit: make(chan error, 1)}
	if s.crash {
		p.exit <- errors.New("segfault")
	}
	s.procs = append(s.procs, p)
	return p, nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig
	cfg.Core.Renderer = "noop"
	cfg.Core.IdleTime = 0
	cfg.Shell.StartupAnimation = "none"
	cfg.Shell.CloseAnimation = "none"
	cfg.Headless.Width = 640
	cfg.Headless.Height = 480
	cfg.Outputs = nil
	return &cfg
}

// socketPath stays short enough for sun_path.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "wc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

// newServer builds a server on a manual clock. Tests drive its loop with
// Advance and Dispatch.
func newServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{
		WithLoopOptions(eventloop.WithClock(eventloop.NewManualClock(time.Unix(100, 0)))),
		WithSocketPath(socketPath(t)),
		WithUnlockTrigger(""),
	}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// serveLoop builds a server on the real clock and runs its loop until the
// test ends.
func serveLoop(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{
		WithSocketPath(socketPath(t)),
		WithUnlockTrigger(""),
	}, opts...)
	s, err := New(cfg, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.loop.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		s.Close()
	})
	return s
}

// onLoop reads state from the running loop.
func onLoop[T any](t *testing.T, s *Server, fn func() T) T {
	t.Helper()
	var v T
	require.NoError(t, s.loop.Call(context.Background(), func() error {
		v = fn()
		return nil
	}))
	return v
}
