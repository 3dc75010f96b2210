// Package helper launches and supervises the shell's helper client, the
// process that paints backgrounds, panels and the lock dialog.
package helper

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bnema/waycomp/internal/eventloop"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/protocol"
	"github.com/bnema/waycomp/internal/signal"
	"github.com/charmbracelet/log"
)

const (
	// CrashWindow is both the early-crash window after startup and the
	// window in which deaths are counted.
	CrashWindow = 30 * time.Second
	// MaxDeaths is how many deaths inside CrashWindow are tolerated.
	MaxDeaths = 5
)

var (
	ErrCrashedEarly = errors.New("helper client died during startup")
	ErrGaveUp       = errors.New("helper client died too often, giving up")
	ErrNoPath       = errors.New("no helper client configured")
)

// Process is a running helper.
type Process interface {
	Pid() int
	Wait() error
	Kill() error
}

// Spawner starts helper processes.
type Spawner interface {
	Spawn(path string, args ...string) (Process, error)
}

// ExecSpawner starts real processes.
type ExecSpawner struct {
	Env []string
}

type execProcess struct{ cmd *exec.Cmd }

func (p execProcess) Pid() int { return p.cmd.Process.Pid }
func (p execProcess) Wait() error { return p.cmd.Wait() }
func (p execProcess) Kill() error { return p.cmd.Process.Kill() }

func (s ExecSpawner) Spawn(path string, args ...string) (Process, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), s.Env...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	return execProcess{cmd}, nil
}

// Launcher keeps one helper running and respawns it when it dies.
type Launcher struct {
	loop    *eventloop.Loop
	log     *log.Logger
	spawner Spawner
	path    string
	args    []string

	startup    time.Time
	deathStamp time.Time
	deathCount int

	proc    Process
	client  *protocol.Client
	stopped bool
	gaveUp  bool

	// Spawned fires with the client handle of every started helper.
	Spawned signal.Signal[*protocol.Client]
	// Died fires with the client handle of a helper that exited.
	Died signal.Signal[*protocol.Client]
}

// Option configures a Launcher.
type Option func(*Launcher)

func WithSpawner(s Spawner) Option {
	return func(l *Launcher) { l.spawner = s }
}

func WithArgs(args ...string) Option {
	return func(l *Launcher) { l.args = args }
}

// New creates a launcher for the helper at path. The startup clock starts
// now, so create it when the compositor starts.
func New(loop *eventloop.Loop, path string, opts ...Option) *Launcher {
	l := &Launcher{
		loop:    loop,
		log:     logger.With("helper"),
		spawner: ExecSpawner{},
		path:    path,
		startup: loop.Now(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Launcher) Path() string { return l.path }
func (l *Launcher) Client() *protocol.Client { return l.client }
func (l *Launcher) Running() bool { return l.proc != nil }
func (l *Launcher) GaveUp() bool { return l.gaveUp }
func (l *Launcher) Deaths() int { return l.deathCount }

// IsHelper reports whether c is the running helper's connection.
func (l *Launcher) IsHelper(c *protocol.Client) bool {
	return c != nil && l.client == c
}

// Start launches the helper.
func (l *Launcher) Start() error {
	if l.path == "" {
		return ErrNoPath
	}
	l.stopped = false
	return l.spawn()
}

func (l *Launcher) spawn() error {
	proc, err := l.spawner.Spawn(l.path, l.args...)
	if err != nil {
		return err
	}
	l.proc = proc
	l.client = protocol.NewClient(filepath.Base(l.path), proc.Pid())
	l.log.Info("helper started", "path", l.path, "pid", proc.Pid())
	l.Spawned.Emit(l.client)

	go func() {
		err := proc.Wait()
		l.loop.Post(func() { l.exited(proc, err) })
	}()
	return nil
}

// Stop kills the helper without respawning it.
func (l *Launcher) Stop() {
	l.stopped = true
	if l.proc != nil {
		if err := l.proc.Kill(); err != nil {
			l.log.Debug("kill helper", "err", err)
		}
	}
}

func (l *Launcher) exited(proc Process, err error) {
	if proc != l.proc {
		return
	}
	client := l.client
	l.proc = nil
	l.client = nil
	if client != nil {
		client.Destroy()
		l.Died.Emit(client)
	}
	if l.stopped {
		return
	}
	l.log.Warn("helper exited", "pid", proc.Pid(), "err", err)
	l.respawn()
}

func (l *Launcher) respawn() {
	now := l.loop.Now()
	if now.Sub(l.startup) < CrashWindow {
		l.log.Error("helper died during startup, bailing out", "path", l.path)
		l.loop.Quit(ErrCrashedEarly)
		return
	}

	if now.Sub(l.deathStamp) > CrashWindow {
		l.deathStamp = now
		l.deathCount = 0
	}
	l.deathCount++
	if l.deathCount > MaxDeaths {
		l.gaveUp = true
		l.log.Error(ErrGaveUp.Error(), "deaths", l.deathCount, "window", CrashWindow)
		return
	}

	if err := l.spawn(); err != nil {
		l.log.Error("respawn helper", "err", err)
	}
}
