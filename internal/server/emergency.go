package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bnema/waycomp/internal/logger"
	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// EmergencyUnlock gets a user out of a lock screen that cannot be
// dismissed, for instance when the shell client no longer draws a lock
// dialog. SIGUSR1 or creating the trigger file forces an unlock.
type EmergencyUnlock struct {
	s        *Server
	log      *log.Logger
	trigger  string
	interval time.Duration
}

// NewEmergencyUnlock watches trigger, when not empty, in addition to
// SIGUSR1.
func NewEmergencyUnlock(s *Server, trigger string) *EmergencyUnlock {
	return &EmergencyUnlock{
		s:        s,
		log:      logger.With("emergency"),
		trigger:  trigger,
		interval: time.Second,
	}
}

// DefaultUnlockTrigger lives next to the control socket.
func DefaultUnlockTrigger() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "waycomp-unlock")
}

func (e *EmergencyUnlock) TriggerPath() string { return e.trigger }

// Serve watches for the triggers until ctx is done.
func (e *EmergencyUnlock) Serve(ctx context.Context) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGUSR1)
	defer signal.Stop(sigs)

	var tick <-chan time.Time
	if e.trigger != "" {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sigs:
			e.log.Warn("SIGUSR1 received")
			e.Trigger("signal")
		case <-tick:
			e.checkFile()
		}
	}
}

func (e *EmergencyUnlock) String() string { return "emergency-unlock" }

func (e *EmergencyUnlock) checkFile() {
	if _, err := os.Stat(e.trigger); err != nil {
		return
	}
	e.log.Warn("unlock file detected", "path", e.trigger)
	if err := os.Remove(e.trigger); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.log.Error("remove unlock file", "err", err)
	}
	e.Trigger("file")
}

// Trigger forces an unlock on the event loop.
func (e *EmergencyUnlock) Trigger(reason string) {
	e.log.Warn("emergency unlock", "reason", reason)
	e.s.loop.Post(func() {
		if e.s.desktop != nil {
			e.s.desktop.ForceUnlock()
			return
		}
		e.s.c.WakeUp()
	})
}
