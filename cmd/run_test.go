package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRejectsBadFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "backend", args: []string{"run", "--backend", "drm"}, want: server.ErrUnknownBackend},
		{name: "shell", args: []string{"run", "--shell", "tablet"}, want: server.ErrUnknownShell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := executeCommand(rootCmd, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	// An earlier execution leaves its context on the run command.
	_, err := executeCommand(rootCmd, "run", "--backend", "drm")
	require.ErrorIs(t, err, server.ErrUnknownBackend)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sock := socketPath(t)
	done := make(chan error, 1)
	go func() {
		_, err := executeCommandContext(ctx, rootCmd, "run",
			"--socket", sock, "--renderer", "noop",
			"--width", "320", "--height", "200", "--outputs", "2", "--no-resizeable")
		done <- err
	}()

	select {
	case err = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run ignored the cancelled context")
	}
	require.NoError(t, err)
	cfg := config.Get()
	assert.Equal(t, "noop", cfg.Core.Renderer)
	assert.Equal(t, 320, cfg.Headless.Width)
	assert.Equal(t, 200, cfg.Headless.Height)
	assert.Equal(t, 2, cfg.Headless.Outputs)
	assert.False(t, cfg.Headless.Resizeable)
}

func TestControlCommandsNotRunning(t *testing.T) {
	isolate(t)
	sock := socketPath(t)

	for _, args := range [][]string{{"status"}, {"lock"}, {"unlock"}, {"capture"}} {
		t.Run(args[0], func(t *testing.T) {
			_, err := executeCommand(rootCmd, append([]string{"--socket", sock}, args...)...)
			assert.ErrorIs(t, err, ipc.ErrNotRunning)
		})
	}
}

// startServer runs a desktop compositor on its own socket.
func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultConfig
	cfg.Core.IdleTime = 0
	cfg.Shell.StartupAnimation = "none"
	cfg.Shell.CloseAnimation = "none"
	cfg.Headless.Width = 320
	cfg.Headless.Height = 200
	cfg.Outputs = nil
	sock := socketPath(t)

	srv, err := server.New(&cfg, server.WithSocketPath(sock), server.WithUnlockTrigger(""))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := ipc.NewClient(sock)
	require.NoError(t, err)
	require.Eventually(t, client.IsRunning, 5*time.Second, 10*time.Millisecond)
	return sock
}

func TestControlCommands(t *testing.T) {
	dir := isolate(t)
	sock := startServer(t)

	t.Run("status", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "--socket", sock, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "headless-1")
		assert.Contains(t, out, "seat0")
	})

	t.Run("status json", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "--socket", sock, "status", "--json")
		require.NoError(t, err)
		var st ipc.Status
		require.NoError(t, json.Unmarshal([]byte(out), &st))
		assert.Equal(t, "desktop", st.Shell)
		require.Len(t, st.Outputs, 1)
		assert.Equal(t, int32(320), st.Outputs[0].Width)
	})

	t.Run("capture", func(t *testing.T) {
		file := filepath.Join(dir, "shot.png")
		out, err := executeCommand(rootCmd, "--socket", sock, "capture", "-o", file)
		require.NoError(t, err)
		assert.Contains(t, out, "captured headless-1 (320x200)")

		data, err := os.ReadFile(file)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 320, img.Bounds().Dx())
		assert.Equal(t, 200, img.Bounds().Dy())
	})

	t.Run("capture unknown output", func(t *testing.T) {
		_, err := executeCommand(rootCmd, "--socket", sock, "capture", "--output", "headless-9")
		assert.Error(t, err)
	})

	t.Run("lock and unlock", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "--socket", sock, "lock")
		require.NoError(t, err)
		assert.Contains(t, out, "session locked")

		out, err = executeCommand(rootCmd, "--socket", sock, "unlock")
		require.NoError(t, err)
		assert.Contains(t, out, "compositor woken up")
	})
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, err := executeCommand(rootCmd, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "waycomp "+Version)
}
