package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/waycomp/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// executeCommand runs root with args and returns what it printed. Flags
// keep their values between executions, so they are reset first.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	return executeCommandContext(context.Background(), root, args...)
}

func executeCommandContext(ctx context.Context, root *cobra.Command, args ...string) (string, error) {
	resetFlags(root)
	setContext(root, ctx)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

// setContext overrides the context a previous execution left on each
// subcommand; cobra only fills in a missing one.
func setContext(c *cobra.Command, ctx context.Context) {
	c.SetContext(ctx)
	for _, sub := range c.Commands() {
		setContext(sub, ctx)
	}
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate keeps config lookups inside a temp home.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("XDG_RUNTIME_DIR", dir)
	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		config.SetConfigPath("")
		config.Set(nil)
	})
	return dir
}

// socketPath stays short enough for sun_path.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "wc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}
