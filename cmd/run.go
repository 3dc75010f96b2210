package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/bnema/waycomp/internal/server"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the compositor",
	Long: `Start the compositor in the foreground. It runs until the shell quits,
the helper client crashes on startup, or the process is interrupted.`,
	RunE: runCompositor,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.String("backend", "", "Backend to run on (headless)")
	flags.String("shell", "", "Shell to load (desktop or kiosk)")
	flags.String("renderer", "", "Renderer (pixman or noop)")
	flags.Int("refresh", 0, "Headless refresh rate in mHz")
	flags.Int("width", 0, "Headless output width")
	flags.Int("height", 0, "Headless output height")
	flags.Int("outputs", 0, "Number of headless outputs")
	flags.Bool("no-resizeable", false, "Keep the headless mode fixed")
}

func runCompositor(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if noResize, _ := cmd.Flags().GetBool("no-resizeable"); cmd.Flags().Changed("no-resizeable") {
		cfg.Headless.Resizeable = !noResize
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("waycomp running", "shell", srv.ShellName(), "socket", srv.SocketPath())
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("waycomp stopped")
	return nil
}
