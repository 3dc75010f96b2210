package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage waycomp configuration",
	Long:  `Manage waycomp configuration including the shell, the headless outputs and kiosk routing.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printConfig(cmd.OutOrStdout(), config.Get())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Long: `Write a configuration file. Without --defaults a short form asks for
the shell, the renderer and the desktop settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.GetConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists at: %s\nUse --force to overwrite\n", configPath)
				return nil
			}
		}

		if defaults, _ := cmd.Flags().GetBool("defaults"); !defaults {
			if err := runConfigForm(); err != nil {
				return err
			}
		}

		if err := config.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at: %s\n", configPath)
		return nil
	},
}

var configOutputCmd = &cobra.Command{
	Use:   "output",
	Short: "Manage kiosk output routing",
}

var configOutputSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Route applications to an output",
	Long: `Add or replace the [[output]] entry for an output. Each flag takes a
comma separated list of ids.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := config.OutputConfig{Name: args[0]}
		out.AppIDs, _ = cmd.Flags().GetString("app-ids")
		out.X11WMName, _ = cmd.Flags().GetString("x11-wm-name")
		out.X11WMClass, _ = cmd.Flags().GetString("x11-wm-class")

		if err := config.SetOutput(out); err != nil {
			return err
		}
		logger.Infof("Saved output '%s'", out.Name)
		return nil
	},
}

var configOutputRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an output entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RemoveOutput(args[0]); err != nil {
			return err
		}
		logger.Infof("Removed output '%s'", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configOutputCmd)

	configOutputCmd.AddCommand(configOutputSetCmd)
	configOutputCmd.AddCommand(configOutputRemoveCmd)

	configInitCmd.Flags().Bool("force", false, "Force overwrite existing configuration")
	configInitCmd.Flags().Bool("defaults", false, "Write the defaults without asking")

	configOutputSetCmd.Flags().String("app-ids", "", "Application ids shown on this output")
	configOutputSetCmd.Flags().String("x11-wm-name", "", "X11 WM_NAME values shown on this output")
	configOutputSetCmd.Flags().String("x11-wm-class", "", "X11 WM_CLASS values shown on this output")
}

// runConfigForm asks for the common settings and stores the answers in
// viper.
func runConfigForm() error {
	cfg := config.Get()
	var (
		shell     = cfg.Core.Shell
		renderer  = cfg.Core.Renderer
		modifier  = cfg.Shell.BindingModifier
		idle      = strconv.Itoa(cfg.Core.IdleTime)
		client    = cfg.Shell.Client
		locking   = cfg.Shell.Locking
		kioskApps string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Shell").
				Options(
					huh.NewOption("Desktop (panels, workspace, lock screen)", "desktop"),
					huh.NewOption("Kiosk (one fullscreen application per output)", "kiosk"),
				).
				Value(&shell),
			huh.NewSelect[string]().
				Title("Renderer").
				Options(
					huh.NewOption("pixman (software)", "pixman"),
					huh.NewOption("noop (no pixels)", "noop"),
				).
				Value(&renderer),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Binding modifier").
				Options(
					huh.NewOption("Super", "super"),
					huh.NewOption("Alt", "alt"),
					huh.NewOption("Ctrl", "ctrl"),
				).
				Value(&modifier),
			huh.NewInput().
				Title("Idle time (seconds, 0 disables)").
				Value(&idle).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n < 0 {
						return fmt.Errorf("enter a number of seconds")
					}
					return nil
				}),
			huh.NewInput().
				Title("Helper client").
				Description("Program that draws panels, backgrounds and the lock dialog").
				Value(&client),
			huh.NewConfirm().
				Title("Lock the session when idle?").
				Value(&locking),
		).WithHideFunc(func() bool { return shell != "desktop" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Application ids for headless-1").
				Description("Comma separated; leave empty to accept any application").
				Value(&kioskApps),
		).WithHideFunc(func() bool { return shell != "kiosk" }),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("config form: %w", err)
	}

	idleTime, _ := strconv.Atoi(idle)
	viper.Set("core.shell", shell)
	viper.Set("core.renderer", renderer)
	viper.Set("core.idle_time", idleTime)
	viper.Set("shell.binding_modifier", modifier)
	viper.Set("shell.client", client)
	viper.Set("shell.locking", locking)
	if kioskApps != "" {
		return config.SetOutput(config.OutputConfig{Name: "headless-1", AppIDs: kioskApps})
	}
	return nil
}

func printConfig(out io.Writer, cfg *config.Config) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Config file:\t%s\n\n", config.GetConfigPath())

	fmt.Fprintln(w, "[core]")
	fmt.Fprintf(w, "  backend\t%s\n", cfg.Core.Backend)
	fmt.Fprintf(w, "  shell\t%s\n", cfg.Core.Shell)
	fmt.Fprintf(w, "  renderer\t%s\n", cfg.Core.Renderer)
	fmt.Fprintf(w, "  idle_time\t%ds\n", cfg.Core.IdleTime)
	fmt.Fprintf(w, "  repaint_window\t%dms\n", cfg.Core.RepaintWindow)
	fmt.Fprintf(w, "  socket\t%s\n", valueOr(cfg.Core.Socket, "(default)"))

	fmt.Fprintln(w, "\n[shell]")
	fmt.Fprintf(w, "  client\t%s\n", valueOr(cfg.Shell.Client, "(none)"))
	fmt.Fprintf(w, "  allow_zap\t%v\n", cfg.Shell.AllowZap)
	fmt.Fprintf(w, "  disallow_output_changed_move\t%v\n", cfg.Shell.DisallowOutputChangedMove)
	fmt.Fprintf(w, "  binding_modifier\t%s\n", cfg.Shell.BindingModifier)
	fmt.Fprintf(w, "  animation\t%s\n", cfg.Shell.Animation)
	fmt.Fprintf(w, "  close_animation\t%s\n", cfg.Shell.CloseAnimation)
	fmt.Fprintf(w, "  startup_animation\t%s\n", cfg.Shell.StartupAnimation)
	fmt.Fprintf(w, "  focus_animation\t%s\n", cfg.Shell.FocusAnimation)
	fmt.Fprintf(w, "  panel_position\t%s\n", cfg.Shell.PanelPosition)
	fmt.Fprintf(w, "  background_color\t%s\n", cfg.Shell.BackgroundColor)
	fmt.Fprintf(w, "  locking\t%v\n", cfg.Shell.Locking)

	fmt.Fprintln(w, "\n[headless]")
	fmt.Fprintf(w, "  outputs\t%d\n", cfg.Headless.Outputs)
	fmt.Fprintf(w, "  mode\t%dx%d@%dmHz\n", cfg.Headless.Width, cfg.Headless.Height, cfg.Headless.Refresh)
	fmt.Fprintf(w, "  resizeable\t%v\n", cfg.Headless.Resizeable)

	if len(cfg.Outputs) > 0 {
		fmt.Fprintln(w, "\n[[output]]")
		fmt.Fprintln(w, "  name\tapp_ids\tx11_wm_name\tx11_wm_class")
		for _, o := range cfg.Outputs {
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", o.Name, valueOr(o.AppIDs, "-"), valueOr(o.X11WMName, "-"), valueOr(o.X11WMClass, "-"))
		}
	}

	return w.Flush()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
