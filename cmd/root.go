package cmd

import (
	"fmt"

	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/ipc"
	"github.com/bnema/waycomp/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "waycomp",
		Short: "waycomp - a Wayland compositor core",
		Long: `waycomp is a Wayland compositor core with a desktop shell and a kiosk
shell. It runs on a headless backend with a software renderer and is
controlled through a local socket.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default searches /etc/waycomp, ~/.config/waycomp)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("socket", "", "Control socket path")
}

// flagKeys maps command line flags onto config keys. A flag only
// overrides the file when it is set.
var flagKeys = map[string]string{
	"socket":   "core.socket",
	"backend":  "core.backend",
	"shell":    "core.shell",
	"renderer": "core.renderer",
	"refresh":  "headless.refresh",
	"width":    "headless.width",
	"height":   "headless.height",
	"outputs":  "headless.outputs",
}

func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// loadConfig reads the config file before any subcommand runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd); err != nil {
		return err
	}
	config.SetConfigPath(configPath)
	if err := config.Init(); err != nil {
		return err
	}
	if level := config.Get().Logging.LogLevel; level != "" {
		logger.SetLevelFromString(level)
	}
	if debug {
		logger.EnableDebug()
	}
	return nil
}

// newClient connects to the socket named by --socket or core.socket.
func newClient() (*ipc.Client, error) {
	client, err := ipc.NewClient(config.Get().Core.Socket)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}
