// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the compositor configuration
type Config struct {
	Core     CoreConfig     `mapstructure:"core"`
	Shell    ShellConfig    `mapstructure:"shell"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Outputs  []OutputConfig `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CoreConfig selects the backend, shell and renderer
type CoreConfig struct {
	Backend       string `mapstructure:"backend"`
	Shell         string `mapstructure:"shell"` // desktop or kiosk
	Renderer      string `mapstructure:"renderer"`
	IdleTime      int    `mapstructure:"idle_time"`      // seconds, 0 disables
	RepaintWindow int    `mapstructure:"repaint_window"` // milliseconds
	Socket        string `mapstructure:"socket"`         // control socket, empty for the default
}

// ShellConfig mirrors the [shell] section of weston.ini
type ShellConfig struct {
	Client                    string `mapstructure:"client"`
	AllowZap                  bool   `mapstructure:"allow_zap"`
	DisallowOutputChangedMove bool   `mapstructure:"disallow_output_changed_move"`
	BindingModifier           string `mapstructure:"binding_modifier"`
	Animation                 string `mapstructure:"animation"`
	CloseAnimation            string `mapstructure:"close_animation"`
	StartupAnimation          string `mapstructure:"startup_animation"`
	FocusAnimation            string `mapstructure:"focus_animation"`
	PanelPosition             string `mapstructure:"panel_position"`
	BackgroundColor           string `mapstructure:"background_color"` // 0xAARRGGBB
	Locking                   bool   `mapstructure:"locking"`
}

// HeadlessConfig describes the outputs of the headless backend
type HeadlessConfig struct {
	Width      int  `mapstructure:"width"`
	Height     int  `mapstructure:"height"`
	Refresh    int  `mapstructure:"refresh"` // mHz, 0 repaints only on capture
	Resizeable bool `mapstructure:"resizeable"`
	Outputs    int  `mapstructure:"outputs"`
}

// OutputConfig is one [[output]] entry. The id lists are comma separated.
type OutputConfig struct {
	Name       string `mapstructure:"name"`
	AppIDs     string `mapstructure:"app_ids"`
	X11WMName  string `mapstructure:"x11_wm_name"`
	X11WMClass string `mapstructure:"x11_wm_class"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Core: CoreConfig{
			Backend:       "headless",
			Shell:         "desktop",
			Renderer:      "pixman",
			IdleTime:      300,
			RepaintWindow: 7,
		},
		Shell: ShellConfig{
			AllowZap:         true,
			BindingModifier:  "super",
			Animation:        "none",
			CloseAnimation:   "fade",
			StartupAnimation: "fade",
			FocusAnimation:   "none",
			PanelPosition:    "top",
			BackgroundColor:  "0xff000000",
			Locking:          true,
		},
		Headless: HeadlessConfig{
			Width:      1024,
			Height:     640,
			Refresh:    60000,
			Resizeable: true,
			Outputs:    1,
		},
		Outputs: []OutputConfig{},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("waycomp")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/waycomp")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "waycomp"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "waycomp"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	// Set defaults - need to set individual fields for proper merging
	viper.SetDefault("core.backend", DefaultConfig.Core.Backend)
	viper.SetDefault("core.shell", DefaultConfig.Core.Shell)
	viper.SetDefault("core.renderer", DefaultConfig.Core.Renderer)
	viper.SetDefault("core.idle_time", DefaultConfig.Core.IdleTime)
	viper.SetDefault("core.repaint_window", DefaultConfig.Core.RepaintWindow)
	viper.SetDefault("core.socket", DefaultConfig.Core.Socket)

	viper.SetDefault("shell.client", DefaultConfig.Shell.Client)
	viper.SetDefault("shell.allow_zap", DefaultConfig.Shell.AllowZap)
	viper.SetDefault("shell.disallow_output_changed_move", DefaultConfig.Shell.DisallowOutputChangedMove)
	viper.SetDefault("shell.binding_modifier", DefaultConfig.Shell.BindingModifier)
	viper.SetDefault("shell.animation", DefaultConfig.Shell.Animation)
	viper.SetDefault("shell.close_animation", DefaultConfig.Shell.CloseAnimation)
	viper.SetDefault("shell.startup_animation", DefaultConfig.Shell.StartupAnimation)
	viper.SetDefault("shell.focus_animation", DefaultConfig.Shell.FocusAnimation)
	viper.SetDefault("shell.panel_position", DefaultConfig.Shell.PanelPosition)
	viper.SetDefault("shell.background_color", DefaultConfig.Shell.BackgroundColor)
	viper.SetDefault("shell.locking", DefaultConfig.Shell.Locking)

	viper.SetDefault("headless.width", DefaultConfig.Headless.Width)
	viper.SetDefault("headless.height", DefaultConfig.Headless.Height)
	viper.SetDefault("headless.refresh", DefaultConfig.Headless.Refresh)
	viper.SetDefault("headless.resizeable", DefaultConfig.Headless.Resizeable)
	viper.SetDefault("headless.outputs", DefaultConfig.Headless.Outputs)

	viper.SetDefault("output", DefaultConfig.Outputs)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found (searched or given by --config), use defaults
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "waycomp", "waycomp.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/waycomp/waycomp.toml"
	}

	return filepath.Join(home, ".config", "waycomp", "waycomp.toml")
}

// SetOutput adds or replaces the [[output]] entry with the same name
func SetOutput(out OutputConfig) error {
	c := Get()
	for i, o := range c.Outputs {
		if o.Name == out.Name {
			c.Outputs[i] = out
			setOutputs(c.Outputs)
			return Save()
		}
	}
	c.Outputs = append(c.Outputs, out)
	setOutputs(c.Outputs)
	return Save()
}

// RemoveOutput drops the [[output]] entry called name
func RemoveOutput(name string) error {
	c := Get()
	for i, o := range c.Outputs {
		if o.Name == name {
			c.Outputs = append(c.Outputs[:i], c.Outputs[i+1:]...)
			setOutputs(c.Outputs)
			return Save()
		}
	}
	return fmt.Errorf("output %s not found", name)
}

// setOutputs stores the entries under their file keys; viper would write
// the Go field names otherwise.
func setOutputs(outs []OutputConfig) {
	entries := make([]map[string]any, 0, len(outs))
	for _, o := range outs {
		entries = append(entries, map[string]any{
			"name":         o.Name,
			"app_ids":      o.AppIDs,
			"x11_wm_name":  o.X11WMName,
			"x11_wm_class": o.X11WMClass,
		})
	}
	viper.Set("output", entries)
}

// GetOutput returns the [[output]] entry called name
func GetOutput(name string) (*OutputConfig, error) {
	for _, o := range Get().Outputs {
		if o.Name == name {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("output %s not found", name)
}

// ParseColor reads a 0xAARRGGBB or #RRGGBB color. A color without an
// alpha byte is opaque.
func ParseColor(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	var hex string
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		hex = s[2:]
	case strings.HasPrefix(s, "#"):
		hex = s[1:]
	default:
		return 0, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) != 6 && len(hex) != 8 {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	v := uint32(n)
	if len(hex) == 6 {
		v |= 0xff000000
	}
	return v, nil
}
