package server

import (
	"errors"
	"fmt"

	"github.com/bnema/waycomp/internal/animation"
	"github.com/bnema/waycomp/internal/backend/headless"
	"github.com/bnema/waycomp/internal/config"
	"github.com/bnema/waycomp/internal/kiosk"
	"github.com/bnema/waycomp/internal/seat"
	"github.com/bnema/waycomp/internal/shell"
)

// HeadlessConfig converts the [headless] section.
func HeadlessConfig(c config.HeadlessConfig) headless.Config {
	return headless.Config{
		Width:      int32(c.Width),
		Height:     int32(c.Height),
		Refresh:    int32(c.Refresh),
		Outputs:    c.Outputs,
		Resizeable: c.Resizeable,
	}
}

// ShellConfig converts the [shell] section for the desktop shell.
func ShellConfig(c config.ShellConfig) (shell.Config, error) {
	pos, err := shell.ParsePanelPosition(c.PanelPosition)
	if err != nil {
		return shell.Config{}, fmt.Errorf("invalid shell config: %w", err)
	}
	return shell.Config{
		Client:                    c.Client,
		AllowZap:                  c.AllowZap,
		DisallowOutputChangedMove: c.DisallowOutputChangedMove,
		BindingModifier:           seat.ParseModifier(c.BindingModifier),
		Animation:                 animation.ParseKind(c.Animation),
		CloseAnimation:            animation.ParseKind(c.CloseAnimation),
		StartupAnimation:          animation.ParseKind(c.StartupAnimation),
		FocusAnimation:            animation.ParseKind(c.FocusAnimation),
		PanelPosition:             pos,
		Locking:                   c.Locking,
	}, nil
}

// KioskConfig converts the background color and the [[output]] entries.
func KioskConfig(c *config.Config) (kiosk.Config, error) {
	var kc kiosk.Config
	if c.Shell.BackgroundColor != "" {
		color, err := config.ParseColor(c.Shell.BackgroundColor)
		if err != nil {
			return kc, fmt.Errorf("invalid shell config: %w", err)
		}
		kc.BackgroundColor = color
	}
	for _, o := range c.Outputs {
		if o.Name == "" {
			return kc, errors.New("invalid output config: missing name")
		}
		kc.Outputs = append(kc.Outputs, kiosk.OutputConfig{
			Name:       o.Name,
			AppIDs:     kiosk.SplitAppIDs(o.AppIDs),
			X11WMName:  kiosk.SplitAppIDs(o.X11WMName),
			X11WMClass: kiosk.SplitAppIDs(o.X11WMClass),
		})
	}
	return kc, nil
}
