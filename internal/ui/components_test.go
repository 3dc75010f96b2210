package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestStatusBar(t *testing.T) {
	tests := []struct {
		name     string
		running  bool
		locked   bool
		status   string
		mustHave string
	}{
		{name: "running", running: true, status: "desktop on headless", mustHave: "●"},
		{name: "locked", running: true, locked: true, status: "locked", mustHave: "◌"},
		{name: "waiting", running: false, status: "waiting for waycomp", mustHave: "○"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := NewStatusBar("waycomp")
			bar, _ = bar.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
			bar.Running = tt.running
			bar.Locked = tt.locked
			bar.Status = tt.status

			view := bar.View()

			if bar.Width != 80 {
				t.Errorf("Width = %d, want 80", bar.Width)
			}
			for _, must := range []string{"waycomp", tt.status, tt.mustHave} {
				if !strings.Contains(view, must) {
					t.Errorf("status bar should contain %q:\n%s", must, view)
				}
			}
		})
	}
}

func TestStatusBarInitTicks(t *testing.T) {
	if NewStatusBar("waycomp").Init() == nil {
		t.Error("Init should start the spinner")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name   string
		msg    Message
		prefix string
	}{
		{name: "info message", msg: Message{Type: MessageInfo, Content: "Refreshing"}, prefix: IconInfo},
		{name: "success message", msg: Message{Type: MessageSuccess, Content: "Locked"}, prefix: IconSuccess},
		{name: "warning message", msg: Message{Type: MessageWarning, Content: "Slow"}, prefix: IconWarning},
		{name: "error message", msg: Message{Type: MessageError, Content: "Failed"}, prefix: IconError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := tt.msg.View()
			if !strings.Contains(view, tt.msg.Content) {
				t.Errorf("Message should contain %q", tt.msg.Content)
			}
			if !strings.Contains(view, tt.prefix) {
				t.Errorf("Message should have prefix %q", tt.prefix)
			}
		})
	}
}
