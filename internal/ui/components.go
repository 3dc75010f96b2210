package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SpinnerDot is the frame set used while waiting for the compositor.
var SpinnerDot = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// StatusBar is the title line of the watch view. The spinner runs while
// the compositor is unreachable.
type StatusBar struct {
	Width   int
	Title   string
	Status  string
	Running bool
	Locked  bool
	spinner spinner.Model
}

func NewStatusBar(title string) *StatusBar {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerDot,
		FPS:    time.Second / 10,
	}
	s.Style = SpinnerStyle

	return &StatusBar{
		Title:   title,
		spinner: s,
	}
}

// Init implements tea.Model
func (s *StatusBar) Init() tea.Cmd {
	return s.spinner.Tick
}

func (s *StatusBar) Update(msg tea.Msg) (*StatusBar, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	case tea.WindowSizeMsg:
		s.Width = msg.Width
	}
	return s, nil
}

func (s *StatusBar) View() string {
	title := TitleStyle.Render(s.Title)

	var status string
	switch {
	case !s.Running:
		status = FormatStatus(false, s.spinner.View()+" "+s.Status)
	case s.Locked:
		status = LockedIndicator + " " + s.Status
	default:
		status = FormatStatus(true, s.Status)
	}

	gap := max(s.Width-lipgloss.Width(title)-lipgloss.Width(status)-4, 1)
	line := title + strings.Repeat(" ", gap) + status
	if s.Width <= 0 {
		return BoxStyle.Render(line)
	}
	return BoxStyle.Width(s.Width).Render(line)
}

// Message displays a styled message
type Message struct {
	Type    MessageType
	Content string
}

type MessageType int

const (
	MessageInfo MessageType = iota
	MessageSuccess
	MessageWarning
	MessageError
)

func (m *Message) View() string {
	var style lipgloss.Style
	var prefix string

	switch m.Type {
	case MessageSuccess:
		style = SuccessStyle
		prefix = IconSuccess + " "
	case MessageWarning:
		style = WarningStyle
		prefix = IconWarning + " "
	case MessageError:
		style = ErrorStyle
		prefix = IconError + " "
	default:
		style = InfoStyle
		prefix = IconInfo + " "
	}

	return style.Render(prefix + m.Content)
}
