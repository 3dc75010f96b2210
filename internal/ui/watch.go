package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/waycomp/internal/ipc"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the part of the control socket client the watch view
// drives.
type Controller interface {
	Status() (*ipc.Status, error)
	Lock() error
	Unlock() error
}

type KeyMap struct {
	Refresh key.Binding
	Lock    key.Binding
	Unlock  key.Binding
	Quit    key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Lock, k.Unlock, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var DefaultKeyMap = KeyMap{
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Lock:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "lock")),
	Unlock:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unlock")),
	Quit:    key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

// statusMsg carries a status poll. Polls started by the refresh timer
// re-arm it; manual ones do not, so only one timer is ever pending.
type statusMsg struct {
	status    *ipc.Status
	err       error
	scheduled bool
}

type tickMsg time.Time

type actionMsg struct {
	done string
	err  error
}

// WatchModel polls the compositor and renders its scene live.
type WatchModel struct {
	ctl      Controller
	interval time.Duration
	keys     KeyMap
	help     help.Model
	bar      *StatusBar

	status   *ipc.Status
	err      error
	message  *Message
	quitting bool
}

func NewWatchModel(ctl Controller, interval time.Duration) *WatchModel {
	if interval <= 0 {
		interval = time.Second
	}
	bar := NewStatusBar("waycomp")
	bar.Status = "connecting"
	return &WatchModel{
		ctl:      ctl,
		interval: interval,
		keys:     DefaultKeyMap,
		help:     help.New(),
		bar:      bar,
	}
}

func (m *WatchModel) Status() *ipc.Status { return m.status }
func (m *WatchModel) Err() error { return m.err }

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.bar.Init(), m.poll(true))
}

func (m *WatchModel) poll(scheduled bool) tea.Cmd {
	return func() tea.Msg {
		st, err := m.ctl.Status()
		return statusMsg{status: st, err: err, scheduled: scheduled}
	}
}

func (m *WatchModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *WatchModel) action(done string, fn func() error) tea.Cmd {
	return func() tea.Msg { return actionMsg{done: done, err: fn()} }
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.poll(false)
		case key.Matches(msg, m.keys.Lock):
			return m, m.action("session locked", m.ctl.Lock)
		case key.Matches(msg, m.keys.Unlock):
			return m, m.action("unlock requested", m.ctl.Unlock)
		}

	case statusMsg:
		m.setStatus(msg.status, msg.err)
		if msg.scheduled {
			return m, m.tick()
		}

	case tickMsg:
		return m, m.poll(true)

	case actionMsg:
		if msg.err != nil {
			m.message = &Message{Type: MessageError, Content: msg.err.Error()}
		} else {
			m.message = &Message{Type: MessageSuccess, Content: msg.done}
		}
		return m, m.poll(false)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.bar, _ = m.bar.Update(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.bar, cmd = m.bar.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *WatchModel) setStatus(st *ipc.Status, err error) {
	m.err = err
	if err != nil {
		m.bar.Running = false
		m.bar.Locked = false
		m.bar.Status = "waiting for waycomp"
		return
	}
	m.status = st
	m.bar.Running = true
	m.bar.Locked = st.Locked
	m.bar.Status = fmt.Sprintf("%s on %s", st.Shell, st.Backend)
	if st.Locked {
		m.bar.Status += ", locked"
	}
}

func (m *WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.bar.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(m.waitingView())
	case m.status != nil:
		b.WriteString(RenderStatus(m.status))
	}

	if m.message != nil {
		b.WriteString("\n")
		b.WriteString(m.message.View())
		b.WriteString("\n")
	}
	b.WriteString(CreateSeparator(m.bar.Width, ""))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// waitingView is shown while the compositor does not answer.
func (m *WatchModel) waitingView() string {
	lines := ErrorStyle.Render(m.err.Error()) + "\n" +
		FormatControl(m.keys.Refresh.Help().Key, "retry now") + "\n"
	if m.bar.Width <= 0 {
		return lines
	}
	return Center(m.bar.Width, lines)
}

// RunWatch runs the watch view until the user quits or ctx is done.
func RunWatch(ctx context.Context, ctl Controller, interval time.Duration) error {
	p := tea.NewProgram(NewWatchModel(ctl, interval), tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
