package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"go.aimuz.me/orb/internal/types"
	"go.aimuz.me/orb/overlay"
)

const (
	defaultWidth   = 60
	requestTimeout = 5 * time.Second
)

// Controller is the part of the synchronizer the terminal drives.
type Controller interface {
	Submit(ctx context.Context, text string) error
	HandleKey(ctx context.Context, key string) error
	HandleClick()
	ToggleInteraction(ctx context.Context) error
}

var stateColors = map[types.OverlayState]lipgloss.Color{
	types.StateIdle:      lipgloss.Color("#A78BFA"),
	types.StateListening: lipgloss.Color("#34D399"),
	types.StateThinking:  lipgloss.Color("#FB923C"),
	types.StateSpeaking:  lipgloss.Color("#60A5FA"),
	types.StateError:     lipgloss.Color("#F87171"),
}

var (
	labelStyle   = lipgloss.NewStyle().Bold(true)
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB"))
	aiStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C4B5FD"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle   = lipgloss.NewStyle().Foreground(stateColors[types.StateError])
	onlineStyle  = lipgloss.NewStyle().Foreground(stateColors[types.StateListening])
	offlineStyle = lipgloss.NewStyle().Foreground(stateColors[types.StateError])
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// resultMsg reports the outcome of a controller call.
type resultMsg struct {
	action string
	err    error
}

// Model is the Bubble Tea model for the terminal overlay.
type Model struct {
	ctrl Controller
	view *Presenter

	snap    Snapshot
	spinner spinner.Model
	input   textinput.Model
	typing  bool
	errMsg  string
	width   int
}

// NewModel creates a model that renders view and sends input to ctrl.
func NewModel(ctrl Controller, view *Presenter) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a command"
	ti.CharLimit = 512

	return Model{
		ctrl:    ctrl,
		view:    view,
		snap:    view.Snapshot(),
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		input:   ti,
		width:   defaultWidth,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.view.waitForChange(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = Snapshot(msg)
		if !m.snap.Interactive && m.typing {
			m.closeInput()
		}
		return m, m.view.waitForChange()

	case resultMsg:
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.errMsg = ""
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = max(msg.Width-4, 20)
		m.input.Width = m.width - 4
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.typing {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab", "i":
		return m, m.call("toggle interaction", m.ctrl.ToggleInteraction)
	}

	if !m.snap.Interactive {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEnter:
		m.typing = true
		return m, m.input.Focus()
	case tea.KeyEsc:
		return m, m.key(overlay.KeyEscape)
	case tea.KeySpace:
		return m, m.key(overlay.KeySpace)
	}
	if msg.String() == "c" {
		m.ctrl.HandleClick()
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeInput()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		m.closeInput()
		return m, m.call("send command", func(ctx context.Context) error {
			return m.ctrl.Submit(ctx, text)
		})
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) closeInput() {
	m.typing = false
	m.input.Blur()
	m.input.Reset()
}

func (m Model) key(key string) tea.Cmd {
	return m.call("handle key", func(ctx context.Context) error {
		return m.ctrl.HandleKey(ctx, key)
	})
}

// call runs fn off the UI goroutine and reports its result.
func (m Model) call(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return resultMsg{action: action, err: fn(ctx)}
	}
}

func (m Model) View() string {
	var b strings.Builder

	color := stateColors[m.snap.State]
	orb := lipgloss.NewStyle().Foreground(color).Render("●")
	if m.snap.State == types.StateThinking {
		orb = lipgloss.NewStyle().Foreground(color).Render(m.spinner.View())
	}
	dot := onlineStyle.Render("•")
	if !m.snap.Online {
		dot = offlineStyle.Render("•")
	}
	fmt.Fprintf(&b, "%s %s %s\n", orb, labelStyle.Foreground(color).Render(m.snap.Label), dot)

	if m.snap.User != "" {
		b.WriteString(userStyle.Render(wordwrap.String("you: "+m.snap.User, m.width)))
		b.WriteByte('\n')
	}
	if m.snap.AI != "" {
		b.WriteString(aiStyle.Render(wordwrap.String("orb: "+m.snap.AI, m.width)))
		b.WriteByte('\n')
	}
	if m.typing {
		b.WriteString(boxStyle.Width(m.width).Render(m.input.View()))
		b.WriteByte('\n')
	}
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteByte('\n')
	}

	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m Model) help() string {
	switch {
	case m.typing:
		return "enter send • esc cancel"
	case m.snap.Interactive:
		return "space listen • enter type • c click • esc release • q quit"
	default:
		return "tab interact • q quit"
	}
}
