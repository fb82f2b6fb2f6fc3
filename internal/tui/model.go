package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"

	"github.com/samiralibabic/mcpterm/internal/events"
)

type focus int

const (
	focusInput focus = iota
	focusConversation
)

type entry struct {
	kind string
	text string
}

// Model renders the conversation and turns key presses into UI events.
type Model struct {
	bus *events.Bus

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	theme    theme

	entries []entry
	partial strings.Builder
	active  bool
	focus   focus
	status  string
	width   int
	height  int
}

func New(bus *events.Bus) *Model {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Ask something. Enter sends, Esc cancels."
	input.CharLimit = 8000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		bus:      bus,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
		theme:    newTheme(),
		status:   "ready",
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
		var cmd tea.Cmd
		if m.focus == focusInput {
			m.input, cmd = m.input.Update(msg)
		} else {
			m.viewport, cmd = m.viewport.Update(msg)
		}
		cmds = append(cmds, cmd)
	case events.ModelEvent:
		m.apply(msg)
	}
	return m, tea.Batch(cmds...)
}

// handleKey publishes the key and any action bound to it. It reports whether
// the key was consumed.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	k := keyFromMsg(msg)
	m.publish(events.KeyPress{Key: k})

	ev := action(k, m.input.Value())
	if ev == nil {
		return nil, false
	}
	switch ev := ev.(type) {
	case events.Quit:
		m.publish(ev)
		return tea.Quit, true
	case events.UserInput:
		if strings.TrimSpace(ev.Text) == "" {
			return nil, true
		}
		m.input.Reset()
	case events.Scroll:
		offset := m.viewport.YOffset + ev.Amount
		if ev.Direction == events.ScrollUp {
			offset = m.viewport.YOffset - ev.Amount
		}
		m.viewport.SetYOffset(offset)
	case events.ToggleFocus:
		if m.focus == focusInput {
			m.focus = focusConversation
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
	case events.RequestCancellation:
		if m.active {
			m.status = "cancelling"
		}
	}
	m.publish(ev)
	return nil, true
}

func (m *Model) publish(ev events.UIEvent) {
	if m.bus == nil {
		return
	}
	if err := m.bus.PublishUI(ev); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) apply(ev events.ModelEvent) {
	switch ev := ev.(type) {
	case events.ProcessUserMessage:
		if ev.Text != "" {
			m.add("user", ev.Text)
		}
		m.active = true
		m.status = "thinking"
	case events.LlmStreamChunk:
		m.partial.WriteString(ev.Content)
		m.render()
	case events.LlmMessage:
		m.partial.Reset()
		if ev.Content != "" {
			m.add("assistant", ev.Content)
		}
	case events.ToolRequest:
		m.add("tool", fmt.Sprintf("running %s %s", ev.ToolID, ev.Params))
	case events.ToolResult:
		text := fmt.Sprintf("%s: %s", ev.ToolID, ev.Result.Status)
		if ev.Result.Error != "" {
			text += " (" + ev.Result.Error + ")"
		}
		m.add("tool", text)
	case events.LlmResponseComplete:
		m.active = false
		m.status = "ready"
		if ev.Cancelled {
			m.partial.Reset()
			m.add("error", "request cancelled")
		}
	case events.ResetContext:
		m.entries = nil
		m.partial.Reset()
		m.render()
	}
}

func (m *Model) add(kind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.render()
}

func (m *Model) render() {
	var b strings.Builder
	for _, e := range m.entries {
		b.WriteString(m.line(e))
		b.WriteByte('\n')
	}
	if m.partial.Len() > 0 {
		b.WriteString(m.line(entry{kind: "assistant", text: m.partial.String()}))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) line(e entry) string {
	switch e.kind {
	case "user":
		return m.theme.user.Render("you") + " " + e.text
	case "assistant":
		return m.theme.assistant.Render("model") + " " + e.text
	case "tool":
		return m.theme.tool.Render("tool  " + e.text)
	default:
		return m.theme.errorText.Render(e.text)
	}
}

func (m *Model) resize() {
	w := m.width - 2
	h := m.height - 6
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
	m.render()
}

func (m *Model) View() string {
	status := m.status
	if m.active {
		status = m.spinner.View() + " " + status
	}
	panel := m.theme.panel
	if m.focus == focusConversation {
		panel = m.theme.focused
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.header.Render("mcpterm · "+status),
		panel.Render(m.viewport.View()),
		m.input.View(),
		m.theme.help.Render("enter send · esc cancel · ctrl+l clear · tab focus · pgup/pgdn scroll · ctrl+c quit"),
	)
}

// Run drives the terminal UI until the user quits or ctx ends. Model events
// from bus are forwarded into the program.
func Run(ctx context.Context, bus *events.Bus) error {
	p := tea.NewProgram(New(bus), tea.WithAltScreen(), tea.WithContext(ctx))
	bus.RegisterModelHandler(func(_ context.Context, ev events.ModelEvent) error {
		p.Send(ev)
		return nil
	})
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "run tui")
	}
	return nil
}
