package console

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/example/switchboard/internal/adapters/notify"
	"github.com/example/switchboard/internal/ports/secondary"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// notificationMsg carries one notification into the model.
type notificationMsg secondary.Notification

// resultMsg is the outcome of a command run off the UI goroutine.
type resultMsg struct {
	input string
	text  string
	err   error
}

// Model is the bubbletea model of the console.
type Model struct {
	ctx     context.Context
	surface *Surface
	notes   <-chan secondary.Notification

	input    textinput.Model
	viewport viewport.Model
	lines    []string
	busy     bool
	ready    bool
	width    int
}

// NewModel creates the TUI model. notes may be nil.
func NewModel(ctx context.Context, surface *Surface, notes <-chan secondary.Notification) *Model {
	ti := textinput.New()
	ti.Placeholder = "/next"
	ti.Prompt = promptStyle.Render("> ")
	ti.CharLimit = 2000
	ti.Focus()

	return &Model{
		ctx:      ctx,
		surface:  surface,
		notes:    notes,
		input:    ti,
		viewport: viewport.New(80, 20),
		lines:    []string{noteStyle.Render("type /help for commands")},
	}
}

// Init starts the cursor blink and the notification listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForNotification())
}

func (m *Model) waitForNotification() tea.Cmd {
	if m.notes == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n, ok := <-m.notes:
			if !ok {
				return nil
			}
			return notificationMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) run(line string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.surface.Handle(m.ctx, line)
		return resultMsg{input: line, text: text, err: err}
	}
}

// Update handles keys, window size, notifications and command results.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(3, msg.Height-6)
		m.input.Width = msg.Width - 6
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			m.busy = true
			m.append(promptStyle.Render("> " + line))
			return m, m.run(line)
		}

	case notificationMsg:
		m.append(titleStyle.Render("* ") + notify.Format(secondary.Notification(msg)))
		return m, m.waitForNotification()

	case resultMsg:
		m.busy = false
		if errors.Is(msg.err, ErrQuit) {
			return m, tea.Quit
		}
		if msg.err != nil {
			m.append(errorStyle.Render("! " + DescribeError(msg.err)))
		} else {
			m.append(msg.text)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) append(s string) {
	m.lines = append(m.lines, s)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// Transcript returns everything shown so far.
func (m *Model) Transcript() string {
	return strings.Join(m.lines, "\n")
}

// View renders the transcript above the input line.
func (m *Model) View() string {
	header := titleStyle.Render("switchboard")
	if m.busy {
		header += noteStyle.Render("  working...")
	}
	body := boxStyle.Render(m.viewport.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.input.View())
}

// RunTUI runs the console full-screen until the operator quits or ctx ends.
func RunTUI(ctx context.Context, surface *Surface, notes <-chan secondary.Notification) error {
	p := tea.NewProgram(NewModel(ctx, surface, notes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
