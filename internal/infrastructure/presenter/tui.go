package presenter

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

// Messages the TUI presenter feeds into the program
type (
	noticeMsg  plugindomain.Notice
	dismissMsg struct{}
	toastMsg   string
	errorMsg   struct {
		message string
		err     error
	}
	actionDoneMsg struct {
		action string
		err    error
	}
)

// TUI forwards presenter calls into a running bubbletea program. Sends block
// until the program loop picks them up and return immediately once it has
// exited.
type TUI struct {
	program *tea.Program
}

var _ ports.Presenter = (*TUI)(nil)

// NewTUI creates the interactive notice program and its presenter
func NewTUI(ctx context.Context, actions ports.Actions, opts ...tea.ProgramOption) (*TUI, *tea.Program) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(NewModel(ctx, actions), opts...)
	return &TUI{program: program}, program
}

func (t *TUI) RenderNotice(n plugindomain.Notice) { t.program.Send(noticeMsg(n)) }

func (t *TUI) DismissNotice() { t.program.Send(dismissMsg{}) }

func (t *TUI) Toast(message string) { t.program.Send(toastMsg(message)) }

func (t *TUI) ReportError(message string, err error) {
	t.program.Send(errorMsg{message: message, err: err})
}

// Model holds the state of the interactive notice surface
type Model struct {
	ctx     context.Context
	actions ports.Actions

	notice   plugindomain.Notice
	selected int
	busy     string
	status   string
	failure  string
	updated  time.Time
	width    int
}

// NewModel creates the TUI model. Actions run as commands off the program
// loop so presenter sends never wait on the loop they feed.
func NewModel(ctx context.Context, actions ports.Actions) Model {
	return Model{ctx: ctx, actions: actions}
}

// Init loads the notice that exists when the surface mounts
func (m Model) Init() tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(m.actions.Notice())
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case noticeMsg:
		m.notice = plugindomain.Notice(msg)
		m.updated = time.Now()
		if m.selected >= len(m.notice.Outdated) {
			m.selected = max(len(m.notice.Outdated)-1, 0)
		}
		return m, nil

	case dismissMsg:
		m.notice = plugindomain.Notice{}
		m.selected = 0
		m.updated = time.Now()
		return m, nil

	case toastMsg:
		m.status = string(msg)
		m.failure = ""
		return m, nil

	case errorMsg:
		m.failure = msg.message
		if msg.err != nil {
			m.failure = fmt.Sprintf("%s: %v", msg.message, msg.err)
		}
		return m, nil

	case actionDoneMsg:
		m.busy = ""
		if msg.err != nil {
			m.failure = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.notice.Outdated)-1 {
			m.selected++
		}
		return m, nil
	}

	if m.busy != "" {
		return m, nil
	}

	switch msg.String() {
	case "enter":
		if len(m.notice.Outdated) == 0 {
			return m, nil
		}
		name := m.notice.Outdated[m.selected]
		m.busy = "installing " + name
		return m, m.installCmd(name)

	case "r":
		if !m.notice.ReloadVisible() {
			return m, nil
		}
		m.busy = "reloading"
		return m, m.reloadCmd()

	case "c":
		m.busy = "checking"
		return m, m.checkCmd()
	}

	return m, nil
}

// installCmd reports through the presenter itself, so the done message only
// clears the busy marker
func (m Model) installCmd(name string) tea.Cmd {
	return func() tea.Msg {
		m.actions.InstallByName(m.ctx, name)
		return actionDoneMsg{action: "install"}
	}
}

func (m Model) reloadCmd() tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: "reload", err: m.actions.Reload(m.ctx)}
	}
}

func (m Model) checkCmd() tea.Cmd {
	return func() tea.Msg {
		m.actions.SweepNow(m.ctx)
		return actionDoneMsg{action: "check"}
	}
}

// Notice returns the notice currently displayed
func (m Model) Notice() plugindomain.Notice { return m.notice }

// Selected returns the cursor position in the outdated list
func (m Model) Selected() int { return m.selected }

func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("km-updater")

	var sections []string
	sections = append(sections, title)

	if !m.notice.Visible() {
		sections = append(sections, dimStyle.Render("\n  All plugins are up to date.\n"))
	} else {
		sections = append(sections, m.renderNotice())
	}

	if m.busy != "" {
		sections = append(sections, dimStyle.Render("… "+m.busy))
	}
	if m.status != "" {
		sections = append(sections, toastStyle.Render("✓ "+m.status))
	}
	if m.failure != "" {
		sections = append(sections, errorStyle.Render("✗ "+m.failure))
	}

	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderNotice() string {
	var rows []string
	if len(m.notice.Outdated) > 0 {
		rows = append(rows, headlineStyle.Render(plugindomain.UpdatesMessage))
		for i, name := range m.notice.Outdated {
			cursor := "  "
			style := lipgloss.NewStyle()
			if i == m.selected {
				cursor = "> "
				style = style.Bold(true).Foreground(lipgloss.Color("214"))
			}
			rows = append(rows, style.Render(cursor+name))
		}
	}
	if m.notice.ReloadVisible() {
		rows = append(rows, reloadStyle.Render(plugindomain.ReloadMessage))
		rows = append(rows, dimStyle.Render("  downloaded: "+strings.Join(m.notice.Downloaded, ", ")))
	}

	box := noticeBoxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	return box.Render(strings.Join(rows, "\n"))
}

func (m Model) renderFooter() string {
	controls := []string{"[↑↓] Select", "[enter] Install", "[c] Check"}
	if m.notice.ReloadVisible() {
		controls = append(controls, "[r] Reload")
	}
	controls = append(controls, "[q] Quit")

	footer := strings.Join(controls, " | ")
	if !m.updated.IsZero() {
		footer += dimStyle.Render("   updated " + m.updated.Format("15:04:05"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render(footer)
}
