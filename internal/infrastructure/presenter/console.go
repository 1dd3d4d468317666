package presenter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	plugindomain "github.com/kilometers-ai/plugin-updater/internal/core/domain/plugin"
	"github.com/kilometers-ai/plugin-updater/internal/core/ports"
)

var (
	noticeBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)

	headlineStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	reloadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// Console prints the notice surface as a styled box on a writer
type Console struct {
	mu         sync.Mutex
	out        io.Writer
	reloadHint string
	showing    bool
}

var _ ports.Presenter = (*Console)(nil)

// NewConsole creates a console presenter. reloadHint is appended to the
// reload line, e.g. "run `km-updater reload`".
func NewConsole(out io.Writer, reloadHint string) *Console {
	return &Console{out: out, reloadHint: reloadHint}
}

func (c *Console) RenderNotice(n plugindomain.Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showing = true
	fmt.Fprintln(c.out, noticeBoxStyle.Render(RenderNoticeBody(n, c.reloadHint)))
}

func (c *Console) DismissNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.showing {
		return
	}
	c.showing = false
	fmt.Fprintln(c.out, dimStyle.Render("All plugins are up to date."))
}

func (c *Console) Toast(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, toastStyle.Render("✓ "+message))
}

func (c *Console) ReportError(message string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	fmt.Fprintln(c.out, errorStyle.Render("✗ "+message))
}

// RenderNoticeBody lays out the notice text shared by the console and TUI
func RenderNoticeBody(n plugindomain.Notice, reloadHint string) string {
	if !n.Visible() {
		return ""
	}

	var lines []string
	if len(n.Outdated) > 0 {
		lines = append(lines, headlineStyle.Render(plugindomain.UpdatesMessage))
		for _, name := range n.Outdated {
			lines = append(lines, "  • "+name)
		}
	}
	if n.ReloadVisible() {
		reload := plugindomain.ReloadMessage
		if reloadHint != "" {
			reload += " " + dimStyle.Render("("+reloadHint+")")
		}
		lines = append(lines, reloadStyle.Render(reload))
		lines = append(lines, dimStyle.Render("  downloaded: "+strings.Join(n.Downloaded, ", ")))
	}
	return strings.Join(lines, "\n")
}
