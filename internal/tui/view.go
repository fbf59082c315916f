package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zpdzap/katarunner/internal/sandbox"
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	title := "katarunner"
	stats := statsStyle.Render(m.stats())
	gap := max(1, m.width-lipgloss.Width(title)-lipgloss.Width(stats)-4)
	b.WriteString(headerStyle.Width(m.width).Render(title + strings.Repeat(" ", gap) + stats))
	b.WriteString("\n")

	if len(m.sandboxes) == 0 {
		b.WriteString(emptyStyle.Render("No kata sandboxes."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString(dividerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	switch {
	case m.commanding:
		b.WriteString(hotkeysStyle.Render("[enter] execute  [esc] cancel"))
	case m.confirmRemove:
		b.WriteString(confirmStyle.Render(fmt.Sprintf("Remove %s? Press d again to confirm, any other key to cancel", m.confirmRemoveName)))
	default:
		b.WriteString(hotkeysStyle.Render("[↑↓] select  [d] remove  [r]efresh  [/] command  [?] help  [q] quit"))
	}
	b.WriteString("\n")

	if m.message != "" {
		if m.isError {
			b.WriteString(errorStyle.Render(m.message))
		} else {
			b.WriteString(messageStyle.Render(m.message))
		}
		b.WriteString("\n")
	}
	if m.commanding {
		b.WriteString("  ")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.showHelp {
		return m.renderHelpOverlay(b.String())
	}
	return b.String()
}

// stats summarises the sandboxes by kind.
func (m model) stats() string {
	counts := map[sandbox.Kind]int{}
	for _, sb := range m.sandboxes {
		counts[sb.Kind]++
	}
	return fmt.Sprintf("%d containers  %d volumes", counts[sandbox.KindContainer], counts[sandbox.KindVolume])
}

func (m model) renderHelpOverlay(base string) string {
	help := strings.Join([]string{
		helpHeaderStyle.Render("Navigation"),
		helpKeyStyle.Render("  ↑/k  ↓/j") + helpDescStyle.Render("   Select sandbox"),
		"",
		helpHeaderStyle.Render("Actions"),
		helpKeyStyle.Render("  d") + helpDescStyle.Render("           Remove selected sandbox"),
		helpKeyStyle.Render("  r") + helpDescStyle.Render("           Refresh now"),
		"",
		helpHeaderStyle.Render("Commands"),
		helpKeyStyle.Render("  /") + helpDescStyle.Render("           Open command bar"),
		helpDescStyle.Render("  /remove <kata>"),
		helpDescStyle.Render("  /sweep"),
		helpDescStyle.Render("  /quit"),
		"",
		helpKeyStyle.Render("  q") + helpDescStyle.Render("  quit") + "     " + helpKeyStyle.Render("?") + helpDescStyle.Render("  close this help"),
	}, "\n")

	modal := helpStyle.Render(help)
	xOffset := max(0, (m.width-lipgloss.Width(modal))/2)
	yOffset := max(0, (m.height-lipgloss.Height(modal))/2)

	// Overlay modal onto base
	baseLines := strings.Split(base, "\n")
	for len(baseLines) < yOffset+lipgloss.Height(modal) {
		baseLines = append(baseLines, "")
	}
	for i, line := range strings.Split(modal, "\n") {
		pad := max(0, m.width-xOffset-lipgloss.Width(line))
		baseLines[yOffset+i] = strings.Repeat(" ", xOffset) + line + strings.Repeat(" ", pad)
	}
	return strings.Join(baseLines, "\n")
}
