package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/katarunner/internal/sandbox"
)

// confirmWindow is how long a first d waits for the second.
const confirmWindow = 2 * time.Second

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6 // account for "  > /" prefix
		m.table.SetHeight(max(3, msg.Height-8))
		return m, nil

	case statusTickMsg:
		return m, tea.Batch(listCmd(m.inv), tickCmd())

	case sandboxesMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
			m.isError = true
			return m, nil
		}
		m.sandboxes = msg.sandboxes
		m.table.SetRows(rowsFor(m.sandboxes))
		if c := m.table.Cursor(); c >= len(m.sandboxes) && len(m.sandboxes) > 0 {
			m.table.SetCursor(len(m.sandboxes) - 1)
		}
		return m, nil

	case sandboxRemovedMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Error: %v", msg.err)
			m.isError = true
		} else {
			m.message = fmt.Sprintf("Removed sandbox: %s", msg.name)
			m.isError = false
		}
		return m, listCmd(m.inv)

	case sweptMsg:
		if msg.err != nil {
			m.message = fmt.Sprintf("Removed %d sandboxes, error: %v", msg.count, msg.err)
			m.isError = true
		} else {
			m.message = fmt.Sprintf("Removed %d sandboxes", msg.count)
			m.isError = false
		}
		return m, listCmd(m.inv)

	case confirmRemoveExpiredMsg:
		m.confirmRemove = false
		m.confirmRemoveName = ""
		return m, nil

	case tea.KeyMsg:
		if m.commanding {
			return m.handleCommandMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	// Forward to input if in command mode
	if m.commanding {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleNormalMode handles keys when navigating the sandbox table.
func (m model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Dismiss help modal
	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	// If confirming a remove, second d confirms, anything else cancels
	if m.confirmRemove {
		m.confirmRemove = false
		name := m.confirmRemoveName
		m.confirmRemoveName = ""
		if msg.String() == "d" {
			if sb, ok := m.find(name); ok {
				return m.remove(sb)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.commanding = true
		m.input.Focus()
		m.input.SetValue("")
		return m, textinput.Blink

	case "d":
		if sb, ok := m.selected(); ok {
			m.confirmRemove = true
			m.confirmRemoveName = sb.Name
			return m, tea.Tick(confirmWindow, func(time.Time) tea.Msg {
				return confirmRemoveExpiredMsg{}
			})
		}
		return m, nil

	case "r":
		return m, listCmd(m.inv)

	case "?":
		m.showHelp = true
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// handleCommandMode handles keys when the command input is active.
func (m model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		m.commanding = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		m.commanding = false
		m.input.Blur()
		return m.processInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) processInput() (tea.Model, tea.Cmd) {
	cmd := ParseCommand(m.input.Value())
	m.input.SetValue("")
	if cmd == nil {
		return m, nil
	}

	switch cmd.Name {
	case "remove", "rm":
		key, err := cmd.Target()
		if err != nil {
			m.message = err.Error()
			m.isError = true
			return m, nil
		}
		sb, ok := m.find(key)
		if !ok {
			m.message = fmt.Sprintf("Sandbox %q not found", key)
			m.isError = true
			return m, nil
		}
		return m.remove(sb)

	case "sweep":
		if len(m.sandboxes) == 0 {
			m.message = "No sandboxes to remove"
			m.isError = false
			return m, nil
		}
		m.message = fmt.Sprintf("Removing %d sandboxes...", len(m.sandboxes))
		m.isError = false
		return m, sweepCmd(m.inv, m.sandboxes)

	case "quit":
		m.quitting = true
		return m, tea.Quit

	default:
		m.message = fmt.Sprintf("Unknown command: /%s", cmd.Name)
		m.isError = true
		return m, nil
	}
}

func (m model) remove(sb *sandbox.Sandbox) (tea.Model, tea.Cmd) {
	m.message = fmt.Sprintf("Removing sandbox %s...", sb.Name)
	m.isError = false
	return m, removeCmd(m.inv, sb)
}
