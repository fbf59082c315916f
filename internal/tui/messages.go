package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/katarunner/internal/sandbox"
)

// refreshInterval is how often the sandbox list is re-read from docker.
const refreshInterval = 2 * time.Second

// sandboxesMsg carries a fresh listing.
type sandboxesMsg struct {
	sandboxes []*sandbox.Sandbox
	err       error
}

// sandboxRemovedMsg is sent when a sandbox is removed.
type sandboxRemovedMsg struct {
	name string
	err  error
}

// sweptMsg is sent when /sweep finishes.
type sweptMsg struct {
	count int
	err   error
}

// confirmRemoveExpiredMsg cancels a pending remove confirmation.
type confirmRemoveExpiredMsg struct{}

// statusTickMsg triggers a status refresh poll.
type statusTickMsg time.Time

// tickCmd returns a command that sends a tick every refreshInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

func listCmd(inv Inventory) tea.Cmd {
	return func() tea.Msg {
		list, err := inv.List(context.Background())
		return sandboxesMsg{sandboxes: list, err: err}
	}
}

func removeCmd(inv Inventory, sb *sandbox.Sandbox) tea.Cmd {
	return func() tea.Msg {
		return sandboxRemovedMsg{name: sb.Name, err: inv.Remove(context.Background(), sb)}
	}
}

func sweepCmd(inv Inventory, all []*sandbox.Sandbox) tea.Cmd {
	return func() tea.Msg {
		n := 0
		var firstErr error
		for _, sb := range all {
			if err := inv.Remove(context.Background(), sb); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			n++
		}
		return sweptMsg{count: n, err: firstErr}
	}
}
