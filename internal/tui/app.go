package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/katarunner/internal/sandbox"
)

// Inventory finds and removes kata sandboxes.
type Inventory interface {
	List(ctx context.Context) ([]*sandbox.Sandbox, error)
	Remove(ctx context.Context, sb *sandbox.Sandbox) error
}

// Run shows the dashboard until the user quits.
func Run(inv Inventory) error {
	p := tea.NewProgram(newModel(inv), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
