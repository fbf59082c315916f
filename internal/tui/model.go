package tui

import (
	"os"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zpdzap/katarunner/internal/sandbox"
	"golang.org/x/term"
)

// model is the Bubble Tea model for the sandbox dashboard.
type model struct {
	inv        Inventory
	sandboxes  []*sandbox.Sandbox
	table      table.Model
	input      textinput.Model
	message    string
	isError    bool
	commanding bool // true when in command mode (/ pressed)
	quitting   bool
	width      int
	height     int

	// Help modal
	showHelp bool

	// Double-press remove confirmation
	confirmRemove     bool
	confirmRemoveName string
}

var columns = []table.Column{
	{Title: "KATA", Width: 12},
	{Title: "KIND", Width: 10},
	{Title: "STATUS", Width: 10},
	{Title: "NAME", Width: 46},
}

func newModel(inv Inventory) model {
	ti := textinput.New()
	ti.Placeholder = "remove <kata>, sweep | quit"
	ti.CharLimit = 256
	ti.Width = 80
	// Input starts unfocused, activated by pressing /
	ti.Blur()

	// Get initial terminal size so the first render isn't at width=0
	w, h, _ := term.GetSize(int(os.Stdout.Fd()))
	if w == 0 {
		w = 80
	}
	if h == 0 {
		h = 24
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(3, h-8)),
	)
	t.SetStyles(tableStyles())

	return model{
		inv:    inv,
		table:  t,
		input:  ti,
		width:  w,
		height: h,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listCmd(m.inv), tickCmd())
}

// selected returns the sandbox under the cursor, if any.
func (m model) selected() (*sandbox.Sandbox, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.sandboxes) {
		return nil, false
	}
	return m.sandboxes[i], true
}

// find returns the sandbox for a kata id or full name.
func (m model) find(key string) (*sandbox.Sandbox, bool) {
	for _, sb := range m.sandboxes {
		if sb.KataID == key || sb.Name == key {
			return sb, true
		}
	}
	return nil, false
}

func rowsFor(sandboxes []*sandbox.Sandbox) []table.Row {
	rows := make([]table.Row, len(sandboxes))
	for i, sb := range sandboxes {
		rows[i] = table.Row{sb.KataID, string(sb.Kind), string(sb.Status), sb.Name}
	}
	return rows
}
