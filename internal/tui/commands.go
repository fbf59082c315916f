package tui

import (
	"fmt"
	"strings"

	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/sandbox"
)

// Command is a line typed into the dashboard's command bar, e.g.
// "/remove 5A0F824303".
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits a command bar line. The leading slash is optional
// and names are case-insensitive. Blank input yields nil.
func ParseCommand(input string) *Command {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if name == "" {
		return nil
	}
	return &Command{Name: name, Args: parts[1:]}
}

// Target returns the one kata id or sandbox name the command acts on.
func (c *Command) Target() (string, error) {
	if len(c.Args) != 1 {
		return "", fmt.Errorf("usage: /%s <kata>", c.Name)
	}
	arg := c.Args[0]
	if identity.ValidKataID(arg) {
		return arg, nil
	}
	if _, _, ok := sandbox.ParseName(arg); ok {
		return arg, nil
	}
	return "", fmt.Errorf("%q is not a kata id or sandbox name", arg)
}
