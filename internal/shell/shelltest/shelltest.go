// Package shelltest provides a scripted shell.Executor for tests.
package shelltest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/zpdzap/katarunner/internal/shell"
)

// Call is one recorded Exec.
type Call struct {
	Argv  []string
	Stdin []byte
}

// String joins the argv with spaces.
func (c Call) String() string {
	return strings.Join(c.Argv, " ")
}

// HandlerFunc answers one Exec.
type HandlerFunc func(argv []string, stdin []byte) (shell.Result, error)

// Executor records every call and answers with Handler. With no Handler
// every command succeeds with empty output.
type Executor struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []Call
}

// Exec records the call and runs the handler.
func (e *Executor) Exec(_ context.Context, stdin io.Reader, argv ...string) (shell.Result, error) {
	var in []byte
	if stdin != nil {
		in, _ = io.ReadAll(stdin)
	}
	e.mu.Lock()
	e.calls = append(e.calls, Call{Argv: append([]string(nil), argv...), Stdin: in})
	h := e.Handler
	e.mu.Unlock()

	if h == nil {
		return shell.Result{}, nil
	}
	return h(argv, in)
}

// Quiet returns e itself.
func (e *Executor) Quiet() shell.Executor {
	return e
}

// Calls returns a copy of the recorded calls.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Find returns the first call whose joined argv contains every one of
// parts.
func (e *Executor) Find(parts ...string) (Call, bool) {
	for _, c := range e.Calls() {
		if containsAll(c.String(), parts) {
			return c, true
		}
	}
	return Call{}, false
}

// Count returns how many calls contain every one of parts.
func (e *Executor) Count(parts ...string) int {
	n := 0
	for _, c := range e.Calls() {
		if containsAll(c.String(), parts) {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls.
func (e *Executor) Reset() {
	e.mu.Lock()
	e.calls = nil
	e.mu.Unlock()
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
