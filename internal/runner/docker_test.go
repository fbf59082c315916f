package runner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zpdzap/katarunner/internal/execution"
	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/shell"
	"github.com/zpdzap/katarunner/internal/verdict"
)

// fakeDocker answers the docker commands a KataRunner issues, keeping
// track of sandboxes and avatar directories.
type fakeDocker struct {
	mu        sync.Mutex
	sandboxes map[string]bool
	avatars   map[string]bool
	creates   int
	images    string
	pullErr   string
	colour    string
	tarballs  [][]byte
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		sandboxes: make(map[string]bool),
		avatars:   make(map[string]bool),
		colour:    "red",
	}
}

func (f *fakeDocker) handle(argv []string, stdin []byte) (shell.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	args := argv[1:]
	cmd := strings.Join(args, " ")
	last := args[len(args)-1]

	switch {
	case strings.HasPrefix(cmd, "images"):
		return shell.Result{Stdout: f.images}, nil
	case strings.HasPrefix(cmd, "pull"):
		if f.pullErr != "" {
			return shell.Result{Status: 1, Stderr: f.pullErr}, nil
		}
		return shell.Result{}, nil
	case strings.HasPrefix(cmd, "volume ls"), strings.HasPrefix(cmd, "ps --all --filter status=running"):
		name := strings.TrimPrefix(args[indexOf(args, "--filter")+1], "name=")
		if strings.HasPrefix(cmd, "ps") {
			name = strings.TrimPrefix(args[indexOf(args, "--format")-1], "name=")
		}
		if f.sandboxes[name] {
			return shell.Result{Stdout: name + "\n"}, nil
		}
		return shell.Result{}, nil
	case strings.HasPrefix(cmd, "volume create"):
		f.sandboxes[last] = true
		f.creates++
		return shell.Result{}, nil
	case strings.HasPrefix(cmd, "run --detach"):
		for _, a := range args {
			if name, ok := strings.CutPrefix(a, "--name="); ok {
				f.sandboxes[name] = true
			}
		}
		f.creates++
		return shell.Result{}, nil
	case strings.HasPrefix(cmd, "volume rm"), strings.HasPrefix(cmd, "rm --force --volumes"):
		delete(f.sandboxes, last)
		return shell.Result{}, nil
	}

	for _, name := range identity.AvatarNames() {
		dir := shell.Quote(identity.AvatarDir(name))
		switch {
		case last == "[ -d "+dir+" ]":
			if f.avatars[name] {
				return shell.Result{}, nil
			}
			return shell.Result{Status: 1}, nil
		case strings.HasPrefix(last, "mkdir -m 700 "+dir):
			f.avatars[name] = true
			return shell.Result{}, nil
		case last == "rm -rf "+dir:
			delete(f.avatars, name)
			return shell.Result{}, nil
		case strings.HasPrefix(last, "cd "+dir+" && tar"):
			f.tarballs = append(f.tarballs, stdin)
			return shell.Result{}, nil
		}
	}
	if indexOf(args, verdict.ClassifierPath) >= 0 {
		return shell.Result{Stdout: f.colour + "\n"}, nil
	}
	return shell.Result{}, nil
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}

// fakeEngine returns a fixed outcome and records what it ran.
type fakeEngine struct {
	mu      sync.Mutex
	outcome execution.Outcome
	argv    []string
	limit   time.Duration
}

func (e *fakeEngine) Run(_ context.Context, argv []string, limit time.Duration) (execution.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.argv, e.limit = argv, limit
	return e.outcome, nil
}
