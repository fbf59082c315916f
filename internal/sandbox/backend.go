// Package sandbox creates and removes the isolated environment that backs
// one kata, and builds the docker command lines that run inside it.
package sandbox

import (
	"context"
	_ "embed"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/shell"
)

// SupervisorScript is installed into every sandbox. It runs cyber-dojo.sh
// and kills the avatar's processes when the run's deadline passes.
//
//go:embed timeout_cyber_dojo.sh
var SupervisorScript []byte

const (
	supervisorName = "timeout_cyber_dojo.sh"

	// StartupHook is run once, as root, when a sandbox is created, if the
	// image provides it.
	StartupHook = "/usr/local/bin/kata_startup.sh"

	// DefaultKeepAlive is how long a KindContainer sandbox sleeps waiting
	// for execs.
	DefaultKeepAlive = "3h"
)

// Backend is one strategy for realising a kata's sandbox. Backends do not
// check existence preconditions; Manager does.
type Backend interface {
	Kind() Kind

	// Name is the external docker name of the sandbox.
	Name() string

	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Destroy(ctx context.Context) error

	// Shell returns argv running script with sh -c inside the sandbox as
	// user ("uid:gid" or "root"). interactive attaches stdin.
	Shell(user string, interactive bool, script string) []string

	// Exec returns argv running argv directly inside the sandbox.
	Exec(user string, interactive bool, argv ...string) []string

	// SupervisorPath is where the supervisor script lives in the sandbox.
	SupervisorPath() string
}

// Options configures a Backend.
type Options struct {
	Docker     shell.Docker
	Shell      shell.Executor
	Disk       shell.Disk
	Image      string
	KataID     string
	KeepAlive  string
	StagingDir string
	Log        *logrus.Entry
}

// New returns the Backend for kind.
func New(kind Kind, opts Options) Backend {
	if opts.KeepAlive == "" {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.StagingDir == "" {
		opts.StagingDir = os.TempDir()
	}
	if opts.Disk == nil {
		opts.Disk = shell.LocalDisk{}
	}
	opts.Log = opts.Log.WithFields(logrus.Fields{
		"component": "sandbox",
		"kind":      kind,
		"kata_id":   opts.KataID,
	})
	if kind == KindContainer {
		return &Container{opts: opts}
	}
	return &Volume{opts: opts}
}

// startupHookScript runs the image's startup hook when present.
func startupHookScript() string {
	return "if [ -x " + StartupHook + " ]; then " + StartupHook + "; fi"
}

// NotStartedError reports a Create that failed before it made the
// container or volume. The name may belong to another creator, so there
// is nothing to roll back.
type NotStartedError struct {
	Err error
}

func (e *NotStartedError) Error() string { return e.Err.Error() }

func (e *NotStartedError) Unwrap() error { return e.Err }
