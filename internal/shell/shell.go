// Package shell runs host processes on behalf of the runner and writes
// staging files to the host disk. Both are interfaces so the runner can be
// driven by fakes in tests.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Success is the exit status of a command that succeeded.
const Success = 0

// Result is the captured outcome of one command.
type Result struct {
	Stdout string
	Stderr string
	Status int
}

// Executor runs a command to completion. A non-zero exit status is
// reported in Result, not as an error; the error is for commands that
// could not be started at all.
type Executor interface {
	Exec(ctx context.Context, stdin io.Reader, argv ...string) (Result, error)

	// Quiet returns an Executor that does not log. It is used for probes
	// whose failure is an expected answer.
	Quiet() Executor
}

// Disk writes files onto the host filesystem.
type Disk interface {
	Write(path string, content []byte) error
}

// ExecError is returned by AssertExec when a command exits non-zero.
type ExecError struct {
	Argv   []string
	Status int
	Stderr string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: exit status %d: %s",
		strings.Join(e.Argv, " "), e.Status, strings.TrimSpace(e.Stderr))
}

// AssertExec runs argv and fails unless it exits with Success.
func AssertExec(ctx context.Context, e Executor, stdin io.Reader, argv ...string) (Result, error) {
	res, err := e.Exec(ctx, stdin, argv...)
	if err != nil {
		return res, err
	}
	if res.Status != Success {
		return res, &ExecError{Argv: argv, Status: res.Status, Stderr: res.Stderr}
	}
	return res, nil
}

// Local runs commands with os/exec.
type Local struct {
	log   *logrus.Entry
	quiet bool
}

// NewLocal creates a Local executor logging through log.
func NewLocal(log *logrus.Entry) *Local {
	return &Local{log: log.WithField("component", "shell")}
}

// Quiet returns a copy of l that logs nothing.
func (l *Local) Quiet() Executor {
	return &Local{log: l.log, quiet: true}
}

// Exec runs argv[0] with the remaining arguments.
func (l *Local) Exec(ctx context.Context, stdin io.Reader, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Status = Success
	case errors.As(err, &exitErr):
		res.Status = exitErr.ExitCode()
	default:
		if !l.quiet {
			l.log.WithError(err).WithField("argv", argv).Error("command failed to start")
		}
		return res, fmt.Errorf("running %s: %w", argv[0], err)
	}

	if !l.quiet {
		entry := l.log.WithFields(logrus.Fields{"argv": argv, "status": res.Status})
		if res.Status != Success {
			entry.WithField("stderr", strings.TrimSpace(res.Stderr)).Warn("command exited non-zero")
		} else {
			entry.Debug("command ok")
		}
	}
	return res, nil
}

// LocalDisk writes through the os package, creating parent directories.
type LocalDisk struct{}

// Write creates or truncates path with content.
func (LocalDisk) Write(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
