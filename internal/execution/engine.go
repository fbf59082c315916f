// Package execution runs one command under a hard wall-clock deadline.
//
// The command is started as the leader of a new process group with its
// stdout and stderr on pipes. If the deadline passes first the whole group
// is SIGKILLed and the process is left to be reaped in the background: the
// caller gets whatever output was already buffered and never waits for the
// exit status.
//
// Killing the group only stops the host side. When the command is a
// `docker exec`, the processes inside the container keep running; the
// in-sandbox supervisor and, finally, removing the sandbox deal with them.
package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// TimedOutStatus is the exit status reported for a run that hit its
// deadline.
const TimedOutStatus = 137

// drainGrace is how long a killed run waits for buffered output to be read
// before the pipes are closed under the readers.
const drainGrace = 250 * time.Millisecond

// State is the terminal state of a run.
type State string

const (
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
)

// Outcome is the result of one bounded run.
type Outcome struct {
	Stdout   string
	Stderr   string
	Status   int
	State    State
	Duration time.Duration
}

// TimedOut reports whether the run hit its deadline.
func (o Outcome) TimedOut() bool {
	return o.State == StateTimedOut
}

// Engine runs commands under a deadline.
type Engine struct {
	maxOutput int
	log       *logrus.Entry
}

// New creates an Engine bounding each stream to maxOutput bytes.
func New(maxOutput int, log *logrus.Entry) *Engine {
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	return &Engine{maxOutput: maxOutput, log: log.WithField("component", "execution")}
}

// Run starts argv and waits for it to exit or for limit to pass. A
// deadline is a normal outcome; the error is only for commands that could
// not be started. Cancelling ctx is treated like reaching the deadline.
func (e *Engine) Run(ctx context.Context, argv []string, limit time.Duration) (Outcome, error) {
	if len(argv) == 0 {
		return Outcome{}, errors.New("empty command")
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("creating stdout pipe: %w", err)
	}
	defer outR.Close()
	errR, errW, err := os.Pipe()
	if err != nil {
		outW.Close()
		return Outcome{}, fmt.Errorf("creating stderr pipe: %w", err)
	}
	defer errR.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = outW
	cmd.Stderr = errW
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	start := time.Now()
	err = cmd.Start()
	// The child holds its own copies; ours must go so readers see EOF.
	outW.Close()
	errW.Close()
	if err != nil {
		return Outcome{}, fmt.Errorf("starting %s: %w", argv[0], err)
	}
	pid := cmd.Process.Pid

	stdout := newCapture(e.maxOutput)
	stderr := newCapture(e.maxOutput)
	drained := make(chan struct{})
	var readers sync.WaitGroup
	readers.Add(2)
	go func() { defer readers.Done(); _, _ = io.Copy(stdout, outR) }()
	go func() { defer readers.Done(); _, _ = io.Copy(stderr, errR) }()
	go func() { readers.Wait(); close(drained) }()

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	deadline := time.NewTimer(limit)
	defer deadline.Stop()

	log := e.log.WithFields(logrus.Fields{"pid": pid, "limit": limit})

	select {
	case waitErr := <-exited:
		status := exitStatus(cmd, waitErr)
		select {
		case <-drained:
		case <-deadline.C:
			// Something outside the group still holds the pipes open.
			log.Warn("output still open at deadline after exit; closing pipes")
			killGroup(pid)
			closePipes(outR, errR, drained)
		}
		return Outcome{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Status:   status,
			State:    StateCompleted,
			Duration: time.Since(start),
		}, nil

	case <-deadline.C:
		log.Warn("deadline reached; killing process group")
	case <-ctx.Done():
		log.WithError(ctx.Err()).Warn("context done; killing process group")
	}

	killGroup(pid)
	// exited is buffered, so the Wait goroutine reaps the child without us.
	select {
	case <-drained:
	case <-time.After(drainGrace):
		closePipes(outR, errR, drained)
	}
	return Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Status:   TimedOutStatus,
		State:    StateTimedOut,
		Duration: time.Since(start),
	}, nil
}

func killGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}

// closePipes unblocks the readers and waits for them to return.
func closePipes(outR, errR *os.File, drained <-chan struct{}) {
	outR.Close()
	errR.Close()
	<-drained
}

func exitStatus(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}
