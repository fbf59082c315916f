// Package verdict asks the sandbox image to colour a completed run.
//
// The image provides an executable classifier. It receives the run's
// status as its only argument and a JSON document with the sanitized
// streams on stdin, and must print exactly one of red, amber or green.
// Anything else, including failing to run at all, is amber.
package verdict

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/sandbox"
	"github.com/zpdzap/katarunner/internal/shell"
)

// Colour is the verdict of a run.
type Colour string

const (
	Red      Colour = "red"
	Amber    Colour = "amber"
	Green    Colour = "green"
	TimedOut Colour = "timed_out"
)

// ClassifierPath is where images install the classifier.
const ClassifierPath = "/usr/local/bin/red_amber_green"

// DefaultTimeout bounds one classifier invocation.
const DefaultTimeout = 10 * time.Second

// Input is what the classifier reads on stdin.
type Input struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
	Status int    `json:"status"`
}

// Classifier colours completed runs in one sandbox.
type Classifier struct {
	backend sandbox.Backend
	sh      shell.Executor
	timeout time.Duration
	log     *logrus.Entry
}

// New returns a Classifier. A zero timeout means DefaultTimeout.
func New(backend sandbox.Backend, sh shell.Executor, timeout time.Duration, log *logrus.Entry) *Classifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		backend: backend,
		sh:      sh,
		timeout: timeout,
		log:     log.WithField("component", "verdict"),
	}
}

// Colour runs the classifier as user and returns its verdict. It never
// fails; every problem degrades to Amber.
func (c *Classifier) Colour(ctx context.Context, user string, in Input) Colour {
	body, err := json.Marshal(in)
	if err != nil {
		return c.amber(err, "encoding classifier input")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	argv := c.backend.Exec(user, true, ClassifierPath, strconv.Itoa(in.Status))
	res, err := c.sh.Quiet().Exec(ctx, bytes.NewReader(body), argv...)
	if err != nil {
		return c.amber(err, "classifier did not run")
	}
	if res.Status != shell.Success {
		return c.amber(nil, "classifier exited "+strconv.Itoa(res.Status))
	}
	colour, ok := Parse(res.Stdout)
	if !ok {
		return c.amber(nil, "classifier printed "+strconv.Quote(truncate(res.Stdout, 40)))
	}
	return colour
}

func (c *Classifier) amber(err error, msg string) Colour {
	entry := c.log
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Warn(msg + "; verdict is amber")
	return Amber
}

// Parse accepts exactly one of the three tokens, ignoring surrounding
// whitespace.
func Parse(out string) (Colour, bool) {
	switch c := Colour(strings.TrimSpace(out)); c {
	case Red, Amber, Green:
		return c, true
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
