// Package runner exposes the public operations on one kata: pulling its
// image, creating and removing its sandbox and avatars, and running an
// avatar's cyber-dojo.sh.
package runner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/avatar"
	"github.com/zpdzap/katarunner/internal/execution"
	"github.com/zpdzap/katarunner/internal/filesync"
	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/metrics"
	"github.com/zpdzap/katarunner/internal/sandbox"
	"github.com/zpdzap/katarunner/internal/shell"
	"github.com/zpdzap/katarunner/internal/verdict"
)

// Runner is the set of operations every sandbox strategy supports.
type Runner interface {
	ImagePulled(ctx context.Context) (bool, error)
	ImagePull(ctx context.Context) (bool, error)
	KataNew(ctx context.Context) error
	KataOld(ctx context.Context) error
	AvatarNew(ctx context.Context, avatar string, files map[string]string) error
	AvatarOld(ctx context.Context, avatar string) error
	Run(ctx context.Context, avatar string, deleted []string, changed map[string]string, maxSeconds int) (Result, error)
}

// Timed runs a host command under a wall-clock limit.
type Timed interface {
	Run(ctx context.Context, argv []string, limit time.Duration) (execution.Outcome, error)
}

// Result is the outcome of one run.
type Result struct {
	Stdout   string         `json:"stdout"`
	Stderr   string         `json:"stderr"`
	Status   int            `json:"status"`
	Colour   verdict.Colour `json:"colour"`
	Duration time.Duration  `json:"-"`
}

// Deps are the collaborators a KataRunner works through.
type Deps struct {
	Shell   shell.Executor
	Disk    shell.Disk
	Engine  Timed
	Docker  shell.Docker
	Log     *logrus.Entry
	Metrics *metrics.Recorder

	// KeepAlive is how long a container sandbox waits for execs.
	KeepAlive string
	// StagingDir holds files on the host before they are sent in.
	StagingDir string
	// ClassifierTimeout bounds the image's verdict classifier.
	ClassifierTimeout time.Duration
}

// KataRunner runs one kata in one image.
type KataRunner struct {
	image      identity.ImageName
	kataID     string
	deps       Deps
	log        *logrus.Entry
	manager    *sandbox.Manager
	avatars    *avatar.Directories
	files      *filesync.Syncer
	classifier *verdict.Classifier
}

var _ Runner = (*KataRunner)(nil)

// New validates image and kataID, in that order, and returns a runner
// using the strategy the image's tag selects.
func New(deps Deps, image, kataID string) (*KataRunner, error) {
	img, err := identity.ParseImageName(image)
	if err != nil {
		return nil, err
	}
	if !identity.ValidKataID(kataID) {
		return nil, identity.Bad(identity.FieldKataID, identity.Invalid)
	}
	if deps.Disk == nil {
		deps.Disk = shell.LocalDisk{}
	}

	kind := sandbox.KindForImage(img)
	log := deps.Log.WithFields(logrus.Fields{"kata_id": kataID, "image": img.String()})
	backend := sandbox.New(kind, sandbox.Options{
		Docker:     deps.Docker,
		Shell:      deps.Shell,
		Disk:       deps.Disk,
		Image:      img.String(),
		KataID:     kataID,
		KeepAlive:  deps.KeepAlive,
		StagingDir: deps.StagingDir,
		Log:        log,
	})
	return &KataRunner{
		image:      img,
		kataID:     kataID,
		deps:       deps,
		log:        log.WithField("component", "runner"),
		manager:    sandbox.NewManager(backend),
		avatars:    avatar.New(backend, deps.Shell, log),
		files:      filesync.New(backend, deps.Shell, deps.Disk, deps.StagingDir, log),
		classifier: verdict.New(backend, deps.Shell, deps.ClassifierTimeout, log),
	}, nil
}

// Kind reports the strategy in use.
func (r *KataRunner) Kind() sandbox.Kind {
	return r.manager.Backend().Kind()
}

// SandboxName is the docker name of the kata's sandbox.
func (r *KataRunner) SandboxName() string {
	return r.manager.Backend().Name()
}

// KataNew creates the kata's sandbox.
func (r *KataRunner) KataNew(ctx context.Context) (err error) {
	defer r.observe("kata_new", &err)
	return r.manager.Create(ctx)
}

// KataOld removes the kata's sandbox and everything running in it.
func (r *KataRunner) KataOld(ctx context.Context) (err error) {
	defer r.observe("kata_old", &err)
	return r.manager.Destroy(ctx)
}

// AvatarNew creates avatar's directory and writes its starting files.
func (r *KataRunner) AvatarNew(ctx context.Context, avatar string, files map[string]string) (err error) {
	defer r.observe("avatar_new", &err)
	if !identity.ValidAvatarName(avatar) {
		return identity.Bad(identity.FieldAvatarName, identity.Invalid)
	}
	if err := filesync.Validate(nil, files); err != nil {
		return err
	}
	if err := r.manager.AssertExists(ctx); err != nil {
		return err
	}
	if err := r.avatars.Create(ctx, avatar); err != nil {
		return err
	}
	return r.files.Write(ctx, avatar, files)
}

// AvatarOld removes avatar's directory.
func (r *KataRunner) AvatarOld(ctx context.Context, avatar string) (err error) {
	defer r.observe("avatar_old", &err)
	if !identity.ValidAvatarName(avatar) {
		return identity.Bad(identity.FieldAvatarName, identity.Invalid)
	}
	if err := r.manager.AssertExists(ctx); err != nil {
		return err
	}
	return r.avatars.Destroy(ctx, avatar)
}

// Run applies deleted and changed to avatar's directory, runs
// cyber-dojo.sh for at most maxSeconds and colours the outcome. A run that
// hits the limit is reported with colour timed_out, not as an error.
func (r *KataRunner) Run(ctx context.Context, avatar string, deleted []string, changed map[string]string, maxSeconds int) (Result, error) {
	owner, err := identity.Owner(avatar)
	if err != nil {
		return Result{}, err
	}
	if maxSeconds <= 0 {
		return Result{}, identity.Bad(identity.FieldMaxSeconds, identity.Invalid)
	}
	if err := filesync.Validate(deleted, changed); err != nil {
		return Result{}, err
	}
	if err := r.manager.AssertExists(ctx); err != nil {
		return Result{}, err
	}
	if err := r.avatars.AssertExists(ctx, avatar); err != nil {
		return Result{}, err
	}
	if err := r.files.Delete(ctx, avatar, deleted); err != nil {
		return Result{}, err
	}
	if err := r.files.Write(ctx, avatar, changed); err != nil {
		return Result{}, err
	}

	backend := r.manager.Backend()
	argv := backend.Exec(owner, false,
		backend.SupervisorPath(), r.kataID, avatar, strconv.Itoa(maxSeconds))
	out, err := r.deps.Engine.Run(ctx, argv, time.Duration(maxSeconds)*time.Second)
	if err != nil {
		return Result{}, fmt.Errorf("running cyber-dojo.sh: %w", err)
	}

	res := Result{
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Status:   out.Status,
		Duration: out.Duration,
	}
	if out.TimedOut() {
		res.Colour = verdict.TimedOut
	} else {
		res.Colour = r.classifier.Colour(ctx, owner, verdict.Input{
			Stdout: out.Stdout,
			Stderr: out.Stderr,
			Status: out.Status,
		})
	}

	r.deps.Metrics.Run(string(res.Colour), res.Duration)
	r.log.WithFields(logrus.Fields{
		"avatar":   avatar,
		"colour":   res.Colour,
		"status":   res.Status,
		"duration": res.Duration.Round(time.Millisecond),
	}).Info("run finished")
	return res, nil
}

func (r *KataRunner) observe(op string, err *error) {
	r.deps.Metrics.Lifecycle(op, *err)
	entry := r.log.WithField("op", op)
	if *err != nil {
		entry.WithError(*err).Warn("operation failed")
		return
	}
	entry.Info("operation ok")
}
