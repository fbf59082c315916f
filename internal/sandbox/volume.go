package sandbox

import (
	"context"
	"fmt"

	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/policy"
	"github.com/zpdzap/katarunner/internal/shell"
)

// VolumeSupervisor is the supervisor's path in a KindVolume sandbox. It
// lives on the volume so every fresh container sees it.
const VolumeSupervisor = identity.SandboxesRoot + "/.bin/" + supervisorName

// labelKey marks the short-lived containers that mount a kata's volume.
const labelKey = "katarunner.sandbox"

// Volume keeps one named volume per kata and runs each command in a fresh
// container.
type Volume struct {
	opts Options
}

func (v *Volume) Kind() Kind             { return KindVolume }
func (v *Volume) Name() string           { return NameFor(KindVolume, v.opts.KataID) }
func (v *Volume) SupervisorPath() string { return VolumeSupervisor }

// Exists reports whether the kata's volume exists.
func (v *Volume) Exists(ctx context.Context) (bool, error) {
	argv := v.opts.Docker.Args("volume", "ls", "--quiet", "--filter", "name="+v.Name())
	res, err := shell.AssertExec(ctx, v.opts.Shell.Quiet(), nil, argv...)
	if err != nil {
		return false, err
	}
	return hasLine(res.Stdout, v.Name()), nil
}

// Create makes the volume, installs the supervisor onto it and runs the
// image's startup hook against it.
func (v *Volume) Create(ctx context.Context) error {
	if _, err := shell.AssertExec(ctx, v.opts.Shell, nil, v.opts.Docker.Args("volume", "create", v.Name())...); err != nil {
		return &NotStartedError{Err: fmt.Errorf("creating volume %s: %w", v.Name(), err)}
	}
	v.opts.Log.Info("volume created")

	if err := installSupervisor(ctx, v, v.opts); err != nil {
		return err
	}
	if _, err := shell.AssertExec(ctx, v.opts.Shell, nil, v.Shell("root", false, startupHookScript())...); err != nil {
		return fmt.Errorf("running startup hook: %w", err)
	}
	return nil
}

// Destroy removes any containers still using the volume, then the volume.
func (v *Volume) Destroy(ctx context.Context) error {
	ps := v.opts.Docker.Args("ps", "--all", "--quiet", "--filter", "label="+labelKey+"="+v.Name())
	if res, err := v.opts.Shell.Quiet().Exec(ctx, nil, ps...); err == nil {
		for _, id := range fields(res.Stdout) {
			_, _ = v.opts.Shell.Quiet().Exec(ctx, nil, v.opts.Docker.Args("rm", "--force", id)...)
		}
	}
	argv := v.opts.Docker.Args("volume", "rm", "--force", v.Name())
	if _, err := shell.AssertExec(ctx, v.opts.Shell, nil, argv...); err != nil {
		return fmt.Errorf("removing volume %s: %w", v.Name(), err)
	}
	v.opts.Log.Info("volume removed")
	return nil
}

func (v *Volume) Shell(user string, interactive bool, script string) []string {
	return v.Exec(user, interactive, "sh", "-c", script)
}

func (v *Volume) Exec(user string, interactive bool, argv ...string) []string {
	args := []string{"run", "--rm"}
	if interactive {
		args = append(args, "--interactive")
	}
	args = append(args, "--init", "--label="+labelKey+"="+v.Name())
	args = append(args, policy.Flags()...)
	if user != "" {
		args = append(args, "--user="+user)
	}
	args = append(args,
		"--volume="+v.Name()+":"+identity.SandboxesRoot+":rw",
		v.opts.Image)
	args = append(args, argv...)
	return v.opts.Docker.Args(args...)
}
