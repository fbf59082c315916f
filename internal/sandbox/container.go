package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/policy"
	"github.com/zpdzap/katarunner/internal/shell"
)

// ContainerSupervisor is the supervisor's path in a KindContainer sandbox.
const ContainerSupervisor = "/usr/local/bin/" + supervisorName

// Container keeps one long-lived container per kata.
type Container struct {
	opts Options
}

func (c *Container) Kind() Kind             { return KindContainer }
func (c *Container) Name() string           { return NameFor(KindContainer, c.opts.KataID) }
func (c *Container) SupervisorPath() string { return ContainerSupervisor }

// Exists reports whether the kata's container is running.
func (c *Container) Exists(ctx context.Context) (bool, error) {
	argv := c.opts.Docker.Args("ps", "--all",
		"--filter", "status=running",
		"--filter", "name="+c.Name(),
		"--format", "{{.Names}}")
	res, err := shell.AssertExec(ctx, c.opts.Shell.Quiet(), nil, argv...)
	if err != nil {
		return false, err
	}
	return hasLine(res.Stdout, c.Name()), nil
}

// Create starts the container with the sandbox policy applied, then
// installs the supervisor and runs the image's startup hook.
func (c *Container) Create(ctx context.Context) error {
	// A stopped container left by a crash would block the name. Without
	// --force a running one, possibly another creator's, stays put.
	_, _ = c.opts.Shell.Quiet().Exec(ctx, nil, c.opts.Docker.Args("rm", "--volumes", c.Name())...)

	args := []string{"run", "--detach", "--interactive", "--init", "--name=" + c.Name()}
	args = append(args, policy.Flags()...)
	args = append(args,
		"--user=root",
		"--volume="+identity.SandboxesRoot,
		c.opts.Image,
		"sh", "-c", "sleep "+c.opts.KeepAlive)
	if _, err := shell.AssertExec(ctx, c.opts.Shell, nil, c.opts.Docker.Args(args...)...); err != nil {
		return &NotStartedError{Err: fmt.Errorf("starting container %s: %w", c.Name(), err)}
	}
	c.opts.Log.WithField("policy", policy.Describe()).Info("container started")

	if err := c.copySupervisor(ctx); err != nil {
		return err
	}
	if _, err := shell.AssertExec(ctx, c.opts.Shell, nil, c.Shell("root", false, startupHookScript())...); err != nil {
		return fmt.Errorf("running startup hook: %w", err)
	}
	return nil
}

// Destroy removes the container and its anonymous volumes. Every avatar
// process inside goes with it.
func (c *Container) Destroy(ctx context.Context) error {
	argv := c.opts.Docker.Args("rm", "--force", "--volumes", c.Name())
	if _, err := shell.AssertExec(ctx, c.opts.Shell, nil, argv...); err != nil {
		return fmt.Errorf("removing container %s: %w", c.Name(), err)
	}
	c.opts.Log.Info("container removed")
	return nil
}

func (c *Container) Shell(user string, interactive bool, script string) []string {
	return c.Exec(user, interactive, "sh", "-c", script)
}

func (c *Container) Exec(user string, interactive bool, argv ...string) []string {
	args := []string{"exec"}
	if interactive {
		args = append(args, "--interactive")
	}
	if user != "" {
		args = append(args, "--user="+user)
	}
	args = append(args, c.Name())
	args = append(args, argv...)
	return c.opts.Docker.Args(args...)
}

// copySupervisor stages the supervisor on the host and docker cp's it in.
func (c *Container) copySupervisor(ctx context.Context) error {
	staged := filepath.Join(c.opts.StagingDir, "katarunner-"+c.opts.KataID, supervisorName)
	if err := c.opts.Disk.Write(staged, SupervisorScript); err != nil {
		return fmt.Errorf("staging supervisor: %w", err)
	}
	defer os.RemoveAll(filepath.Dir(staged))

	cp := c.opts.Docker.Args("cp", staged, c.Name()+":"+ContainerSupervisor)
	if _, err := shell.AssertExec(ctx, c.opts.Shell, nil, cp...); err != nil {
		return fmt.Errorf("copying supervisor: %w", err)
	}
	chmod := c.Exec("root", false, "chmod", "755", ContainerSupervisor)
	if _, err := shell.AssertExec(ctx, c.opts.Shell, nil, chmod...); err != nil {
		return fmt.Errorf("installing supervisor: %w", err)
	}
	return nil
}

// installSupervisor streams the embedded supervisor into b as root.
func installSupervisor(ctx context.Context, b Backend, opts Options) error {
	p := b.SupervisorPath()
	script := fmt.Sprintf("mkdir -p %s && cat > %s && chmod 755 %s",
		shell.Quote(path.Dir(p)), shell.Quote(p), shell.Quote(p))
	argv := b.Shell("root", true, script)
	if _, err := shell.AssertExec(ctx, opts.Shell, bytes.NewReader(SupervisorScript), argv...); err != nil {
		return fmt.Errorf("installing supervisor: %w", err)
	}
	opts.Log.WithField("path", p).Debug("supervisor installed")
	return nil
}

func hasLine(out, want string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimPrefix(strings.TrimSpace(line), "/") == want {
			return true
		}
	}
	return false
}
