package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/shell"
)

// Inventory finds sandboxes on the host by name prefix. Nothing is
// persisted; docker is the only record.
type Inventory struct {
	Docker shell.Docker
	Shell  shell.Executor
	Log    *logrus.Entry
}

// List returns every kata sandbox, containers first, each sorted by name.
func (inv *Inventory) List(ctx context.Context) ([]*Sandbox, error) {
	ps := inv.Docker.Args("ps", "--all",
		"--filter", "name="+ContainerPrefix,
		"--format", "{{.Names}}\t{{.State}}")
	res, err := shell.AssertExec(ctx, inv.Shell.Quiet(), nil, ps...)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	var containers []*Sandbox
	for _, line := range strings.Split(res.Stdout, "\n") {
		name, state, _ := strings.Cut(strings.TrimSpace(line), "\t")
		kind, id, ok := ParseName(name)
		if !ok || kind != KindContainer {
			continue
		}
		containers = append(containers, &Sandbox{
			Name:   strings.TrimPrefix(name, "/"),
			KataID: id,
			Kind:   kind,
			Status: dockerToStatus(state),
		})
	}

	vols := inv.Docker.Args("volume", "ls",
		"--filter", "name="+VolumePrefix,
		"--format", "{{.Name}}")
	res, err = shell.AssertExec(ctx, inv.Shell.Quiet(), nil, vols...)
	if err != nil {
		return nil, fmt.Errorf("listing volumes: %w", err)
	}
	var volumes []*Sandbox
	for _, name := range fields(res.Stdout) {
		kind, id, ok := ParseName(name)
		if !ok || kind != KindVolume {
			continue
		}
		volumes = append(volumes, &Sandbox{Name: name, KataID: id, Kind: kind, Status: StatusPresent})
	}

	byName := func(s []*Sandbox) {
		sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	}
	byName(containers)
	byName(volumes)
	return append(containers, volumes...), nil
}

// Remove force-removes one sandbox regardless of its state.
func (inv *Inventory) Remove(ctx context.Context, sb *Sandbox) error {
	var argv []string
	if sb.Kind == KindContainer {
		argv = inv.Docker.Args("rm", "--force", "--volumes", sb.Name)
	} else {
		argv = inv.Docker.Args("volume", "rm", "--force", sb.Name)
	}
	if _, err := shell.AssertExec(ctx, inv.Shell, nil, argv...); err != nil {
		return fmt.Errorf("removing %s: %w", sb.Name, err)
	}
	inv.Log.WithFields(logrus.Fields{"component": "sandbox", "name": sb.Name}).Info("sandbox removed")
	return nil
}

// Sweep removes every kata sandbox and returns the names removed. It
// keeps going past failures and reports the first one.
func (inv *Inventory) Sweep(ctx context.Context) ([]string, error) {
	all, err := inv.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	var firstErr error
	for _, sb := range all {
		if err := inv.Remove(ctx, sb); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, sb.Name)
	}
	return removed, firstErr
}

func dockerToStatus(dockerStatus string) Status {
	switch dockerStatus {
	case "running":
		return StatusRunning
	case "exited", "dead", "paused":
		return StatusStopped
	case "created", "restarting":
		return StatusCreating
	default:
		return StatusError
	}
}

func fields(out string) []string {
	return strings.Fields(out)
}
