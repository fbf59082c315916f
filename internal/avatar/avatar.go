// Package avatar manages the per-avatar working directories inside a kata's
// sandbox.
package avatar

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/sandbox"
	"github.com/zpdzap/katarunner/internal/shell"
)

// Directories manages avatar directories in one sandbox. Existence is
// probed on disk inside the sandbox; no user accounts are involved.
type Directories struct {
	backend sandbox.Backend
	sh      shell.Executor
	log     *logrus.Entry
}

// New returns Directories for the sandbox behind backend.
func New(backend sandbox.Backend, sh shell.Executor, log *logrus.Entry) *Directories {
	return &Directories{
		backend: backend,
		sh:      sh,
		log:     log.WithField("component", "avatar"),
	}
}

// Exists reports whether name's directory is present.
func (d *Directories) Exists(ctx context.Context, name string) (bool, error) {
	if !identity.ValidAvatarName(name) {
		return false, identity.Bad(identity.FieldAvatarName, identity.Invalid)
	}
	probe := "[ -d " + shell.Quote(identity.AvatarDir(name)) + " ]"
	res, err := d.sh.Quiet().Exec(ctx, nil, d.backend.Shell("root", false, probe)...)
	if err != nil {
		return false, err
	}
	return res.Status == shell.Success, nil
}

// AssertExists fails with avatar_name:!exists unless name's directory is
// present.
func (d *Directories) AssertExists(ctx context.Context, name string) error {
	ok, err := d.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return identity.Bad(identity.FieldAvatarName, identity.NotExists)
	}
	return nil
}

// EnsureShared creates the shared directory, group-owned and group
// writable. Running it again, or racing another first avatar, is harmless.
func (d *Directories) EnsureShared(ctx context.Context) error {
	dir := shell.Quote(identity.SharedDir)
	script := fmt.Sprintf("mkdir -p -m 775 %s && chown root:%d %s && chmod 775 %s",
		dir, identity.GID, dir, dir)
	if _, err := shell.AssertExec(ctx, d.sh, nil, d.backend.Shell("root", false, script)...); err != nil {
		return fmt.Errorf("creating shared dir: %w", err)
	}
	return nil
}

// Create makes name's directory, owner-only and owned by the avatar's
// uid. It fails with avatar_name:exists if the directory is there.
func (d *Directories) Create(ctx context.Context, name string) error {
	uid, err := identity.UID(name)
	if err != nil {
		return err
	}
	ok, err := d.Exists(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return identity.Bad(identity.FieldAvatarName, identity.Exists)
	}
	if err := d.EnsureShared(ctx); err != nil {
		return err
	}

	dir := shell.Quote(identity.AvatarDir(name))
	script := "mkdir -m 700 " + dir +
		" && chown " + strconv.Itoa(uid) + ":" + strconv.Itoa(identity.GID) + " " + dir
	if _, err := shell.AssertExec(ctx, d.sh, nil, d.backend.Shell("root", false, script)...); err != nil {
		return fmt.Errorf("creating avatar dir: %w", err)
	}
	d.log.WithFields(logrus.Fields{"avatar": name, "uid": uid}).Info("avatar created")
	return nil
}

// Destroy removes name's directory and everything in it. It fails with
// avatar_name:!exists if the directory is not there.
func (d *Directories) Destroy(ctx context.Context, name string) error {
	if err := d.AssertExists(ctx, name); err != nil {
		return err
	}
	script := "rm -rf " + shell.Quote(identity.AvatarDir(name))
	if _, err := shell.AssertExec(ctx, d.sh, nil, d.backend.Shell("root", false, script)...); err != nil {
		return fmt.Errorf("removing avatar dir: %w", err)
	}
	d.log.WithField("avatar", name).Info("avatar removed")
	return nil
}
