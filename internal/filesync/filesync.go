// Package filesync moves an avatar's file changes into its sandbox.
//
// Writes are staged on the host and sent as one gzipped tar stream that is
// unpacked in the avatar's directory. Ownership is set while packing so no
// chown pass runs in the sandbox. Tar headers carry whole-second mtimes, so
// files land with their sub-second part zeroed.
package filesync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	archive "github.com/moby/go-archive"
	"github.com/moby/go-archive/compression"
	"github.com/sirupsen/logrus"
	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/sandbox"
	"github.com/zpdzap/katarunner/internal/shell"
)

// Syncer writes and deletes files in avatar directories of one sandbox.
type Syncer struct {
	backend    sandbox.Backend
	sh         shell.Executor
	disk       shell.Disk
	stagingDir string
	log        *logrus.Entry
}

// New returns a Syncer staging under stagingDir (os.TempDir when empty).
func New(backend sandbox.Backend, sh shell.Executor, disk shell.Disk, stagingDir string, log *logrus.Entry) *Syncer {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Syncer{
		backend:    backend,
		sh:         sh,
		disk:       disk,
		stagingDir: stagingDir,
		log:        log.WithField("component", "filesync"),
	}
}

// Delete removes paths, relative to the avatar's directory, in one
// command run as the avatar. An empty set does nothing.
func (s *Syncer) Delete(ctx context.Context, avatar string, paths []string) error {
	owner, err := identity.Owner(avatar)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	if err := validatePaths(paths); err != nil {
		return err
	}

	dir := identity.AvatarDir(avatar)
	targets := make([]string, len(paths))
	for i, p := range paths {
		targets[i] = dir + "/" + p
	}
	script := "rm -- " + shell.QuoteAll(targets...)
	if _, err := shell.AssertExec(ctx, s.sh, nil, s.backend.Shell(owner, false, script)...); err != nil {
		return fmt.Errorf("deleting files: %w", err)
	}
	s.log.WithFields(logrus.Fields{"avatar": avatar, "count": len(paths)}).Debug("files deleted")
	return nil
}

// Write creates or overwrites files, keyed by path relative to the
// avatar's directory. Sub-directories are created as needed. An empty map
// does nothing.
func (s *Syncer) Write(ctx context.Context, avatar string, files map[string]string) error {
	uid, err := identity.UID(avatar)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if err := validatePaths(paths); err != nil {
		return err
	}

	tmp := filepath.Join(s.stagingDir, "runner-"+uuid.NewString())
	if err := os.MkdirAll(tmp, 0o700); err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	for _, p := range paths {
		if err := s.disk.Write(filepath.Join(tmp, filepath.FromSlash(p)), []byte(files[p])); err != nil {
			return fmt.Errorf("staging %s: %w", p, err)
		}
	}

	tarball, err := archive.TarWithOptions(tmp, &archive.TarOptions{
		Compression: compression.Gzip,
		ChownOpts:   &archive.ChownOpts{UID: uid, GID: identity.GID},
	})
	if err != nil {
		return fmt.Errorf("packing files: %w", err)
	}
	defer tarball.Close()

	owner := fmt.Sprintf("%d:%d", uid, identity.GID)
	script := "cd " + shell.Quote(identity.AvatarDir(avatar)) + " && tar -zxf - -C ."
	if _, err := shell.AssertExec(ctx, s.sh, tarball, s.backend.Shell(owner, true, script)...); err != nil {
		return fmt.Errorf("unpacking files: %w", err)
	}
	s.log.WithFields(logrus.Fields{"avatar": avatar, "count": len(paths)}).Debug("files written")
	return nil
}

// Validate checks every path a Delete or Write would touch, so callers
// can reject a request before changing anything in the sandbox.
func Validate(deleted []string, files map[string]string) error {
	if err := validatePaths(deleted); err != nil {
		return err
	}
	for p := range files {
		if !identity.ValidPathedFilename(p) {
			return identity.Bad(identity.FieldPathedFilename, identity.Invalid)
		}
	}
	return nil
}

func validatePaths(paths []string) error {
	for _, p := range paths {
		if !identity.ValidPathedFilename(p) {
			return identity.Bad(identity.FieldPathedFilename, identity.Invalid)
		}
	}
	return nil
}
