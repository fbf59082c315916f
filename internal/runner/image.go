package runner

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/shell"
)

// untagged is how docker lists dangling images.
const untagged = "<none>"

// ImagePulled reports whether the image's repository is present locally.
func (r *KataRunner) ImagePulled(ctx context.Context) (bool, error) {
	argv := r.deps.Docker.Args("images", "--format", "{{.Repository}}")
	res, err := shell.AssertExec(ctx, r.deps.Shell.Quiet(), nil, argv...)
	if err != nil {
		return false, fmt.Errorf("listing images: %w", err)
	}
	return slices.Contains(repositories(res.Stdout), r.image.Repository), nil
}

// ImagePull pulls the image. It returns false if the registry does not
// know it and image_name:invalid for any other failure.
func (r *KataRunner) ImagePull(ctx context.Context) (bool, error) {
	argv := r.deps.Docker.Args("pull", r.image.String())
	res, err := r.deps.Shell.Quiet().Exec(ctx, nil, argv...)
	if err != nil {
		return false, fmt.Errorf("pulling image: %w", err)
	}
	if res.Status == shell.Success {
		r.log.Info("image pulled")
		return true, nil
	}
	if notFound(res.Stderr) {
		return false, nil
	}
	r.log.WithField("stderr", strings.TrimSpace(res.Stderr)).Warn("image pull failed")
	return false, identity.Bad(identity.FieldImageName, identity.Invalid)
}

func repositories(out string) []string {
	var names []string
	for _, name := range strings.Fields(out) {
		if name != untagged && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

// notFound matches the wording docker versions use for unknown images.
func notFound(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "not found") || strings.Contains(s, "not exist")
}
