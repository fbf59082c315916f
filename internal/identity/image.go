package identity

import (
	"regexp"
	"strings"
)

var (
	componentPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*$`)
	hostPattern      = regexp.MustCompile(`^[a-z0-9]+(?:[.-][a-z0-9]+)*(?::[0-9]+)?$`)
	tagPattern       = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)
)

// ImageName is a parsed [registry/][namespace/]repo[:tag] reference.
type ImageName struct {
	Repository string
	Tag        string
}

// String renders the reference back in its canonical form.
func (n ImageName) String() string {
	if n.Tag == "" {
		return n.Repository
	}
	return n.Repository + ":" + n.Tag
}

// ParseImageName splits and validates name. Components are lowercase and
// may be joined by single '.', '_' or '-' separators; no component may begin
// or end with a separator.
func ParseImageName(name string) (ImageName, error) {
	repo, tag := name, ""
	if i := strings.LastIndex(name, ":"); i > strings.LastIndex(name, "/") {
		repo, tag = name[:i], name[i+1:]
		if !tagPattern.MatchString(tag) {
			return ImageName{}, Bad(FieldImageName, Invalid)
		}
	}
	if repo == "" {
		return ImageName{}, Bad(FieldImageName, Invalid)
	}

	parts := strings.Split(repo, "/")
	for i, part := range parts {
		if i == 0 && len(parts) > 1 && isRegistryHost(part) {
			if !hostPattern.MatchString(part) {
				return ImageName{}, Bad(FieldImageName, Invalid)
			}
			continue
		}
		if !componentPattern.MatchString(part) {
			return ImageName{}, Bad(FieldImageName, Invalid)
		}
	}
	return ImageName{Repository: repo, Tag: tag}, nil
}

// ValidImageName reports whether name parses.
func ValidImageName(name string) bool {
	_, err := ParseImageName(name)
	return err == nil
}

func isRegistryHost(part string) bool {
	return part == "localhost" || strings.ContainsAny(part, ".:")
}
