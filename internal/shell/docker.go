package shell

import "strings"

// Docker builds argv slices for the docker CLI.
type Docker struct {
	Bin string
}

// NewDocker returns a Docker running bin, or "docker" from PATH when bin
// is empty.
func NewDocker(bin string) Docker {
	if bin == "" {
		bin = "docker"
	}
	return Docker{Bin: bin}
}

// Args returns the docker binary followed by args.
func (d Docker) Args(args ...string) []string {
	return append([]string{d.Bin}, args...)
}

// Quote single-quotes s for sh.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteAll quotes each of ss and joins them with spaces.
func QuoteAll(ss ...string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = Quote(s)
	}
	return strings.Join(quoted, " ")
}
