package config

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

type Detection struct {
	DockerBinary string
	StagingDir   string
}

// Detect inspects the host and returns the docker binary and a writable
// directory for staging files.
func Detect() Detection {
	return Detection{
		DockerBinary: detectDocker(),
		StagingDir:   detectStaging(),
	}
}

// Apply fills fields of cfg that d knows better than the defaults.
func (d Detection) Apply(cfg *Config) {
	if d.DockerBinary != "" {
		cfg.Docker.Binary = d.DockerBinary
	}
	if d.StagingDir != "" {
		cfg.Staging.Dir = d.StagingDir
	}
}

// detectDocker checks PATH first and then well-known install locations.
func detectDocker() string {
	if p, err := exec.LookPath("docker"); err == nil {
		return p
	}
	for _, c := range []string{
		"/usr/local/bin/docker",
		"/usr/bin/docker",
		"/opt/homebrew/bin/docker",
	} {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// detectStaging prefers a memory-backed runtime dir over the temp dir.
func detectStaging() string {
	for _, c := range []string{os.Getenv("XDG_RUNTIME_DIR"), "/dev/shm"} {
		if c == "" {
			continue
		}
		if fi, err := os.Stat(c); err == nil && fi.IsDir() && unix.Access(c, unix.W_OK) == nil {
			return c
		}
	}
	return os.TempDir()
}
