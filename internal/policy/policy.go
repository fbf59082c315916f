// Package policy defines the fixed isolation applied to every sandbox.
//
// There is deliberately no cpu ulimit. An RLIMIT_CPU is accounted per
// process, not per core, so on hyperthreaded hosts it kills programs
// well before the wall clock says they should stop. The run deadline is
// the only time bound.
package policy

import (
	"fmt"

	units "github.com/docker/go-units"
)

const (
	// Processes bounds fork bombs, both as a pids cgroup limit and nproc.
	Processes = 128

	// Files is the open file descriptor ceiling.
	Files = 256

	// Locks is the file lock ceiling.
	Locks = 128

	FileSize    = 16 * units.MiB
	DataSegment = 4 * units.GiB
	Stack       = 8 * units.MiB
	Memory      = 512 * units.MiB
)

// Ulimits returns the per-process limits, in the order they are passed to
// docker.
func Ulimits() []*units.Ulimit {
	return []*units.Ulimit{
		{Name: "core", Soft: 0, Hard: 0},
		{Name: "data", Soft: DataSegment, Hard: DataSegment},
		{Name: "fsize", Soft: FileSize, Hard: FileSize},
		{Name: "locks", Soft: Locks, Hard: Locks},
		{Name: "nofile", Soft: Files, Hard: Files},
		{Name: "nproc", Soft: Processes, Hard: Processes},
		{Name: "stack", Soft: Stack, Hard: Stack},
	}
}

// Flags returns the docker run flags for the policy. The result is the
// same on every call.
func Flags() []string {
	flags := []string{
		"--net=none",
		fmt.Sprintf("--pids-limit=%d", Processes),
		"--security-opt=no-new-privileges",
		fmt.Sprintf("--memory=%d", Memory),
		fmt.Sprintf("--memory-swap=%d", Memory),
	}
	for _, u := range Ulimits() {
		flags = append(flags, "--ulimit", u.String())
	}
	return flags
}

// Describe renders the policy for log lines, e.g. "memory=512MiB fsize=16MiB".
func Describe() string {
	return fmt.Sprintf("net=none pids=%d memory=%s fsize=%s data=%s stack=%s nofile=%d",
		Processes,
		units.BytesSize(float64(Memory)),
		units.BytesSize(float64(FileSize)),
		units.BytesSize(float64(DataSegment)),
		units.BytesSize(float64(Stack)),
		Files,
	)
}
