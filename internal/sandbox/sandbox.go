package sandbox

import (
	"strings"

	"github.com/zpdzap/katarunner/internal/identity"
)

// Kind selects how a kata's sandbox is realised.
type Kind string

const (
	// KindContainer keeps one long-lived container per kata; every
	// avatar's run is a docker exec into it.
	KindContainer Kind = "container"

	// KindVolume keeps one volume per kata; every command is a fresh
	// --rm container with the volume mounted.
	KindVolume Kind = "volume"
)

// Name prefixes. Leaked sandboxes can be found by prefix alone.
const (
	ContainerPrefix = "cyber_dojo_kata_container_runner_"
	VolumePrefix    = "cyber_dojo_kata_volume_runner_"
)

// SharedProcessTag is the image tag that selects KindContainer.
const SharedProcessTag = "shared_process"

// KindForImage chooses the strategy from the image tag. Untagged images
// and every other tag use volumes.
func KindForImage(image identity.ImageName) Kind {
	if image.Tag == SharedProcessTag {
		return KindContainer
	}
	return KindVolume
}

// Status represents the current state of a sandbox.
type Status string

const (
	StatusCreating Status = "creating"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusPresent  Status = "present"
	StatusError    Status = "error"
)

// Sandbox describes one kata sandbox found on the host.
type Sandbox struct {
	Name   string `json:"name"`
	KataID string `json:"kata_id"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
}

// NameFor returns the external name of kataID's sandbox.
func NameFor(kind Kind, kataID string) string {
	if kind == KindContainer {
		return ContainerPrefix + kataID
	}
	return VolumePrefix + kataID
}

// ParseName recognises a sandbox name and returns its kind and kata id.
func ParseName(name string) (Kind, string, bool) {
	name = strings.TrimPrefix(name, "/")
	for kind, prefix := range map[Kind]string{
		KindContainer: ContainerPrefix,
		KindVolume:    VolumePrefix,
	} {
		if id, ok := strings.CutPrefix(name, prefix); ok && identity.ValidKataID(id) {
			return kind, id, true
		}
	}
	return "", "", false
}
