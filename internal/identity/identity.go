// Package identity holds the pure naming rules of the runner: kata ids,
// the fixed avatar pool and the uids derived from it, and image names.
package identity

import (
	"fmt"
	"path"
	"strings"
)

const (
	// SandboxesRoot is where avatar directories live inside every sandbox.
	SandboxesRoot = "/sandboxes"

	// SharedDir is writable by every avatar of a kata.
	SharedDir = SandboxesRoot + "/shared"

	// GID is the cyber-dojo group, owner of the shared directory and every
	// avatar's files.
	GID = 5000

	// firstUID is the uid of the first avatar in the pool.
	firstUID = 40000

	kataIDLength = 10
)

var avatarNames = []string{
	"alligator", "antelope", "bat", "bear",
	"bee", "beetle", "buffalo", "butterfly",
	"cheetah", "crab", "deer", "dolphin",
	"eagle", "elephant", "flamingo", "fox",
	"frog", "gopher", "gorilla", "heron",
	"hippo", "hummingbird", "hyena", "jellyfish",
	"kangaroo", "kingfisher", "koala", "leopard",
	"lion", "lizard", "lobster", "moose",
	"mouse", "ostrich", "owl", "panda",
	"parrot", "peacock", "penguin", "porcupine",
	"puffin", "rabbit", "raccoon", "ray",
	"rhino", "salmon", "seal", "shark",
	"skunk", "snake", "spider", "squid",
	"squirrel", "starfish", "swan", "tiger",
	"toucan", "tuna", "turtle", "vulture",
	"walrus", "whale", "wolf", "zebra",
}

var avatarIndex = func() map[string]int {
	m := make(map[string]int, len(avatarNames))
	for i, name := range avatarNames {
		m[name] = i
	}
	return m
}()

// AvatarNames returns a copy of the avatar pool in pool order.
func AvatarNames() []string {
	names := make([]string, len(avatarNames))
	copy(names, avatarNames)
	return names
}

// ValidKataID reports whether id is exactly 10 uppercase hex characters.
func ValidKataID(id string) bool {
	if len(id) != kataIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !('0' <= c && c <= '9') && !('A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// ValidAvatarName reports whether name is in the avatar pool.
func ValidAvatarName(name string) bool {
	_, ok := avatarIndex[name]
	return ok
}

// UID returns 40000 plus the position of name in the pool.
func UID(name string) (int, error) {
	i, ok := avatarIndex[name]
	if !ok {
		return 0, Bad(FieldAvatarName, Invalid)
	}
	return firstUID + i, nil
}

// AvatarDir returns the avatar's directory inside a sandbox.
func AvatarDir(name string) string {
	return SandboxesRoot + "/" + name
}

// Owner returns the "uid:gid" string used for chown and docker --user.
func Owner(name string) (string, error) {
	uid, err := UID(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d", uid, GID), nil
}

// ValidPathedFilename reports whether p is a non-empty relative path that
// stays inside the directory it is resolved against.
func ValidPathedFilename(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.ContainsRune(p, 0) {
		return false
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return false
	}
	return clean == p
}
