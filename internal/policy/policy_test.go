package policy

import (
	"reflect"
	"strings"
	"testing"

	units "github.com/docker/go-units"
)

func TestFlagsAreFixed(t *testing.T) {
	if !reflect.DeepEqual(Flags(), Flags()) {
		t.Fatal("Flags() differs between calls")
	}
}

func TestFlagsContent(t *testing.T) {
	joined := strings.Join(Flags(), " ")
	for _, want := range []string{
		"--net=none",
		"--pids-limit=128",
		"--security-opt=no-new-privileges",
		"--memory=536870912",
		"--ulimit core=0:0",
		"--ulimit nproc=128:128",
		"--ulimit nofile=256:256",
		"--ulimit fsize=16777216:16777216",
		"--ulimit stack=8388608:8388608",
		"--ulimit data=4294967296:4294967296",
		"--ulimit locks=128:128",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("Flags() missing %q in %q", want, joined)
		}
	}
	if strings.Contains(joined, "cpu") {
		t.Errorf("Flags() must not bound cpu time: %q", joined)
	}
}

func TestUlimitsParseBack(t *testing.T) {
	for _, u := range Ulimits() {
		parsed, err := units.ParseUlimit(u.String())
		if err != nil {
			t.Fatalf("ParseUlimit(%q): %v", u.String(), err)
		}
		if *parsed != *u {
			t.Errorf("ParseUlimit(%q) = %+v, want %+v", u.String(), parsed, u)
		}
	}
}

func TestDescribe(t *testing.T) {
	got := Describe()
	if !strings.Contains(got, "memory=512MiB") {
		t.Errorf("Describe() = %q", got)
	}
}
