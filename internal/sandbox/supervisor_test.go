package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/zpdzap/katarunner/internal/execution"
)

// hostSupervisor writes the supervisor to a temp dir with /sandboxes moved
// under it and the kill-everything step replaced by a marker file, so it
// can run on the test host. It returns the script path and the avatar dir.
func hostSupervisor(t *testing.T, avatar, cyberDojo string) (string, string) {
	t.Helper()
	root := t.TempDir()
	script := strings.ReplaceAll(string(SupervisorScript), "/sandboxes", root)
	if !strings.Contains(script, "kill -9 -1") {
		t.Fatal("supervisor has no kill -9 -1 step")
	}
	script = strings.Replace(script, "kill -9 -1", `touch "${HOME}/watchdog.fired"`, 1)

	path := filepath.Join(root, "timeout_cyber_dojo.sh")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(root, avatar)
	if err := os.Mkdir(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cyber-dojo.sh"), []byte(cyberDojo), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, dir
}

func runSupervisor(t *testing.T, path string, maxSeconds string) (execution.Outcome, time.Duration) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	e := execution.New(0, logrus.NewEntry(logger))
	start := time.Now()
	out, err := e.Run(context.Background(), []string{"sh", path, testKata, "lion", maxSeconds}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out, time.Since(start)
}

func TestSupervisorReturnsWhenCyberDojoFinishes(t *testing.T) {
	tests := []struct {
		script     string
		wantStdout string
		wantStatus int
	}{
		{"echo done\n", "done\n", 0},
		{"echo $AVATAR_NAME $KATA_ID; exit 3\n", "lion " + testKata + "\n", 3},
		{"pwd\n", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			path, dir := hostSupervisor(t, "lion", tt.script)
			out, elapsed := runSupervisor(t, path, "8")

			if out.State != execution.StateCompleted {
				t.Fatalf("State = %q, want %q", out.State, execution.StateCompleted)
			}
			if elapsed > 2*time.Second {
				t.Errorf("returned after %v; the watchdog held the output open", elapsed)
			}
			want := tt.wantStdout
			if want == "" {
				want = dir + "\n"
			}
			if out.Stdout != want {
				t.Errorf("Stdout = %q, want %q", out.Stdout, want)
			}
			if out.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", out.Status, tt.wantStatus)
			}
			if _, err := os.Stat(filepath.Join(dir, "watchdog.fired")); err == nil {
				t.Error("watchdog fired for a run that finished in time")
			}
		})
	}
}

func TestSupervisorWatchdogFiresAtMaxSeconds(t *testing.T) {
	path, dir := hostSupervisor(t, "lion", "sleep 3\necho late\n")
	out, _ := runSupervisor(t, path, "1")

	if out.Stdout != "late\n" {
		t.Errorf("Stdout = %q, want %q", out.Stdout, "late\n")
	}
	if _, err := os.Stat(filepath.Join(dir, "watchdog.fired")); err != nil {
		t.Errorf("watchdog did not fire after 1s: %v", err)
	}
}
