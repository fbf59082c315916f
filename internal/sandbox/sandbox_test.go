package sandbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/zpdzap/katarunner/internal/identity"
	"github.com/zpdzap/katarunner/internal/shell"
	"github.com/zpdzap/katarunner/internal/shell/shelltest"
)

const testKata = "0123456789"

func testOptions(fake *shelltest.Executor) Options {
	logger, _ := test.NewNullLogger()
	return Options{
		Docker: shell.Docker{Bin: "docker"},
		Shell:  fake,
		Image:  "cyberdojofoundation/gcc_assert:shared_process",
		KataID: testKata,
		Log:    logrus.NewEntry(logger),
	}
}

func TestKindForImage(t *testing.T) {
	tests := []struct {
		image string
		want  Kind
	}{
		{"cyberdojofoundation/gcc_assert", KindVolume},
		{"cyberdojofoundation/gcc_assert:shared_disk", KindVolume},
		{"cyberdojofoundation/gcc_assert:shared_process", KindContainer},
		{"localhost:5000/gcc_assert:1.2", KindVolume},
	}
	for _, tt := range tests {
		img, err := identity.ParseImageName(tt.image)
		if err != nil {
			t.Fatalf("ParseImageName(%q): %v", tt.image, err)
		}
		if got := KindForImage(img); got != tt.want {
			t.Errorf("KindForImage(%q) = %q, want %q", tt.image, got, tt.want)
		}
	}
}

func TestNameRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindContainer, KindVolume} {
		name := NameFor(kind, testKata)
		gotKind, gotID, ok := ParseName(name)
		if !ok || gotKind != kind || gotID != testKata {
			t.Errorf("ParseName(%q) = %q, %q, %v", name, gotKind, gotID, ok)
		}
	}
	if NameFor(KindContainer, testKata) != "cyber_dojo_kata_container_runner_0123456789" {
		t.Errorf("container name = %q", NameFor(KindContainer, testKata))
	}
	if NameFor(KindVolume, testKata) != "cyber_dojo_kata_volume_runner_0123456789" {
		t.Errorf("volume name = %q", NameFor(KindVolume, testKata))
	}
	for _, bad := range []string{"", "sc-foo", ContainerPrefix + "xyz", VolumePrefix + "01234567890"} {
		if _, _, ok := ParseName(bad); ok {
			t.Errorf("ParseName(%q) accepted", bad)
		}
	}
}

func TestContainerCommands(t *testing.T) {
	b := New(KindContainer, testOptions(&shelltest.Executor{}))
	got := strings.Join(b.Shell("40000:5000", true, "ls"), " ")
	want := "docker exec --interactive --user=40000:5000 cyber_dojo_kata_container_runner_0123456789 sh -c ls"
	if got != want {
		t.Errorf("Shell = %q, want %q", got, want)
	}
	if b.SupervisorPath() != "/usr/local/bin/timeout_cyber_dojo.sh" {
		t.Errorf("SupervisorPath = %q", b.SupervisorPath())
	}
}

func TestVolumeCommands(t *testing.T) {
	b := New(KindVolume, testOptions(&shelltest.Executor{}))
	got := strings.Join(b.Exec("40001:5000", false, "true"), " ")
	for _, part := range []string{
		"docker run --rm --init",
		"--label=katarunner.sandbox=cyber_dojo_kata_volume_runner_0123456789",
		"--net=none",
		"--user=40001:5000",
		"--volume=cyber_dojo_kata_volume_runner_0123456789:/sandboxes:rw",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("Exec = %q, missing %q", got, part)
		}
	}
	if !strings.HasSuffix(got, "cyberdojofoundation/gcc_assert:shared_process true") {
		t.Errorf("Exec = %q, want image then argv", got)
	}
	if strings.Contains(got, "--interactive") {
		t.Errorf("Exec = %q, want no --interactive", got)
	}
	if b.SupervisorPath() != "/sandboxes/.bin/timeout_cyber_dojo.sh" {
		t.Errorf("SupervisorPath = %q", b.SupervisorPath())
	}
}

func TestContainerCreate(t *testing.T) {
	fake := &shelltest.Executor{}
	b := New(KindContainer, testOptions(fake))
	if err := b.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	run, ok := fake.Find("docker run --detach")
	if !ok {
		t.Fatal("no docker run")
	}
	for _, part := range []string{"--init", "--name=" + b.Name(), "--net=none", "--pids-limit=128", "--user=root", "sleep 3h"} {
		if !strings.Contains(run.String(), part) {
			t.Errorf("docker run missing %q: %s", part, run)
		}
	}
	if _, ok := fake.Find("docker cp", "timeout_cyber_dojo.sh", b.Name()+":/usr/local/bin/timeout_cyber_dojo.sh"); !ok {
		t.Error("supervisor not copied in")
	}
	if _, ok := fake.Find("docker exec --user=root", "chmod 755 /usr/local/bin/timeout_cyber_dojo.sh"); !ok {
		t.Error("supervisor not made executable")
	}
	if _, ok := fake.Find(StartupHook); !ok {
		t.Error("startup hook not run")
	}
}

func TestVolumeCreateAndDestroy(t *testing.T) {
	fake := &shelltest.Executor{
		Handler: func(argv []string, _ []byte) (shell.Result, error) {
			if strings.Join(argv, " ") == "docker ps --all --quiet --filter label=katarunner.sandbox=cyber_dojo_kata_volume_runner_0123456789" {
				return shell.Result{Stdout: "abc\ndef\n"}, nil
			}
			return shell.Result{}, nil
		},
	}
	b := New(KindVolume, testOptions(fake))
	if err := b.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := fake.Find("docker volume create " + b.Name()); !ok {
		t.Error("volume not created")
	}
	install, ok := fake.Find("docker run --rm --interactive", "/sandboxes/.bin/timeout_cyber_dojo.sh")
	if !ok {
		t.Fatal("supervisor not installed onto volume")
	}
	if string(install.Stdin) != string(SupervisorScript) {
		t.Errorf("supervisor stdin = %d bytes, want %d", len(install.Stdin), len(SupervisorScript))
	}

	if err := b.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if fake.Count("docker rm --force") != 2 {
		t.Errorf("removed %d labelled containers, want 2", fake.Count("docker rm --force"))
	}
	if _, ok := fake.Find("docker volume rm --force " + b.Name()); !ok {
		t.Error("volume not removed")
	}
}

// presence simulates docker for one sandbox name.
type presence struct {
	name    string
	exists  atomic.Bool
	creates atomic.Int32
}

func (p *presence) handle(argv []string, _ []byte) (shell.Result, error) {
	cmd := strings.Join(argv, " ")
	switch {
	case strings.Contains(cmd, "volume ls"), strings.Contains(cmd, "ps --all --filter status=running"):
		if p.exists.Load() {
			return shell.Result{Stdout: p.name + "\n"}, nil
		}
		return shell.Result{}, nil
	case strings.Contains(cmd, "volume create"), strings.Contains(cmd, "run --detach"):
		p.creates.Add(1)
		p.exists.Store(true)
	case strings.Contains(cmd, "volume rm"), strings.Contains(cmd, "rm --force --volumes"):
		p.exists.Store(false)
	}
	return shell.Result{}, nil
}

func TestManagerPreconditions(t *testing.T) {
	for _, kind := range []Kind{KindContainer, KindVolume} {
		t.Run(string(kind), func(t *testing.T) {
			p := &presence{name: NameFor(kind, testKata)}
			m := NewManager(New(kind, testOptions(&shelltest.Executor{Handler: p.handle})))
			ctx := context.Background()

			if err := m.Destroy(ctx); !identity.IsBad(err, identity.FieldKataID, identity.NotExists) {
				t.Errorf("Destroy before Create = %v, want kata_id:!exists", err)
			}
			if err := m.AssertExists(ctx); !identity.IsBad(err, identity.FieldKataID, identity.NotExists) {
				t.Errorf("AssertExists = %v, want kata_id:!exists", err)
			}
			if err := m.Create(ctx); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if ok, _ := m.Exists(ctx); !ok {
				t.Error("Exists = false after Create")
			}
			if err := m.Create(ctx); !identity.IsBad(err, identity.FieldKataID, identity.Exists) {
				t.Errorf("second Create = %v, want kata_id:exists", err)
			}
			if err := m.Destroy(ctx); err != nil {
				t.Fatalf("Destroy: %v", err)
			}
			if ok, _ := m.Exists(ctx); ok {
				t.Error("Exists = true after Destroy")
			}
		})
	}
}

func TestManagerConcurrentCreate(t *testing.T) {
	p := &presence{name: NameFor(KindVolume, testKata)}
	fake := &shelltest.Executor{Handler: p.handle}

	const n = 8
	var wg sync.WaitGroup
	var exists atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := NewManager(New(KindVolume, testOptions(fake)))
			err := m.Create(context.Background())
			if identity.IsBad(err, identity.FieldKataID, identity.Exists) {
				exists.Add(1)
			} else if err != nil {
				t.Errorf("Create: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := p.creates.Load(); got != 1 {
		t.Errorf("volume created %d times, want 1", got)
	}
	if got := exists.Load(); got != n-1 {
		t.Errorf("%d callers saw kata_id:exists, want %d", got, n-1)
	}
	if locks.size() != 0 {
		t.Errorf("lock table holds %d keys after use", locks.size())
	}
}

func TestManagerCreateRollsBack(t *testing.T) {
	p := &presence{name: NameFor(KindVolume, testKata)}
	fake := &shelltest.Executor{
		Handler: func(argv []string, stdin []byte) (shell.Result, error) {
			if strings.Contains(strings.Join(argv, " "), StartupHook) {
				return shell.Result{Status: 3, Stderr: "hook failed"}, nil
			}
			return p.handle(argv, stdin)
		},
	}
	m := NewManager(New(KindVolume, testOptions(fake)))
	err := m.Create(context.Background())
	var execErr *shell.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("Create = %v, want ExecError", err)
	}
	if p.exists.Load() {
		t.Error("volume left behind after failed Create")
	}
}

func TestInventoryListAndSweep(t *testing.T) {
	fake := &shelltest.Executor{
		Handler: func(argv []string, _ []byte) (shell.Result, error) {
			cmd := strings.Join(argv, " ")
			switch {
			case strings.HasPrefix(cmd, "docker ps"):
				return shell.Result{Stdout: "cyber_dojo_kata_container_runner_BBBBBBBBBB\texited\n" +
					"cyber_dojo_kata_container_runner_AAAAAAAAAA\trunning\n" +
					"unrelated\trunning\n"}, nil
			case strings.HasPrefix(cmd, "docker volume ls"):
				return shell.Result{Stdout: "cyber_dojo_kata_volume_runner_CCCCCCCCCC\n"}, nil
			}
			return shell.Result{}, nil
		},
	}
	logger, _ := test.NewNullLogger()
	inv := &Inventory{Docker: shell.Docker{Bin: "docker"}, Shell: fake, Log: logrus.NewEntry(logger)}

	all, err := inv.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d sandboxes, want 3", len(all))
	}
	want := []struct {
		id     string
		kind   Kind
		status Status
	}{
		{"AAAAAAAAAA", KindContainer, StatusRunning},
		{"BBBBBBBBBB", KindContainer, StatusStopped},
		{"CCCCCCCCCC", KindVolume, StatusPresent},
	}
	for i, w := range want {
		if all[i].KataID != w.id || all[i].Kind != w.kind || all[i].Status != w.status {
			t.Errorf("List[%d] = %+v, want %+v", i, *all[i], w)
		}
	}

	removed, err := inv.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(removed) != 3 {
		t.Errorf("Sweep removed %v, want 3", removed)
	}
	if _, ok := fake.Find("docker volume rm --force cyber_dojo_kata_volume_runner_CCCCCCCCCC"); !ok {
		t.Error("volume not swept")
	}
}

func TestManagerCreateLeavesOthersSandbox(t *testing.T) {
	for _, kind := range []Kind{KindContainer, KindVolume} {
		t.Run(string(kind), func(t *testing.T) {
			// Another process creates the sandbox between our check and start.
			p := &presence{name: NameFor(kind, testKata)}
			fake := &shelltest.Executor{
				Handler: func(argv []string, stdin []byte) (shell.Result, error) {
					cmd := strings.Join(argv, " ")
					if strings.Contains(cmd, "volume create") || strings.Contains(cmd, "run --detach") {
						p.exists.Store(true)
						return shell.Result{Status: 125, Stderr: "Conflict. The name is already in use"}, nil
					}
					return p.handle(argv, stdin)
				},
			}
			m := NewManager(New(kind, testOptions(fake)))

			err := m.Create(context.Background())
			var notStarted *NotStartedError
			if !errors.As(err, &notStarted) {
				t.Fatalf("Create = %v, want NotStartedError", err)
			}
			if !p.exists.Load() {
				t.Error("rollback removed a sandbox this call did not start")
			}
			if fake.Count("rm --force") != 0 {
				t.Errorf("force removals = %d, want 0", fake.Count("rm --force"))
			}
		})
	}
}

func TestContainerCreateKeepsRunningNamesake(t *testing.T) {
	fake := &shelltest.Executor{}
	b := New(KindContainer, testOptions(fake))
	if err := b.Create(context.Background()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	stale, ok := fake.Find("docker rm --volumes " + b.Name())
	if !ok {
		t.Fatal("stale container not removed before run")
	}
	if strings.Contains(stale.String(), "--force") {
		t.Errorf("stale removal = %q, want no --force", stale)
	}
}
