package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func readPID(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading PID file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("invalid PID in file: %q", data)
	}
	return pid
}

func TestNewClaimsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	pf, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pf.Remove()

	if got := readPID(t, path); got != os.Getpid() {
		t.Errorf("PID file has %d, want %d", got, os.Getpid())
	}
}

func TestSecondInstanceRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")

	pf, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pf.Remove()

	_, err = New(path)
	if err == nil {
		t.Fatal("second claim should fail while the first holds the file")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("error = %v, want mention of running instance", err)
	}
}

func TestStaleClaimReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte("99999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	pf, err := New(path)
	if err != nil {
		t.Fatalf("New over stale file: %v", err)
	}
	defer pf.Remove()

	if got := readPID(t, path); got != os.Getpid() {
		t.Errorf("PID file has %d, want %d", got, os.Getpid())
	}
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("PID file should be gone after Remove")
	}
}

func TestRemoveLeavesForeignClaim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	other := os.Getpid() + 1
	if err := os.WriteFile(path, []byte(strconv.Itoa(other)+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := readPID(t, path); got != other {
		t.Errorf("foreign claim disturbed: PID file has %d, want %d", got, other)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	want := filepath.Join("/home/tester", ".cache", "plates", "plates-speechd.pid")
	if got := Path("plates-speechd"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if processAlive(99999) {
		t.Error("PID 99999 should not be alive")
	}
}
