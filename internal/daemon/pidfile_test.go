package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv("HOTBUNDLE_DAEMON_DIR", "")
	cwd, _ := os.Getwd()
	expected := filepath.Join(cwd, DefaultDir)

	if result := Dir(); result != expected {
		t.Errorf("Expected %q, got %q", expected, result)
	}
}

func TestDirWithEnv(t *testing.T) {
	testDir := t.TempDir()
	t.Setenv("HOTBUNDLE_DAEMON_DIR", testDir)

	if result := Dir(); result != testDir {
		t.Errorf("Expected %q, got %q", testDir, result)
	}
	if PIDFile() != filepath.Join(testDir, PIDFileName) {
		t.Errorf("Unexpected PID file path %q", PIDFile())
	}
}

func TestPIDRoundTrip(t *testing.T) {
	t.Setenv("HOTBUNDLE_DAEMON_DIR", filepath.Join(t.TempDir(), "nested"))

	if _, err := ReadPID(); err == nil {
		t.Error("Expected error reading missing PID file")
	}
	if err := WritePID(4242); err != nil {
		t.Fatalf("WritePID failed: %v", err)
	}
	pid, err := ReadPID()
	if err != nil {
		t.Fatalf("ReadPID failed: %v", err)
	}
	if pid != 4242 {
		t.Errorf("Expected PID 4242, got %d", pid)
	}
	if err := RemovePID(); err != nil {
		t.Errorf("RemovePID failed: %v", err)
	}
	if err := RemovePID(); err != nil {
		t.Errorf("RemovePID on missing file should succeed, got %v", err)
	}
}

func TestReadPIDInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOTBUNDLE_DAEMON_DIR", dir)

	if err := os.WriteFile(filepath.Join(dir, PIDFileName), []byte("not-a-pid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(); err == nil {
		t.Error("Expected parse error")
	}
}

func TestIsProcessRunning(t *testing.T) {
	if !IsProcessRunning(os.Getpid()) {
		t.Error("Current process should be running")
	}
	if IsProcessRunning(0) || IsProcessRunning(-1) {
		t.Error("Non-positive PIDs are never running")
	}
}

func TestAcquireAndRelease(t *testing.T) {
	t.Setenv("HOTBUNDLE_DAEMON_DIR", t.TempDir())

	release, err := Acquire(RunStatus{SocketPath: "/tmp/x.sock", Entry: "hot-reload.ts"})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	current := Current()
	if current == nil {
		t.Fatal("Expected current status")
	}
	if current.PID != os.Getpid() || current.SocketPath != "/tmp/x.sock" || current.Entry != "hot-reload.ts" {
		t.Errorf("Unexpected status %+v", current)
	}
	if current.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	// the owning process may acquire again
	if _, err := Acquire(RunStatus{}); err != nil {
		t.Errorf("Re-acquire by owner failed: %v", err)
	}

	release()
	if Current() != nil {
		t.Error("Expected no current status after release")
	}
	if _, err := os.Stat(StatusFile()); !os.IsNotExist(err) {
		t.Error("Status file should be removed")
	}
}

func TestAcquireReplacesStalePID(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOTBUNDLE_DAEMON_DIR", dir)

	// PIDs this large are not allocated on Linux
	stale := strconv.Itoa(1 << 30)
	if err := os.WriteFile(filepath.Join(dir, PIDFileName), []byte(stale), 0644); err != nil {
		t.Fatal(err)
	}

	release, err := Acquire(RunStatus{})
	if err != nil {
		t.Fatalf("Acquire over stale PID failed: %v", err)
	}
	defer release()

	pid, _ := ReadPID()
	if pid != os.Getpid() {
		t.Errorf("Expected PID file to hold %d, got %d", os.Getpid(), pid)
	}
}

func TestAcquireRefusesLiveProcess(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOTBUNDLE_DAEMON_DIR", dir)

	// the parent process is alive for the duration of the test
	ppid := os.Getppid()
	if ppid <= 1 {
		t.Skip("no usable parent process")
	}
	if err := os.WriteFile(filepath.Join(dir, PIDFileName), []byte(strconv.Itoa(ppid)), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Acquire(RunStatus{}); err == nil {
		t.Error("Expected Acquire to fail while another process holds the PID file")
	}
}
