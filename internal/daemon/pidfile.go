// Package daemon records a running loop in a PID file and a status file under
// the project's .hotbundle directory, so a second loop for the same project
// refuses to start and the control commands can report who is listening.
package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultDir is the default directory for daemon files
	DefaultDir = ".hotbundle"
	// PIDFileName is the name of the PID file
	PIDFileName = "run.pid"
	// StatusFileName is the name of the status file
	StatusFileName = "run.status"
)

// Dir returns the path to the daemon directory
func Dir() string {
	dir := os.Getenv("HOTBUNDLE_DAEMON_DIR")
	if dir != "" {
		return dir
	}
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDir
	}
	return filepath.Join(cwd, DefaultDir)
}

// PIDFile returns the path to the PID file
func PIDFile() string {
	return filepath.Join(Dir(), PIDFileName)
}

// StatusFile returns the path to the status file
func StatusFile() string {
	return filepath.Join(Dir(), StatusFileName)
}

func ensureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating daemon directory: %w", err)
	}
	return nil
}

// WritePID writes the PID to the PID file
func WritePID(pid int) error {
	if err := ensureDir(); err != nil {
		return err
	}
	if err := os.WriteFile(PIDFile(), []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	return nil
}

// ReadPID reads the PID from the PID file
func ReadPID() (int, error) {
	data, err := os.ReadFile(PIDFile())
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}
	return pid, nil
}

// RemovePID removes the PID file
func RemovePID() error {
	if err := os.Remove(PIDFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// RunStatus describes the loop that owns the PID file.
type RunStatus struct {
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	SocketPath string    `json:"socket_path,omitempty"`
	Entry      string    `json:"entry,omitempty"`
	Version    string    `json:"version,omitempty"`
}

// WriteStatus writes the status to the status file
func WriteStatus(status *RunStatus) error {
	if err := ensureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	if err := os.WriteFile(StatusFile(), data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return nil
}

// ReadStatus reads the status from the status file
func ReadStatus() (*RunStatus, error) {
	data, err := os.ReadFile(StatusFile())
	if err != nil {
		return nil, fmt.Errorf("reading status file: %w", err)
	}
	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}
	return &status, nil
}

// RemoveStatus removes the status file
func RemoveStatus() error {
	if err := os.Remove(StatusFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing status file: %w", err)
	}
	return nil
}

// IsProcessRunning checks if a process with the given PID is running
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, we need to send signal 0 to check
	return process.Signal(syscall.Signal(0)) == nil
}

// Acquire claims the PID file for the current process and records status.
// It fails when the file names another live process; a stale file is
// replaced. The returned release removes both files.
func Acquire(status RunStatus) (release func(), err error) {
	if pid, err := ReadPID(); err == nil && pid != os.Getpid() && IsProcessRunning(pid) {
		return nil, fmt.Errorf("a run loop is already running with PID %d (%s)", pid, PIDFile())
	}

	status.PID = os.Getpid()
	if status.StartedAt.IsZero() {
		status.StartedAt = time.Now()
	}
	if err := WritePID(status.PID); err != nil {
		return nil, err
	}
	if err := WriteStatus(&status); err != nil {
		_ = RemovePID()
		return nil, err
	}

	return func() {
		_ = RemovePID()
		_ = RemoveStatus()
	}, nil
}

// Current returns the status of the live loop recorded in the daemon
// directory, or nil when there is none.
func Current() *RunStatus {
	pid, err := ReadPID()
	if err != nil || !IsProcessRunning(pid) {
		return nil
	}
	status, err := ReadStatus()
	if err != nil {
		return &RunStatus{PID: pid}
	}
	return status
}
