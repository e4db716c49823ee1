// Package pidpath manages a PID file that marks which process is serving so
// that later invocations can tell whether to talk to it instead.
package pidpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// UnknownPID indicates no live process was found for the file.
const UnknownPID = -1

// RunningError is returned when another live process owns the file.
type RunningError struct {
	Pid int
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("another process is already running: %d", e.Pid)
}

// PidPath tracks one PID file. Lookups are cached for a short while.
type PidPath struct {
	path      string
	perm      fs.FileMode
	checkedAt time.Time
	pid       int
}

const recheckAfter = time.Second

// New manages the PID file at pathname, creating it with perm when claimed.
func New(pathname string, perm fs.FileMode) *PidPath {
	return &PidPath{path: pathname, perm: perm, pid: UnknownPID}
}

// Path returns the file's pathname.
func (pp *PidPath) Path() string {
	return pp.path
}

func (pp *PidPath) String() string {
	owner := "other"
	if pp.IsOurs() {
		owner = "ours"
	}
	return fmt.Sprintf("%s %s=%d", pp.path, owner, pp.Getpid())
}

// Claim records the current process in the file unless another live process
// already owns it, in which case a *RunningError is returned.
func (pp *PidPath) Claim() error {
	err := pp.refresh()
	if err != nil {
		return err
	}

	if pp.pid != UnknownPID && pp.pid != os.Getpid() {
		return &RunningError{Pid: pp.pid}
	}

	pid := os.Getpid()
	err = os.WriteFile(pp.path, []byte(strconv.Itoa(pid)), pp.perm)
	if err != nil {
		return fmt.Errorf("unable to write to %s: %w", pp.path, err)
	}

	// only ours once the write succeeded
	pp.pid = pid
	pp.checkedAt = time.Now()
	return nil
}

// IsRunning reports whether a live process owns the file.
func (pp *PidPath) IsRunning() bool {
	return pp.Getpid() != UnknownPID
}

// IsOurs reports whether the caller's process owns the file.
func (pp *PidPath) IsOurs() bool {
	return pp.Getpid() == os.Getpid()
}

// Getpid returns the live owner's process ID or UnknownPID.
func (pp *PidPath) Getpid() int {
	if time.Since(pp.checkedAt) >= recheckAfter {
		pp.refresh()
	}
	return pp.pid
}

// Release removes the file if the current process owns it. Files owned by
// other processes are left alone.
func (pp *PidPath) Release() error {
	if !pp.IsOurs() {
		return nil
	}

	pp.checkedAt = time.Time{}
	pp.pid = UnknownPID
	return os.Remove(pp.path)
}

//--------------------------------------------------------------------------------
// private

func (pp *PidPath) refresh() error {
	pp.checkedAt = time.Now()
	pp.pid = UnknownPID

	content, err := os.ReadFile(pp.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to read %s: %w", pp.path, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return fmt.Errorf("unable to parse contents of %s: %w", pp.path, err)
	}

	if pid == os.Getpid() {
		// just ourselves, probably running an IPC command
		pp.pid = pid
		return nil
	}

	err = syscall.Kill(pid, 0)
	switch {
	case err == nil, errors.Is(err, syscall.EPERM):
		// EPERM: owned by another user, probably root
		pp.pid = pid
	case errors.Is(err, syscall.ESRCH):
		// stale file
	default:
		// can't tell, so assume it is still running
		pp.pid = pid
		return fmt.Errorf("unable to check if process %d is still running: %w", pid, err)
	}

	return nil
}
