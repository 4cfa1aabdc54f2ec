// Package fds implements the fd and redirection primitives (spec §4.1):
// autoclose pipe pairs, cloexec discipline, and the "heightenize" operation
// that keeps internal fds out of the user's 0-9 range.
package fds

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// UserFdThreshold is the fixed boundary below which fds are reserved for the
// user's script (spec §6, "Fd range policy"). All internal fds live at or
// above this value and are close-on-exec by default.
const UserFdThreshold = 10

// PipeError is returned when pipe creation fails, e.g. due to fd
// exhaustion mid-pipeline (spec §7, "PipeError").
type PipeError struct {
	Err error
}

func (e *PipeError) Error() string { return fmt.Sprintf("failed to create pipe: %v", e.Err) }
func (e *PipeError) Unwrap() error { return e.Err }

// AutoclosePipe returns (readFd, writeFd) for a close-on-exec pipe whose
// ends are both raised above UserFdThreshold, so a redirection like `3>foo`
// in the user's script can never collide with a fish-internal pipe fd.
func AutoclosePipe() (read int, write int, err error) {
	var fd [2]int

	err = unix.Pipe2(fd[:], unix.O_CLOEXEC)
	if err != nil {
		return -1, -1, &PipeError{Err: err}
	}

	read, err = Heightenize(fd[0])
	if err != nil {
		unix.Close(fd[1])
		return -1, -1, &PipeError{Err: err}
	}

	write, err = Heightenize(fd[1])
	if err != nil {
		unix.Close(read)
		return -1, -1, &PipeError{Err: err}
	}

	return read, write, nil
}

// OpenCloexec opens path with flags, atomically setting close-on-exec. It
// retries on EINTR unless cancelled reports a pending cancellation signal.
func OpenCloexec(path string, flags int, mode uint32, cancelled func() bool) (int, error) {
	for {
		fd, err := unix.Open(path, flags|unix.O_CLOEXEC, mode)
		if err == nil {
			return fd, nil
		}

		if err == unix.EINTR && (cancelled == nil || !cancelled()) {
			continue
		}

		return -1, err
	}
}

// Heightenize ensures fd lives at or above UserFdThreshold and is
// close-on-exec. If fd is already in range it is merely marked cloexec and
// returned unchanged; otherwise it is dup'd to a free fd above the
// threshold via F_DUPFD_CLOEXEC and the original is closed. On failure the
// input fd is closed and an error is returned: callers never have to clean
// up after a failed Heightenize.
func Heightenize(fd int) (int, error) {
	if fd >= UserFdThreshold {
		if err := SetCloexec(fd, true); err != nil {
			unix.Close(fd)
			return -1, err
		}

		return fd, nil
	}

	newFd, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, UserFdThreshold)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}

	unix.Close(fd)
	return newFd, nil
}

// SetCloexec sets or clears FD_CLOEXEC on fd without disturbing any other
// fcntl flag, mirroring the clear_cloexec helper used by the post-fork
// region for self-dup2 targets (spec §4.3 step 1).
func SetCloexec(fd int, on bool) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}

	var newFlags int
	if on {
		newFlags = flags | unix.FD_CLOEXEC
	} else {
		newFlags = flags &^ unix.FD_CLOEXEC
	}

	if newFlags == flags {
		return nil
	}

	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, newFlags)
	return err
}

// SetBlocking puts fd into blocking mode. No-op if already blocking.
func SetBlocking(fd int) error { return setNonblock(fd, false) }

// SetNonblocking puts fd into non-blocking mode. No-op if already
// non-blocking.
func SetNonblocking(fd int) error { return setNonblock(fd, true) }

func setNonblock(fd int, nonblock bool) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return err
	}

	isNonblock := flags&unix.O_NONBLOCK != 0
	if isNonblock == nonblock {
		return nil
	}

	if nonblock {
		flags |= unix.O_NONBLOCK
	} else {
		flags &^= unix.O_NONBLOCK
	}

	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags)
	return err
}

// CloseQuietly closes fd, discarding EINTR/EBADF the way every close-on a
// best-effort path in this repository does.
func CloseQuietly(fd int) {
	for {
		err := unix.Close(fd)
		if err != unix.EINTR {
			return
		}
	}
}

// WaitStatusExitCode converts a syscall.WaitStatus into the observable
// status contract of spec §6: an exited process contributes its exit code,
// a signalled process contributes 128+signal.
func WaitStatusExitCode(ws syscall.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}

	return ws.ExitStatus()
}
