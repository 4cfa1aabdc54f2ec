// Package term provides small tty helpers: foreground-pgroup query and
// claim, terminal size, and raw mode. No other package in this repository
// imports it; the launcher claims the terminal through SysProcAttr in
// internal/fork.
package term

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ForegroundPgid returns the pgid currently controlling fd's terminal.
func ForegroundPgid(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}

// ClaimForeground makes pgid the terminal's foreground process group,
// the equivalent of tcsetpgrp(fd, pgid).
func ClaimForeground(fd, pgid int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}

// Size reports a terminal's current row/column count.
func Size(f *os.File) (rows, cols int, err error) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0, err
	}

	return h, w, nil
}

// MakeRaw puts the terminal into raw mode for the duration of an
// interactive read, returning a restore function.
func MakeRaw(f *os.File) (restore func() error, err error) {
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return nil, err
	}

	return func() error {
		return term.Restore(int(f.Fd()), state)
	}, nil
}
